package seenfile

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/user/listing-radar/internal/entity"
)

// Store provides a concrete implementation of repository.SeenRepository
// backed by a single JSON file. A missing or corrupt file degrades to an
// empty store: the first run must not crash the bot, and a lost cache only
// risks duplicate notifications, never dropped ones.
type Store struct {
	path    string
	mu      sync.Mutex
	entries map[string]entity.SeenEntry
}

// Load reads the store from path, tolerating absence and corruption.
func Load(path string) *Store {
	s := &Store{path: path, entries: make(map[string]entity.SeenEntry)}

	raw, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("Cannot read seen file, starting empty", "path", path, "error", err)
		}
		return s
	}

	// Current format: url -> entry map.
	var entries map[string]entity.SeenEntry
	if err := json.Unmarshal(raw, &entries); err == nil {
		s.entries = entries
		return s
	}

	// Legacy format: a flat JSON array of URLs, without timestamps.
	var urls []string
	if err := json.Unmarshal(raw, &urls); err == nil {
		for _, u := range urls {
			s.entries[u] = entity.SeenEntry{URL: u}
		}
		return s
	}

	slog.Warn("Seen file is corrupt, starting empty", "path", path)
	return s
}

// Contains reports whether a URL was already notified about.
func (s *Store) Contains(_ context.Context, url string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[url]
	return ok, nil
}

// Add records a URL. Entries are never mutated once written.
func (s *Store) Add(_ context.Context, url string, notifiedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[url]; ok {
		return nil
	}
	s.entries[url] = entity.SeenEntry{URL: url, FirstNotifiedAt: notifiedAt}
	return nil
}

// Flush writes the store atomically: a temp file in the same directory is
// renamed over the target, so a crash mid-write never corrupts the cache.
func (s *Store) Flush(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal seen entries: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".seen-*.json")
	if err != nil {
		return fmt.Errorf("create temp seen file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write seen file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close seen file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace seen file: %w", err)
	}
	return nil
}

// Len returns the number of recorded URLs.
func (s *Store) Len(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.entries)), nil
}
