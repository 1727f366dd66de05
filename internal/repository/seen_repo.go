package repository

import (
	"context"
	"time"
)

// SeenRepository defines the interface for run-to-run deduplication of
// notified listing URLs.
type SeenRepository interface {
	// Contains reports whether a URL was already notified about.
	Contains(ctx context.Context, url string) (bool, error)
	// Add records a URL as notified at the given time.
	Add(ctx context.Context, url string, notifiedAt time.Time) error
	// Flush persists the store to durable storage. Backends that persist
	// on every Add may make this a no-op.
	Flush(ctx context.Context) error
	// Len returns the number of recorded URLs, for logging.
	Len(ctx context.Context) (int64, error)
}
