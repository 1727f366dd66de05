package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/user/listing-radar/pkg/utils"
)

const seenURLPrefix = "seen:"

// SeenRepoImpl provides a concrete implementation of the SeenRepository
// interface using Redis. An optional TTL on entries is the eviction policy
// for the otherwise unbounded seen set: once a listing is old enough to
// have expired, it is also old enough to be rejected by the recency policy
// rather than the dedup filter.
type SeenRepoImpl struct {
	client *redis.Client
	ttl    time.Duration // zero keeps entries forever
}

// NewSeenRepo creates a new instance of SeenRepoImpl.
func NewSeenRepo(client *redis.Client, ttl time.Duration) *SeenRepoImpl {
	return &SeenRepoImpl{client: client, ttl: ttl}
}

// generateKey creates a consistent Redis key for a given URL by hashing it.
func (r *SeenRepoImpl) generateKey(url string) string {
	return fmt.Sprintf("%s%s", seenURLPrefix, utils.HashURL(url))
}

// Contains checks whether a URL was already notified about.
func (r *SeenRepoImpl) Contains(ctx context.Context, url string) (bool, error) {
	val, err := r.client.Exists(ctx, r.generateKey(url)).Result()
	if err != nil {
		return false, err
	}
	return val == 1, nil
}

// Add records a URL, storing the first-notified timestamp as the value.
// An existing entry is left untouched, so a force-mode re-delivery neither
// rewrites the timestamp nor restarts the TTL.
func (r *SeenRepoImpl) Add(ctx context.Context, url string, notifiedAt time.Time) error {
	return r.client.SetNX(ctx, r.generateKey(url), notifiedAt.UTC().Format(time.RFC3339), r.ttl).Err()
}

// Flush is a no-op: Redis persists every Add immediately.
func (r *SeenRepoImpl) Flush(context.Context) error {
	return nil
}

// Len counts the seen keys by scanning the prefix.
func (r *SeenRepoImpl) Len(ctx context.Context) (int64, error) {
	var count int64
	iter := r.client.Scan(ctx, 0, seenURLPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		return 0, err
	}
	return count, nil
}
