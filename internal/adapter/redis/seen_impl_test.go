package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/listing-radar/pkg/utils"
)

func newTestRepo(t *testing.T, ttl time.Duration) (*SeenRepoImpl, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewSeenRepo(client, ttl), srv
}

func TestSeenRepo_ContainsAfterAdd(t *testing.T) {
	repo, _ := newTestRepo(t, 0)
	ctx := context.Background()

	ok, err := repo.Contains(ctx, "https://example.com/a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.Add(ctx, "https://example.com/a", time.Now()))
	ok, err = repo.Contains(ctx, "https://example.com/a")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSeenRepo_AddKeepsFirstNotifiedAt(t *testing.T) {
	repo, srv := newTestRepo(t, 0)
	ctx := context.Background()
	first := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Add(ctx, "https://example.com/a", first))
	require.NoError(t, repo.Add(ctx, "https://example.com/a", first.Add(time.Hour)))

	key := seenURLPrefix + utils.HashURL("https://example.com/a")
	val, err := srv.Get(key)
	require.NoError(t, err)
	assert.Equal(t, first.Format(time.RFC3339), val, "a re-delivery must not rewrite the entry")
}

func TestSeenRepo_AddDoesNotRestartTTL(t *testing.T) {
	repo, srv := newTestRepo(t, 24*time.Hour)
	ctx := context.Background()

	require.NoError(t, repo.Add(ctx, "https://example.com/a", time.Now()))
	key := seenURLPrefix + utils.HashURL("https://example.com/a")
	require.Equal(t, 24*time.Hour, srv.TTL(key))

	srv.FastForward(12 * time.Hour)
	require.NoError(t, repo.Add(ctx, "https://example.com/a", time.Now()))
	assert.Equal(t, 12*time.Hour, srv.TTL(key))
}

func TestSeenRepo_Len(t *testing.T) {
	repo, srv := newTestRepo(t, 0)
	ctx := context.Background()

	require.NoError(t, repo.Add(ctx, "https://example.com/a", time.Now()))
	require.NoError(t, repo.Add(ctx, "https://example.com/b", time.Now()))
	// Unrelated keys must not be counted.
	srv.Set("other:key", "x")

	n, err := repo.Len(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}
