package subscription_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lessonkit/lessonkit/pkg/subscription"
)

func TestMemDedupeIndex(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	idx := subscription.NewMemDedupeIndex()

	seen, err := idx.Seen(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, idx.Mark(ctx, "evt-1"))

	seen, err = idx.Seen(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, seen)

	seen, err = idx.Seen(ctx, "evt-2")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestRedisDedupeIndex(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	idx := subscription.NewRedisDedupeIndex(client, "test:billing:event", time.Hour)

	seen, err := idx.Seen(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, idx.Mark(ctx, "evt-1"))

	seen, err = idx.Seen(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, seen)

	// Entries expire with the retry window instead of accumulating forever.
	srv.FastForward(2 * time.Hour)
	seen, err = idx.Seen(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, seen)
}
