package sessionstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daeguwebtoon/chatcore/types"
)

func newTestRedisStore(t *testing.T, opts ...RedisOption) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, opts...), mr
}

func TestRedisStore_GetNotFound(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	_, err := store.Get(ctx, "nonexistent")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_SaveAndGet(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	sess, err := store.GetOrCreate(ctx, "sess-1", "지우")
	require.NoError(t, err)
	assert.Equal(t, types.StageGreeting, sess.Stage)
	assert.Equal(t, -1, sess.LastSuggestionIndex)

	sess.Stage = types.StageEnroute
	sess.RecommendedSpot = "dongseongro"
	sess.AppendMessage("assistant", "동성로에서 보자!", time.Now())
	require.NoError(t, store.Save(ctx, sess))

	loaded, err := store.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, types.StageEnroute, loaded.Stage)
	assert.Equal(t, "dongseongro", loaded.RecommendedSpot)
	assert.Equal(t, "지우", loaded.UserName)
	require.Len(t, loaded.Messages, 1)
}

func TestRedisStore_GetOrCreateBackfillsNameOnce(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	_, err := store.GetOrCreate(ctx, "sess-1", "")
	require.NoError(t, err)

	sess, err := store.GetOrCreate(ctx, "sess-1", "지우")
	require.NoError(t, err)
	assert.Equal(t, "지우", sess.UserName)

	sess, err = store.GetOrCreate(ctx, "sess-1", "민수")
	require.NoError(t, err)
	assert.Equal(t, "지우", sess.UserName)
}

func TestRedisStore_Delete(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	_, err := store.GetOrCreate(ctx, "sess-1", "")
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, "sess-1"))

	_, err = store.Get(ctx, "sess-1")
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting a missing session is not an error.
	assert.NoError(t, store.Delete(ctx, "sess-1"))
}

func TestRedisStore_TTLExpiry(t *testing.T) {
	store, mr := newTestRedisStore(t, WithTTL(time.Hour))
	ctx := context.Background()

	_, err := store.GetOrCreate(ctx, "sess-1", "")
	require.NoError(t, err)

	mr.FastForward(2 * time.Hour)

	_, err = store.Get(ctx, "sess-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_SaveRefreshesTTL(t *testing.T) {
	store, mr := newTestRedisStore(t, WithTTL(time.Hour))
	ctx := context.Background()

	sess, err := store.GetOrCreate(ctx, "sess-1", "")
	require.NoError(t, err)

	mr.FastForward(30 * time.Minute)
	require.NoError(t, store.Save(ctx, sess))
	mr.FastForward(45 * time.Minute)

	_, err = store.Get(ctx, "sess-1")
	assert.NoError(t, err)
}

func TestRedisStore_TerminateAll(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		_, err := store.GetOrCreate(ctx, id, "")
		require.NoError(t, err)
	}

	n, err := store.TerminateAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	for _, id := range []string{"a", "b", "c"} {
		sess, err := store.Get(ctx, id)
		require.NoError(t, err)
		assert.True(t, sess.Terminated)
		assert.Equal(t, types.StageTerminated, sess.Stage)
	}
}

func TestRedisStore_KeyPrefixIsolation(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	first := NewRedisStore(client, WithPrefix("alpha"))
	second := NewRedisStore(client, WithPrefix("beta"))
	ctx := context.Background()

	_, err := first.GetOrCreate(ctx, "sess-1", "")
	require.NoError(t, err)

	_, err = second.Get(ctx, "sess-1")
	assert.ErrorIs(t, err, ErrNotFound)

	st, err := second.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, st.Total)
}

func TestRedisStore_Stats(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	_, err := store.GetOrCreate(ctx, "a", "")
	require.NoError(t, err)
	b, err := store.GetOrCreate(ctx, "b", "")
	require.NoError(t, err)
	b.Terminated = true
	require.NoError(t, store.Save(ctx, b))

	st, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Total: 2, Active: 1, Terminated: 1}, st)
}

func TestRedisStore_SweepIsNoop(t *testing.T) {
	store, _ := newTestRedisStore(t)

	n, err := store.Sweep(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)
}
