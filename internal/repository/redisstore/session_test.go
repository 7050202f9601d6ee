package redisstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*SessionStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewSessionStore(rdb), mr
}

func TestSessionStore_CreateAndGet(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()
	userID, tenantID := uuid.New(), uuid.New()

	sess, err := store.Create(ctx, userID, tenantID, time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, sess.ID)
	require.True(t, mr.Exists("session:"+sess.ID))
	require.Equal(t, time.Hour, mr.TTL("session:"+sess.ID))

	got, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, userID, got.UserID)
	require.Equal(t, tenantID, got.TenantID)
}

func TestSessionStore_UnknownSession(t *testing.T) {
	store, _ := newTestStore(t)

	got, err := store.Get(context.Background(), "missing")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestSessionStore_NewLoginInvalidatesPrevious(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()
	userID, tenantID := uuid.New(), uuid.New()

	first, err := store.Create(ctx, userID, tenantID, time.Hour)
	require.NoError(t, err)
	second, err := store.Create(ctx, userID, tenantID, time.Hour)
	require.NoError(t, err)

	require.False(t, mr.Exists("session:"+first.ID))

	got, err := store.Get(ctx, first.ID)
	require.NoError(t, err)
	require.Nil(t, got)

	got, err = store.Get(ctx, second.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
}

func TestSessionStore_Expiry(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	sess, err := store.Create(ctx, uuid.New(), uuid.New(), time.Minute)
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	got, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestSessionStore_ExpiredByClock(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	sess, err := store.Create(ctx, uuid.New(), uuid.New(), time.Minute)
	require.NoError(t, err)

	store.now = func() time.Time { return time.Now().Add(time.Hour) }
	got, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestSessionStore_Delete(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()
	userID := uuid.New()

	sess, err := store.Create(ctx, userID, uuid.New(), time.Hour)
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, sess.ID))
	require.False(t, mr.Exists("session:"+sess.ID))
	require.False(t, mr.Exists("user_active_session:"+userID.String()))

	// deleting twice is a no-op
	require.NoError(t, store.Delete(ctx, sess.ID))
}
