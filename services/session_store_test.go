package services

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseSessionStore(t *testing.T, store SessionStore) {
	ctx := context.Background()
	session := uuid.NewString()

	cart, err := store.Load(ctx, session)
	require.NoError(t, err)
	assert.Empty(t, cart)

	_, err = store.Add(ctx, session, "5", 2)
	require.NoError(t, err)
	cart, err = store.Add(ctx, session, "5", 1)
	require.NoError(t, err)
	assert.Equal(t, SessionCart{"5": 3}, cart)

	cart, err = store.Add(ctx, session, "9", 1)
	require.NoError(t, err)
	assert.Equal(t, SessionCart{"5": 3, "9": 1}, cart)

	cart, err = store.Add(ctx, session, "9", -1)
	require.NoError(t, err)
	assert.Equal(t, SessionCart{"5": 3}, cart, "entries that reach zero are dropped")

	cart, err = store.Remove(ctx, session, "5")
	require.NoError(t, err)
	assert.Empty(t, cart)

	_, err = store.Add(ctx, session, "7", 1)
	require.NoError(t, err)
	require.NoError(t, store.Clear(ctx, session))
	cart, err = store.Load(ctx, session)
	require.NoError(t, err)
	assert.Empty(t, cart)
}

func TestMemorySessionStore(t *testing.T) {
	exerciseSessionStore(t, NewMemorySessionStore(time.Hour))
}

func TestMemorySessionStore_IsolatesSessions(t *testing.T) {
	store := NewMemorySessionStore(time.Hour)
	ctx := context.Background()

	_, err := store.Add(ctx, "a", "1", 1)
	require.NoError(t, err)

	cart, err := store.Load(ctx, "b")
	require.NoError(t, err)
	assert.Empty(t, cart)

	// returned carts are copies
	cart, err = store.Load(ctx, "a")
	require.NoError(t, err)
	cart["1"] = 100
	again, _ := store.Load(ctx, "a")
	assert.Equal(t, 1, again["1"])
}

func TestMemorySessionStore_ExpiresIdleSessions(t *testing.T) {
	store := NewMemorySessionStore(time.Hour)
	clock := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return clock }
	ctx := context.Background()

	_, err := store.Add(ctx, "idle", "5", 2)
	require.NoError(t, err)
	_, err = store.Add(ctx, "busy", "7", 1)
	require.NoError(t, err)

	// reading a session slides its expiry
	clock = clock.Add(50 * time.Minute)
	cart, err := store.Load(ctx, "busy")
	require.NoError(t, err)
	assert.Equal(t, SessionCart{"7": 1}, cart)

	clock = clock.Add(20 * time.Minute)
	cart, err = store.Load(ctx, "idle")
	require.NoError(t, err)
	assert.Empty(t, cart, "a session untouched for longer than the ttl is gone")

	cart, err = store.Load(ctx, "busy")
	require.NoError(t, err)
	assert.Equal(t, SessionCart{"7": 1}, cart)

	// an expired session starts over on the next add
	clock = clock.Add(2 * time.Hour)
	cart, err = store.Add(ctx, "busy", "9", 1)
	require.NoError(t, err)
	assert.Equal(t, SessionCart{"9": 1}, cart)
}

func TestMemorySessionStore_Cleanup(t *testing.T) {
	store := NewMemorySessionStore(time.Hour)
	clock := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return clock }
	ctx := context.Background()

	for _, session := range []string{"a", "b", "c"} {
		_, err := store.Add(ctx, session, "1", 1)
		require.NoError(t, err)
	}
	clock = clock.Add(30 * time.Minute)
	_, err := store.Add(ctx, "c", "2", 1)
	require.NoError(t, err)

	clock = clock.Add(45 * time.Minute)
	store.Cleanup()

	assert.Equal(t, 1, store.Len())
	cart, err := store.Load(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, SessionCart{"1": 1, "2": 1}, cart)
}

func TestMemorySessionStore_ZeroTTLNeverExpires(t *testing.T) {
	store := NewMemorySessionStore(0)
	clock := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return clock }

	_, err := store.Add(context.Background(), "a", "1", 1)
	require.NoError(t, err)

	clock = clock.Add(365 * 24 * time.Hour)
	store.Cleanup()
	assert.Equal(t, 1, store.Len())
}

func TestMemorySessionStore_StartCleanup(t *testing.T) {
	store := NewMemorySessionStore(time.Millisecond)
	_, err := store.Add(context.Background(), "a", "1", 1)
	require.NoError(t, err)

	stop := make(chan struct{})
	defer close(stop)
	store.StartCleanup(5*time.Millisecond, stop)

	assert.Eventually(t, func() bool { return store.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestRedisSessionStore(t *testing.T) {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		t.Skip("REDIS_URL not set")
	}

	store, err := NewRedisSessionStore(redisURL, time.Minute)
	require.NoError(t, err)
	defer store.Close()

	exerciseSessionStore(t, store)
}

func TestNewRedisSessionStore_InvalidURL(t *testing.T) {
	_, err := NewRedisSessionStore("not a url", time.Minute)
	assert.Error(t, err)
}

func TestSetSessionStore(t *testing.T) {
	original := GetSessionStore()
	defer SetSessionStore(original)

	store := NewMemorySessionStore(time.Hour)
	SetSessionStore(store)
	assert.Same(t, store, GetSessionStore())
}
