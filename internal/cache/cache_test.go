package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMiniRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	UseClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test")
	t.Cleanup(func() {
		_ = Close()
	})
	return mr
}

func TestJSONHelpersDisabled(t *testing.T) {
	UseClient(nil, "")
	found, err := GetJSON(context.Background(), "anything", &struct{}{})
	assert.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, SetJSON(context.Background(), "anything", 1, time.Minute))
	assert.NoError(t, Ping(context.Background()))
}

func TestJSONHelpersRoundTripWithPrefix(t *testing.T) {
	mr := setupMiniRedis(t)
	ctx := context.Background()

	require.NoError(t, SetJSON(ctx, "k1", map[string]int{"n": 3}, time.Minute))
	assert.True(t, mr.Exists("test:k1"))

	var got map[string]int
	found, err := GetJSON(ctx, "k1", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 3, got["n"])

	require.NoError(t, Del(ctx, "k1"))
	found, err = GetJSON(ctx, "k1", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisLockerMutualExclusion(t *testing.T) {
	mr := setupMiniRedis(t)
	locker := NewRedisLocker(Client(), time.Second, 50*time.Millisecond)
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "owner:u1")
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:lock:owner:u1"))

	_, err = locker.Lock(ctx, "owner:u1")
	assert.ErrorIs(t, err, ErrLockTimeout)

	other, err := locker.Lock(ctx, "owner:u2")
	require.NoError(t, err)
	other()

	unlock()
	unlock()
	assert.False(t, mr.Exists("test:lock:owner:u1"))

	again, err := locker.Lock(ctx, "owner:u1")
	require.NoError(t, err)
	again()
}

func TestRedisLockerReleaseKeepsForeignLock(t *testing.T) {
	mr := setupMiniRedis(t)
	locker := NewRedisLocker(Client(), time.Second, 50*time.Millisecond)

	unlock, err := locker.Lock(context.Background(), "owner:u1")
	require.NoError(t, err)
	// 锁已过期并被其他实例持有
	require.NoError(t, mr.Set("test:lock:owner:u1", "someone-else"))
	unlock()
	got, err := mr.Get("test:lock:owner:u1")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}

func TestLocalLockerSerializesSameKey(t *testing.T) {
	locker := NewLocalLocker(time.Second)
	ctx := context.Background()

	var mu sync.Mutex
	active, maxActive := 0, 0
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locker.Lock(ctx, "u1")
			if err != nil {
				t.Errorf("lock failed: %v", err)
				return
			}
			mu.Lock()
			active++
			if active > maxActive {
				maxActive = active
			}
			mu.Unlock()
			time.Sleep(2 * time.Millisecond)
			mu.Lock()
			active--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxActive)
	assert.Empty(t, locker.slots)
}

func TestLocalLockerTimeoutAndCancel(t *testing.T) {
	locker := NewLocalLocker(20 * time.Millisecond)
	unlock, err := locker.Lock(context.Background(), "u1")
	require.NoError(t, err)
	defer unlock()

	_, err = locker.Lock(context.Background(), "u1")
	assert.True(t, errors.Is(err, ErrLockTimeout))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = locker.Lock(ctx, "u1")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIdempotencyStoreReplay(t *testing.T) {
	setupMiniRedis(t)
	store := NewIdempotencyStore(time.Minute)
	ctx := context.Background()
	fp := Fingerprint([]byte(`{"product_id":"P1"}`))

	_, found, err := store.Lookup(ctx, "add", "u1", "key-1", fp)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Save(ctx, "add", "u1", "key-1", fp, map[string]int{"total_items": 2}))

	data, found, err := store.Lookup(ctx, "add", "u1", "key-1", fp)
	require.NoError(t, err)
	require.True(t, found)
	var decoded map[string]int
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, 2, decoded["total_items"])

	_, _, err = store.Lookup(ctx, "add", "u1", "key-1", Fingerprint([]byte(`{}`)))
	assert.ErrorIs(t, err, ErrIdempotencyKeyReused)

	_, found, err = store.Lookup(ctx, "add", "u2", "key-1", fp)
	require.NoError(t, err)
	assert.False(t, found, "keys are scoped per owner")
}

func TestIdempotencyStoreBlankKey(t *testing.T) {
	setupMiniRedis(t)
	store := NewIdempotencyStore(0)
	require.NoError(t, store.Save(context.Background(), "add", "u1", " ", "fp", 1))
	_, found, err := store.Lookup(context.Background(), "add", "u1", "", "fp")
	require.NoError(t, err)
	assert.False(t, found)
}
