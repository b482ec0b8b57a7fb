// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Voro Contributors

package ratelimit_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/voro/voro/internal/ratelimit"
)

func TestMemoryStore_FixedWindow(t *testing.T) {
	defer goleak.VerifyNone(t)

	clock := newFakeClock()
	store := ratelimit.NewMemoryStore(ratelimit.MemoryConfig{Now: clock.Now})
	defer store.Close()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, err := store.Take(ctx, "k", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, d.Allowed, "attempt %d", i)
		assert.Equal(t, 2-i, d.Remaining)
	}

	clock.Advance(20 * time.Second)
	d, err := store.Take(ctx, "k", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	assert.Equal(t, 40*time.Second, d.RetryAfter)

	clock.Advance(40 * time.Second)
	d, err = store.Take(ctx, "k", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, d.Allowed, "new window")
	assert.Equal(t, 2, d.Remaining)
}

func TestMemoryStore_KeysAreIndependent(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := ratelimit.NewMemoryStore(ratelimit.MemoryConfig{})
	defer store.Close()
	ctx := context.Background()

	d, err := store.Take(ctx, "a", 1, time.Hour)
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	d, err = store.Take(ctx, "a", 1, time.Hour)
	require.NoError(t, err)
	assert.False(t, d.Allowed)

	d, err = store.Take(ctx, "b", 1, time.Hour)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestMemoryStore_ConcurrentTakesNeverExceedLimit(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := ratelimit.NewMemoryStore(ratelimit.MemoryConfig{})
	defer store.Close()

	var allowed atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := store.Take(context.Background(), "shared", 30, time.Minute)
			assert.NoError(t, err)
			if d.Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(30), allowed.Load())
}

func TestMemoryStore_Cleanup(t *testing.T) {
	defer goleak.VerifyNone(t)

	clock := newFakeClock()
	reg := prometheus.NewRegistry()
	store := ratelimit.NewMemoryStoreWithRegistry(ratelimit.MemoryConfig{Now: clock.Now}, reg)
	defer store.Close()
	ctx := context.Background()

	_, err := store.Take(ctx, "short", 1, time.Minute)
	require.NoError(t, err)
	_, err = store.Take(ctx, "long", 1, time.Hour)
	require.NoError(t, err)
	require.Equal(t, 2, store.Len())

	clock.Advance(time.Minute)
	store.Cleanup()

	assert.Equal(t, 1, store.Len())
	mfs, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, mfs, 1)
	assert.Equal(t, "voro_ratelimit_keys", mfs[0].GetName())
	assert.InDelta(t, 1.0, mfs[0].GetMetric()[0].GetGauge().GetValue(), 0)
}

func TestMemoryStore_BackgroundCleanup(t *testing.T) {
	defer goleak.VerifyNone(t)

	clock := newFakeClock()
	store := ratelimit.NewMemoryStore(ratelimit.MemoryConfig{
		CleanupInterval: 5 * time.Millisecond,
		Now:             clock.Now,
	})
	defer store.Close()

	_, err := store.Take(context.Background(), "k", 1, time.Second)
	require.NoError(t, err)
	clock.Advance(time.Second)

	assert.Eventually(t, func() bool { return store.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestMemoryStore_CloseIsIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := ratelimit.NewMemoryStore(ratelimit.MemoryConfig{})
	store.Close()
	store.Close()
}
