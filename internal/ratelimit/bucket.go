// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Voro Contributors

package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
)

// BucketConfig configures a BucketStore.
type BucketConfig struct {
	// CleanupInterval defaults to DefaultCleanupInterval if zero.
	CleanupInterval time.Duration

	// Now defaults to time.Now.
	Now func() time.Time
}

type bucket struct {
	lim      *rate.Limiter
	window   time.Duration
	lastSeen time.Time
}

// BucketStore keeps a rolling token bucket per key: a key may burst up to
// limit attempts, refilling at limit per window.
type BucketStore struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time

	sweeper
	keysGauge prometheus.Gauge
}

// NewBucketStore creates a BucketStore and starts its cleanup goroutine.
func NewBucketStore(cfg BucketConfig) *BucketStore {
	return newBucketStore(cfg, nil)
}

// NewBucketStoreWithRegistry creates a BucketStore and registers a key count
// gauge with reg.
func NewBucketStoreWithRegistry(cfg BucketConfig, reg prometheus.Registerer) *BucketStore {
	return newBucketStore(cfg, reg)
}

func newBucketStore(cfg BucketConfig, reg prometheus.Registerer) *BucketStore {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	b := &BucketStore{
		buckets:   make(map[string]*bucket),
		now:       now,
		keysGauge: newKeysGauge(reg, "bucket"),
	}
	b.start(cfg.CleanupInterval, b.Cleanup)
	return b
}

// Take implements Store.
func (b *BucketStore) Take(_ context.Context, key string, limit int, window time.Duration) (Decision, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	bk, ok := b.buckets[key]
	if !ok {
		every := window / time.Duration(limit)
		bk = &bucket{
			lim:    rate.NewLimiter(rate.Every(every), limit),
			window: window,
		}
		b.buckets[key] = bk
	}
	bk.lastSeen = now

	r := bk.lim.ReserveN(now, 1)
	if !r.OK() {
		return Decision{RetryAfter: window}, nil
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return Decision{RetryAfter: delay}, nil
	}

	remaining := int(bk.lim.TokensAt(now))
	if remaining < 0 {
		remaining = 0
	}
	return Decision{Allowed: true, Remaining: remaining}, nil
}

// Len returns the number of tracked keys.
func (b *BucketStore) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buckets)
}

// Cleanup drops buckets idle for at least their window; such buckets are
// full again and indistinguishable from new ones.
func (b *BucketStore) Cleanup() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	for key, bk := range b.buckets {
		if now.Sub(bk.lastSeen) >= bk.window {
			delete(b.buckets, key)
		}
	}

	if b.keysGauge != nil {
		b.keysGauge.Set(float64(len(b.buckets)))
	}
}

// Close stops the cleanup goroutine. It blocks until the goroutine exits.
func (b *BucketStore) Close() {
	b.stop()
}
