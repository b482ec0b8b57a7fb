// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Voro Contributors

package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MemoryConfig configures a MemoryStore.
type MemoryConfig struct {
	// CleanupInterval defaults to DefaultCleanupInterval if zero.
	CleanupInterval time.Duration

	// Now defaults to time.Now.
	Now func() time.Time
}

type window struct {
	count   int
	resetAt time.Time
}

// MemoryStore counts attempts in fixed windows per key. It is safe for
// concurrent use within one process.
//
// A background goroutine drops expired windows. Call Close to stop it.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time

	sweeper
	keysGauge prometheus.Gauge
}

// NewMemoryStore creates a MemoryStore and starts its cleanup goroutine.
func NewMemoryStore(cfg MemoryConfig) *MemoryStore {
	return newMemoryStore(cfg, nil)
}

// NewMemoryStoreWithRegistry creates a MemoryStore and registers a key count
// gauge with reg.
func NewMemoryStoreWithRegistry(cfg MemoryConfig, reg prometheus.Registerer) *MemoryStore {
	return newMemoryStore(cfg, reg)
}

func newMemoryStore(cfg MemoryConfig, reg prometheus.Registerer) *MemoryStore {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	m := &MemoryStore{
		windows:   make(map[string]*window),
		now:       now,
		keysGauge: newKeysGauge(reg, "memory"),
	}
	m.start(cfg.CleanupInterval, m.Cleanup)
	return m
}

// Take implements Store.
func (m *MemoryStore) Take(_ context.Context, key string, limit int, win time.Duration) (Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	w, ok := m.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(win)}
		m.windows[key] = w
	}

	if w.count >= limit {
		return Decision{RetryAfter: w.resetAt.Sub(now)}, nil
	}
	w.count++
	return Decision{Allowed: true, Remaining: limit - w.count}, nil
}

// Len returns the number of tracked keys.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.windows)
}

// Cleanup drops windows that have ended. The background goroutine calls it
// periodically.
func (m *MemoryStore) Cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for key, w := range m.windows {
		if !now.Before(w.resetAt) {
			delete(m.windows, key)
		}
	}

	if m.keysGauge != nil {
		m.keysGauge.Set(float64(len(m.windows)))
	}
}

// Close stops the cleanup goroutine. It blocks until the goroutine exits.
func (m *MemoryStore) Close() {
	m.stop()
}
