// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Voro Contributors

package ratelimit

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultCleanupInterval is how often in-process stores drop stale keys.
const DefaultCleanupInterval = 5 * time.Minute

// sweeper runs a cleanup function on a ticker until closed.
type sweeper struct {
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func (s *sweeper) start(interval time.Duration, fn func()) {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	s.stopChan = make(chan struct{})
	s.wg.Add(1)
	go s.loop(interval, fn)
}

func (s *sweeper) loop(interval time.Duration, fn func()) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			fn()
		}
	}
}

// stop blocks until the goroutine has exited. Safe to call more than once.
func (s *sweeper) stop() {
	s.closeOnce.Do(func() {
		close(s.stopChan)
	})
	s.wg.Wait()
}

// newKeysGauge registers a gauge tracking tracked keys for a store kind.
// Returns nil when reg is nil.
func newKeysGauge(reg prometheus.Registerer, store string) prometheus.Gauge {
	if reg == nil {
		return nil
	}
	g := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "voro_ratelimit_keys",
		Help:        "Current number of tracked rate limiter keys",
		ConstLabels: prometheus.Labels{"store": store},
	})
	reg.MustRegister(g)
	return g
}
