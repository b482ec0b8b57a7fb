// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Voro Contributors

// Package ratelimit enforces per-route attempt budgets keyed by client.
//
// A Gate pairs a Policy (route name, limit, window) with a Store that keeps
// the counters. Stores must make the increment-and-compare atomic: the
// in-process stores use a mutex, RedisStore uses a server-side script.
package ratelimit

import (
	"context"
	"math"
	"time"

	"github.com/samber/oops"
)

// CodeRateLimited is the error code returned when a budget is exhausted.
const CodeRateLimited = "AUTH_RATE_LIMITED"

// Route names used by the HTTP layer.
const (
	RouteGlobal   = "global"
	RouteRegister = "register"
)

// Default budgets.
const (
	DefaultGlobalLimit    = 30
	DefaultGlobalWindow   = time.Minute
	DefaultRegisterLimit  = 1
	DefaultRegisterWindow = 2 * time.Hour
)

// Decision is the outcome of a single attempt against a budget.
type Decision struct {
	Allowed bool
	// Remaining is the number of attempts left in the current window after
	// this one.
	Remaining int
	// RetryAfter is how long the caller should wait before the next attempt
	// can succeed. Zero when Allowed.
	RetryAfter time.Duration
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds, minimum 1, for
// use in a Retry-After header.
func (d Decision) RetryAfterSeconds() int {
	secs := int(math.Ceil(d.RetryAfter.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

// Store records one attempt for key and reports whether it fits in a budget
// of limit attempts per window.
type Store interface {
	Take(ctx context.Context, key string, limit int, window time.Duration) (Decision, error)
}

// Policy is the budget for one route.
type Policy struct {
	Route  string
	Limit  int
	Window time.Duration
}

// Validate checks the policy is usable.
func (p Policy) Validate() error {
	if p.Route == "" {
		return oops.Code("RATELIMIT_CONFIG_INVALID").Errorf("route cannot be empty")
	}
	if p.Limit < 1 {
		return oops.Code("RATELIMIT_CONFIG_INVALID").
			With("route", p.Route).
			With("limit", p.Limit).
			Errorf("limit must be at least 1")
	}
	if p.Window <= 0 {
		return oops.Code("RATELIMIT_CONFIG_INVALID").
			With("route", p.Route).
			With("window", p.Window.String()).
			Errorf("window must be positive")
	}
	return nil
}

// Gate applies a Policy against a Store.
type Gate struct {
	policy Policy
	store  Store
}

// NewGate creates a Gate. Both a valid policy and a store are required.
func NewGate(policy Policy, store Store) (*Gate, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if store == nil {
		return nil, oops.Code("RATELIMIT_CONFIG_INVALID").
			With("route", policy.Route).
			Errorf("store is required")
	}
	return &Gate{policy: policy, store: store}, nil
}

// Route returns the route name the gate protects.
func (g *Gate) Route() string {
	return g.policy.Route
}

// Allow records an attempt for key on the gate's route.
func (g *Gate) Allow(ctx context.Context, key string) (Decision, error) {
	d, err := g.store.Take(ctx, g.policy.Route+":"+key, g.policy.Limit, g.policy.Window)
	if err != nil {
		return Decision{}, oops.Code("RATELIMIT_STORE_FAILED").
			With("route", g.policy.Route).
			Wrap(err)
	}
	return d, nil
}

// Exceeded builds the error for a denied decision.
func Exceeded(route string, d Decision) error {
	return oops.Code(CodeRateLimited).
		With("route", route).
		With("retry_after", d.RetryAfter).
		Errorf("rate limit exceeded")
}

// RetryAfter extracts the retry delay recorded by Exceeded.
func RetryAfter(err error) (time.Duration, bool) {
	oopsErr, ok := oops.AsOops(err)
	if !ok || oopsErr.Code() != CodeRateLimited {
		return 0, false
	}
	d, ok := oopsErr.Context()["retry_after"].(time.Duration)
	return d, ok
}
