// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Voro Contributors

package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/voro/voro/pkg/errutil"
)

// RevocationReason records why a token was revoked.
type RevocationReason string

// Revocation reasons.
const (
	ReasonLogout         RevocationReason = "logout"
	ReasonPasswordChange RevocationReason = "password_change"
)

// RevocationEntry marks a raw token as permanently invalid. ExpiresAt is
// the token's natural expiry and is used only for pruning.
type RevocationEntry struct {
	Token     string
	RevokedAt time.Time
	ExpiresAt time.Time
	Reason    RevocationReason
}

// RevocationStore persists revoked tokens keyed by the exact raw token.
type RevocationStore interface {
	// Add records a revocation. Adding the same token twice is not an error.
	Add(ctx context.Context, entry RevocationEntry) error

	// Exists reports whether token has been revoked.
	Exists(ctx context.Context, token string) (bool, error)

	// PruneExpired deletes entries whose ExpiresAt is at or before now and
	// returns how many were removed.
	PruneExpired(ctx context.Context, now time.Time) (int64, error)
}

// Pruner periodically removes revocation entries for tokens that have
// expired on their own.
type Pruner struct {
	store    RevocationStore
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewPruner creates a Pruner. A non-positive interval disables Run.
func NewPruner(store RevocationStore, interval time.Duration, logger *slog.Logger) *Pruner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pruner{store: store, interval: interval, logger: logger, now: time.Now}
}

// Run prunes on every tick until ctx is cancelled.
func (p *Pruner) Run(ctx context.Context) {
	if p.interval <= 0 {
		return
	}
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.PruneOnce(ctx); err != nil && ctx.Err() == nil {
				errutil.LogError(ctx, p.logger, "revocation prune failed", err)
			}
		}
	}
}

// PruneOnce runs a single pruning pass.
func (p *Pruner) PruneOnce(ctx context.Context) (int64, error) {
	n, err := p.store.PruneExpired(ctx, p.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		p.logger.InfoContext(ctx, "pruned revocations", "count", n)
	}
	return n, nil
}
