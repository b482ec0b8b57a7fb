// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Voro Contributors

package postgres

import (
	"context"
	"time"

	"github.com/samber/oops"

	"github.com/voro/voro/internal/auth"
	"github.com/voro/voro/internal/store"
)

// RevocationStore implements auth.RevocationStore using PostgreSQL.
type RevocationStore struct {
	pool store.Pool
}

// NewRevocationStore creates a new RevocationStore.
func NewRevocationStore(pool store.Pool) *RevocationStore {
	return &RevocationStore{pool: pool}
}

// Add records a revocation. A token that is already revoked keeps its
// original entry.
func (s *RevocationStore) Add(ctx context.Context, entry auth.RevocationEntry) error {
	revokedAt := entry.RevokedAt
	if revokedAt.IsZero() {
		revokedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO revoked_tokens (token, revoked_at, expires_at, reason)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (token) DO NOTHING
	`, entry.Token, revokedAt, entry.ExpiresAt, string(entry.Reason))
	if err != nil {
		return oops.Code("REVOCATION_ADD_FAILED").
			With("operation", "insert revoked token").
			With("reason", entry.Reason).
			Wrap(classify(err))
	}
	return nil
}

// Exists reports whether token has been revoked.
func (s *RevocationStore) Exists(ctx context.Context, token string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM revoked_tokens WHERE token = $1)
	`, token).Scan(&exists)
	if err != nil {
		return false, oops.Code("REVOCATION_LOOKUP_FAILED").
			With("operation", "check revoked token").
			Wrap(err)
	}
	return exists, nil
}

// PruneExpired deletes entries for tokens that expired at or before now.
func (s *RevocationStore) PruneExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.pool.Exec(ctx, `DELETE FROM revoked_tokens WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, oops.Code("REVOCATION_PRUNE_FAILED").
			With("operation", "delete expired revocations").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}
