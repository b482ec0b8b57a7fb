// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Voro Contributors

// Package memory provides in-process auth stores for development and tests.
// State is lost on restart and is not shared between instances.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/voro/voro/internal/auth"
)

// UserRepository stores users in a map keyed by ID.
type UserRepository struct {
	mu         sync.RWMutex
	byID       map[ulid.ULID]auth.User
	byUsername map[string]ulid.ULID
}

// NewUserRepository creates an empty UserRepository.
func NewUserRepository() *UserRepository {
	return &UserRepository{
		byID:       make(map[ulid.ULID]auth.User),
		byUsername: make(map[string]ulid.ULID),
	}
}

// Create stores a new user.
func (r *UserRepository) Create(_ context.Context, user *auth.User) error {
	key := strings.ToLower(user.Username)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byUsername[key]; taken {
		return oops.Code("USER_CREATE_FAILED").With("username", user.Username).Wrap(auth.ErrDuplicate)
	}
	if _, taken := r.byID[user.ID]; taken {
		return oops.Code("USER_CREATE_FAILED").With("uid", user.ID.String()).Wrap(auth.ErrDuplicate)
	}
	r.byID[user.ID] = *user
	r.byUsername[key] = user.ID
	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(_ context.Context, id ulid.ULID) (*auth.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byID[id]
	if !ok {
		return nil, oops.Code("USER_NOT_FOUND").With("uid", id.String()).Wrap(auth.ErrNotFound)
	}
	return &user, nil
}

// GetByUsername retrieves a user by username (case-insensitive).
func (r *UserRepository) GetByUsername(_ context.Context, username string) (*auth.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byUsername[strings.ToLower(username)]
	if !ok {
		return nil, oops.Code("USER_NOT_FOUND").With("username", username).Wrap(auth.ErrNotFound)
	}
	user := r.byID[id]
	return &user, nil
}

// UpdatePassword replaces the stored password hash.
func (r *UserRepository) UpdatePassword(_ context.Context, id ulid.ULID, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.byID[id]
	if !ok {
		return oops.Code("USER_NOT_FOUND").With("uid", id.String()).Wrap(auth.ErrNotFound)
	}
	user.PasswordHash = passwordHash
	user.UpdatedAt = time.Now().UTC()
	r.byID[id] = user
	return nil
}

// RevocationStore keeps revoked tokens in a map.
type RevocationStore struct {
	mu      sync.RWMutex
	entries map[string]auth.RevocationEntry
}

// NewRevocationStore creates an empty RevocationStore.
func NewRevocationStore() *RevocationStore {
	return &RevocationStore{entries: make(map[string]auth.RevocationEntry)}
}

// Add records a revocation. The first entry for a token wins.
func (s *RevocationStore) Add(_ context.Context, entry auth.RevocationEntry) error {
	if entry.Token == "" {
		return oops.Code("REVOCATION_ADD_FAILED").Wrap(auth.ErrConstraint)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[entry.Token]; !ok {
		s.entries[entry.Token] = entry
	}
	return nil
}

// Exists reports whether token has been revoked.
func (s *RevocationStore) Exists(_ context.Context, token string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.entries[token]
	return ok, nil
}

// PruneExpired removes entries that expired at or before now.
func (s *RevocationStore) PruneExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for token, entry := range s.entries {
		if !entry.ExpiresAt.After(now) {
			delete(s.entries, token)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored entries.
func (s *RevocationStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
