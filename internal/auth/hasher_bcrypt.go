// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Voro Contributors

package auth

import (
	"errors"

	"github.com/samber/oops"
	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost is the cost used when none is configured.
const DefaultBcryptCost = 10

// BcryptHasher implements PasswordHasher using bcrypt. It exists so hashes
// created before argon2id became the default keep verifying.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher creates a BcryptHasher. A cost outside bcrypt's range
// falls back to DefaultBcryptCost.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	return &BcryptHasher{cost: cost}
}

// Algorithm returns AlgorithmBcrypt.
func (h *BcryptHasher) Algorithm() Algorithm {
	return AlgorithmBcrypt
}

// Hash produces a bcrypt hash. Passwords longer than 72 bytes are rejected
// rather than silently truncated.
func (h *BcryptHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	out, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", oops.Code("AUTH_HASH_FAILED").With("algorithm", AlgorithmBcrypt).Wrap(err)
	}
	return string(out), nil
}

// Verify compares password against a bcrypt hash.
func (h *BcryptHasher) Verify(password string, hash ParsedHash) (bool, error) {
	if hash.Algorithm != AlgorithmBcrypt {
		return false, oops.Code("AUTH_INVALID_HASH").
			With("algorithm", hash.Algorithm).
			Errorf("not a bcrypt hash")
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash.Encoded), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword), errors.Is(err, bcrypt.ErrPasswordTooLong):
		return false, nil
	default:
		return false, oops.Code("AUTH_INVALID_HASH").With("algorithm", AlgorithmBcrypt).Wrap(err)
	}
}

// NeedsRehash reports a hash that is not bcrypt or uses another cost.
func (h *BcryptHasher) NeedsRehash(hash ParsedHash) bool {
	return hash.Algorithm != AlgorithmBcrypt || hash.Cost != h.cost
}
