// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Voro Contributors

package auth

import (
	"context"
	"runtime"
	"time"

	"github.com/samber/oops"
	"golang.org/x/sync/semaphore"
)

// CredentialConfig selects the hashing algorithm and strength policy.
type CredentialConfig struct {
	// Algorithm is used for every new hash. Defaults to argon2id.
	Algorithm Algorithm

	Argon2id   Argon2idParams
	BcryptCost int

	// MinScore is the lowest acceptable strength score.
	MinScore int

	// MaxConcurrent bounds simultaneous hash and verify calls. Zero means
	// GOMAXPROCS.
	MaxConcurrent int64
}

// HashObserver receives the duration of every hash or verify call.
type HashObserver func(alg Algorithm, elapsed time.Duration)

// CredentialOption configures a CredentialManager.
type CredentialOption func(*CredentialManager)

// WithHashObserver installs a timing callback, typically a histogram.
func WithHashObserver(fn HashObserver) CredentialOption {
	return func(m *CredentialManager) {
		m.observe = fn
	}
}

// CredentialManager gates password strength and hashes and verifies
// passwords across every supported algorithm. New hashes always use the
// configured algorithm; verification dispatches on the stored tag.
type CredentialManager struct {
	current   PasswordHasher
	hashers   map[Algorithm]PasswordHasher
	estimator StrengthEstimator
	minScore  int
	sem       *semaphore.Weighted
	observe   HashObserver

	dummy ParsedHash
}

// NewCredentialManager builds a manager. estimator is required.
func NewCredentialManager(cfg CredentialConfig, estimator StrengthEstimator, opts ...CredentialOption) (*CredentialManager, error) {
	if estimator == nil {
		return nil, oops.Code("AUTH_CONFIG_INVALID").Errorf("strength estimator is required")
	}
	if cfg.MinScore < MinStrengthScore || cfg.MinScore > MaxStrengthScore {
		return nil, oops.Code("AUTH_CONFIG_INVALID").
			With("min_score", cfg.MinScore).
			Errorf("min strength score must be between %d and %d", MinStrengthScore, MaxStrengthScore)
	}

	hashers := map[Algorithm]PasswordHasher{
		AlgorithmArgon2id: NewArgon2idHasher(cfg.Argon2id),
		AlgorithmBcrypt:   NewBcryptHasher(cfg.BcryptCost),
	}
	alg := cfg.Algorithm
	if alg == "" {
		alg = AlgorithmArgon2id
	}
	current, ok := hashers[alg]
	if !ok {
		return nil, oops.Code("AUTH_CONFIG_INVALID").
			With("algorithm", alg).
			Errorf("unsupported hash algorithm")
	}

	limit := cfg.MaxConcurrent
	if limit <= 0 {
		limit = int64(runtime.GOMAXPROCS(0))
	}

	dummy, err := newDummyHash(current)
	if err != nil {
		return nil, err
	}

	m := &CredentialManager{
		dummy:     dummy,
		current:   current,
		hashers:   hashers,
		estimator: estimator,
		minScore:  cfg.MinScore,
		sem:       semaphore.NewWeighted(limit),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Algorithm reports the algorithm used for new hashes.
func (m *CredentialManager) Algorithm() Algorithm {
	return m.current.Algorithm()
}

// CheckStrength returns AUTH_WEAK_CREDENTIAL when the password scores below
// the configured minimum.
func (m *CredentialManager) CheckStrength(password string, userInputs ...string) error {
	score := m.estimator.Score(password, userInputs...)
	if score < m.minScore {
		return oops.Code(CodeWeakCredential).
			With("score", score).
			With("min_score", m.minScore).
			Errorf("password is too weak")
	}
	return nil
}

// Hash produces a hash with the current algorithm. It blocks until a
// hashing slot is free or ctx is done.
func (m *CredentialManager) Hash(ctx context.Context, password string) (string, error) {
	if err := m.acquire(ctx); err != nil {
		return "", err
	}
	defer m.sem.Release(1)

	start := time.Now()
	encoded, err := m.current.Hash(password)
	m.record(m.current.Algorithm(), start)
	if err != nil {
		return "", oops.With("operation", "hash password").Wrap(err)
	}
	return encoded, nil
}

// Verify checks password against an encoded hash of any supported
// algorithm.
func (m *CredentialManager) Verify(ctx context.Context, password, encoded string) (bool, error) {
	parsed, err := ParseHash(encoded)
	if err != nil {
		return false, err
	}
	return m.verifyParsed(ctx, password, parsed)
}

// VerifyDummy runs a verification against a hash no password matches. Use
// it when the account does not exist so the response takes as long as a
// real failed attempt.
func (m *CredentialManager) VerifyDummy(ctx context.Context, password string) {
	_, _ = m.verifyParsed(ctx, password, m.dummy)
}

// newDummyHash hashes a fixed credential with h so unknown-user logins
// verify against the same algorithm and parameters as real accounts.
func newDummyHash(h PasswordHasher) (ParsedHash, error) {
	encoded, err := h.Hash("voro-dummy-credential")
	if err != nil {
		return ParsedHash{}, oops.Code("AUTH_CONFIG_INVALID").With("operation", "hash dummy credential").Wrap(err)
	}
	parsed, err := ParseHash(encoded)
	if err != nil {
		return ParsedHash{}, oops.Code("AUTH_CONFIG_INVALID").With("operation", "parse dummy credential").Wrap(err)
	}
	return parsed, nil
}

// NeedsRehash reports whether encoded should be replaced by a hash from
// the current algorithm and parameters. Unparseable hashes report false;
// they fail verification instead.
func (m *CredentialManager) NeedsRehash(encoded string) bool {
	parsed, err := ParseHash(encoded)
	if err != nil {
		return false
	}
	return m.current.NeedsRehash(parsed)
}

func (m *CredentialManager) verifyParsed(ctx context.Context, password string, parsed ParsedHash) (bool, error) {
	hasher, ok := m.hashers[parsed.Algorithm]
	if !ok {
		return false, oops.Code("AUTH_INVALID_HASH").
			With("algorithm", parsed.Algorithm).
			Errorf("no hasher registered for algorithm")
	}

	if err := m.acquire(ctx); err != nil {
		return false, err
	}
	defer m.sem.Release(1)

	start := time.Now()
	ok, err := hasher.Verify(password, parsed)
	m.record(parsed.Algorithm, start)
	return ok, err
}

func (m *CredentialManager) acquire(ctx context.Context) error {
	if err := m.sem.Acquire(ctx, 1); err != nil {
		return oops.Code(CodeUnexpected).With("operation", "acquire hash slot").Wrap(err)
	}
	return nil
}

func (m *CredentialManager) record(alg Algorithm, start time.Time) {
	if m.observe != nil {
		m.observe(alg, time.Since(start))
	}
}
