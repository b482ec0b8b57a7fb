// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Voro Contributors

package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/voro/voro/internal/auth"
	"github.com/voro/voro/internal/cryptobox"
)

// Cheap argon2id parameters so tests do not allocate 64 MiB per hash.
var testArgon2 = auth.Argon2idParams{Memory: 1024, Time: 1, Threads: 1}

type fixedScore int

func (s fixedScore) Score(string, ...string) int { return int(s) }

func newTestCredentials(t *testing.T, alg auth.Algorithm) *auth.CredentialManager {
	t.Helper()
	m, err := auth.NewCredentialManager(auth.CredentialConfig{
		Algorithm:  alg,
		Argon2id:   testArgon2,
		BcryptCost: 4,
		MinScore:   auth.DefaultStrengthScore,
	}, fixedScore(4))
	require.NoError(t, err)
	return m
}

func newTestBox(t *testing.T) *cryptobox.Box {
	t.Helper()
	box, err := cryptobox.New("test-secret", "test-salt")
	require.NoError(t, err)
	return box
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func mustBox(t *testing.T, secret string) *cryptobox.Box {
	t.Helper()
	box, err := cryptobox.New(secret, "test-salt")
	require.NoError(t, err)
	return box
}
