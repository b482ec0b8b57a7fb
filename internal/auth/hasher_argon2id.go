// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Voro Contributors

package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
)

// Upper bounds accepted when verifying a stored hash. A tampered row must
// not be able to make a single verification allocate unbounded memory.
const (
	maxArgon2Memory = 1 << 20 // 1 GiB in KiB
	maxArgon2Time   = 16
)

// DefaultArgon2idParams returns m=64 MiB, t=3, p=1 with a 16-byte salt and
// 32-byte key.
func DefaultArgon2idParams() Argon2idParams {
	return Argon2idParams{
		Memory:  64 * 1024,
		Time:    3,
		Threads: 1,
		SaltLen: 16,
		KeyLen:  32,
	}
}

// Argon2idHasher implements PasswordHasher using argon2id.
type Argon2idHasher struct {
	params Argon2idParams
}

// NewArgon2idHasher creates an Argon2idHasher. Zero fields in params take
// their default values.
func NewArgon2idHasher(params Argon2idParams) *Argon2idHasher {
	def := DefaultArgon2idParams()
	if params.Memory == 0 {
		params.Memory = def.Memory
	}
	if params.Time == 0 {
		params.Time = def.Time
	}
	if params.Threads == 0 {
		params.Threads = def.Threads
	}
	if params.SaltLen == 0 {
		params.SaltLen = def.SaltLen
	}
	if params.KeyLen == 0 {
		params.KeyLen = def.KeyLen
	}
	return &Argon2idHasher{params: params}
}

// Algorithm returns AlgorithmArgon2id.
func (h *Argon2idHasher) Algorithm() Algorithm {
	return AlgorithmArgon2id
}

// Hash produces a PHC-format argon2id hash of the password.
func (h *Argon2idHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	salt := make([]byte, h.params.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("AUTH_SALT_FAILED").Wrap(err)
	}

	key := argon2.IDKey([]byte(password), salt, h.params.Time, h.params.Memory, h.params.Threads, h.params.KeyLen)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.Memory,
		h.params.Time,
		h.params.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify recomputes the key with the stored parameters and compares in
// constant time.
func (h *Argon2idHasher) Verify(password string, hash ParsedHash) (bool, error) {
	if hash.Algorithm != AlgorithmArgon2id {
		return false, oops.Code("AUTH_INVALID_HASH").
			With("algorithm", hash.Algorithm).
			Errorf("not an argon2id hash")
	}
	if hash.Version != argon2.Version {
		return false, oops.Code("AUTH_INVALID_HASH").Errorf("unsupported argon2 version %d", hash.Version)
	}
	p := hash.Argon2
	if p.Memory == 0 || p.Memory > maxArgon2Memory || p.Time == 0 || p.Time > maxArgon2Time {
		return false, oops.Code("AUTH_INVALID_HASH").
			With("memory", p.Memory).
			With("time", p.Time).
			Errorf("argon2id parameters out of bounds")
	}

	computed := argon2.IDKey([]byte(password), hash.Salt, p.Time, p.Memory, p.Threads, uint32(len(hash.Key)))
	return subtle.ConstantTimeCompare(computed, hash.Key) == 1, nil
}

// NeedsRehash reports a hash that is not argon2id or differs from the
// configured parameters.
func (h *Argon2idHasher) NeedsRehash(hash ParsedHash) bool {
	if hash.Algorithm != AlgorithmArgon2id {
		return true
	}
	p := hash.Argon2
	return p.Memory != h.params.Memory ||
		p.Time != h.params.Time ||
		p.Threads != h.params.Threads ||
		p.KeyLen != h.params.KeyLen ||
		p.SaltLen != h.params.SaltLen
}
