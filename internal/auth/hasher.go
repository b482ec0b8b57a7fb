// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Voro Contributors

package auth

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/bcrypt"
)

// Algorithm tags a stored password hash.
type Algorithm string

// Supported password hashing algorithms.
const (
	AlgorithmArgon2id Algorithm = "argon2id"
	AlgorithmBcrypt   Algorithm = "bcrypt"
)

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = oops.Code("AUTH_EMPTY_PASSWORD").Errorf("password cannot be empty")

// PasswordHasher hashes and verifies passwords for a single algorithm.
type PasswordHasher interface {
	// Algorithm reports the tag of hashes this hasher produces.
	Algorithm() Algorithm

	// Hash produces an encoded hash of the password.
	Hash(password string) (string, error)

	// Verify checks password against a parsed hash of this algorithm.
	// Returns (true, nil) on match, (false, nil) on mismatch, or error on
	// an unusable hash.
	Verify(password string, hash ParsedHash) (bool, error)

	// NeedsRehash reports whether hash was produced with parameters other
	// than this hasher's current ones.
	NeedsRehash(hash ParsedHash) bool
}

// Argon2idParams are the tunable argon2id costs.
type Argon2idParams struct {
	Memory  uint32 `koanf:"memory_kib" yaml:"memory_kib"`
	Time    uint32 `koanf:"time" yaml:"time"`
	Threads uint8  `koanf:"threads" yaml:"threads"`
	SaltLen uint32 `koanf:"salt_len" yaml:"salt_len"`
	KeyLen  uint32 `koanf:"key_len" yaml:"key_len"`
}

// ParsedHash is the decoded form of a stored hash. Fields that do not apply
// to Algorithm are zero.
type ParsedHash struct {
	Algorithm Algorithm
	Encoded   string

	Version int
	Argon2  Argon2idParams
	Salt    []byte
	Key     []byte

	Cost int
}

// ParseHash decodes an algorithm-tagged hash string.
func ParseHash(encoded string) (ParsedHash, error) {
	switch {
	case strings.HasPrefix(encoded, "$argon2id$"):
		return parseArgon2id(encoded)
	case strings.HasPrefix(encoded, "$2a$"),
		strings.HasPrefix(encoded, "$2b$"),
		strings.HasPrefix(encoded, "$2y$"):
		cost, err := bcrypt.Cost([]byte(encoded))
		if err != nil {
			return ParsedHash{}, oops.Code("AUTH_INVALID_HASH").With("algorithm", AlgorithmBcrypt).Wrap(err)
		}
		return ParsedHash{Algorithm: AlgorithmBcrypt, Encoded: encoded, Cost: cost}, nil
	default:
		return ParsedHash{}, oops.Code("AUTH_INVALID_HASH").Errorf("unrecognized hash format")
	}
}

// $argon2id$v=19$m=65536,t=3,p=1$<salt>$<key>
func parseArgon2id(encoded string) (ParsedHash, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 {
		return ParsedHash{}, oops.Code("AUTH_INVALID_HASH").Errorf("invalid hash format")
	}

	h := ParsedHash{Algorithm: AlgorithmArgon2id, Encoded: encoded}
	if _, err := fmt.Sscanf(parts[2], "v=%d", &h.Version); err != nil {
		return ParsedHash{}, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}

	var memory, time, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return ParsedHash{}, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	// Validate threads fits in uint8 to prevent silent truncation
	if threads == 0 || threads > 255 {
		return ParsedHash{}, oops.Code("AUTH_INVALID_HASH").Errorf("threads value %d out of range", threads)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return ParsedHash{}, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return ParsedHash{}, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	if len(key) == 0 || len(key) > 1<<10 {
		return ParsedHash{}, oops.Code("AUTH_INVALID_HASH").Errorf("invalid hash key length: %d", len(key))
	}

	h.Argon2 = Argon2idParams{
		Memory:  memory,
		Time:    time,
		Threads: uint8(threads),
		SaltLen: uint32(len(salt)),
		KeyLen:  uint32(len(key)),
	}
	h.Salt = salt
	h.Key = key
	return h, nil
}
