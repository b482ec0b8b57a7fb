// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Voro Contributors

// Package cryptobox seals structured payloads into opaque bearer strings
// using AES-256-GCM with a key derived once from a passphrase and salt.
//
// A sealed token has three dot-separated base64url segments:
//
//	<nonce>.<tag>.<ciphertext>
//
// Open fails closed: every decoding, authentication, or parsing failure
// yields ErrInvalidToken and nothing else.
package cryptobox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/scrypt"
)

// Key derivation and AEAD parameters.
const (
	KeyLen   = 32
	NonceLen = 12
	TagLen   = 16

	scryptN = 1 << 14
	scryptR = 8
	scryptP = 1

	segmentSep = "."
)

// ErrInvalidToken is the only error Open returns.
var ErrInvalidToken = errors.New("invalid token")

// Strict decoding rejects non-canonical trailing bits so every encoded
// character is significant.
var segmentEncoding = base64.RawURLEncoding.Strict()

// Box holds the derived AEAD. It is immutable and safe for concurrent use.
type Box struct {
	aead cipher.AEAD
}

// New derives the symmetric key from secret and salt with scrypt and
// prepares the AEAD. Both inputs are required.
func New(secret, salt string) (*Box, error) {
	if secret == "" {
		return nil, oops.Code("CRYPTOBOX_CONFIG_INVALID").Errorf("secret cannot be empty")
	}
	if salt == "" {
		return nil, oops.Code("CRYPTOBOX_CONFIG_INVALID").Errorf("salt cannot be empty")
	}

	key, err := scrypt.Key([]byte(secret), []byte(salt), scryptN, scryptR, scryptP, KeyLen)
	if err != nil {
		return nil, oops.Code("CRYPTOBOX_KDF_FAILED").With("operation", "derive key").Wrap(err)
	}
	return NewWithKey(key)
}

// NewWithKey builds a Box from an already derived 32-byte key.
func NewWithKey(key []byte) (*Box, error) {
	if len(key) != KeyLen {
		return nil, oops.Code("CRYPTOBOX_CONFIG_INVALID").
			With("key_len", len(key)).
			Errorf("key must be %d bytes", KeyLen)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, oops.Code("CRYPTOBOX_CIPHER_FAILED").With("operation", "create block cipher").Wrap(err)
	}
	aead, err := cipher.NewGCMWithNonceSize(block, NonceLen)
	if err != nil {
		return nil, oops.Code("CRYPTOBOX_CIPHER_FAILED").With("operation", "create gcm").Wrap(err)
	}
	return &Box{aead: aead}, nil
}

// Seal serializes payload to JSON and encrypts it under a fresh random nonce.
func (b *Box) Seal(payload any) (string, error) {
	plaintext, err := json.Marshal(payload)
	if err != nil {
		return "", oops.Code("CRYPTOBOX_SEAL_FAILED").With("operation", "marshal payload").Wrap(err)
	}

	nonce := make([]byte, NonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return "", oops.Code("CRYPTOBOX_SEAL_FAILED").With("operation", "generate nonce").Wrap(err)
	}

	// GCM appends the tag to the ciphertext.
	sealed := b.aead.Seal(nil, nonce, plaintext, nil)
	ciphertext, tag := sealed[:len(sealed)-TagLen], sealed[len(sealed)-TagLen:]

	return segmentEncoding.EncodeToString(nonce) + segmentSep +
		segmentEncoding.EncodeToString(tag) + segmentSep +
		segmentEncoding.EncodeToString(ciphertext), nil
}

// Open authenticates and decrypts token, then unmarshals the JSON payload
// into dst. Any failure returns ErrInvalidToken.
func (b *Box) Open(token string, dst any) error {
	plaintext, ok := b.open(token)
	if !ok {
		return ErrInvalidToken
	}
	if err := json.Unmarshal(plaintext, dst); err != nil {
		return ErrInvalidToken
	}
	return nil
}

func (b *Box) open(token string) (plaintext []byte, ok bool) {
	defer func() {
		if recover() != nil {
			plaintext, ok = nil, false
		}
	}()

	parts := strings.Split(token, segmentSep)
	if len(parts) != 3 {
		return nil, false
	}

	nonce, err := segmentEncoding.DecodeString(parts[0])
	if err != nil || len(nonce) != NonceLen {
		return nil, false
	}
	tag, err := segmentEncoding.DecodeString(parts[1])
	if err != nil || len(tag) != TagLen {
		return nil, false
	}
	ciphertext, err := segmentEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, false
	}

	sealed := make([]byte, 0, len(ciphertext)+TagLen)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err = b.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, false
	}
	return plaintext, true
}
