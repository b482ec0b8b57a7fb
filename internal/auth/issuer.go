// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Voro Contributors

package auth

import (
	"time"

	"github.com/samber/oops"
)

// Token defaults.
const (
	DefaultTokenTTL     = time.Hour
	DefaultTokenVersion = 1
)

// Sealer encrypts and decrypts token payloads. *cryptobox.Box implements it.
type Sealer interface {
	Seal(payload any) (string, error)
	Open(token string, dst any) error
}

// TokenConfig is shared by the issuer and validator.
type TokenConfig struct {
	TTL time.Duration
	// Version is embedded in every token. Bumping it voids all tokens
	// issued under the previous value.
	Version int
	// BindFingerprint enables the client fingerprint check on validation.
	BindFingerprint bool
	// Now overrides the clock. Nil means time.Now.
	Now func() time.Time
}

func (c TokenConfig) withDefaults() TokenConfig {
	if c.TTL <= 0 {
		c.TTL = DefaultTokenTTL
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// TokenIssuer mints sealed session tokens.
type TokenIssuer struct {
	box Sealer
	cfg TokenConfig
}

// NewTokenIssuer creates a TokenIssuer.
func NewTokenIssuer(box Sealer, cfg TokenConfig) (*TokenIssuer, error) {
	if box == nil {
		return nil, oops.Code("AUTH_CONFIG_INVALID").Errorf("sealer is required")
	}
	if cfg.Version < 1 {
		return nil, oops.Code("AUTH_CONFIG_INVALID").With("version", cfg.Version).Errorf("token version must be positive")
	}
	return &TokenIssuer{box: box, cfg: cfg.withDefaults()}, nil
}

// Issue builds claims for the user and client and seals them.
func (i *TokenIssuer) Issue(uid, username, clientIP, userAgent string) (string, SessionClaims, error) {
	now := i.cfg.Now()
	claims := SessionClaims{
		UID:          uid,
		Username:     username,
		IssuedAt:     now.UnixMilli(),
		ExpiresAt:    now.Add(i.cfg.TTL).UnixMilli(),
		TokenVersion: i.cfg.Version,
		Fingerprint:  ComputeFingerprint(clientIP, userAgent),
	}

	token, err := i.box.Seal(claims)
	if err != nil {
		return "", SessionClaims{}, oops.Code(CodeUnexpected).
			With("operation", "seal token").
			With("uid", uid).
			Wrap(err)
	}
	return token, claims, nil
}
