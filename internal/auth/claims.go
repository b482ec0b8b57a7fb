// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Voro Contributors

package auth

import (
	"crypto/subtle"
	"encoding/hex"
	"time"

	"golang.org/x/crypto/blake2b"
)

// Fingerprint binds a token to the client that requested it. Each field is
// an independent BLAKE2b-256 hex digest.
type Fingerprint struct {
	IP string `json:"ip"`
	UA string `json:"ua"`
}

// ComputeFingerprint digests the client IP and User-Agent.
func ComputeFingerprint(clientIP, userAgent string) Fingerprint {
	ip := blake2b.Sum256([]byte(clientIP))
	ua := blake2b.Sum256([]byte(userAgent))
	return Fingerprint{
		IP: hex.EncodeToString(ip[:]),
		UA: hex.EncodeToString(ua[:]),
	}
}

// Equal compares both digests in constant time.
func (f Fingerprint) Equal(other Fingerprint) bool {
	ip := subtle.ConstantTimeCompare([]byte(f.IP), []byte(other.IP))
	ua := subtle.ConstantTimeCompare([]byte(f.UA), []byte(other.UA))
	return ip&ua == 1
}

// SessionClaims is the sealed token payload. Times are unix milliseconds.
type SessionClaims struct {
	UID          string      `json:"uid"`
	Username     string      `json:"username"`
	IssuedAt     int64       `json:"issued_at"`
	ExpiresAt    int64       `json:"expires_at"`
	TokenVersion int         `json:"token_version"`
	Fingerprint  Fingerprint `json:"client_fingerprint"`
}

// IssuedTime returns IssuedAt as a time.
func (c SessionClaims) IssuedTime() time.Time {
	return time.UnixMilli(c.IssuedAt).UTC()
}

// ExpiresTime returns ExpiresAt as a time.
func (c SessionClaims) ExpiresTime() time.Time {
	return time.UnixMilli(c.ExpiresAt).UTC()
}

// ExpiredAt reports whether the claims are no longer valid at now.
func (c SessionClaims) ExpiredAt(now time.Time) bool {
	return c.ExpiresAt <= now.UnixMilli()
}
