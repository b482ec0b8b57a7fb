// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Voro Contributors

package auth

import (
	"context"
	"regexp"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Rejection names the check a token failed. Callers see the same
// unauthenticated error for all of them; the reason is for logs and
// metrics.
type Rejection string

// Rejections in the order the checks run.
const (
	RejectNone                Rejection = ""
	RejectNoToken             Rejection = "no_token"
	RejectMalformedHeader     Rejection = "malformed_header"
	RejectRevoked             Rejection = "revoked"
	RejectDecryptFailed       Rejection = "decrypt_failed"
	RejectVersionMismatch     Rejection = "version_mismatch"
	RejectExpired             Rejection = "expired"
	RejectFingerprintMismatch Rejection = "fingerprint_mismatch"
)

var bearerRegex = regexp.MustCompile(`^Bearer\s(.+)$`)

var tracer = otel.Tracer("github.com/voro/voro/internal/auth")

// RevocationChecker is the read side of RevocationStore.
type RevocationChecker interface {
	Exists(ctx context.Context, token string) (bool, error)
}

// TokenValidator runs the fixed check chain on a bearer token.
type TokenValidator struct {
	box         Sealer
	revocations RevocationChecker
	cfg         TokenConfig
}

// NewTokenValidator creates a TokenValidator.
func NewTokenValidator(box Sealer, revocations RevocationChecker, cfg TokenConfig) (*TokenValidator, error) {
	if box == nil {
		return nil, oops.Code("AUTH_CONFIG_INVALID").Errorf("sealer is required")
	}
	if revocations == nil {
		return nil, oops.Code("AUTH_CONFIG_INVALID").Errorf("revocation store is required")
	}
	if cfg.Version < 1 {
		return nil, oops.Code("AUTH_CONFIG_INVALID").With("version", cfg.Version).Errorf("token version must be positive")
	}
	return &TokenValidator{box: box, revocations: revocations, cfg: cfg.withDefaults()}, nil
}

// ExtractBearer pulls the token out of an Authorization header value.
func ExtractBearer(header string) (string, Rejection) {
	if header == "" {
		return "", RejectNoToken
	}
	m := bearerRegex.FindStringSubmatch(header)
	if m == nil {
		return "", RejectMalformedHeader
	}
	return m[1], RejectNone
}

// Validate checks the Authorization header of a request from clientIP with
// userAgent. The checks run in order and stop at the first failure:
// header, revocation, decryption, version, expiry, fingerprint.
//
// Failed checks return AUTH_UNAUTHENTICATED; use RejectionOf for the
// reason. A revocation lookup failure returns AUTH_UNEXPECTED.
func (v *TokenValidator) Validate(ctx context.Context, authorization, clientIP, userAgent string) (*Identity, error) {
	ctx, span := tracer.Start(ctx, "auth.validate_token")
	defer span.End()

	id, err := v.validate(ctx, authorization, clientIP, userAgent)
	if err != nil {
		if r := RejectionOf(err); r != RejectNone {
			span.SetAttributes(attribute.String("auth.rejection", string(r)))
		} else {
			span.RecordError(err)
			span.SetStatus(codes.Error, "revocation lookup failed")
		}
		return nil, err
	}
	span.SetAttributes(attribute.String("auth.uid", id.Claims.UID))
	return id, nil
}

func (v *TokenValidator) validate(ctx context.Context, authorization, clientIP, userAgent string) (*Identity, error) {
	token, r := ExtractBearer(authorization)
	if r != RejectNone {
		return nil, reject(r)
	}

	revoked, err := v.revocations.Exists(ctx, token)
	if err != nil {
		return nil, oops.Code(CodeUnexpected).With("operation", "check revocation").Wrap(err)
	}
	if revoked {
		return nil, reject(RejectRevoked)
	}

	var claims SessionClaims
	if err := v.box.Open(token, &claims); err != nil {
		return nil, reject(RejectDecryptFailed)
	}

	if claims.TokenVersion != v.cfg.Version {
		return nil, reject(RejectVersionMismatch)
	}

	if claims.ExpiredAt(v.cfg.Now()) {
		return nil, reject(RejectExpired)
	}

	if v.cfg.BindFingerprint && !claims.Fingerprint.Equal(ComputeFingerprint(clientIP, userAgent)) {
		return nil, reject(RejectFingerprintMismatch)
	}

	return &Identity{Claims: claims, Token: token}, nil
}

func reject(r Rejection) error {
	return oops.Code(CodeUnauthenticated).With("rejection", r).Errorf("unauthenticated")
}

// RejectionOf returns the failed check carried by a validation error, or
// RejectNone for any other error.
func RejectionOf(err error) Rejection {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return RejectNone
	}
	r, _ := oopsErr.Context()["rejection"].(Rejection)
	return r
}
