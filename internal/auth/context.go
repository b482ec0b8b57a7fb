// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Voro Contributors

package auth

import "context"

// Identity is the authenticated caller of a request.
type Identity struct {
	Claims SessionClaims
	// Token is the raw bearer token, kept so logout can revoke it.
	Token string
}

type identityKey struct{}

// WithIdentity returns a context carrying id.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the identity attached by the validator.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(*Identity)
	return id, ok && id != nil
}
