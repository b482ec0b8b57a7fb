// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Voro Contributors

// Package auth implements the token lifecycle for Voro: credential hashing
// and strength policy, sealed bearer token issuance, request validation,
// and revocation.
//
// Tokens are stateless. A token is valid when it decrypts under the
// service key, carries the configured token version, has not expired,
// matches the client fingerprint it was bound to, and is absent from the
// revocation store.
package auth
