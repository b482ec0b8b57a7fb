// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Voro Contributors

package auth

import "errors"

// Error codes surfaced to callers. Transport layers map these to
// responses; anything else is treated as unexpected.
const (
	CodeValidation          = "AUTH_VALIDATION"
	CodeWeakCredential      = "AUTH_WEAK_CREDENTIAL"
	CodeConflict            = "AUTH_CONFLICT"
	CodeUnauthenticated     = "AUTH_UNAUTHENTICATED"
	CodeOldPasswordMismatch = "AUTH_OLD_PASSWORD_MISMATCH"
	CodeUnexpected          = "AUTH_UNEXPECTED"
)

// Repository sentinels. Storage implementations wrap these so the service
// can classify failures without knowing the backend.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when a uniqueness constraint is violated.
	ErrDuplicate = errors.New("duplicate")

	// ErrConstraint is returned when stored data violates a schema rule.
	ErrConstraint = errors.New("constraint violation")
)
