// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Voro Contributors

package auth

import (
	"context"
	"regexp"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Username and password shape constraints.
const (
	MinUsernameLength = 3
	MaxUsernameLength = 16

	MinPasswordLength = 8
	MaxPasswordLength = 60
)

// usernameRegex matches usernames that start with a letter and contain
// only letters, digits, and underscores.
var usernameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

// User is a registered account.
type User struct {
	ID           ulid.ULID
	Username     string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewUser validates the username and builds a user with a fresh ID.
func NewUser(username, passwordHash string) (*User, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	if passwordHash == "" {
		return nil, oops.Code(CodeValidation).Errorf("password hash cannot be empty")
	}
	now := time.Now().UTC()
	return &User{
		ID:           ulid.Make(),
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// ValidateUsername checks length and character rules.
func ValidateUsername(username string) error {
	if err := ValidateUsernameLength(username); err != nil {
		return err
	}
	if !usernameRegex.MatchString(username) {
		return oops.Code(CodeValidation).
			With("field", "username").
			Errorf("username must start with a letter and contain only letters, numbers, and underscores")
	}
	return nil
}

// ValidateUsernameLength checks only the length bounds. Login uses it so
// a name that could never have registered reads as an unknown user.
func ValidateUsernameLength(username string) error {
	if username == "" {
		return oops.Code(CodeValidation).With("field", "username").Errorf("username cannot be empty")
	}
	if len(username) < MinUsernameLength || len(username) > MaxUsernameLength {
		return oops.Code(CodeValidation).
			With("field", "username").
			With("min", MinUsernameLength).
			With("max", MaxUsernameLength).
			Errorf("username must be %d to %d characters", MinUsernameLength, MaxUsernameLength)
	}
	return nil
}

// ValidatePasswordShape checks the length bounds of a password. Strength
// is a separate concern handled by CredentialManager.
func ValidatePasswordShape(field, password string) error {
	n := utf8.RuneCountInString(password)
	if n < MinPasswordLength || n > MaxPasswordLength {
		return oops.Code(CodeValidation).
			With("field", field).
			With("min", MinPasswordLength).
			With("max", MaxPasswordLength).
			Errorf("%s must be %d to %d characters", field, MinPasswordLength, MaxPasswordLength)
	}
	return nil
}

// UserRepository manages user persistence.
type UserRepository interface {
	// Create stores a new user. Returns ErrDuplicate if the username is taken.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*User, error)

	// GetByUsername retrieves a user by username (case-insensitive).
	GetByUsername(ctx context.Context, username string) (*User, error)

	// UpdatePassword replaces the stored password hash.
	UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error
}
