// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Voro Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/voro/voro/pkg/errutil"
)

// Service provides registration, login, logout and password change.
type Service struct {
	users       UserRepository
	revocations RevocationStore
	creds       *CredentialManager
	issuer      *TokenIssuer
	logger      *slog.Logger
	now         func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the clock used for revocation timestamps.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a Service. All dependencies are required.
func NewService(users UserRepository, revocations RevocationStore, creds *CredentialManager, issuer *TokenIssuer, opts ...ServiceOption) (*Service, error) {
	if users == nil {
		return nil, oops.Code("AUTH_CONFIG_INVALID").Errorf("users repository is required")
	}
	if revocations == nil {
		return nil, oops.Code("AUTH_CONFIG_INVALID").Errorf("revocation store is required")
	}
	if creds == nil {
		return nil, oops.Code("AUTH_CONFIG_INVALID").Errorf("credential manager is required")
	}
	if issuer == nil {
		return nil, oops.Code("AUTH_CONFIG_INVALID").Errorf("token issuer is required")
	}
	s := &Service{
		users:       users,
		revocations: revocations,
		creds:       creds,
		issuer:      issuer,
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Register creates a user after validating the username and the password
// shape and strength.
func (s *Service) Register(ctx context.Context, username, password string) (*User, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	if err := ValidatePasswordShape("password", password); err != nil {
		return nil, err
	}
	if err := s.creds.CheckStrength(password, username); err != nil {
		return nil, err
	}

	hash, err := s.creds.Hash(ctx, password)
	if err != nil {
		return nil, oops.Code(CodeUnexpected).With("operation", "hash password").Wrap(err)
	}

	user, err := NewUser(username, hash)
	if err != nil {
		return nil, err
	}

	if err := s.users.Create(ctx, user); err != nil {
		switch {
		case errors.Is(err, ErrDuplicate):
			return nil, oops.Code(CodeConflict).With("username", username).Errorf("username already taken")
		case errors.Is(err, ErrConstraint):
			return nil, oops.Code(CodeValidation).
				With("username", username).
				With("cause", err.Error()).
				Errorf("user record rejected")
		default:
			return nil, oops.Code(CodeUnexpected).With("operation", "create user").Wrap(err)
		}
	}

	s.logger.InfoContext(ctx, "user registered", "uid", user.ID.String(), "username", user.Username)
	return user, nil
}

// Login verifies credentials and issues a token bound to the client.
// Unknown users and wrong passwords yield the same error after the same
// amount of hashing work.
func (s *Service) Login(ctx context.Context, username, password, clientIP, userAgent string) (string, SessionClaims, error) {
	if err := ValidateUsernameLength(username); err != nil {
		return "", SessionClaims{}, err
	}
	if err := ValidatePasswordShape("password", password); err != nil {
		return "", SessionClaims{}, err
	}
	if err := s.creds.CheckStrength(password, username); err != nil {
		return "", SessionClaims{}, err
	}
	if !usernameRegex.MatchString(username) {
		s.creds.VerifyDummy(ctx, password)
		return "", SessionClaims{}, invalidCredentials()
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return "", SessionClaims{}, oops.Code(CodeUnexpected).
				With("operation", "get user by username").
				Wrap(err)
		}
		s.creds.VerifyDummy(ctx, password)
		return "", SessionClaims{}, invalidCredentials()
	}

	ok, err := s.creds.Verify(ctx, password, user.PasswordHash)
	if err != nil {
		return "", SessionClaims{}, oops.Code(CodeUnexpected).
			With("operation", "verify password").
			With("uid", user.ID.String()).
			Wrap(err)
	}
	if !ok {
		return "", SessionClaims{}, invalidCredentials()
	}

	if s.creds.NeedsRehash(user.PasswordHash) {
		s.rehash(ctx, user, password)
	}

	token, claims, err := s.issuer.Issue(user.ID.String(), user.Username, clientIP, userAgent)
	if err != nil {
		return "", SessionClaims{}, err
	}
	s.logger.InfoContext(ctx, "user logged in", "uid", claims.UID)
	return token, claims, nil
}

// Logout revokes the caller's token.
func (s *Service) Logout(ctx context.Context, id *Identity) error {
	if id == nil {
		return oops.Code(CodeUnauthenticated).Errorf("unauthenticated")
	}
	if err := s.revoke(ctx, id, ReasonLogout); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "user logged out", "uid", id.Claims.UID)
	return nil
}

// ChangePassword verifies the old password, gates the new one on strength,
// revokes the current token and stores the new hash.
func (s *Service) ChangePassword(ctx context.Context, id *Identity, oldPassword, newPassword string) error {
	if id == nil {
		return oops.Code(CodeUnauthenticated).Errorf("unauthenticated")
	}
	if err := ValidatePasswordShape("old_password", oldPassword); err != nil {
		return err
	}
	if err := ValidatePasswordShape("new_password", newPassword); err != nil {
		return err
	}

	uid, err := ulid.Parse(id.Claims.UID)
	if err != nil {
		return oops.Code(CodeUnauthenticated).With("uid", id.Claims.UID).Errorf("invalid subject")
	}
	user, err := s.users.GetByID(ctx, uid)
	if err != nil {
		// The outer code must win, and oops reports the deepest one.
		if errors.Is(err, ErrNotFound) {
			return oops.Code(CodeUnauthenticated).With("uid", id.Claims.UID).Errorf("unknown subject")
		}
		return oops.Code(CodeUnexpected).With("operation", "get user by id").Wrap(err)
	}

	ok, err := s.creds.Verify(ctx, oldPassword, user.PasswordHash)
	if err != nil {
		return oops.Code(CodeUnexpected).With("operation", "verify password").Wrap(err)
	}
	if !ok {
		return oops.Code(CodeOldPasswordMismatch).Errorf("old password does not match")
	}

	if err := s.creds.CheckStrength(newPassword, user.Username); err != nil {
		return err
	}
	hash, err := s.creds.Hash(ctx, newPassword)
	if err != nil {
		return oops.Code(CodeUnexpected).With("operation", "hash password").Wrap(err)
	}

	if err := s.revoke(ctx, id, ReasonPasswordChange); err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return oops.Code(CodeUnexpected).With("operation", "update password").Wrap(err)
	}

	s.logger.InfoContext(ctx, "password changed", "uid", id.Claims.UID)
	return nil
}

func (s *Service) revoke(ctx context.Context, id *Identity, reason RevocationReason) error {
	entry := RevocationEntry{
		Token:     id.Token,
		RevokedAt: s.now().UTC(),
		ExpiresAt: id.Claims.ExpiresTime(),
		Reason:    reason,
	}
	if err := s.revocations.Add(ctx, entry); err != nil {
		return oops.Code(CodeUnexpected).
			With("operation", "revoke token").
			With("reason", reason).
			Wrap(err)
	}
	return nil
}

// rehash replaces a legacy or outdated hash. Failures are logged and the
// login still succeeds.
func (s *Service) rehash(ctx context.Context, user *User, password string) {
	hash, err := s.creds.Hash(ctx, password)
	if err == nil {
		err = s.users.UpdatePassword(ctx, user.ID, hash)
	}
	if err != nil {
		errutil.LogError(ctx, s.logger, "password rehash failed", err)
		return
	}
	s.logger.InfoContext(ctx, "password rehashed", "uid", user.ID.String(), "algorithm", s.creds.Algorithm())
}

func invalidCredentials() error {
	return oops.Code(CodeUnauthenticated).Errorf("invalid username or password")
}
