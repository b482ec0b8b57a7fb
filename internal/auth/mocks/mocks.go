// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Voro Contributors

// Package mocks provides testify mocks for the auth interfaces.
package mocks

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/mock"

	"github.com/voro/voro/internal/auth"
)

type testingT interface {
	mock.TestingT
	Cleanup(func())
}

// MockUserRepository is a mock of auth.UserRepository.
type MockUserRepository struct {
	mock.Mock
}

// NewMockUserRepository creates a mock that asserts its expectations on cleanup.
func NewMockUserRepository(t testingT) *MockUserRepository {
	m := &MockUserRepository{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Create provides a mock function.
func (m *MockUserRepository) Create(ctx context.Context, user *auth.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

// GetByID provides a mock function.
func (m *MockUserRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.User, error) {
	args := m.Called(ctx, id)
	user, _ := args.Get(0).(*auth.User)
	return user, args.Error(1)
}

// GetByUsername provides a mock function.
func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*auth.User, error) {
	args := m.Called(ctx, username)
	user, _ := args.Get(0).(*auth.User)
	return user, args.Error(1)
}

// UpdatePassword provides a mock function.
func (m *MockUserRepository) UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error {
	args := m.Called(ctx, id, passwordHash)
	return args.Error(0)
}

// MockRevocationStore is a mock of auth.RevocationStore.
type MockRevocationStore struct {
	mock.Mock
}

// NewMockRevocationStore creates a mock that asserts its expectations on cleanup.
func NewMockRevocationStore(t testingT) *MockRevocationStore {
	m := &MockRevocationStore{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Add provides a mock function.
func (m *MockRevocationStore) Add(ctx context.Context, entry auth.RevocationEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

// Exists provides a mock function.
func (m *MockRevocationStore) Exists(ctx context.Context, token string) (bool, error) {
	args := m.Called(ctx, token)
	return args.Bool(0), args.Error(1)
}

// PruneExpired provides a mock function.
func (m *MockRevocationStore) PruneExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	n, _ := args.Get(0).(int64)
	return n, args.Error(1)
}

// MockStrengthEstimator is a mock of auth.StrengthEstimator.
type MockStrengthEstimator struct {
	mock.Mock
}

// NewMockStrengthEstimator creates a mock that asserts its expectations on cleanup.
func NewMockStrengthEstimator(t testingT) *MockStrengthEstimator {
	m := &MockStrengthEstimator{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Score provides a mock function.
func (m *MockStrengthEstimator) Score(password string, userInputs ...string) int {
	args := m.Called(password, userInputs)
	return args.Int(0)
}
