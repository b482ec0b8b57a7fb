// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Voro Contributors

package auth_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/voro/voro/internal/auth"
	"github.com/voro/voro/internal/auth/memory"
	"github.com/voro/voro/internal/auth/mocks"
)

func TestPruner_PruneOnce(t *testing.T) {
	ctx := context.Background()
	store := memory.NewRevocationStore()
	now := time.Now()

	require.NoError(t, store.Add(ctx, auth.RevocationEntry{Token: "old", ExpiresAt: now.Add(-time.Hour)}))
	require.NoError(t, store.Add(ctx, auth.RevocationEntry{Token: "live", ExpiresAt: now.Add(time.Hour)}))

	var buf bytes.Buffer
	p := auth.NewPruner(store, time.Minute, slog.New(slog.NewTextHandler(&buf, nil)))

	n, err := p.PruneOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Contains(t, buf.String(), "pruned revocations")

	ok, err := store.Exists(ctx, "live")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPruner_PruneOnceError(t *testing.T) {
	store := mocks.NewMockRevocationStore(t)
	store.On("PruneExpired", mock.Anything, mock.Anything).Return(int64(0), errors.New("db gone")).Once()

	p := auth.NewPruner(store, time.Minute, nil)
	_, err := p.PruneOnce(context.Background())
	assert.Error(t, err)
}

func TestPruner_RunStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := mocks.NewMockRevocationStore(t)
	store.On("PruneExpired", mock.Anything, mock.Anything).Return(int64(0), nil).Maybe()

	p := auth.NewPruner(store, 5*time.Millisecond, slog.New(slog.DiscardHandler))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pruner did not stop")
	}
}

func TestPruner_DisabledReturnsImmediately(t *testing.T) {
	p := auth.NewPruner(memory.NewRevocationStore(), 0, nil)

	done := make(chan struct{})
	go func() {
		p.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("disabled pruner should return immediately")
	}
}
