// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Voro Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voro/voro/internal/store"
	"github.com/voro/voro/pkg/errutil"
)

func TestRevocationsPrune_Memory(t *testing.T) {
	output, err := execute(t, nil, "revocations", "prune", "--storage-driver", "memory", "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, output, "Pruned 0 expired revocations")
}

func TestRevocationsPrune_ConnectFailure(t *testing.T) {
	deps := &Deps{
		Connect: func(context.Context, store.ConnectConfig, *slog.Logger) (*pgxpool.Pool, error) {
			return nil, errors.New("connection refused")
		},
	}
	_, err := execute(t, deps, "revocations", "prune", "--database-url", testDatabaseURL, "--log-level", "error")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "DB_CONNECT_FAILED")
}

func TestOpenBackend_PostgresAutoMigrate(t *testing.T) {
	m := &fakeMigrator{}
	deps := migratorDeps(m, nil)
	deps.Connect = func(ctx context.Context, cfg store.ConnectConfig, _ *slog.Logger) (*pgxpool.Pool, error) {
		// The pool connects lazily, so no server is needed.
		return pgxpool.New(ctx, cfg.URL)
	}

	cfg := testConfig()
	cfg.Storage.Driver = "postgres"
	cfg.Database.URL = testDatabaseURL
	cfg.Database.AutoMigrate = true

	be, err := openBackend(context.Background(), cfg, deps.withDefaults(), discardLogger())
	require.NoError(t, err)
	defer be.close()

	assert.Equal(t, 1, m.upCalls)
	assert.True(t, m.closed)
	assert.NotNil(t, be.ping)
}

func TestOpenBackend_AutoMigrateFailure(t *testing.T) {
	m := &fakeMigrator{upErr: errors.New("dirty")}
	deps := migratorDeps(m, nil)
	deps.Connect = func(ctx context.Context, cfg store.ConnectConfig, _ *slog.Logger) (*pgxpool.Pool, error) {
		return pgxpool.New(ctx, cfg.URL)
	}

	cfg := testConfig()
	cfg.Storage.Driver = "postgres"
	cfg.Database.URL = testDatabaseURL
	cfg.Database.AutoMigrate = true

	_, err := openBackend(context.Background(), cfg, deps.withDefaults(), discardLogger())
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "MIGRATION_FAILED")
}
