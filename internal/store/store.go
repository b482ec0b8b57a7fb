// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Voro Contributors

// Package store owns the PostgreSQL connection pool and schema migrations.
package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// Pool is the subset of *pgxpool.Pool used by repositories. pgxmock's
// PgxPoolIface satisfies it, so repositories can be unit tested without a
// database.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// ConnectConfig controls pool sizing and the startup retry policy.
type ConnectConfig struct {
	URL      string
	MaxConns int32

	// ConnectRetries is how many times a failed initial ping is retried.
	ConnectRetries uint64
	// ConnectBackoff is the first retry delay; it doubles on each attempt.
	ConnectBackoff time.Duration
	// MaxBackoff caps a single retry delay.
	MaxBackoff time.Duration
}

// Connect opens a pool and pings it, retrying with exponential backoff
// while the database comes up. Configuration errors are not retried.
func Connect(ctx context.Context, cfg ConnectConfig, logger *slog.Logger) (*pgxpool.Pool, error) {
	if logger == nil {
		logger = slog.Default()
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, oops.Code("DB_CONFIG_INVALID").With("operation", "parse database url").Wrap(err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "create pool").Wrap(err)
	}

	backoff := cfg.ConnectBackoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	b := retry.NewExponential(backoff)
	if cfg.MaxBackoff > 0 {
		b = retry.WithCappedDuration(cfg.MaxBackoff, b)
	}
	b = retry.WithMaxRetries(cfg.ConnectRetries, b)

	attempt := 0
	err = retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		if err := pool.Ping(ctx); err != nil {
			logger.WarnContext(ctx, "database not ready", "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, oops.Code("DB_CONNECT_FAILED").
			With("operation", "ping database").
			With("attempts", attempt).
			Wrap(err)
	}

	logger.InfoContext(ctx, "database connected", "attempts", attempt, "max_conns", poolCfg.MaxConns)
	return pool, nil
}
