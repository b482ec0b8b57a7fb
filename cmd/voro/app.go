// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Voro Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"

	"github.com/voro/voro/internal/auth"
	"github.com/voro/voro/internal/auth/memory"
	"github.com/voro/voro/internal/auth/postgres"
	"github.com/voro/voro/internal/config"
	"github.com/voro/voro/internal/cryptobox"
	"github.com/voro/voro/internal/httpapi"
	"github.com/voro/voro/internal/observability"
	"github.com/voro/voro/internal/ratelimit"
	"github.com/voro/voro/internal/store"
)

// backend holds the user and revocation repositories of the configured
// storage driver.
type backend struct {
	users       auth.UserRepository
	revocations auth.RevocationStore
	ping        func(ctx context.Context) error
	close       func()
}

// openBackend connects the storage driver. With postgres and auto-migrate
// enabled, pending migrations are applied before the repositories are
// returned.
func openBackend(ctx context.Context, cfg *config.Config, deps *Deps, logger *slog.Logger) (*backend, error) {
	switch cfg.Storage.Driver {
	case config.StorageMemory:
		logger.Warn("using in-memory storage, accounts and revocations are lost on restart")
		return &backend{
			users:       memory.NewUserRepository(),
			revocations: memory.NewRevocationStore(),
			close:       func() {},
		}, nil

	case config.StoragePostgres:
		pool, err := deps.Connect(ctx, store.ConnectConfig{
			URL:            cfg.Database.URL,
			MaxConns:       cfg.Database.MaxConns,
			ConnectRetries: cfg.Database.ConnectRetries,
			ConnectBackoff: cfg.Database.ConnectBackoff,
			MaxBackoff:     cfg.Database.MaxBackoff,
		}, logger)
		if err != nil {
			return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
		}

		if cfg.Database.AutoMigrate {
			if err := migrateUp(deps, cfg.Database.URL); err != nil {
				pool.Close()
				return nil, err
			}
			logger.Info("database migrations applied")
		}

		return &backend{
			users:       postgres.NewUserRepository(pool),
			revocations: postgres.NewRevocationStore(pool),
			ping:        pool.Ping,
			close:       pool.Close,
		}, nil

	default:
		return nil, oops.Code("CONFIG_INVALID").
			With("key", "storage.driver").
			Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

func migrateUp(deps *Deps, databaseURL string) (err error) {
	m, err := deps.MigratorFactory(databaseURL)
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "create migrator").Wrap(err)
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
	}()
	if err := m.Up(); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "run migrations").Wrap(err)
	}
	return nil
}

// rateStore is the configured rate limit backend.
type rateStore struct {
	store ratelimit.Store
	ping  func(ctx context.Context) error
	close func()
}

func openRateStore(cfg *config.Config, deps *Deps, reg prometheus.Registerer, logger *slog.Logger) (*rateStore, error) {
	switch cfg.RateLimit.Store {
	case config.RateStoreMemory:
		s := ratelimit.NewMemoryStoreWithRegistry(ratelimit.MemoryConfig{
			CleanupInterval: cfg.RateLimit.CleanupInterval,
		}, reg)
		return &rateStore{store: s, close: s.Close}, nil

	case config.RateStoreBucket:
		s := ratelimit.NewBucketStoreWithRegistry(ratelimit.BucketConfig{
			CleanupInterval: cfg.RateLimit.CleanupInterval,
		}, reg)
		return &rateStore{store: s, close: s.Close}, nil

	case config.RateStoreRedis:
		client := deps.RedisClientFactory(cfg.RateLimit.Redis)
		s, err := ratelimit.NewRedisStore(client, cfg.RateLimit.Redis.Prefix)
		if err != nil {
			return nil, err
		}
		return &rateStore{
			store: s,
			ping: func(ctx context.Context) error {
				return client.Ping(ctx).Err()
			},
			close: func() {
				if err := client.Close(); err != nil {
					logger.Warn("error closing redis client", "error", err)
				}
			},
		}, nil

	default:
		return nil, oops.Code("CONFIG_INVALID").
			With("key", "ratelimit.store").
			Errorf("unknown rate limit store %q", cfg.RateLimit.Store)
	}
}

// readiness reports ready when every non-nil check passes.
func readiness(checks ...func(ctx context.Context) error) observability.ReadinessChecker {
	return func(ctx context.Context) error {
		for _, check := range checks {
			if check == nil {
				continue
			}
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

// app is the assembled service.
type app struct {
	handler http.Handler
	pruner  *auth.Pruner
	close   func()
}

// buildApp wires the token lifecycle components and the HTTP API.
func buildApp(ctx context.Context, cfg *config.Config, deps *Deps, logger *slog.Logger,
	metrics *observability.Metrics, reg prometheus.Registerer,
) (*app, observability.ReadinessChecker, error) {
	be, err := openBackend(ctx, cfg, deps, logger)
	if err != nil {
		return nil, nil, err
	}
	rs, err := openRateStore(cfg, deps, reg, logger)
	if err != nil {
		be.close()
		return nil, nil, err
	}
	closeAll := func() {
		rs.close()
		be.close()
	}

	a, err := assemble(cfg, be, rs, logger, metrics)
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	ready := readiness(be.ping, rs.ping)
	a.close = closeAll
	return a, ready, nil
}

func assemble(cfg *config.Config, be *backend, rs *rateStore, logger *slog.Logger, metrics *observability.Metrics) (*app, error) {
	box, err := cryptobox.New(cfg.Crypto.Secret, cfg.Crypto.Salt)
	if err != nil {
		return nil, err
	}

	creds, err := auth.NewCredentialManager(cfg.CredentialConfig(), auth.NewZxcvbnEstimator(),
		auth.WithHashObserver(metrics.ObserveHash))
	if err != nil {
		return nil, err
	}

	tokenCfg := cfg.TokenConfig()
	issuer, err := auth.NewTokenIssuer(box, tokenCfg)
	if err != nil {
		return nil, err
	}
	validator, err := auth.NewTokenValidator(box, be.revocations, tokenCfg)
	if err != nil {
		return nil, err
	}

	svc, err := auth.NewService(be.users, be.revocations, creds, issuer, auth.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	globalGate, err := ratelimit.NewGate(cfg.GlobalPolicy(), rs.store)
	if err != nil {
		return nil, err
	}
	registerGate, err := ratelimit.NewGate(cfg.RegisterPolicy(), rs.store)
	if err != nil {
		return nil, err
	}

	api, err := httpapi.New(httpapi.Deps{
		Auth:         svc,
		Validator:    validator,
		GlobalGate:   globalGate,
		RegisterGate: registerGate,
		Metrics:      metrics,
		Logger:       logger,
		Ready:        readiness(be.ping, rs.ping),
	}, httpapi.Options{
		BodyLimit:      cfg.HTTP.BodyLimit,
		RequestTimeout: cfg.HTTP.RequestTimeout,
		TrustProxy:     cfg.HTTP.TrustProxy,
	})
	if err != nil {
		return nil, err
	}

	return &app{
		handler: api.Handler(),
		pruner:  auth.NewPruner(be.revocations, cfg.Revocation.PruneInterval, logger),
	}, nil
}
