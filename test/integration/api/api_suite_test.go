// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Voro Contributors

//go:build integration

package api_test

import (
	"context"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/prometheus/client_golang/prometheus"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/voro/voro/internal/auth"
	authpg "github.com/voro/voro/internal/auth/postgres"
	"github.com/voro/voro/internal/cryptobox"
	"github.com/voro/voro/internal/httpapi"
	"github.com/voro/voro/internal/observability"
	"github.com/voro/voro/internal/ratelimit"
	"github.com/voro/voro/internal/store"
)

func TestAPI(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "API Integration Suite")
}

// testEnv holds the resources shared by the API specs.
type testEnv struct {
	ctx         context.Context
	pool        *pgxpool.Pool
	container   *postgres.PostgresContainer
	server      *httptest.Server
	revocations *authpg.RevocationStore
	rateStore   *ratelimit.MemoryStore
}

var env *testEnv

var _ = BeforeSuite(func() {
	var err error
	env, err = setupAPITestEnv()
	Expect(err).NotTo(HaveOccurred())
})

var _ = AfterSuite(func() {
	if env != nil {
		env.cleanup()
	}
})

func setupAPITestEnv() (*testEnv, error) {
	ctx := context.Background()
	logger := slog.New(slog.DiscardHandler)

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("voro_test"),
		postgres.WithUsername("voro"),
		postgres.WithPassword("voro"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, err
	}
	e := &testEnv{ctx: ctx, container: container}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		e.cleanup()
		return nil, err
	}

	migrator, err := store.NewMigrator(connStr)
	if err != nil {
		e.cleanup()
		return nil, err
	}
	if err := migrator.Up(); err != nil {
		_ = migrator.Close()
		e.cleanup()
		return nil, err
	}
	if err := migrator.Close(); err != nil {
		e.cleanup()
		return nil, err
	}

	e.pool, err = store.Connect(ctx, store.ConnectConfig{URL: connStr, ConnectRetries: 3}, logger)
	if err != nil {
		e.cleanup()
		return nil, err
	}

	box, err := cryptobox.New("integration-secret", "integration-salt")
	if err != nil {
		e.cleanup()
		return nil, err
	}
	creds, err := auth.NewCredentialManager(auth.CredentialConfig{
		Algorithm: auth.AlgorithmArgon2id,
		Argon2id:  auth.Argon2idParams{Memory: 1024, Time: 1, Threads: 1, SaltLen: 16, KeyLen: 32},
		MinScore:  auth.DefaultStrengthScore,
	}, auth.NewZxcvbnEstimator())
	if err != nil {
		e.cleanup()
		return nil, err
	}

	tokenCfg := auth.TokenConfig{TTL: time.Hour, Version: 1, BindFingerprint: true}
	issuer, err := auth.NewTokenIssuer(box, tokenCfg)
	if err != nil {
		e.cleanup()
		return nil, err
	}
	e.revocations = authpg.NewRevocationStore(e.pool)
	validator, err := auth.NewTokenValidator(box, e.revocations, tokenCfg)
	if err != nil {
		e.cleanup()
		return nil, err
	}
	svc, err := auth.NewService(authpg.NewUserRepository(e.pool), e.revocations, creds, issuer, auth.WithLogger(logger))
	if err != nil {
		e.cleanup()
		return nil, err
	}

	e.rateStore = ratelimit.NewMemoryStore(ratelimit.MemoryConfig{})
	registerGate, err := ratelimit.NewGate(ratelimit.Policy{Route: ratelimit.RouteRegister, Limit: 100, Window: time.Hour}, e.rateStore)
	if err != nil {
		e.cleanup()
		return nil, err
	}

	api, err := httpapi.New(httpapi.Deps{
		Auth:         svc,
		Validator:    validator,
		RegisterGate: registerGate,
		Metrics:      observability.NewMetrics(prometheus.NewRegistry()),
		Logger:       logger,
		Ready:        e.pool.Ping,
	}, httpapi.Options{})
	if err != nil {
		e.cleanup()
		return nil, err
	}
	e.server = httptest.NewServer(api.Handler())

	return e, nil
}

func (e *testEnv) cleanup() {
	if e.server != nil {
		e.server.Close()
	}
	if e.rateStore != nil {
		e.rateStore.Close()
	}
	if e.pool != nil {
		e.pool.Close()
	}
	if e.container != nil {
		_ = e.container.Terminate(e.ctx)
	}
}
