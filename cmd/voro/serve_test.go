// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Voro Contributors

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voro/voro/internal/auth"
	"github.com/voro/voro/internal/config"
	"github.com/voro/voro/internal/observability"
	"github.com/voro/voro/pkg/errutil"
)

const strongPassword = "violet-Harbor-42-lantern"

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Log.Level = "error"
	cfg.HTTP.Addr = "127.0.0.1:0"
	cfg.Metrics.Addr = ""
	cfg.Storage.Driver = config.StorageMemory
	cfg.Crypto.Secret = "test-secret"
	cfg.Crypto.Salt = "test-salt"
	cfg.Password.Argon2id = auth.Argon2idParams{Memory: 1024, Time: 1, Threads: 1, SaltLen: 16, KeyLen: 32}
	cfg.HTTP.ShutdownTimeout = 5 * time.Second
	return &cfg
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func postJSON(t *testing.T, h http.Handler, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestBuildApp_MemoryStorage(t *testing.T) {
	cfg := testConfig()
	metrics := observability.NewMetrics(prometheus.NewRegistry())

	a, ready, err := buildApp(context.Background(), cfg, (&Deps{}).withDefaults(), discardLogger(), metrics, nil)
	require.NoError(t, err)
	t.Cleanup(a.close)
	require.NoError(t, ready(context.Background()))

	creds := map[string]string{"username": "alice", "password": strongPassword}
	rec := postJSON(t, a.handler, "/register", "", creds)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = postJSON(t, a.handler, "/login", "", creds)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var login struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))

	rec = postJSON(t, a.handler, "/logout", login.Token, map[string]string{})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// The default register budget is one per two hours per client.
	rec = postJSON(t, a.handler, "/register", "", map[string]string{"username": "bob", "password": strongPassword})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestBuildApp_BucketAndRedisStores(t *testing.T) {
	mr := miniredis.RunT(t)

	tests := []struct {
		name  string
		store string
	}{
		{"bucket", config.RateStoreBucket},
		{"redis", config.RateStoreRedis},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.RateLimit.Store = tt.store
			cfg.RateLimit.Redis.Addr = mr.Addr()
			cfg.RateLimit.Global.Limit = 1

			a, ready, err := buildApp(context.Background(), cfg, (&Deps{}).withDefaults(), discardLogger(), nil, prometheus.NewRegistry())
			require.NoError(t, err)
			t.Cleanup(a.close)
			require.NoError(t, ready(context.Background()))

			get := func() int {
				rec := httptest.NewRecorder()
				a.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/me", nil))
				return rec.Code
			}
			assert.Equal(t, http.StatusUnauthorized, get())
			assert.Equal(t, http.StatusTooManyRequests, get())
		})
	}
}

func TestBuildApp_RedisReadiness(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.RateLimit.Store = config.RateStoreRedis
	cfg.RateLimit.Redis.Addr = mr.Addr()

	a, ready, err := buildApp(context.Background(), cfg, (&Deps{}).withDefaults(), discardLogger(), nil, nil)
	require.NoError(t, err)
	t.Cleanup(a.close)

	require.NoError(t, ready(context.Background()))
	mr.Close()
	assert.Error(t, ready(context.Background()))
}

func TestBuildApp_InvalidCrypto(t *testing.T) {
	cfg := testConfig()
	cfg.Crypto.Secret = ""

	_, _, err := buildApp(context.Background(), cfg, (&Deps{}).withDefaults(), discardLogger(), nil, nil)
	require.Error(t, err)
}

func TestOpenBackend_UnknownDriver(t *testing.T) {
	cfg := testConfig()
	cfg.Storage.Driver = "sqlite"

	_, err := openBackend(context.Background(), cfg, (&Deps{}).withDefaults(), discardLogger())
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
}

func TestReadiness(t *testing.T) {
	boom := errors.New("boom")
	ok := func(context.Context) error { return nil }
	fail := func(context.Context) error { return boom }

	assert.NoError(t, readiness()(context.Background()))
	assert.NoError(t, readiness(nil, ok)(context.Background()))
	assert.ErrorIs(t, readiness(ok, nil, fail)(context.Background()), boom)
}

func TestRunServe_RejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Crypto.Salt = ""

	err := runServeWithDeps(context.Background(), cfg, nil, nil)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
}

func TestRunServe_ListenFailure(t *testing.T) {
	deps := &Deps{
		ListenerFactory: func(string, string) (net.Listener, error) {
			return nil, errors.New("address in use")
		},
	}
	err := runServeWithDeps(context.Background(), testConfig(), nil, deps)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "HTTP_LISTEN_FAILED")
}

func TestRunServe_ServesUntilCancelled(t *testing.T) {
	addrCh := make(chan string, 1)
	deps := &Deps{
		ListenerFactory: func(network, address string) (net.Listener, error) {
			l, err := net.Listen(network, address)
			if err == nil {
				addrCh <- l.Addr().String()
			}
			return l, err
		},
	}

	cfg := testConfig()
	cfg.Metrics.Addr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- runServeWithDeps(ctx, cfg, nil, deps)
	}()

	var addr string
	select {
	case addr = <-addrCh:
	case err := <-done:
		t.Fatalf("serve exited early: %v", err)
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for listener")
	}

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/healthz")
		if err != nil {
			return false
		}
		defer func() { _ = resp.Body.Close() }()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	resp, err := http.Post("http://"+addr+"/register", "application/json",
		strings.NewReader(`{"username":"alice","password":"`+strongPassword+`"}`))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not shut down")
	}
}
