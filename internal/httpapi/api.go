// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Voro Contributors

// Package httpapi exposes the authentication service over HTTP.
//
// Routes:
//
//	POST /register         create a user (register rate limit)
//	POST /login            exchange credentials for a bearer token
//	POST /logout           revoke the presented token
//	POST /change-password  verify, rotate the hash, revoke the token
//	GET  /me               the authenticated identity
//	GET  /healthz          liveness
//	GET  /readyz           readiness
//
// Every route except the probes is behind the global rate limit.
// Authentication failures are an empty 401.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/voro/voro/internal/auth"
	"github.com/voro/voro/internal/observability"
	"github.com/voro/voro/internal/ratelimit"
)

var tracer = otel.Tracer("github.com/voro/voro/internal/httpapi")

// Defaults for Options.
const (
	DefaultBodyLimit      = 1 << 20
	DefaultRequestTimeout = 10 * time.Second
)

// AuthService is the account and session surface the handlers call.
// *auth.Service implements it.
type AuthService interface {
	Register(ctx context.Context, username, password string) (*auth.User, error)
	Login(ctx context.Context, username, password, clientIP, userAgent string) (string, auth.SessionClaims, error)
	Logout(ctx context.Context, id *auth.Identity) error
	ChangePassword(ctx context.Context, id *auth.Identity, oldPassword, newPassword string) error
}

// TokenValidator authenticates bearer tokens. *auth.TokenValidator
// implements it.
type TokenValidator interface {
	Validate(ctx context.Context, authorization, clientIP, userAgent string) (*auth.Identity, error)
}

// Deps are the collaborators of the API. Auth and Validator are required.
type Deps struct {
	Auth      AuthService
	Validator TokenValidator

	// GlobalGate and RegisterGate are optional; nil disables the limit.
	GlobalGate   *ratelimit.Gate
	RegisterGate *ratelimit.Gate

	Metrics *observability.Metrics
	Logger  *slog.Logger
	Ready   observability.ReadinessChecker
}

// Options tune request handling.
type Options struct {
	BodyLimit      int64
	RequestTimeout time.Duration
	TrustProxy     bool
}

// API serves the authentication routes.
type API struct {
	service      AuthService
	validator    TokenValidator
	globalGate   *ratelimit.Gate
	registerGate *ratelimit.Gate
	metrics      *observability.Metrics
	logger       *slog.Logger
	ready        observability.ReadinessChecker
	opts         Options
}

// New creates the API.
func New(deps Deps, opts Options) (*API, error) {
	if deps.Auth == nil {
		return nil, oops.Code("HTTP_CONFIG_INVALID").Errorf("auth service is required")
	}
	if deps.Validator == nil {
		return nil, oops.Code("HTTP_CONFIG_INVALID").Errorf("token validator is required")
	}
	if opts.BodyLimit <= 0 {
		opts.BodyLimit = DefaultBodyLimit
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &API{
		service:      deps.Auth,
		validator:    deps.Validator,
		globalGate:   deps.GlobalGate,
		registerGate: deps.RegisterGate,
		metrics:      deps.Metrics,
		logger:       logger,
		ready:        deps.Ready,
		opts:         opts,
	}, nil
}

// Handler returns the routed handler wrapped in the middleware chain.
func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /healthz", observability.LivenessHandler())
	mux.Handle("GET /readyz", observability.ReadinessHandler(a.ready))
	mux.Handle("POST /register", a.rateLimit(a.registerGate, a.traced("register", a.handleRegister)))
	mux.Handle("POST /login", a.traced("login", a.handleLogin))
	mux.Handle("POST /logout", a.traced("logout", a.requireAuth(a.handleLogout)))
	mux.Handle("POST /change-password", a.traced("change_password", a.requireAuth(a.handleChangePassword)))
	mux.Handle("GET /me", a.traced("me", a.requireAuth(a.handleMe)))

	var h http.Handler = mux
	h = limitBody(a.opts.BodyLimit, h)
	h = withTimeout(a.opts.RequestTimeout, h)
	h = a.globalLimit(h)
	h = securityHeaders(h)
	h = a.logRequests(h)
	h = resolveClientIP(a.opts.TrustProxy, h)
	h = requestID(h)
	h = a.recoverPanics(h)
	return h
}

// globalLimit applies the global gate to everything but the probes.
func (a *API) globalLimit(next http.Handler) http.Handler {
	limited := a.rateLimit(a.globalGate, next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/healthz", "/readyz":
			next.ServeHTTP(w, r)
		default:
			limited.ServeHTTP(w, r)
		}
	})
}

// traced runs h inside a span named after the route.
func (a *API) traced(route string, h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "http."+route)
		defer span.End()
		span.SetAttributes(
			attribute.String("http.route", route),
			attribute.String("http.method", r.Method),
		)
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		h(sw, r.WithContext(ctx))
		span.SetAttributes(attribute.Int("http.status_code", sw.code))
	})
}
