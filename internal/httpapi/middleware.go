// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Voro Contributors

package httpapi

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/voro/voro/internal/auth"
	"github.com/voro/voro/internal/logging"
	"github.com/voro/voro/internal/ratelimit"
	"github.com/voro/voro/pkg/errutil"
)

// RequestIDHeader carries the per-request id back to the client.
const RequestIDHeader = "X-Request-ID"

const contentSecurityPolicy = "default-src 'self'; script-src 'self'; style-src 'self' 'unsafe-inline'; " +
	"img-src 'self' data:; connect-src 'self'; font-src 'self'; object-src 'none'; frame-ancestors 'none'"

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

type clientIPKey struct{}

// ClientIPFromContext returns the address resolved by the client IP
// middleware.
func ClientIPFromContext(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey{}).(string)
	return ip
}

// recoverPanics turns a handler panic into a logged 500.
func (a *API) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				err := oops.Code("HTTP_PANIC").With("path", r.URL.Path).Errorf("panic: %v", rec)
				a.writeError(w, r, err)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// requestID tags the request context and response with a fresh ULID.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := ulid.Make().String()
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logging.WithRequestID(r.Context(), id)))
	})
}

// logRequests logs method, path, status and duration of every request.
func (a *API) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(sw, r)
		a.logger.InfoContext(r.Context(), "request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.code,
			"duration", time.Since(start),
			"client_ip", ClientIPFromContext(r.Context()),
		)
	})
}

// securityHeaders sets the hardening headers on every response.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-XSS-Protection", "0")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Strict-Transport-Security", "max-age=63072000; includeSubDomains; preload")
		h.Set("Content-Security-Policy", contentSecurityPolicy)
		next.ServeHTTP(w, r)
	})
}

// resolveClientIP stores the client address in the context. With
// trustProxy the first X-Forwarded-For hop wins.
func resolveClientIP(trustProxy bool, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r, trustProxy)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), clientIPKey{}, ip)))
	})
}

func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if first = strings.TrimSpace(first); first != "" {
				return first
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// limitBody caps the request body size.
func limitBody(maxBytes int64, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		}
		next.ServeHTTP(w, r)
	})
}

// withTimeout bounds the request context. Blocking work below honours it.
func withTimeout(d time.Duration, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), d)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// rateLimit applies gate keyed by client IP. A store failure is logged and
// the request is let through.
func (a *API) rateLimit(gate *ratelimit.Gate, next http.Handler) http.Handler {
	if gate == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.admit(w, r, gate) {
			return
		}
		next.ServeHTTP(w, r)
	})
}

// admit records an attempt on gate and writes the 429 when it is refused.
func (a *API) admit(w http.ResponseWriter, r *http.Request, gate *ratelimit.Gate) bool {
	ctx := r.Context()
	d, err := gate.Allow(ctx, ClientIPFromContext(ctx))
	if err != nil {
		errutil.LogError(ctx, a.logger, "rate limit check failed", err)
		return true
	}
	if d.Allowed {
		return true
	}

	a.metrics.RecordRateLimited(gate.Route())
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("ratelimit.route", gate.Route()))
	a.logger.InfoContext(ctx, "rate limited", "route", gate.Route(), "retry_after", d.RetryAfter)
	a.writeError(w, r, ratelimit.Exceeded(gate.Route(), d))
	return false
}

// requireAuth runs the token validator and attaches the identity.
func (a *API) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, err := a.validator.Validate(ctx, r.Header.Get("Authorization"), ClientIPFromContext(ctx), r.UserAgent())
		a.metrics.RecordValidation(err)
		if err != nil {
			if rej := auth.RejectionOf(err); rej != auth.RejectNone {
				a.logger.InfoContext(ctx, "token rejected", "rejection", string(rej))
			}
			a.writeError(w, r, err)
			return
		}
		next(w, r.WithContext(auth.WithIdentity(ctx, id)))
	}
}
