// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Voro Contributors

package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/voro/voro/internal/auth"
	"github.com/voro/voro/internal/ratelimit"
	"github.com/voro/voro/pkg/errutil"
)

// errorBody is the envelope for non-auth failures.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// StatusFor maps an error code to its HTTP status. Unknown codes are 500.
func StatusFor(code string) int {
	switch code {
	case auth.CodeValidation, auth.CodeOldPasswordMismatch:
		return http.StatusBadRequest
	case auth.CodeWeakCredential:
		return http.StatusUnprocessableEntity
	case auth.CodeConflict:
		return http.StatusConflict
	case auth.CodeUnauthenticated:
		return http.StatusUnauthorized
	case ratelimit.CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeBodyTooLarge:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err. Authentication failures get an empty 401 so the
// reason never reaches the client; unexpected errors are logged and
// answered with a generic body.
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := errutil.Code(err)
	status := StatusFor(code)

	switch status {
	case http.StatusUnauthorized:
		w.WriteHeader(status)
		return
	case http.StatusTooManyRequests:
		if d, ok := ratelimit.RetryAfter(err); ok {
			w.Header().Set("Retry-After", strconv.Itoa(ratelimit.Decision{RetryAfter: d}.RetryAfterSeconds()))
		}
	case http.StatusInternalServerError:
		errutil.LogError(r.Context(), a.logger, "request failed", err)
		writeJSON(w, status, errorBody{Error: errorDetail{
			Code:    auth.CodeUnexpected,
			Message: "internal error",
		}})
		return
	}

	writeJSON(w, status, errorBody{Error: errorDetail{
		Code:    code,
		Message: err.Error(),
	}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // client may have gone away
	json.NewEncoder(w).Encode(v)
}
