// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Voro Contributors

package httpapi

import (
	"net/http"

	"github.com/samber/oops"

	"github.com/voro/voro/internal/auth"
	"github.com/voro/voro/internal/observability"
)

type registerResponse struct {
	UID      string `json:"uid"`
	Username string `json:"username"`
}

type loginResponse struct {
	Token string `json:"token"`
}

type meResponse struct {
	UID       string `json:"uid"`
	Username  string `json:"username"`
	IssuedAt  int64  `json:"issued_at"`
	ExpiresAt int64  `json:"expires_at"`
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeBody(r, SchemaRegister, &req); err != nil {
		a.metrics.RecordRegistration(observability.ResultFailure)
		a.writeError(w, r, err)
		return
	}

	user, err := a.service.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		a.metrics.RecordRegistration(observability.ResultFailure)
		a.writeError(w, r, err)
		return
	}

	a.metrics.RecordRegistration(observability.ResultSuccess)
	writeJSON(w, http.StatusCreated, registerResponse{UID: user.ID.String(), Username: user.Username})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeBody(r, SchemaLogin, &req); err != nil {
		a.writeError(w, r, err)
		return
	}

	ctx := r.Context()
	token, _, err := a.service.Login(ctx, req.Username, req.Password, ClientIPFromContext(ctx), r.UserAgent())
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	a.metrics.RecordTokenIssued()
	writeJSON(w, http.StatusOK, loginResponse{Token: token})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		a.writeError(w, r, missingIdentity())
		return
	}
	if err := a.service.Logout(r.Context(), id); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		a.writeError(w, r, missingIdentity())
		return
	}

	var req ChangePasswordRequest
	if err := decodeBody(r, SchemaChangePassword, &req); err != nil {
		a.writeError(w, r, err)
		return
	}

	if err := a.service.ChangePassword(r.Context(), id, req.OldPassword, req.NewPassword); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		a.writeError(w, r, missingIdentity())
		return
	}
	writeJSON(w, http.StatusOK, meResponse{
		UID:       id.Claims.UID,
		Username:  id.Claims.Username,
		IssuedAt:  id.Claims.IssuedAt,
		ExpiresAt: id.Claims.ExpiresAt,
	})
}

func missingIdentity() error {
	return oops.Code(auth.CodeUnauthenticated).Errorf("no identity in context")
}
