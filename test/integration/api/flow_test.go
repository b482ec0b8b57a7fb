// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Voro Contributors

//go:build integration

package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/oklog/ulid/v2"
)

const (
	firstPassword  = "violet-Harbor-42-lantern"
	secondPassword = "quartz-Meadow-17-cinder"
)

func call(method, path, token string, body any) *http.Response {
	var buf bytes.Buffer
	if body != nil {
		Expect(json.NewEncoder(&buf).Encode(body)).To(Succeed())
	}
	req, err := http.NewRequestWithContext(env.ctx, method, env.server.URL+path, &buf)
	Expect(err).NotTo(HaveOccurred())
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "voro-integration/1.0")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := env.server.Client().Do(req)
	Expect(err).NotTo(HaveOccurred())
	DeferCleanup(resp.Body.Close)
	return resp
}

func login(username, password string) string {
	resp := call(http.MethodPost, "/login", "", map[string]string{"username": username, "password": password})
	Expect(resp.StatusCode).To(Equal(http.StatusOK))
	var out struct {
		Token string `json:"token"`
	}
	Expect(json.NewDecoder(resp.Body).Decode(&out)).To(Succeed())
	return out.Token
}

// uniqueName returns a short username that is valid and unused.
func uniqueName() string {
	return "u" + ulid.Make().String()[16:]
}

var _ = Describe("Token lifecycle against PostgreSQL", func() {
	var username string

	BeforeEach(func() {
		username = uniqueName()
		resp := call(http.MethodPost, "/register", "", map[string]string{"username": username, "password": firstPassword})
		Expect(resp.StatusCode).To(Equal(http.StatusCreated))
	})

	It("rejects a second registration of the same name", func() {
		resp := call(http.MethodPost, "/register", "", map[string]string{"username": username, "password": firstPassword})
		Expect(resp.StatusCode).To(Equal(http.StatusConflict))
	})

	It("issues a token that identifies the user", func() {
		token := login(username, firstPassword)

		resp := call(http.MethodGet, "/me", token, nil)
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		var me struct {
			Username  string `json:"username"`
			ExpiresAt int64  `json:"expires_at"`
		}
		Expect(json.NewDecoder(resp.Body).Decode(&me)).To(Succeed())
		Expect(me.Username).To(Equal(username))
		Expect(time.UnixMilli(me.ExpiresAt)).To(BeTemporally("~", time.Now().Add(time.Hour), time.Minute))
	})

	It("revokes the token on logout", func() {
		token := login(username, firstPassword)

		Expect(call(http.MethodPost, "/logout", token, nil).StatusCode).To(Equal(http.StatusNoContent))
		Expect(call(http.MethodGet, "/me", token, nil).StatusCode).To(Equal(http.StatusUnauthorized))

		exists, err := env.revocations.Exists(env.ctx, token)
		Expect(err).NotTo(HaveOccurred())
		Expect(exists).To(BeTrue())
	})

	It("rotates the password and revokes the current token", func() {
		token := login(username, firstPassword)

		resp := call(http.MethodPost, "/change-password", token, map[string]string{
			"old_password": firstPassword,
			"new_password": secondPassword,
		})
		Expect(resp.StatusCode).To(Equal(http.StatusNoContent))

		Expect(call(http.MethodGet, "/me", token, nil).StatusCode).To(Equal(http.StatusUnauthorized))
		Expect(call(http.MethodPost, "/login", "", map[string]string{
			"username": username, "password": firstPassword,
		}).StatusCode).To(Equal(http.StatusUnauthorized))

		fresh := login(username, secondPassword)
		Expect(call(http.MethodGet, "/me", fresh, nil).StatusCode).To(Equal(http.StatusOK))
	})

	It("reports ready while the database is reachable", func() {
		Expect(call(http.MethodGet, "/readyz", "", nil).StatusCode).To(Equal(http.StatusOK))
	})
})
