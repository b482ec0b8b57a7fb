// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Voro Contributors

//go:build integration

package postgres_test

import (
	"context"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/voro/voro/internal/auth"
	"github.com/voro/voro/internal/auth/postgres"
)

var _ = Describe("UserRepository", func() {
	var (
		ctx  context.Context
		repo *postgres.UserRepository
	)

	BeforeEach(func() {
		ctx = context.Background()
		repo = postgres.NewUserRepository(testPool)
		_, err := testPool.Exec(ctx, `TRUNCATE users`)
		Expect(err).NotTo(HaveOccurred())
	})

	It("round-trips a user", func() {
		user, err := auth.NewUser("Alice", "$argon2id$stored")
		Expect(err).NotTo(HaveOccurred())
		user.CreatedAt = user.CreatedAt.Truncate(time.Microsecond)
		user.UpdatedAt = user.CreatedAt
		Expect(repo.Create(ctx, user)).To(Succeed())

		got, err := repo.GetByUsername(ctx, "alice")
		Expect(err).NotTo(HaveOccurred())
		Expect(got.ID).To(Equal(user.ID))
		Expect(got.Username).To(Equal("Alice"))
		Expect(got.CreatedAt.Equal(user.CreatedAt)).To(BeTrue())

		byID, err := repo.GetByID(ctx, user.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(byID.PasswordHash).To(Equal("$argon2id$stored"))
	})

	It("rejects usernames differing only in case", func() {
		first, _ := auth.NewUser("bob", "h1")
		second, _ := auth.NewUser("BOB", "h2")
		Expect(repo.Create(ctx, first)).To(Succeed())

		err := repo.Create(ctx, second)
		Expect(err).To(MatchError(auth.ErrDuplicate))
	})

	It("maps check violations to constraint errors", func() {
		user, _ := auth.NewUser("carol", "h")
		user.Username = strings.Repeat("c", 40)

		err := repo.Create(ctx, user)
		Expect(err).To(MatchError(auth.ErrConstraint))
	})

	It("updates the password hash", func() {
		user, _ := auth.NewUser("dave", "old")
		Expect(repo.Create(ctx, user)).To(Succeed())
		Expect(repo.UpdatePassword(ctx, user.ID, "new")).To(Succeed())

		got, err := repo.GetByID(ctx, user.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.PasswordHash).To(Equal("new"))
		Expect(got.UpdatedAt.After(got.CreatedAt) || got.UpdatedAt.Equal(got.CreatedAt)).To(BeTrue())
	})

	It("reports missing users", func() {
		_, err := repo.GetByID(ctx, ulid.Make())
		Expect(err).To(MatchError(auth.ErrNotFound))
		Expect(repo.UpdatePassword(ctx, ulid.Make(), "x")).To(MatchError(auth.ErrNotFound))
	})
})

var _ = Describe("RevocationStore", func() {
	var (
		ctx   context.Context
		store *postgres.RevocationStore
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = postgres.NewRevocationStore(testPool)
		_, err := testPool.Exec(ctx, `TRUNCATE revoked_tokens`)
		Expect(err).NotTo(HaveOccurred())
	})

	It("revokes tokens permanently and idempotently", func() {
		entry := auth.RevocationEntry{
			Token:     "n.t.c",
			ExpiresAt: time.Now().Add(time.Hour),
			Reason:    auth.ReasonLogout,
		}
		Expect(store.Add(ctx, entry)).To(Succeed())
		Expect(store.Add(ctx, entry)).To(Succeed())

		ok, err := store.Exists(ctx, "n.t.c")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())

		ok, err = store.Exists(ctx, "n.t.C")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse(), "lookup is by exact token")
	})

	It("prunes only expired entries", func() {
		now := time.Now()
		Expect(store.Add(ctx, auth.RevocationEntry{Token: "old", ExpiresAt: now.Add(-time.Minute), Reason: auth.ReasonLogout})).To(Succeed())
		Expect(store.Add(ctx, auth.RevocationEntry{Token: "live", ExpiresAt: now.Add(time.Hour), Reason: auth.ReasonPasswordChange})).To(Succeed())

		n, err := store.PruneExpired(ctx, now)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(int64(1)))

		ok, _ := store.Exists(ctx, "live")
		Expect(ok).To(BeTrue())
	})

	It("rejects unknown reasons", func() {
		err := store.Add(ctx, auth.RevocationEntry{Token: "x", ExpiresAt: time.Now(), Reason: "stolen"})
		Expect(err).To(MatchError(auth.ErrConstraint))
	})
})
