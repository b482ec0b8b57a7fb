// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Voro Contributors

// Package postgres implements the auth repositories on PostgreSQL.
package postgres

import (
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/voro/voro/internal/auth"
)

// classify maps PostgreSQL constraint errors to the auth sentinels so the
// service can tell conflicts and bad input apart from outages. Other errors
// are returned unchanged.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		return errors.Join(auth.ErrDuplicate, err)
	case pgerrcode.CheckViolation,
		pgerrcode.NotNullViolation,
		pgerrcode.InvalidParameterValue,
		pgerrcode.StringDataRightTruncationDataException:
		return errors.Join(auth.ErrConstraint, err)
	default:
		return err
	}
}
