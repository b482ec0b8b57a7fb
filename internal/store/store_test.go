// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Voro Contributors

package store_test

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/voro/voro/internal/store"
	"github.com/voro/voro/pkg/errutil"
)

func TestConnect_InvalidURL(t *testing.T) {
	_, err := store.Connect(context.Background(), store.ConnectConfig{URL: "://not a url"}, nil)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "DB_CONFIG_INVALID")
}

func TestPool_SatisfiedByPgxmock(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	var _ store.Pool = mock
}
