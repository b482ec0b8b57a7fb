// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Voro Contributors

package store

import (
	"errors"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voro/voro/pkg/errutil"
)

type fakeMigrate struct {
	upErr      error
	downErr    error
	version    uint
	dirty      bool
	versionErr error
	forced     int
	forceErr   error
	srcErr     error
	dbErr      error
}

func (f *fakeMigrate) Up() error   { return f.upErr }
func (f *fakeMigrate) Down() error { return f.downErr }

func (f *fakeMigrate) Version() (uint, bool, error) {
	return f.version, f.dirty, f.versionErr
}

func (f *fakeMigrate) Force(v int) error {
	f.forced = v
	return f.forceErr
}

func (f *fakeMigrate) Close() (error, error) { return f.srcErr, f.dbErr }

func TestMigrateURL(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@h:5432/db", migrateURL("postgres://u:p@h:5432/db"))
	assert.Equal(t, "pgx5://u:p@h:5432/db", migrateURL("postgresql://u:p@h:5432/db"))
	assert.Equal(t, "pgx5://h/db", migrateURL("pgx5://h/db"))
}

func TestNewMigrator_InvalidURL(t *testing.T) {
	_, err := NewMigrator("badscheme://localhost:5432/testdb")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "MIGRATION_INIT_FAILED")
}

func TestMigrator_Up(t *testing.T) {
	require.NoError(t, (&Migrator{m: &fakeMigrate{}}).Up())
	require.NoError(t, (&Migrator{m: &fakeMigrate{upErr: migrate.ErrNoChange}}).Up())

	err := (&Migrator{m: &fakeMigrate{upErr: errors.New("syntax error")}}).Up()
	errutil.AssertErrorCode(t, err, "MIGRATION_UP_FAILED")
}

func TestMigrator_Down(t *testing.T) {
	require.NoError(t, (&Migrator{m: &fakeMigrate{downErr: migrate.ErrNoChange}}).Down())

	err := (&Migrator{m: &fakeMigrate{downErr: errors.New("locked")}}).Down()
	errutil.AssertErrorCode(t, err, "MIGRATION_DOWN_FAILED")
}

func TestMigrator_Version(t *testing.T) {
	v, dirty, err := (&Migrator{m: &fakeMigrate{versionErr: migrate.ErrNilVersion}}).Version()
	require.NoError(t, err)
	assert.Zero(t, v)
	assert.False(t, dirty)

	v, dirty, err = (&Migrator{m: &fakeMigrate{version: 2, dirty: true}}).Version()
	require.NoError(t, err)
	assert.Equal(t, uint(2), v)
	assert.True(t, dirty)

	_, _, err = (&Migrator{m: &fakeMigrate{versionErr: errors.New("boom")}}).Version()
	errutil.AssertErrorCode(t, err, "MIGRATION_VERSION_FAILED")
}

func TestMigrator_Force(t *testing.T) {
	f := &fakeMigrate{}
	m := &Migrator{m: f}

	require.NoError(t, m.Force(1))
	assert.Equal(t, 1, f.forced)

	errutil.AssertErrorCode(t, m.Force(-1), "INVALID_VERSION")

	f.forceErr = errors.New("nope")
	errutil.AssertErrorCode(t, m.Force(2), "MIGRATION_FORCE_FAILED")
}

func TestMigrator_Close(t *testing.T) {
	require.NoError(t, (&Migrator{m: &fakeMigrate{}}).Close())

	err := (&Migrator{m: &fakeMigrate{srcErr: errors.New("src"), dbErr: errors.New("db")}}).Close()
	errutil.AssertErrorCode(t, err, "MIGRATION_CLOSE_FAILED")
	assert.Contains(t, err.Error(), "src")
	assert.Contains(t, err.Error(), "db")
}

func TestMigrator_Status(t *testing.T) {
	st, err := (&Migrator{m: &fakeMigrate{version: 1}}).Status()
	require.NoError(t, err)
	assert.Equal(t, uint(1), st.Version)
	assert.Equal(t, []string{"000001_create_users"}, st.Applied)
	assert.Equal(t, []string{"000002_create_revoked_tokens"}, st.Pending)

	st, err = (&Migrator{m: &fakeMigrate{versionErr: migrate.ErrNilVersion}}).Status()
	require.NoError(t, err)
	assert.Empty(t, st.Applied)
	assert.Len(t, st.Pending, 2)
}
