package database

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/acolher/core"
)

func TestTransactor_InTx(t *testing.T) {
	ctx := context.Background()

	t.Run("commit", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO case_file_history").WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("UPDATE case_files").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err = NewTransactor(db).InTx(ctx, func(exec core.DBExecutor) error {
			if _, err := exec.ExecContext(ctx, "INSERT INTO case_file_history (id) VALUES ($1)", "h1"); err != nil {
				return err
			}
			_, err := exec.ExecContext(ctx, "UPDATE case_files SET status = $1", "draft")
			return err
		})
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rollback on failure", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		failure := errors.New("insert failed")
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO case_file_history").WillReturnError(failure)
		mock.ExpectRollback()

		updated := false
		err = NewTransactor(db).InTx(ctx, func(exec core.DBExecutor) error {
			if _, err := exec.ExecContext(ctx, "INSERT INTO case_file_history (id) VALUES ($1)", "h1"); err != nil {
				return err
			}
			updated = true
			return nil
		})
		assert.Equal(t, failure, errors.Cause(err))
		assert.False(t, updated)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rollback on panic", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectRollback()

		assert.Panics(t, func() {
			_ = NewTransactor(db).InTx(ctx, func(exec core.DBExecutor) error {
				panic("boom")
			})
		})
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("begin fails", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin().WillReturnError(errors.New("connection refused"))

		called := false
		err = NewTransactor(db).InTx(ctx, func(exec core.DBExecutor) error {
			called = true
			return nil
		})
		assert.EqualError(t, err, "starting transaction: connection refused")
		assert.False(t, called)
	})
}

func TestDSN(t *testing.T) {
	conf := core.NewTestConfig()
	conf.Database = core.DatabaseConfig{
		Engine:        "postgres",
		Host:          "db",
		Port:          "5432",
		Name:          "acolher",
		User:          "acolher",
		Password:      "s3cr3t",
		AdminUser:     "postgres",
		AdminPassword: "root",
	}

	assert.Equal(t, "postgres://acolher:s3cr3t@db:5432/acolher?sslmode=require&timezone=utc", dsn(conf, "acolher", false))
	assert.Equal(t, "postgres://postgres:root@db:5432/postgres?sslmode=require&timezone=utc", dsn(conf, maintenanceDB, true))

	conf.Database.AdminUser = ""
	conf.Database.DisableTLS = true
	assert.Equal(t, "postgres://acolher:s3cr3t@db:5432/postgres?sslmode=disable&timezone=utc", dsn(conf, maintenanceDB, true))
}

func TestWaitReady(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	assert.NoError(t, waitReady(context.Background(), db))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, waitReady(ctx, db), context.Canceled)
}

func TestEnsureRole(t *testing.T) {
	ctx := context.Background()
	lookup := regexp.QuoteMeta("SELECT true FROM pg_roles WHERE rolname = $1")

	t.Run("no app role", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		assert.NoError(t, ensureRole(ctx, db, "", ""))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("exists", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(lookup).WithArgs("acolher").WillReturnRows(sqlmock.NewRows([]string{"bool"}).AddRow(true))

		assert.NoError(t, ensureRole(ctx, db, "acolher", "s3cr3t"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("created with quoted password", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(lookup).WithArgs("acolher").WillReturnRows(sqlmock.NewRows([]string{"bool"}))
		mock.ExpectExec(regexp.QuoteMeta(`CREATE ROLE "acolher" LOGIN CREATEDB ENCRYPTED PASSWORD 'it''s'`)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.NoError(t, ensureRole(ctx, db, "acolher", "it's"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("lookup fails", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(lookup).WillReturnError(errors.New("permission denied"))

		assert.EqualError(t, ensureRole(ctx, db, "acolher", "x"), "looking up role acolher: permission denied")
	})
}

func TestEnsureDatabase(t *testing.T) {
	ctx := context.Background()
	lookup := regexp.QuoteMeta("SELECT true FROM pg_database WHERE datname = $1")

	t.Run("exists", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(lookup).WithArgs("acolher").WillReturnRows(sqlmock.NewRows([]string{"bool"}).AddRow(true))

		assert.NoError(t, ensureDatabase(ctx, db, "acolher"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("created", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(lookup).WithArgs("acolher").WillReturnRows(sqlmock.NewRows([]string{"bool"}))
		mock.ExpectExec(regexp.QuoteMeta(`CREATE DATABASE "acolher"`)).WillReturnError(errors.New("disk full"))

		assert.EqualError(t, ensureDatabase(ctx, db, "acolher"), "creating database acolher: disk full")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
