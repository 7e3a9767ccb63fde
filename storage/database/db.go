package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/trezcool/goose"

	"github.com/trezcool/acolher/core"
	"github.com/trezcool/acolher/storage/database/migrations"
)

const (
	maintenanceDB = "postgres"

	pingAttempts = 30
	pingStep     = 100 * time.Millisecond
)

// dsn builds the connection URL of dbName, as the admin role when asAdmin is set and one is configured.
func dsn(conf *core.Config, dbName string, asAdmin bool) string {
	dbc := conf.Database
	user := url.UserPassword(dbc.User, dbc.Password)
	if asAdmin && dbc.AdminUser != "" {
		user = url.UserPassword(dbc.AdminUser, dbc.AdminPassword)
	}
	q := url.Values{"timezone": {"utc"}, "sslmode": {"require"}}
	if dbc.DisableTLS {
		q.Set("sslmode", "disable")
	}
	return (&url.URL{Scheme: dbc.Engine, User: user, Host: dbc.Address(), Path: dbName, RawQuery: q.Encode()}).String()
}

// connect opens dbName and waits for the server to answer.
func connect(ctx context.Context, conf *core.Config, dbName string, asAdmin bool) (*sql.DB, error) {
	db, err := sql.Open(conf.Database.Engine, dsn(conf, dbName, asAdmin))
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", dbName)
	}
	if err = waitReady(ctx, db); err != nil {
		_ = db.Close()
		return nil, errors.Wrapf(err, "%s unreachable", dbName)
	}
	return db, nil
}

// waitReady pings db until it answers, waiting one step longer after each failure.
func waitReady(ctx context.Context, db *sql.DB) (err error) {
	for attempt := 1; attempt <= pingAttempts; attempt++ {
		if err = db.PingContext(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * pingStep):
		}
	}
	return err
}

// Open connects to the application database.
func Open(conf *core.Config) (*sql.DB, error) {
	return connect(context.Background(), conf, conf.Database.Name, false)
}

// CreateIfNotExist provisions the application role (as admin) then its database (as that role).
func CreateIfNotExist(conf *core.Config) error {
	ctx := context.Background()

	adminDB, err := connect(ctx, conf, maintenanceDB, true)
	if err != nil {
		return err
	}
	err = ensureRole(ctx, adminDB, conf.Database.User, conf.Database.Password)
	_ = adminDB.Close()
	if err != nil {
		return err
	}

	appDB, err := connect(ctx, conf, maintenanceDB, false)
	if err != nil {
		return err
	}
	defer func() { _ = appDB.Close() }()
	return ensureDatabase(ctx, appDB, conf.Database.Name)
}

func exists(ctx context.Context, db core.DBExecutor, query string, arg interface{}) (bool, error) {
	var found bool
	err := db.QueryRowContext(ctx, query, arg).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return found, err
}

// ensureRole creates the login role the app connects as. An empty name means the admin role is used throughout.
func ensureRole(ctx context.Context, db core.DBExecutor, name, password string) error {
	if name == "" {
		return nil
	}
	found, err := exists(ctx, db, "SELECT true FROM pg_roles WHERE rolname = $1", name)
	if err != nil {
		return errors.Wrapf(err, "looking up role %s", name)
	}
	if found {
		return nil
	}
	q := fmt.Sprintf("CREATE ROLE %s LOGIN CREATEDB ENCRYPTED PASSWORD %s", pq.QuoteIdentifier(name), pq.QuoteLiteral(password))
	if _, err = db.ExecContext(ctx, q); err != nil {
		return errors.Wrapf(err, "creating role %s", name)
	}
	return nil
}

func ensureDatabase(ctx context.Context, db core.DBExecutor, name string) error {
	found, err := exists(ctx, db, "SELECT true FROM pg_database WHERE datname = $1", name)
	if err != nil {
		return errors.Wrapf(err, "looking up database %s", name)
	}
	if found {
		return nil
	}
	if _, err = db.ExecContext(ctx, "CREATE DATABASE "+pq.QuoteIdentifier(name)); err != nil {
		return errors.Wrapf(err, "creating database %s", name)
	}
	return nil
}

// MigrationsDir is the root of the embedded migrations FS.
const MigrationsDir = "."

func Migrate(db *sql.DB) error {
	if err := goose.RunFS("up", db, migrations.FS, MigrationsDir); err != nil {
		return errors.Wrap(err, "migrating database")
	}
	return nil
}

type transactor struct {
	db core.DB
}

var _ core.Transactor = (*transactor)(nil) // interface compliance check

// NewTransactor runs units of work in postgres transactions.
func NewTransactor(db core.DB) core.Transactor {
	return &transactor{db: db}
}

func (t *transactor) InTx(ctx context.Context, fn func(exec core.DBExecutor) error) (err error) {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "starting transaction")
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err = fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Wrapf(err, "rolling back: %v", rbErr)
		}
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}
