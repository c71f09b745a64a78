package database

import (
	"io"
	"log"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"

	"github.com/connorferster/python-course-admin/core"
	appfs "github.com/connorferster/python-course-admin/fs"
)

const migrationsDir = "migrations"

// Connect connects to the configured database and waits for it to be ready.
func Connect(conf *core.Config) (*sqlx.DB, error) {
	if conf.Storage.Engine != core.StorageSQLite && conf.Storage.Engine != core.StoragePostgres {
		return nil, errors.Wrapf(core.ErrInvalidConfiguration, "storage engine %q is not a database", conf.Storage.Engine)
	}
	db, err := sqlx.Open(conf.Storage.Engine, conf.Storage.DSN)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	if conf.Storage.Engine == core.StorageSQLite {
		db.SetMaxOpenConns(1) // sqlite has a single writer
	}
	if err = ping(db); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "pinging database")
	}
	return db, nil
}

// Open connects to the configured database then applies the migrations.
func Open(conf *core.Config) (*sqlx.DB, error) {
	db, err := Connect(conf)
	if err != nil {
		return nil, err
	}
	if err = Migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// ping waits for the database to be ready. Waits 100ms longer between each attempt.
func ping(db *sqlx.DB) error {
	var err error
	maxAttempts := 10
	for attempts := 1; attempts <= maxAttempts; attempts++ {
		err = db.Ping()
		if err == nil {
			break
		}
		time.Sleep(time.Duration(attempts) * 100 * time.Millisecond)
	}

	if err != nil {
		return errors.Wrap(err, "DB ping timeout")
	}
	return nil
}

var (
	gooseLogger  goose.Logger = log.New(io.Discard, "", 0) // mockable
	gooseRunFunc              = goose.Run                  // mockable
)

// SetMigrationLogger sets where the migration commands report to.
func SetMigrationLogger(l goose.Logger) {
	gooseLogger = l
}

func prepareMigrations(db *sqlx.DB) error {
	goose.SetBaseFS(appfs.FS)
	goose.SetLogger(gooseLogger)
	return errors.Wrap(goose.SetDialect(db.DriverName()), "setting migration dialect")
}

// Migrate applies the embedded migrations that have not been applied yet.
func Migrate(db *sqlx.DB) error {
	return RunMigration(db, "up")
}

// RunMigration runs a goose command (up, down, status, version, redo, reset, up-to V...) against
// the embedded migrations.
func RunMigration(db *sqlx.DB, command string, args ...string) error {
	if err := prepareMigrations(db); err != nil {
		return err
	}
	if err := gooseRunFunc(command, db.DB, migrationsDir, args...); err != nil {
		return errors.Wrapf(err, "migrate %s", command)
	}
	return nil
}
