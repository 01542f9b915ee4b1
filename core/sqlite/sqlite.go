// Package sqlite opens the SQLite databases that hold snapshot history,
// supporting both pure Go (modernc.org/sqlite) and CGO (mattn/go-sqlite3)
// drivers.
//
// Build modes:
//   - Default (CGO_ENABLED=0): Uses pure Go modernc.org/sqlite
//   - CGO mode (CGO_ENABLED=1 -tags cgo_sqlite): Uses mattn/go-sqlite3
//
// Use Open instead of sql.Open so the driver matching the build is used
// and every database gets the same connection settings.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	apperrors "github.com/FocuswithJustin/Lineage/core/errors"
)

// pragmas run on the connection after it is opened.
var pragmas = []string{
	"PRAGMA foreign_keys = ON",
	"PRAGMA busy_timeout = 5000",
}

// Open opens a SQLite database for reading and writing. The pool is limited
// to one connection so that pragmas hold for every statement and writers
// never contend with each other.
func Open(path string) (*sql.DB, error) {
	return open(path)
}

// OpenReadOnly opens an existing SQLite database in read-only mode. A
// missing file is an error rather than a new database.
func OpenReadOnly(path string) (*sql.DB, error) {
	return open("file:" + path + "?mode=ro")
}

func open(dsn string) (*sql.DB, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, apperrors.NewIO("open", dsn, err)
	}
	db.SetMaxOpenConns(1)
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, apperrors.NewIO("open", dsn, err)
		}
	}
	return db, nil
}

// Migrate brings the schema up to date. migrations[i] moves the schema from
// version i to i+1; the current version lives in PRAGMA user_version. Each
// step runs in its own transaction, so a failed step leaves the database at
// the previous version.
func Migrate(ctx context.Context, db *sql.DB, migrations []string) error {
	var version int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return apperrors.Wrap(err, "read schema version")
	}
	if version > len(migrations) {
		return apperrors.NewUnsupported("schema version", fmt.Sprintf("%d is newer than %d", version, len(migrations)))
	}

	for i := version; i < len(migrations); i++ {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return apperrors.Wrapf(err, "begin migration %d", i+1)
		}
		if _, err := tx.ExecContext(ctx, migrations[i]); err != nil {
			tx.Rollback()
			return apperrors.Wrapf(err, "migration %d", i+1)
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", i+1)); err != nil {
			tx.Rollback()
			return apperrors.Wrapf(err, "record migration %d", i+1)
		}
		if err := tx.Commit(); err != nil {
			return apperrors.Wrapf(err, "commit migration %d", i+1)
		}
	}
	return nil
}

// Info contains information about the SQLite driver configuration.
// DriverType is "cgo" for mattn/go-sqlite3 and "purego" for
// modernc.org/sqlite.
type Info struct {
	DriverName string `json:"driver_name"`
	DriverType string `json:"driver_type"`
	IsCGO      bool   `json:"is_cgo"`
	Package    string `json:"package"`
}

// GetInfo returns information about the current SQLite configuration.
func GetInfo() Info {
	return Info{
		DriverName: driverName,
		DriverType: driverType,
		IsCGO:      driverType == "cgo",
		Package:    driverPackage,
	}
}
