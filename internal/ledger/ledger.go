// Package ledger records the history of downloader runs. It re-exports the
// core model and is the only package allowed to import the infra drivers.
package ledger

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"redcapdl/internal/ledger/core"
	memoryledger "redcapdl/internal/infra/ledger/memory"
	pgledger "redcapdl/internal/infra/ledger/postgres"
	sqliteledger "redcapdl/internal/infra/ledger/sqlite"
)

type (
	Driver   = core.Driver
	Status   = core.Status
	Source   = core.Source
	Artifact = core.Artifact
	Run      = core.Run
	Store    = core.Store
)

const (
	DriverNone     = core.DriverNone
	DriverMemory   = core.DriverMemory
	DriverSQLite   = core.DriverSQLite
	DriverPostgres = core.DriverPostgres

	StatusRunning   = core.StatusRunning
	StatusSucceeded = core.StatusSucceeded
	StatusFailed    = core.StatusFailed
)

// ErrNotFound is returned when a run id is unknown.
var ErrNotFound = core.ErrNotFound

// DefaultSQLiteFile is the database name used below the download folder when
// the sqlite driver has no DSN.
const DefaultSQLiteFile = "redcapdl-runs.db"

// Config selects a ledger driver.
type Config struct {
	Driver string
	DSN    string
	// Dir hosts the default sqlite database.
	Dir string
}

// Open returns the configured store, or nil when the ledger is disabled.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch Driver(strings.ToLower(cfg.Driver)) {
	case "", DriverNone:
		return nil, nil
	case DriverMemory:
		return memoryledger.New(), nil
	case DriverSQLite:
		dsn := cfg.DSN
		if dsn == "" {
			dsn = filepath.Join(cfg.Dir, DefaultSQLiteFile)
		}
		return sqliteledger.New(ctx, dsn)
	case DriverPostgres:
		return pgledger.New(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown ledger driver %s", cfg.Driver)
	}
}
