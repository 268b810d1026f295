// Package core defines the run ledger model shared by the ledger drivers.
package core

import (
	"context"
	"errors"
	"time"
)

// Driver identifies a ledger backend.
type Driver string

const (
	DriverNone     Driver = "none"
	DriverMemory   Driver = "memory"
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Status is the lifecycle stage of a run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// ErrNotFound is returned when a run id is unknown.
var ErrNotFound = errors.New("ledger: run not found")

// Source summarises one processed REDCap project.
type Source struct {
	Token         string `json:"token"`
	Title         string `json:"title"`
	DataType      string `json:"data_type"`
	Outcome       string `json:"outcome"`
	ReportRows    int    `json:"report_rows"`
	ReportColumns int    `json:"report_columns"`
	VariableRows  int    `json:"variable_rows"`
}

// Artifact is one published blob.
type Artifact struct {
	Key  string `json:"key"`
	Size int64  `json:"size_bytes"`
	ETag string `json:"etag,omitempty"`
	URL  string `json:"url,omitempty"`
}

// Run is one downloader invocation.
type Run struct {
	ID             string     `json:"id"`
	Version        string     `json:"version,omitempty"`
	Status         Status     `json:"status"`
	Error          string     `json:"error,omitempty"`
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
	Sources        []Source   `json:"sources,omitempty"`
	Artifacts      []Artifact `json:"artifacts,omitempty"`
	MergeConflicts int        `json:"merge_conflicts"`
}

// Clone returns a deep copy of r.
func (r Run) Clone() Run {
	out := r
	if r.FinishedAt != nil {
		t := *r.FinishedAt
		out.FinishedAt = &t
	}
	out.Sources = append([]Source(nil), r.Sources...)
	out.Artifacts = append([]Artifact(nil), r.Artifacts...)
	return out
}

// Store persists run snapshots. Save upserts the whole run by id.
type Store interface {
	Save(ctx context.Context, run Run) error
	Get(ctx context.Context, id string) (Run, error)
	// List returns runs ordered by start time, oldest first.
	List(ctx context.Context) ([]Run, error)
	Close() error
	Driver() Driver
}
