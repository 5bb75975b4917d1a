// Package store provides the run catalog: a durable record of every
// domain generation run, its output file and its outcome.
package store

import (
	"context"
	"time"

	"github.com/nvandessel/battsim/internal/models"
)

// RunStatus is the outcome of a domain run.
type RunStatus string

const (
	StatusRunning   RunStatus = "running"
	StatusSucceeded RunStatus = "succeeded"
	StatusFailed    RunStatus = "failed"
)

// Run records one domain generation run.
type Run struct {
	ID string `json:"id"`

	// BatchID groups the domain runs started by one generate invocation.
	BatchID string `json:"batch_id"`

	Domain  models.Domain `json:"domain"`
	Seed    int64         `json:"seed"`
	Samples int           `json:"samples"`
	Format  string        `json:"format"`

	// Output, set once the dataset is written.
	Path     string `json:"path,omitempty"`
	Checksum string `json:"checksum,omitempty"`
	Bytes    int64  `json:"bytes,omitempty"`

	// LabelCounts is indexed by label id.
	LabelCounts []int `json:"label_counts,omitempty"`

	Status RunStatus `json:"status"`
	Stage  string    `json:"stage,omitempty"` // failing stage, e.g. "sampling", "io"
	Error  string    `json:"error,omitempty"`

	ArchivePath string `json:"archive_path,omitempty"`
	ObjectKey   string `json:"object_key,omitempty"`

	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Duration returns how long the run took, or 0 while it is running.
func (r Run) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// RunFilter narrows ListRuns. Zero fields match everything.
type RunFilter struct {
	Domain  models.Domain
	Status  RunStatus
	BatchID string

	// Limit caps the result size; 0 means no limit.
	Limit int
}

func (f RunFilter) matches(r Run) bool {
	if f.Domain != "" && r.Domain != f.Domain {
		return false
	}
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if f.BatchID != "" && r.BatchID != f.BatchID {
		return false
	}
	return true
}

// RunCatalog stores run records.
type RunCatalog interface {
	// RecordRun inserts a run or replaces the record with the same ID.
	RecordRun(ctx context.Context, run Run) error

	// GetRun returns the run with id, or nil if there is none.
	GetRun(ctx context.Context, id string) (*Run, error)

	// ListRuns returns matching runs, newest first.
	ListRuns(ctx context.Context, filter RunFilter) ([]Run, error)

	// DeleteRun removes a run. Deleting an unknown id is not an error.
	DeleteRun(ctx context.Context, id string) error

	Close() error
}
