// Package store persists jobs and per-company results behind a single
// interface with SQLite and Postgres implementations.
package store

import (
	"context"
	"time"

	"github.com/sells-group/contacts-cli/internal/model"
)

// JobFilter specifies criteria for listing jobs.
type JobFilter struct {
	Status model.JobStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// JobUpdate is a partial update applied to a job row. Nil fields are
// left untouched. Status changes are validated against the forward-only
// status machine and rejected once the job is terminal.
type JobUpdate struct {
	Status       *model.JobStatus
	Total        *int
	Processed    *int
	Found        *int
	PeopleFound  *int
	Errors       *int
	Rate         *float64
	ETA          *string
	ErrorMessage *string
	StartedAt    *time.Time
	FinishedAt   *time.Time
}

// Store defines the persistence interface for the enrichment pipeline.
type Store interface {
	// Jobs
	CreateJob(ctx context.Context, job model.Job) (*model.Job, error)
	GetJob(ctx context.Context, jobID string) (*model.Job, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]model.Job, error)
	UpdateJob(ctx context.Context, jobID string, update JobUpdate) error

	// Results
	SaveResults(ctx context.Context, jobID string, results []model.CompanyResult) error
	GetResults(ctx context.Context, jobID string) ([]model.CompanyResult, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
