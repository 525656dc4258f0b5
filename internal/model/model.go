package model

import "time"

// JobStatus represents the current state of an enrichment job.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusDone      JobStatus = "done"
	JobStatusError     JobStatus = "error"
	JobStatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether a job in this status will never change again.
func (s JobStatus) Terminal() bool {
	return s == JobStatusDone || s == JobStatusError || s == JobStatusCancelled
}

// CanTransition reports whether the status machine allows moving to next.
// Transitions are forward-only: queued -> running -> {done, error, cancelled}.
// Cancellation and setup errors are also allowed straight from queued.
func (s JobStatus) CanTransition(next JobStatus) bool {
	if s.Terminal() {
		return false
	}
	switch s {
	case JobStatusQueued:
		return next == JobStatusRunning || next == JobStatusCancelled || next == JobStatusError
	case JobStatusRunning:
		return next.Terminal()
	}
	return false
}

// Company is one row of the input list. Immutable once built.
type Company struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Province string `json:"province,omitempty"`
	Website  string `json:"website,omitempty"`
	SheetRow int    `json:"sheet_row,omitempty"` // row index in the source sheet, header is row 0
}

// SignalSource identifies which adapter produced a signal.
type SignalSource string

const (
	SourceWebsite SignalSource = "website"
	SourceNetwork SignalSource = "network"
)

// Signal is one atomic observation from a single adapter call: a name
// fragment, a title fragment, an email, or any combination. Never
// mutated after creation; many signals may describe the same person.
type Signal struct {
	Source     SignalSource `json:"source"`
	Name       string       `json:"name,omitempty"`
	Title      string       `json:"title,omitempty"`
	Email      string       `json:"email,omitempty"`
	ProfileURL string       `json:"profile_url,omitempty"`
}

// Contact is the reconciled person record for one company, owned by the
// merge engine until finalized and never mutated afterwards.
type Contact struct {
	FirstName    string         `json:"first_name"`
	LastName     string         `json:"last_name"`
	Title        string         `json:"title,omitempty"`
	Email        string         `json:"email,omitempty"`
	EmailGuessed bool           `json:"email_guessed,omitempty"` // synthesized, not observed
	TitleScore   int            `json:"title_score"`
	Sources      []SignalSource `json:"sources"`
}

// CompanyResult pairs a company with its merged contacts for persistence.
type CompanyResult struct {
	Company  Company   `json:"company"`
	Contacts []Contact `json:"contacts"`
}

// Job tracks one enrichment run over a company list. The orchestrator
// is the sole writer; readers get snapshot copies.
type Job struct {
	ID           string     `json:"id"`
	Status       JobStatus  `json:"status"`
	SheetPath    string     `json:"sheet_path"`
	SheetName    string     `json:"sheet_name,omitempty"`
	Total        int        `json:"total"`
	Processed    int        `json:"processed"`
	Found        int        `json:"found"`        // companies with at least one contact
	PeopleFound  int        `json:"people_found"` // total contacts across companies
	Errors       int        `json:"errors"`
	Rate         float64    `json:"rate"` // companies per second, trailing
	ETA          string     `json:"eta,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}
