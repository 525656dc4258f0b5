// Package enrich implements the per-company enrichment engine: the
// source adapters that turn raw pages and search results into signal
// tuples, the name/title/email heuristics that filter them, and the
// merge engine that reconciles them into ranked contacts.
package enrich

import (
	"context"

	"github.com/sells-group/contacts-cli/internal/model"
)

// Mode is the operating mode selected by the capability probe, fixed
// for the lifetime of a job.
type Mode string

const (
	// ModeFull runs both adapters.
	ModeFull Mode = "full"
	// ModeDegraded skips the network adapter because the search
	// backend is unreachable; only known websites are scraped.
	ModeDegraded Mode = "degraded"
)

// SourceAdapter produces signal tuples for one company. Adapters fail
// closed: any fetch or parse problem yields an empty slice so one
// company's trouble never blocks its siblings in the worker pool. The
// company is passed by pointer so the website adapter can record a
// website it resolved for a row that arrived without one.
type SourceAdapter interface {
	Name() model.SignalSource
	Fetch(ctx context.Context, company *model.Company, mode Mode) []model.Signal
}
