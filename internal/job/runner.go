// Package job orchestrates enrichment runs: batching companies over a
// worker pool, persisting results, writing the sheet back, and keeping
// job progress current in the store.
package job

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/contacts-cli/internal/enrich"
	"github.com/sells-group/contacts-cli/internal/model"
	"github.com/sells-group/contacts-cli/internal/sheet"
	"github.com/sells-group/contacts-cli/internal/store"
	"github.com/sells-group/contacts-cli/internal/websearch"
)

// Runner executes one job end to end. Batches are sized at twice the
// worker count so the pool stays saturated while cancellation and
// persistence happen at batch boundaries.
type Runner struct {
	store      store.Store
	enricher   *enrich.Enricher
	search     websearch.Client
	workers    int
	batchSize  int
	minSuccess float64
}

// NewRunner builds a Runner. batchSize controls how often progress is
// persisted and the sheet flushed, not the worker batch width.
// minSuccess is the fraction of processed companies that must enrich
// without error for the job to finish done; 0 disables the check.
func NewRunner(st store.Store, enricher *enrich.Enricher, search websearch.Client, workers, batchSize int, minSuccess float64) *Runner {
	if workers < 1 {
		workers = 1
	}
	if batchSize < 1 {
		batchSize = 100
	}
	if minSuccess < 0 {
		minSuccess = 0
	}
	if minSuccess > 1 {
		minSuccess = 1
	}
	return &Runner{
		store:      st,
		enricher:   enricher,
		search:     search,
		workers:    workers,
		batchSize:  batchSize,
		minSuccess: minSuccess,
	}
}

// Run processes every company and drives the job to a terminal status.
// Cancellation is observed between batches: a cancel request marks the
// job in the store and the runner notices at the next boundary, after
// flushing what finished.
func (r *Runner) Run(ctx context.Context, job *model.Job, companies []model.Company, writer *sheet.Writer) error {
	log := zap.L().With(zap.String("job_id", job.ID))

	now := time.Now().UTC()
	running := model.JobStatusRunning
	total := len(companies)
	if err := r.store.UpdateJob(ctx, job.ID, store.JobUpdate{
		Status:    &running,
		Total:     &total,
		StartedAt: &now,
	}); err != nil {
		return eris.Wrap(err, "job: mark running")
	}

	t := newTracker(total)

	mode := enrich.ProbeMode(ctx, r.search)
	if mode == enrich.ModeDegraded && !anyWebsite(companies) {
		// Without search there is no way to resolve websites, and
		// without websites degraded mode has nothing to scrape.
		return r.finish(ctx, job.ID, writer, t, model.JobStatusError,
			"search backend unreachable and no company has a known website")
	}
	log.Info("job: started",
		zap.Int("companies", total),
		zap.Int("workers", r.workers),
		zap.String("mode", string(mode)),
	)

	sinceFlush := 0
	width := r.workers * 2

	for off := 0; off < len(companies); off += width {
		end := off + width
		if end > len(companies) {
			end = len(companies)
		}

		if err := ctx.Err(); err != nil {
			return r.finish(ctx, job.ID, writer, t, model.JobStatusCancelled, "")
		}
		cancelled, err := r.cancelRequested(ctx, job.ID)
		if err != nil {
			log.Warn("job: cancellation check failed", zap.Error(err))
		} else if cancelled {
			log.Info("job: cancellation observed at batch boundary")
			return r.finish(ctx, job.ID, writer, t, model.JobStatusCancelled, "")
		}

		results := r.runBatch(ctx, companies[off:end], mode, t)

		if err := r.store.SaveResults(ctx, job.ID, results); err != nil {
			log.Error("job: persist batch failed", zap.Error(err))
			return r.finish(ctx, job.ID, writer, t, model.JobStatusError, err.Error())
		}
		for _, res := range results {
			writer.Record(res)
		}

		sinceFlush += end - off
		if sinceFlush >= r.batchSize {
			if err := writer.Flush(); err != nil {
				log.Warn("job: sheet flush failed", zap.Error(err))
			}
			sinceFlush = 0
		}

		if err := r.updateProgress(ctx, job.ID, t); err != nil {
			log.Warn("job: progress update failed", zap.Error(err))
		}
	}

	if msg := t.successShortfall(r.minSuccess); msg != "" {
		log.Error("job: too many companies failed", zap.String("reason", msg))
		return r.finish(ctx, job.ID, writer, t, model.JobStatusError, msg)
	}
	return r.finish(ctx, job.ID, writer, t, model.JobStatusDone, "")
}

func anyWebsite(companies []model.Company) bool {
	for _, c := range companies {
		if c.Website != "" {
			return true
		}
	}
	return false
}

// runBatch fans the slice out over the worker pool. Per-company
// failures are counted, never propagated: one bad company must not
// sink the batch.
func (r *Runner) runBatch(ctx context.Context, batch []model.Company, mode enrich.Mode, t *tracker) []model.CompanyResult {
	var mu sync.Mutex
	results := make([]model.CompanyResult, 0, len(batch))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	for _, company := range batch {
		g.Go(func() error {
			res, err := r.enrichOne(gctx, company, mode)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				// Companies aborted by cancellation were never fetched
				// and stay out of the counters.
				if gctx.Err() == nil {
					t.processed++
					t.errors++
					zap.L().Warn("job: company failed",
						zap.String("company", company.Name),
						zap.Error(err),
					)
				}
				return nil
			}
			t.processed++
			if len(res.Contacts) > 0 {
				t.found++
				t.people += len(res.Contacts)
			}
			results = append(results, res)
			return nil
		})
	}
	_ = g.Wait() // workers never return errors

	return results
}

// enrichOne shields the batch from a panicking adapter: the company is
// marked failed instead of the whole job going down.
func (r *Runner) enrichOne(ctx context.Context, company model.Company, mode enrich.Mode) (res model.CompanyResult, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = eris.Errorf("enrich %s: panic: %v", company.Name, p)
		}
	}()
	return r.enricher.Enrich(ctx, company, mode)
}

// cancelRequested reports whether someone moved the job to cancelled
// while the batch was running.
func (r *Runner) cancelRequested(ctx context.Context, jobID string) (bool, error) {
	j, err := r.store.GetJob(ctx, jobID)
	if err != nil {
		return false, err
	}
	return j.Status == model.JobStatusCancelled, nil
}

func (r *Runner) updateProgress(ctx context.Context, jobID string, t *tracker) error {
	rate := t.rate()
	eta := t.eta()
	return r.store.UpdateJob(ctx, jobID, store.JobUpdate{
		Processed:   &t.processed,
		Found:       &t.found,
		PeopleFound: &t.people,
		Errors:      &t.errors,
		Rate:        &rate,
		ETA:         &eta,
	})
}

// finish flushes the sheet, records final counters, and moves the job
// to its terminal status. A cancel that already landed in the store
// makes the status update a no-op rather than an error.
func (r *Runner) finish(ctx context.Context, jobID string, writer *sheet.Writer, t *tracker, status model.JobStatus, errMsg string) error {
	log := zap.L().With(zap.String("job_id", jobID))

	if err := writer.Flush(); err != nil {
		log.Warn("job: final sheet flush failed", zap.Error(err))
	}

	// Counters and terminal status land even when ctx is cancelled.
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if err := r.updateProgress(fctx, jobID, t); err != nil {
		log.Warn("job: final progress update failed", zap.Error(err))
	}

	now := time.Now().UTC()
	update := store.JobUpdate{Status: &status, FinishedAt: &now}
	if errMsg != "" {
		update.ErrorMessage = &errMsg
	}
	if err := r.store.UpdateJob(fctx, jobID, update); err != nil {
		current, gerr := r.store.GetJob(fctx, jobID)
		if gerr == nil && current.Status == status {
			err = nil
		}
		if err != nil {
			return eris.Wrapf(err, "job: mark %s", status)
		}
	}

	log.Info("job: finished",
		zap.String("status", string(status)),
		zap.Int("processed", t.processed),
		zap.Int("found", t.found),
		zap.Int("people", t.people),
		zap.Int("errors", t.errors),
	)
	return nil
}
