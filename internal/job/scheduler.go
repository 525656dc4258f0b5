package job

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/sells-group/contacts-cli/internal/model"
	"github.com/sells-group/contacts-cli/internal/sheet"
	"github.com/sells-group/contacts-cli/internal/store"
)

// Scheduler admits jobs into the runner under a global concurrency
// cap. Submitted jobs wait in queued status until a slot frees up.
type Scheduler struct {
	store  store.Store
	runner *Runner
	sem    *semaphore.Weighted
	wg     sync.WaitGroup
}

// NewScheduler builds a scheduler allowing maxConcurrent jobs at once.
func NewScheduler(st store.Store, runner *Runner, maxConcurrent int) *Scheduler {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Scheduler{
		store:  st,
		runner: runner,
		sem:    semaphore.NewWeighted(int64(maxConcurrent)),
	}
}

// Submit creates a queued job for the sheet and starts it as soon as a
// slot is available. The returned job snapshot is in queued status.
func (s *Scheduler) Submit(ctx context.Context, sheetPath, sheetName string) (*model.Job, error) {
	companies, err := sheet.LoadCompanies(sheetPath, sheetName)
	if err != nil {
		return nil, err
	}
	if len(companies) == 0 {
		return nil, eris.Errorf("job: no companies in %s", sheetPath)
	}

	writer, err := sheet.NewWriter(sheetPath, sheetName)
	if err != nil {
		return nil, err
	}

	job, err := s.store.CreateJob(ctx, model.Job{
		SheetPath: sheetPath,
		SheetName: sheetName,
		Total:     len(companies),
	})
	if err != nil {
		return nil, err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.execute(ctx, job, companies, writer)
	}()

	return job, nil
}

// Cancel requests cancellation. Queued jobs terminate immediately;
// running jobs notice at their next batch boundary. Terminal jobs
// reject the request.
func (s *Scheduler) Cancel(ctx context.Context, jobID string) error {
	j, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if !j.Status.CanTransition(model.JobStatusCancelled) {
		return eris.Errorf("job %s: cannot cancel in status %s", jobID, j.Status)
	}
	cancelled := model.JobStatusCancelled
	return s.store.UpdateJob(ctx, jobID, store.JobUpdate{Status: &cancelled})
}

// Wait blocks until every launched job goroutine has returned.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) execute(ctx context.Context, job *model.Job, companies []model.Company, writer *sheet.Writer) {
	log := zap.L().With(zap.String("job_id", job.ID))

	if err := s.sem.Acquire(ctx, 1); err != nil {
		log.Warn("job: abandoned while queued", zap.Error(err))
		return
	}
	defer s.sem.Release(1)

	// The job may have been cancelled while it sat in the queue.
	current, err := s.store.GetJob(ctx, job.ID)
	if err != nil {
		log.Error("job: lookup before start failed", zap.Error(err))
		return
	}
	if current.Status != model.JobStatusQueued {
		log.Info("job: skipped, no longer queued", zap.String("status", string(current.Status)))
		return
	}

	if err := s.runner.Run(ctx, job, companies, writer); err != nil {
		log.Error("job: run failed", zap.Error(err))

		errStatus := model.JobStatusError
		msg := err.Error()
		now := time.Now().UTC()
		if uerr := s.store.UpdateJob(context.WithoutCancel(ctx), job.ID, store.JobUpdate{
			Status:       &errStatus,
			ErrorMessage: &msg,
			FinishedAt:   &now,
		}); uerr != nil {
			log.Error("job: mark error failed", zap.Error(uerr))
		}
	}
}
