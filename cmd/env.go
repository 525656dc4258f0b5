package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/contacts-cli/internal/enrich"
	"github.com/sells-group/contacts-cli/internal/fetch"
	"github.com/sells-group/contacts-cli/internal/job"
	"github.com/sells-group/contacts-cli/internal/refdata"
	"github.com/sells-group/contacts-cli/internal/store"
	"github.com/sells-group/contacts-cli/internal/websearch"
)

// pipelineEnv holds the initialized store, clients, and scheduler
// shared by the run/serve/jobs commands.
type pipelineEnv struct {
	Store     store.Store
	Search    websearch.Client
	Scheduler *job.Scheduler
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initPipeline sets up the store, the fetch/search clients, the
// enrichment engine, and the job scheduler. Callers should defer
// env.Close().
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	rotator := fetch.LoadRotator(cfg.Fetch.ProxyFile)
	fetcher := fetch.NewHTTPFetcher(rotator, cfg.Fetch.Timeout())
	search := websearch.New(fetcher, cfg.Search.RatePerSec, cfg.Search.Burst)

	ref, err := refdata.Load()
	if err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "load reference data")
	}

	enricher := enrich.New(ref, cfg.Enrich.MaxPeople,
		enrich.NewWebsiteAdapter(fetcher, search, ref, cfg.Enrich.FollowLinks),
		enrich.NewNetworkAdapter(search, ref),
	)

	runner := job.NewRunner(st, enricher, search,
		cfg.Job.Workers, cfg.Job.BatchSize, cfg.Job.MinSuccessFraction)
	scheduler := job.NewScheduler(st, runner, cfg.Job.MaxConcurrentJobs)

	return &pipelineEnv{
		Store:     st,
		Search:    search,
		Scheduler: scheduler,
	}, nil
}

// initStore builds the configured store backend.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	case "sqlite", "":
		return store.NewSQLite(cfg.Store.SQLitePath)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
