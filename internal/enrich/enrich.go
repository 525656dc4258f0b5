package enrich

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/contacts-cli/internal/model"
	"github.com/sells-group/contacts-cli/internal/refdata"
)

// Enricher runs the source adapters for one company and merges their
// signals into ranked contacts. One Enricher is shared by all workers
// of a job; it carries no per-company state.
type Enricher struct {
	adapters  []SourceAdapter
	ref       *refdata.Reference
	maxPeople int
}

// New builds an Enricher over the given adapters.
func New(ref *refdata.Reference, maxPeople int, adapters ...SourceAdapter) *Enricher {
	return &Enricher{adapters: adapters, ref: ref, maxPeople: maxPeople}
}

// Enrich fans out to every adapter concurrently, waits for all of them,
// and merges the combined signals. Adapters fail closed, so the only
// error path is context cancellation.
func (e *Enricher) Enrich(ctx context.Context, company model.Company, mode Mode) (model.CompanyResult, error) {
	var (
		mu      sync.Mutex
		signals []model.Signal
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, adapter := range e.adapters {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			got := adapter.Fetch(gctx, &company, mode)
			mu.Lock()
			signals = append(signals, got...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return model.CompanyResult{}, err
	}

	domain := DomainOf(company.Website)
	contacts := Merge(e.ref, domain, signals, e.maxPeople)

	zap.L().Debug("enrich: company done",
		zap.String("company", company.Name),
		zap.Int("signals", len(signals)),
		zap.Int("contacts", len(contacts)),
	)

	return model.CompanyResult{Company: company, Contacts: contacts}, nil
}
