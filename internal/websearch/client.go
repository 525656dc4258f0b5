// Package websearch scrapes web search engines for result tuples. A
// probe at job start picks the first engine that answers from this
// network; every query after that goes through the selected engine.
package websearch

import (
	"context"
	"net/url"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/contacts-cli/internal/fetch"
)

// Result is one search hit.
type Result struct {
	Title   string
	Snippet string
	URL     string
}

// Client performs web searches through whichever engine the probe
// selected.
type Client interface {
	// Probe tests the engines in preference order and pins the first
	// one that returns results. Returns an error when every engine is
	// blocked or unreachable.
	Probe(ctx context.Context) error
	// Search runs a query through the pinned engine. Without a pinned
	// engine it sweeps all of them as a last resort.
	Search(ctx context.Context, query string) ([]Result, error)
}

const probeQuery = "Microsoft CEO"

type client struct {
	fetcher fetch.Fetcher
	limiter *rate.Limiter

	mu     sync.Mutex
	engine *engine // nil until a successful probe
}

// New builds a search client over the given fetcher. ratePerSec bounds
// outgoing queries across all workers.
func New(fetcher fetch.Fetcher, ratePerSec float64, burst int) Client {
	if ratePerSec <= 0 {
		ratePerSec = 5
	}
	if burst < 1 {
		burst = 1
	}
	return &client{
		fetcher: fetcher,
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), burst),
	}
}

func (c *client) Probe(ctx context.Context) error {
	for i := range engines {
		e := &engines[i]
		results, err := c.query(ctx, e, probeQuery, false)
		if err != nil {
			return err
		}
		if len(results) > 0 {
			zap.L().Info("websearch: probe selected engine",
				zap.String("engine", e.name),
				zap.Int("results", len(results)),
			)
			c.mu.Lock()
			c.engine = e
			c.mu.Unlock()
			return nil
		}
		zap.L().Warn("websearch: probe engine unusable", zap.String("engine", e.name))
	}
	return eris.New("websearch: all engines failed probe")
}

func (c *client) Search(ctx context.Context, query string) ([]Result, error) {
	c.mu.Lock()
	e := c.engine
	c.mu.Unlock()

	if e != nil {
		return c.query(ctx, e, query, true)
	}

	// Last resort: sweep all engines for this one query.
	for i := range engines {
		results, err := c.query(ctx, &engines[i], query, true)
		if err != nil {
			return nil, err
		}
		if len(results) > 0 {
			return results, nil
		}
	}
	return nil, nil
}

func (c *client) query(ctx context.Context, e *engine, query string, quick bool) ([]Result, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "websearch: rate limit wait")
	}

	var opts []fetch.Option
	if quick {
		opts = append(opts, fetch.Quick())
	}
	doc, err := c.fetcher.Fetch(ctx, e.searchURL(url.QueryEscape(query)), opts...)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, nil
	}
	return e.parse(doc), nil
}
