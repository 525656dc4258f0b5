// Package fetch retrieves raw HTML pages for the enrichment adapters.
// It owns the transport mechanics the rest of the pipeline must not
// care about: user-agent rotation, per-request timeouts, and the
// proxy rotate-then-direct retry policy.
package fetch

import (
	"context"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
)

// Fetcher retrieves a URL and returns its parsed document. A nil
// document with a nil error means the page was unreachable or useless;
// callers treat that as a soft miss, never as a pipeline failure.
type Fetcher interface {
	Fetch(ctx context.Context, targetURL string, opts ...Option) (*goquery.Document, error)
}

// Option configures a single fetch call.
type Option func(*fetchOpts)

type fetchOpts struct {
	quick bool
}

// Quick limits the fetch to a single proxied attempt with no retries,
// for follow-up pages where a miss is acceptable.
func Quick() Option {
	return func(o *fetchOpts) { o.quick = true }
}

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 Chrome/119.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
}

// HTTPFetcher is the production Fetcher.
type HTTPFetcher struct {
	rotator *Rotator
	timeout time.Duration
	client  *http.Client // used when no per-proxy transport is needed
}

// NewHTTPFetcher builds a fetcher with the given proxy rotator and
// per-request timeout.
func NewHTTPFetcher(rotator *Rotator, timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = 4 * time.Second
	}
	return &HTTPFetcher{
		rotator: rotator,
		timeout: timeout,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 50,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Fetch retrieves targetURL. Normal mode makes up to three attempts
// through rotating proxies; quick mode makes one. When every proxied
// attempt fails, the same request is retried once directly before it
// counts as a miss. Hard HTTP errors (404/403/410/5xx) and thin pages
// (<500 bytes) are soft misses.
func (f *HTTPFetcher) Fetch(ctx context.Context, targetURL string, opts ...Option) (*goquery.Document, error) {
	var o fetchOpts
	for _, opt := range opts {
		opt(&o)
	}

	attempts := 3
	if o.quick {
		attempts = 1
	}

	for attempt := 0; attempt < attempts; attempt++ {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "fetch: cancelled")
		}
		doc, terminal := f.attempt(ctx, targetURL, f.rotator.Next())
		if doc != nil || terminal {
			return doc, nil
		}
	}

	// Proxied attempts exhausted without an answer from the server:
	// retry once directly. With no proxies configured the attempts
	// above were already direct.
	if !f.rotator.DirectOnly() {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "fetch: cancelled")
		}
		doc, _ := f.attempt(ctx, targetURL, "")
		return doc, nil
	}
	return nil, nil
}

// attempt performs one GET. terminal=true means the server answered
// with a status that makes retrying pointless.
func (f *HTTPFetcher) attempt(ctx context.Context, targetURL, proxyURL string) (doc *goquery.Document, terminal bool) {
	client := f.client
	if proxyURL != "" {
		pu, err := url.Parse(proxyURL)
		if err != nil {
			return nil, false
		}
		client = &http.Client{
			Timeout: f.timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyURL(pu),
				MaxIdleConnsPerHost: 10,
			},
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, true
	}
	req.Header.Set("User-Agent", userAgents[rand.IntN(len(userAgents))])
	req.Header.Set("Accept", "text/html,application/xhtml+xml,*/*;q=0.8")
	req.Header.Set("Accept-Language", "it-IT,it;q=0.9,en;q=0.7")

	resp, err := client.Do(req)
	if err != nil {
		return nil, false
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusAccepted:
	case http.StatusNotFound, http.StatusForbidden, http.StatusGone,
		http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
		return nil, true
	default:
		return nil, false
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil || len(body) <= 500 {
		return nil, false
	}

	parsed, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, false
	}
	parsed.Url = resp.Request.URL
	return parsed, false
}
