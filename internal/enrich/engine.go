// Package enrich drives a run: it walks the rows of a lead table, decides
// what each one still needs and applies lookup, website and generation
// results in place.
package enrich

import (
	"context"
	"time"

	"github.com/sells-group/lead-enricher/internal/directory"
	"github.com/sells-group/lead-enricher/internal/errlog"
	"github.com/sells-group/lead-enricher/internal/lead"
	"github.com/sells-group/lead-enricher/internal/ratelimit"
	"github.com/sells-group/lead-enricher/internal/store"
	"github.com/sells-group/lead-enricher/internal/website"
)

// Resolver matches a single business. *directory.Resolver implements it.
type Resolver interface {
	Resolve(ctx context.Context, name, address string) (*directory.Candidate, error)
	ResolveURL(ctx context.Context, name, address string) (string, error)
}

// Searcher runs an open-ended directory search. *directory.Aggregator
// implements it.
type Searcher interface {
	Search(ctx context.Context, req directory.SearchRequest) ([]directory.Candidate, error)
}

// WebEnricher fetches a company homepage. *website.Fetcher implements it.
type WebEnricher interface {
	Enrich(ctx context.Context, rawURL, companyName string) (*website.Result, error)
}

// EmailWriter drafts an outreach email. *generate.Generator implements it.
type EmailWriter interface {
	Email(ctx context.Context, rec lead.Record) (string, error)
}

// Engine applies enrichment steps to a table. Rows are processed one at a
// time; the context is checked between rows.
type Engine struct {
	resolver      Resolver
	searcher      Searcher
	web           WebEnricher
	webLimiters   []*ratelimit.Limiter
	emails        EmailWriter
	emailLimiter  *ratelimit.Limiter
	cache         store.Store
	cacheTTL      time.Duration
	errs          *errlog.Log
	retryNotFound bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithResolver enables the lookup step.
func WithResolver(r Resolver) Option {
	return func(e *Engine) { e.resolver = r }
}

// WithSearcher enables the search step.
func WithSearcher(s Searcher) Option {
	return func(e *Engine) { e.searcher = s }
}

// WithWebsite enables the website step. Every homepage fetch acquires each
// limiter in order, so a run-wide limiter can be combined with a slower
// website delay.
func WithWebsite(w WebEnricher, limiters ...*ratelimit.Limiter) Option {
	return func(e *Engine) {
		e.web = w
		e.webLimiters = limiters
	}
}

// WithEmails enables the email step. limiter spaces model calls.
func WithEmails(w EmailWriter, limiter *ratelimit.Limiter) Option {
	return func(e *Engine) {
		e.emails = w
		e.emailLimiter = limiter
	}
}

// WithCache remembers full lookups across runs for ttl.
func WithCache(s store.Store, ttl time.Duration) Option {
	return func(e *Engine) {
		e.cache = s
		e.cacheTTL = ttl
	}
}

// WithRetryNotFound re-queues rows an earlier run marked NotFound.
func WithRetryNotFound(retry bool) Option {
	return func(e *Engine) { e.retryNotFound = retry }
}

// New creates an Engine that records per-row failures in errs.
func New(errs *errlog.Log, opts ...Option) *Engine {
	e := &Engine{errs: errs}
	for _, o := range opts {
		o(e)
	}
	if e.errs == nil {
		e.errs = errlog.New()
	}
	return e
}

// Errors returns the run's error log.
func (e *Engine) Errors() *errlog.Log {
	return e.errs
}

// rowNumber is the spreadsheet row of record i: the header is row 1.
func rowNumber(i int) int {
	return i + 2
}
