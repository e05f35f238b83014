package enrich

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-enricher/internal/directory"
	"github.com/sells-group/lead-enricher/internal/errlog"
	"github.com/sells-group/lead-enricher/internal/lead"
)

// outcome is what the directory said about one identity.
type outcome struct {
	found     bool
	candidate directory.Candidate
	// full is set when the candidate carries rating and review fields.
	full bool
}

// Lookup fills rating, review count and Maps URL. Complete rows are left
// untouched, rows with reviews but no URL get a URL-only lookup and the rest
// get a full lookup. Rows sharing an identity are looked up once.
//
// Per-row failures go to the error log. Anything else stops the run and is
// returned with the counters so far; on interrupt the error is ctx.Err().
func (e *Engine) Lookup(ctx context.Context, t *lead.Table) (Stats, error) {
	if e.resolver == nil {
		return Stats{}, eris.New("enrich: lookup requires a resolver")
	}

	t.EnsureColumns(lead.ReviewColumns...)
	stats := Stats{Total: len(t.Records)}
	memo := make(map[lead.IdentityKey]outcome)

	for i, rec := range t.Records {
		if ctx.Err() != nil {
			return stats, interrupted(ctx, &stats)
		}

		row := rowNumber(i)
		name, address := rec.Name(), rec.Address()
		if name == "" || address == "" {
			stats.Invalid++
			e.errs.Record(row, name, address, errlog.ReasonValidationError, "missing business name or address")
			continue
		}

		var err error
		switch e.classify(rec) {
		case lead.Complete:
			stats.Skipped++
			continue
		case lead.PartialURLOnly:
			err = e.fillURL(ctx, rec, row, memo, &stats)
		default:
			err = e.fillFull(ctx, rec, row, memo, &stats)
		}
		if err != nil {
			if ctx.Err() != nil {
				return stats, interrupted(ctx, &stats)
			}
			return stats, err
		}
	}

	return stats, nil
}

func (e *Engine) classify(rec lead.Record) lead.Completion {
	if e.retryNotFound && rec.Get(lead.FieldLookupStatus) == lead.StatusNotFound {
		cleared := rec.Clone()
		cleared[lead.FieldLookupStatus] = ""
		return lead.Classify(cleared)
	}
	return lead.Classify(rec)
}

func (e *Engine) fillFull(ctx context.Context, rec lead.Record, row int, memo map[lead.IdentityKey]outcome, stats *Stats) error {
	key := rec.Key()

	if o, ok := memo[key]; ok && o.full {
		stats.CacheHits++
		e.applyFull(rec, row, o, stats)
		return nil
	}
	if o, ok := e.cached(ctx, key); ok {
		stats.CacheHits++
		memo[key] = o
		e.applyFull(rec, row, o, stats)
		return nil
	}

	stats.Full++
	c, err := e.resolver.Resolve(ctx, rec.Name(), rec.Address())
	var o outcome
	switch {
	case err == nil:
		o = outcome{found: true, candidate: *c, full: true}
	case errors.Is(err, directory.ErrNotFound):
		o = outcome{full: true}
	default:
		return e.lookupFailed(rec, row, err, stats)
	}

	memo[key] = o
	if err := e.remember(ctx, key, o); err != nil {
		return err
	}
	e.applyFull(rec, row, o, stats)
	return nil
}

func (e *Engine) fillURL(ctx context.Context, rec lead.Record, row int, memo map[lead.IdentityKey]outcome, stats *Stats) error {
	key := rec.Key()

	if o, ok := memo[key]; ok {
		stats.CacheHits++
		e.applyURL(rec, row, o, stats)
		return nil
	}
	if o, ok := e.cached(ctx, key); ok {
		stats.CacheHits++
		memo[key] = o
		e.applyURL(rec, row, o, stats)
		return nil
	}

	stats.URLOnly++
	url, err := e.resolver.ResolveURL(ctx, rec.Name(), rec.Address())
	var o outcome
	switch {
	case err == nil:
		o = outcome{found: true, candidate: directory.Candidate{MapsURL: url}}
	case errors.Is(err, directory.ErrNotFound):
		o = outcome{}
	default:
		return e.lookupFailed(rec, row, err, stats)
	}

	memo[key] = o
	e.applyURL(rec, row, o, stats)
	return nil
}

// lookupFailed logs retry exhaustion and leaves the row for the next run.
// Other errors are fatal.
func (e *Engine) lookupFailed(rec lead.Record, row int, err error, stats *Stats) error {
	var le *directory.LookupError
	if !errors.As(err, &le) {
		return eris.Wrapf(err, "enrich: lookup row %d", row)
	}
	stats.Failed++
	e.errs.Record(row, rec.Name(), rec.Address(), errlog.ReasonLookupFailed, err.Error())
	zap.L().Warn("enrich: lookup failed",
		zap.Int("row", row),
		zap.String("company", rec.Name()),
		zap.Int("attempts", le.Attempts),
		zap.Error(le.Err),
	)
	return nil
}

func (e *Engine) applyFull(rec lead.Record, row int, o outcome, stats *Stats) {
	if !o.found {
		e.markNotFound(rec, row, stats)
		return
	}
	rec[lead.FieldRating] = o.candidate.RatingString()
	rec[lead.FieldReviewCount] = o.candidate.ReviewCountString()
	rec[lead.FieldMapsURL] = o.candidate.MapsURL
	rec[lead.FieldLookupStatus] = lead.StatusFound
	stats.Enriched++
}

func (e *Engine) applyURL(rec lead.Record, row int, o outcome, stats *Stats) {
	if !o.found || o.candidate.MapsURL == "" {
		e.markNotFound(rec, row, stats)
		return
	}
	rec[lead.FieldMapsURL] = o.candidate.MapsURL
	rec[lead.FieldLookupStatus] = lead.StatusFound
	stats.Enriched++
}

func (e *Engine) markNotFound(rec lead.Record, row int, stats *Stats) {
	rec[lead.FieldLookupStatus] = lead.StatusNotFound
	stats.NotFound++
	e.errs.Record(row, rec.Name(), rec.Address(), errlog.ReasonNotFound, "no matching place")
}

// cached consults the persistent cache. Read failures only cost a lookup.
func (e *Engine) cached(ctx context.Context, key lead.IdentityKey) (outcome, bool) {
	if e.cache == nil {
		return outcome{}, false
	}
	cp, err := e.cache.GetCachedPlace(ctx, key.String())
	if err != nil {
		zap.L().Warn("enrich: cache read failed", zap.Stringer("key", key), zap.Error(err))
		return outcome{}, false
	}
	if cp == nil || (!cp.Found && e.retryNotFound) {
		return outcome{}, false
	}
	return outcome{found: cp.Found, candidate: cp.Candidate, full: true}, true
}

func (e *Engine) remember(ctx context.Context, key lead.IdentityKey, o outcome) error {
	if e.cache == nil {
		return nil
	}
	err := e.cache.SetCachedPlace(ctx, key.String(), o.found, o.candidate, e.cacheTTL)
	return eris.Wrap(err, "enrich: cache place")
}

func interrupted(ctx context.Context, stats *Stats) error {
	stats.Interrupted = true
	return ctx.Err()
}
