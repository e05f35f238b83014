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

// Search runs an open-ended directory search and returns the results as a
// table. When existing is non-nil the results are appended to it, skipping
// identities it already holds.
//
// Retry exhaustion part way through keeps the pages fetched so far and is
// logged; an interrupt returns the partial table with ctx.Err().
func (e *Engine) Search(ctx context.Context, req directory.SearchRequest, existing *lead.Table) (*lead.Table, Stats, error) {
	if e.searcher == nil {
		return nil, Stats{}, eris.New("enrich: search requires a searcher")
	}

	var stats Stats
	candidates, err := e.searcher.Search(ctx, req)

	var (
		le *directory.LookupError
		ve *directory.ValidationError
	)
	switch {
	case err == nil:
	case errors.As(err, &ve):
		return nil, stats, err
	case errors.As(err, &le):
		stats.Failed++
		e.errs.Record(0, req.Query, "", errlog.ReasonLookupFailed, err.Error())
		zap.L().Warn("enrich: search stopped early",
			zap.String("query", req.Query),
			zap.Int("kept", len(candidates)),
			zap.Error(err),
		)
		err = nil
	case ctx.Err() != nil:
		err = interrupted(ctx, &stats)
	default:
		return nil, stats, eris.Wrap(err, "enrich: search")
	}

	incoming := CandidatesTable(candidates)
	stats.Found = len(candidates)

	if existing == nil {
		stats.Total = len(incoming.Records)
		stats.Appended = len(incoming.Records)
		return incoming, stats, err
	}

	merged, added := lead.MergeTables(existing, incoming)
	stats.Total = len(merged.Records)
	stats.Appended = added
	stats.Skipped = len(incoming.Records) - added
	return merged, stats, err
}

// CandidatesTable lays out search candidates in the search result columns.
func CandidatesTable(candidates []directory.Candidate) *lead.Table {
	t := &lead.Table{Columns: append([]lead.Column(nil), lead.SearchColumns...)}
	for _, c := range candidates {
		t.Records = append(t.Records, lead.Record{
			lead.FieldCompanyName:    c.Name,
			lead.FieldCompanyAddress: c.Address,
			lead.FieldPhone:          c.Phone,
			lead.FieldWebsite:        c.Website,
			lead.FieldRating:         c.RatingString(),
			lead.FieldReviewCount:    c.ReviewCountString(),
			lead.FieldMapsURL:        c.MapsURL,
			lead.FieldLookupStatus:   lead.StatusFound,
		})
	}
	return t
}
