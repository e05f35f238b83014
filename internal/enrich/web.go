package enrich

import (
	"context"
	"errors"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-enricher/internal/errlog"
	"github.com/sells-group/lead-enricher/internal/lead"
	"github.com/sells-group/lead-enricher/internal/website"
)

// Research brief markers.
const (
	BriefNoWebsite   = "No website available"
	BriefFetchFailed = "Could not fetch"
)

// Web fills social links and a research brief from each company homepage.
// Rows with a brief are skipped unless the brief records a failed fetch.
func (e *Engine) Web(ctx context.Context, t *lead.Table) (Stats, error) {
	if e.web == nil {
		return Stats{}, eris.New("enrich: website step requires a fetcher")
	}

	t.EnsureColumns(lead.WebColumns...)
	stats := Stats{Total: len(t.Records)}

	for i, rec := range t.Records {
		if ctx.Err() != nil {
			return stats, interrupted(ctx, &stats)
		}

		brief := rec.Get(lead.FieldResearchBrief)
		if brief != "" && !strings.HasPrefix(brief, BriefFetchFailed) {
			stats.Skipped++
			continue
		}

		site := rec.Get(lead.FieldWebsite)
		if site == "" {
			rec[lead.FieldResearchBrief] = BriefNoWebsite
			stats.NotFound++
			continue
		}

		if err := e.acquireWeb(ctx); err != nil {
			return stats, interrupted(ctx, &stats)
		}

		stats.Full++
		res, err := e.web.Enrich(ctx, site, rec.Name())
		if err != nil {
			if ctx.Err() != nil {
				return stats, interrupted(ctx, &stats)
			}
			reason := fetchReason(err)
			rec[lead.FieldResearchBrief] = BriefFetchFailed + ": " + reason
			stats.Failed++
			e.errs.Record(rowNumber(i), rec.Name(), rec.Address(), errlog.ReasonWebsiteFailed, reason)
			zap.L().Warn("enrich: website failed",
				zap.Int("row", rowNumber(i)),
				zap.String("url", site),
				zap.String("reason", reason),
			)
			continue
		}

		setIfPresent(rec, lead.FieldLinkedInURL, res.Links.LinkedIn)
		setIfPresent(rec, lead.FieldFacebookURL, res.Links.Facebook)
		setIfPresent(rec, lead.FieldInstagramURL, res.Links.Instagram)
		setIfPresent(rec, lead.FieldTwitterURL, res.Links.Twitter)
		rec[lead.FieldResearchBrief] = res.Brief
		stats.Enriched++
	}

	return stats, nil
}

func fetchReason(err error) string {
	var fe *website.FetchError
	if errors.As(err, &fe) {
		return fe.Reason
	}
	return err.Error()
}

// setIfPresent never blanks a value an earlier run or the user supplied.
func setIfPresent(rec lead.Record, field, value string) {
	if value != "" {
		rec[field] = value
	}
}

func (e *Engine) acquireWeb(ctx context.Context) error {
	for _, l := range e.webLimiters {
		if err := l.Acquire(ctx); err != nil {
			return err
		}
	}
	return ctx.Err()
}
