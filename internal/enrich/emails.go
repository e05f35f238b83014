package enrich

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-enricher/internal/errlog"
	"github.com/sells-group/lead-enricher/internal/generate"
	"github.com/sells-group/lead-enricher/internal/lead"
)

// EmailErrorPrefix marks a generated email cell that holds a failure.
const EmailErrorPrefix = "Error:"

// Emails drafts an outreach email for every row that lacks one. Cells left
// holding an earlier failure are tried again.
func (e *Engine) Emails(ctx context.Context, t *lead.Table) (Stats, error) {
	if e.emails == nil {
		return Stats{}, eris.New("enrich: email step requires a generator")
	}

	t.EnsureColumns(lead.EmailColumns...)
	stats := Stats{Total: len(t.Records)}

	for i, rec := range t.Records {
		if ctx.Err() != nil {
			return stats, interrupted(ctx, &stats)
		}

		current := rec.Get(lead.FieldGeneratedEmail)
		if current != "" && !strings.HasPrefix(current, EmailErrorPrefix) {
			stats.Skipped++
			continue
		}

		if err := e.emailLimiter.Acquire(ctx); err != nil {
			return stats, interrupted(ctx, &stats)
		}

		stats.Full++
		email, err := e.emails.Email(ctx, rec)
		if err != nil {
			if ctx.Err() != nil {
				return stats, interrupted(ctx, &stats)
			}
			reason := generate.Reason(err)
			rec[lead.FieldGeneratedEmail] = EmailErrorPrefix + " " + reason
			stats.Failed++
			e.errs.Record(rowNumber(i), rec.Name(), rec.Address(), errlog.ReasonGenerationFailed, reason)
			zap.L().Warn("enrich: email failed", zap.Int("row", rowNumber(i)), zap.Error(err))
			continue
		}

		rec[lead.FieldGeneratedEmail] = email
		stats.Enriched++
	}

	return stats, nil
}
