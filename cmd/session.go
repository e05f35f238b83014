package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-enricher/internal/dataset"
	"github.com/sells-group/lead-enricher/internal/directory"
	"github.com/sells-group/lead-enricher/internal/enrich"
	"github.com/sells-group/lead-enricher/internal/errlog"
	"github.com/sells-group/lead-enricher/internal/lead"
	"github.com/sells-group/lead-enricher/internal/ratelimit"
	"github.com/sells-group/lead-enricher/internal/resilience"
	"github.com/sells-group/lead-enricher/internal/store"
	"github.com/sells-group/lead-enricher/pkg/google"
)

// session is one command run: the locked output, the error log, the
// optional store and the ledger entry.
type session struct {
	command string
	input   string
	out     *dataset.Output
	errs    *errlog.Log
	store   store.Store
	run     *store.Run
	stats   enrich.Stats
}

func openSession(ctx context.Context, command, input, output string) (*session, error) {
	out, err := dataset.OpenOutput(output)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		_ = out.Close()
		return nil, err
	}

	s := &session{command: command, input: input, out: out, errs: errlog.New(), store: st}
	if st != nil {
		run, err := st.CreateRun(ctx, command, input, output)
		if err != nil {
			zap.L().Warn("runs: could not record run", zap.Error(err))
		} else {
			s.run = run
		}
	}
	return s, nil
}

// load reads the input dataset. A schema problem is recorded in the error
// log before it is returned.
func (s *session) load(path string) (*lead.Table, error) {
	t, err := dataset.Load(path)
	var se *lead.SchemaError
	if errors.As(err, &se) {
		s.errs.Record(0, "", "", errlog.ReasonSchemaError, se.Error())
	}
	return t, err
}

// engineOptions returns the cache options every lookup-capable engine shares.
func (s *session) engineOptions() []enrich.Option {
	var opts []enrich.Option
	if s.store != nil {
		opts = append(opts, enrich.WithCache(s.store, time.Duration(cfg.Store.CacheTTLHours)*time.Hour))
	}
	return opts
}

// finish writes t (when non-nil), flushes the error log, closes the ledger
// entry and releases the output lock. It returns runErr, or the first
// cleanup error when the run itself succeeded.
func (s *session) finish(ctx context.Context, t *lead.Table, runErr error) error {
	// The run context may already be cancelled.
	ctx = context.WithoutCancel(ctx)
	var errs []error

	if t != nil {
		if err := s.out.Save(t); err != nil {
			errs = append(errs, err)
		}
	}

	logPath := errlog.PathFor(s.out.Path())
	if err := s.errs.Flush(logPath); err != nil {
		errs = append(errs, err)
	}

	if s.store != nil {
		if s.run != nil {
			if err := s.store.CompleteRun(ctx, s.run.ID, runStatus(runErr, s.stats), s.stats); err != nil {
				zap.L().Warn("runs: could not complete run", zap.String("run_id", s.run.ID), zap.Error(err))
			}
		}
		if err := s.store.Close(); err != nil {
			errs = append(errs, eris.Wrap(err, "close store"))
		}
	}

	if err := s.out.Close(); err != nil {
		errs = append(errs, err)
	}

	s.stats.Log(s.command)
	printSummary(os.Stdout, s.stats)

	if runErr != nil {
		return runErr
	}
	return errors.Join(errs...)
}

func runStatus(err error, stats enrich.Stats) store.RunStatus {
	switch {
	case stats.Interrupted || errors.Is(err, context.Canceled):
		return store.RunStatusInterrupted
	case err != nil:
		return store.RunStatusFailed
	default:
		return store.RunStatusComplete
	}
}

func retryPolicy() resilience.Policy {
	return resilience.FromConfig(cfg.Retry)
}

// runLimiter is the external-call budget of one run. Places requests,
// geocoding and homepage fetches all acquire it.
func runLimiter() *ratelimit.Limiter {
	return ratelimit.New(time.Duration(cfg.Lookup.RequestDelayMs) * time.Millisecond)
}

// webLimiter adds the website delay on top of the run limiter.
func webLimiter() *ratelimit.Limiter {
	return ratelimit.New(time.Duration(cfg.Website.DelayMs) * time.Millisecond)
}

func placesService() *directory.PlacesService {
	var opts []google.Option
	if cfg.Google.BaseURL != "" {
		opts = append(opts, google.WithBaseURL(cfg.Google.BaseURL))
	}
	client := google.NewClient(cfg.Google.Key, opts...)
	return directory.NewPlacesService(client, cfg.Google.Region)
}

// printSummary writes the run counters and estimated cost.
func printSummary(out io.Writer, s enrich.Stats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Total rows:\t%d\n", s.Total)
	_, _ = fmt.Fprintf(w, "Skipped (complete):\t%d\n", s.Skipped)
	_, _ = fmt.Fprintf(w, "URL-only fetched:\t%d\n", s.URLOnly)
	_, _ = fmt.Fprintf(w, "Full fetched:\t%d\n", s.Full)
	_, _ = fmt.Fprintf(w, "Enriched:\t%d\n", s.Enriched)
	_, _ = fmt.Fprintf(w, "Not found:\t%d\n", s.NotFound)
	_, _ = fmt.Fprintf(w, "Failed:\t%d\n", s.Failed)
	if s.Invalid > 0 {
		_, _ = fmt.Fprintf(w, "Invalid rows:\t%d\n", s.Invalid)
	}
	_, _ = fmt.Fprintf(w, "Cache hits:\t%d\n", s.CacheHits)
	if s.Found > 0 || s.Appended > 0 {
		_, _ = fmt.Fprintf(w, "Search results:\t%d\n", s.Found)
		_, _ = fmt.Fprintf(w, "Appended:\t%d\n", s.Appended)
	}
	_, _ = fmt.Fprintf(w, "Est. Places cost:\t$%.4f\n", s.PlacesCostUSD)
	if s.LLMCostUSD > 0 {
		_, _ = fmt.Fprintf(w, "Est. LLM cost:\t$%.4f\n", s.LLMCostUSD)
	}
	if s.Interrupted {
		_, _ = fmt.Fprintln(w, "Interrupted:\tyes (re-run to resume)")
	}
	_ = w.Flush()
}
