package enrich

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-enricher/internal/directory"
	"github.com/sells-group/lead-enricher/internal/errlog"
	"github.com/sells-group/lead-enricher/internal/lead"
	"github.com/sells-group/lead-enricher/internal/ratelimit"
	"github.com/sells-group/lead-enricher/internal/website"
)

func ptr[T any](v T) *T { return &v }

var acme = directory.Candidate{
	PlaceID:     "p1",
	Name:        "Acme Plumbing",
	Address:     "1 Main St, Austin, TX",
	Rating:      ptr(4.6),
	ReviewCount: ptr(212),
	MapsURL:     "https://maps.google.com/?cid=1",
}

func TestLookup_FillsEmptyRow(t *testing.T) {
	r := &fakeResolver{places: map[string]directory.Candidate{"Acme Plumbing": acme}}
	e := New(errlog.New(), WithResolver(r))
	tbl := leads(row("Acme Plumbing", "1 Main St, Austin, TX"))

	stats, err := e.Lookup(context.Background(), tbl)
	require.NoError(t, err)

	rec := tbl.Records[0]
	assert.Equal(t, "4.6", rec[lead.FieldRating])
	assert.Equal(t, "212", rec[lead.FieldReviewCount])
	assert.Equal(t, acme.MapsURL, rec[lead.FieldMapsURL])
	assert.Equal(t, lead.StatusFound, rec[lead.FieldLookupStatus])
	assert.Equal(t, 1, stats.Full)
	assert.Equal(t, 1, stats.Enriched)
	assert.True(t, tbl.HasField(lead.FieldLookupStatus))
	assert.Equal(t, 0, e.Errors().Len())
}

func TestLookup_UserRatingColumnPassesThrough(t *testing.T) {
	tbl, err := lead.Normalize(
		[]string{"Company Name", "Company Address", "Rating"},
		[][]string{{"Acme Plumbing", "1 Main St", "Hot lead"}},
	)
	require.NoError(t, err)
	r := &fakeResolver{places: map[string]directory.Candidate{"Acme Plumbing": acme}}
	e := New(errlog.New(), WithResolver(r))

	_, err = e.Lookup(context.Background(), tbl)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"Company Name", "Company Address", "Rating",
		"Google Review Rating", "Google Review Count", "Google Maps URL", "Google Lookup Status",
	}, tbl.Header())
	assert.Equal(t, []string{
		"Acme Plumbing", "1 Main St", "Hot lead",
		"4.6", "212", acme.MapsURL, lead.StatusFound,
	}, tbl.Rows()[1])
}

func TestLookup_CompleteRowsUntouched(t *testing.T) {
	r := &fakeResolver{}
	e := New(errlog.New(), WithResolver(r))
	rec := row("Acme Plumbing", "1 Main St")
	rec[lead.FieldRating] = "4.1"
	rec[lead.FieldReviewCount] = "10"
	rec[lead.FieldMapsURL] = "https://maps.google.com/?cid=9"
	before := rec.Clone()
	tbl := leads(rec)

	stats, err := e.Lookup(context.Background(), tbl)
	require.NoError(t, err)

	assert.Empty(t, r.full)
	assert.Empty(t, r.urlOnly)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, before, tbl.Records[0])
}

func TestLookup_PartialRowFetchesOnlyURL(t *testing.T) {
	r := &fakeResolver{places: map[string]directory.Candidate{"Acme Plumbing": acme}}
	e := New(errlog.New(), WithResolver(r))
	rec := row("Acme Plumbing", "1 Main St")
	rec[lead.FieldRating] = "4.0"
	rec[lead.FieldReviewCount] = "7"
	tbl := leads(rec)

	stats, err := e.Lookup(context.Background(), tbl)
	require.NoError(t, err)

	assert.Equal(t, []string{"Acme Plumbing"}, r.urlOnly)
	assert.Empty(t, r.full)
	assert.Equal(t, 1, stats.URLOnly)
	assert.Equal(t, "4.0", tbl.Records[0][lead.FieldRating])
	assert.Equal(t, "7", tbl.Records[0][lead.FieldReviewCount])
	assert.Equal(t, acme.MapsURL, tbl.Records[0][lead.FieldMapsURL])
}

func TestLookup_NotFoundIsLoggedAndRemembered(t *testing.T) {
	r := &fakeResolver{}
	errs := errlog.New()
	e := New(errs, WithResolver(r))
	tbl := leads(row("Tesla", "3500 Deer Creek Road, Palo Alto, CA"))

	stats, err := e.Lookup(context.Background(), tbl)
	require.NoError(t, err)

	rec := tbl.Records[0]
	assert.Empty(t, rec[lead.FieldRating])
	assert.Empty(t, rec[lead.FieldReviewCount])
	assert.Empty(t, rec[lead.FieldMapsURL])
	assert.Equal(t, lead.StatusNotFound, rec[lead.FieldLookupStatus])
	assert.Equal(t, 1, stats.NotFound)

	require.Equal(t, 1, errs.Len())
	entry := errs.Entries()[0]
	assert.Equal(t, 2, entry.Row)
	assert.Equal(t, errlog.ReasonNotFound, entry.Reason)

	// A second run skips the row.
	_, err = e.Lookup(context.Background(), tbl)
	require.NoError(t, err)
	assert.Len(t, r.full, 1)
}

func TestLookup_RetryNotFound(t *testing.T) {
	r := &fakeResolver{places: map[string]directory.Candidate{"Acme Plumbing": acme}}
	e := New(errlog.New(), WithResolver(r), WithRetryNotFound(true))
	rec := row("Acme Plumbing", "1 Main St")
	rec[lead.FieldLookupStatus] = lead.StatusNotFound
	tbl := leads(rec)

	_, err := e.Lookup(context.Background(), tbl)
	require.NoError(t, err)
	assert.Len(t, r.full, 1)
	assert.Equal(t, lead.StatusFound, tbl.Records[0][lead.FieldLookupStatus])
}

func TestLookup_OneFetchPerIdentity(t *testing.T) {
	r := &fakeResolver{places: map[string]directory.Candidate{"Acme Plumbing": acme}}
	e := New(errlog.New(), WithResolver(r))
	tbl := leads(
		row("Acme Plumbing", "1 Main St"),
		row("  ACME plumbing ", "1 main st"),
	)

	stats, err := e.Lookup(context.Background(), tbl)
	require.NoError(t, err)

	assert.Len(t, r.full, 1)
	assert.Equal(t, 1, stats.CacheHits)
	assert.Equal(t, 2, stats.Enriched)
	assert.Equal(t, acme.MapsURL, tbl.Records[1][lead.FieldMapsURL])
}

func TestLookup_MissingNameOrAddress(t *testing.T) {
	r := &fakeResolver{}
	errs := errlog.New()
	e := New(errs, WithResolver(r))
	tbl := leads(row("", "1 Main St"), row("Acme", ""))

	stats, err := e.Lookup(context.Background(), tbl)
	require.NoError(t, err)

	assert.Empty(t, r.full)
	assert.Equal(t, 2, stats.Invalid)
	assert.Equal(t, 2, errs.Count(errlog.ReasonValidationError))
	assert.Equal(t, 3, errs.Entries()[1].Row)
}

func TestLookup_FailureDoesNotAbortRun(t *testing.T) {
	r := &fakeResolver{
		places: map[string]directory.Candidate{"Acme Plumbing": acme},
		errs: map[string]error{"Beta": &directory.LookupError{
			Query: "Beta, 2 Main St", Attempts: 3, Err: errors.New("503"),
		}},
	}
	errs := errlog.New()
	e := New(errs, WithResolver(r))
	tbl := leads(row("Beta", "2 Main St"), row("Acme Plumbing", "1 Main St"))

	stats, err := e.Lookup(context.Background(), tbl)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.Enriched)
	assert.Empty(t, tbl.Records[0][lead.FieldLookupStatus])
	assert.Equal(t, 1, errs.Count(errlog.ReasonLookupFailed))
}

func TestLookup_FatalErrorStopsRun(t *testing.T) {
	r := &fakeResolver{errs: map[string]error{"Beta": errors.New("places: HTTP 403")}}
	e := New(errlog.New(), WithResolver(r))
	tbl := leads(row("Beta", "2 Main St"), row("Acme", "1 Main St"))

	_, err := e.Lookup(context.Background(), tbl)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "enrich: lookup row 2")
	assert.Len(t, r.full, 1)
}

func TestLookup_InterruptBetweenRows(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := &fakeResolver{
		places:   map[string]directory.Candidate{"Acme Plumbing": acme},
		onLookup: cancel,
	}
	e := New(errlog.New(), WithResolver(r))
	tbl := leads(row("Acme Plumbing", "1 Main St"), row("Beta", "2 Main St"))

	stats, err := e.Lookup(ctx, tbl)
	require.ErrorIs(t, err, context.Canceled)
	assert.True(t, stats.Interrupted)
	assert.Len(t, r.full, 1)
	assert.Equal(t, lead.StatusFound, tbl.Records[0][lead.FieldLookupStatus])
	assert.Empty(t, tbl.Records[1][lead.FieldLookupStatus])
}

func TestLookup_UsesPersistentCache(t *testing.T) {
	cache := newFakeCache()
	r := &fakeResolver{places: map[string]directory.Candidate{"Acme Plumbing": acme}}

	first := leads(row("Acme Plumbing", "1 Main St"), row("Tesla", "Palo Alto"))
	_, err := New(errlog.New(), WithResolver(r), WithCache(cache, time.Hour)).Lookup(context.Background(), first)
	require.NoError(t, err)
	assert.Len(t, r.full, 2)
	assert.Equal(t, 2, cache.sets)

	second := leads(row("acme plumbing", "1 main st"), row("Tesla", "Palo Alto"))
	stats, err := New(errlog.New(), WithResolver(r), WithCache(cache, time.Hour)).Lookup(context.Background(), second)
	require.NoError(t, err)

	assert.Len(t, r.full, 2)
	assert.Equal(t, 2, stats.CacheHits)
	assert.Equal(t, acme.MapsURL, second.Records[0][lead.FieldMapsURL])
	assert.Equal(t, lead.StatusNotFound, second.Records[1][lead.FieldLookupStatus])
}

func TestLookup_CacheReadFailureFallsBackToLookup(t *testing.T) {
	cache := newFakeCache()
	cache.readErr = errors.New("database is locked")
	r := &fakeResolver{places: map[string]directory.Candidate{"Acme Plumbing": acme}}
	e := New(errlog.New(), WithResolver(r), WithCache(cache, time.Hour))

	_, err := e.Lookup(context.Background(), leads(row("Acme Plumbing", "1 Main St")))
	require.NoError(t, err)
	assert.Len(t, r.full, 1)
}

func TestSearch_BuildsTable(t *testing.T) {
	s := &fakeSearcher{results: []directory.Candidate{acme, {PlaceID: "p2", Name: "Beta", Address: "2 Main St"}}}
	e := New(errlog.New(), WithSearcher(s))

	tbl, stats, err := e.Search(context.Background(), directory.SearchRequest{Query: "plumbers", Limit: 5}, nil)
	require.NoError(t, err)

	require.Len(t, tbl.Records, 2)
	assert.Equal(t, lead.SearchColumns, tbl.Columns)
	assert.Equal(t, "Acme Plumbing", tbl.Records[0][lead.FieldCompanyName])
	assert.Equal(t, "4.6", tbl.Records[0][lead.FieldRating])
	assert.Equal(t, lead.StatusFound, tbl.Records[1][lead.FieldLookupStatus])
	assert.Equal(t, 2, stats.Found)
	assert.Equal(t, 2, stats.Appended)
}

func TestSearch_AppendIsIdempotent(t *testing.T) {
	s := &fakeSearcher{results: []directory.Candidate{acme, {PlaceID: "p2", Name: "Beta", Address: "2 Main St"}}}
	e := New(errlog.New(), WithSearcher(s))
	req := directory.SearchRequest{Query: "plumbers", Limit: 5}

	existing := leads(row("ACME Plumbing", "1 main st, austin, tx"))
	once, stats, err := e.Search(context.Background(), req, existing)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Appended)
	assert.Equal(t, 1, stats.Skipped)
	require.Len(t, once.Records, 2)

	twice, stats, err := e.Search(context.Background(), req, once)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Appended)
	assert.Equal(t, once.Records, twice.Records)
}

func TestSearch_PartialResultsOnLookupFailure(t *testing.T) {
	s := &fakeSearcher{
		results: []directory.Candidate{acme},
		err:     &directory.LookupError{Query: "plumbers", Attempts: 3, Err: errors.New("timeout")},
	}
	errs := errlog.New()
	e := New(errs, WithSearcher(s))

	tbl, stats, err := e.Search(context.Background(), directory.SearchRequest{Query: "plumbers", Limit: 40}, nil)
	require.NoError(t, err)
	assert.Len(t, tbl.Records, 1)
	assert.Equal(t, 1, stats.Failed)
	require.Equal(t, 1, errs.Len())
	assert.Equal(t, 0, errs.Entries()[0].Row)
}

func TestSearch_ValidationErrorIsFatal(t *testing.T) {
	s := &fakeSearcher{err: &directory.ValidationError{Field: "limit", Reason: "must be greater than zero"}}
	e := New(errlog.New(), WithSearcher(s))

	tbl, _, err := e.Search(context.Background(), directory.SearchRequest{Query: "plumbers"}, nil)
	var ve *directory.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Nil(t, tbl)
}

func TestWeb_EnrichesAndSkips(t *testing.T) {
	w := &fakeWeb{
		results: map[string]*website.Result{
			"acme.com": {Brief: "Acme: plumbing", Links: website.Links{LinkedIn: "https://linkedin.com/company/acme"}},
		},
		errs: map[string]error{
			"down.com": &website.FetchError{URL: "https://down.com", Reason: "Timeout"},
		},
	}
	errs := errlog.New()
	e := New(errs, WithWebsite(w, nil))

	done := row("Done", "1 St")
	done[lead.FieldWebsite] = "done.com"
	done[lead.FieldResearchBrief] = "Done: already researched"

	retry := row("Acme", "1 Main St")
	retry[lead.FieldWebsite] = "acme.com"
	retry[lead.FieldResearchBrief] = "Could not fetch: Timeout"

	down := row("Down", "3 Main St")
	down[lead.FieldWebsite] = "down.com"

	tbl := leads(done, retry, row("NoSite", "4 Main St"), down)

	stats, err := e.Web(context.Background(), tbl)
	require.NoError(t, err)

	assert.Equal(t, []string{"acme.com", "down.com"}, w.calls)
	assert.Equal(t, "Done: already researched", tbl.Records[0][lead.FieldResearchBrief])
	assert.Equal(t, "Acme: plumbing", tbl.Records[1][lead.FieldResearchBrief])
	assert.Equal(t, "https://linkedin.com/company/acme", tbl.Records[1][lead.FieldLinkedInURL])
	assert.Equal(t, BriefNoWebsite, tbl.Records[2][lead.FieldResearchBrief])
	assert.Equal(t, "Could not fetch: Timeout", tbl.Records[3][lead.FieldResearchBrief])
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, errs.Count(errlog.ReasonWebsiteFailed))
	assert.Equal(t, 5, errs.Entries()[0].Row)
	assert.True(t, tbl.HasField(lead.FieldResearchBrief))
}

func TestWeb_SharesRunLimiterWithDirectoryCalls(t *testing.T) {
	interval := 60 * time.Millisecond
	run := ratelimit.New(interval)
	w := &fakeWeb{results: map[string]*website.Result{
		"https://acme.example": {Brief: "Plumbing"},
	}}
	e := New(errlog.New(), WithWebsite(w, run, ratelimit.New(0)))
	rec := row("Acme Plumbing", "1 Main St")
	rec[lead.FieldWebsite] = "https://acme.example"
	tbl := leads(rec)

	// A directory call just spent the run's token.
	require.NoError(t, run.Acquire(context.Background()))

	start := time.Now()
	_, err := e.Web(context.Background(), tbl)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), interval-10*time.Millisecond)
	assert.Len(t, w.calls, 1)
}

func TestWeb_WebsiteDelayLayersOnRunLimiter(t *testing.T) {
	delay := 60 * time.Millisecond
	w := &fakeWeb{results: map[string]*website.Result{
		"https://acme.example": {Brief: "Plumbing"},
		"https://bolt.example": {Brief: "Electrical"},
	}}
	e := New(errlog.New(), WithWebsite(w, ratelimit.New(time.Millisecond), ratelimit.New(delay)))
	a := row("Acme Plumbing", "1 Main St")
	a[lead.FieldWebsite] = "https://acme.example"
	b := row("Bolt Electric", "2 Main St")
	b[lead.FieldWebsite] = "https://bolt.example"

	start := time.Now()
	_, err := e.Web(context.Background(), leads(a, b))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), delay-10*time.Millisecond)
	assert.Len(t, w.calls, 2)
}

func TestEmails_GeneratesMissingAndRetriesErrors(t *testing.T) {
	g := &fakeEmails{}
	e := New(errlog.New(), WithEmails(g, nil))

	has := row("Has", "1 St")
	has[lead.FieldGeneratedEmail] = "Hello already"
	failed := row("Failed", "2 St")
	failed[lead.FieldGeneratedEmail] = "Error: LLM error: timeout"
	tbl := leads(has, failed, row("New", "3 St"))

	stats, err := e.Emails(context.Background(), tbl)
	require.NoError(t, err)

	assert.Equal(t, []string{"Failed", "New"}, g.calls)
	assert.Equal(t, "Hello already", tbl.Records[0][lead.FieldGeneratedEmail])
	assert.Equal(t, "Hi Failed", tbl.Records[1][lead.FieldGeneratedEmail])
	assert.Equal(t, 2, stats.Enriched)
	assert.Equal(t, 1, stats.Skipped)
}

func TestEmails_FailureWritesErrorCell(t *testing.T) {
	g := &fakeEmails{err: errors.New("rate limited")}
	errs := errlog.New()
	e := New(errs, WithEmails(g, nil))
	tbl := leads(row("Acme", "1 St"))

	stats, err := e.Emails(context.Background(), tbl)
	require.NoError(t, err)

	assert.Equal(t, "Error: LLM error: rate limited", tbl.Records[0][lead.FieldGeneratedEmail])
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, errs.Count(errlog.ReasonGenerationFailed))
}

func TestStats_Add(t *testing.T) {
	s := Stats{Total: 3, Full: 2, PlacesCostUSD: 0.07}
	s.Add(Stats{Total: 3, Enriched: 2, Interrupted: true, LLMCostUSD: 0.01})

	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 2, s.Full)
	assert.Equal(t, 2, s.Enriched)
	assert.True(t, s.Interrupted)
	assert.InDelta(t, 0.07, s.PlacesCostUSD, 1e-9)
	assert.InDelta(t, 0.01, s.LLMCostUSD, 1e-9)
}
