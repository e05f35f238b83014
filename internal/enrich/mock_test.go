package enrich

import (
	"context"
	"time"

	"github.com/sells-group/lead-enricher/internal/directory"
	"github.com/sells-group/lead-enricher/internal/lead"
	"github.com/sells-group/lead-enricher/internal/store"
	"github.com/sells-group/lead-enricher/internal/website"
)

// fakeResolver answers lookups from a map keyed by company name.
type fakeResolver struct {
	places   map[string]directory.Candidate
	errs     map[string]error
	full     []string
	urlOnly  []string
	onLookup func()
}

func (f *fakeResolver) Resolve(_ context.Context, name, _ string) (*directory.Candidate, error) {
	f.full = append(f.full, name)
	if f.onLookup != nil {
		f.onLookup()
	}
	if err := f.errs[name]; err != nil {
		return nil, err
	}
	c, ok := f.places[name]
	if !ok {
		return nil, directory.ErrNotFound
	}
	return &c, nil
}

func (f *fakeResolver) ResolveURL(_ context.Context, name, _ string) (string, error) {
	f.urlOnly = append(f.urlOnly, name)
	if err := f.errs[name]; err != nil {
		return "", err
	}
	c, ok := f.places[name]
	if !ok || c.MapsURL == "" {
		return "", directory.ErrNotFound
	}
	return c.MapsURL, nil
}

type fakeSearcher struct {
	results []directory.Candidate
	err     error
	reqs    []directory.SearchRequest
}

func (f *fakeSearcher) Search(_ context.Context, req directory.SearchRequest) ([]directory.Candidate, error) {
	f.reqs = append(f.reqs, req)
	return f.results, f.err
}

type fakeWeb struct {
	results map[string]*website.Result
	errs    map[string]error
	calls   []string
}

func (f *fakeWeb) Enrich(_ context.Context, rawURL, _ string) (*website.Result, error) {
	f.calls = append(f.calls, rawURL)
	if err := f.errs[rawURL]; err != nil {
		return nil, err
	}
	return f.results[rawURL], nil
}

type fakeEmails struct {
	err   error
	calls []string
}

func (f *fakeEmails) Email(_ context.Context, rec lead.Record) (string, error) {
	f.calls = append(f.calls, rec.Name())
	if f.err != nil {
		return "", f.err
	}
	return "Hi " + rec.Name(), nil
}

// fakeCache is an in-memory store.Store holding only the lookup cache.
type fakeCache struct {
	store.Store
	places  map[string]store.CachedPlace
	readErr error
	sets    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{places: make(map[string]store.CachedPlace)}
}

func (f *fakeCache) GetCachedPlace(_ context.Context, key string) (*store.CachedPlace, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	cp, ok := f.places[key]
	if !ok {
		return nil, nil
	}
	return &cp, nil
}

func (f *fakeCache) SetCachedPlace(_ context.Context, key string, found bool, c directory.Candidate, ttl time.Duration) error {
	f.sets++
	now := time.Now()
	f.places[key] = store.CachedPlace{Key: key, Found: found, Candidate: c, CachedAt: now, ExpiresAt: now.Add(ttl)}
	return nil
}

func leads(rows ...lead.Record) *lead.Table {
	return &lead.Table{
		Columns: []lead.Column{
			{Header: "Business Name", Field: lead.FieldCompanyName},
			{Header: "Business Address", Field: lead.FieldCompanyAddress},
			{Header: "Website", Field: lead.FieldWebsite},
		},
		Records: rows,
	}
}

func row(name, address string) lead.Record {
	return lead.Record{lead.FieldCompanyName: name, lead.FieldCompanyAddress: address}
}
