package directory

import (
	"context"
	"errors"
	"time"

	"github.com/sells-group/lead-enricher/internal/resilience"
)

// fakeService scripts FindPlace and SearchPlaces responses.
type fakeService struct {
	findResults [][]Candidate
	findErrs    []error
	findCalls   []FieldSet

	pages    []*Page
	pageErrs []error
	pageReqs []PageRequest
}

func (f *fakeService) FindPlace(_ context.Context, _, _ string, fields FieldSet) ([]Candidate, error) {
	i := len(f.findCalls)
	f.findCalls = append(f.findCalls, fields)
	if i < len(f.findErrs) && f.findErrs[i] != nil {
		return nil, f.findErrs[i]
	}
	if i < len(f.findResults) {
		return f.findResults[i], nil
	}
	return nil, nil
}

func (f *fakeService) SearchPlaces(_ context.Context, req PageRequest) (*Page, error) {
	i := len(f.pageReqs)
	f.pageReqs = append(f.pageReqs, req)
	if i < len(f.pageErrs) && f.pageErrs[i] != nil {
		return nil, f.pageErrs[i]
	}
	if i < len(f.pages) {
		return f.pages[i], nil
	}
	return &Page{}, nil
}

func transient() error {
	return resilience.NewTransientError(errors.New("503 service unavailable"), 503)
}

func testPolicy() resilience.Policy {
	return resilience.Policy{Attempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func ptr[T any](v T) *T { return &v }
