package directory

import (
	"context"
	"errors"
	"math"

	"go.uber.org/zap"

	"github.com/sells-group/lead-enricher/internal/ratelimit"
	"github.com/sells-group/lead-enricher/internal/resilience"
	"github.com/sells-group/lead-enricher/pkg/google"
)

// MetersPerMile converts a search radius given in miles.
const MetersPerMile = 1609.34

// SearchRequest is an open-ended directory search.
type SearchRequest struct {
	Query        string
	Limit        int
	Location     *LatLng
	RadiusMeters float64
	Region       string
}

// Validate rejects requests that must not reach the directory.
func (r SearchRequest) Validate() error {
	switch {
	case r.Query == "":
		return &ValidationError{Field: "query", Reason: "must not be empty"}
	case r.Limit <= 0:
		return &ValidationError{Field: "limit", Reason: "must be greater than zero"}
	case r.Location != nil && r.RadiusMeters <= 0:
		return &ValidationError{Field: "radius", Reason: "must be positive when a location is given"}
	case r.Location == nil && r.RadiusMeters > 0:
		return &ValidationError{Field: "location", Reason: "is required when a radius is given"}
	case r.Location != nil && (math.Abs(r.Location.Lat) > 90 || math.Abs(r.Location.Lng) > 180):
		return &ValidationError{Field: "location", Reason: "coordinates out of range"}
	}
	return nil
}

// Aggregator assembles a bounded, duplicate-free candidate list from paged
// search results.
type Aggregator struct {
	svc     Service
	limiter *ratelimit.Limiter
	policy  resilience.Policy
	pages   int
}

// NewAggregator creates an Aggregator sharing the run's limiter.
func NewAggregator(svc Service, limiter *ratelimit.Limiter, policy resilience.Policy) *Aggregator {
	return &Aggregator{svc: svc, limiter: limiter, policy: policy}
}

// Usage returns the search pages requested so far.
func (a *Aggregator) Usage() Usage {
	return Usage{SearchPages: a.pages}
}

// Search pages through results until req.Limit unique places are gathered
// or the directory has no further page. Places already seen in this call
// are dropped and the last page is truncated at the limit.
//
// When a page still fails after retries, the candidates gathered so far are
// returned together with a *LookupError.
func (a *Aggregator) Search(ctx context.Context, req SearchRequest) ([]Candidate, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	log := zap.L().With(zap.String("query", req.Query), zap.Int("limit", req.Limit))

	policy := a.policy
	policy.BeforeAttempt = a.limiter.Acquire
	policy.OnRetry = resilience.RetryLogger("places", "search_page")

	pageReq := PageRequest{
		Query:        req.Query,
		PageSize:     min(req.Limit, google.MaxPageSize),
		Location:     req.Location,
		RadiusMeters: req.RadiusMeters,
		Region:       req.Region,
	}

	seen := make(map[string]struct{})
	out := make([]Candidate, 0, min(req.Limit, 4*google.MaxPageSize))

	for len(out) < req.Limit {
		page, err := resilience.DoVal(ctx, policy, func(ctx context.Context) (*Page, error) {
			a.pages++
			return a.svc.SearchPlaces(ctx, pageReq)
		})
		if err != nil {
			var ex *resilience.ExhaustedError
			if errors.As(err, &ex) {
				return out, &LookupError{Query: req.Query, Attempts: ex.Attempts, Err: ex.Err}
			}
			return out, err
		}

		dupes := 0
		for _, c := range page.Candidates {
			if c.PlaceID != "" {
				if _, ok := seen[c.PlaceID]; ok {
					dupes++
					continue
				}
				seen[c.PlaceID] = struct{}{}
			}
			out = append(out, c)
			if len(out) == req.Limit {
				break
			}
		}

		log.Info("search page",
			zap.Int("page_results", len(page.Candidates)),
			zap.Int("duplicates", dupes),
			zap.Int("total", len(out)),
		)

		// A repeated token would loop forever.
		if page.NextPageToken == "" || page.NextPageToken == pageReq.PageToken {
			break
		}
		pageReq.PageToken = page.NextPageToken
	}

	return out, nil
}
