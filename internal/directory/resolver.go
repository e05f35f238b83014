package directory

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/sells-group/lead-enricher/internal/ratelimit"
	"github.com/sells-group/lead-enricher/internal/resilience"
)

// Usage counts directory calls issued, retries included.
type Usage struct {
	FullLookups    int
	URLOnlyLookups int
	SearchPages    int
}

// Total returns the number of billable calls.
func (u Usage) Total() int {
	return u.FullLookups + u.URLOnlyLookups + u.SearchPages
}

// Resolver matches one business to at most one directory place.
type Resolver struct {
	svc     Service
	limiter *ratelimit.Limiter
	policy  resilience.Policy
	usage   Usage
}

// NewResolver creates a Resolver. Every attempt, retries included, first
// acquires limiter.
func NewResolver(svc Service, limiter *ratelimit.Limiter, policy resilience.Policy) *Resolver {
	return &Resolver{svc: svc, limiter: limiter, policy: policy}
}

// Usage returns the calls issued so far.
func (r *Resolver) Usage() Usage {
	return r.usage
}

// Resolve looks up rating, review count and Maps URL for a business. It
// returns ErrNotFound when the directory has no match, *LookupError when
// transient failures outlast the retry policy, and any other error unchanged.
func (r *Resolver) Resolve(ctx context.Context, name, address string) (*Candidate, error) {
	return r.find(ctx, name, address, FieldsFull)
}

// ResolveURL looks up only the Maps URL of a business.
func (r *Resolver) ResolveURL(ctx context.Context, name, address string) (string, error) {
	c, err := r.find(ctx, name, address, FieldsURLOnly)
	if err != nil {
		return "", err
	}
	if c.MapsURL == "" {
		return "", ErrNotFound
	}
	return c.MapsURL, nil
}

func (r *Resolver) find(ctx context.Context, name, address string, fields FieldSet) (*Candidate, error) {
	policy := r.policy
	policy.BeforeAttempt = r.limiter.Acquire
	policy.OnRetry = resilience.RetryLogger("places", "find_place_"+fields.String())

	candidates, err := resilience.DoVal(ctx, policy, func(ctx context.Context) ([]Candidate, error) {
		if fields == FieldsURLOnly {
			r.usage.URLOnlyLookups++
		} else {
			r.usage.FullLookups++
		}
		return r.svc.FindPlace(ctx, name, address, fields)
	})
	if err != nil {
		var ex *resilience.ExhaustedError
		if errors.As(err, &ex) {
			return nil, &LookupError{Query: Query(name, address), Attempts: ex.Attempts, Err: ex.Err}
		}
		return nil, err
	}

	if len(candidates) == 0 {
		return nil, ErrNotFound
	}

	top := candidates[0]
	zap.L().Debug("directory match",
		zap.String("query", Query(name, address)),
		zap.String("place_id", top.PlaceID),
		zap.Int("candidates", len(candidates)),
		zap.Stringer("fields", fields),
	)
	return &top, nil
}
