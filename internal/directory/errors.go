package directory

import (
	"errors"
	"fmt"
)

// ErrNotFound reports a lookup the directory answered with no match. It is
// permanent and never retried.
var ErrNotFound = errors.New("directory: no matching place")

// LookupError reports a transient failure that persisted through every
// retry.
type LookupError struct {
	Query    string
	Attempts int
	Err      error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("directory: lookup %q failed after %d attempts: %v", e.Query, e.Attempts, e.Err)
}

func (e *LookupError) Unwrap() error {
	return e.Err
}

// ValidationError reports an invalid search parameter. It is raised before
// any directory call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("directory: invalid %s: %s", e.Field, e.Reason)
}
