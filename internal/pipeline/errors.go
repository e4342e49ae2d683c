package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/icewatch/seaice-stats/internal/domain"
)

// ErrNoData reports an operation over a range or store with nothing to work
// on.
var ErrNoData = errors.New("pipeline: no data for requested range")

// DateFailure is one date that could not be processed.
type DateFailure struct {
	Date time.Time
	Err  error
}

// PartialError reports a batch that completed with some dates failed. The
// successful dates were still processed and persisted; callers decide whether
// a partial result is acceptable.
type PartialError struct {
	Hemisphere string
	Operation  string
	Failures   []DateFailure
}

func (e *PartialError) Error() string {
	first := e.Failures[0]
	return fmt.Sprintf("pipeline: %s %s: %d of batch failed, first %s: %v",
		e.Operation, e.Hemisphere, len(e.Failures),
		first.Date.Format(domain.DateFormat), first.Err)
}

// partialOrNil wraps failures into a PartialError, or returns nil when there
// were none. Returning the concrete type directly would make the nil check at
// the caller lie.
func partialOrNil(hemisphere, operation string, failures []DateFailure) error {
	if len(failures) == 0 {
		return nil
	}
	return &PartialError{Hemisphere: hemisphere, Operation: operation, Failures: failures}
}
