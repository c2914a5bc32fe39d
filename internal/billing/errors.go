package billing

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/diewo77/go-billing/validation"
)

var (
	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrInconsistentTotals is matched by every *ConsistencyError.
	ErrInconsistentTotals = errors.New("stored totals do not match items")
)

// ValidationError blocks persistence of a document. Violations are keyed by
// field path so handlers can surface them next to the offending input.
type ValidationError struct {
	Violations validation.Violations
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Violations))
	for k := range e.Violations {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+e.Violations[k])
	}
	return fmt.Sprintf("%s: %s", ErrValidation.Error(), strings.Join(parts, ", "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError returns nil when v is empty.
func NewValidationError(v validation.Violations) error {
	if v.Empty() {
		return nil
	}
	return &ValidationError{Violations: v}
}

// ConsistencyError reports a document whose stored totals differ from the
// totals recomputed from its stored items.
type ConsistencyError struct {
	Stored     Totals
	Recomputed Totals
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("%s: stored subtotal=%s discount=%s total=%s, recomputed subtotal=%s discount=%s total=%s",
		ErrInconsistentTotals.Error(),
		e.Stored.Subtotal, e.Stored.DiscountAmount, e.Stored.Total,
		e.Recomputed.Subtotal, e.Recomputed.DiscountAmount, e.Recomputed.Total)
}

func (e *ConsistencyError) Unwrap() error { return ErrInconsistentTotals }
