// Package numbering hands out unique, human readable document numbers from
// persisted per-kind counters.
package numbering

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/diewo77/go-billing/internal/models"
)

// Kind names a sequence.
type Kind string

const (
	KindQuote    Kind = "quote"
	KindInvoice  Kind = "invoice"
	KindCustomer Kind = "customer"
)

// Kinds lists the sequences seeded at startup.
var Kinds = []Kind{KindQuote, KindInvoice, KindCustomer}

// ParseKind validates a sequence kind coming from the outside.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Format renders value for seq. Year-scoped sequences embed the year:
// PREFIX-YEAR-0001SUFFIX; others render PREFIX-000001SUFFIX.
func Format(seq models.NumberSequence, value int64, year int) string {
	padding := seq.Padding
	if padding <= 0 {
		padding = 4
	}
	parts := make([]string, 0, 3)
	if seq.Prefix != "" {
		parts = append(parts, seq.Prefix)
	}
	if seq.YearResetEnabled {
		parts = append(parts, strconv.Itoa(year))
	}
	parts = append(parts, fmt.Sprintf("%0*d", padding, value))
	return strings.Join(parts, "-") + seq.Suffix
}

// Allocate computes the number handed out by seq at now and the sequence
// state to persist afterwards. It does not touch storage.
func Allocate(seq models.NumberSequence, now time.Time) (string, models.NumberSequence) {
	year := now.Year()
	value := seq.Counter
	if value < 1 {
		value = 1
	}
	if seq.YearResetEnabled && seq.LastYear != 0 && seq.LastYear != year {
		value = 1
	}
	next := seq
	next.Counter = value + 1
	next.LastYear = year
	return Format(seq, value, year), next
}
