// Package recurring advances recurring invoice schedules using calendar
// month arithmetic.
package recurring

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Interval is the billing period of a recurring schedule.
type Interval string

const (
	Monthly    Interval = "monthly"
	Quarterly  Interval = "quarterly"
	SemiAnnual Interval = "semiannual"
	Annual     Interval = "annual"
)

// Intervals lists every supported interval in ascending length.
var Intervals = []Interval{Monthly, Quarterly, SemiAnnual, Annual}

var (
	ErrUnknownInterval = errors.New("unknown recurring interval")
	ErrEnded           = errors.New("schedule has ended")
	ErrEndBeforeStart  = errors.New("end date before start date")
)

var intervalMonths = map[Interval]int{
	Monthly:    1,
	Quarterly:  3,
	SemiAnnual: 6,
	Annual:     12,
}

// ParseInterval accepts the canonical names plus a few aliases used by the
// admin forms ("semi-annual", "yearly").
func ParseInterval(s string) (Interval, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "monthly":
		return Monthly, nil
	case "quarterly":
		return Quarterly, nil
	case "semiannual", "semi-annual", "semi_annual":
		return SemiAnnual, nil
	case "annual", "yearly":
		return Annual, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownInterval, s)
}

// Months returns the step of the interval in calendar months.
func (i Interval) Months() (int, error) {
	m, ok := intervalMonths[i]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownInterval, string(i))
	}
	return m, nil
}

// Status of a schedule.
type Status string

const (
	StatusActive Status = "active"
	StatusPaused Status = "paused"
	StatusEnded  Status = "ended"
)

// Schedule is the scheduling part of a recurring invoice template.
type Schedule struct {
	Interval        Interval
	StartDate       time.Time
	EndDate         *time.Time
	NextInvoiceDate time.Time
	Status          Status
}

// New returns an active schedule whose first invoice is due on start.
func New(interval Interval, start time.Time, end *time.Time) (Schedule, error) {
	if _, err := interval.Months(); err != nil {
		return Schedule{}, err
	}
	start = Day(start)
	if end != nil {
		e := Day(*end)
		if e.Before(start) {
			return Schedule{}, ErrEndBeforeStart
		}
		end = &e
	}
	return Schedule{Interval: interval, StartDate: start, EndDate: end, NextInvoiceDate: start, Status: StatusActive}, nil
}

// Day truncates t to midnight UTC of its UTC calendar date. Dates are stored
// as UTC midnights, so a value reloaded in another location maps back to the
// day it was saved as.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func daysIn(y int, m time.Month) int {
	return time.Date(y, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// AddMonths moves t forward by n calendar months, landing on anchorDay or
// on the last day of the target month when anchorDay does not exist there.
func AddMonths(t time.Time, n, anchorDay int) time.Time {
	y, m, _ := t.UTC().Date()
	total := int(m) - 1 + n
	y += total / 12
	total %= 12
	if total < 0 {
		total += 12
		y--
	}
	month := time.Month(total + 1)
	day := anchorDay
	if last := daysIn(y, month); day > last {
		day = last
	}
	return time.Date(y, month, day, 0, 0, 0, 0, time.UTC)
}

// Due reports whether an invoice should be generated at now.
func (s Schedule) Due(now time.Time) bool {
	return s.Status == StatusActive && !Day(s.NextInvoiceDate).After(Day(now))
}

// Exhausted reports whether date lies past the end of the schedule.
func (s Schedule) Exhausted(date time.Time) bool {
	return s.EndDate != nil && Day(date).After(Day(*s.EndDate))
}

// Advance computes the invoice date following NextInvoiceDate. ended is true
// when that date lies past EndDate; the caller must then stop generating.
// The day of month is anchored on StartDate so that a schedule starting on
// the 31st returns to the 31st after passing through shorter months.
func Advance(s Schedule) (next time.Time, ended bool, err error) {
	months, err := s.Interval.Months()
	if err != nil {
		return time.Time{}, false, err
	}
	start := Day(s.StartDate)
	next = AddMonths(s.NextInvoiceDate, months, start.Day())
	if next.Before(start) {
		next = start
	}
	return next, s.Exhausted(next), nil
}

// Step applies Advance to s, transitioning to StatusEnded when exhausted.
func (s *Schedule) Step() error {
	next, ended, err := Advance(*s)
	if err != nil {
		return err
	}
	s.NextInvoiceDate = next
	if ended {
		s.Status = StatusEnded
	}
	return nil
}

// Pause stops generation. Ended schedules cannot be paused.
func (s *Schedule) Pause() error {
	if s.Status == StatusEnded {
		return ErrEnded
	}
	s.Status = StatusPaused
	return nil
}

// Resume reactivates a paused schedule without touching NextInvoiceDate.
func (s *Schedule) Resume() error {
	if s.Status == StatusEnded {
		return ErrEnded
	}
	s.Status = StatusActive
	return nil
}
