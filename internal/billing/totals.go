package billing

import (
	"github.com/diewo77/go-billing/validation"
	"github.com/shopspring/decimal"
)

// Totals are the derived amounts of a document. They are always computed
// together by Aggregate.
type Totals struct {
	Subtotal       decimal.Decimal `json:"subtotal"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	Total          decimal.Decimal `json:"total"`
}

// Equal compares totals at storage precision.
func (t Totals) Equal(o Totals) bool {
	eq := func(a, b decimal.Decimal) bool {
		return a.Round(StoragePlaces).Equal(b.Round(StoragePlaces))
	}
	return eq(t.Subtotal, o.Subtotal) && eq(t.DiscountAmount, o.DiscountAmount) && eq(t.Total, o.Total)
}

// Rounded returns the totals rounded to currency precision for display.
func (t Totals) Rounded() Totals {
	return Totals{Subtotal: RoundMoney(t.Subtotal), DiscountAmount: RoundMoney(t.DiscountAmount), Total: RoundMoney(t.Total)}
}

// Result is the output of Aggregate: the persistable lines in display order
// with positions and totals re-derived, plus the document totals.
type Result struct {
	Lines  []Line
	Totals Totals
}

// Aggregate drops lines without description, recomputes every line total,
// renumbers positions from 1 and derives subtotal, discount and total.
// It never mutates its input.
func Aggregate(lines []Line, discountPercent decimal.Decimal) Result {
	kept := make([]Line, 0, len(lines))
	subtotal := decimal.Zero
	for _, l := range lines {
		if l.Description == "" {
			continue
		}
		l.Position = len(kept) + 1
		l.Total = LineTotal(l.Quantity, l.UnitPrice, l.DiscountPercent)
		subtotal = subtotal.Add(l.Total)
		kept = append(kept, l)
	}
	discount := subtotal.Mul(discountPercent.Shift(-2)).Round(MoneyPlaces)
	return Result{
		Lines: kept,
		Totals: Totals{
			Subtotal:       subtotal,
			DiscountAmount: discount,
			Total:          subtotal.Sub(discount),
		},
	}
}

// RequireLines returns a *ValidationError when no line survives aggregation.
func RequireLines(r Result) error {
	if len(r.Lines) > 0 {
		return nil
	}
	v := validation.Violations{}
	v.Add("items", "required")
	return NewValidationError(v)
}

// Check recomputes totals from lines and returns a *ConsistencyError when
// they differ from stored.
func Check(stored Totals, lines []Line, discountPercent decimal.Decimal) error {
	recomputed := Aggregate(lines, discountPercent).Totals
	if stored.Equal(recomputed) {
		return nil
	}
	return &ConsistencyError{Stored: stored, Recomputed: recomputed}
}
