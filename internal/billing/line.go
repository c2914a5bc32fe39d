// Package billing computes line and document totals for quotes, invoices and
// recurring invoice templates. All arithmetic is done on decimals at full
// precision; rounding to cents only happens for the document discount and for
// display.
package billing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/diewo77/go-billing/validation"
	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)
	// MaxDiscount is the upper bound for line and document discounts.
	MaxDiscount = hundred
	// MaxAmount is the largest value a numeric(18,6) column holds.
	MaxAmount = decimal.RequireFromString("999999999999.999999")
	// overflow stands in for any parsed value too large to rescale.
	overflow = decimal.New(1, amountDigits)
)

// amountDigits is the number of integer digits of a numeric(18,6) column.
const amountDigits = 12

// MoneyPlaces is the currency precision used for display and discount rounding.
const MoneyPlaces = 2

// StoragePlaces is the precision of decimal columns in the database.
const StoragePlaces = 6

// Policy decides what happens to out-of-range or non-numeric input.
type Policy int

const (
	// Clamp coerces bad input to the nearest valid value (non-numeric -> 0).
	Clamp Policy = iota
	// Strict rejects bad input with a *ValidationError.
	Strict
)

// ParsePolicy maps a config value to a Policy, defaulting to Clamp.
func ParsePolicy(s string) Policy {
	if strings.EqualFold(strings.TrimSpace(s), "strict") {
		return Strict
	}
	return Clamp
}

func (p Policy) String() string {
	if p == Strict {
		return "strict"
	}
	return "clamp"
}

// Input is a raw numeric form value. It accepts JSON numbers, strings and
// null so that lenient parsing can be decided by the Policy rather than by
// the JSON decoder.
type Input string

func (in *Input) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*in = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*in = Input(s)
		return nil
	}
	*in = Input(b)
	return nil
}

// Dec is a convenience constructor used by callers that already hold a decimal.
func Dec(d decimal.Decimal) Input { return Input(d.String()) }

// LineInput is a line item as submitted by the editing UI.
type LineInput struct {
	Description     string `json:"description"`
	Quantity        Input  `json:"quantity"`
	UnitPrice       Input  `json:"unit_price"`
	DiscountPercent Input  `json:"discount_percent"`
	ServiceRefID    *uint  `json:"service_id,omitempty"`
}

// Line is a normalized line item. Total is derived and is overwritten by
// every call to Aggregate.
type Line struct {
	Position        int
	Description     string
	Quantity        decimal.Decimal
	UnitPrice       decimal.Decimal
	DiscountPercent decimal.Decimal
	ServiceRefID    *uint
	Total           decimal.Decimal
}

// LineTotal returns quantity × unitPrice × (1 − discountPercent/100) at full precision.
func LineTotal(quantity, unitPrice, discountPercent decimal.Decimal) decimal.Decimal {
	factor := decimal.NewFromInt(1).Sub(discountPercent.Shift(-2))
	return quantity.Mul(unitPrice).Mul(factor)
}

// RoundMoney rounds d to currency precision for display.
func RoundMoney(d decimal.Decimal) decimal.Decimal { return d.Round(MoneyPlaces) }

// ParseAmount parses an amount in [0, MaxAmount]. Under Clamp, garbage and
// negatives become 0 and larger values become MaxAmount; under Strict each
// is recorded in v.
func ParseAmount(field string, in Input, p Policy, v validation.Violations) decimal.Decimal {
	d, ok := parse(field, in, p, v)
	if !ok {
		return decimal.Zero
	}
	if d.IsNegative() {
		if p == Strict {
			v.Add(field, "must_not_be_negative")
		}
		return decimal.Zero
	}
	if p == Strict {
		validation.RangeDecimal(field, d, decimal.Zero, MaxAmount, v)
	}
	return decimal.Min(d, MaxAmount)
}

// ParsePercent parses a percentage in [0,100] with the same policy rules.
func ParsePercent(field string, in Input, p Policy, v validation.Violations) decimal.Decimal {
	d, ok := parse(field, in, p, v)
	if !ok {
		return decimal.Zero
	}
	if p == Strict {
		validation.RangeDecimal(field, d, decimal.Zero, MaxDiscount, v)
	}
	return decimal.Max(decimal.Zero, decimal.Min(d, MaxDiscount))
}

func parse(field string, in Input, p Policy, v validation.Violations) (decimal.Decimal, bool) {
	s := strings.TrimSpace(string(in))
	if s == "" {
		return decimal.Zero, false
	}
	// accept a decimal comma, common in hand-typed amounts
	d, err := decimal.NewFromString(strings.Replace(s, ",", ".", 1))
	if err != nil {
		if p == Strict {
			v.Add(field, "not_a_number")
		}
		return decimal.Zero, false
	}
	// Decide the magnitude from digits and exponent before any comparison:
	// rescaling "1e50000000" would build a fifty million digit integer.
	switch mag := d.NumDigits() + int(d.Exponent()); {
	case mag > amountDigits:
		if d.IsNegative() {
			return overflow.Neg(), true
		}
		return overflow, true
	case mag < -StoragePlaces:
		return decimal.Zero, true
	}
	return d.Round(StoragePlaces), true
}

// NormalizeLines converts raw inputs into Lines. Lines with a blank
// description are kept here (the editor may hold them transiently) and are
// dropped by Aggregate.
func NormalizeLines(inputs []LineInput, p Policy) ([]Line, error) {
	v := validation.Violations{}
	lines := make([]Line, 0, len(inputs))
	for i, in := range inputs {
		prefix := fmt.Sprintf("items[%d].", i)
		l := Line{
			Description:     strings.TrimSpace(in.Description),
			Quantity:        ParseAmount(prefix+"quantity", in.Quantity, p, v),
			UnitPrice:       ParseAmount(prefix+"unit_price", in.UnitPrice, p, v),
			DiscountPercent: ParsePercent(prefix+"discount_percent", in.DiscountPercent, p, v),
			ServiceRefID:    in.ServiceRefID,
		}
		l.Total = LineTotal(l.Quantity, l.UnitPrice, l.DiscountPercent)
		lines = append(lines, l)
	}
	if err := NewValidationError(v); err != nil {
		return nil, err
	}
	return lines, nil
}
