package billing

import (
	"errors"
	"testing"
)

func scenarioLines() []Line {
	return []Line{
		{Description: "Laptop setup", Quantity: d("2"), UnitPrice: d("50"), DiscountPercent: d("10")},
		{Description: "Network audit", Quantity: d("1"), UnitPrice: d("100"), DiscountPercent: d("0")},
	}
}

func TestAggregateScenario(t *testing.T) {
	res := Aggregate(scenarioLines(), d("5"))
	if !res.Lines[0].Total.Equal(d("90")) || !res.Lines[1].Total.Equal(d("100")) {
		t.Fatalf("unexpected line totals %s %s", res.Lines[0].Total, res.Lines[1].Total)
	}
	if !res.Totals.Subtotal.Equal(d("190")) {
		t.Fatalf("subtotal = %s", res.Totals.Subtotal)
	}
	if !res.Totals.DiscountAmount.Equal(d("9.5")) {
		t.Fatalf("discount = %s", res.Totals.DiscountAmount)
	}
	if !res.Totals.Total.Equal(d("180.5")) {
		t.Fatalf("total = %s", res.Totals.Total)
	}
}

func TestAggregateIdempotent(t *testing.T) {
	lines := scenarioLines()
	first := Aggregate(lines, d("7.5"))
	second := Aggregate(first.Lines, d("7.5"))
	if !first.Totals.Equal(second.Totals) {
		t.Fatalf("aggregate not idempotent: %+v vs %+v", first.Totals, second.Totals)
	}
	if !Aggregate(lines, d("7.5")).Totals.Equal(first.Totals) {
		t.Fatalf("aggregate depends on call count")
	}
}

func TestAggregateDropsBlankLinesAndRenumbers(t *testing.T) {
	lines := []Line{
		{Description: "", Quantity: d("5"), UnitPrice: d("10")},
		{Description: "Backup", Quantity: d("1"), UnitPrice: d("20"), Position: 9},
		{Description: "", Quantity: d("1"), UnitPrice: d("999")},
		{Description: "Hosting", Quantity: d("2"), UnitPrice: d("15")},
	}
	res := Aggregate(lines, d("0"))
	if len(res.Lines) != 2 {
		t.Fatalf("expected 2 lines got %d", len(res.Lines))
	}
	if res.Lines[0].Position != 1 || res.Lines[1].Position != 2 || res.Lines[1].Description != "Hosting" {
		t.Fatalf("unexpected positions %+v", res.Lines)
	}
	if !res.Totals.Total.Equal(d("50")) {
		t.Fatalf("total = %s", res.Totals.Total)
	}
	if lines[1].Position != 9 {
		t.Fatalf("input was mutated")
	}
}

func TestAggregateOverwritesStaleLineTotal(t *testing.T) {
	lines := []Line{{Description: "Stale", Quantity: d("1"), UnitPrice: d("10"), Total: d("999")}}
	res := Aggregate(lines, d("0"))
	if !res.Lines[0].Total.Equal(d("10")) {
		t.Fatalf("stale total kept: %s", res.Lines[0].Total)
	}
}

func TestAggregateRoundsDiscountOnly(t *testing.T) {
	lines := []Line{{Description: "Odd", Quantity: d("1"), UnitPrice: d("10"), DiscountPercent: d("33.3333")}}
	res := Aggregate(lines, d("10"))
	if !res.Totals.Subtotal.Equal(d("6.66667")) {
		t.Fatalf("subtotal should keep full precision: %s", res.Totals.Subtotal)
	}
	if !res.Totals.DiscountAmount.Equal(d("0.67")) {
		t.Fatalf("discount should be rounded to cents: %s", res.Totals.DiscountAmount)
	}
	if !res.Totals.Rounded().Total.Equal(d("6")) {
		t.Fatalf("display total = %s", res.Totals.Rounded().Total)
	}
}

func TestRequireLines(t *testing.T) {
	res := Aggregate([]Line{{Description: ""}}, d("0"))
	if err := RequireLines(res); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error got %v", err)
	}
}

func TestCheck(t *testing.T) {
	lines := scenarioLines()
	good := Aggregate(lines, d("5")).Totals
	if err := Check(good, lines, d("5")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bad := good
	bad.Total = d("1")
	err := Check(bad, lines, d("5"))
	var ce *ConsistencyError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *ConsistencyError got %v", err)
	}
	if !ce.Recomputed.Total.Equal(d("180.5")) {
		t.Fatalf("recomputed total = %s", ce.Recomputed.Total)
	}
}
