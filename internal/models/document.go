package models

import (
	"github.com/diewo77/go-billing/internal/billing"
	"github.com/shopspring/decimal"
)

// DocumentTotals is embedded in every document. The three derived amounts
// are only ever written from a billing.Aggregate result.
type DocumentTotals struct {
	DiscountPercent decimal.Decimal `gorm:"type:numeric(18,6);not null" json:"discount_percent"`
	Subtotal        decimal.Decimal `gorm:"type:numeric(18,6);not null" json:"subtotal"`
	DiscountAmount  decimal.Decimal `gorm:"type:numeric(18,6);not null" json:"discount_amount"`
	Total           decimal.Decimal `gorm:"type:numeric(18,6);not null" json:"total"`
}

// Totals returns the stored totals.
func (t DocumentTotals) Totals() billing.Totals {
	return billing.Totals{Subtotal: t.Subtotal, DiscountAmount: t.DiscountAmount, Total: t.Total}
}

// SetTotals copies aggregated totals into the document.
func (t *DocumentTotals) SetTotals(tt billing.Totals) {
	t.Subtotal = tt.Subtotal
	t.DiscountAmount = tt.DiscountAmount
	t.Total = tt.Total
}

// ItemFields are the columns shared by quote, invoice and recurring items.
type ItemFields struct {
	Position        int             `gorm:"not null" json:"position"`
	Description     string          `gorm:"size:500;not null" json:"description"`
	Quantity        decimal.Decimal `gorm:"type:numeric(18,6);not null" json:"quantity"`
	UnitPrice       decimal.Decimal `gorm:"type:numeric(18,6);not null" json:"unit_price"`
	DiscountPercent decimal.Decimal `gorm:"type:numeric(18,6);not null" json:"discount_percent"`
	Total           decimal.Decimal `gorm:"type:numeric(18,6);not null" json:"total"`
	ServiceID       *uint           `gorm:"index" json:"service_id,omitempty"`
}

// Line converts stored columns to a billing line.
func (f ItemFields) Line() billing.Line {
	return billing.Line{
		Position:        f.Position,
		Description:     f.Description,
		Quantity:        f.Quantity,
		UnitPrice:       f.UnitPrice,
		DiscountPercent: f.DiscountPercent,
		ServiceRefID:    f.ServiceID,
		Total:           f.Total,
	}
}

// FieldsFromLine converts an aggregated billing line to columns.
func FieldsFromLine(l billing.Line) ItemFields {
	return ItemFields{
		Position:        l.Position,
		Description:     l.Description,
		Quantity:        l.Quantity,
		UnitPrice:       l.UnitPrice,
		DiscountPercent: l.DiscountPercent,
		Total:           l.Total,
		ServiceID:       l.ServiceRefID,
	}
}

// LineInputs converts stored items back to editor inputs, used when a
// document is copied into another one.
func LineInputs(fields []ItemFields) []billing.LineInput {
	out := make([]billing.LineInput, 0, len(fields))
	for _, f := range fields {
		out = append(out, billing.LineInput{
			Description:     f.Description,
			Quantity:        billing.Dec(f.Quantity),
			UnitPrice:       billing.Dec(f.UnitPrice),
			DiscountPercent: billing.Dec(f.DiscountPercent),
			ServiceRefID:    f.ServiceID,
		})
	}
	return out
}
