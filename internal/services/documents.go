package services

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/diewo77/go-billing/internal/billing"
	"github.com/diewo77/go-billing/internal/logger"
	"github.com/diewo77/go-billing/internal/models"
	"github.com/diewo77/go-billing/validation"
)

// draft is the normalized content of a document about to be written.
type draft struct {
	Result   billing.Result
	Discount decimal.Decimal
}

// DocumentTotals returns the totals columns for the draft.
func (d draft) DocumentTotals() models.DocumentTotals {
	t := models.DocumentTotals{DiscountPercent: d.Discount}
	t.SetTotals(d.Result.Totals)
	return t
}

// Fields returns the item columns for the draft.
func (d draft) Fields() []models.ItemFields {
	out := make([]models.ItemFields, 0, len(d.Result.Lines))
	for _, l := range d.Result.Lines {
		out = append(out, models.FieldsFromLine(l))
	}
	return out
}

// prepare runs catalog defaults, normalization and aggregation. Violations
// already collected by the caller are merged into the returned error.
func prepare(ctx context.Context, tx *gorm.DB, catalog *CatalogService, p billing.Policy,
	items []billing.LineInput, discount billing.Input, v validation.Violations) (draft, error) {
	inputs, err := catalog.ApplyDefaults(ctx, tx, items)
	if err != nil {
		return draft{}, err
	}
	disc := billing.ParsePercent("discount_percent", discount, p, v)
	lines, err := billing.NormalizeLines(inputs, p)
	var ve *billing.ValidationError
	switch {
	case errors.As(err, &ve):
		for field, code := range ve.Violations {
			v.Add(field, code)
		}
	case err != nil:
		return draft{}, err
	}
	if err := billing.NewValidationError(v); err != nil {
		return draft{}, err
	}
	res := billing.Aggregate(lines, disc)
	if err := billing.RequireLines(res); err != nil {
		return draft{}, err
	}
	return draft{Result: res, Discount: disc}, nil
}

// verify recomputes a stored document. It returns the recomputed result and
// a *billing.ConsistencyError when stored document or line totals drifted.
func verify(t models.DocumentTotals, fields []models.ItemFields) (billing.Result, error) {
	lines := make([]billing.Line, 0, len(fields))
	for _, f := range fields {
		lines = append(lines, f.Line())
	}
	res := billing.Aggregate(lines, t.DiscountPercent)
	if err := billing.Check(t.Totals(), lines, t.DiscountPercent); err != nil {
		return res, err
	}
	stale := len(res.Lines) != len(fields)
	for i := 0; !stale && i < len(fields); i++ {
		stale = !res.Lines[i].Total.Round(billing.StoragePlaces).Equal(fields[i].Total.Round(billing.StoragePlaces)) ||
			res.Lines[i].Position != fields[i].Position
	}
	if stale {
		return res, &billing.ConsistencyError{Stored: t.Totals(), Recomputed: res.Totals}
	}
	return res, nil
}

// repairer rewrites the items and totals of one document inside tx.
type repairer func(tx *gorm.DB) error

// repair forces recomputed values into storage and leaves an audit trail.
func repair(ctx context.Context, db *gorm.DB, entity string, id uint, cerr *billing.ConsistencyError, fix repairer) error {
	logger.Ctx(ctx).Warn().
		Str("entity", entity).
		Uint("id", id).
		Str("stored_total", cerr.Stored.Total.String()).
		Str("recomputed_total", cerr.Recomputed.Total.String()).
		Msg("inconsistent totals, repairing")
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := fix(tx); err != nil {
			return err
		}
		return audit(ctx, tx, entity, id, models.AuditRepairTotals, "total", cerr.Stored.Total.String(), cerr.Recomputed.Total.String())
	})
}

func totalsUpdate(t billing.Totals) map[string]any {
	return map[string]any{
		"subtotal":        t.Subtotal,
		"discount_amount": t.DiscountAmount,
		"total":           t.Total,
	}
}
