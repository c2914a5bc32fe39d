package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/diewo77/go-billing/internal/billing"
	"github.com/diewo77/go-billing/internal/logger"
	"github.com/diewo77/go-billing/internal/models"
	"github.com/diewo77/go-billing/internal/numbering"
	"github.com/diewo77/go-billing/internal/recurring"
	"github.com/diewo77/go-billing/internal/store"
	"github.com/diewo77/go-billing/validation"
)

// ErrScheduleChanged is returned when another generation advanced the
// schedule between our read and our write.
var ErrScheduleChanged = errors.New("schedule_changed_concurrently")

// maxCatchUp bounds the invoices generated for one schedule per run.
const maxCatchUp = 120

// RecurringInput is the editable content of a recurring invoice template.
type RecurringInput struct {
	Title            string              `json:"title"`
	CustomerID       uint                `json:"customer_id"`
	Interval         string              `json:"interval"`
	StartDate        *time.Time          `json:"start_date"`
	EndDate          *time.Time          `json:"end_date,omitempty"`
	PaymentTermsDays *int                `json:"payment_terms_days,omitempty"`
	Notes            string              `json:"notes"`
	DiscountPercent  billing.Input       `json:"discount_percent"`
	Items            []billing.LineInput `json:"items"`
}

// GenerateResult reports one generation attempt.
type GenerateResult struct {
	Generated       bool      `json:"generated"`
	InvoiceID       uint      `json:"invoice_id,omitempty"`
	Number          string    `json:"number,omitempty"`
	NextInvoiceDate time.Time `json:"next_invoice_date"`
	Ended           bool      `json:"ended"`
}

// RunReport summarizes RunDue.
type RunReport struct {
	Invoices []uint          `json:"invoices"`
	Ended    []uint          `json:"ended"`
	Failed   map[uint]string `json:"failed,omitempty"`
}

type RecurringService struct {
	DB       *gorm.DB
	catalog  *CatalogService
	invoices *InvoiceService
	store    *store.Store[models.RecurringInvoice]
	opts     Options
}

func NewRecurringService(db *gorm.DB, catalog *CatalogService, invoices *InvoiceService, opts Options) *RecurringService {
	return &RecurringService{
		DB:       db,
		catalog:  catalog,
		invoices: invoices,
		store:    store.New[models.RecurringInvoice](db, "recurring_invoice", "Customer"),
		opts:     opts,
	}
}

func (s *RecurringService) schedule(in RecurringInput, v validation.Violations) (recurring.Schedule, int) {
	validation.Required("title", in.Title, v)
	terms := s.opts.PaymentTermsDays
	if in.PaymentTermsDays != nil {
		terms = *in.PaymentTermsDays
		if terms < 0 {
			v.Add("payment_terms_days", "must_not_be_negative")
		}
	}
	interval, err := recurring.ParseInterval(in.Interval)
	if err != nil {
		v.Add("interval", "invalid_choice")
	}
	if in.StartDate == nil || in.StartDate.IsZero() {
		v.Add("start_date", "required")
	}
	if !v.Empty() {
		return recurring.Schedule{}, terms
	}
	sched, err := recurring.New(interval, *in.StartDate, in.EndDate)
	if errors.Is(err, recurring.ErrEndBeforeStart) {
		v.Add("end_date", "before_start_date")
	}
	return sched, terms
}

func recurringItems(recID uint, lines []billing.Line) []models.RecurringItem {
	items := make([]models.RecurringItem, 0, len(lines))
	for _, l := range lines {
		items = append(items, models.RecurringItem{RecurringInvoiceID: recID, ItemFields: models.FieldsFromLine(l)})
	}
	return items
}

func (s *RecurringService) replaceItems(ctx context.Context, tx *gorm.DB, id uint, lines []billing.Line) ([]models.RecurringItem, error) {
	if err := tx.WithContext(ctx).Where("recurring_invoice_id = ?", id).Delete(&models.RecurringItem{}).Error; err != nil {
		return nil, wrap("delete", "recurring_item", err)
	}
	items := recurringItems(id, lines)
	if len(items) > 0 {
		if err := tx.WithContext(ctx).Create(&items).Error; err != nil {
			return nil, wrap("create", "recurring_item", err)
		}
	}
	return items, nil
}

// Create stores an active template whose first invoice is due on the start date.
func (s *RecurringService) Create(ctx context.Context, in RecurringInput) (*models.RecurringInvoice, error) {
	var rec models.RecurringInvoice
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		v := validation.Violations{}
		if _, err := activeCustomer(ctx, tx, in.CustomerID, v); err != nil {
			return err
		}
		sched, terms := s.schedule(in, v)
		d, err := prepare(ctx, tx, s.catalog, s.opts.Policy, in.Items, in.DiscountPercent, v)
		if err != nil {
			return err
		}
		rec = models.RecurringInvoice{
			Title:            strings.TrimSpace(in.Title),
			CustomerID:       in.CustomerID,
			PaymentTermsDays: terms,
			Notes:            in.Notes,
			DocumentTotals:   d.DocumentTotals(),
			Items:            recurringItems(0, d.Result.Lines),
		}
		rec.ApplySchedule(sched)
		if err := tx.WithContext(ctx).Create(&rec).Error; err != nil {
			return wrap("create", "recurring_invoice", err)
		}
		return audit(ctx, tx, "recurring_invoice", rec.ID, models.AuditCreate, "interval", "", rec.Interval)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Update edits a template that has not ended. The next invoice date follows
// a new start date until the first invoice has been generated.
func (s *RecurringService) Update(ctx context.Context, id uint, in RecurringInput) (*models.RecurringInvoice, error) {
	var rec models.RecurringInvoice
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := first(ctx, tx, "recurring_invoice", &rec, id); err != nil {
			return err
		}
		if rec.Status == recurring.StatusEnded {
			return ErrScheduleEnded
		}
		v := validation.Violations{}
		if _, err := activeCustomer(ctx, tx, in.CustomerID, v); err != nil {
			return err
		}
		sched, terms := s.schedule(in, v)
		d, err := prepare(ctx, tx, s.catalog, s.opts.Policy, in.Items, in.DiscountPercent, v)
		if err != nil {
			return err
		}
		sched.Status = rec.Status
		if rec.GeneratedCount > 0 && rec.NextInvoiceDate.After(sched.StartDate) {
			sched.NextInvoiceDate = rec.NextInvoiceDate
		}
		if sched.Exhausted(sched.NextInvoiceDate) {
			sched.Status = recurring.StatusEnded
		}
		rec.ApplySchedule(sched)
		rec.Title = strings.TrimSpace(in.Title)
		rec.CustomerID = in.CustomerID
		rec.PaymentTermsDays = terms
		rec.Notes = in.Notes
		rec.DocumentTotals = d.DocumentTotals()
		if err := s.store.Tx(tx).Update(ctx, &rec); err != nil {
			return err
		}
		if rec.Items, err = s.replaceItems(ctx, tx, rec.ID, d.Result.Lines); err != nil {
			return err
		}
		return audit(ctx, tx, "recurring_invoice", rec.ID, models.AuditUpdate, "next_invoice_date", "", rec.NextInvoiceDate.Format(time.DateOnly))
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *RecurringService) load(ctx context.Context, id uint) (*models.RecurringInvoice, error) {
	var rec models.RecurringInvoice
	q := s.DB.WithContext(ctx).Preload("Items", byPosition).Preload("Customer")
	if err := first(ctx, q, "recurring_invoice", &rec, id); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Get loads a template, repairing inconsistent stored totals.
func (s *RecurringService) Get(ctx context.Context, id uint) (*models.RecurringInvoice, error) {
	rec, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	res, verr := verify(rec.DocumentTotals, rec.ItemFields())
	var cerr *billing.ConsistencyError
	if !errors.As(verr, &cerr) {
		return rec, nil
	}
	err = repair(ctx, s.DB, "recurring_invoice", id, cerr, func(tx *gorm.DB) error {
		if _, err := s.replaceItems(ctx, tx, id, res.Lines); err != nil {
			return err
		}
		return wrap("update", "recurring_invoice", tx.WithContext(ctx).Model(&models.RecurringInvoice{}).Where("id = ?", id).Updates(totalsUpdate(res.Totals)).Error)
	})
	if err != nil {
		return nil, err
	}
	return s.load(ctx, id)
}

func (s *RecurringService) List(ctx context.Context, f ListFilter) ([]models.RecurringInvoice, int64, error) {
	opts := f.options()
	opts.Order = "next_invoice_date asc, id asc"
	return s.store.List(ctx, opts)
}

func (s *RecurringService) setState(ctx context.Context, id uint, change func(*recurring.Schedule) error) (*models.RecurringInvoice, error) {
	var rec models.RecurringInvoice
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := first(ctx, tx, "recurring_invoice", &rec, id); err != nil {
			return err
		}
		sched := rec.Schedule()
		old := sched.Status
		if err := change(&sched); err != nil {
			return err
		}
		rec.ApplySchedule(sched)
		if err := s.store.Tx(tx).Update(ctx, &rec); err != nil {
			return err
		}
		return audit(ctx, tx, "recurring_invoice", rec.ID, models.AuditStatus, "status", string(old), string(rec.Status))
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Pause stops generation; NextInvoiceDate is kept.
func (s *RecurringService) Pause(ctx context.Context, id uint) (*models.RecurringInvoice, error) {
	return s.setState(ctx, id, (*recurring.Schedule).Pause)
}

// Resume reactivates a paused template. Missed dates are caught up by the
// next RunDue.
func (s *RecurringService) Resume(ctx context.Context, id uint) (*models.RecurringInvoice, error) {
	return s.setState(ctx, id, (*recurring.Schedule).Resume)
}

// Generate snapshots the template into a new invoice dated on the next
// invoice date and advances the schedule. Both happen in one transaction:
// either the invoice exists and the schedule moved, or neither.
func (s *RecurringService) Generate(ctx context.Context, id uint) (GenerateResult, error) {
	var out GenerateResult
	err := numbering.Retry(0, func() error {
		out = GenerateResult{}
		return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var rec models.RecurringInvoice
			if err := first(ctx, tx.Preload("Items", byPosition), "recurring_invoice", &rec, id); err != nil {
				return err
			}
			sched := rec.Schedule()
			prev := sched.NextInvoiceDate
			if sched.Status == recurring.StatusEnded {
				out = GenerateResult{Ended: true, NextInvoiceDate: prev}
				return nil
			}
			if sched.Status != recurring.StatusActive {
				return ErrScheduleNotActive
			}

			if sched.Exhausted(prev) {
				sched.Status = recurring.StatusEnded
			} else {
				issue := prev
				inv, err := s.invoices.createTx(ctx, tx, InvoiceInput{
					CustomerID:      rec.CustomerID,
					IssueDate:       &issue,
					Notes:           rec.Notes,
					DiscountPercent: billing.Dec(rec.DiscountPercent),
					Items:           models.LineInputs(rec.ItemFields()),
				}, invoiceOrigin{RecurringID: &rec.ID, PaymentTermsDays: &rec.PaymentTermsDays})
				if err != nil {
					return err
				}
				if err := sched.Step(); err != nil {
					return err
				}
				now := s.opts.now().UTC()
				rec.LastGeneratedAt = &now
				rec.GeneratedCount++
				out.Generated = true
				out.InvoiceID = inv.ID
				out.Number = inv.Number
			}
			rec.ApplySchedule(sched)
			out.NextInvoiceDate = rec.NextInvoiceDate
			out.Ended = rec.Status == recurring.StatusEnded

			res := tx.WithContext(ctx).Model(&models.RecurringInvoice{}).
				Where("id = ? AND next_invoice_date = ? AND status = ?", rec.ID, prev, recurring.StatusActive).
				Updates(map[string]any{
					"next_invoice_date": rec.NextInvoiceDate,
					"status":            rec.Status,
					"generated_count":   rec.GeneratedCount,
					"last_generated_at": rec.LastGeneratedAt,
				})
			if res.Error != nil {
				return wrap("update", "recurring_invoice", res.Error)
			}
			if res.RowsAffected != 1 {
				return ErrScheduleChanged
			}
			action := models.AuditGenerate
			if !out.Generated {
				action = models.AuditStatus
			}
			return audit(ctx, tx, "recurring_invoice", rec.ID, action, "next_invoice_date", prev.Format(time.DateOnly), rec.NextInvoiceDate.Format(time.DateOnly))
		})
	})
	return out, err
}

// RunDue generates every invoice that is due at now, catching up schedules
// that fell behind. A failing schedule does not stop the others.
func (s *RecurringService) RunDue(ctx context.Context, now time.Time) (RunReport, error) {
	report := RunReport{Invoices: []uint{}, Ended: []uint{}, Failed: map[uint]string{}}
	var ids []uint
	err := s.DB.WithContext(ctx).Model(&models.RecurringInvoice{}).
		Where("status = ?", recurring.StatusActive).
		Order("next_invoice_date asc, id asc").
		Pluck("id", &ids).Error
	if err != nil {
		return report, wrap("list", "recurring_invoice", err)
	}
	l := logger.Ctx(ctx)
	for _, id := range ids {
		for i := 0; i < maxCatchUp; i++ {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			var rec models.RecurringInvoice
			if err := first(ctx, s.DB, "recurring_invoice", &rec, id); err != nil {
				report.Failed[id] = err.Error()
				break
			}
			if !rec.Schedule().Due(now) {
				break
			}
			res, err := s.Generate(ctx, id)
			if err != nil {
				l.Error().Err(err).Uint("recurring_id", id).Msg("recurring generation failed")
				report.Failed[id] = err.Error()
				break
			}
			if res.Generated {
				l.Info().Uint("recurring_id", id).Str("number", res.Number).Msg("recurring invoice generated")
				report.Invoices = append(report.Invoices, res.InvoiceID)
			}
			if res.Ended {
				report.Ended = append(report.Ended, id)
				break
			}
		}
	}
	return report, nil
}

// RunDueNow is RunDue at the service clock.
func (s *RecurringService) RunDueNow(ctx context.Context) (RunReport, error) {
	return s.RunDue(ctx, s.opts.now())
}
