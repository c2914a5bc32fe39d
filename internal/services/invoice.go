package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/diewo77/go-billing/internal/billing"
	"github.com/diewo77/go-billing/internal/models"
	"github.com/diewo77/go-billing/internal/numbering"
	"github.com/diewo77/go-billing/internal/recurring"
	"github.com/diewo77/go-billing/internal/store"
	"github.com/diewo77/go-billing/validation"
)

// InvoiceInput is the editable content of an invoice.
type InvoiceInput struct {
	CustomerID      uint                `json:"customer_id"`
	IssueDate       *time.Time          `json:"issue_date,omitempty"`
	DueDate         *time.Time          `json:"due_date,omitempty"`
	Currency        string              `json:"currency"`
	Notes           string              `json:"notes"`
	DiscountPercent billing.Input       `json:"discount_percent"`
	Items           []billing.LineInput `json:"items"`
}

// invoiceOrigin links an invoice to the document it was produced from.
type invoiceOrigin struct {
	QuoteID          *uint
	RecurringID      *uint
	PaymentTermsDays *int
}

type InvoiceService struct {
	DB      *gorm.DB
	alloc   *numbering.Allocator
	catalog *CatalogService
	store   *store.Store[models.Invoice]
	opts    Options
}

func NewInvoiceService(db *gorm.DB, alloc *numbering.Allocator, catalog *CatalogService, opts Options) *InvoiceService {
	return &InvoiceService{
		DB:      db,
		alloc:   alloc,
		catalog: catalog,
		store:   store.New[models.Invoice](db, "invoice", "Customer"),
		opts:    opts,
	}
}

// Create validates, numbers and stores a draft invoice in one transaction.
func (s *InvoiceService) Create(ctx context.Context, in InvoiceInput) (*models.Invoice, error) {
	var inv *models.Invoice
	err := numbering.Retry(0, func() error {
		return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var err error
			inv, err = s.createTx(ctx, tx, in, invoiceOrigin{})
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

func (s *InvoiceService) dates(in InvoiceInput, origin invoiceOrigin) (issue, due time.Time) {
	issue = recurring.Day(s.opts.now())
	if in.IssueDate != nil && !in.IssueDate.IsZero() {
		issue = recurring.Day(*in.IssueDate)
	}
	terms := s.opts.PaymentTermsDays
	if origin.PaymentTermsDays != nil {
		terms = *origin.PaymentTermsDays
	}
	due = issue.AddDate(0, 0, terms)
	if in.DueDate != nil && !in.DueDate.IsZero() {
		due = recurring.Day(*in.DueDate)
	}
	return issue, due
}

func (s *InvoiceService) currency(in InvoiceInput, v validation.Violations) string {
	c := strings.ToUpper(strings.TrimSpace(in.Currency))
	if c == "" {
		return s.opts.Currency
	}
	if len(c) != 3 {
		v.Add("currency", "invalid_currency")
	}
	return c
}

// createTx builds the invoice inside tx. The number is allocated last so a
// rejected input never consumes one.
func (s *InvoiceService) createTx(ctx context.Context, tx *gorm.DB, in InvoiceInput, origin invoiceOrigin) (*models.Invoice, error) {
	v := validation.Violations{}
	if _, err := activeCustomer(ctx, tx, in.CustomerID, v); err != nil {
		return nil, err
	}
	issue, due := s.dates(in, origin)
	if due.Before(issue) {
		v.Add("due_date", "before_issue_date")
	}
	currency := s.currency(in, v)
	d, err := prepare(ctx, tx, s.catalog, s.opts.Policy, in.Items, in.DiscountPercent, v)
	if err != nil {
		return nil, err
	}
	number, err := s.alloc.NextTx(ctx, tx, numbering.KindInvoice)
	if err != nil {
		return nil, err
	}
	inv := &models.Invoice{
		Number:         number,
		CustomerID:     in.CustomerID,
		Status:         models.InvoiceStatusDraft,
		IssueDate:      issue,
		DueDate:        due,
		Currency:       currency,
		Notes:          in.Notes,
		QuoteID:        origin.QuoteID,
		RecurringID:    origin.RecurringID,
		DocumentTotals: d.DocumentTotals(),
		Items:          invoiceItems(0, d.Result.Lines),
	}
	if err := tx.WithContext(ctx).Create(inv).Error; err != nil {
		return nil, wrap("create", "invoice", err)
	}
	if err := audit(ctx, tx, "invoice", inv.ID, models.AuditCreate, "number", "", inv.Number); err != nil {
		return nil, err
	}
	return inv, nil
}

func invoiceItems(invoiceID uint, lines []billing.Line) []models.InvoiceItem {
	items := make([]models.InvoiceItem, 0, len(lines))
	for _, l := range lines {
		items = append(items, models.InvoiceItem{InvoiceID: invoiceID, ItemFields: models.FieldsFromLine(l)})
	}
	return items
}

func (s *InvoiceService) replaceItems(ctx context.Context, tx *gorm.DB, id uint, lines []billing.Line) ([]models.InvoiceItem, error) {
	if err := tx.WithContext(ctx).Where("invoice_id = ?", id).Delete(&models.InvoiceItem{}).Error; err != nil {
		return nil, wrap("delete", "invoice_item", err)
	}
	items := invoiceItems(id, lines)
	if len(items) > 0 {
		if err := tx.WithContext(ctx).Create(&items).Error; err != nil {
			return nil, wrap("create", "invoice_item", err)
		}
	}
	return items, nil
}

// Update replaces the content of a draft invoice.
func (s *InvoiceService) Update(ctx context.Context, id uint, in InvoiceInput) (*models.Invoice, error) {
	var inv models.Invoice
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := first(ctx, tx, "invoice", &inv, id); err != nil {
			return err
		}
		if !inv.CanEdit() {
			return ErrNotEditable
		}
		v := validation.Violations{}
		if _, err := activeCustomer(ctx, tx, in.CustomerID, v); err != nil {
			return err
		}
		if in.IssueDate == nil {
			in.IssueDate = &inv.IssueDate
		}
		issue, due := s.dates(in, invoiceOrigin{})
		if due.Before(issue) {
			v.Add("due_date", "before_issue_date")
		}
		currency := s.currency(in, v)
		d, err := prepare(ctx, tx, s.catalog, s.opts.Policy, in.Items, in.DiscountPercent, v)
		if err != nil {
			return err
		}
		old := inv.Total.String()
		inv.CustomerID = in.CustomerID
		inv.IssueDate = issue
		inv.DueDate = due
		inv.Currency = currency
		inv.Notes = in.Notes
		inv.DocumentTotals = d.DocumentTotals()
		if err := s.store.Tx(tx).Update(ctx, &inv); err != nil {
			return err
		}
		if inv.Items, err = s.replaceItems(ctx, tx, inv.ID, d.Result.Lines); err != nil {
			return err
		}
		return audit(ctx, tx, "invoice", inv.ID, models.AuditUpdate, "total", old, inv.Total.String())
	})
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (s *InvoiceService) load(ctx context.Context, id uint) (*models.Invoice, error) {
	var inv models.Invoice
	q := s.DB.WithContext(ctx).Preload("Items", byPosition).Preload("Customer")
	if err := first(ctx, q, "invoice", &inv, id); err != nil {
		return nil, err
	}
	return &inv, nil
}

// Get loads an invoice with its items. Stored totals are never trusted:
// a mismatch with the recomputed totals is repaired before returning.
func (s *InvoiceService) Get(ctx context.Context, id uint) (*models.Invoice, error) {
	inv, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	res, verr := verify(inv.DocumentTotals, inv.ItemFields())
	var cerr *billing.ConsistencyError
	if !errors.As(verr, &cerr) {
		return inv, nil
	}
	err = repair(ctx, s.DB, "invoice", id, cerr, func(tx *gorm.DB) error {
		if _, err := s.replaceItems(ctx, tx, id, res.Lines); err != nil {
			return err
		}
		return wrap("update", "invoice", tx.WithContext(ctx).Model(&models.Invoice{}).Where("id = ?", id).Updates(totalsUpdate(res.Totals)).Error)
	})
	if err != nil {
		return nil, err
	}
	return s.load(ctx, id)
}

func (s *InvoiceService) List(ctx context.Context, f ListFilter) ([]models.Invoice, int64, error) {
	return s.store.List(ctx, f.options())
}

// SetStatus moves the invoice along its lifecycle.
func (s *InvoiceService) SetStatus(ctx context.Context, id uint, status models.InvoiceStatus) (*models.Invoice, error) {
	var inv models.Invoice
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := first(ctx, tx, "invoice", &inv, id); err != nil {
			return err
		}
		if !inv.Status.CanTransition(status) {
			return ErrInvalidTransition
		}
		old := inv.Status
		inv.Status = status
		if status == models.InvoiceStatusPaid {
			paid := s.opts.now().UTC()
			inv.PaidAt = &paid
		}
		if err := s.store.Tx(tx).Update(ctx, &inv); err != nil {
			return err
		}
		return audit(ctx, tx, "invoice", inv.ID, models.AuditStatus, "status", string(old), string(status))
	})
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// Cancel archives an invoice; invoices are never deleted.
func (s *InvoiceService) Cancel(ctx context.Context, id uint) (*models.Invoice, error) {
	return s.SetStatus(ctx, id, models.InvoiceStatusCancelled)
}

// MarkOverdue flags sent invoices whose due date passed before now.
func (s *InvoiceService) MarkOverdue(ctx context.Context, now time.Time) (int64, error) {
	res := s.DB.WithContext(ctx).Model(&models.Invoice{}).
		Where("status = ? AND due_date < ?", models.InvoiceStatusSent, recurring.Day(now)).
		Update("status", models.InvoiceStatusOverdue)
	if res.Error != nil {
		return 0, wrap("update", "invoice", res.Error)
	}
	return res.RowsAffected, nil
}

// Revenue sums the totals of paid invoices.
func (s *InvoiceService) Revenue(ctx context.Context) (decimal.Decimal, error) {
	var totals []decimal.Decimal
	err := s.DB.WithContext(ctx).Model(&models.Invoice{}).
		Where("status = ?", models.InvoiceStatusPaid).
		Pluck("total", &totals).Error
	if err != nil {
		return decimal.Zero, wrap("list", "invoice", err)
	}
	sum := decimal.Zero
	for _, t := range totals {
		sum = sum.Add(t)
	}
	return sum, nil
}
