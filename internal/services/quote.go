package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/diewo77/go-billing/internal/billing"
	"github.com/diewo77/go-billing/internal/models"
	"github.com/diewo77/go-billing/internal/numbering"
	"github.com/diewo77/go-billing/internal/recurring"
	"github.com/diewo77/go-billing/internal/store"
	"github.com/diewo77/go-billing/validation"
)

// QuoteInput is the editable content of a quote.
type QuoteInput struct {
	CustomerID      uint                `json:"customer_id"`
	IssueDate       *time.Time          `json:"issue_date,omitempty"`
	ValidUntil      *time.Time          `json:"valid_until,omitempty"`
	Notes           string              `json:"notes"`
	DiscountPercent billing.Input       `json:"discount_percent"`
	Items           []billing.LineInput `json:"items"`
}

type QuoteService struct {
	DB       *gorm.DB
	alloc    *numbering.Allocator
	catalog  *CatalogService
	invoices *InvoiceService
	store    *store.Store[models.Quote]
	opts     Options
}

func NewQuoteService(db *gorm.DB, alloc *numbering.Allocator, catalog *CatalogService, invoices *InvoiceService, opts Options) *QuoteService {
	return &QuoteService{
		DB:       db,
		alloc:    alloc,
		catalog:  catalog,
		invoices: invoices,
		store:    store.New[models.Quote](db, "quote", "Customer"),
		opts:     opts,
	}
}

func (s *QuoteService) dates(in QuoteInput, v validation.Violations) (time.Time, *time.Time) {
	issue := recurring.Day(s.opts.now())
	if in.IssueDate != nil && !in.IssueDate.IsZero() {
		issue = recurring.Day(*in.IssueDate)
	}
	var until *time.Time
	if in.ValidUntil != nil && !in.ValidUntil.IsZero() {
		u := recurring.Day(*in.ValidUntil)
		if u.Before(issue) {
			v.Add("valid_until", "before_issue_date")
		}
		until = &u
	}
	return issue, until
}

func quoteItems(quoteID uint, lines []billing.Line) []models.QuoteItem {
	items := make([]models.QuoteItem, 0, len(lines))
	for _, l := range lines {
		items = append(items, models.QuoteItem{QuoteID: quoteID, ItemFields: models.FieldsFromLine(l)})
	}
	return items
}

func (s *QuoteService) replaceItems(ctx context.Context, tx *gorm.DB, id uint, lines []billing.Line) ([]models.QuoteItem, error) {
	if err := tx.WithContext(ctx).Where("quote_id = ?", id).Delete(&models.QuoteItem{}).Error; err != nil {
		return nil, wrap("delete", "quote_item", err)
	}
	items := quoteItems(id, lines)
	if len(items) > 0 {
		if err := tx.WithContext(ctx).Create(&items).Error; err != nil {
			return nil, wrap("create", "quote_item", err)
		}
	}
	return items, nil
}

// Create normalizes, aggregates, numbers and persists a draft quote in one
// transaction.
func (s *QuoteService) Create(ctx context.Context, in QuoteInput) (*models.Quote, error) {
	var q *models.Quote
	err := numbering.Retry(0, func() error {
		return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			v := validation.Violations{}
			if _, err := activeCustomer(ctx, tx, in.CustomerID, v); err != nil {
				return err
			}
			issue, until := s.dates(in, v)
			d, err := prepare(ctx, tx, s.catalog, s.opts.Policy, in.Items, in.DiscountPercent, v)
			if err != nil {
				return err
			}
			number, err := s.alloc.NextTx(ctx, tx, numbering.KindQuote)
			if err != nil {
				return err
			}
			q = &models.Quote{
				Number:         number,
				CustomerID:     in.CustomerID,
				Status:         models.QuoteStatusDraft,
				IssueDate:      issue,
				ValidUntil:     until,
				Notes:          in.Notes,
				PublicToken:    uuid.New(),
				DocumentTotals: d.DocumentTotals(),
				Items:          quoteItems(0, d.Result.Lines),
			}
			if err := tx.WithContext(ctx).Create(q).Error; err != nil {
				return wrap("create", "quote", err)
			}
			return audit(ctx, tx, "quote", q.ID, models.AuditCreate, "number", "", q.Number)
		})
	})
	if err != nil {
		return nil, err
	}
	return q, nil
}

// Update replaces items, discount and metadata while the quote is editable.
func (s *QuoteService) Update(ctx context.Context, id uint, in QuoteInput) (*models.Quote, error) {
	var q models.Quote
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := first(ctx, tx, "quote", &q, id); err != nil {
			return err
		}
		if !q.CanEdit() {
			return ErrNotEditable
		}
		v := validation.Violations{}
		if _, err := activeCustomer(ctx, tx, in.CustomerID, v); err != nil {
			return err
		}
		if in.IssueDate == nil {
			in.IssueDate = &q.IssueDate
		}
		issue, until := s.dates(in, v)
		d, err := prepare(ctx, tx, s.catalog, s.opts.Policy, in.Items, in.DiscountPercent, v)
		if err != nil {
			return err
		}
		old := q.Total.String()
		q.CustomerID = in.CustomerID
		q.IssueDate = issue
		q.ValidUntil = until
		q.Notes = in.Notes
		q.DocumentTotals = d.DocumentTotals()
		if err := s.store.Tx(tx).Update(ctx, &q); err != nil {
			return err
		}
		if q.Items, err = s.replaceItems(ctx, tx, q.ID, d.Result.Lines); err != nil {
			return err
		}
		return audit(ctx, tx, "quote", q.ID, models.AuditUpdate, "total", old, q.Total.String())
	})
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func (s *QuoteService) load(ctx context.Context, where func(*gorm.DB) *gorm.DB, label string, id uint) (*models.Quote, error) {
	var q models.Quote
	err := where(s.DB.WithContext(ctx).Preload("Items", byPosition).Preload("Customer")).First(&q).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound(label, id)
		}
		return nil, wrap("get", "quote", err)
	}
	return &q, nil
}

func byID(id uint) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB { return db.Where("id = ?", id) }
}

// checked verifies the totals of q and repairs them when they drifted.
func (s *QuoteService) checked(ctx context.Context, q *models.Quote) (*models.Quote, error) {
	res, verr := verify(q.DocumentTotals, q.ItemFields())
	var cerr *billing.ConsistencyError
	if !errors.As(verr, &cerr) {
		return q, nil
	}
	err := repair(ctx, s.DB, "quote", q.ID, cerr, func(tx *gorm.DB) error {
		if _, err := s.replaceItems(ctx, tx, q.ID, res.Lines); err != nil {
			return err
		}
		return wrap("update", "quote", tx.WithContext(ctx).Model(&models.Quote{}).Where("id = ?", q.ID).Updates(totalsUpdate(res.Totals)).Error)
	})
	if err != nil {
		return nil, err
	}
	return s.load(ctx, byID(q.ID), "quote", q.ID)
}

// Get loads a quote with items, repairing inconsistent stored totals.
func (s *QuoteService) Get(ctx context.Context, id uint) (*models.Quote, error) {
	q, err := s.load(ctx, byID(id), "quote", id)
	if err != nil {
		return nil, err
	}
	return s.checked(ctx, q)
}

// GetByToken loads the quote behind a public acceptance link.
func (s *QuoteService) GetByToken(ctx context.Context, token uuid.UUID) (*models.Quote, error) {
	q, err := s.load(ctx, func(db *gorm.DB) *gorm.DB { return db.Where("public_token = ?", token.String()) }, "quote token", 0)
	if err != nil {
		return nil, err
	}
	return s.checked(ctx, q)
}

func (s *QuoteService) List(ctx context.Context, f ListFilter) ([]models.Quote, int64, error) {
	return s.store.List(ctx, f.options())
}

func (s *QuoteService) transition(ctx context.Context, tx *gorm.DB, q *models.Quote, status models.QuoteStatus) error {
	if !q.Status.CanTransition(status) {
		return ErrInvalidTransition
	}
	old := q.Status
	q.Status = status
	if err := s.store.Tx(tx).Update(ctx, q); err != nil {
		return err
	}
	return audit(ctx, tx, "quote", q.ID, models.AuditStatus, "status", string(old), string(status))
}

// SetStatus moves the quote along draft, sent, accepted or rejected.
// Conversion goes through ConvertToInvoice.
func (s *QuoteService) SetStatus(ctx context.Context, id uint, status models.QuoteStatus) (*models.Quote, error) {
	if status == models.QuoteStatusConverted {
		return nil, ErrInvalidTransition
	}
	var q models.Quote
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := first(ctx, tx, "quote", &q, id); err != nil {
			return err
		}
		return s.transition(ctx, tx, &q, status)
	})
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// Respond records the customer's answer given through the public link.
// Only sent quotes can be answered, up to and including their ValidUntil day.
func (s *QuoteService) Respond(ctx context.Context, token uuid.UUID, accept bool) (*models.Quote, error) {
	status := models.QuoteStatusRejected
	if accept {
		status = models.QuoteStatusAccepted
	}
	var q models.Quote
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.WithContext(ctx).Where("public_token = ?", token.String()).First(&q).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound("quote token", 0)
		}
		if err != nil {
			return wrap("get", "quote", err)
		}
		if q.Status != models.QuoteStatusSent {
			return ErrInvalidTransition
		}
		if q.ValidUntil != nil && recurring.Day(s.opts.now()).After(recurring.Day(*q.ValidUntil)) {
			return ErrQuoteExpired
		}
		return s.transition(ctx, tx, &q, status)
	})
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// ConvertToInvoice copies a sent or accepted quote into a new draft invoice and
// marks the quote converted, atomically.
func (s *QuoteService) ConvertToInvoice(ctx context.Context, id uint) (*models.Invoice, error) {
	var inv *models.Invoice
	err := numbering.Retry(0, func() error {
		return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var q models.Quote
			if err := first(ctx, tx.Preload("Items", byPosition), "quote", &q, id); err != nil {
				return err
			}
			if !q.Status.CanTransition(models.QuoteStatusConverted) {
				return ErrInvalidTransition
			}
			var err error
			inv, err = s.invoices.createTx(ctx, tx, InvoiceInput{
				CustomerID:      q.CustomerID,
				Notes:           q.Notes,
				DiscountPercent: billing.Dec(q.DiscountPercent),
				Items:           models.LineInputs(q.ItemFields()),
			}, invoiceOrigin{QuoteID: &q.ID})
			if err != nil {
				return err
			}
			q.ConvertedInvoiceID = &inv.ID
			return s.transition(ctx, tx, &q, models.QuoteStatusConverted)
		})
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}
