// Package services holds the transactional operations of the back-office.
// Every write that touches more than one row runs in a single transaction.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/diewo77/go-billing/auth"
	"github.com/diewo77/go-billing/internal/billing"
	"github.com/diewo77/go-billing/internal/config"
	"github.com/diewo77/go-billing/internal/models"
	"github.com/diewo77/go-billing/internal/numbering"
	"github.com/diewo77/go-billing/internal/recurring"
	"github.com/diewo77/go-billing/internal/store"
)

var (
	ErrNotFound          = store.ErrNotFound
	ErrNotEditable       = errors.New("document_not_editable")
	ErrInvalidTransition = errors.New("invalid_status_transition")
	ErrScheduleNotActive = errors.New("schedule_not_active")
	ErrScheduleEnded     = recurring.ErrEnded
	ErrCustomerArchived  = errors.New("customer_archived")
	ErrQuoteExpired      = fmt.Errorf("quote_expired: %w", ErrInvalidTransition)
)

// Options are the billing defaults shared by all services.
type Options struct {
	Policy           billing.Policy
	Currency         string
	PaymentTermsDays int
	Now              func() time.Time
}

// OptionsFromConfig maps the billing section of the config.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Policy:           cfg.Billing.Policy(),
		Currency:         cfg.Billing.Currency,
		PaymentTermsDays: cfg.Billing.PaymentTermsDays,
		Now:              time.Now,
	}
}

func (o Options) now() time.Time {
	if o.Now == nil {
		return time.Now()
	}
	return o.Now()
}

// Services bundles every service wired on one database handle.
type Services struct {
	Customers *CustomerService
	Catalog   *CatalogService
	Quotes    *QuoteService
	Invoices  *InvoiceService
	Recurring *RecurringService
	Numbers   *NumberService
}

// New wires the services together.
func New(db *gorm.DB, opts Options) *Services {
	alloc := numbering.NewAllocator(db)
	alloc.Now = opts.now
	catalog := NewCatalogService(db, opts)
	invoices := NewInvoiceService(db, alloc, catalog, opts)
	return &Services{
		Customers: NewCustomerService(db, alloc, opts),
		Catalog:   catalog,
		Quotes:    NewQuoteService(db, alloc, catalog, invoices, opts),
		Invoices:  invoices,
		Recurring: NewRecurringService(db, catalog, invoices, opts),
		Numbers:   NewNumberService(alloc),
	}
}

// ListFilter narrows document listings.
type ListFilter struct {
	Status     string
	CustomerID uint
	Query      string
	Archived   bool
	Limit      int
	Offset     int
}

func (f ListFilter) options() store.ListOptions {
	opts := store.ListOptions{Limit: f.Limit, Offset: f.Offset}
	if f.Status != "" {
		status := f.Status
		opts.Scopes = append(opts.Scopes, func(db *gorm.DB) *gorm.DB { return db.Where("status = ?", status) })
	}
	if f.CustomerID != 0 {
		id := f.CustomerID
		opts.Scopes = append(opts.Scopes, func(db *gorm.DB) *gorm.DB { return db.Where("customer_id = ?", id) })
	}
	return opts
}

func byPosition(db *gorm.DB) *gorm.DB { return db.Order("position asc") }

// actor is the user behind ctx, 0 for background jobs.
func actor(ctx context.Context) uint {
	uid, _ := auth.UserIDFromContext(ctx)
	return uid
}

func audit(ctx context.Context, tx *gorm.DB, entity string, id uint, action, field, oldValue, newValue string) error {
	entry := models.AuditLog{
		UserID:     actor(ctx),
		EntityType: entity,
		EntityID:   id,
		Action:     action,
		Field:      field,
		OldValue:   oldValue,
		NewValue:   newValue,
	}
	if err := tx.WithContext(ctx).Create(&entry).Error; err != nil {
		return &store.Error{Op: "create", Entity: "audit_log", Err: err}
	}
	return nil
}

func notFound(entity string, id uint) error {
	return fmt.Errorf("%s %d: %w", entity, id, ErrNotFound)
}

// first loads one row by id inside tx, mapping gorm errors.
func first(ctx context.Context, tx *gorm.DB, entity string, dst any, id uint) error {
	if err := tx.WithContext(ctx).First(dst, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound(entity, id)
		}
		return &store.Error{Op: "get", Entity: entity, Err: err}
	}
	return nil
}

func wrap(op, entity string, err error) error {
	if err == nil {
		return nil
	}
	return &store.Error{Op: op, Entity: entity, Err: err}
}

func isNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
