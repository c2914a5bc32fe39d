package services

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/diewo77/go-billing/internal/billing"
	"github.com/diewo77/go-billing/internal/models"
	"github.com/diewo77/go-billing/internal/numbering"
	"github.com/diewo77/go-billing/internal/store"
	"github.com/diewo77/go-billing/validation"
)

type CustomerInput struct {
	Name       string `json:"name"`
	Company    string `json:"company"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
	PostalCode string `json:"postal_code"`
	City       string `json:"city"`
	Country    string `json:"country"`
	VATNumber  string `json:"vat_number"`
	Notes      string `json:"notes"`
}

func (in CustomerInput) validate() error {
	v := validation.Violations{}
	validation.Required("name", in.Name, v)
	validation.Email("email", strings.TrimSpace(in.Email), v)
	return billing.NewValidationError(v)
}

func (in CustomerInput) applyTo(c *models.Customer) {
	c.Name = strings.TrimSpace(in.Name)
	c.Company = strings.TrimSpace(in.Company)
	c.Email = strings.TrimSpace(in.Email)
	c.Phone = strings.TrimSpace(in.Phone)
	c.Address = strings.TrimSpace(in.Address)
	c.PostalCode = strings.TrimSpace(in.PostalCode)
	c.City = strings.TrimSpace(in.City)
	c.Country = strings.TrimSpace(in.Country)
	c.VATNumber = strings.TrimSpace(in.VATNumber)
	c.Notes = in.Notes
}

// CustomerService manages customers. Customers get a sequence number on
// creation and are archived instead of deleted.
type CustomerService struct {
	DB    *gorm.DB
	alloc *numbering.Allocator
	store *store.Store[models.Customer]
	opts  Options
}

func NewCustomerService(db *gorm.DB, alloc *numbering.Allocator, opts Options) *CustomerService {
	return &CustomerService{DB: db, alloc: alloc, store: store.New[models.Customer](db, "customer"), opts: opts}
}

func (s *CustomerService) Create(ctx context.Context, in CustomerInput) (*models.Customer, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	var c models.Customer
	err := numbering.Retry(0, func() error {
		c = models.Customer{}
		in.applyTo(&c)
		return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			number, err := s.alloc.NextTx(ctx, tx, numbering.KindCustomer)
			if err != nil {
				return err
			}
			c.Number = number
			if err := s.store.Tx(tx).Create(ctx, &c); err != nil {
				return err
			}
			return audit(ctx, tx, "customer", c.ID, models.AuditCreate, "number", "", c.Number)
		})
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *CustomerService) Update(ctx context.Context, id uint, in CustomerInput) (*models.Customer, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	c, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	in.applyTo(c)
	if err := s.store.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *CustomerService) Get(ctx context.Context, id uint) (*models.Customer, error) {
	return s.store.Get(ctx, id)
}

// List returns active customers, or archived ones when f.Archived is set.
func (s *CustomerService) List(ctx context.Context, f ListFilter) ([]models.Customer, int64, error) {
	opts := store.ListOptions{Limit: f.Limit, Offset: f.Offset, Order: "name asc"}
	archived := f.Archived
	opts.Scopes = append(opts.Scopes, func(db *gorm.DB) *gorm.DB {
		if archived {
			return db.Where("archived_at IS NOT NULL")
		}
		return db.Where("archived_at IS NULL")
	})
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		like := "%" + q + "%"
		opts.Scopes = append(opts.Scopes, func(db *gorm.DB) *gorm.DB {
			return db.Where("lower(name) LIKE ? OR lower(company) LIKE ? OR lower(number) LIKE ?", like, like, like)
		})
	}
	return s.store.List(ctx, opts)
}

// Archive hides the customer from listings and new documents.
func (s *CustomerService) Archive(ctx context.Context, id uint) (*models.Customer, error) {
	return s.setArchived(ctx, id, true)
}

// Restore undoes Archive.
func (s *CustomerService) Restore(ctx context.Context, id uint) (*models.Customer, error) {
	return s.setArchived(ctx, id, false)
}

func (s *CustomerService) setArchived(ctx context.Context, id uint, archived bool) (*models.Customer, error) {
	c, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if archived == c.Archived() {
		return c, nil
	}
	if archived {
		now := s.opts.now().UTC()
		c.ArchivedAt = &now
	} else {
		c.ArchivedAt = nil
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.store.Tx(tx).Update(ctx, c); err != nil {
			return err
		}
		return audit(ctx, tx, "customer", c.ID, models.AuditStatus, "archived", "", boolString(archived))
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// activeCustomer loads a customer that may receive new documents.
func activeCustomer(ctx context.Context, tx *gorm.DB, id uint, v validation.Violations) (*models.Customer, error) {
	if id == 0 {
		v.Add("customer_id", "required")
		return nil, nil
	}
	var c models.Customer
	if err := first(ctx, tx, "customer", &c, id); err != nil {
		if isNotFound(err) {
			v.Add("customer_id", "not_found")
			return nil, nil
		}
		return nil, err
	}
	if c.Archived() {
		return nil, ErrCustomerArchived
	}
	return &c, nil
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
