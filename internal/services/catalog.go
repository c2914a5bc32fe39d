package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/diewo77/go-billing/internal/billing"
	"github.com/diewo77/go-billing/internal/models"
	"github.com/diewo77/go-billing/internal/store"
	"github.com/diewo77/go-billing/validation"
)

// ServiceInput is the editable part of a catalog entry.
type ServiceInput struct {
	Code        string        `json:"code"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	UnitPrice   billing.Input `json:"unit_price"`
	Unit        string        `json:"unit"`
}

// CatalogService manages the service catalog.
type CatalogService struct {
	DB    *gorm.DB
	store *store.Store[models.Service]
	opts  Options
}

func NewCatalogService(db *gorm.DB, opts Options) *CatalogService {
	return &CatalogService{DB: db, store: store.New[models.Service](db, "service"), opts: opts}
}

func (s *CatalogService) apply(svc *models.Service, in ServiceInput) error {
	v := validation.Violations{}
	in.Code = strings.ToUpper(strings.TrimSpace(in.Code))
	validation.Required("code", in.Code, v)
	validation.Required("name", in.Name, v)
	price := billing.ParseAmount("unit_price", in.UnitPrice, s.opts.Policy, v)
	if err := billing.NewValidationError(v); err != nil {
		return err
	}
	svc.Code = in.Code
	svc.Name = strings.TrimSpace(in.Name)
	svc.Description = strings.TrimSpace(in.Description)
	svc.UnitPrice = price
	svc.Unit = strings.TrimSpace(in.Unit)
	return nil
}

func (s *CatalogService) Create(ctx context.Context, in ServiceInput) (*models.Service, error) {
	var svc models.Service
	if err := s.apply(&svc, in); err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, &svc); err != nil {
		return nil, duplicateAsViolation(err, "code")
	}
	return &svc, nil
}

func (s *CatalogService) Update(ctx context.Context, id uint, in ServiceInput) (*models.Service, error) {
	svc, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.apply(svc, in); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, svc); err != nil {
		return nil, duplicateAsViolation(err, "code")
	}
	return svc, nil
}

func (s *CatalogService) Get(ctx context.Context, id uint) (*models.Service, error) {
	return s.store.Get(ctx, id)
}

func (s *CatalogService) List(ctx context.Context, f ListFilter) ([]models.Service, int64, error) {
	opts := store.ListOptions{Limit: f.Limit, Offset: f.Offset, Order: "name asc"}
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		like := "%" + q + "%"
		opts.Scopes = append(opts.Scopes, func(db *gorm.DB) *gorm.DB {
			return db.Where("lower(name) LIKE ? OR lower(code) LIKE ?", like, like)
		})
	}
	return s.store.List(ctx, opts)
}

// Delete soft-deletes the entry; line items keep their copied values.
func (s *CatalogService) Delete(ctx context.Context, id uint) error {
	return s.store.Delete(ctx, id)
}

// ApplyDefaults fills blank description, price and quantity of lines that
// reference a catalog entry. The reference is weak: unknown or deleted
// entries leave the line untouched.
func (s *CatalogService) ApplyDefaults(ctx context.Context, tx *gorm.DB, items []billing.LineInput) ([]billing.LineInput, error) {
	out := make([]billing.LineInput, len(items))
	copy(out, items)
	cache := map[uint]*models.Service{}
	for i, in := range out {
		if in.ServiceRefID == nil {
			continue
		}
		id := *in.ServiceRefID
		svc, ok := cache[id]
		if !ok {
			var row models.Service
			err := tx.WithContext(ctx).Unscoped().First(&row, id).Error
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				svc = nil
			case err != nil:
				return nil, wrap("get", "service", err)
			default:
				svc = &row
			}
			cache[id] = svc
		}
		if svc == nil {
			continue
		}
		if strings.TrimSpace(in.Description) == "" {
			out[i].Description = svc.Name
		}
		if strings.TrimSpace(string(in.UnitPrice)) == "" {
			out[i].UnitPrice = billing.Dec(svc.UnitPrice)
		}
		if strings.TrimSpace(string(in.Quantity)) == "" {
			out[i].Quantity = "1"
		}
	}
	return out, nil
}

// duplicateAsViolation turns a unique violation on field into a
// *billing.ValidationError.
func duplicateAsViolation(err error, field string) error {
	if isDuplicate(err) {
		v := validation.Violations{}
		v.Add(field, "already_exists")
		return billing.NewValidationError(v)
	}
	return err
}
