// Package store is the data-access boundary: a generic gorm repository whose
// failures are always surfaced as typed errors.
package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned by Get when no row matches.
var ErrNotFound = errors.New("record not found")

// Error reports a failing data-store call.
type Error struct {
	Op     string
	Entity string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("store: %s %s: %v", e.Op, e.Entity, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Result is the normalized envelope handed to callers that do not deal in
// Go errors (CLI output, job reports).
type Result[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Of builds a Result from a value and an error.
func Of[T any](data T, err error) Result[T] {
	if err != nil {
		return Result[T]{Error: err.Error()}
	}
	return Result[T]{Success: true, Data: data}
}

// Scope narrows a query.
type Scope func(*gorm.DB) *gorm.DB

// ListOptions controls List. Zero Limit means no limit.
type ListOptions struct {
	Limit  int
	Offset int
	Order  string
	Scopes []Scope
}

// Store is a typed repository over one gorm model.
type Store[T any] struct {
	db      *gorm.DB
	entity  string
	preload []string
}

// New creates a store for T. Preloads are applied to List and Get.
func New[T any](db *gorm.DB, entity string, preload ...string) *Store[T] {
	return &Store[T]{db: db, entity: entity, preload: preload}
}

// Tx returns a copy of the store bound to tx.
func (s *Store[T]) Tx(tx *gorm.DB) *Store[T] {
	return &Store[T]{db: tx, entity: s.entity, preload: s.preload}
}

// DB exposes the underlying handle.
func (s *Store[T]) DB() *gorm.DB { return s.db }

func (s *Store[T]) fail(op string, err error) error {
	return &Error{Op: op, Entity: s.entity, Err: err}
}

func (s *Store[T]) query(ctx context.Context) *gorm.DB {
	q := s.db.WithContext(ctx)
	for _, p := range s.preload {
		q = q.Preload(p)
	}
	return q
}

// List returns one page of rows and the total count matching the scopes.
func (s *Store[T]) List(ctx context.Context, opts ListOptions) ([]T, int64, error) {
	base := s.db.WithContext(ctx).Model(new(T))
	for _, sc := range opts.Scopes {
		base = sc(base)
	}
	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, s.fail("count", err)
	}

	q := s.query(ctx)
	for _, sc := range opts.Scopes {
		q = sc(q)
	}
	order := opts.Order
	if order == "" {
		order = "id desc"
	}
	q = q.Order(order)
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	items := make([]T, 0)
	if err := q.Find(&items).Error; err != nil {
		return nil, 0, s.fail("list", err)
	}
	return items, total, nil
}

// Get loads a row by primary key.
func (s *Store[T]) Get(ctx context.Context, id uint) (*T, error) {
	var v T
	if err := s.query(ctx).First(&v, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%s %d: %w", s.entity, id, ErrNotFound)
		}
		return nil, s.fail("get", err)
	}
	return &v, nil
}

// Create inserts v together with its associations.
func (s *Store[T]) Create(ctx context.Context, v *T) error {
	if err := s.db.WithContext(ctx).Create(v).Error; err != nil {
		return s.fail("create", err)
	}
	return nil
}

// Update saves the columns of v. Associations are left alone.
func (s *Store[T]) Update(ctx context.Context, v *T) error {
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Save(v).Error; err != nil {
		return s.fail("update", err)
	}
	return nil
}

// Delete removes the row with id, softly when T has a DeletedAt field.
func (s *Store[T]) Delete(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(new(T), id)
	if res.Error != nil {
		return s.fail("delete", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%s %d: %w", s.entity, id, ErrNotFound)
	}
	return nil
}
