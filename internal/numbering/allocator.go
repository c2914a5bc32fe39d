package numbering

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/diewo77/go-billing/internal/models"
)

var (
	// ErrUnknownKind is returned for a kind with no persisted sequence.
	ErrUnknownKind = errors.New("numbering: unknown sequence kind")
	// ErrAllocationConflict is returned when concurrent writers kept winning
	// the race for the counter.
	ErrAllocationConflict = errors.New("numbering: allocation conflict")
)

const defaultAttempts = 8

// Allocator reserves numbers with a conditional update on the counter row,
// so two writers can never observe and persist the same counter value.
type Allocator struct {
	DB          *gorm.DB
	Now         func() time.Time
	MaxAttempts int
}

// NewAllocator creates an allocator using the wall clock.
func NewAllocator(db *gorm.DB) *Allocator {
	return &Allocator{DB: db, Now: time.Now, MaxAttempts: defaultAttempts}
}

// Next allocates a number for kind in its own transaction.
func (a *Allocator) Next(ctx context.Context, kind Kind) (string, error) {
	var number string
	err := a.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		n, err := a.NextTx(ctx, tx, kind)
		number = n
		return err
	})
	return number, err
}

// NextTx allocates a number for kind inside tx. When tx rolls back the
// counter increment rolls back with it.
func (a *Allocator) NextTx(ctx context.Context, tx *gorm.DB, kind Kind) (string, error) {
	attempts := a.MaxAttempts
	if attempts <= 0 {
		attempts = defaultAttempts
	}
	for i := 0; i < attempts; i++ {
		var seq models.NumberSequence
		if err := tx.WithContext(ctx).Where("kind = ?", string(kind)).First(&seq).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return "", fmt.Errorf("%w: %s", ErrUnknownKind, kind)
			}
			return "", err
		}
		number, next := Allocate(seq, a.now())
		res := tx.WithContext(ctx).Model(&models.NumberSequence{}).
			Where("id = ? AND counter = ? AND last_year = ?", seq.ID, seq.Counter, seq.LastYear).
			Updates(map[string]any{"counter": next.Counter, "last_year": next.LastYear})
		if res.Error != nil {
			return "", res.Error
		}
		if res.RowsAffected == 1 {
			return number, nil
		}
	}
	return "", fmt.Errorf("%w: %s after %d attempts", ErrAllocationConflict, kind, attempts)
}

// Peek returns the number the next allocation would produce without
// reserving it.
func (a *Allocator) Peek(ctx context.Context, kind Kind) (string, error) {
	var seq models.NumberSequence
	if err := a.DB.WithContext(ctx).Where("kind = ?", string(kind)).First(&seq).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("%w: %s", ErrUnknownKind, kind)
		}
		return "", err
	}
	number, _ := Allocate(seq, a.now())
	return number, nil
}

func (a *Allocator) now() time.Time {
	if a.Now == nil {
		return time.Now()
	}
	return a.Now()
}

// IsDuplicate reports whether err is a unique constraint violation, either
// translated by gorm or raw from postgres.
func IsDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Retry runs fn again while it fails with a unique violation, which happens
// when a document number collides with a row written outside the allocator.
func Retry(attempts int, fn func() error) error {
	if attempts <= 0 {
		attempts = defaultAttempts
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); !IsDuplicate(err) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", ErrAllocationConflict, err)
}
