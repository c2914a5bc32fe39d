package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/diewo77/go-billing/internal/billing"
	"github.com/diewo77/go-billing/internal/models"
)

var testNow = time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)

func setupTestDB(t *testing.T) *gorm.DB {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	seqs := []models.NumberSequence{
		{Kind: "quote", Prefix: "QUO", Padding: 4, Counter: 1, YearResetEnabled: true},
		{Kind: "invoice", Prefix: "INV", Padding: 4, Counter: 1, YearResetEnabled: true},
		{Kind: "customer", Prefix: "CUS", Padding: 6, Counter: 1},
	}
	if err := db.Create(&seqs).Error; err != nil {
		t.Fatalf("seed sequences: %v", err)
	}
	return db
}

func testOptions(p billing.Policy) Options {
	return Options{Policy: p, Currency: "EUR", PaymentTermsDays: 30, Now: func() time.Time { return testNow }}
}

func setup(t *testing.T) (*gorm.DB, *Services) {
	db := setupTestDB(t)
	return db, New(db, testOptions(billing.Clamp))
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newCustomer(t *testing.T, svc *Services, name string) *models.Customer {
	t.Helper()
	c, err := svc.Customers.Create(context.Background(), CustomerInput{Name: name, Email: "billing@example.com"})
	if err != nil {
		t.Fatalf("create customer: %v", err)
	}
	return c
}

// scenarioItems sum to 190 before document discount.
func scenarioItems() []billing.LineInput {
	return []billing.LineInput{
		{Description: "Workstation setup", Quantity: "2", UnitPrice: "50"},
		{Description: "", Quantity: "9", UnitPrice: "9"},
		{Description: "Network audit", Quantity: "1", UnitPrice: "100", DiscountPercent: "10"},
	}
}

func day(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

func countRows(t *testing.T, db *gorm.DB, model any, where string, args ...any) int64 {
	t.Helper()
	var n int64
	q := db.Model(model)
	if where != "" {
		q = q.Where(where, args...)
	}
	if err := q.Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}
