package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/diewo77/go-billing/internal/billing"
	"github.com/diewo77/go-billing/internal/models"
)

func TestInvoiceCreateDefaults(t *testing.T) {
	_, svc := setup(t)
	ctx := context.Background()
	c := newCustomer(t, svc, "Acme")

	issue := time.Date(2025, 2, 1, 15, 0, 0, 0, time.UTC)
	inv, err := svc.Invoices.Create(ctx, InvoiceInput{CustomerID: c.ID, IssueDate: &issue, Items: scenarioItems()})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if inv.Currency != "EUR" || inv.Status != models.InvoiceStatusDraft {
		t.Fatalf("unexpected defaults %s %s", inv.Currency, inv.Status)
	}
	if !inv.IssueDate.Equal(day(2025, 2, 1)) || !inv.DueDate.Equal(day(2025, 3, 3)) {
		t.Fatalf("unexpected dates %s %s", inv.IssueDate, inv.DueDate)
	}
	if !inv.Total.Equal(dec("190")) {
		t.Fatalf("total = %s", inv.Total)
	}

	due := day(2025, 1, 1)
	_, err = svc.Invoices.Create(ctx, InvoiceInput{CustomerID: c.ID, IssueDate: &issue, DueDate: &due, Currency: "EURO", Items: scenarioItems()})
	var ve *billing.ValidationError
	if !errors.As(err, &ve) || ve.Violations["due_date"] != "before_issue_date" || ve.Violations["currency"] != "invalid_currency" {
		t.Fatalf("expected date and currency violations, got %v", err)
	}
}

func TestInvoiceFullPrecisionRoundTrip(t *testing.T) {
	_, svc := setup(t)
	ctx := context.Background()
	c := newCustomer(t, svc, "Acme")
	inv, err := svc.Invoices.Create(ctx, InvoiceInput{
		CustomerID: c.ID,
		Items:      []billing.LineInput{{Description: "Consulting", Quantity: "1", UnitPrice: "10", DiscountPercent: "33.3333"}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := svc.Invoices.Get(ctx, inv.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Items[0].Total.Equal(dec("6.66667")) || !got.Total.Equal(dec("6.66667")) {
		t.Fatalf("precision lost: %s %s", got.Items[0].Total, got.Total)
	}
}

func TestInvoiceGetRepairsCorruptedTotals(t *testing.T) {
	db, svc := setup(t)
	ctx := context.Background()
	c := newCustomer(t, svc, "Acme")
	inv, err := svc.Invoices.Create(ctx, InvoiceInput{CustomerID: c.ID, DiscountPercent: "5", Items: scenarioItems()})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	db.Model(&models.Invoice{}).Where("id = ?", inv.ID).Update("total", "1")

	got, err := svc.Invoices.Get(ctx, inv.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Total.Equal(dec("180.5")) {
		t.Fatalf("not repaired: total=%s", got.Total)
	}
	if n := countRows(t, db, &models.AuditLog{}, "entity_type = ? AND entity_id = ? AND action = ?", "invoice", inv.ID, models.AuditRepairTotals); n != 1 {
		t.Fatalf("expected 1 repair audit row, got %d", n)
	}
}

func TestInvoiceOnlyDraftIsEditable(t *testing.T) {
	_, svc := setup(t)
	ctx := context.Background()
	c := newCustomer(t, svc, "Acme")
	inv, _ := svc.Invoices.Create(ctx, InvoiceInput{CustomerID: c.ID, Items: scenarioItems()})

	updated, err := svc.Invoices.Update(ctx, inv.ID, InvoiceInput{CustomerID: c.ID, DiscountPercent: "10", Items: scenarioItems()})
	if err != nil {
		t.Fatalf("update draft: %v", err)
	}
	if !updated.Total.Equal(dec("171")) || !updated.IssueDate.Equal(inv.IssueDate) {
		t.Fatalf("unexpected update %s %s", updated.Total, updated.IssueDate)
	}
	if _, err := svc.Invoices.SetStatus(ctx, inv.ID, models.InvoiceStatusSent); err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := svc.Invoices.Update(ctx, inv.ID, InvoiceInput{CustomerID: c.ID, Items: scenarioItems()}); !errors.Is(err, ErrNotEditable) {
		t.Fatalf("expected ErrNotEditable, got %v", err)
	}
}

func TestInvoiceStatusAndRevenue(t *testing.T) {
	db, svc := setup(t)
	ctx := context.Background()
	c := newCustomer(t, svc, "Acme")
	a, _ := svc.Invoices.Create(ctx, InvoiceInput{CustomerID: c.ID, DiscountPercent: "5", Items: scenarioItems()})
	b, _ := svc.Invoices.Create(ctx, InvoiceInput{CustomerID: c.ID, Items: scenarioItems()})
	svc.Invoices.Create(ctx, InvoiceInput{CustomerID: c.ID, Items: scenarioItems()})

	if _, err := svc.Invoices.SetStatus(ctx, a.ID, models.InvoiceStatusPaid); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("draft cannot be paid directly, got %v", err)
	}
	for _, id := range []uint{a.ID, b.ID} {
		if _, err := svc.Invoices.SetStatus(ctx, id, models.InvoiceStatusSent); err != nil {
			t.Fatalf("send: %v", err)
		}
		paid, err := svc.Invoices.SetStatus(ctx, id, models.InvoiceStatusPaid)
		if err != nil {
			t.Fatalf("pay: %v", err)
		}
		if paid.PaidAt == nil {
			t.Fatal("paid_at not set")
		}
	}
	rev, err := svc.Invoices.Revenue(ctx)
	if err != nil {
		t.Fatalf("revenue: %v", err)
	}
	if !rev.Equal(dec("370.5")) {
		t.Fatalf("revenue = %s", rev)
	}
	if n := countRows(t, db, &models.AuditLog{}, "entity_type = ? AND action = ?", "invoice", models.AuditStatus); n != 4 {
		t.Fatalf("expected 4 status audit rows, got %d", n)
	}
}

func TestInvoiceCancelAndOverdue(t *testing.T) {
	_, svc := setup(t)
	ctx := context.Background()
	c := newCustomer(t, svc, "Acme")
	a, _ := svc.Invoices.Create(ctx, InvoiceInput{CustomerID: c.ID, Items: scenarioItems()})
	b, _ := svc.Invoices.Create(ctx, InvoiceInput{CustomerID: c.ID, Items: scenarioItems()})

	cancelled, err := svc.Invoices.Cancel(ctx, a.ID)
	if err != nil || cancelled.Status != models.InvoiceStatusCancelled {
		t.Fatalf("cancel: %v %v", cancelled, err)
	}
	if _, err := svc.Invoices.Cancel(ctx, a.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("double cancel: %v", err)
	}
	svc.Invoices.SetStatus(ctx, b.ID, models.InvoiceStatusSent)

	n, err := svc.Invoices.MarkOverdue(ctx, testNow.AddDate(0, 0, 30))
	if err != nil || n != 0 {
		t.Fatalf("not yet overdue: n=%d err=%v", n, err)
	}
	n, err = svc.Invoices.MarkOverdue(ctx, testNow.AddDate(0, 0, 31))
	if err != nil || n != 1 {
		t.Fatalf("overdue: n=%d err=%v", n, err)
	}
	got, _ := svc.Invoices.Get(ctx, b.ID)
	if got.Status != models.InvoiceStatusOverdue {
		t.Fatalf("status = %s", got.Status)
	}
}

func TestInvoiceGetNotFound(t *testing.T) {
	_, svc := setup(t)
	if _, err := svc.Invoices.Get(context.Background(), 404); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
