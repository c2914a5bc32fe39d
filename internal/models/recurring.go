package models

import (
	"time"

	"github.com/diewo77/go-billing/internal/recurring"
)

// RecurringInvoice is a template that periodically spawns invoices.
type RecurringInvoice struct {
	ID               uint             `gorm:"primaryKey" json:"id"`
	Title            string           `gorm:"size:255;not null" json:"title"`
	CustomerID       uint             `gorm:"index;not null" json:"customer_id"`
	Customer         *Customer        `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	Interval         string           `gorm:"size:20;not null" json:"interval"`
	StartDate        time.Time        `gorm:"not null" json:"start_date"`
	EndDate          *time.Time       `json:"end_date,omitempty"`
	NextInvoiceDate  time.Time        `gorm:"not null;index" json:"next_invoice_date"`
	Status           recurring.Status `gorm:"size:20;not null;index" json:"status"`
	PaymentTermsDays int              `gorm:"not null" json:"payment_terms_days"`
	GeneratedCount   int              `gorm:"not null" json:"generated_count"`
	LastGeneratedAt  *time.Time       `json:"last_generated_at,omitempty"`
	Notes            string           `gorm:"type:text" json:"notes,omitempty"`
	DocumentTotals
	Items     []RecurringItem `gorm:"foreignKey:RecurringInvoiceID;constraint:OnDelete:CASCADE" json:"items"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Schedule extracts the scheduling fields.
func (r *RecurringInvoice) Schedule() recurring.Schedule {
	return recurring.Schedule{
		Interval:        recurring.Interval(r.Interval),
		StartDate:       r.StartDate,
		EndDate:         r.EndDate,
		NextInvoiceDate: r.NextInvoiceDate,
		Status:          r.Status,
	}
}

// ApplySchedule writes back the scheduling fields.
func (r *RecurringInvoice) ApplySchedule(s recurring.Schedule) {
	r.Interval = string(s.Interval)
	r.StartDate = s.StartDate
	r.EndDate = s.EndDate
	r.NextInvoiceDate = s.NextInvoiceDate
	r.Status = s.Status
}

// ItemFields returns the stored item columns in position order.
func (r *RecurringInvoice) ItemFields() []ItemFields {
	out := make([]ItemFields, 0, len(r.Items))
	for _, it := range r.Items {
		out = append(out, it.ItemFields)
	}
	return out
}

type RecurringItem struct {
	ID                 uint `gorm:"primaryKey" json:"id"`
	RecurringInvoiceID uint `gorm:"index;not null" json:"recurring_invoice_id"`
	ItemFields
}
