package models

import "time"

// InvoiceStatus represents the status of an invoice.
type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "draft"
	InvoiceStatusSent      InvoiceStatus = "sent"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusOverdue   InvoiceStatus = "overdue"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

var invoiceTransitions = map[InvoiceStatus][]InvoiceStatus{
	InvoiceStatusDraft:   {InvoiceStatusSent, InvoiceStatusCancelled},
	InvoiceStatusSent:    {InvoiceStatusPaid, InvoiceStatusOverdue, InvoiceStatusCancelled},
	InvoiceStatusOverdue: {InvoiceStatusPaid, InvoiceStatusCancelled},
}

// CanTransition reports whether the invoice may move from s to next.
func (s InvoiceStatus) CanTransition(next InvoiceStatus) bool {
	for _, n := range invoiceTransitions[s] {
		if n == next {
			return true
		}
	}
	return false
}

// Invoice represents a billing invoice.
type Invoice struct {
	ID          uint          `gorm:"primaryKey" json:"id"`
	Number      string        `gorm:"size:50;uniqueIndex;not null" json:"number"`
	CustomerID  uint          `gorm:"index;not null" json:"customer_id"`
	Customer    *Customer     `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	Status      InvoiceStatus `gorm:"size:20;not null;index" json:"status"`
	IssueDate   time.Time     `gorm:"not null" json:"issue_date"`
	DueDate     time.Time     `gorm:"not null" json:"due_date"`
	PaidAt      *time.Time    `json:"paid_at,omitempty"`
	Currency    string        `gorm:"size:3;not null" json:"currency"`
	Notes       string        `gorm:"type:text" json:"notes,omitempty"`
	QuoteID     *uint         `gorm:"index" json:"quote_id,omitempty"`
	RecurringID *uint         `gorm:"index" json:"recurring_id,omitempty"`
	DocumentTotals
	Items     []InvoiceItem `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE" json:"items"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// CanEdit returns true if the invoice can still be edited.
func (i *Invoice) CanEdit() bool {
	return i.Status == InvoiceStatusDraft
}

// ItemFields returns the stored item columns in position order.
func (i *Invoice) ItemFields() []ItemFields {
	out := make([]ItemFields, 0, len(i.Items))
	for _, it := range i.Items {
		out = append(out, it.ItemFields)
	}
	return out
}

// InvoiceItem represents a line item on an invoice.
type InvoiceItem struct {
	ID        uint `gorm:"primaryKey" json:"id"`
	InvoiceID uint `gorm:"index;not null" json:"invoice_id"`
	ItemFields
}
