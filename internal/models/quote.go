package models

import (
	"time"

	"github.com/google/uuid"
)

// QuoteStatus is the lifecycle tag of a quote.
type QuoteStatus string

const (
	QuoteStatusDraft     QuoteStatus = "draft"
	QuoteStatusSent      QuoteStatus = "sent"
	QuoteStatusAccepted  QuoteStatus = "accepted"
	QuoteStatusRejected  QuoteStatus = "rejected"
	QuoteStatusConverted QuoteStatus = "converted"
)

var quoteTransitions = map[QuoteStatus][]QuoteStatus{
	QuoteStatusDraft:    {QuoteStatusSent, QuoteStatusRejected},
	QuoteStatusSent:     {QuoteStatusAccepted, QuoteStatusRejected, QuoteStatusDraft, QuoteStatusConverted},
	QuoteStatusAccepted: {QuoteStatusConverted},
}

// CanTransition reports whether the quote may move from s to next.
func (s QuoteStatus) CanTransition(next QuoteStatus) bool {
	for _, n := range quoteTransitions[s] {
		if n == next {
			return true
		}
	}
	return false
}

// Quote / estimate sent to a customer.
type Quote struct {
	ID                 uint        `gorm:"primaryKey" json:"id"`
	Number             string      `gorm:"size:50;uniqueIndex;not null" json:"number"`
	CustomerID         uint        `gorm:"index;not null" json:"customer_id"`
	Customer           *Customer   `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	Status             QuoteStatus `gorm:"size:20;not null;index" json:"status"`
	IssueDate          time.Time   `gorm:"not null" json:"issue_date"`
	ValidUntil         *time.Time  `json:"valid_until,omitempty"`
	Notes              string      `gorm:"type:text" json:"notes,omitempty"`
	PublicToken        uuid.UUID   `gorm:"type:varchar(36);uniqueIndex;not null" json:"public_token"`
	ConvertedInvoiceID *uint       `json:"converted_invoice_id,omitempty"`
	DocumentTotals
	Items     []QuoteItem `gorm:"foreignKey:QuoteID;constraint:OnDelete:CASCADE" json:"items"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// CanEdit returns true while items and discount may still change.
func (q *Quote) CanEdit() bool {
	return q.Status == QuoteStatusDraft || q.Status == QuoteStatusSent
}

// ItemFields returns the stored item columns in position order.
func (q *Quote) ItemFields() []ItemFields {
	out := make([]ItemFields, 0, len(q.Items))
	for _, it := range q.Items {
		out = append(out, it.ItemFields)
	}
	return out
}

type QuoteItem struct {
	ID      uint `gorm:"primaryKey" json:"id"`
	QuoteID uint `gorm:"index;not null" json:"quote_id"`
	ItemFields
}
