package models

import "time"

// NumberSequence is a persisted counter producing human readable document
// numbers. Counter holds the next value to hand out; LastYear is the
// calendar year of the last allocation and drives the yearly reset.
type NumberSequence struct {
	ID               uint   `gorm:"primaryKey" json:"id"`
	Kind             string `gorm:"size:20;uniqueIndex;not null" json:"kind"`
	Prefix           string `gorm:"size:20" json:"prefix"`
	Suffix           string `gorm:"size:20" json:"suffix"`
	Padding          int    `gorm:"not null" json:"padding"`
	Counter          int64  `gorm:"not null" json:"counter"`
	YearResetEnabled bool   `gorm:"not null" json:"year_reset_enabled"`
	LastYear         int    `gorm:"not null" json:"last_year"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// All returns every model in migration order.
func All() []any {
	return []any{
		&User{}, &Customer{}, &Service{}, &NumberSequence{},
		&Quote{}, &QuoteItem{}, &Invoice{}, &InvoiceItem{},
		&RecurringInvoice{}, &RecurringItem{}, &AuditLog{},
	}
}
