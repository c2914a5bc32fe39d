package models

import "time"

// Customer of the IT-service business. Customers are archived, never deleted,
// because documents keep referencing them.
type Customer struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	Number     string     `gorm:"size:50;uniqueIndex;not null" json:"number"`
	Name       string     `gorm:"size:255;not null;index" json:"name"`
	Company    string     `gorm:"size:255;index" json:"company,omitempty"`
	Email      string     `gorm:"size:255" json:"email,omitempty"`
	Phone      string     `gorm:"size:50" json:"phone,omitempty"`
	Address    string     `gorm:"size:500" json:"address,omitempty"`
	PostalCode string     `gorm:"size:20" json:"postal_code,omitempty"`
	City       string     `gorm:"size:100" json:"city,omitempty"`
	Country    string     `gorm:"size:100" json:"country,omitempty"`
	VATNumber  string     `gorm:"size:50" json:"vat_number,omitempty"`
	Notes      string     `gorm:"type:text" json:"notes,omitempty"`
	ArchivedAt *time.Time `gorm:"index" json:"archived_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Archived reports whether the customer has been archived.
func (c *Customer) Archived() bool { return c.ArchivedAt != nil }
