package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Service is an entry of the service catalog. Line items reference it
// weakly: the reference is only used to pre-fill description and price.
type Service struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	Code        string          `gorm:"size:40;uniqueIndex;not null" json:"code"`
	Name        string          `gorm:"size:255;not null" json:"name"`
	Description string          `gorm:"type:text" json:"description,omitempty"`
	UnitPrice   decimal.Decimal `gorm:"type:numeric(18,6);not null" json:"unit_price"`
	Unit        string          `gorm:"size:50" json:"unit,omitempty"` // hour, month, device...
	DeletedAt   gorm.DeletedAt  `gorm:"index" json:"-"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
