package models

import "time"

// Audit actions.
const (
	AuditCreate       = "create"
	AuditUpdate       = "update"
	AuditStatus       = "status"
	AuditRepairTotals = "repair_totals"
	AuditGenerate     = "generate"
)

// AuditLog records who changed what on which entity.
type AuditLog struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint      `gorm:"index" json:"user_id"` // 0 for system jobs
	EntityType string    `gorm:"size:50;index" json:"entity_type"`
	EntityID   uint      `gorm:"index" json:"entity_id"`
	Action     string    `gorm:"size:50" json:"action"`
	Field      string    `gorm:"size:100" json:"field,omitempty"`
	OldValue   string    `gorm:"type:text" json:"old_value,omitempty"`
	NewValue   string    `gorm:"type:text" json:"new_value,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
