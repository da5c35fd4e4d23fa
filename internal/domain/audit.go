package domain

import "time"

// AuditEntry is an append-only record of ledger events
type AuditEntry struct {
	ID        uint      `gorm:"primaryKey"`       // Primary key
	Event     string    `gorm:"size:64;not null"` // Event name, e.g. transfer.completed
	Details   string    `gorm:"type:text"`        // Free form details
	CreatedAt time.Time `gorm:"not null"`         // When the event happened
}

// TableName keeps the relation name used by the export utility
func (AuditEntry) TableName() string { return "audit_log" }
