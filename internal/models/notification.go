package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	NotificationInfo    = "info"
	NotificationWarning = "warning"
	NotificationError   = "error"
)

const (
	CategorySystem      = "system"
	CategoryUser        = "user"
	CategoryTransaction = "transaction"
	CategoryApplication = "application"
)

// Notification is an append-only message addressed to a user.
type Notification struct {
	BaseModel
	UserID    uuid.UUID  `gorm:"type:uuid;index;not null" json:"user_id"`
	Title     string     `gorm:"not null" json:"title"`
	Content   string     `json:"content"`
	Type      string     `gorm:"not null" json:"type"`
	Category  string     `gorm:"index;not null" json:"category"`
	Reference string     `gorm:"uniqueIndex;not null" json:"reference"`
	ReadAt    *time.Time `json:"read_at"`
	CreatedBy *uuid.UUID `gorm:"type:uuid" json:"created_by"`
}
