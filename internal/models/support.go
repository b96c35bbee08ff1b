package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	TicketPending  = "pending"
	TicketApproved = "approved"
	TicketRejected = "rejected"
)

// SupportTicket is a member request handled by admins.
type SupportTicket struct {
	BaseModel
	TicketNumber string     `gorm:"uniqueIndex;not null" json:"ticket_number"`
	UserID       uuid.UUID  `gorm:"type:uuid;index;not null" json:"user_id"`
	User         *User      `json:"user,omitempty"`
	Subject      string     `gorm:"not null" json:"subject"`
	Message      string     `json:"message"`
	Attachment   string     `json:"attachment"`
	Status       string     `gorm:"index;not null" json:"status"`
	Response     string     `json:"response"`
	ResolvedBy   *uuid.UUID `gorm:"type:uuid" json:"resolved_by"`
	ResolvedAt   *time.Time `json:"resolved_at"`
}
