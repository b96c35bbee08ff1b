package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	CertificateProcessing = "processing"
	CertificatePublished  = "published"
)

// CertificateTypes lists accepted certificate types.
var CertificateTypes = []string{"membership", "training", "achievement", "other"}

// Certificate is issued to a member by an admin.
type Certificate struct {
	BaseModel
	CertificateUID string     `gorm:"uniqueIndex;not null" json:"certificate_uid"`
	MemberID       uuid.UUID  `gorm:"type:uuid;index;not null" json:"member_id"`
	Member         *User      `json:"member,omitempty"`
	Name           string     `gorm:"not null" json:"name"`
	Type           string     `json:"type"`
	Status         string     `gorm:"index" json:"status"`
	FilePath       string     `json:"file_path"`
	IssueDate      *time.Time `json:"issue_date"`
	ExpiryDate     *time.Time `json:"expiry_date"`
	IssuedBy       *uuid.UUID `gorm:"type:uuid" json:"issued_by"`
}
