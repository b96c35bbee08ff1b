package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/comcin/internal/models"
	"github.com/example/comcin/internal/utils"
)

// CertificateService issues member certificates.
type CertificateService struct {
	db       *gorm.DB
	notifier *Notifier
	blobs    BlobStore
}

// NewCertificateService creates a CertificateService.
func NewCertificateService(db *gorm.DB, notifier *Notifier, blobs BlobStore) *CertificateService {
	return &CertificateService{db: db, notifier: notifier, blobs: blobs}
}

// CertificateInput describes a certificate to issue.
type CertificateInput struct {
	MemberID   uuid.UUID
	Name       string
	Type       string
	Publish    bool
	IssueDate  *time.Time
	ExpiryDate *time.Time
	File       *Upload
}

// Issue creates a certificate for a member and notifies them once published.
func (s *CertificateService) Issue(ctx context.Context, actor Actor, in CertificateInput) (*models.Certificate, error) {
	if err := authorize(actor, ActionIssueCertificate, Resource{}); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, invalid("certificate name is required")
	}
	if in.Type == "" {
		in.Type = "membership"
	}
	if !oneOf(in.Type, models.CertificateTypes...) {
		return nil, invalid("invalid certificate type %q", in.Type)
	}
	if in.IssueDate != nil && in.ExpiryDate != nil && in.ExpiryDate.Before(*in.IssueDate) {
		return nil, invalid("expiry date must be after issue date")
	}

	var member models.User
	if err := s.db.WithContext(ctx).First(&member, "id = ? AND role = ?", in.MemberID, models.RoleMember).Error; err != nil {
		if isNotFound(err) {
			return nil, notFound("member not found")
		}
		return nil, persistence("load member", err)
	}

	code, err := utils.RandomCode(8)
	if err != nil {
		return nil, persistence("generate certificate id", err)
	}
	status := models.CertificateProcessing
	if in.Publish {
		status = models.CertificatePublished
	}
	certificate := models.Certificate{
		CertificateUID: "CERT-" + code,
		MemberID:       member.ID,
		Name:           strings.TrimSpace(in.Name),
		Type:           in.Type,
		Status:         status,
		IssueDate:      in.IssueDate,
		ExpiryDate:     in.ExpiryDate,
		IssuedBy:       &actor.ID,
	}
	if in.File != nil && in.File.Body != nil && s.blobs != nil {
		stored, err := s.blobs.Save(member.ID.String()+"/certificates", in.File.Filename, in.File.Body)
		if err != nil {
			return nil, persistence("store certificate file", err)
		}
		certificate.FilePath = stored
	}

	if err := s.db.WithContext(ctx).Create(&certificate).Error; err != nil {
		return nil, persistence("create certificate", err)
	}

	if in.Publish {
		s.notifyPublished(ctx, actor, certificate)
	}
	return &certificate, nil
}

// Publish marks a processing certificate as published.
func (s *CertificateService) Publish(ctx context.Context, actor Actor, id uuid.UUID) (*models.Certificate, error) {
	if err := authorize(actor, ActionIssueCertificate, Resource{}); err != nil {
		return nil, err
	}

	var certificate models.Certificate
	changed := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&certificate, "id = ?", id).Error; err != nil {
			if isNotFound(err) {
				return notFound("certificate not found")
			}
			return err
		}
		if certificate.Status == models.CertificatePublished {
			return nil
		}
		certificate.Status = models.CertificatePublished
		changed = true
		return tx.Model(&certificate).Update("status", models.CertificatePublished).Error
	})
	if err != nil {
		return nil, persistence("publish certificate", err)
	}

	if changed {
		s.notifyPublished(ctx, actor, certificate)
	}
	return &certificate, nil
}

func (s *CertificateService) notifyPublished(ctx context.Context, actor Actor, certificate models.Certificate) {
	s.notifier.Dispatch(ctx, NotificationInput{
		UserID:    certificate.MemberID,
		Title:     "Certificate Issued",
		Content:   fmt.Sprintf("Your %s certificate %q (%s) is now available.", certificate.Type, certificate.Name, certificate.CertificateUID),
		Type:      models.NotificationInfo,
		Category:  models.CategoryUser,
		CreatedBy: &actor.ID,
	})
}
