package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/comcin/internal/models"
	"github.com/example/comcin/internal/utils"
)

// SupportService manages member support tickets.
type SupportService struct {
	db       *gorm.DB
	notifier *Notifier
	blobs    BlobStore
	now      func() time.Time
}

// NewSupportService creates a SupportService.
func NewSupportService(db *gorm.DB, notifier *Notifier, blobs BlobStore) *SupportService {
	return &SupportService{db: db, notifier: notifier, blobs: blobs, now: time.Now}
}

// TicketInput is a new support request.
type TicketInput struct {
	Subject    string
	Message    string
	Attachment *Upload
}

// Create opens a pending ticket for the actor and alerts the admins.
func (s *SupportService) Create(ctx context.Context, actor Actor, in TicketInput) (*models.SupportTicket, error) {
	if err := authorize(actor, ActionCreateSupport, OwnedBy(actor.ID)); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Subject) == "" || strings.TrimSpace(in.Message) == "" {
		return nil, invalid("subject and message are required")
	}

	ticket := models.SupportTicket{
		TicketNumber: utils.NewReference("TCK"),
		UserID:       actor.ID,
		Subject:      strings.TrimSpace(in.Subject),
		Message:      in.Message,
		Status:       models.TicketPending,
	}
	if in.Attachment != nil && in.Attachment.Body != nil && s.blobs != nil {
		stored, err := s.blobs.Save(actor.ID.String()+"/support", in.Attachment.Filename, in.Attachment.Body)
		if err != nil {
			return nil, persistence("store attachment", err)
		}
		ticket.Attachment = stored
	}

	if err := s.db.WithContext(ctx).Create(&ticket).Error; err != nil {
		if ticket.Attachment != "" {
			_ = s.blobs.Delete(ticket.Attachment)
		}
		return nil, persistence("create ticket", err)
	}

	s.notifier.Dispatch(ctx, s.notifier.ToAdmins(ctx, NotificationInput{
		Title:     "New Support Ticket",
		Content:   fmt.Sprintf("Ticket %s: %s", ticket.TicketNumber, ticket.Subject),
		Type:      models.NotificationInfo,
		Category:  models.CategoryUser,
		CreatedBy: &actor.ID,
	})...)
	return &ticket, nil
}

// Review approves or rejects a pending ticket.
func (s *SupportService) Review(ctx context.Context, actor Actor, ticketID uuid.UUID, decision, response string) (*models.SupportTicket, error) {
	if err := authorize(actor, ActionReviewSupport, Resource{}); err != nil {
		return nil, err
	}

	var status string
	switch decision {
	case ReviewApprove:
		status = models.TicketApproved
	case ReviewReject:
		status = models.TicketRejected
	default:
		return nil, invalid("invalid decision %q: must be approve or reject", decision)
	}

	var ticket models.SupportTicket
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&ticket, "id = ?", ticketID).Error; err != nil {
			if isNotFound(err) {
				return notFound("support ticket not found")
			}
			return err
		}
		if ticket.Status != models.TicketPending {
			return invalid("ticket is already %s", ticket.Status)
		}

		now := s.now()
		if err := tx.Model(&ticket).Updates(map[string]interface{}{
			"status":      status,
			"response":    response,
			"resolved_by": actor.ID,
			"resolved_at": now,
		}).Error; err != nil {
			return err
		}
		ticket.Status = status
		ticket.Response = response
		ticket.ResolvedBy = &actor.ID
		ticket.ResolvedAt = &now
		return nil
	})
	if err != nil {
		return nil, persistence("review ticket", err)
	}

	content := fmt.Sprintf("Your support ticket %s has been %s.", ticket.TicketNumber, status)
	if response != "" {
		content += " " + response
	}
	s.notifier.Dispatch(ctx,
		NotificationInput{
			UserID:    ticket.UserID,
			Title:     "Support Ticket " + strings.ToUpper(status[:1]) + status[1:],
			Content:   content,
			Type:      models.NotificationInfo,
			Category:  models.CategoryUser,
			CreatedBy: &actor.ID,
		},
		NotificationInput{
			UserID:    actor.ID,
			Title:     "Support Ticket Reviewed",
			Content:   fmt.Sprintf("You %s support ticket %s.", status, ticket.TicketNumber),
			Type:      models.NotificationInfo,
			Category:  models.CategoryUser,
			CreatedBy: &actor.ID,
		},
	)
	return &ticket, nil
}
