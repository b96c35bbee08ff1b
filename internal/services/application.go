package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/comcin/internal/metrics"
	"github.com/example/comcin/internal/models"
)

const (
	ActionApprove   = "approve"
	ActionVerifying = "verifying"
	ActionReject    = "reject"
)

// DefaultRejectionReason is stored when an admin rejects without a reason.
const DefaultRejectionReason = "No reason provided"

// ApplicationService drives the institution approval workflow.
type ApplicationService struct {
	db       *gorm.DB
	notifier *Notifier
}

// NewApplicationService creates an ApplicationService.
func NewApplicationService(db *gorm.DB, notifier *Notifier) *ApplicationService {
	return &ApplicationService{db: db, notifier: notifier}
}

// TransitionInput describes an admin decision on an application.
type TransitionInput struct {
	InstitutionID   uuid.UUID
	Action          string
	RejectionReason string
}

// Transition applies approve, verifying or reject to an institution and its
// owning user in one database transaction, then notifies the owner and the acting admin.
func (s *ApplicationService) Transition(ctx context.Context, actor Actor, in TransitionInput) (*models.Institution, error) {
	if err := authorize(actor, ActionTransitionApplication, Resource{}); err != nil {
		return nil, err
	}

	var status string
	switch in.Action {
	case ActionApprove:
		status = models.ApplicationApproved
	case ActionVerifying:
		status = models.ApplicationVerifying
	case ActionReject:
		status = models.ApplicationRejected
	default:
		return nil, invalid("invalid action %q: must be one of approve, verifying, reject", in.Action)
	}

	var institution models.Institution
	var user models.User

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&institution, "id = ?", in.InstitutionID).Error; err != nil {
			if isNotFound(err) {
				return notFound("institution not found")
			}
			return err
		}

		if err := tx.First(&user, "id = ?", institution.UserID).Error; err != nil {
			if isNotFound(err) {
				return notFound("institution owner not found")
			}
			return err
		}

		approved := status == models.ApplicationApproved
		updates := map[string]interface{}{
			"status":      status,
			"is_approved": approved,
		}
		switch status {
		case models.ApplicationApproved:
			updates["rejection_reason"] = nil
			institution.RejectionReason = nil
		case models.ApplicationRejected:
			reason := in.RejectionReason
			if reason == "" {
				reason = DefaultRejectionReason
			}
			updates["rejection_reason"] = reason
			institution.RejectionReason = &reason
		}

		if err := tx.Model(&institution).Updates(updates).Error; err != nil {
			return err
		}
		institution.Status = status
		institution.IsApproved = approved

		// verifying moves the institution only; the user keeps its flag
		if status == models.ApplicationVerifying {
			return nil
		}
		if err := tx.Model(&user).Update("is_approved", approved).Error; err != nil {
			return err
		}
		user.IsApproved = approved
		return nil
	})
	if err != nil {
		return nil, persistence("update application", err)
	}

	metrics.ApplicationTransitions.WithLabelValues(in.Action).Inc()
	institution.User = &user

	userTitle, userContent, adminContent := transitionMessages(status, institution, user)
	s.notifier.Dispatch(ctx,
		NotificationInput{
			UserID:    user.ID,
			Title:     userTitle,
			Content:   userContent,
			Type:      models.NotificationInfo,
			Category:  models.CategoryApplication,
			CreatedBy: &actor.ID,
		},
		NotificationInput{
			UserID:    actor.ID,
			Title:     "Application " + statusLabel(status),
			Content:   adminContent,
			Type:      models.NotificationInfo,
			Category:  models.CategoryApplication,
			CreatedBy: &actor.ID,
		},
	)

	return &institution, nil
}

// FindByUser returns the institution owned by userID with its owner preloaded.
func (s *ApplicationService) FindByUser(ctx context.Context, userID uuid.UUID) (*models.Institution, error) {
	var institution models.Institution
	if err := s.db.WithContext(ctx).Preload("User").
		First(&institution, "user_id = ?", userID).Error; err != nil {
		if isNotFound(err) {
			return nil, notFound("application not found")
		}
		return nil, persistence("load application", err)
	}
	return &institution, nil
}

func statusLabel(status string) string {
	switch status {
	case models.ApplicationApproved:
		return "Approved"
	case models.ApplicationRejected:
		return "Rejected"
	case models.ApplicationVerifying:
		return "Under Review"
	}
	return "Updated"
}

func transitionMessages(status string, institution models.Institution, user models.User) (string, string, string) {
	name := institution.Name
	if name == "" {
		name = user.Name
	}

	switch status {
	case models.ApplicationApproved:
		return "Application Approved",
			"Application approved successfully.",
			fmt.Sprintf("You approved %s's application.", name)
	case models.ApplicationRejected:
		reason := DefaultRejectionReason
		if institution.RejectionReason != nil {
			reason = *institution.RejectionReason
		}
		return "Application Rejected",
			fmt.Sprintf("Application rejected successfully. Reason: %s", reason),
			fmt.Sprintf("You rejected %s's application.", name)
	default:
		return "Application Under Review",
			fmt.Sprintf("Your application is being verified as of %s.", time.Now().Format("02 Jan 2006")),
			fmt.Sprintf("You moved %s's application to verification.", name)
	}
}
