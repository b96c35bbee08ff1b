package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/comcin/internal/metrics"
	"github.com/example/comcin/internal/models"
	"github.com/example/comcin/internal/utils"
)

// NotificationInput carries the fields of a new notification.
type NotificationInput struct {
	UserID    uuid.UUID
	Title     string
	Content   string
	Type      string
	Category  string
	CreatedBy *uuid.UUID
}

// Notifier stores notifications for users.
type Notifier struct {
	db  *gorm.DB
	now func() time.Time
}

// NewNotifier creates a Notifier.
func NewNotifier(db *gorm.DB) *Notifier {
	return &Notifier{db: db, now: time.Now}
}

// NotificationReference returns a reference of the form RANDOM10-unixtime.
func NotificationReference(now time.Time) (string, error) {
	code, err := utils.RandomCode(10)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%d", code, now.Unix()), nil
}

// Notify inserts a single notification and returns it.
func (n *Notifier) Notify(ctx context.Context, in NotificationInput) (*models.Notification, error) {
	if in.UserID == uuid.Nil {
		return nil, invalid("notification recipient is required")
	}
	if in.Title == "" {
		return nil, invalid("notification title is required")
	}
	if in.Type == "" {
		in.Type = models.NotificationInfo
	}
	if !oneOf(in.Type, models.NotificationInfo, models.NotificationWarning, models.NotificationError) {
		return nil, invalid("invalid notification type %q", in.Type)
	}
	if !oneOf(in.Category, models.CategorySystem, models.CategoryUser, models.CategoryTransaction, models.CategoryApplication) {
		return nil, invalid("invalid notification category %q", in.Category)
	}

	reference, err := NotificationReference(n.now())
	if err != nil {
		return nil, persistence("generate notification reference", err)
	}

	notification := models.Notification{
		UserID:    in.UserID,
		Title:     in.Title,
		Content:   in.Content,
		Type:      in.Type,
		Category:  in.Category,
		Reference: reference,
		CreatedBy: in.CreatedBy,
	}
	if err := n.db.WithContext(ctx).Create(&notification).Error; err != nil {
		return nil, persistence("create notification", err)
	}
	return &notification, nil
}

// Dispatch stores each notification independently. Failures are logged and
// counted but never returned, so a committed operation is not reported as failed.
func (n *Notifier) Dispatch(ctx context.Context, inputs ...NotificationInput) int {
	sent := 0
	for _, in := range inputs {
		if _, err := n.Notify(ctx, in); err != nil {
			metrics.NotificationFailures.Inc()
			log.Printf("[Notify] failed to notify user %s (%q): %v", in.UserID, in.Title, err)
			continue
		}
		sent++
	}
	return sent
}

// AdminIDs returns every active admin, the audience for member-initiated events.
func (n *Notifier) AdminIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := n.db.WithContext(ctx).Model(&models.User{}).
		Where("role = ? AND is_active = ?", models.RoleAdmin, true).
		Order("created_at asc").
		Pluck("id", &ids).Error; err != nil {
		return nil, persistence("load admin audience", err)
	}
	return ids, nil
}

// ToAdmins fans a template notification out to every active admin.
func (n *Notifier) ToAdmins(ctx context.Context, template NotificationInput) []NotificationInput {
	ids, err := n.AdminIDs(ctx)
	if err != nil {
		log.Printf("[Notify] %v", err)
		return nil
	}
	out := make([]NotificationInput, 0, len(ids))
	for _, id := range ids {
		in := template
		in.UserID = id
		out = append(out, in)
	}
	return out
}

// List returns a user's notifications, newest first.
func (n *Notifier) List(ctx context.Context, userID uuid.UUID, limit int) ([]models.Notification, error) {
	var notifications []models.Notification
	query := n.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at desc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&notifications).Error; err != nil {
		return nil, persistence("list notifications", err)
	}
	return notifications, nil
}

// UnreadCount returns how many notifications the user has not read.
func (n *Notifier) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	if err := n.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND read_at IS NULL", userID).
		Count(&count).Error; err != nil {
		return 0, persistence("count unread notifications", err)
	}
	return count, nil
}

// MarkRead sets read_at on one notification owned by the actor.
func (n *Notifier) MarkRead(ctx context.Context, actor Actor, notificationID uuid.UUID) (*models.Notification, error) {
	var notification models.Notification
	if err := n.db.WithContext(ctx).First(&notification, "id = ?", notificationID).Error; err != nil {
		if isNotFound(err) {
			return nil, notFound("notification not found")
		}
		return nil, persistence("load notification", err)
	}
	if notification.UserID != actor.ID {
		return nil, forbidden("notification belongs to another user")
	}
	if notification.ReadAt != nil {
		return &notification, nil
	}

	now := n.now()
	if err := n.db.WithContext(ctx).Model(&notification).Update("read_at", now).Error; err != nil {
		return nil, persistence("mark notification read", err)
	}
	notification.ReadAt = &now
	return &notification, nil
}

// MarkAllRead sets read_at on every unread notification of userID.
func (n *Notifier) MarkAllRead(ctx context.Context, actor Actor, userID uuid.UUID) (int64, error) {
	if err := authorize(actor, ActionReadNotifications, OwnedBy(userID)); err != nil {
		return 0, err
	}
	res := n.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND read_at IS NULL", userID).
		Update("read_at", n.now())
	if res.Error != nil {
		return 0, persistence("mark notifications read", res.Error)
	}
	return res.RowsAffected, nil
}

func oneOf(value string, allowed ...string) bool {
	for _, a := range allowed {
		if value == a {
			return true
		}
	}
	return false
}
