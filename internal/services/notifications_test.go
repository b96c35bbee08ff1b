package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/comcin/internal/models"
)

func TestNotificationReference(t *testing.T) {
	now := time.Unix(1700000000, 0)
	ref, err := NotificationReference(now)
	require.NoError(t, err)
	assert.Regexp(t, `^[A-Z0-9]{10}-1700000000$`, ref)
}

func TestNotifyValidates(t *testing.T) {
	db := newTestDB(t)
	n := NewNotifier(db)
	user := createUser(t, db, models.RoleMember, "m@example.com")
	ctx := context.Background()

	got, err := n.Notify(ctx, NotificationInput{UserID: user.ID, Title: "Hi", Category: models.CategorySystem})
	require.NoError(t, err)
	assert.Equal(t, models.NotificationInfo, got.Type)
	assert.Nil(t, got.ReadAt)

	_, err = n.Notify(ctx, NotificationInput{UserID: user.ID, Title: "Hi", Type: "loud", Category: models.CategorySystem})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = n.Notify(ctx, NotificationInput{UserID: user.ID, Title: "Hi", Category: "misc"})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = n.Notify(ctx, NotificationInput{Title: "Hi", Category: models.CategorySystem})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestDispatchIsBestEffort(t *testing.T) {
	db := newTestDB(t)
	n := NewNotifier(db)
	user := createUser(t, db, models.RoleMember, "m@example.com")

	sent := n.Dispatch(context.Background(),
		NotificationInput{UserID: user.ID, Title: "One", Category: models.CategoryUser},
		NotificationInput{UserID: user.ID, Title: "Broken", Category: "bogus"},
		NotificationInput{UserID: user.ID, Title: "Two", Category: models.CategoryUser},
	)
	assert.Equal(t, 2, sent)
	assert.Len(t, notificationsFor(t, db, user.ID), 2)
}

func TestToAdminsSkipsInactiveAdmins(t *testing.T) {
	db := newTestDB(t)
	n := NewNotifier(db)
	active := createUser(t, db, models.RoleAdmin, "a1@example.com")
	inactive := createUser(t, db, models.RoleAdmin, "a2@example.com")
	require.NoError(t, db.Model(&inactive).Update("is_active", false).Error)
	createUser(t, db, models.RoleMember, "m@example.com")

	out := n.ToAdmins(context.Background(), NotificationInput{Title: "Alert", Category: models.CategorySystem})
	require.Len(t, out, 1)
	assert.Equal(t, active.ID, out[0].UserID)
	assert.Equal(t, "Alert", out[0].Title)
}

func TestMarkRead(t *testing.T) {
	db := newTestDB(t)
	n := NewNotifier(db)
	ctx := context.Background()
	owner := createUser(t, db, models.RoleMember, "owner@example.com")
	other := createUser(t, db, models.RoleMember, "other@example.com")
	admin := createUser(t, db, models.RoleAdmin, "admin@example.com")

	first, err := n.Notify(ctx, NotificationInput{UserID: owner.ID, Title: "1", Category: models.CategoryUser})
	require.NoError(t, err)
	_, err = n.Notify(ctx, NotificationInput{UserID: owner.ID, Title: "2", Category: models.CategoryUser})
	require.NoError(t, err)

	_, err = n.MarkRead(ctx, actorOf(other), first.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = n.MarkRead(ctx, actorOf(owner), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)

	read, err := n.MarkRead(ctx, actorOf(owner), first.ID)
	require.NoError(t, err)
	assert.NotNil(t, read.ReadAt)

	unread, err := n.UnreadCount(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), unread)

	_, err = n.MarkAllRead(ctx, actorOf(other), owner.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	affected, err := n.MarkAllRead(ctx, actorOf(admin), owner.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	unread, err = n.UnreadCount(ctx, owner.ID)
	require.NoError(t, err)
	assert.Zero(t, unread)

	list, err := n.List(ctx, owner.ID, 1)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
