package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/comcin/internal/models"
)

func TestSupportTicketLifecycle(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	admin := createUser(t, db, models.RoleAdmin, "admin@example.com")
	member, _ := createMember(t, db, "member@example.com", models.CategoryUnit)
	blobs := newMemBlobs()
	svc := NewSupportService(db, NewNotifier(db), blobs)

	ticket, err := svc.Create(ctx, actorOf(member), TicketInput{
		Subject:    "Receipt not reflected",
		Message:    "I paid last week.",
		Attachment: upload("proof.png", "img"),
	})
	require.NoError(t, err)
	assert.Equal(t, models.TicketPending, ticket.Status)
	assert.Regexp(t, `^TCK-`, ticket.TicketNumber)
	assert.Contains(t, blobs.files, ticket.Attachment)
	assert.Len(t, notificationsFor(t, db, admin.ID), 1)

	_, err = svc.Review(ctx, actorOf(member), ticket.ID, ReviewApprove, "")
	assert.ErrorIs(t, err, ErrForbidden)

	reviewed, err := svc.Review(ctx, actorOf(admin), ticket.ID, ReviewApprove, "Payment confirmed.")
	require.NoError(t, err)
	assert.Equal(t, models.TicketApproved, reviewed.Status)
	assert.Equal(t, admin.ID, *reviewed.ResolvedBy)

	memberNotes := notificationsFor(t, db, member.ID)
	require.Len(t, memberNotes, 1)
	assert.Contains(t, memberNotes[0].Content, "Payment confirmed.")
	assert.Len(t, notificationsFor(t, db, admin.ID), 2)

	_, err = svc.Review(ctx, actorOf(admin), ticket.ID, ReviewReject, "")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.Review(ctx, actorOf(admin), uuid.New(), ReviewReject, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSupportCreateValidation(t *testing.T) {
	db := newTestDB(t)
	admin := createUser(t, db, models.RoleAdmin, "admin@example.com")
	member, _ := createMember(t, db, "member@example.com", models.CategoryUnit)
	svc := NewSupportService(db, NewNotifier(db), newMemBlobs())

	_, err := svc.Create(context.Background(), actorOf(member), TicketInput{Subject: " ", Message: "x"})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.Create(context.Background(), actorOf(admin), TicketInput{Subject: "s", Message: "x"})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestCertificateIssueAndPublish(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	admin := createUser(t, db, models.RoleAdmin, "admin@example.com")
	member, _ := createMember(t, db, "member@example.com", models.CategoryUnit)
	svc := NewCertificateService(db, NewNotifier(db), newMemBlobs())

	cert, err := svc.Issue(ctx, actorOf(admin), CertificateInput{
		MemberID: member.ID,
		Name:     "Membership 2026",
		File:     upload("cert.pdf", "pdf"),
	})
	require.NoError(t, err)
	assert.Equal(t, "membership", cert.Type)
	assert.Equal(t, models.CertificateProcessing, cert.Status)
	assert.Regexp(t, `^CERT-[A-Z0-9]{8}$`, cert.CertificateUID)
	assert.Empty(t, notificationsFor(t, db, member.ID))

	published, err := svc.Publish(ctx, actorOf(admin), cert.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CertificatePublished, published.Status)
	assert.Len(t, notificationsFor(t, db, member.ID), 1)

	_, err = svc.Publish(ctx, actorOf(admin), cert.ID)
	require.NoError(t, err)
	assert.Len(t, notificationsFor(t, db, member.ID), 1)

	_, err = svc.Issue(ctx, actorOf(member), CertificateInput{MemberID: member.ID, Name: "x"})
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.Issue(ctx, actorOf(admin), CertificateInput{MemberID: member.ID, Name: "x", Type: "diploma"})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.Issue(ctx, actorOf(admin), CertificateInput{MemberID: uuid.New(), Name: "x"})
	assert.ErrorIs(t, err, ErrNotFound)
}
