package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/comcin/internal/models"
)

func TestComputeDefaultDue(t *testing.T) {
	assert.True(t, ComputeDefaultDue(models.CategoryUnit).Equal(decimal.NewFromInt(20000)))
	assert.True(t, ComputeDefaultDue(models.CategoryState).Equal(decimal.NewFromInt(50000)))
	assert.True(t, ComputeDefaultDue(models.CategoryFederal).Equal(decimal.NewFromInt(100000)))
	assert.True(t, ComputeDefaultDue("regional").IsZero())
}

func TestMinorToMajorAndFormat(t *testing.T) {
	assert.True(t, MinorToMajor(10000).Equal(decimal.NewFromInt(100)))
	assert.True(t, MinorToMajor(2000050).Equal(decimal.RequireFromString("20000.50")))

	assert.Equal(t, "NGN 20,000.00", FormatNaira(decimal.NewFromInt(20000)))
	assert.Equal(t, "NGN 1,234,567.89", FormatNaira(decimal.RequireFromString("1234567.891")))
	assert.Equal(t, "NGN 999.00", FormatNaira(decimal.NewFromInt(999)))
	assert.Equal(t, "NGN -1,000.00", FormatNaira(decimal.NewFromInt(-1000)))
}

func newPaymentFixture(t *testing.T) (*PaymentService, *fakeGateway, *memBlobs, models.User, models.User) {
	t.Helper()
	db := newTestDB(t)
	admin := createUser(t, db, models.RoleAdmin, "admin@example.com")
	member, _ := createMember(t, db, "member@example.com", models.CategoryUnit)
	gateway := newFakeGateway()
	blobs := newMemBlobs()
	return NewPaymentService(db, NewNotifier(db), gateway, blobs), gateway, blobs, admin, member
}

func TestRecordManualPaymentCreatesChargeAndTransaction(t *testing.T) {
	svc, _, blobs, admin, member := newPaymentFixture(t)
	ctx := context.Background()

	result, err := svc.RecordManualPayment(ctx, actorOf(member), ManualPaymentInput{
		MemberID: member.ID,
		Amount:   decimal.NewFromInt(20000),
		Receipt:  upload("receipt.pdf", "pdf"),
	})
	require.NoError(t, err)

	assert.True(t, result.ChargeCreated)
	assert.Equal(t, AnnualDuesTitle, result.Charge.Title)
	assert.Equal(t, models.ChargeUnpaid, result.Charge.Status)
	assert.Equal(t, models.TransactionPending, result.Transaction.Status)
	assert.Equal(t, models.MethodBankTransfer, result.Transaction.Method)
	assert.Equal(t, result.Charge.ID, result.Transaction.ChargeID)
	assert.Regexp(t, `^TXN-[0-9A-Z]{26}$`, result.Transaction.Reference)
	assert.Contains(t, blobs.files, result.Transaction.ReceiptPath)

	assert.Equal(t, int64(1), countRows(t, svc.db, &models.Charge{}, "member_id = ?", member.ID))
	assert.Equal(t, int64(1), countRows(t, svc.db, &models.Transaction{}, "member_id = ?", member.ID))

	var stored models.Charge
	require.NoError(t, svc.db.First(&stored, "id = ?", result.Charge.ID).Error)
	assert.Equal(t, models.ChargeUnpaid, stored.Status)

	assert.Len(t, notificationsFor(t, svc.db, member.ID), 1)
	assert.Len(t, notificationsFor(t, svc.db, admin.ID), 1)
}

func TestRecordManualPaymentReusesOutstandingCharge(t *testing.T) {
	svc, _, _, _, member := newPaymentFixture(t)
	ctx := context.Background()

	first, err := svc.RecordManualPayment(ctx, actorOf(member), ManualPaymentInput{
		MemberID: member.ID,
		Amount:   decimal.NewFromInt(5000),
		Receipt:  upload("a.png", "a"),
	})
	require.NoError(t, err)

	second, err := svc.RecordManualPayment(ctx, actorOf(member), ManualPaymentInput{
		MemberID: member.ID,
		Amount:   decimal.NewFromInt(5000),
		Receipt:  upload("b.png", "b"),
	})
	require.NoError(t, err)

	assert.False(t, second.ChargeCreated)
	assert.Equal(t, first.Charge.ID, second.Charge.ID)
	assert.NotEqual(t, first.Transaction.Reference, second.Transaction.Reference)
	assert.Equal(t, int64(1), countRows(t, svc.db, &models.Charge{}, "member_id = ?", member.ID))
	assert.Equal(t, int64(2), countRows(t, svc.db, &models.Transaction{}, "member_id = ?", member.ID))
}

func TestRecordManualPaymentAgainstExplicitCharge(t *testing.T) {
	svc, _, _, _, member := newPaymentFixture(t)
	ctx := context.Background()
	charge := createCharge(t, svc.db, member.ID, 7500, models.ChargeUnpaid)

	result, err := svc.RecordManualPayment(ctx, actorOf(member), ManualPaymentInput{
		MemberID: member.ID,
		Amount:   decimal.NewFromInt(7500),
		ChargeID: &charge.ID,
		Receipt:  upload("r.jpg", "r"),
	})
	require.NoError(t, err)
	assert.Equal(t, charge.ID, result.Charge.ID)
	assert.False(t, result.ChargeCreated)
}

func TestRecordManualPaymentRejectsOtherMembersCharge(t *testing.T) {
	svc, _, blobs, _, member := newPaymentFixture(t)
	ctx := context.Background()
	other, _ := createMember(t, svc.db, "other@example.com", models.CategoryState)
	charge := createCharge(t, svc.db, other.ID, 1000, models.ChargeUnpaid)

	_, err := svc.RecordManualPayment(ctx, actorOf(member), ManualPaymentInput{
		MemberID: member.ID,
		Amount:   decimal.NewFromInt(1000),
		ChargeID: &charge.ID,
		Receipt:  upload("r.jpg", "r"),
	})
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Equal(t, int64(0), countRows(t, svc.db, &models.Transaction{}, ""))
	assert.Len(t, blobs.deleted, 1)
	assert.Empty(t, blobs.files)
}

func TestRecordManualPaymentValidation(t *testing.T) {
	svc, _, _, admin, member := newPaymentFixture(t)
	ctx := context.Background()

	_, err := svc.RecordManualPayment(ctx, actorOf(member), ManualPaymentInput{
		MemberID: member.ID,
		Amount:   decimal.Zero,
		Receipt:  upload("r.jpg", "r"),
	})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.RecordManualPayment(ctx, actorOf(member), ManualPaymentInput{
		MemberID: member.ID,
		Amount:   decimal.NewFromInt(10),
	})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.RecordManualPayment(ctx, actorOf(admin), ManualPaymentInput{
		MemberID: member.ID,
		Amount:   decimal.NewFromInt(10),
		Receipt:  upload("r.jpg", "r"),
	})
	assert.ErrorIs(t, err, ErrForbidden)

	paid := createCharge(t, svc.db, member.ID, 10, models.ChargePaid)
	_, err = svc.RecordManualPayment(ctx, actorOf(member), ManualPaymentInput{
		MemberID: member.ID,
		Amount:   decimal.NewFromInt(10),
		ChargeID: &paid.ID,
		Receipt:  upload("r.jpg", "r"),
	})
	assert.ErrorIs(t, err, ErrValidation)

	missing := uuid.New()
	_, err = svc.RecordManualPayment(ctx, actorOf(member), ManualPaymentInput{
		MemberID: member.ID,
		Amount:   decimal.NewFromInt(10),
		ChargeID: &missing,
		Receipt:  upload("r.jpg", "r"),
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func successfulVerification(member models.User, charge models.Charge, minor int64) *GatewayVerification {
	return &GatewayVerification{
		Status:      "success",
		AmountMinor: minor,
		Metadata: GatewayMetadata{
			UserID:   member.ID.String(),
			ChargeID: charge.ID.String(),
		},
		GatewayResponse: json.RawMessage(`{"status":true}`),
	}
}

func TestVerifyGatewayPaymentRecordsOnce(t *testing.T) {
	svc, gateway, _, admin, member := newPaymentFixture(t)
	ctx := context.Background()
	charge := createCharge(t, svc.db, member.ID, 100, models.ChargeUnpaid)
	gateway.set("TXN001", successfulVerification(member, charge, 10000))

	result, err := svc.VerifyGatewayPayment(ctx, actorOf(member), "TXN001")
	require.NoError(t, err)
	assert.Equal(t, "TXN001", result.Transaction.Reference)
	assert.True(t, result.Transaction.Amount.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, models.TransactionSuccessful, result.Transaction.Status)
	assert.Equal(t, models.MethodPaystack, result.Transaction.Method)
	assert.Equal(t, models.ChargePaid, result.Charge.Status)

	var stored models.Charge
	require.NoError(t, svc.db.First(&stored, "id = ?", charge.ID).Error)
	assert.Equal(t, models.ChargePaid, stored.Status)
	assert.NotNil(t, stored.PaidAt)

	_, err = svc.VerifyGatewayPayment(ctx, actorOf(member), "TXN001")
	assert.ErrorIs(t, err, ErrDuplicateTransaction)
	assert.Equal(t, int64(1), countRows(t, svc.db, &models.Transaction{}, "reference = ?", "TXN001"))

	assert.Len(t, notificationsFor(t, svc.db, member.ID), 1)
	assert.Len(t, notificationsFor(t, svc.db, admin.ID), 1)
}

func TestVerifyGatewayPaymentFailures(t *testing.T) {
	svc, gateway, _, _, member := newPaymentFixture(t)
	ctx := context.Background()
	charge := createCharge(t, svc.db, member.ID, 100, models.ChargeUnpaid)
	other, _ := createMember(t, svc.db, "other@example.com", models.CategoryUnit)
	otherCharge := createCharge(t, svc.db, other.ID, 100, models.ChargeUnpaid)

	failed := successfulVerification(member, charge, 10000)
	failed.Status = "abandoned"
	gateway.set("FAILED", failed)

	noMeta := successfulVerification(member, charge, 10000)
	noMeta.Metadata = GatewayMetadata{}
	gateway.set("NOMETA", noMeta)

	badID := successfulVerification(member, charge, 10000)
	badID.Metadata.ChargeID = "not-a-uuid"
	gateway.set("BADID", badID)

	foreign := successfulVerification(other, otherCharge, 10000)
	gateway.set("FOREIGN", foreign)

	mismatched := successfulVerification(member, otherCharge, 10000)
	gateway.set("MISMATCH", mismatched)

	tests := []struct {
		reference string
		want      error
	}{
		{"FAILED", ErrPaymentNotSuccessful},
		{"UNKNOWN", ErrPaymentNotSuccessful},
		{"NOMETA", ErrInvalidMetadata},
		{"BADID", ErrInvalidMetadata},
		{"FOREIGN", ErrForbidden},
		{"MISMATCH", ErrForbidden},
		{"  ", ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.reference, func(t *testing.T) {
			_, err := svc.VerifyGatewayPayment(ctx, actorOf(member), tt.reference)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	assert.Equal(t, int64(0), countRows(t, svc.db, &models.Transaction{}, ""))
	var stored models.Charge
	require.NoError(t, svc.db.First(&stored, "id = ?", charge.ID).Error)
	assert.Equal(t, models.ChargeUnpaid, stored.Status)
}

func TestVerifyGatewayPaymentByAdmin(t *testing.T) {
	svc, gateway, _, admin, member := newPaymentFixture(t)
	charge := createCharge(t, svc.db, member.ID, 50000, models.ChargeUnpaid)
	gateway.set("ADM1", successfulVerification(member, charge, 5000000))

	result, err := svc.VerifyGatewayPayment(context.Background(), actorOf(admin), "ADM1")
	require.NoError(t, err)
	assert.Equal(t, member.ID, result.Transaction.MemberID)
	assert.Equal(t, admin.ID, *result.Transaction.RecordedBy)
}

func TestVerifyGatewayPaymentPartialLeavesChargeOpen(t *testing.T) {
	svc, gateway, _, _, member := newPaymentFixture(t)
	ctx := context.Background()
	charge := createCharge(t, svc.db, member.ID, 20000, models.ChargeUnpaid)
	gateway.set("PART1", successfulVerification(member, charge, 100))
	gateway.set("PART2", successfulVerification(member, charge, 1999900))

	result, err := svc.VerifyGatewayPayment(ctx, actorOf(member), "PART1")
	require.NoError(t, err)
	assert.True(t, result.Transaction.Amount.Equal(decimal.NewFromInt(1)))
	assert.Equal(t, models.TransactionSuccessful, result.Transaction.Status)
	assert.Equal(t, models.ChargeUnpaid, result.Charge.Status)

	var stored models.Charge
	require.NoError(t, svc.db.First(&stored, "id = ?", charge.ID).Error)
	assert.Equal(t, models.ChargeUnpaid, stored.Status)
	assert.Nil(t, stored.PaidAt)

	result, err = svc.VerifyGatewayPayment(ctx, actorOf(member), "PART2")
	require.NoError(t, err)
	assert.Equal(t, models.ChargePaid, result.Charge.Status)

	require.NoError(t, svc.db.First(&stored, "id = ?", charge.ID).Error)
	assert.Equal(t, models.ChargePaid, stored.Status)
	assert.NotNil(t, stored.PaidAt)
}

func TestReviewTransactionPartialLeavesChargeOpen(t *testing.T) {
	svc, _, _, admin, member := newPaymentFixture(t)
	ctx := context.Background()
	charge := createCharge(t, svc.db, member.ID, 20000, models.ChargeUnpaid)

	submit := func(amount int64) *PaymentResult {
		result, err := svc.RecordManualPayment(ctx, actorOf(member), ManualPaymentInput{
			MemberID: member.ID,
			Amount:   decimal.NewFromInt(amount),
			ChargeID: &charge.ID,
			Receipt:  upload("r.pdf", "r"),
		})
		require.NoError(t, err)
		return result
	}

	first := submit(5000)
	txn, err := svc.ReviewTransaction(ctx, actorOf(admin), first.Transaction.ID, ReviewApprove, "")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionSuccessful, txn.Status)
	assert.Equal(t, models.ChargeUnpaid, txn.Charge.Status)

	second := submit(15000)
	txn, err = svc.ReviewTransaction(ctx, actorOf(admin), second.Transaction.ID, ReviewApprove, "")
	require.NoError(t, err)
	assert.Equal(t, models.ChargePaid, txn.Charge.Status)
}

func TestReviewTransaction(t *testing.T) {
	svc, _, _, admin, member := newPaymentFixture(t)
	ctx := context.Background()

	submit := func() *PaymentResult {
		result, err := svc.RecordManualPayment(ctx, actorOf(member), ManualPaymentInput{
			MemberID: member.ID,
			Amount:   decimal.NewFromInt(20000),
			Receipt:  upload("r.pdf", "r"),
		})
		require.NoError(t, err)
		return result
	}

	t.Run("reject leaves charge unpaid", func(t *testing.T) {
		pending := submit()
		txn, err := svc.ReviewTransaction(ctx, actorOf(admin), pending.Transaction.ID, ReviewReject, "unreadable receipt")
		require.NoError(t, err)
		assert.Equal(t, models.TransactionFailed, txn.Status)
		assert.Equal(t, models.ChargeUnpaid, txn.Charge.Status)

		_, err = svc.ReviewTransaction(ctx, actorOf(admin), pending.Transaction.ID, ReviewApprove, "")
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("approve marks charge paid", func(t *testing.T) {
		pending := submit()
		txn, err := svc.ReviewTransaction(ctx, actorOf(admin), pending.Transaction.ID, ReviewApprove, "")
		require.NoError(t, err)
		assert.Equal(t, models.TransactionSuccessful, txn.Status)
		assert.Equal(t, admin.ID, *txn.ReviewedBy)

		var charge models.Charge
		require.NoError(t, svc.db.First(&charge, "id = ?", pending.Charge.ID).Error)
		assert.Equal(t, models.ChargePaid, charge.Status)

		_, err = svc.ReviewTransaction(ctx, actorOf(admin), pending.Transaction.ID, ReviewReject, "")
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("only admins review", func(t *testing.T) {
		pending := submit()
		_, err := svc.ReviewTransaction(ctx, actorOf(member), pending.Transaction.ID, ReviewApprove, "")
		assert.ErrorIs(t, err, ErrForbidden)

		_, err = svc.ReviewTransaction(ctx, actorOf(admin), pending.Transaction.ID, "maybe", "")
		assert.ErrorIs(t, err, ErrValidation)

		_, err = svc.ReviewTransaction(ctx, actorOf(admin), uuid.New(), ReviewApprove, "")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestCreateCharge(t *testing.T) {
	svc, _, _, admin, member := newPaymentFixture(t)
	ctx := context.Background()

	charge, err := svc.CreateCharge(ctx, actorOf(admin), ChargeInput{
		MemberID: member.ID,
		Title:    "Late filing",
		Type:     models.ChargeFine,
		Amount:   decimal.NewFromInt(2500),
	})
	require.NoError(t, err)
	assert.Equal(t, models.ChargeUnpaid, charge.Status)

	notes := notificationsFor(t, svc.db, member.ID)
	require.Len(t, notes, 1)
	assert.Equal(t, "New Fine", notes[0].Title)
	assert.Equal(t, models.NotificationWarning, notes[0].Type)

	_, err = svc.CreateCharge(ctx, actorOf(admin), ChargeInput{MemberID: member.ID, Title: "x", Type: "tax", Amount: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.CreateCharge(ctx, actorOf(admin), ChargeInput{MemberID: admin.ID, Title: "x", Type: models.ChargeDue, Amount: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.CreateCharge(ctx, actorOf(member), ChargeInput{MemberID: member.ID, Title: "x", Type: models.ChargeDue, Amount: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, ErrForbidden)
}
