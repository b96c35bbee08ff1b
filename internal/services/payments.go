package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/comcin/internal/metrics"
	"github.com/example/comcin/internal/models"
	"github.com/example/comcin/internal/utils"
)

const (
	AnnualDuesTitle       = "Annual Dues"
	AnnualDuesDescription = "Annual Registration Due"

	ReviewApprove = "approve"
	ReviewReject  = "reject"
)

// ComputeDefaultDue returns the first annual due for an institution category.
func ComputeDefaultDue(category string) decimal.Decimal {
	switch category {
	case models.CategoryUnit:
		return decimal.NewFromInt(20000)
	case models.CategoryState:
		return decimal.NewFromInt(50000)
	case models.CategoryFederal:
		return decimal.NewFromInt(100000)
	}
	return decimal.Zero
}

// MinorToMajor converts gateway minor units (kobo) to naira.
func MinorToMajor(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}

// FormatNaira renders an amount with thousand separators, e.g. NGN 20,000.00.
func FormatNaira(amount decimal.Decimal) string {
	p := message.NewPrinter(language.English)
	return "NGN " + p.Sprintf("%.2f", amount.Round(2).InexactFloat64())
}

// PaymentService records charges and payments against members.
type PaymentService struct {
	db       *gorm.DB
	notifier *Notifier
	gateway  PaymentGateway
	blobs    BlobStore
	now      func() time.Time
}

// NewPaymentService creates a PaymentService.
func NewPaymentService(db *gorm.DB, notifier *Notifier, gateway PaymentGateway, blobs BlobStore) *PaymentService {
	return &PaymentService{db: db, notifier: notifier, gateway: gateway, blobs: blobs, now: time.Now}
}

// PaymentResult is the outcome of recording a payment.
type PaymentResult struct {
	Transaction   *models.Transaction `json:"transaction"`
	Charge        *models.Charge      `json:"charge"`
	ChargeCreated bool                `json:"charge_created"`
}

// ManualPaymentInput is a member-submitted bank transfer with receipt.
type ManualPaymentInput struct {
	MemberID        uuid.UUID
	Amount          decimal.Decimal
	ChargeID        *uuid.UUID
	PaymentMethodID *uuid.UUID
	Receipt         *Upload
}

type manualRecord struct {
	MemberID        uuid.UUID
	Amount          decimal.Decimal
	ChargeID        *uuid.UUID
	PaymentMethodID *uuid.UUID
	ReceiptPath     string
	RecordedBy      uuid.UUID
	Description     string
	Now             time.Time
}

// RecordManualPayment stores the receipt, finds or creates the charge and
// inserts a pending bank transfer transaction in one database transaction.
func (s *PaymentService) RecordManualPayment(ctx context.Context, actor Actor, in ManualPaymentInput) (*PaymentResult, error) {
	if err := authorize(actor, ActionRecordPayment, OwnedBy(in.MemberID)); err != nil {
		return nil, err
	}
	if !in.Amount.IsPositive() {
		return nil, invalid("amount must be greater than zero")
	}
	if in.Receipt == nil || in.Receipt.Body == nil {
		return nil, invalid("payment receipt is required")
	}

	receiptPath, err := s.storeReceipt(in.MemberID, in.Receipt)
	if err != nil {
		return nil, err
	}

	var result *PaymentResult
	var member models.User
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&member, "id = ?", in.MemberID).Error; err != nil {
			if isNotFound(err) {
				return notFound("member not found")
			}
			return err
		}

		var err error
		result, err = recordManual(tx, manualRecord{
			MemberID:        in.MemberID,
			Amount:          in.Amount,
			ChargeID:        in.ChargeID,
			PaymentMethodID: in.PaymentMethodID,
			ReceiptPath:     receiptPath,
			RecordedBy:      actor.ID,
			Description:     "Annual membership dues",
			Now:             s.now(),
		})
		return err
	})
	if err != nil {
		s.discardBlob(receiptPath)
		metrics.PaymentsRecorded.WithLabelValues(models.MethodBankTransfer, "rejected").Inc()
		return nil, persistence("record manual payment", err)
	}

	metrics.PaymentsRecorded.WithLabelValues(models.MethodBankTransfer, models.TransactionPending).Inc()

	amount := FormatNaira(result.Transaction.Amount)
	notifications := []NotificationInput{{
		UserID:    member.ID,
		Title:     "Payment Submitted",
		Content:   fmt.Sprintf("Your payment of %s for %s has been submitted and is awaiting confirmation.", amount, result.Charge.Title),
		Type:      models.NotificationInfo,
		Category:  models.CategoryTransaction,
		CreatedBy: &actor.ID,
	}}
	notifications = append(notifications, s.notifier.ToAdmins(ctx, NotificationInput{
		Title:     "New Payment Submitted",
		Content:   fmt.Sprintf("%s submitted a bank transfer of %s (ref %s).", member.Name, amount, result.Transaction.Reference),
		Type:      models.NotificationInfo,
		Category:  models.CategoryTransaction,
		CreatedBy: &actor.ID,
	})...)
	s.notifier.Dispatch(ctx, notifications...)

	return result, nil
}

// recordManual runs inside an open transaction. Without a charge id it reuses
// the member's oldest outstanding charge or creates an Annual Dues charge.
func recordManual(tx *gorm.DB, rec manualRecord) (*PaymentResult, error) {
	result := &PaymentResult{}
	var charge models.Charge

	if rec.ChargeID != nil {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&charge, "id = ?", *rec.ChargeID).Error; err != nil {
			if isNotFound(err) {
				return nil, notFound("charge not found")
			}
			return nil, err
		}
		if charge.MemberID != rec.MemberID {
			return nil, forbidden("charge does not belong to this member")
		}
		if charge.Status == models.ChargePaid {
			return nil, invalid("charge is already paid")
		}
	} else {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("member_id = ? AND status IN ?", rec.MemberID, []string{models.ChargeUnpaid, models.ChargePending}).
			Order("created_at asc").
			First(&charge).Error
		switch {
		case err == nil:
		case isNotFound(err):
			dueDate := rec.Now
			charge = models.Charge{
				MemberID:    rec.MemberID,
				Title:       AnnualDuesTitle,
				Description: rec.Description,
				Type:        models.ChargeDue,
				Amount:      rec.Amount,
				Status:      models.ChargeUnpaid,
				DueDate:     &dueDate,
				CreatedBy:   &rec.RecordedBy,
			}
			if err := tx.Create(&charge).Error; err != nil {
				return nil, err
			}
			result.ChargeCreated = true
		default:
			return nil, err
		}
	}

	txn := models.Transaction{
		ChargeID:        charge.ID,
		MemberID:        rec.MemberID,
		PaymentMethodID: rec.PaymentMethodID,
		Reference:       utils.NewReference("TXN"),
		Amount:          rec.Amount,
		Status:          models.TransactionPending,
		Method:          models.MethodBankTransfer,
		RecordedBy:      &rec.RecordedBy,
		ReceiptPath:     rec.ReceiptPath,
	}
	if err := tx.Create(&txn).Error; err != nil {
		if IsUniqueViolation(err) {
			return nil, &Error{Kind: KindDuplicateTransaction, Message: "transaction reference already exists", Err: err}
		}
		return nil, err
	}

	result.Charge = &charge
	result.Transaction = &txn
	return result, nil
}

// VerifyGatewayPayment confirms a gateway reference and records a successful
// paystack transaction. The charge is settled in the same database transaction
// once its successful payments cover the amount.
func (s *PaymentService) VerifyGatewayPayment(ctx context.Context, actor Actor, reference string) (*PaymentResult, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, invalid("reference is required")
	}
	if s.gateway == nil {
		return nil, newError(KindPaymentNotSuccessful, "payment gateway is not configured")
	}

	verification, err := s.gateway.Verify(ctx, reference)
	if err != nil {
		return nil, &Error{Kind: KindPaymentNotSuccessful, Message: "could not verify payment", Err: err}
	}
	if !strings.EqualFold(verification.Status, "success") {
		metrics.PaymentsRecorded.WithLabelValues(models.MethodPaystack, "not_successful").Inc()
		return nil, newError(KindPaymentNotSuccessful, "payment was not successful (status %q)", verification.Status)
	}

	meta := verification.Metadata
	if meta.UserID == "" || meta.ChargeID == "" {
		return nil, newError(KindInvalidMetadata, "payment metadata is missing user_id or charge_id")
	}
	memberID, err := uuid.Parse(meta.UserID)
	if err != nil {
		return nil, newError(KindInvalidMetadata, "payment metadata has an invalid user_id")
	}
	chargeID, err := uuid.Parse(meta.ChargeID)
	if err != nil {
		return nil, newError(KindInvalidMetadata, "payment metadata has an invalid charge_id")
	}
	var paymentMethodID *uuid.UUID
	if meta.PaymentMethodID != "" {
		id, err := uuid.Parse(meta.PaymentMethodID)
		if err != nil {
			return nil, newError(KindInvalidMetadata, "payment metadata has an invalid payment_method_id")
		}
		paymentMethodID = &id
	}

	if err := authorize(actor, ActionVerifyPayment, OwnedBy(memberID)); err != nil {
		return nil, err
	}
	if verification.AmountMinor <= 0 {
		return nil, invalid("gateway reported a non-positive amount")
	}

	result := &PaymentResult{}
	var member models.User
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&models.Transaction{}).Where("reference = ?", reference).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return newError(KindDuplicateTransaction, "transaction %s has already been recorded", reference)
		}

		if err := tx.First(&member, "id = ?", memberID).Error; err != nil {
			if isNotFound(err) {
				return notFound("member not found")
			}
			return err
		}

		var charge models.Charge
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&charge, "id = ?", chargeID).Error; err != nil {
			if isNotFound(err) {
				return notFound("charge not found")
			}
			return err
		}
		if charge.MemberID != memberID {
			return forbidden("charge does not belong to this member")
		}

		now := s.now()
		txn := models.Transaction{
			ChargeID:        charge.ID,
			MemberID:        memberID,
			PaymentMethodID: paymentMethodID,
			Reference:       reference,
			Amount:          MinorToMajor(verification.AmountMinor),
			Status:          models.TransactionSuccessful,
			Method:          models.MethodPaystack,
			RecordedBy:      &actor.ID,
			GatewayResponse: datatypes.JSON(verification.GatewayResponse),
		}
		if err := tx.Create(&txn).Error; err != nil {
			if IsUniqueViolation(err) {
				return &Error{Kind: KindDuplicateTransaction, Message: fmt.Sprintf("transaction %s has already been recorded", reference), Err: err}
			}
			return err
		}

		if err := settleCharge(tx, &charge, now); err != nil {
			return err
		}

		result.Transaction = &txn
		result.Charge = &charge
		return nil
	})
	if err != nil {
		if KindOf(err) == KindDuplicateTransaction {
			metrics.PaymentsRecorded.WithLabelValues(models.MethodPaystack, "duplicate").Inc()
		}
		return nil, persistence("record gateway payment", err)
	}

	metrics.PaymentsRecorded.WithLabelValues(models.MethodPaystack, models.TransactionSuccessful).Inc()

	amount := FormatNaira(result.Transaction.Amount)
	notifications := []NotificationInput{{
		UserID:    member.ID,
		Title:     "Payment Successful",
		Content:   fmt.Sprintf("Your payment of %s for %s was successful.", amount, result.Charge.Title),
		Type:      models.NotificationInfo,
		Category:  models.CategoryTransaction,
		CreatedBy: &actor.ID,
	}}
	notifications = append(notifications, s.notifier.ToAdmins(ctx, NotificationInput{
		Title:     "Payment Received",
		Content:   fmt.Sprintf("%s paid %s via Paystack (ref %s).", member.Name, amount, reference),
		Type:      models.NotificationInfo,
		Category:  models.CategoryTransaction,
		CreatedBy: &actor.ID,
	})...)
	s.notifier.Dispatch(ctx, notifications...)

	return result, nil
}

// ReviewTransaction lets an admin confirm or reject a pending transaction.
// Approval settles the charge when it is fully covered. Terminal transactions are never changed.
func (s *PaymentService) ReviewTransaction(ctx context.Context, actor Actor, transactionID uuid.UUID, decision, note string) (*models.Transaction, error) {
	if err := authorize(actor, ActionReviewTransaction, Resource{}); err != nil {
		return nil, err
	}

	var status string
	switch decision {
	case ReviewApprove:
		status = models.TransactionSuccessful
	case ReviewReject:
		status = models.TransactionFailed
	default:
		return nil, invalid("invalid decision %q: must be approve or reject", decision)
	}

	var txn models.Transaction
	var charge models.Charge
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&txn, "id = ?", transactionID).Error; err != nil {
			if isNotFound(err) {
				return notFound("transaction not found")
			}
			return err
		}
		if txn.IsTerminal() {
			return invalid("transaction is already %s", txn.Status)
		}

		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&charge, "id = ?", txn.ChargeID).Error; err != nil {
			if isNotFound(err) {
				return notFound("charge not found")
			}
			return err
		}

		now := s.now()
		if err := tx.Model(&txn).Updates(map[string]interface{}{
			"status":      status,
			"reviewed_by": actor.ID,
			"reviewed_at": now,
			"note":        note,
		}).Error; err != nil {
			return err
		}
		txn.Status = status
		txn.ReviewedBy = &actor.ID
		txn.ReviewedAt = &now
		txn.Note = note

		if status == models.TransactionSuccessful {
			return settleCharge(tx, &charge, now)
		}
		return nil
	})
	if err != nil {
		return nil, persistence("review transaction", err)
	}
	txn.Charge = &charge

	title, content := "Payment Confirmed", fmt.Sprintf("Your payment of %s for %s has been confirmed.", FormatNaira(txn.Amount), charge.Title)
	if status == models.TransactionFailed {
		title, content = "Payment Rejected", fmt.Sprintf("Your payment of %s for %s was rejected.", FormatNaira(txn.Amount), charge.Title)
		if note != "" {
			content += " Reason: " + note
		}
	}
	s.notifier.Dispatch(ctx,
		NotificationInput{
			UserID:    txn.MemberID,
			Title:     title,
			Content:   content,
			Type:      models.NotificationInfo,
			Category:  models.CategoryTransaction,
			CreatedBy: &actor.ID,
		},
		NotificationInput{
			UserID:    actor.ID,
			Title:     title,
			Content:   fmt.Sprintf("You marked transaction %s as %s.", txn.Reference, status),
			Type:      models.NotificationInfo,
			Category:  models.CategoryTransaction,
			CreatedBy: &actor.ID,
		},
	)

	return &txn, nil
}

// ChargeInput describes an admin-issued charge.
type ChargeInput struct {
	MemberID    uuid.UUID
	Title       string
	Description string
	Type        string
	Amount      decimal.Decimal
	DueDate     *time.Time
}

// CreateCharge bills a member with a due, levy or fine.
func (s *PaymentService) CreateCharge(ctx context.Context, actor Actor, in ChargeInput) (*models.Charge, error) {
	if err := authorize(actor, ActionCreateCharge, Resource{}); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, invalid("title is required")
	}
	if !oneOf(in.Type, models.ChargeDue, models.ChargeLevy, models.ChargeFine) {
		return nil, invalid("invalid charge type %q", in.Type)
	}
	if in.Amount.IsNegative() {
		return nil, invalid("amount must not be negative")
	}

	var member models.User
	if err := s.db.WithContext(ctx).First(&member, "id = ? AND role = ?", in.MemberID, models.RoleMember).Error; err != nil {
		if isNotFound(err) {
			return nil, notFound("member not found")
		}
		return nil, persistence("load member", err)
	}

	charge := models.Charge{
		MemberID:    member.ID,
		Title:       in.Title,
		Description: in.Description,
		Type:        in.Type,
		Amount:      in.Amount,
		Status:      models.ChargeUnpaid,
		DueDate:     in.DueDate,
		CreatedBy:   &actor.ID,
	}
	if err := s.db.WithContext(ctx).Create(&charge).Error; err != nil {
		return nil, persistence("create charge", err)
	}

	s.notifier.Dispatch(ctx, NotificationInput{
		UserID:    member.ID,
		Title:     "New " + strings.ToUpper(in.Type[:1]) + in.Type[1:],
		Content:   fmt.Sprintf("A %s of %s (%s) has been added to your account.", in.Type, FormatNaira(in.Amount), in.Title),
		Type:      models.NotificationWarning,
		Category:  models.CategoryTransaction,
		CreatedBy: &actor.ID,
	})
	return &charge, nil
}

// settleCharge marks the charge paid once the sum of its successful
// transactions reaches the charge amount. Partial payments leave it open.
func settleCharge(tx *gorm.DB, charge *models.Charge, now time.Time) error {
	if !charge.CanTransition(models.ChargePaid) {
		return nil
	}

	var successful []models.Transaction
	if err := tx.Select("amount").
		Where("charge_id = ? AND status = ?", charge.ID, models.TransactionSuccessful).
		Find(&successful).Error; err != nil {
		return err
	}
	covered := decimal.Zero
	for _, t := range successful {
		covered = covered.Add(t.Amount)
	}
	if covered.LessThan(charge.Amount) {
		return nil
	}

	if err := tx.Model(charge).Updates(map[string]interface{}{
		"status":  models.ChargePaid,
		"paid_at": now,
	}).Error; err != nil {
		return err
	}
	charge.Status = models.ChargePaid
	charge.PaidAt = &now
	return nil
}

func (s *PaymentService) storeReceipt(memberID uuid.UUID, receipt *Upload) (string, error) {
	if s.blobs == nil {
		return receipt.Filename, nil
	}
	stored, err := s.blobs.Save(memberID.String()+"/receipts", receipt.Filename, receipt.Body)
	if err != nil {
		return "", persistence("store receipt", err)
	}
	return stored, nil
}

func (s *PaymentService) discardBlob(stored string) {
	if s.blobs == nil || stored == "" {
		return
	}
	if err := s.blobs.Delete(stored); err != nil {
		log.Printf("[Payments] failed to remove orphaned receipt %s: %v", stored, err)
	}
}
