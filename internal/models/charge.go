package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	ChargeDue  = "due"
	ChargeLevy = "levy"
	ChargeFine = "fine"
)

const (
	ChargeUnpaid  = "unpaid"
	ChargePending = "pending"
	ChargePaid    = "paid"
)

// Charge is a billable obligation against a member.
type Charge struct {
	BaseModel
	MemberID     uuid.UUID       `gorm:"type:uuid;index;not null" json:"member_id"`
	Member       *User           `json:"member,omitempty"`
	Title        string          `gorm:"not null" json:"title"`
	Description  string          `json:"description"`
	Type         string          `gorm:"index;not null" json:"type"`
	Amount       decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"amount"`
	Status       string          `gorm:"index;not null" json:"status"`
	DueDate      *time.Time      `json:"due_date"`
	PaidAt       *time.Time      `json:"paid_at"`
	CreatedBy    *uuid.UUID      `gorm:"type:uuid" json:"created_by"`
	Transactions []Transaction   `json:"transactions,omitempty"`
}

// CanTransition reports whether the charge may move to the given status.
func (c *Charge) CanTransition(to string) bool {
	switch c.Status {
	case ChargeUnpaid:
		return to == ChargePending || to == ChargePaid
	case ChargePending:
		return to == ChargePaid || to == ChargeUnpaid
	}
	return false
}

const (
	TransactionPending    = "pending"
	TransactionSuccessful = "successful"
	TransactionFailed     = "failed"
	TransactionRefunded   = "refunded"
)

const (
	MethodCash         = "cash"
	MethodBankTransfer = "bank_transfer"
	MethodPaystack     = "paystack"
	MethodWallet       = "wallet"
	MethodManual       = "manual"
)

// Transaction is a single payment attempt against a charge.
type Transaction struct {
	BaseModel
	ChargeID        uuid.UUID       `gorm:"type:uuid;index;not null" json:"charge_id"`
	Charge          *Charge         `json:"charge,omitempty"`
	MemberID        uuid.UUID       `gorm:"type:uuid;index;not null" json:"member_id"`
	Member          *User           `json:"member,omitempty"`
	PaymentMethodID *uuid.UUID      `gorm:"type:uuid" json:"payment_method_id"`
	Reference       string          `gorm:"uniqueIndex;not null" json:"reference"`
	Amount          decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"amount"`
	Status          string          `gorm:"index;not null" json:"status"`
	Method          string          `gorm:"not null" json:"method"`
	RecordedBy      *uuid.UUID      `gorm:"type:uuid" json:"recorded_by"`
	ReceiptPath     string          `json:"receipt_path"`
	GatewayResponse datatypes.JSON  `json:"gateway_response,omitempty"`
	ReviewedBy      *uuid.UUID      `gorm:"type:uuid" json:"reviewed_by"`
	ReviewedAt      *time.Time      `json:"reviewed_at"`
	Note            string          `json:"note"`
}

// IsTerminal reports whether the transaction can no longer change.
func (t *Transaction) IsTerminal() bool {
	switch t.Status {
	case TransactionSuccessful, TransactionFailed, TransactionRefunded:
		return true
	}
	return false
}
