package handlers

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/comcin/internal/models"
	"github.com/example/comcin/internal/services"
	"github.com/example/comcin/internal/utils"
)

// PaymentHandler exposes charge and transaction endpoints.
type PaymentHandler struct {
	db       *gorm.DB
	payments *services.PaymentService
}

// NewPaymentHandler constructs a PaymentHandler.
func NewPaymentHandler(db *gorm.DB, payments *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{db: db, payments: payments}
}

// PaymentOptions lists active payment methods and the member's outstanding charges.
func (h *PaymentHandler) PaymentOptions(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	var methods []models.PaymentMethod
	if err := h.db.Where("is_active = ?", true).Order("name asc").Find(&methods).Error; err != nil {
		return err
	}

	type methodResponse struct {
		models.PaymentMethod
		PublicKey string `json:"public_key"`
	}
	out := make([]methodResponse, len(methods))
	for i, m := range methods {
		out[i] = methodResponse{PaymentMethod: m, PublicKey: m.PublicKey()}
	}

	var charges []models.Charge
	if err := h.db.Where("member_id = ? AND status IN ?", actor.ID, []string{models.ChargeUnpaid, models.ChargePending}).
		Order("due_date asc").
		Find(&charges).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"payment_methods": out,
			"charges":         charges,
		},
	})
}

// ManualPayment records a bank transfer with an uploaded receipt.
func (h *PaymentHandler) ManualPayment(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	amount, err := parseAmount(c.FormValue("amount"))
	if err != nil {
		return err
	}
	chargeID, err := optionalUUID(c.FormValue("charge_id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid charge_id")
	}
	methodID, err := optionalUUID(c.FormValue("payment_method_id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid payment_method_id")
	}

	receipt, closeFn, err := formUpload(c, "receipt")
	if err != nil {
		return err
	}
	defer closeFn()

	result, err := h.payments.RecordManualPayment(c.UserContext(), actor, services.ManualPaymentInput{
		MemberID:        actor.ID,
		Amount:          amount,
		ChargeID:        chargeID,
		PaymentMethodID: methodID,
		Receipt:         receipt,
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "Payment submitted successfully and is awaiting confirmation.",
		"data":    result,
	})
}

type verifyPaymentRequest struct {
	Reference string `json:"reference"`
}

// VerifyPaystack confirms a Paystack reference.
func (h *PaymentHandler) VerifyPaystack(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	var req verifyPaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.payments.VerifyGatewayPayment(c.UserContext(), actor, req.Reference)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Payment verified successfully.",
		"data":    result,
	})
}

type chargeRequest struct {
	MemberID    string      `json:"member_id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Type        string      `json:"type"`
	Amount      json.Number `json:"amount"`
	DueDate     string      `json:"due_date"`
}

// CreateCharge bills a member.
func (h *PaymentHandler) CreateCharge(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	var req chargeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	memberID, err := optionalUUID(req.MemberID)
	if err != nil || memberID == nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid member_id")
	}
	amount, err := parseAmount(req.Amount.String())
	if err != nil {
		return err
	}
	dueDate, err := parseDate(req.DueDate)
	if err != nil {
		return err
	}

	charge, err := h.payments.CreateCharge(c.UserContext(), actor, services.ChargeInput{
		MemberID:    *memberID,
		Title:       req.Title,
		Description: req.Description,
		Type:        req.Type,
		Amount:      amount,
		DueDate:     dueDate,
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    charge,
	})
}

// ListTransactions returns transactions with optional status and method filters.
func (h *PaymentHandler) ListTransactions(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.Transaction{})

	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if method := c.Query("method"); method != "" {
		query = query.Where("method = ?", method)
	}
	if reference := c.Query("reference"); reference != "" {
		query = query.Where("reference = ?", reference)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var transactions []models.Transaction
	if err := query.Preload("Charge").Preload("Member").
		Order("created_at desc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&transactions).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"data":       transactions,
		"pagination": pg.Meta(total),
	})
}

type reviewRequest struct {
	Action string `json:"action"`
	Note   string `json:"note"`
}

// ReviewTransaction approves or rejects a pending transaction.
func (h *PaymentHandler) ReviewTransaction(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}

	var req reviewRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	txn, err := h.payments.ReviewTransaction(c.UserContext(), actor, id, req.Action, req.Note)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    txn,
	})
}
