package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/comcin/internal/models"
	"github.com/example/comcin/internal/services"
)

// PaymentMethodHandler manages payment method configuration.
type PaymentMethodHandler struct {
	db    *gorm.DB
	blobs services.BlobStore
}

// NewPaymentMethodHandler constructs a PaymentMethodHandler.
func NewPaymentMethodHandler(db *gorm.DB, blobs services.BlobStore) *PaymentMethodHandler {
	return &PaymentMethodHandler{db: db, blobs: blobs}
}

type paymentMethodRequest struct {
	Name          string `json:"name" form:"name"`
	Slug          string `json:"slug" form:"slug"`
	Mode          string `json:"mode" form:"mode"`
	TestPublicKey string `json:"test_public_key" form:"test_public_key"`
	TestSecretKey string `json:"test_secret_key" form:"test_secret_key"`
	LivePublicKey string `json:"live_public_key" form:"live_public_key"`
	LiveSecretKey string `json:"live_secret_key" form:"live_secret_key"`
	AccountName   string `json:"account_name" form:"account_name"`
	AccountNumber string `json:"account_number" form:"account_number"`
	BankName      string `json:"bank_name" form:"bank_name"`
	Currency      string `json:"currency" form:"currency"`
	IsActive      *bool  `json:"is_active" form:"is_active"`
}

func (r *paymentMethodRequest) apply(m *models.PaymentMethod) error {
	if r.Name != "" {
		m.Name = r.Name
	}
	if r.Slug != "" {
		m.Slug = strings.ToLower(strings.TrimSpace(r.Slug))
	}
	if r.Mode != "" {
		if r.Mode != models.ModeTest && r.Mode != models.ModeLive {
			return fiber.NewError(fiber.StatusUnprocessableEntity, "mode must be test or live")
		}
		m.Mode = r.Mode
	}
	if r.TestPublicKey != "" {
		m.TestPublicKey = r.TestPublicKey
	}
	if r.TestSecretKey != "" {
		m.TestSecretKey = r.TestSecretKey
	}
	if r.LivePublicKey != "" {
		m.LivePublicKey = r.LivePublicKey
	}
	if r.LiveSecretKey != "" {
		m.LiveSecretKey = r.LiveSecretKey
	}
	if r.AccountName != "" {
		m.AccountName = r.AccountName
	}
	if r.AccountNumber != "" {
		m.AccountNumber = r.AccountNumber
	}
	if r.BankName != "" {
		m.BankName = r.BankName
	}
	if r.Currency != "" {
		m.Currency = strings.ToUpper(r.Currency)
	}
	if r.IsActive != nil {
		m.IsActive = *r.IsActive
	}
	return nil
}

// List returns every payment method.
func (h *PaymentMethodHandler) List(c *fiber.Ctx) error {
	var methods []models.PaymentMethod
	if err := h.db.Order("name asc").Find(&methods).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    methods,
	})
}

// Create adds a payment method.
func (h *PaymentMethodHandler) Create(c *fiber.Ctx) error {
	var req paymentMethodRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.Name == "" || req.Slug == "" {
		return fiber.NewError(fiber.StatusUnprocessableEntity, "name and slug are required")
	}

	method := models.PaymentMethod{Mode: models.ModeTest, Currency: "NGN", IsActive: true}
	if err := req.apply(&method); err != nil {
		return err
	}
	if err := h.saveLogo(c, &method); err != nil {
		return err
	}

	if err := h.db.Create(&method).Error; err != nil {
		if services.IsUniqueViolation(err) {
			return fiber.NewError(fiber.StatusUnprocessableEntity, "slug has already been taken")
		}
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    method,
	})
}

// Update edits a payment method.
func (h *PaymentMethodHandler) Update(c *fiber.Ctx) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}

	var method models.PaymentMethod
	if err := h.db.First(&method, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusNotFound, "payment method not found")
		}
		return err
	}

	var req paymentMethodRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := req.apply(&method); err != nil {
		return err
	}
	if err := h.saveLogo(c, &method); err != nil {
		return err
	}

	if err := h.db.Save(&method).Error; err != nil {
		if services.IsUniqueViolation(err) {
			return fiber.NewError(fiber.StatusUnprocessableEntity, "slug has already been taken")
		}
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    method,
	})
}

// Delete removes a payment method not referenced by any transaction.
func (h *PaymentMethodHandler) Delete(c *fiber.Ctx) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}

	var used int64
	if err := h.db.Model(&models.Transaction{}).Where("payment_method_id = ?", id).Count(&used).Error; err != nil {
		return err
	}
	if used > 0 {
		return fiber.NewError(fiber.StatusConflict, "payment method has transactions; deactivate it instead")
	}

	res := h.db.Delete(&models.PaymentMethod{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fiber.NewError(fiber.StatusNotFound, "payment method not found")
	}

	return c.JSON(fiber.Map{
		"success": true,
	})
}

func (h *PaymentMethodHandler) saveLogo(c *fiber.Ctx, method *models.PaymentMethod) error {
	logo, closeFn, err := formUpload(c, "logo")
	if err != nil {
		return err
	}
	defer closeFn()
	if logo == nil {
		return nil
	}

	stored, err := h.blobs.Save("payment-methods", logo.Filename, logo.Body)
	if err != nil {
		return err
	}
	method.Logo = stored
	return nil
}
