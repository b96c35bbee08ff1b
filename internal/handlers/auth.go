package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/comcin/internal/config"
	"github.com/example/comcin/internal/middleware"
	"github.com/example/comcin/internal/models"
	"github.com/example/comcin/internal/services"
	"github.com/example/comcin/internal/utils"
)

// AuthHandler bundles dependencies for authentication endpoints.
type AuthHandler struct {
	db           *gorm.DB
	cfg          *config.Config
	registration *services.RegistrationService
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(db *gorm.DB, cfg *config.Config, registration *services.RegistrationService) *AuthHandler {
	return &AuthHandler{db: db, cfg: cfg, registration: registration}
}

// Register accepts a multipart membership application.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	establishment, err := parseDate(c.FormValue("establishment_date"))
	if err != nil {
		return err
	}

	input := services.RegistrationInput{
		Name:     c.FormValue("name"),
		Email:    c.FormValue("email"),
		Phone:    c.FormValue("phone"),
		Password: c.FormValue("password"),
		Institution: services.InstitutionInput{
			Name:               c.FormValue("institution_name"),
			Type:               c.FormValue("institution_type"),
			Category:           c.FormValue("category"),
			RegistrationNumber: c.FormValue("registration_number"),
			RegulatoryBody:     c.FormValue("regulatory_body"),
			EstablishmentDate:  establishment,
			OperatingState:     c.FormValue("operating_state"),
			Address:            c.FormValue("address"),
			ContactEmail:       c.FormValue("contact_email"),
			ContactPhone:       c.FormValue("contact_phone"),
			Website:            c.FormValue("website"),
			Description:        c.FormValue("description"),
			AgreedToTerms:      formBool(c, "agreed_to_terms"),
			AgreedToPrivacy:    formBool(c, "agreed_to_privacy"),
		},
	}
	if confirm := c.FormValue("password_confirmation"); confirm != "" && confirm != input.Password {
		return fiber.NewError(fiber.StatusUnprocessableEntity, "password confirmation does not match")
	}

	input.Documents = make(map[string]*services.Upload, len(models.InstitutionDocuments))
	for _, doc := range models.InstitutionDocuments {
		upload, closeFn, err := formUpload(c, doc.Field)
		if err != nil {
			return err
		}
		defer closeFn()
		if upload != nil {
			input.Documents[doc.Field] = upload
		}
	}
	receipt, closeFn, err := formUpload(c, "payment_receipt")
	if err != nil {
		return err
	}
	defer closeFn()
	input.PaymentReceipt = receipt

	result, err := h.registration.Register(c.UserContext(), input)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "Registration successful. Check your email to verify your account.",
		"data":    result,
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login authenticates an existing user.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	var user models.User
	if err := h.db.Preload("Institution").Where("email = ?", services.NormalizeEmail(req.Email)).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid credentials")
		}
		return err
	}

	if !utils.CheckPassword(user.PasswordHash, req.Password) {
		return fiber.NewError(fiber.StatusUnauthorized, "invalid credentials")
	}
	if !user.IsActive {
		return fiber.NewError(fiber.StatusForbidden, "account is deactivated")
	}

	token, err := utils.GenerateToken(h.cfg.JWTSecret, user.ID, user.Role, h.cfg.TokenExpires)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to generate token")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"user":    user,
		"token":   token,
	})
}

// Logout revokes the presented access token.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	claims, ok := middleware.GetTokenClaims(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	revoked := models.RevokedToken{TokenID: claims.TokenID, ExpiresAt: claims.ExpiresAt}
	if err := h.db.Create(&revoked).Error; err != nil && !services.IsUniqueViolation(err) {
		return err
	}
	if err := h.db.Where("expires_at < ?", time.Now()).Delete(&models.RevokedToken{}).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Logged out successfully",
	})
}

// Me returns the authenticated user.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	var user models.User
	if err := h.db.Preload("Institution").First(&user, "id = ?", actor.ID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusNotFound, "user not found")
		}
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    user,
	})
}

// VerifyEmail confirms the address using the emailed code.
func (h *AuthHandler) VerifyEmail(c *fiber.Ctx) error {
	id, err := uuidParam(c, "uid")
	if err != nil {
		return err
	}
	otp := c.Params("otp")

	var user models.User
	if err := h.db.First(&user, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusNotFound, "user not found")
		}
		return err
	}

	if user.IsVerified {
		return fiber.NewError(fiber.StatusConflict, "email already verified")
	}

	now := time.Now()
	if user.OTP == nil || *user.OTP != otp {
		return fiber.NewError(fiber.StatusBadRequest, "invalid verification code")
	}
	if user.OTPExpired(now) {
		return fiber.NewError(fiber.StatusBadRequest, "verification code expired")
	}

	if err := h.db.Model(&user).Updates(map[string]interface{}{
		"is_verified":       true,
		"email_verified_at": now,
		"otp":               nil,
		"otp_expires_at":    nil,
	}).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"verified": true,
	})
}
