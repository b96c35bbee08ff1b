package handlers

import (
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/comcin/internal/config"
	"github.com/example/comcin/internal/models"
	"github.com/example/comcin/internal/services"
	"github.com/example/comcin/internal/utils"
)

const otpSentMessage = "If the email exists, an OTP has been sent to it."

// PasswordResetHandler manages forgot-password endpoints.
type PasswordResetHandler struct {
	db     *gorm.DB
	cfg    *config.Config
	mailer services.Mailer
}

// NewPasswordResetHandler constructs a PasswordResetHandler.
func NewPasswordResetHandler(db *gorm.DB, cfg *config.Config, mailer services.Mailer) *PasswordResetHandler {
	return &PasswordResetHandler{db: db, cfg: cfg, mailer: mailer}
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

// ForgotPassword stores a fresh OTP and mails it. The response is the same
// whether or not the address is registered.
func (h *PasswordResetHandler) ForgotPassword(c *fiber.Ctx) error {
	var req forgotPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	email := services.NormalizeEmail(req.Email)
	if email == "" {
		return fiber.NewError(fiber.StatusUnprocessableEntity, "email is required")
	}

	var user models.User
	err := h.db.Where("email = ?", email).First(&user).Error
	if err == gorm.ErrRecordNotFound {
		return c.JSON(fiber.Map{"success": true, "message": otpSentMessage})
	}
	if err != nil {
		return err
	}

	code, err := utils.GenerateOTP()
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to generate code")
	}
	user.SetOTP(code, time.Now().Add(h.otpTTL()))
	if err := h.db.Model(&user).Updates(map[string]interface{}{
		"otp":            user.OTP,
		"otp_expires_at": user.OTPExpiresAt,
	}).Error; err != nil {
		return err
	}

	body := fmt.Sprintf("Hello %s,\n\nYour password reset code is %s. It expires in %d minutes.\n", user.Name, code, int(h.otpTTL().Minutes()))
	if err := h.mailer.Send(c.UserContext(), user.Email, "Password reset code", body); err != nil {
		log.Printf("[Mailer] failed to send reset code to %s: %v", user.Email, err)
	}

	return c.JSON(fiber.Map{"success": true, "message": otpSentMessage})
}

type verifyOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

// VerifyOTP checks a reset code without consuming it.
func (h *PasswordResetHandler) VerifyOTP(c *fiber.Ctx) error {
	var req verifyOTPRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if _, err := h.userWithOTP(req.Email, req.OTP); err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "OTP verified",
	})
}

type resetPasswordRequest struct {
	Email                string `json:"email"`
	OTP                  string `json:"otp"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}

// ResetPassword sets a new password and clears the OTP.
func (h *PasswordResetHandler) ResetPassword(c *fiber.Ctx) error {
	var req resetPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if len(req.Password) < services.MinPasswordLength {
		return fiber.NewError(fiber.StatusUnprocessableEntity, fmt.Sprintf("password must be at least %d characters", services.MinPasswordLength))
	}
	if req.Password != req.PasswordConfirmation {
		return fiber.NewError(fiber.StatusUnprocessableEntity, "password confirmation does not match")
	}

	user, err := h.userWithOTP(req.Email, req.OTP)
	if err != nil {
		return err
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to hash password")
	}

	if err := h.db.Model(user).Updates(map[string]interface{}{
		"password_hash":  hash,
		"otp":            nil,
		"otp_expires_at": nil,
	}).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Password reset successfully",
	})
}

func (h *PasswordResetHandler) userWithOTP(email, otp string) (*models.User, error) {
	var user models.User
	if err := h.db.Where("email = ?", services.NormalizeEmail(email)).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fiber.NewError(fiber.StatusBadRequest, "invalid or expired OTP")
		}
		return nil, err
	}
	if !user.OTPMatches(otp, time.Now()) {
		return nil, fiber.NewError(fiber.StatusBadRequest, "invalid or expired OTP")
	}
	return &user, nil
}

func (h *PasswordResetHandler) otpTTL() time.Duration {
	if h.cfg.OTPTTL > 0 {
		return h.cfg.OTPTTL
	}
	return time.Hour
}
