package handlers

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/comcin/internal/models"
	"github.com/example/comcin/internal/services"
	"github.com/example/comcin/internal/utils"
)

// UserHandler manages admin and member accounts from the admin area.
type UserHandler struct {
	db *gorm.DB
}

// NewUserHandler constructs a UserHandler.
func NewUserHandler(db *gorm.DB) *UserHandler {
	return &UserHandler{db: db}
}

type userRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

// ListAdmins returns admin accounts.
func (h *UserHandler) ListAdmins(c *fiber.Ctx) error {
	return h.list(c, models.RoleAdmin)
}

// ListMembers returns member accounts with their institutions.
func (h *UserHandler) ListMembers(c *fiber.Ctx) error {
	return h.list(c, models.RoleMember)
}

// CreateAdmin adds an admin account.
func (h *UserHandler) CreateAdmin(c *fiber.Ctx) error {
	return h.create(c, models.RoleAdmin)
}

// CreateMember adds a member account without an institution.
func (h *UserHandler) CreateMember(c *fiber.Ctx) error {
	return h.create(c, models.RoleMember)
}

// ShowMember returns a member with institution, charges and certificates.
func (h *UserHandler) ShowMember(c *fiber.Ctx) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}

	var user models.User
	if err := h.db.Preload("Institution").
		First(&user, "id = ? AND role = ?", id, models.RoleMember).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusNotFound, "member not found")
		}
		return err
	}

	var charges []models.Charge
	if err := h.db.Where("member_id = ?", id).Order("created_at desc").Find(&charges).Error; err != nil {
		return err
	}
	var certificates []models.Certificate
	if err := h.db.Where("member_id = ?", id).Order("created_at desc").Find(&certificates).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"user":         user,
			"charges":      charges,
			"certificates": certificates,
		},
	})
}

// UpdateUser edits name, email, phone and optionally the password.
func (h *UserHandler) UpdateUser(c *fiber.Ctx) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}

	var req userRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	var user models.User
	if err := h.db.First(&user, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusNotFound, "user not found")
		}
		return err
	}

	updates := map[string]interface{}{}
	if req.Name != "" {
		updates["name"] = req.Name
	}
	if req.Email != "" {
		updates["email"] = services.NormalizeEmail(req.Email)
	}
	if req.Phone != "" {
		updates["phone"] = req.Phone
	}
	if req.Password != "" {
		if len(req.Password) < services.MinPasswordLength {
			return fiber.NewError(fiber.StatusUnprocessableEntity, fmt.Sprintf("password must be at least %d characters", services.MinPasswordLength))
		}
		hash, err := utils.HashPassword(req.Password)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to hash password")
		}
		updates["password_hash"] = hash
	}
	if len(updates) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "nothing to update")
	}

	if err := h.db.Model(&user).Updates(updates).Error; err != nil {
		if services.IsUniqueViolation(err) {
			return fiber.NewError(fiber.StatusUnprocessableEntity, "email has already been taken")
		}
		return err
	}
	if err := h.db.First(&user, "id = ?", id).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    user,
	})
}

// SetActive activates or deactivates an account. Admins cannot deactivate themselves.
func (h *UserHandler) SetActive(active bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := currentActor(c)
		if err != nil {
			return err
		}
		id, err := uuidParam(c, "id")
		if err != nil {
			return err
		}
		if !active && id == actor.ID {
			return fiber.NewError(fiber.StatusUnprocessableEntity, "you cannot deactivate your own account")
		}

		res := h.db.Model(&models.User{}).Where("id = ?", id).Update("is_active", active)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fiber.NewError(fiber.StatusNotFound, "user not found")
		}

		message := "Account activated"
		if !active {
			message = "Account deactivated"
		}
		return c.JSON(fiber.Map{
			"success": true,
			"message": message,
		})
	}
}

func (h *UserHandler) list(c *fiber.Ctx, role string) error {
	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.User{}).Where("role = ?", role)

	if search := c.Query("search"); search != "" {
		pattern := likePattern(search)
		query = query.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ?", pattern, pattern)
	}
	if active := c.Query("active"); active != "" {
		query = query.Where("is_active = ?", active == "true")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var users []models.User
	if err := query.Preload("Institution").
		Order("created_at desc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&users).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"data":       users,
		"pagination": pg.Meta(total),
	})
}

func (h *UserHandler) create(c *fiber.Ctx, role string) error {
	var req userRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if req.Name == "" || req.Email == "" {
		return fiber.NewError(fiber.StatusUnprocessableEntity, "name and email are required")
	}
	if len(req.Password) < services.MinPasswordLength {
		return fiber.NewError(fiber.StatusUnprocessableEntity, fmt.Sprintf("password must be at least %d characters", services.MinPasswordLength))
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to hash password")
	}

	now := time.Now()
	user := models.User{
		Name:            req.Name,
		Email:           services.NormalizeEmail(req.Email),
		Phone:           req.Phone,
		Role:            role,
		PasswordHash:    hash,
		IsVerified:      true,
		EmailVerifiedAt: &now,
		IsActive:        true,
	}
	if err := h.db.Create(&user).Error; err != nil {
		if services.IsUniqueViolation(err) {
			return fiber.NewError(fiber.StatusUnprocessableEntity, "email has already been taken")
		}
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    user,
	})
}
