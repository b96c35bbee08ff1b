package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/comcin/internal/models"
	"github.com/example/comcin/internal/services"
	"github.com/example/comcin/internal/utils"
)

// CertificateHandler lets admins issue and publish member certificates.
type CertificateHandler struct {
	db           *gorm.DB
	certificates *services.CertificateService
}

// NewCertificateHandler constructs a CertificateHandler.
func NewCertificateHandler(db *gorm.DB, certificates *services.CertificateService) *CertificateHandler {
	return &CertificateHandler{db: db, certificates: certificates}
}

// List returns certificates, optionally for one member.
func (h *CertificateHandler) List(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.Certificate{})
	if member := c.Query("member_id"); member != "" {
		id, err := uuid.Parse(member)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid member_id")
		}
		query = query.Where("member_id = ?", id)
	}
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}
	var certificates []models.Certificate
	if err := query.Preload("Member").
		Order("created_at desc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&certificates).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"data":       certificates,
		"pagination": pg.Meta(total),
	})
}

// Issue creates a certificate from a multipart form.
func (h *CertificateHandler) Issue(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	memberID, err := uuid.Parse(c.FormValue("member_id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid member_id")
	}
	issueDate, err := parseDate(c.FormValue("issue_date"))
	if err != nil {
		return err
	}
	expiryDate, err := parseDate(c.FormValue("expiry_date"))
	if err != nil {
		return err
	}

	file, closeFn, err := formUpload(c, "file")
	if err != nil {
		return err
	}
	defer closeFn()

	certificate, err := h.certificates.Issue(c.UserContext(), actor, services.CertificateInput{
		MemberID:   memberID,
		Name:       c.FormValue("name"),
		Type:       c.FormValue("type"),
		Publish:    formBool(c, "publish"),
		IssueDate:  issueDate,
		ExpiryDate: expiryDate,
		File:       file,
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    certificate,
	})
}

// Publish releases a processing certificate to its member.
func (h *CertificateHandler) Publish(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}

	certificate, err := h.certificates.Publish(c.UserContext(), actor, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    certificate,
	})
}
