package handlers

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/comcin/internal/models"
	"github.com/example/comcin/internal/services"
	"github.com/example/comcin/internal/utils"
)

// MemberHandler serves the member area.
type MemberHandler struct {
	db       *gorm.DB
	reports  *services.ReportingService
	notifier *services.Notifier
	blobs    services.BlobStore
}

// NewMemberHandler constructs a MemberHandler.
func NewMemberHandler(db *gorm.DB, reports *services.ReportingService, notifier *services.Notifier, blobs services.BlobStore) *MemberHandler {
	return &MemberHandler{db: db, reports: reports, notifier: notifier, blobs: blobs}
}

// Dashboard returns the member landing page.
func (h *MemberHandler) Dashboard(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	dashboard, err := h.reports.MemberDashboard(c.UserContext(), actor.ID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    dashboard,
	})
}

// Institution returns the caller's institution.
func (h *MemberHandler) Institution(c *fiber.Ctx) error {
	institution, err := h.ownInstitution(c)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    institution,
	})
}

type editInstitutionRequest struct {
	Name               string `json:"name" form:"name"`
	RegistrationNumber string `json:"registration_number" form:"registration_number"`
	RegulatoryBody     string `json:"regulatory_body" form:"regulatory_body"`
	OperatingState     string `json:"operating_state" form:"operating_state"`
	Address            string `json:"address" form:"address"`
	ContactEmail       string `json:"contact_email" form:"contact_email"`
	ContactPhone       string `json:"contact_phone" form:"contact_phone"`
	Website            string `json:"website" form:"website"`
	Description        string `json:"description" form:"description"`
}

// EditInstitution updates descriptive fields and replaces any uploaded
// documents. Status and approval are never touched here.
func (h *MemberHandler) EditInstitution(c *fiber.Ctx) error {
	institution, err := h.ownInstitution(c)
	if err != nil {
		return err
	}

	var req editInstitutionRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	updates := map[string]interface{}{}
	for column, value := range map[string]string{
		"name":                req.Name,
		"registration_number": req.RegistrationNumber,
		"regulatory_body":     req.RegulatoryBody,
		"operating_state":     req.OperatingState,
		"address":             req.Address,
		"contact_email":       req.ContactEmail,
		"contact_phone":       req.ContactPhone,
		"website":             req.Website,
		"description":         req.Description,
	} {
		if value != "" {
			updates[column] = value
		}
	}

	var stored, replaced []string
	for _, doc := range models.InstitutionDocuments {
		upload, closeFn, err := formUpload(c, doc.Field)
		if err != nil {
			h.discardBlobs(stored)
			return err
		}
		defer closeFn()
		if upload == nil {
			continue
		}
		path, err := h.blobs.Save(institution.UserID.String()+"/institutions", upload.Filename, upload.Body)
		if err != nil {
			h.discardBlobs(stored)
			return err
		}
		stored = append(stored, path)
		if previous := institution.Document(doc.Column); previous != "" {
			replaced = append(replaced, previous)
		}
		updates[doc.Column] = path
	}
	if len(updates) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "nothing to update")
	}

	if err := h.db.Model(institution).Updates(updates).Error; err != nil {
		h.discardBlobs(stored)
		return err
	}
	h.discardBlobs(replaced)

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Institution updated successfully",
		"data":    institution,
	})
}

func (h *MemberHandler) discardBlobs(paths []string) {
	for _, p := range paths {
		if err := h.blobs.Delete(p); err != nil {
			log.Printf("[Member] failed to remove upload %s: %v", p, err)
		}
	}
}

// LogoBanner replaces the institution logo and/or banner.
func (h *MemberHandler) LogoBanner(c *fiber.Ctx) error {
	institution, err := h.ownInstitution(c)
	if err != nil {
		return err
	}

	updates := map[string]interface{}{}
	for _, field := range []string{"logo", "banner"} {
		upload, closeFn, err := formUpload(c, field)
		if err != nil {
			return err
		}
		defer closeFn()
		if upload == nil {
			continue
		}
		stored, err := h.blobs.Save(institution.UserID.String()+"/institutions", upload.Filename, upload.Body)
		if err != nil {
			return err
		}
		updates[field] = stored
	}
	if len(updates) == 0 {
		return fiber.NewError(fiber.StatusUnprocessableEntity, "logo or banner is required")
	}

	if err := h.db.Model(institution).Updates(updates).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    institution,
	})
}

// EditProfile updates the caller's name, phone and avatar.
func (h *MemberHandler) EditProfile(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	if !services.CanPerform(actor, services.ActionEditProfile, services.OwnedBy(actor.ID)) {
		return fiber.NewError(fiber.StatusForbidden, "insufficient permissions")
	}

	updates := map[string]interface{}{}
	if name := c.FormValue("name"); name != "" {
		updates["name"] = name
	}
	if phone := c.FormValue("phone"); phone != "" {
		updates["phone"] = phone
	}

	avatar, closeFn, err := formUpload(c, "avatar")
	if err != nil {
		return err
	}
	defer closeFn()
	if avatar != nil {
		stored, err := h.blobs.Save(actor.ID.String()+"/avatar", avatar.Filename, avatar.Body)
		if err != nil {
			return err
		}
		updates["avatar"] = stored
	}
	if len(updates) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "nothing to update")
	}

	var user models.User
	if err := h.db.First(&user, "id = ?", actor.ID).Error; err != nil {
		return err
	}
	if err := h.db.Model(&user).Updates(updates).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    user,
	})
}

// Financials returns the member's charges and totals.
func (h *MemberHandler) Financials(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	financials, err := h.reports.MemberFinancials(c.UserContext(), actor.ID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    financials,
	})
}

// Certificates lists the caller's published certificates.
func (h *MemberHandler) Certificates(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	var certificates []models.Certificate
	if err := h.db.Where("member_id = ? AND status = ?", actor.ID, models.CertificatePublished).
		Order("issue_date desc").
		Find(&certificates).Error; err != nil {
		return err
	}
	if len(certificates) == 0 {
		return fiber.NewError(fiber.StatusNotFound, "no certificates found")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    certificates,
	})
}

// Notifications lists the caller's notifications.
func (h *MemberHandler) Notifications(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	pg := utils.ParsePagination(c)
	notifications, err := h.notifier.List(c.UserContext(), actor.ID, pg.Limit)
	if err != nil {
		return err
	}
	unread, err := h.notifier.UnreadCount(c.UserContext(), actor.ID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    notifications,
		"unread":  unread,
	})
}

type markAsReadRequest struct {
	NotificationID string `json:"notification_id"`
}

// MarkAsRead marks one notification, or all when no id is given, as read.
func (h *MemberHandler) MarkAsRead(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	var req markAsReadRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	id, err := optionalUUID(req.NotificationID)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid notification_id")
	}
	if id == nil {
		count, err := h.notifier.MarkAllRead(c.UserContext(), actor, actor.ID)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"success": true, "marked": count})
	}

	notification, err := h.notifier.MarkRead(c.UserContext(), actor, *id)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    notification,
	})
}

func (h *MemberHandler) ownInstitution(c *fiber.Ctx) (*models.Institution, error) {
	actor, err := currentActor(c)
	if err != nil {
		return nil, err
	}

	var institution models.Institution
	if err := h.db.First(&institution, "user_id = ?", actor.ID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fiber.NewError(fiber.StatusNotFound, "institution not found")
		}
		return nil, err
	}
	if !services.CanPerform(actor, services.ActionEditInstitution, services.OwnedBy(institution.UserID)) {
		return nil, fiber.NewError(fiber.StatusForbidden, "insufficient permissions")
	}
	return &institution, nil
}
