package handlers

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/comcin/internal/models"
	"github.com/example/comcin/internal/services"
	"github.com/example/comcin/internal/utils"
)

// AdminHandler manages admin dashboards and the application workflow.
type AdminHandler struct {
	db           *gorm.DB
	reports      *services.ReportingService
	applications *services.ApplicationService
	notifier     *services.Notifier
}

// NewAdminHandler constructs AdminHandler.
func NewAdminHandler(db *gorm.DB, reports *services.ReportingService, applications *services.ApplicationService, notifier *services.Notifier) *AdminHandler {
	return &AdminHandler{db: db, reports: reports, applications: applications, notifier: notifier}
}

// Dashboard returns totals, deltas and recent records.
func (h *AdminHandler) Dashboard(c *fiber.Ctx) error {
	overview, err := h.reports.AdminOverview(c.UserContext())
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    overview,
	})
}

// Memberships returns application counts, the pending queue and all applications.
func (h *AdminHandler) Memberships(c *fiber.Ctx) error {
	overview, err := h.reports.Memberships(c.UserContext())
	if err != nil {
		return err
	}

	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.Institution{})
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if search := c.Query("search"); search != "" {
		query = query.Where("LOWER(name) LIKE ?", likePattern(search))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var applications []models.Institution
	if err := query.Preload("User").
		Order("created_at desc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&applications).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"overview":     overview,
			"applications": applications,
		},
		"pagination": pg.Meta(total),
	})
}

// Institutions returns counts per category and the member list.
func (h *AdminHandler) Institutions(c *fiber.Ctx) error {
	counts, err := h.reports.CategoryCounts(c.UserContext())
	if err != nil {
		return err
	}

	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.Institution{})
	if category := c.Query("category"); category != "" {
		query = query.Where("category = ?", category)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var institutions []models.Institution
	if err := query.Preload("User").
		Order("created_at desc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&institutions).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"categories": counts,
			"members":    institutions,
		},
		"pagination": pg.Meta(total),
	})
}

// Financials returns revenue figures and the paginated charge list.
func (h *AdminHandler) Financials(c *fiber.Ctx) error {
	overview, err := h.reports.Financials(c.UserContext())
	if err != nil {
		return err
	}

	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.Charge{})
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if chargeType := c.Query("type"); chargeType != "" {
		query = query.Where("type = ?", chargeType)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var charges []models.Charge
	if err := query.Preload("Member").
		Order("created_at desc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&charges).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"overview": overview,
			"charges":  charges,
		},
		"pagination": pg.Meta(total),
	})
}

// ShowApplication returns one application by owning user id.
func (h *AdminHandler) ShowApplication(c *fiber.Ctx) error {
	userID, err := uuidParam(c, "user_id")
	if err != nil {
		return err
	}

	institution, err := h.applications.FindByUser(c.UserContext(), userID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    institution,
	})
}

type applicationActionRequest struct {
	Action          string `json:"action"`
	RejectionReason string `json:"rejection_reason"`
}

// ApplicationAction approves, rejects or moves an application to verification.
func (h *AdminHandler) ApplicationAction(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	userID, err := uuidParam(c, "user_id")
	if err != nil {
		return err
	}

	var req applicationActionRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	application, err := h.applications.FindByUser(c.UserContext(), userID)
	if err != nil {
		return err
	}

	institution, err := h.applications.Transition(c.UserContext(), actor, services.TransitionInput{
		InstitutionID:   application.ID,
		Action:          req.Action,
		RejectionReason: req.RejectionReason,
	})
	if err != nil {
		return err
	}

	message := "Application updated successfully."
	switch req.Action {
	case services.ActionApprove:
		message = "Application approved successfully."
	case services.ActionReject:
		message = "Application rejected successfully."
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": message,
		"data":    institution,
	})
}

// UserNotifications lists a user's notifications and marks them read.
func (h *AdminHandler) UserNotifications(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	userID, err := uuidParam(c, "user_id")
	if err != nil {
		return err
	}

	notifications, err := h.notifier.List(c.UserContext(), userID, 0)
	if err != nil {
		return err
	}
	if _, err := h.notifier.MarkAllRead(c.UserContext(), actor, userID); err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    notifications,
	})
}
