package handlers

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/comcin/internal/models"
	"github.com/example/comcin/internal/services"
	"github.com/example/comcin/internal/utils"
)

// SupportHandler serves support tickets for members and admins.
type SupportHandler struct {
	db      *gorm.DB
	support *services.SupportService
	reports *services.ReportingService
}

// NewSupportHandler constructs a SupportHandler.
func NewSupportHandler(db *gorm.DB, support *services.SupportService, reports *services.ReportingService) *SupportHandler {
	return &SupportHandler{db: db, support: support, reports: reports}
}

// MemberList returns the caller's tickets.
func (h *SupportHandler) MemberList(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	var tickets []models.SupportTicket
	if err := h.db.Where("user_id = ?", actor.ID).Order("created_at desc").Find(&tickets).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    tickets,
	})
}

// MemberCreate opens a ticket with an optional attachment.
func (h *SupportHandler) MemberCreate(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	attachment, closeFn, err := formUpload(c, "attachment")
	if err != nil {
		return err
	}
	defer closeFn()

	ticket, err := h.support.Create(c.UserContext(), actor, services.TicketInput{
		Subject:    c.FormValue("subject"),
		Message:    c.FormValue("message"),
		Attachment: attachment,
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    ticket,
	})
}

// MemberShow returns one of the caller's tickets.
func (h *SupportHandler) MemberShow(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}

	var ticket models.SupportTicket
	if err := h.db.First(&ticket, "id = ? AND user_id = ?", id, actor.ID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusNotFound, "support ticket not found")
		}
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    ticket,
	})
}

// AdminIndex returns ticket stats and a paginated list.
func (h *SupportHandler) AdminIndex(c *fiber.Ctx) error {
	stats, err := h.reports.SupportStats(c.UserContext())
	if err != nil {
		return err
	}

	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.SupportTicket{})
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var tickets []models.SupportTicket
	if err := query.Preload("User").
		Order("created_at desc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&tickets).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"stats":   stats,
			"tickets": tickets,
		},
		"pagination": pg.Meta(total),
	})
}

// AdminShow returns any ticket.
func (h *SupportHandler) AdminShow(c *fiber.Ctx) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}

	var ticket models.SupportTicket
	if err := h.db.Preload("User").First(&ticket, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusNotFound, "support ticket not found")
		}
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    ticket,
	})
}

type ticketActionRequest struct {
	Action   string `json:"action"`
	Response string `json:"response"`
}

// AdminAction approves or rejects a ticket.
func (h *SupportHandler) AdminAction(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}

	var req ticketActionRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	ticket, err := h.support.Review(c.UserContext(), actor, id, req.Action, req.Response)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    ticket,
	})
}
