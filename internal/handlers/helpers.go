package handlers

import (
	"mime/multipart"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/example/comcin/internal/middleware"
	"github.com/example/comcin/internal/services"
)

func currentActor(c *fiber.Ctx) (services.Actor, error) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		return services.Actor{}, fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}
	return actor, nil
}

func uuidParam(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

func optionalUUID(value string) (*uuid.UUID, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func parseAmount(value string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return decimal.Zero, fiber.NewError(fiber.StatusBadRequest, "invalid amount")
	}
	return amount, nil
}

func parseDate(value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return &t, nil
		}
	}
	return nil, fiber.NewError(fiber.StatusBadRequest, "invalid date "+value)
}

// formUpload opens an optional multipart file. The returned closer is never nil.
func formUpload(c *fiber.Ctx, field string) (*services.Upload, func(), error) {
	header, err := c.FormFile(field)
	if err != nil || header == nil {
		return nil, func() {}, nil
	}
	return openUpload(header)
}

func openUpload(header *multipart.FileHeader) (*services.Upload, func(), error) {
	f, err := header.Open()
	if err != nil {
		return nil, func() {}, fiber.NewError(fiber.StatusBadRequest, "unreadable upload "+header.Filename)
	}
	return &services.Upload{Filename: header.Filename, Body: f}, func() { f.Close() }, nil
}

func formBool(c *fiber.Ctx, field string) bool {
	switch strings.ToLower(strings.TrimSpace(c.FormValue(field))) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

func likePattern(search string) string {
	return "%" + strings.ToLower(strings.TrimSpace(search)) + "%"
}
