package handlers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/example/comcin/internal/services"
)

// ErrorHandler renders every error as {"success":false,"error":...,"code":...}.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "internal server error"

	var fe *fiber.Error
	var se *services.Error
	switch {
	case errors.As(err, &fe):
		code = fe.Code
		message = fe.Message
	case errors.As(err, &se):
		code = statusForKind(se.Kind)
		message = se.Error()
		if se.Kind == services.KindPersistence {
			log.Printf("[HTTP] %s %s: %v", c.Method(), c.OriginalURL(), err)
			message = "internal server error"
		}
	default:
		log.Printf("[HTTP] %s %s: %v", c.Method(), c.OriginalURL(), err)
	}

	body := fiber.Map{
		"success": false,
		"error":   message,
		"code":    code,
	}
	if se != nil {
		body["kind"] = se.Kind
	}
	return c.Status(code).JSON(body)
}

func statusForKind(kind services.ErrorKind) int {
	switch kind {
	case services.KindNotFound:
		return fiber.StatusNotFound
	case services.KindValidation:
		return fiber.StatusUnprocessableEntity
	case services.KindForbidden:
		return fiber.StatusForbidden
	case services.KindDuplicateTransaction:
		return fiber.StatusConflict
	case services.KindPaymentNotSuccessful:
		return fiber.StatusPaymentRequired
	case services.KindInvalidMetadata:
		return fiber.StatusBadRequest
	}
	return fiber.StatusInternalServerError
}
