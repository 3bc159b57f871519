package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/permit-review/internal/utils"
)

// ErrorHandler renders errors returned from handlers and middleware in the
// standard error body
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		errorType := "http"
		if fe.Code == fiber.StatusRequestEntityTooLarge {
			errorType = "upload.too_large"
		}
		return utils.ErrorResponse(c, fe.Message, fe.Code, errorType)
	}

	return respondError(c, err, "unknown")
}

// NotFound answers unmatched routes
func NotFound(c *fiber.Ctx) error {
	return utils.NotFoundResponse(c, "[404] Resource Not Found")
}
