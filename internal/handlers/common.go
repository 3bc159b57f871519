// common.go
//
// Permit application document review and workflow service
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of permit-review.
// permit-review is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// permit-review is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with permit-review.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

package handlers

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/permit-review/internal/middleware"
	"github.com/localnerve/permit-review/internal/services"
	"github.com/localnerve/permit-review/internal/types"
	"github.com/localnerve/permit-review/internal/utils"
)

var errorStatuses = []struct {
	err       error
	status    int
	errorType string
}{
	{types.ErrValidation, fiber.StatusBadRequest, "validation"},
	{types.ErrForbidden, fiber.StatusForbidden, "forbidden"},
	{types.ErrNotFound, fiber.StatusNotFound, "notFound"},
	{types.ErrInvalidTransition, fiber.StatusConflict, "review.transition"},
	{types.ErrChecklistIncomplete, fiber.StatusUnprocessableEntity, "review.checklist_incomplete"},
	{types.ErrRejectionReasonRequired, fiber.StatusUnprocessableEntity, "review.rejection_reason_required"},
	{types.ErrPayloadTooLarge, fiber.StatusRequestEntityTooLarge, "upload.too_large"},
}

// StatusFor maps a service error to its HTTP status and error type
func StatusFor(err error) (int, string) {
	for _, s := range errorStatuses {
		if errors.Is(err, s.err) {
			return s.status, s.errorType
		}
	}
	return fiber.StatusInternalServerError, "internal"
}

// respondError writes the error body for err. Unmapped errors are reported
// under the operation name so they can be found in the logs.
func respondError(c *fiber.Ctx, err error, operation string) error {
	var custom *types.CustomError
	if errors.As(err, &custom) {
		return utils.ErrorResponse(c, custom.Message, custom.Code, custom.Type)
	}

	status, errorType := StatusFor(err)
	if status == fiber.StatusInternalServerError {
		errorType = operation
	}
	return utils.ErrorResponse(c, err.Error(), status, errorType)
}

func badRequest(c *fiber.Ctx, message string) error {
	return utils.ErrorResponse(c, message, fiber.StatusBadRequest, "validation")
}

// paramID parses a positive numeric route parameter
func paramID(c *fiber.Ctx, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || id == 0 {
		return 0, types.Validationf("%s must be a positive integer", name)
	}
	return id, nil
}

// currentActor returns the authenticated user. Routes are mounted behind the
// auth middleware, so a missing actor is a wiring error.
func currentActor(c *fiber.Ctx) (services.Actor, error) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		return services.Actor{}, &types.CustomError{
			Code:    fiber.StatusUnauthorized,
			Message: "authentication required",
			Type:    "authorization.user",
		}
	}
	return actor, nil
}

// decodeContent decodes standard or URL-safe base64, with or without padding,
// after stripping an optional data URL prefix.
func decodeContent(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "data:") {
		comma := strings.IndexByte(raw, ',')
		if comma < 0 {
			return nil, types.Validationf("malformed data URL")
		}
		raw = raw[comma+1:]
	}
	raw = strings.NewReplacer("\n", "", "\r", "", " ", "").Replace(raw)

	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if data, err := enc.DecodeString(raw); err == nil {
			return data, nil
		}
	}
	return nil, types.Validationf("content is not valid base64")
}

func tooLarge(size, limit int64) error {
	return fmt.Errorf("document is %d bytes, the limit is %d: %w", size, limit, types.ErrPayloadTooLarge)
}
