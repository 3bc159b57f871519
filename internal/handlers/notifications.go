package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/permit-review/internal/services"
	"github.com/localnerve/permit-review/internal/utils"
)

// NotificationHandler handles the current user's notifications
type NotificationHandler struct {
	Engine *services.Engine
}

// List handles GET /api/notifications
// @Summary List notifications
// @Tags Notifications
// @Produce json
// @Param unread query bool false "Only unread notifications"
// @Success 200 {array} models.Notification
// @Failure 401 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /notifications [get]
func (h *NotificationHandler) List(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	list, err := h.Engine.ListNotifications(c.UserContext(), actor.ID, c.QueryBool("unread", false))
	if err != nil {
		return respondError(c, err, "listNotifications")
	}
	return utils.SuccessResponse(c, list, fiber.StatusOK)
}

// MarkRead handles POST /api/notifications/:notificationId/read
// @Summary Mark a notification read
// @Tags Notifications
// @Produce json
// @Param notificationId path int true "Notification ID"
// @Success 200 {object} models.Notification
// @Failure 404 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /notifications/{notificationId}/read [post]
func (h *NotificationHandler) MarkRead(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "notificationId")
	if err != nil {
		return respondError(c, err, "markNotificationRead")
	}

	n, err := h.Engine.MarkNotificationRead(c.UserContext(), id, actor.ID)
	if err != nil {
		return respondError(c, err, "markNotificationRead")
	}
	return utils.SuccessResponse(c, n, fiber.StatusOK)
}

// ReadAll handles POST /api/notifications/read-all
// @Summary Mark every notification read
// @Tags Notifications
// @Produce json
// @Success 200 {object} utils.SuccessResponseStruct
// @Security CookieAuth
// @Router /notifications/read-all [post]
func (h *NotificationHandler) ReadAll(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	count, err := h.Engine.MarkAllNotificationsRead(c.UserContext(), actor.ID)
	if err != nil {
		return respondError(c, err, "markNotificationsRead")
	}
	return utils.MutationSuccessResponse(c, count)
}
