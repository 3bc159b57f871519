package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/permit-review/internal/events"
	"github.com/localnerve/permit-review/internal/services"
	"go.uber.org/zap"
)

const defaultKeepalive = 15 * time.Second

// ChangeSubscriber delivers the change events of one project, or of every
// project when projectID is 0
type ChangeSubscriber interface {
	Subscribe(ctx context.Context, projectID uint64) (<-chan events.Change, func() error, error)
}

// EventsHandler streams change events to browsers as server-sent events
type EventsHandler struct {
	Engine     *services.Engine
	Subscriber ChangeSubscriber
	Log        *zap.Logger
	// Keepalive is the comment interval that holds idle connections open
	Keepalive time.Duration
}

// Project handles GET /api/projects/:projectId/events
// @Summary Stream a project's changes
// @Description Server-sent events, one per committed change. The event name is entity.op and the data is the change as JSON.
// @Tags Events
// @Produce text/event-stream
// @Param projectId path int true "Project ID"
// @Success 200 {object} events.Change
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /projects/{projectId}/events [get]
func (h *EventsHandler) Project(c *fiber.Ctx) error {
	projectID, err := paramID(c, "projectId")
	if err != nil {
		return respondError(c, err, "streamEvents")
	}
	if _, err := projectAccess(c, h.Engine, projectID); err != nil {
		return respondError(c, err, "streamEvents")
	}
	return h.stream(c, projectID)
}

// All handles GET /api/events
// @Summary Stream every change
// @Description Specialist only. Same framing as the project stream.
// @Tags Events
// @Produce text/event-stream
// @Success 200 {object} events.Change
// @Failure 403 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /events [get]
func (h *EventsHandler) All(c *fiber.Ctx) error {
	return h.stream(c, 0)
}

func (h *EventsHandler) stream(c *fiber.Ctx, projectID uint64) error {
	// the stream outlives the handler, so it gets its own context
	ctx, cancel := context.WithCancel(context.Background())
	changes, closeSub, err := h.Subscriber.Subscribe(ctx, projectID)
	if err != nil {
		cancel()
		return respondError(c, err, "streamEvents")
	}

	log := h.Log
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.Uint64("projectId", projectID))
	keepalive := h.Keepalive
	if keepalive <= 0 {
		keepalive = defaultKeepalive
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer cancel()
		defer func() {
			if err := closeSub(); err != nil {
				log.Debug("close subscription", zap.Error(err))
			}
		}()

		ticker := time.NewTicker(keepalive)
		defer ticker.Stop()

		fmt.Fprint(w, ": connected\n\n")
		if err := w.Flush(); err != nil {
			return
		}
		for {
			select {
			case change, ok := <-changes:
				if !ok {
					return
				}
				if err := writeChange(w, change); err != nil {
					log.Warn("change not streamed", zap.String("changeId", change.ID), zap.Error(err))
					continue
				}
			case <-ticker.C:
				fmt.Fprint(w, ": keepalive\n\n")
			}
			// a failed flush means the client went away
			if err := w.Flush(); err != nil {
				log.Debug("event stream closed", zap.Error(err))
				return
			}
		}
	})
	return nil
}

func writeChange(w *bufio.Writer, change events.Change) error {
	data, err := json.Marshal(change)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %s\nevent: %s.%s\ndata: %s\n\n", change.ID, change.Entity, change.Op, data)
	return err
}
