// routes.go
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
	"github.com/gofiber/fiber/v2"
)

// Handlers groups the route handlers of the API
type Handlers struct {
	Projects      *ProjectHandler
	Documents     *DocumentHandler
	Stakeholders  *StakeholderHandler
	Notifications *NotificationHandler
	// Events is optional, change streams need a subscriber
	Events *EventsHandler
}

// Register mounts the API routes on router. Every route needs a session;
// review decisions and checklist progress need the specialist role.
func Register(router fiber.Router, h Handlers, user, specialist fiber.Handler) {
	router.Get("/checklists/:category", user, h.Documents.Template)

	projects := router.Group("/projects", user)
	projects.Get("/", h.Projects.List)
	projects.Post("/", h.Projects.Create)
	projects.Get("/:projectId", h.Projects.Get)
	projects.Patch("/:projectId", h.Projects.Update)
	projects.Delete("/:projectId", h.Projects.Delete)
	projects.Get("/:projectId/activities", h.Projects.Activities)

	projects.Get("/:projectId/documents", h.Documents.List)
	projects.Get("/:projectId/documents/current", h.Documents.Current)
	projects.Post("/:projectId/documents", h.Documents.Upload)
	projects.Post("/:projectId/documents/delete", h.Documents.DeleteMany)
	projects.Delete("/:projectId/documents/:documentId", h.Documents.DeleteInProject)

	projects.Get("/:projectId/stakeholders", h.Stakeholders.List)
	projects.Post("/:projectId/stakeholders", h.Stakeholders.Add)
	projects.Get("/:projectId/tasks", h.Stakeholders.ProjectTasks)

	documents := router.Group("/documents", user)
	documents.Get("/:documentId", h.Documents.Get)
	documents.Delete("/:documentId", h.Documents.Delete)
	documents.Get("/:documentId/versions", h.Documents.Versions)
	documents.Get("/:documentId/checklist", h.Documents.Checklist)
	router.Patch("/documents/:documentId", specialist, h.Documents.Review)
	router.Put("/documents/:documentId/checklist", specialist, h.Documents.SaveChecklist)

	stakeholders := router.Group("/stakeholders", user)
	stakeholders.Patch("/:stakeholderId", h.Stakeholders.Update)
	stakeholders.Delete("/:stakeholderId", h.Stakeholders.Remove)
	stakeholders.Get("/:stakeholderId/tasks", h.Stakeholders.ListTasks)
	stakeholders.Post("/:stakeholderId/tasks", h.Stakeholders.AssignTask)

	tasks := router.Group("/tasks", user)
	tasks.Post("/assign", h.Stakeholders.AssignByUser)
	tasks.Patch("/:taskId", h.Stakeholders.UpdateTask)
	tasks.Delete("/:taskId", h.Stakeholders.DeleteTask)

	notifications := router.Group("/notifications", user)
	notifications.Get("/", h.Notifications.List)
	notifications.Post("/read-all", h.Notifications.ReadAll)
	notifications.Post("/:notificationId/read", h.Notifications.MarkRead)

	if h.Events != nil {
		projects.Get("/:projectId/events", h.Events.Project)
		router.Get("/events", specialist, h.Events.All)
	}
}
