package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/permit-review/internal/services"
	"github.com/localnerve/permit-review/internal/utils"
)

// ProjectHandler handles project routes
type ProjectHandler struct {
	Engine *services.Engine
}

// projectAccess loads the actor and checks they may see the project
func projectAccess(c *fiber.Ctx, engine *services.Engine, projectID uint64) (services.Actor, error) {
	actor, err := currentActor(c)
	if err != nil {
		return actor, err
	}
	return actor, engine.CanAccess(c.UserContext(), projectID, actor)
}

// projectManage checks the actor may also change the project's membership,
// tasks and existence
func projectManage(c *fiber.Ctx, engine *services.Engine, projectID uint64) (services.Actor, error) {
	actor, err := projectAccess(c, engine, projectID)
	if err != nil {
		return actor, err
	}
	return actor, engine.CanManage(c.UserContext(), projectID, actor)
}

// List handles GET /api/projects
// @Summary List projects
// @Description Specialists see every project, other users the projects they created or are a stakeholder of
// @Tags Projects
// @Produce json
// @Success 200 {array} models.Project
// @Failure 401 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /projects [get]
func (h *ProjectHandler) List(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	projects, err := h.Engine.ListProjects(c.UserContext(), actor)
	if err != nil {
		return respondError(c, err, "listProjects")
	}
	return utils.SuccessResponse(c, projects, fiber.StatusOK)
}

// Create handles POST /api/projects
// @Summary Create a project
// @Tags Projects
// @Accept json
// @Produce json
// @Param body body services.ProjectInput true "Project fields, name is required"
// @Success 201 {object} models.Project
// @Failure 400 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /projects [post]
func (h *ProjectHandler) Create(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	var in services.ProjectInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "Invalid input")
	}

	project, err := h.Engine.CreateProject(c.UserContext(), in, actor)
	if err != nil {
		return respondError(c, err, "createProject")
	}
	return utils.SuccessResponse(c, project, fiber.StatusCreated)
}

// Get handles GET /api/projects/:projectId
// @Summary Get a project
// @Tags Projects
// @Produce json
// @Param projectId path int true "Project ID"
// @Success 200 {object} models.Project
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /projects/{projectId} [get]
func (h *ProjectHandler) Get(c *fiber.Ctx) error {
	projectID, err := paramID(c, "projectId")
	if err != nil {
		return respondError(c, err, "getProject")
	}
	if _, err := projectAccess(c, h.Engine, projectID); err != nil {
		return respondError(c, err, "getProject")
	}

	project, err := h.Engine.GetProject(c.UserContext(), projectID)
	if err != nil {
		return respondError(c, err, "getProject")
	}
	return utils.SuccessResponse(c, project, fiber.StatusOK)
}

// Update handles PATCH /api/projects/:projectId
// @Summary Update a project
// @Description Only the fields present in the body are changed
// @Tags Projects
// @Accept json
// @Produce json
// @Param projectId path int true "Project ID"
// @Param body body services.ProjectInput true "Fields to change"
// @Success 200 {object} models.Project
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /projects/{projectId} [patch]
func (h *ProjectHandler) Update(c *fiber.Ctx) error {
	projectID, err := paramID(c, "projectId")
	if err != nil {
		return respondError(c, err, "updateProject")
	}
	actor, err := projectAccess(c, h.Engine, projectID)
	if err != nil {
		return respondError(c, err, "updateProject")
	}

	var in services.ProjectInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "Invalid input")
	}

	project, err := h.Engine.UpdateProject(c.UserContext(), projectID, in, actor)
	if err != nil {
		return respondError(c, err, "updateProject")
	}
	return utils.SuccessResponse(c, project, fiber.StatusOK)
}

// Delete handles DELETE /api/projects/:projectId
// @Summary Delete a project
// @Description Removes the project with its documents, stakeholders, tasks and activity in one transaction. Allowed for specialists and the project creator.
// @Tags Projects
// @Produce json
// @Param projectId path int true "Project ID"
// @Success 200 {object} utils.SuccessResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /projects/{projectId} [delete]
func (h *ProjectHandler) Delete(c *fiber.Ctx) error {
	projectID, err := paramID(c, "projectId")
	if err != nil {
		return respondError(c, err, "deleteProject")
	}
	actor, err := projectManage(c, h.Engine, projectID)
	if err != nil {
		return respondError(c, err, "deleteProject")
	}

	if err := h.Engine.DeleteProject(c.UserContext(), projectID, actor); err != nil {
		return respondError(c, err, "deleteProject")
	}
	return utils.MutationSuccessResponse(c, 1)
}

// Activities handles GET /api/projects/:projectId/activities
// @Summary Project audit trail
// @Description Newest first, at most 200 entries
// @Tags Projects
// @Produce json
// @Param projectId path int true "Project ID"
// @Param limit query int false "Maximum entries"
// @Success 200 {array} models.ActivityLog
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /projects/{projectId}/activities [get]
func (h *ProjectHandler) Activities(c *fiber.Ctx) error {
	projectID, err := paramID(c, "projectId")
	if err != nil {
		return respondError(c, err, "listActivities")
	}
	if _, err := projectAccess(c, h.Engine, projectID); err != nil {
		return respondError(c, err, "listActivities")
	}

	entries, err := h.Engine.ListActivities(c.UserContext(), projectID, c.QueryInt("limit", services.DefaultActivityLimit))
	if err != nil {
		return respondError(c, err, "listActivities")
	}
	return utils.SuccessResponse(c, entries, fiber.StatusOK)
}
