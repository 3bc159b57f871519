package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/permit-review/internal/models"
	"github.com/localnerve/permit-review/internal/services"
	"github.com/localnerve/permit-review/internal/types"
	"github.com/localnerve/permit-review/internal/utils"
)

// StakeholderHandler handles stakeholder and task routes
type StakeholderHandler struct {
	Engine *services.Engine
}

// StakeholderRequest adds or updates a stakeholder. On update, omitted fields are kept.
type StakeholderRequest struct {
	UserID             string            `json:"userId"`
	UserEmail          *string           `json:"userEmail"`
	UserName           *string           `json:"userName"`
	Roles              []models.Role     `json:"roles"`
	AssignedCategories []models.Category `json:"assignedCategories"`
}

// TaskRequest assigns a task
type TaskRequest struct {
	ProjectID        types.FlexUint64 `json:"projectId"`
	UserID           string           `json:"userId"`
	TaskType         models.TaskType  `json:"taskType"`
	DocumentCategory *models.Category `json:"documentCategory"`
	Description      string           `json:"description"`
	// DueDate is RFC 3339 or YYYY-MM-DD
	DueDate string `json:"dueDate"`
}

// TaskUpdateRequest changes a task. Omitted fields are kept.
type TaskUpdateRequest struct {
	Status       *models.TaskStatus `json:"status"`
	Description  *string            `json:"description"`
	DueDate      string             `json:"dueDate"`
	ClearDueDate bool               `json:"clearDueDate"`
}

func parseDueDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, types.Validationf("dueDate %q is not a date", raw)
}

func (r TaskRequest) input(actor services.Actor) (services.TaskInput, error) {
	due, err := parseDueDate(r.DueDate)
	if err != nil {
		return services.TaskInput{}, err
	}
	return services.TaskInput{
		TaskType:         r.TaskType,
		DocumentCategory: r.DocumentCategory,
		Description:      r.Description,
		DueDate:          due,
		AssignedBy:       actor,
	}, nil
}

// projectGuard is projectAccess or projectManage
type projectGuard func(c *fiber.Ctx, engine *services.Engine, projectID uint64) (services.Actor, error)

func stakeholderAccess(c *fiber.Ctx, engine *services.Engine, guard projectGuard) (uint64, services.Actor, error) {
	stakeholderID, err := paramID(c, "stakeholderId")
	if err != nil {
		return 0, services.Actor{}, err
	}
	projectID, err := engine.StakeholderProject(c.UserContext(), stakeholderID)
	if err != nil {
		return 0, services.Actor{}, err
	}
	actor, err := guard(c, engine, projectID)
	return stakeholderID, actor, err
}

func taskAccess(c *fiber.Ctx, engine *services.Engine, guard projectGuard) (uint64, services.Actor, error) {
	taskID, err := paramID(c, "taskId")
	if err != nil {
		return 0, services.Actor{}, err
	}
	projectID, err := engine.TaskProject(c.UserContext(), taskID)
	if err != nil {
		return 0, services.Actor{}, err
	}
	actor, err := guard(c, engine, projectID)
	return taskID, actor, err
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// List handles GET /api/projects/:projectId/stakeholders
// @Summary List stakeholders
// @Tags Stakeholders
// @Produce json
// @Param projectId path int true "Project ID"
// @Success 200 {array} models.Stakeholder
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /projects/{projectId}/stakeholders [get]
func (h *StakeholderHandler) List(c *fiber.Ctx) error {
	projectID, err := paramID(c, "projectId")
	if err != nil {
		return respondError(c, err, "listStakeholders")
	}
	if _, err := projectAccess(c, h.Engine, projectID); err != nil {
		return respondError(c, err, "listStakeholders")
	}

	list, err := h.Engine.ListStakeholders(c.UserContext(), projectID)
	if err != nil {
		return respondError(c, err, "listStakeholders")
	}
	return utils.SuccessResponse(c, list, fiber.StatusOK)
}

// Add handles POST /api/projects/:projectId/stakeholders
// @Summary Add a stakeholder
// @Description Adding a user who already is a stakeholder returns the existing membership with 200
// @Tags Stakeholders
// @Accept json
// @Produce json
// @Param projectId path int true "Project ID"
// @Param body body StakeholderRequest true "Stakeholder"
// @Success 201 {object} models.Stakeholder
// @Success 200 {object} models.Stakeholder
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /projects/{projectId}/stakeholders [post]
func (h *StakeholderHandler) Add(c *fiber.Ctx) error {
	projectID, err := paramID(c, "projectId")
	if err != nil {
		return respondError(c, err, "addStakeholder")
	}
	actor, err := projectManage(c, h.Engine, projectID)
	if err != nil {
		return respondError(c, err, "addStakeholder")
	}

	var body StakeholderRequest
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "Invalid input")
	}

	s, created, err := h.Engine.AddStakeholder(c.UserContext(), services.StakeholderInput{
		ProjectID:          projectID,
		UserID:             body.UserID,
		UserEmail:          deref(body.UserEmail),
		UserName:           deref(body.UserName),
		Roles:              body.Roles,
		AssignedCategories: body.AssignedCategories,
		AddedBy:            actor,
	})
	if err != nil {
		return respondError(c, err, "addStakeholder")
	}

	status := fiber.StatusOK
	if created {
		status = fiber.StatusCreated
	}
	return utils.SuccessResponse(c, s, status)
}

// Update handles PATCH /api/stakeholders/:stakeholderId
// @Summary Update a stakeholder
// @Tags Stakeholders
// @Accept json
// @Produce json
// @Param stakeholderId path int true "Stakeholder ID"
// @Param body body StakeholderRequest true "Fields to change, userId is ignored"
// @Success 200 {object} models.Stakeholder
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /stakeholders/{stakeholderId} [patch]
func (h *StakeholderHandler) Update(c *fiber.Ctx) error {
	stakeholderID, actor, err := stakeholderAccess(c, h.Engine, projectManage)
	if err != nil {
		return respondError(c, err, "updateStakeholder")
	}

	var body StakeholderRequest
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "Invalid input")
	}

	s, err := h.Engine.UpdateStakeholder(c.UserContext(), stakeholderID, services.StakeholderUpdate{
		UserEmail:          body.UserEmail,
		UserName:           body.UserName,
		Roles:              body.Roles,
		AssignedCategories: body.AssignedCategories,
	}, actor)
	if err != nil {
		return respondError(c, err, "updateStakeholder")
	}
	return utils.SuccessResponse(c, s, fiber.StatusOK)
}

// Remove handles DELETE /api/stakeholders/:stakeholderId
// @Summary Remove a stakeholder
// @Description The stakeholder's tasks are removed with it
// @Tags Stakeholders
// @Produce json
// @Param stakeholderId path int true "Stakeholder ID"
// @Success 200 {object} utils.SuccessResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /stakeholders/{stakeholderId} [delete]
func (h *StakeholderHandler) Remove(c *fiber.Ctx) error {
	stakeholderID, actor, err := stakeholderAccess(c, h.Engine, projectManage)
	if err != nil {
		return respondError(c, err, "removeStakeholder")
	}

	if _, err := h.Engine.RemoveStakeholder(c.UserContext(), stakeholderID, actor); err != nil {
		return respondError(c, err, "removeStakeholder")
	}
	return utils.MutationSuccessResponse(c, 1)
}

// ListTasks handles GET /api/stakeholders/:stakeholderId/tasks
// @Summary List a stakeholder's tasks
// @Tags Tasks
// @Produce json
// @Param stakeholderId path int true "Stakeholder ID"
// @Success 200 {array} models.StakeholderTask
// @Failure 404 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /stakeholders/{stakeholderId}/tasks [get]
func (h *StakeholderHandler) ListTasks(c *fiber.Ctx) error {
	stakeholderID, _, err := stakeholderAccess(c, h.Engine, projectAccess)
	if err != nil {
		return respondError(c, err, "listTasks")
	}

	tasks, err := h.Engine.ListTasks(c.UserContext(), stakeholderID)
	if err != nil {
		return respondError(c, err, "listTasks")
	}
	return utils.SuccessResponse(c, tasks, fiber.StatusOK)
}

// ProjectTasks handles GET /api/projects/:projectId/tasks
// @Summary List every task of a project
// @Tags Tasks
// @Produce json
// @Param projectId path int true "Project ID"
// @Success 200 {array} models.StakeholderTask
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /projects/{projectId}/tasks [get]
func (h *StakeholderHandler) ProjectTasks(c *fiber.Ctx) error {
	projectID, err := paramID(c, "projectId")
	if err != nil {
		return respondError(c, err, "listProjectTasks")
	}
	if _, err := projectAccess(c, h.Engine, projectID); err != nil {
		return respondError(c, err, "listProjectTasks")
	}

	tasks, err := h.Engine.ListProjectTasks(c.UserContext(), projectID)
	if err != nil {
		return respondError(c, err, "listProjectTasks")
	}
	return utils.SuccessResponse(c, tasks, fiber.StatusOK)
}

// AssignTask handles POST /api/stakeholders/:stakeholderId/tasks
// @Summary Assign a task to a stakeholder
// @Description The stakeholder is notified in-app and by e-mail when an address is known
// @Tags Tasks
// @Accept json
// @Produce json
// @Param stakeholderId path int true "Stakeholder ID"
// @Param body body TaskRequest true "Task, projectId and userId are ignored"
// @Success 201 {object} models.StakeholderTask
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /stakeholders/{stakeholderId}/tasks [post]
func (h *StakeholderHandler) AssignTask(c *fiber.Ctx) error {
	stakeholderID, actor, err := stakeholderAccess(c, h.Engine, projectManage)
	if err != nil {
		return respondError(c, err, "assignTask")
	}

	var body TaskRequest
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "Invalid input")
	}
	in, err := body.input(actor)
	if err != nil {
		return respondError(c, err, "assignTask")
	}

	task, err := h.Engine.AssignTask(c.UserContext(), stakeholderID, in)
	if err != nil {
		return respondError(c, err, "assignTask")
	}
	return utils.SuccessResponse(c, task, fiber.StatusCreated)
}

// AssignByUser handles POST /api/tasks/assign
// @Summary Assign a task by project and user
// @Tags Tasks
// @Accept json
// @Produce json
// @Param body body TaskRequest true "Task with projectId and userId"
// @Success 201 {object} models.StakeholderTask
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /tasks/assign [post]
func (h *StakeholderHandler) AssignByUser(c *fiber.Ctx) error {
	var body TaskRequest
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "Invalid input")
	}
	if body.ProjectID == 0 || strings.TrimSpace(body.UserID) == "" {
		return badRequest(c, "projectId and userId are required")
	}

	projectID := body.ProjectID.Uint64()
	actor, err := projectManage(c, h.Engine, projectID)
	if err != nil {
		return respondError(c, err, "assignTask")
	}
	in, err := body.input(actor)
	if err != nil {
		return respondError(c, err, "assignTask")
	}

	task, err := h.Engine.AssignTaskToUser(c.UserContext(), projectID, body.UserID, in)
	if err != nil {
		return respondError(c, err, "assignTask")
	}
	return utils.SuccessResponse(c, task, fiber.StatusCreated)
}

// UpdateTask handles PATCH /api/tasks/:taskId
// @Summary Update a task
// @Tags Tasks
// @Accept json
// @Produce json
// @Param taskId path int true "Task ID"
// @Param body body TaskUpdateRequest true "Fields to change"
// @Success 200 {object} models.StakeholderTask
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /tasks/{taskId} [patch]
func (h *StakeholderHandler) UpdateTask(c *fiber.Ctx) error {
	taskID, actor, err := taskAccess(c, h.Engine, projectAccess)
	if err != nil {
		return respondError(c, err, "updateTask")
	}

	var body TaskUpdateRequest
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "Invalid input")
	}
	due, err := parseDueDate(body.DueDate)
	if err != nil {
		return respondError(c, err, "updateTask")
	}

	task, err := h.Engine.UpdateTask(c.UserContext(), taskID, services.TaskUpdate{
		Status:      body.Status,
		Description: body.Description,
		DueDate:     due,
		ClearDue:    body.ClearDueDate,
	}, actor)
	if err != nil {
		return respondError(c, err, "updateTask")
	}
	return utils.SuccessResponse(c, task, fiber.StatusOK)
}

// DeleteTask handles DELETE /api/tasks/:taskId
// @Summary Delete a task
// @Tags Tasks
// @Produce json
// @Param taskId path int true "Task ID"
// @Success 200 {object} utils.SuccessResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /tasks/{taskId} [delete]
func (h *StakeholderHandler) DeleteTask(c *fiber.Ctx) error {
	taskID, actor, err := taskAccess(c, h.Engine, projectManage)
	if err != nil {
		return respondError(c, err, "deleteTask")
	}

	if _, err := h.Engine.DeleteTask(c.UserContext(), taskID, actor); err != nil {
		return respondError(c, err, "deleteTask")
	}
	return utils.MutationSuccessResponse(c, 1)
}
