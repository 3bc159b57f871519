// handlers_test.go
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
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/permit-review/internal/database"
	"github.com/localnerve/permit-review/internal/middleware"
	"github.com/localnerve/permit-review/internal/models"
	"github.com/localnerve/permit-review/internal/services"
	"github.com/localnerve/permit-review/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sessions = map[string]services.Actor{
	"customer-session":   {ID: "cust-1", Email: "owner@example.com", Roles: []string{services.RoleCustomer}},
	"specialist-session": {ID: "spec-1", Email: "reviewer@example.com", Roles: []string{services.RoleSpecialist}},
	"outsider-session":   {ID: "cust-9", Roles: []string{services.RoleCustomer}},
}

func fakeSessions(_ *fiber.Ctx, cookie string) (services.Actor, error) {
	actor, ok := sessions[cookie]
	if !ok {
		return services.Actor{}, errors.New("session expired")
	}
	return actor, nil
}

func newTestApp(t *testing.T, maxUpload int64) *fiber.App {
	t.Helper()

	db, err := database.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	engine := services.New(db)
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	api := app.Group("/api", middleware.VersionMiddleware())
	Register(api, Handlers{
		Projects:      &ProjectHandler{Engine: engine},
		Documents:     &DocumentHandler{Engine: engine, MaxUploadBytes: maxUpload},
		Stakeholders:  &StakeholderHandler{Engine: engine},
		Notifications: &NotificationHandler{Engine: engine},
	}, middleware.AuthUser(fakeSessions), middleware.AuthSpecialist(fakeSessions))
	app.Use(NotFound)
	return app
}

func call(t *testing.T, app *fiber.App, method, path, session string, body any, out any) int {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if session != "" {
		req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: session})
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out), "%s %s", method, path)
	}
	return resp.StatusCode
}

func createProject(t *testing.T, app *fiber.App) uint64 {
	t.Helper()
	var project models.Project
	status := call(t, app, http.MethodPost, "/api/projects", "customer-session", map[string]any{"name": "Warehouse 12"}, &project)
	require.Equal(t, http.StatusCreated, status)
	return project.ID
}

func uploadDoc(t *testing.T, app *fiber.App, projectID uint64, content string) models.Document {
	t.Helper()
	var doc models.Document
	status := call(t, app, http.MethodPost, fmt.Sprintf("/api/projects/%d/documents", projectID), "customer-session", UploadRequest{
		Category: string(models.CategorySitePlan),
		FileName: "Site.pdf",
		FileType: "application/pdf",
		Content:  base64.StdEncoding.EncodeToString([]byte(content)),
	}, &doc)
	require.Equal(t, http.StatusCreated, status)
	return doc
}

func TestSessionRequired(t *testing.T) {
	app := newTestApp(t, 1024)

	var body utils.ErrorResponseStruct
	assert.Equal(t, http.StatusUnauthorized, call(t, app, http.MethodGet, "/api/projects", "", nil, &body))
	assert.Equal(t, "authorization.user", body.Type)
	assert.False(t, body.Ok)

	assert.Equal(t, http.StatusUnauthorized, call(t, app, http.MethodGet, "/api/projects", "stale-session", nil, nil))
	assert.Equal(t, http.StatusOK, call(t, app, http.MethodGet, "/api/projects", "customer-session", nil, nil))
}

func TestUnknownRoute(t *testing.T) {
	app := newTestApp(t, 1024)

	var body utils.ErrorResponseStruct
	assert.Equal(t, http.StatusNotFound, call(t, app, http.MethodGet, "/nowhere", "", nil, &body))
	assert.Equal(t, "notFound", body.Type)
	assert.Equal(t, "/nowhere", body.URL)
}

func TestProjectAccess(t *testing.T) {
	app := newTestApp(t, 1024)
	projectID := createProject(t, app)
	path := fmt.Sprintf("/api/projects/%d", projectID)

	var body utils.ErrorResponseStruct
	assert.Equal(t, http.StatusForbidden, call(t, app, http.MethodGet, path, "outsider-session", nil, &body))
	assert.Equal(t, "forbidden", body.Type)

	assert.Equal(t, http.StatusOK, call(t, app, http.MethodGet, path, "specialist-session", nil, nil))
	assert.Equal(t, http.StatusNotFound, call(t, app, http.MethodGet, "/api/projects/999", "customer-session", nil, nil))
	assert.Equal(t, http.StatusBadRequest, call(t, app, http.MethodGet, "/api/projects/abc", "customer-session", nil, nil))

	assert.Equal(t, http.StatusForbidden, call(t, app, http.MethodDelete, path, "outsider-session", nil, nil))
	assert.Equal(t, http.StatusOK, call(t, app, http.MethodDelete, path, "customer-session", nil, nil))
	assert.Equal(t, http.StatusNotFound, call(t, app, http.MethodGet, path, "customer-session", nil, nil))
}

func TestUploadAcceptsDataURL(t *testing.T) {
	app := newTestApp(t, 1024)
	projectID := createProject(t, app)

	var doc models.Document
	status := call(t, app, http.MethodPost, fmt.Sprintf("/api/projects/%d/documents", projectID), "customer-session", UploadRequest{
		Category: string(models.CategorySitePlan),
		FileName: "Site.pdf",
		FileType: "application/pdf",
		Content:  "data:application/pdf;base64," + base64.StdEncoding.EncodeToString([]byte("%PDF-1.7 site")),
	}, &doc)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, 1, doc.Version)
	assert.Equal(t, int64(len("%PDF-1.7 site")), doc.FileSize)
	assert.Nil(t, doc.Content)
	assert.Equal(t, models.StatusPendingReview, doc.Status)

	second := uploadDoc(t, app, projectID, "%PDF-1.7 site v2")
	assert.Equal(t, 2, second.Version)

	var fetched models.Document
	require.Equal(t, http.StatusOK, call(t, app, http.MethodGet, fmt.Sprintf("/api/documents/%d", doc.ID), "customer-session", nil, &fetched))
	assert.Equal(t, []byte("%PDF-1.7 site"), fetched.Content)

	var versions []models.Document
	require.Equal(t, http.StatusOK, call(t, app, http.MethodGet, fmt.Sprintf("/api/documents/%d/versions", doc.ID), "customer-session", nil, &versions))
	require.Len(t, versions, 2)
	assert.Equal(t, 2, versions[0].Version)
}

func TestUploadRejections(t *testing.T) {
	app := newTestApp(t, 16)
	projectID := createProject(t, app)
	path := fmt.Sprintf("/api/projects/%d/documents", projectID)

	var body utils.ErrorResponseStruct
	status := call(t, app, http.MethodPost, path, "customer-session", UploadRequest{
		Category: string(models.CategorySitePlan),
		FileName: "Site.pdf",
		FileSize: 4096,
		Content:  base64.StdEncoding.EncodeToString([]byte("small")),
	}, &body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, status)
	assert.Equal(t, "upload.too_large", body.Type)

	status = call(t, app, http.MethodPost, path, "customer-session", UploadRequest{
		Category: string(models.CategorySitePlan),
		FileName: "Site.pdf",
		Content:  base64.StdEncoding.EncodeToString(bytes.Repeat([]byte("x"), 64)),
	}, nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, status)

	status = call(t, app, http.MethodPost, path, "customer-session", UploadRequest{
		Category: "landscaping",
		FileName: "Site.pdf",
		Content:  base64.StdEncoding.EncodeToString([]byte("small")),
	}, &body)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "validation", body.Type)

	status = call(t, app, http.MethodPost, path, "customer-session", UploadRequest{
		Category: string(models.CategorySitePlan),
		FileName: "Site.pdf",
		Content:  "not base64 at all!",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestReviewStatusCodes(t *testing.T) {
	app := newTestApp(t, 1024)
	projectID := createProject(t, app)
	doc := uploadDoc(t, app, projectID, "%PDF-1.7 site")
	path := fmt.Sprintf("/api/documents/%d", doc.ID)

	var body utils.ErrorResponseStruct
	assert.Equal(t, http.StatusForbidden, call(t, app, http.MethodPatch, path, "customer-session",
		ReviewRequest{Status: models.StatusRejected, Comments: "no"}, &body))
	assert.Equal(t, "authorization.specialist", body.Type)

	assert.Equal(t, http.StatusUnprocessableEntity, call(t, app, http.MethodPatch, path, "specialist-session",
		ReviewRequest{Status: models.StatusApproved}, &body))
	assert.Equal(t, "review.checklist_incomplete", body.Type)

	assert.Equal(t, http.StatusUnprocessableEntity, call(t, app, http.MethodPatch, path, "specialist-session",
		ReviewRequest{Status: models.StatusRejected, Comments: "  "}, &body))
	assert.Equal(t, "review.rejection_reason_required", body.Type)

	var rejected models.Document
	require.Equal(t, http.StatusOK, call(t, app, http.MethodPatch, path, "specialist-session",
		ReviewRequest{Status: models.StatusRejected, Comments: "Missing north arrow"}, &rejected))
	assert.Equal(t, models.StatusRejected, rejected.Status)
	assert.Equal(t, "Missing north arrow", rejected.Comments)

	assert.Equal(t, http.StatusConflict, call(t, app, http.MethodPatch, path, "specialist-session",
		ReviewRequest{Status: models.StatusApproved}, &body))
	assert.Equal(t, "review.transition", body.Type)

	assert.Equal(t, http.StatusBadRequest, call(t, app, http.MethodPatch, path, "specialist-session",
		ReviewRequest{Status: "archived"}, nil))

	var notifications []models.Notification
	require.Equal(t, http.StatusOK, call(t, app, http.MethodGet, "/api/notifications?unread=true", "customer-session", nil, &notifications))
	require.Len(t, notifications, 1)
	assert.Equal(t, services.NotificationDocumentReview, notifications[0].Type)

	var done utils.SuccessResponseStruct
	require.Equal(t, http.StatusOK, call(t, app, http.MethodPost, "/api/notifications/read-all", "customer-session", nil, &done))
	assert.Equal(t, int64(1), done.AffectedRows)
}

func TestChecklistRoutes(t *testing.T) {
	app := newTestApp(t, 1024)
	projectID := createProject(t, app)
	doc := uploadDoc(t, app, projectID, "%PDF-1.7 site")
	path := fmt.Sprintf("/api/documents/%d/checklist", doc.ID)

	var state services.ChecklistState
	require.Equal(t, http.StatusOK, call(t, app, http.MethodGet, path, "customer-session", nil, &state))
	require.NotEmpty(t, state.Checklist.Items)
	assert.Equal(t, 0, state.Checked)
	assert.False(t, state.Complete)

	items := state.Checklist.Items
	items[0].Checked = true
	assert.Equal(t, http.StatusForbidden, call(t, app, http.MethodPut, path, "customer-session", ReviewRequest{Checklist: items}, nil))

	var saved services.ChecklistState
	require.Equal(t, http.StatusOK, call(t, app, http.MethodPut, path, "specialist-session", ReviewRequest{Checklist: items}, &saved))
	assert.Equal(t, 1, saved.Checked)
	assert.Equal(t, models.StatusPendingReview, saved.Status)

	assert.Equal(t, http.StatusOK, call(t, app, http.MethodGet, "/api/checklists/site_plan", "customer-session", nil, nil))
	assert.Equal(t, http.StatusBadRequest, call(t, app, http.MethodGet, "/api/checklists/landscaping", "customer-session", nil, nil))
}

func TestDeleteManyIsAllOrNothing(t *testing.T) {
	app := newTestApp(t, 1024)
	projectID := createProject(t, app)
	doc := uploadDoc(t, app, projectID, "%PDF-1.7 site")
	path := fmt.Sprintf("/api/projects/%d/documents/delete", projectID)

	assert.Equal(t, http.StatusNotFound, call(t, app, http.MethodPost, path, "customer-session",
		map[string]any{"ids": []any{doc.ID, 999}}, nil))
	assert.Equal(t, http.StatusOK, call(t, app, http.MethodGet, fmt.Sprintf("/api/documents/%d", doc.ID), "customer-session", nil, nil))

	var done utils.SuccessResponseStruct
	require.Equal(t, http.StatusOK, call(t, app, http.MethodPost, path, "customer-session",
		map[string]any{"ids": fmt.Sprint(doc.ID)}, &done))
	assert.Equal(t, int64(1), done.AffectedRows)
	assert.Equal(t, http.StatusNotFound, call(t, app, http.MethodGet, fmt.Sprintf("/api/documents/%d", doc.ID), "customer-session", nil, nil))
}

func TestDeleteInOtherProjectIsForbidden(t *testing.T) {
	app := newTestApp(t, 1024)
	first := createProject(t, app)
	second := createProject(t, app)
	doc := uploadDoc(t, app, first, "%PDF-1.7 site")

	assert.Equal(t, http.StatusForbidden, call(t, app, http.MethodDelete,
		fmt.Sprintf("/api/projects/%d/documents/%d", second, doc.ID), "customer-session", nil, nil))
	assert.Equal(t, http.StatusOK, call(t, app, http.MethodDelete,
		fmt.Sprintf("/api/projects/%d/documents/%d", first, doc.ID), "customer-session", nil, nil))
}

func TestStakeholderAndTaskRoutes(t *testing.T) {
	app := newTestApp(t, 1024)
	projectID := createProject(t, app)
	path := fmt.Sprintf("/api/projects/%d/stakeholders", projectID)

	add := map[string]any{
		"userId":             "cust-9",
		"userEmail":          "arch@example.com",
		"userName":           "Robin Architect",
		"roles":              []string{"architect"},
		"assignedCategories": []string{"site_plan"},
	}
	var member models.Stakeholder
	require.Equal(t, http.StatusCreated, call(t, app, http.MethodPost, path, "customer-session", add, &member))
	assert.Equal(t, http.StatusOK, call(t, app, http.MethodPost, path, "customer-session", add, nil))

	// the new stakeholder can now see the project
	assert.Equal(t, http.StatusOK, call(t, app, http.MethodGet, fmt.Sprintf("/api/projects/%d", projectID), "outsider-session", nil, nil))

	assert.Equal(t, http.StatusBadRequest, call(t, app, http.MethodPost, "/api/tasks/assign", "customer-session", map[string]any{
		"projectId":   projectID,
		"userId":      "cust-9",
		"taskType":    "provide_document",
		"description": "Upload the site plan",
		"dueDate":     "next week",
	}, nil))

	var task models.StakeholderTask
	require.Equal(t, http.StatusCreated, call(t, app, http.MethodPost, "/api/tasks/assign", "customer-session", map[string]any{
		"projectId":        fmt.Sprint(projectID),
		"userId":           "cust-9",
		"taskType":         "provide_document",
		"documentCategory": "site_plan",
		"description":      "Upload the site plan",
		"dueDate":          "2026-11-01",
	}, &task))
	assert.Equal(t, models.TaskPending, task.Status)
	require.NotNil(t, task.DueDate)

	var notifications []models.Notification
	require.Equal(t, http.StatusOK, call(t, app, http.MethodGet, "/api/notifications", "outsider-session", nil, &notifications))
	require.Len(t, notifications, 1)
	assert.Equal(t, services.NotificationTaskAssigned, notifications[0].Type)

	var read models.Notification
	require.Equal(t, http.StatusOK, call(t, app, http.MethodPost,
		fmt.Sprintf("/api/notifications/%d/read", notifications[0].ID), "outsider-session", nil, &read))
	assert.True(t, read.IsRead)
	assert.Equal(t, http.StatusNotFound, call(t, app, http.MethodPost,
		fmt.Sprintf("/api/notifications/%d/read", notifications[0].ID), "customer-session", nil, nil))

	var updated models.StakeholderTask
	require.Equal(t, http.StatusOK, call(t, app, http.MethodPatch, fmt.Sprintf("/api/tasks/%d", task.ID), "outsider-session",
		map[string]any{"status": "completed", "clearDueDate": true}, &updated))
	assert.Equal(t, models.TaskCompleted, updated.Status)
	assert.Nil(t, updated.DueDate)

	var tasks []models.StakeholderTask
	require.Equal(t, http.StatusOK, call(t, app, http.MethodGet, fmt.Sprintf("/api/stakeholders/%d/tasks", member.ID), "customer-session", nil, &tasks))
	assert.Len(t, tasks, 1)

	require.Equal(t, http.StatusOK, call(t, app, http.MethodDelete, fmt.Sprintf("/api/stakeholders/%d", member.ID), "customer-session", nil, nil))
	assert.Equal(t, http.StatusForbidden, call(t, app, http.MethodGet, fmt.Sprintf("/api/projects/%d/tasks", projectID), "outsider-session", nil, nil))

	require.Equal(t, http.StatusOK, call(t, app, http.MethodGet, fmt.Sprintf("/api/projects/%d/tasks", projectID), "customer-session", nil, &tasks))
	assert.Empty(t, tasks)
}

func TestStakeholderCannotManageProject(t *testing.T) {
	app := newTestApp(t, 1024)
	projectID := createProject(t, app)
	path := fmt.Sprintf("/api/projects/%d/stakeholders", projectID)

	var member models.Stakeholder
	require.Equal(t, http.StatusCreated, call(t, app, http.MethodPost, path, "customer-session", map[string]any{
		"userId": "cust-9",
		"roles":  []string{"contractor"},
	}, &member))

	var task models.StakeholderTask
	require.Equal(t, http.StatusCreated, call(t, app, http.MethodPost, fmt.Sprintf("/api/stakeholders/%d/tasks", member.ID), "customer-session",
		map[string]any{"taskType": "review_document", "description": "Check the plans"}, &task))

	// a plain stakeholder sees the project but cannot change membership or tasks
	assert.Equal(t, http.StatusOK, call(t, app, http.MethodGet, path, "outsider-session", nil, nil))
	assert.Equal(t, http.StatusForbidden, call(t, app, http.MethodPost, path, "outsider-session",
		map[string]any{"userId": "stranger", "roles": []string{"other"}}, nil))
	assert.Equal(t, http.StatusForbidden, call(t, app, http.MethodPatch, fmt.Sprintf("/api/stakeholders/%d", member.ID), "outsider-session",
		map[string]any{"roles": []string{"owner"}}, nil))
	assert.Equal(t, http.StatusForbidden, call(t, app, http.MethodPost, fmt.Sprintf("/api/stakeholders/%d/tasks", member.ID), "outsider-session",
		map[string]any{"taskType": "review_document", "description": "Self assigned"}, nil))
	assert.Equal(t, http.StatusForbidden, call(t, app, http.MethodPost, "/api/tasks/assign", "outsider-session", map[string]any{
		"projectId":   projectID,
		"userId":      "cust-9",
		"taskType":    "review_document",
		"description": "Self assigned",
	}, nil))
	assert.Equal(t, http.StatusForbidden, call(t, app, http.MethodDelete, fmt.Sprintf("/api/tasks/%d", task.ID), "outsider-session", nil, nil))
	assert.Equal(t, http.StatusForbidden, call(t, app, http.MethodDelete, fmt.Sprintf("/api/stakeholders/%d", member.ID), "outsider-session", nil, nil))
	assert.Equal(t, http.StatusForbidden, call(t, app, http.MethodDelete, fmt.Sprintf("/api/projects/%d", projectID), "outsider-session", nil, nil))

	// the assignee still works their own task
	assert.Equal(t, http.StatusOK, call(t, app, http.MethodPatch, fmt.Sprintf("/api/tasks/%d", task.ID), "outsider-session",
		map[string]any{"status": "in_progress"}, nil))

	var members []models.Stakeholder
	require.Equal(t, http.StatusOK, call(t, app, http.MethodGet, path, "customer-session", nil, &members))
	assert.Len(t, members, 1)

	// specialists manage any project
	assert.Equal(t, http.StatusOK, call(t, app, http.MethodDelete, fmt.Sprintf("/api/tasks/%d", task.ID), "specialist-session", nil, nil))
}
