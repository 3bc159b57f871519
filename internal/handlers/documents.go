// documents.go
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
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/permit-review/internal/checklist"
	"github.com/localnerve/permit-review/internal/models"
	"github.com/localnerve/permit-review/internal/services"
	"github.com/localnerve/permit-review/internal/types"
	"github.com/localnerve/permit-review/internal/utils"
)

// DocumentHandler handles document and review routes
type DocumentHandler struct {
	Engine         *services.Engine
	MaxUploadBytes int64
}

// UploadRequest is the body of a document upload
type UploadRequest struct {
	Category string `json:"category"`
	FileName string `json:"fileName"`
	FileType string `json:"fileType"`
	FileSize int64  `json:"fileSize"`
	// Content is base64, optionally as a data URL
	Content string `json:"content"`
}

// DeleteManyRequest lists the document versions to delete
type DeleteManyRequest struct {
	IDs types.FlexList[types.FlexUint64] `json:"ids"`
}

// ReviewRequest is a review decision or a checklist progress save
type ReviewRequest struct {
	Status    models.DocumentStatus `json:"status"`
	Comments  string                `json:"comments"`
	Checklist []checklist.Item      `json:"checklist"`
}

// documentAccess resolves the document's project and checks the actor may see it
func documentAccess(c *fiber.Ctx, engine *services.Engine) (uint64, services.Actor, error) {
	documentID, err := paramID(c, "documentId")
	if err != nil {
		return 0, services.Actor{}, err
	}
	projectID, err := engine.DocumentProject(c.UserContext(), documentID)
	if err != nil {
		return 0, services.Actor{}, err
	}
	actor, err := projectAccess(c, engine, projectID)
	return documentID, actor, err
}

// List handles GET /api/projects/:projectId/documents
// @Summary List project documents
// @Description Every version of every document, without content, in category order then newest version first
// @Tags Documents
// @Produce json
// @Param projectId path int true "Project ID"
// @Success 200 {array} models.Document
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /projects/{projectId}/documents [get]
func (h *DocumentHandler) List(c *fiber.Ctx) error {
	projectID, err := paramID(c, "projectId")
	if err != nil {
		return respondError(c, err, "listDocuments")
	}
	if _, err := projectAccess(c, h.Engine, projectID); err != nil {
		return respondError(c, err, "listDocuments")
	}

	docs, err := h.Engine.ListDocuments(c.UserContext(), projectID)
	if err != nil {
		return respondError(c, err, "listDocuments")
	}
	return utils.SuccessResponse(c, docs, fiber.StatusOK)
}

// Current handles GET /api/projects/:projectId/documents/current
// @Summary Current document per category
// @Description One entry per category in taxonomy order, document is null for categories without uploads
// @Tags Documents
// @Produce json
// @Param projectId path int true "Project ID"
// @Success 200 {array} services.CategoryDocument
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /projects/{projectId}/documents/current [get]
func (h *DocumentHandler) Current(c *fiber.Ctx) error {
	projectID, err := paramID(c, "projectId")
	if err != nil {
		return respondError(c, err, "currentDocuments")
	}
	if _, err := projectAccess(c, h.Engine, projectID); err != nil {
		return respondError(c, err, "currentDocuments")
	}

	current, err := h.Engine.CurrentDocuments(c.UserContext(), projectID)
	if err != nil {
		return respondError(c, err, "currentDocuments")
	}
	return utils.SuccessResponse(c, current, fiber.StatusOK)
}

// Upload handles POST /api/projects/:projectId/documents
// @Summary Upload a document version
// @Description Uploading a file name that already exists in the category creates the next version
// @Tags Documents
// @Accept json
// @Produce json
// @Param projectId path int true "Project ID"
// @Param body body UploadRequest true "Document with base64 content"
// @Success 201 {object} models.Document
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 413 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /projects/{projectId}/documents [post]
func (h *DocumentHandler) Upload(c *fiber.Ctx) error {
	projectID, err := paramID(c, "projectId")
	if err != nil {
		return respondError(c, err, "uploadDocument")
	}
	actor, err := projectAccess(c, h.Engine, projectID)
	if err != nil {
		return respondError(c, err, "uploadDocument")
	}

	var body UploadRequest
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "Invalid input")
	}

	category, err := models.ParseCategory(body.Category)
	if err != nil {
		return respondError(c, types.Validationf("%v", err), "uploadDocument")
	}

	limit := h.MaxUploadBytes
	if body.FileSize > limit {
		return respondError(c, tooLarge(body.FileSize, limit), "uploadDocument")
	}
	// base64 grows by a third, reject before decoding
	if encoded := int64(len(body.Content)); encoded/4*3 > limit+3 {
		return respondError(c, tooLarge(encoded/4*3, limit), "uploadDocument")
	}

	content, err := decodeContent(body.Content)
	if err != nil {
		return respondError(c, err, "uploadDocument")
	}
	if int64(len(content)) > limit {
		return respondError(c, tooLarge(int64(len(content)), limit), "uploadDocument")
	}

	doc, err := h.Engine.UploadDocument(c.UserContext(), services.UploadInput{
		ProjectID:  projectID,
		Category:   category,
		FileName:   body.FileName,
		FileType:   body.FileType,
		Content:    content,
		UploaderID: actor.ID,
	})
	if err != nil {
		return respondError(c, err, "uploadDocument")
	}

	// the upload response does not echo the content back
	doc.Content = nil
	return utils.SuccessResponse(c, doc, fiber.StatusCreated)
}

// DeleteMany handles POST /api/projects/:projectId/documents/delete
// @Summary Delete several document versions
// @Description All ids must exist and belong to the project, otherwise nothing is deleted
// @Tags Documents
// @Accept json
// @Produce json
// @Param projectId path int true "Project ID"
// @Param body body DeleteManyRequest true "Document ids, a single id is accepted"
// @Success 200 {object} utils.SuccessResponseStruct
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /projects/{projectId}/documents/delete [post]
func (h *DocumentHandler) DeleteMany(c *fiber.Ctx) error {
	projectID, err := paramID(c, "projectId")
	if err != nil {
		return respondError(c, err, "deleteDocuments")
	}
	actor, err := projectAccess(c, h.Engine, projectID)
	if err != nil {
		return respondError(c, err, "deleteDocuments")
	}

	var body DeleteManyRequest
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "Invalid input")
	}

	deleted, err := h.Engine.DeleteDocuments(c.UserContext(), projectID, types.Uint64s(body.IDs.Slice()), actor)
	if err != nil {
		return respondError(c, err, "deleteDocuments")
	}
	return utils.MutationSuccessResponse(c, int64(len(deleted)))
}

// DeleteInProject handles DELETE /api/projects/:projectId/documents/:documentId
// @Summary Delete a document version of a project
// @Tags Documents
// @Produce json
// @Param projectId path int true "Project ID"
// @Param documentId path int true "Document ID"
// @Success 200 {object} utils.SuccessResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /projects/{projectId}/documents/{documentId} [delete]
func (h *DocumentHandler) DeleteInProject(c *fiber.Ctx) error {
	projectID, err := paramID(c, "projectId")
	if err != nil {
		return respondError(c, err, "deleteDocument")
	}
	documentID, actor, err := documentAccess(c, h.Engine)
	if err != nil {
		return respondError(c, err, "deleteDocument")
	}

	owner, err := h.Engine.DocumentProject(c.UserContext(), documentID)
	if err != nil {
		return respondError(c, err, "deleteDocument")
	}
	if owner != projectID {
		return respondError(c, fmt.Errorf("document %d is not part of project %d: %w", documentID, projectID, types.ErrForbidden), "deleteDocument")
	}

	if _, err := h.Engine.DeleteDocument(c.UserContext(), documentID, actor); err != nil {
		return respondError(c, err, "deleteDocument")
	}
	return utils.MutationSuccessResponse(c, 1)
}

// Delete handles DELETE /api/documents/:documentId
// @Summary Delete a document version
// @Tags Documents
// @Produce json
// @Param documentId path int true "Document ID"
// @Success 200 {object} utils.SuccessResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /documents/{documentId} [delete]
func (h *DocumentHandler) Delete(c *fiber.Ctx) error {
	documentID, actor, err := documentAccess(c, h.Engine)
	if err != nil {
		return respondError(c, err, "deleteDocument")
	}

	if _, err := h.Engine.DeleteDocument(c.UserContext(), documentID, actor); err != nil {
		return respondError(c, err, "deleteDocument")
	}
	return utils.MutationSuccessResponse(c, 1)
}

// Get handles GET /api/documents/:documentId
// @Summary Get a document version with its content
// @Description content is base64 encoded
// @Tags Documents
// @Produce json
// @Param documentId path int true "Document ID"
// @Success 200 {object} models.Document
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /documents/{documentId} [get]
func (h *DocumentHandler) Get(c *fiber.Ctx) error {
	documentID, _, err := documentAccess(c, h.Engine)
	if err != nil {
		return respondError(c, err, "getDocument")
	}

	doc, err := h.Engine.GetDocument(c.UserContext(), documentID)
	if err != nil {
		return respondError(c, err, "getDocument")
	}
	return utils.SuccessResponse(c, doc, fiber.StatusOK)
}

// Versions handles GET /api/documents/:documentId/versions
// @Summary Version history
// @Description Every version sharing the document's project, category and file name, newest first
// @Tags Documents
// @Produce json
// @Param documentId path int true "Document ID"
// @Success 200 {array} models.Document
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /documents/{documentId}/versions [get]
func (h *DocumentHandler) Versions(c *fiber.Ctx) error {
	documentID, _, err := documentAccess(c, h.Engine)
	if err != nil {
		return respondError(c, err, "listVersions")
	}

	versions, err := h.Engine.ListVersions(c.UserContext(), documentID)
	if err != nil {
		return respondError(c, err, "listVersions")
	}
	return utils.SuccessResponse(c, versions, fiber.StatusOK)
}

// Review handles PATCH /api/documents/:documentId
// @Summary Review a document version
// @Description Approval needs every checklist item checked, rejection needs a reason. A decided document must be set back to pending_review before it can be decided again.
// @Tags Review
// @Accept json
// @Produce json
// @Param documentId path int true "Document ID"
// @Param body body ReviewRequest true "Target status, comments and checklist item states"
// @Success 200 {object} models.Document
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Failure 422 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /documents/{documentId} [patch]
func (h *DocumentHandler) Review(c *fiber.Ctx) error {
	documentID, actor, err := documentAccess(c, h.Engine)
	if err != nil {
		return respondError(c, err, "reviewDocument")
	}

	var body ReviewRequest
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "Invalid input")
	}

	doc, err := h.Engine.ReviewDocument(c.UserContext(), services.ReviewInput{
		DocumentID: documentID,
		Status:     body.Status,
		Comment:    body.Comments,
		Checklist:  body.Checklist,
		Reviewer:   actor,
	})
	if err != nil {
		return respondError(c, err, "reviewDocument")
	}
	return utils.SuccessResponse(c, doc, fiber.StatusOK)
}

// Checklist handles GET /api/documents/:documentId/checklist
// @Summary Effective review checklist
// @Tags Review
// @Produce json
// @Param documentId path int true "Document ID"
// @Success 200 {object} services.ChecklistState
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /documents/{documentId}/checklist [get]
func (h *DocumentHandler) Checklist(c *fiber.Ctx) error {
	documentID, _, err := documentAccess(c, h.Engine)
	if err != nil {
		return respondError(c, err, "documentChecklist")
	}

	state, err := h.Engine.DocumentChecklist(c.UserContext(), documentID)
	if err != nil {
		return respondError(c, err, "documentChecklist")
	}
	return utils.SuccessResponse(c, state, fiber.StatusOK)
}

// SaveChecklist handles PUT /api/documents/:documentId/checklist
// @Summary Save checklist progress
// @Description Persists item states on a pending document without deciding it
// @Tags Review
// @Accept json
// @Produce json
// @Param documentId path int true "Document ID"
// @Param body body ReviewRequest true "Checklist item states and an optional note, status is ignored"
// @Success 200 {object} services.ChecklistState
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /documents/{documentId}/checklist [put]
func (h *DocumentHandler) SaveChecklist(c *fiber.Ctx) error {
	documentID, actor, err := documentAccess(c, h.Engine)
	if err != nil {
		return respondError(c, err, "saveChecklist")
	}

	var body ReviewRequest
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "Invalid input")
	}

	if _, err := h.Engine.SaveChecklist(c.UserContext(), documentID, body.Checklist, body.Comments, actor); err != nil {
		return respondError(c, err, "saveChecklist")
	}

	state, err := h.Engine.DocumentChecklist(c.UserContext(), documentID)
	if err != nil {
		return respondError(c, err, "saveChecklist")
	}
	return utils.SuccessResponse(c, state, fiber.StatusOK)
}

// Template handles GET /api/checklists/:category
// @Summary Blank checklist template
// @Tags Review
// @Produce json
// @Param category path string true "Document category"
// @Success 200 {object} checklist.Checklist
// @Failure 400 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /checklists/{category} [get]
func (h *DocumentHandler) Template(c *fiber.Ctx) error {
	category, err := models.ParseCategory(c.Params("category"))
	if err != nil {
		return badRequest(c, err.Error())
	}

	template, err := checklist.Render(category)
	if err != nil {
		return respondError(c, err, "checklistTemplate")
	}
	return utils.SuccessResponse(c, template, fiber.StatusOK)
}
