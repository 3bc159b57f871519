// review.go
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

package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/localnerve/permit-review/internal/checklist"
	"github.com/localnerve/permit-review/internal/email"
	"github.com/localnerve/permit-review/internal/events"
	"github.com/localnerve/permit-review/internal/metrics"
	"github.com/localnerve/permit-review/internal/models"
	"github.com/localnerve/permit-review/internal/types"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RevertNote prefixes the comments of an approved document sent back to review
const RevertNote = "Reverted from Approved for additional review"

var transitions = map[models.DocumentStatus][]models.DocumentStatus{
	models.StatusPendingReview: {models.StatusPendingReview, models.StatusApproved, models.StatusRejected},
	models.StatusApproved:      {models.StatusPendingReview},
	models.StatusRejected:      {models.StatusPendingReview},
}

// CanTransition reports whether a document may move from one review state to another.
// A decided document has to be reverted to pending review before it is decided again.
func CanTransition(from, to models.DocumentStatus) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// ReviewInput is a reviewer's decision on one document version
type ReviewInput struct {
	DocumentID uint64
	Status     models.DocumentStatus
	Comment    string
	Checklist  []checklist.Item
	Reviewer   Actor

	// progressOnly refuses to revert decided documents
	progressOnly bool
}

// ChecklistState is the effective checklist of a document
type ChecklistState struct {
	DocumentID uint64                `json:"documentId"`
	Category   models.Category       `json:"category"`
	Status     models.DocumentStatus `json:"status"`
	Checklist  checklist.Checklist   `json:"checklist"`
	Checked    int                   `json:"checked"`
	Total      int                   `json:"total"`
	Complete   bool                  `json:"complete"`
}

type reviewOutcome struct {
	doc           *models.Document
	previous      models.DocumentStatus
	projectName   string
	uploaderEmail string
	uploaderName  string
}

// effectiveChecklist merges the persisted checklist state onto the category
// template. Rows without structured state fall back to parsing their comments.
func (e *Engine) effectiveChecklist(doc *models.Document) (checklist.Checklist, error) {
	template, err := checklist.Render(doc.Category)
	if err != nil {
		return checklist.Checklist{}, err
	}

	if !doc.Checklist.IsEmpty() {
		var persisted checklist.Checklist
		if err := doc.Checklist.Decode(&persisted); err == nil {
			return checklist.Merge(template, &persisted), nil
		}
		e.log.Warn("unreadable checklist state, parsing comments",
			zap.Uint64("documentId", doc.ID))
	}

	return checklist.Merge(template, checklist.Parse(doc.Comments)), nil
}

// ReviewDocument applies a review transition. Approval requires a complete
// checklist and rejection a reason; both are checked here, whatever the client did.
// A status change writes one activity entry and notifies the uploader.
func (e *Engine) ReviewDocument(ctx context.Context, in ReviewInput) (*models.Document, error) {
	if !in.Status.Valid() {
		return nil, types.Validationf("unknown review status %q", in.Status)
	}

	var out reviewOutcome
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		doc, err := e.loadDocument(tx, in.DocumentID, false, true)
		if err != nil {
			return err
		}
		out.doc = doc
		out.previous = doc.Status

		if in.progressOnly && doc.Status != models.StatusPendingReview {
			return fmt.Errorf("checklist of a %s document is read only: %w", doc.Status.DisplayName(), types.ErrInvalidTransition)
		}
		if !CanTransition(doc.Status, in.Status) {
			return fmt.Errorf("%s to %s: %w", doc.Status.DisplayName(), in.Status.DisplayName(), types.ErrInvalidTransition)
		}

		effective, err := e.effectiveChecklist(doc)
		if err != nil {
			return err
		}
		if len(in.Checklist) > 0 {
			effective = checklist.Merge(effective, &checklist.Checklist{Items: in.Checklist})
		}

		comments, err := reviewComments(doc, in, effective)
		if err != nil {
			return err
		}

		state, err := models.NewJSON(effective)
		if err != nil {
			return fmt.Errorf("encode checklist: %w", err)
		}

		reviewedAt := e.now()
		reviewer := in.Reviewer.ID
		if err := tx.Model(&models.Document{}).Where("id = ?", doc.ID).Updates(map[string]any{
			"status":         in.Status,
			"comments":       comments,
			"checklist":      state,
			"reviewed_by_id": reviewer,
			"reviewed_at":    reviewedAt,
		}).Error; err != nil {
			return fmt.Errorf("update document review: %w", err)
		}

		doc.Status = in.Status
		doc.Comments = comments
		doc.Checklist = state
		doc.ReviewedByID = &reviewer
		doc.ReviewedAt = &reviewedAt

		if out.previous == in.Status {
			return nil
		}

		if err := RecordActivity(tx, doc.ProjectID, reviewer, ActivityDocumentStatusChanged,
			fmt.Sprintf("%s v%d: %s → %s", doc.FileName, doc.Version, out.previous.DisplayName(), in.Status.DisplayName())); err != nil {
			return err
		}

		if doc.UploadedByID == "" || doc.UploadedByID == reviewer {
			return nil
		}
		return e.notifyUploader(tx, doc, &out)
	})
	if err != nil {
		return nil, err
	}

	doc := out.doc
	if out.previous != doc.Status {
		metrics.ReviewTransitions.WithLabelValues(string(doc.Status)).Inc()
		e.publish(events.Change{Entity: events.EntityDocument, EntityID: doc.ID, ProjectID: doc.ProjectID, Op: events.OpReviewed, ActorID: in.Reviewer.ID})

		if out.uploaderEmail != "" {
			msg, err := email.DocumentReviewed(out.uploaderEmail, email.ReviewData{
				UserName:    out.uploaderName,
				ProjectName: out.projectName,
				FileName:    doc.FileName,
				Version:     doc.Version,
				OldStatus:   out.previous.DisplayName(),
				NewStatus:   doc.Status.DisplayName(),
				Comments:    doc.Comments,
				ProjectURL:  e.projectURL(doc.ProjectID),
			})
			if err != nil {
				e.log.Warn("review email not rendered", zap.Error(err))
			} else {
				e.sendEmail(msg)
			}
		}
	}

	return doc, nil
}

func reviewComments(doc *models.Document, in ReviewInput, effective checklist.Checklist) (string, error) {
	switch in.Status {
	case models.StatusApproved:
		if !checklist.IsComplete(effective) {
			checked, total := effective.Counts()
			return "", fmt.Errorf("%d of %d items checked: %w", checked, total, types.ErrChecklistIncomplete)
		}
		return checklist.Serialize(effective, in.Comment), nil

	case models.StatusRejected:
		reason := strings.TrimSpace(in.Comment)
		if reason == "" {
			return "", types.ErrRejectionReasonRequired
		}
		return reason, nil
	}

	switch doc.Status {
	case models.StatusApproved:
		if strings.TrimSpace(doc.Comments) == "" {
			return RevertNote, nil
		}
		return RevertNote + "\n\n" + doc.Comments, nil
	case models.StatusRejected:
		return doc.Comments, nil
	}
	return checklist.Serialize(effective, in.Comment), nil
}

func (e *Engine) notifyUploader(tx *gorm.DB, doc *models.Document, out *reviewOutcome) error {
	project, err := e.loadProject(tx, doc.ProjectID)
	if err != nil {
		return err
	}
	out.projectName = project.Name

	var member models.Stakeholder
	err = quiet(tx).Where("project_id = ? AND user_id = ?", doc.ProjectID, doc.UploadedByID).First(&member).Error
	switch {
	case err == nil:
		out.uploaderEmail = member.UserEmail
		out.uploaderName = member.UserName
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("load uploader: %w", err)
	}

	_, err = Notify(tx, doc.UploadedByID, NotificationDocumentReview,
		fmt.Sprintf("%s %s", doc.FileName, doc.Status.DisplayName()),
		fmt.Sprintf("%s version %d on %s moved from %s to %s.",
			doc.FileName, doc.Version, project.Name, out.previous.DisplayName(), doc.Status.DisplayName()),
		map[string]any{
			"projectId":  doc.ProjectID,
			"documentId": doc.ID,
			"category":   doc.Category,
			"status":     doc.Status,
		})
	return err
}

// SaveChecklist persists reviewer progress on a pending document without deciding it
func (e *Engine) SaveChecklist(ctx context.Context, documentID uint64, items []checklist.Item, note string, reviewer Actor) (*models.Document, error) {
	return e.ReviewDocument(ctx, ReviewInput{
		DocumentID:   documentID,
		Status:       models.StatusPendingReview,
		Comment:      note,
		Checklist:    items,
		Reviewer:     reviewer,
		progressOnly: true,
	})
}

// DocumentChecklist returns the effective checklist of a document
func (e *Engine) DocumentChecklist(ctx context.Context, documentID uint64) (*ChecklistState, error) {
	doc, err := e.loadDocument(e.db.WithContext(ctx), documentID, false, false)
	if err != nil {
		return nil, err
	}

	effective, err := e.effectiveChecklist(doc)
	if err != nil {
		return nil, err
	}

	checked, total := effective.Counts()
	return &ChecklistState{
		DocumentID: doc.ID,
		Category:   doc.Category,
		Status:     doc.Status,
		Checklist:  effective,
		Checked:    checked,
		Total:      total,
		Complete:   checklist.IsComplete(effective),
	}, nil
}

func (e *Engine) projectURL(projectID uint64) string {
	if e.appURL == "" {
		return ""
	}
	return fmt.Sprintf("%s/projects/%d", e.appURL, projectID)
}
