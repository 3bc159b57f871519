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

package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/localnerve/permit-review/internal/blob"
	"github.com/localnerve/permit-review/internal/checklist"
	"github.com/localnerve/permit-review/internal/database"
	"github.com/localnerve/permit-review/internal/events"
	"github.com/localnerve/permit-review/internal/metrics"
	"github.com/localnerve/permit-review/internal/models"
	"github.com/localnerve/permit-review/internal/types"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/hints"
)

// UploadInput describes a new document version
type UploadInput struct {
	ProjectID  uint64
	Category   models.Category
	FileName   string
	FileType   string
	Content    []byte
	UploaderID string
}

// CategoryDocument is the current version of one category
type CategoryDocument struct {
	Category models.Category  `json:"category"`
	Label    string           `json:"label"`
	Versions int              `json:"versions"`
	Document *models.Document `json:"document"`
}

func (e *Engine) loadDocument(tx *gorm.DB, id uint64, withContent, lock bool) (*models.Document, error) {
	query := quiet(tx)
	if !withContent {
		query = query.Omit("content")
	}
	if lock {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var doc models.Document
	if err := query.First(&doc, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.NotFoundf("document %d", id)
		}
		return nil, fmt.Errorf("load document: %w", err)
	}
	return &doc, nil
}

// UploadDocument stores a new version of (project, category, file name).
// The version is one more than the highest existing version of that key. Two
// concurrent uploads of the same key collide on the unique version index and
// the loser retries with a fresh maximum.
func (e *Engine) UploadDocument(ctx context.Context, in UploadInput) (*models.Document, error) {
	fileName := strings.TrimSpace(in.FileName)
	if !in.Category.Valid() {
		return nil, types.Validationf("unknown document category %q", in.Category)
	}
	if fileName == "" {
		return nil, types.Validationf("fileName is required")
	}
	if strings.IndexFunc(fileName, unicode.IsControl) >= 0 {
		return nil, types.Validationf("fileName contains control characters")
	}
	if len(in.Content) == 0 {
		return nil, types.Validationf("content is required")
	}

	template, err := checklist.Render(in.Category)
	if err != nil {
		return nil, err
	}
	initial, err := models.NewJSON(template)
	if err != nil {
		return nil, fmt.Errorf("encode checklist: %w", err)
	}

	if _, err := e.loadProject(e.db.WithContext(ctx), in.ProjectID); err != nil {
		return nil, err
	}

	var contentKey string
	if e.blobs != nil {
		contentKey = blob.DocumentKey(in.ProjectID, in.Category, fileName)
		if err := e.blobs.Put(ctx, contentKey, in.Content, in.FileType); err != nil {
			return nil, fmt.Errorf("store document content: %w", err)
		}
	}

	var doc models.Document
	for attempt := 1; attempt <= e.versionAttempts; attempt++ {
		doc = models.Document{
			ProjectID:    in.ProjectID,
			Category:     in.Category,
			FileName:     fileName,
			FileType:     in.FileType,
			FileSize:     int64(len(in.Content)),
			ContentKey:   contentKey,
			Status:       models.StatusPendingReview,
			UploadedByID: in.UploaderID,
			UploadedAt:   e.now(),
			Checklist:    initial,
		}
		if contentKey == "" {
			doc.Content = in.Content
		}

		err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var current int
			if err := tx.Model(&models.Document{}).
				Clauses(hints.Comment("select", "document_next_version")).
				Where("project_id = ? AND category = ? AND file_name = ?", in.ProjectID, in.Category, fileName).
				Select("COALESCE(MAX(version), 0)").
				Scan(&current).Error; err != nil {
				return fmt.Errorf("read current version: %w", err)
			}

			doc.Version = current + 1
			if err := tx.Create(&doc).Error; err != nil {
				return err
			}

			return RecordActivity(tx, doc.ProjectID, in.UploaderID, ActivityDocumentUploaded,
				fmt.Sprintf("Uploaded %s (%s) version %d", doc.FileName, doc.Category.Label(), doc.Version))
		})
		if err == nil || !database.IsUniqueViolation(err) {
			break
		}
		e.log.Debug("document version taken, retrying",
			zap.String("fileName", fileName),
			zap.Int("attempt", attempt))
	}

	if err != nil {
		e.removeBlobs([]string{contentKey})
		if database.IsUniqueViolation(err) {
			return nil, fmt.Errorf("assign version for %s after %d attempts: %w", fileName, e.versionAttempts, err)
		}
		return nil, fmt.Errorf("create document: %w", err)
	}

	metrics.DocumentsUploaded.Inc()
	e.publish(events.Change{Entity: events.EntityDocument, EntityID: doc.ID, ProjectID: doc.ProjectID, Op: events.OpCreated, ActorID: in.UploaderID})

	return &doc, nil
}

// GetDocument returns a document with its content
func (e *Engine) GetDocument(ctx context.Context, id uint64) (*models.Document, error) {
	doc, err := e.loadDocument(e.db.WithContext(ctx), id, true, false)
	if err != nil {
		return nil, err
	}

	if doc.ContentKey != "" {
		if e.blobs == nil {
			e.log.Warn("document content is offloaded but no blob store is configured",
				zap.Uint64("documentId", doc.ID))
			return doc, nil
		}
		content, err := e.blobs.Get(ctx, doc.ContentKey)
		if errors.Is(err, blob.ErrNotFound) {
			e.log.Warn("document content missing from blob store",
				zap.Uint64("documentId", doc.ID), zap.String("key", doc.ContentKey))
			return nil, types.NotFoundf("content of document %d", doc.ID)
		}
		if err != nil {
			return nil, fmt.Errorf("load document content: %w", err)
		}
		doc.Content = content
	}

	return doc, nil
}

// DocumentProject returns the project a document belongs to
func (e *Engine) DocumentProject(ctx context.Context, id uint64) (uint64, error) {
	doc, err := e.loadDocument(e.db.WithContext(ctx), id, false, false)
	if err != nil {
		return 0, err
	}
	return doc.ProjectID, nil
}

// ListDocuments returns every document version of a project without content,
// in category order then newest version first.
func (e *Engine) ListDocuments(ctx context.Context, projectID uint64) ([]models.Document, error) {
	if _, err := e.loadProject(e.db.WithContext(ctx), projectID); err != nil {
		return nil, err
	}

	var docs []models.Document
	if err := e.db.WithContext(ctx).
		Omit("content").
		Where("project_id = ?", projectID).
		Order("version desc").
		Order("uploaded_at desc").
		Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].Category.Order() < docs[j].Category.Order()
	})
	return docs, nil
}

// CurrentDocuments reports the current version of every category in taxonomy
// order. Categories without documents have a nil Document.
func (e *Engine) CurrentDocuments(ctx context.Context, projectID uint64) ([]CategoryDocument, error) {
	docs, err := e.ListDocuments(ctx, projectID)
	if err != nil {
		return nil, err
	}

	byCategory := make(map[models.Category]*CategoryDocument, len(models.Categories))
	summaries := make([]CategoryDocument, len(models.Categories))
	for i, category := range models.Categories {
		summaries[i] = CategoryDocument{Category: category, Label: category.Label()}
		byCategory[category] = &summaries[i]
	}

	for i := range docs {
		doc := &docs[i]
		summary, ok := byCategory[doc.Category]
		if !ok {
			continue
		}
		summary.Versions++
		if isNewer(doc, summary.Document) {
			summary.Document = doc
		}
	}

	return summaries, nil
}

func isNewer(doc, current *models.Document) bool {
	if current == nil {
		return true
	}
	if doc.Version != current.Version {
		return doc.Version > current.Version
	}
	return doc.UploadedAt.After(current.UploadedAt)
}

// ListVersions returns every version sharing the document's key, newest first
func (e *Engine) ListVersions(ctx context.Context, id uint64) ([]models.Document, error) {
	doc, err := e.loadDocument(e.db.WithContext(ctx), id, false, false)
	if err != nil {
		return nil, err
	}

	var versions []models.Document
	if err := e.db.WithContext(ctx).
		Clauses(hints.Comment("select", "document_versions")).
		Omit("content").
		Where("project_id = ? AND category = ? AND file_name = ?", doc.ProjectID, doc.Category, doc.FileName).
		Order("version desc").
		Find(&versions).Error; err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	return versions, nil
}

// DeleteDocument removes one version and records the deletion
func (e *Engine) DeleteDocument(ctx context.Context, id uint64, actor Actor) (*models.Document, error) {
	var doc *models.Document
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if doc, err = e.loadDocument(tx, id, false, true); err != nil {
			return err
		}
		return e.deleteDocumentTx(tx, doc, actor)
	})
	if err != nil {
		return nil, err
	}

	e.afterDocumentsDeleted([]models.Document{*doc}, actor)
	return doc, nil
}

// DeleteDocuments removes several versions of one project atomically. Every id
// must exist and belong to the project or nothing is deleted.
func (e *Engine) DeleteDocuments(ctx context.Context, projectID uint64, ids []uint64, actor Actor) ([]models.Document, error) {
	unique := make([]uint64, 0, len(ids))
	seen := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; !dup {
			seen[id] = struct{}{}
			unique = append(unique, id)
		}
	}
	if len(unique) == 0 {
		return nil, types.Validationf("at least one document id is required")
	}

	var docs []models.Document
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := e.loadProject(tx, projectID); err != nil {
			return err
		}

		if err := tx.Omit("content").
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id IN ?", unique).
			Order("id").
			Find(&docs).Error; err != nil {
			return fmt.Errorf("load documents: %w", err)
		}

		found := make(map[uint64]struct{}, len(docs))
		for _, doc := range docs {
			found[doc.ID] = struct{}{}
			if doc.ProjectID != projectID {
				return fmt.Errorf("document %d is not part of project %d: %w", doc.ID, projectID, types.ErrForbidden)
			}
		}
		for _, id := range unique {
			if _, ok := found[id]; !ok {
				return types.NotFoundf("document %d", id)
			}
		}

		for i := range docs {
			if err := e.deleteDocumentTx(tx, &docs[i], actor); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.afterDocumentsDeleted(docs, actor)
	return docs, nil
}

func (e *Engine) deleteDocumentTx(tx *gorm.DB, doc *models.Document, actor Actor) error {
	if err := tx.Delete(&models.Document{}, doc.ID).Error; err != nil {
		return fmt.Errorf("delete document %d: %w", doc.ID, err)
	}
	return RecordActivity(tx, doc.ProjectID, actor.ID, ActivityDocumentDeleted,
		fmt.Sprintf("Deleted %s (%s) version %d", doc.FileName, doc.Category.Label(), doc.Version))
}

func (e *Engine) afterDocumentsDeleted(docs []models.Document, actor Actor) {
	keys := make([]string, 0, len(docs))
	for _, doc := range docs {
		keys = append(keys, doc.ContentKey)
	}
	e.removeBlobs(keys)

	for _, doc := range docs {
		e.publish(events.Change{Entity: events.EntityDocument, EntityID: doc.ID, ProjectID: doc.ProjectID, Op: events.OpDeleted, ActorID: actor.ID})
	}
}
