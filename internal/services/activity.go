package services

import (
	"context"
	"fmt"

	"github.com/localnerve/permit-review/internal/models"
	"gorm.io/gorm"
	"gorm.io/hints"
)

// Activity types written to the project audit trail
const (
	ActivityProjectCreated        = "project_created"
	ActivityProjectUpdated        = "project_updated"
	ActivityDocumentUploaded      = "document_uploaded"
	ActivityDocumentDeleted       = "document_deleted"
	ActivityDocumentStatusChanged = "document_status_changed"
	ActivityStakeholderAdded      = "stakeholder_added"
	ActivityStakeholderUpdated    = "stakeholder_updated"
	ActivityStakeholderRemoved    = "stakeholder_removed"
	ActivityTaskAssigned          = "task_assigned"
	ActivityTaskUpdated           = "task_updated"
	ActivityTaskDeleted           = "task_deleted"
)

// DefaultActivityLimit caps activity listings when no limit is given
const DefaultActivityLimit = 200

// RecordActivity appends one audit entry inside the caller's transaction.
// Entries are never updated; they go away only with their project.
func RecordActivity(tx *gorm.DB, projectID uint64, userID, activityType, description string) error {
	entry := models.ActivityLog{
		ProjectID:    projectID,
		UserID:       userID,
		ActivityType: activityType,
		Description:  description,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return fmt.Errorf("record %s activity: %w", activityType, err)
	}
	return nil
}

// ListActivities returns a project's audit trail, newest first
func (e *Engine) ListActivities(ctx context.Context, projectID uint64, limit int) ([]models.ActivityLog, error) {
	if limit <= 0 || limit > DefaultActivityLimit {
		limit = DefaultActivityLimit
	}

	if _, err := e.loadProject(e.db.WithContext(ctx), projectID); err != nil {
		return nil, err
	}

	var entries []models.ActivityLog
	err := e.db.WithContext(ctx).
		Clauses(hints.Comment("select", "activity_by_project")).
		Where("project_id = ?", projectID).
		Order("created_at desc").
		Order("id desc").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}

	return entries, nil
}
