// tasks.go
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
	"time"

	"github.com/localnerve/permit-review/internal/email"
	"github.com/localnerve/permit-review/internal/events"
	"github.com/localnerve/permit-review/internal/models"
	"github.com/localnerve/permit-review/internal/types"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TaskInput assigns work to a stakeholder
type TaskInput struct {
	TaskType         models.TaskType
	DocumentCategory *models.Category
	Description      string
	DueDate          *time.Time
	AssignedBy       Actor
}

// TaskUpdate changes the non-nil fields of a task
type TaskUpdate struct {
	Status      *models.TaskStatus
	Description *string
	DueDate     *time.Time
	ClearDue    bool
}

func (in TaskInput) validate() (string, error) {
	if !in.TaskType.Valid() {
		return "", types.Validationf("unknown task type %q", in.TaskType)
	}
	if in.DocumentCategory != nil && !in.DocumentCategory.Valid() {
		return "", types.Validationf("unknown document category %q", *in.DocumentCategory)
	}
	description := strings.TrimSpace(in.Description)
	if description == "" {
		return "", types.Validationf("description is required")
	}
	return description, nil
}

func (e *Engine) loadTask(tx *gorm.DB, id uint64) (*models.StakeholderTask, error) {
	var task models.StakeholderTask
	if err := quiet(tx).First(&task, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.NotFoundf("task %d", id)
		}
		return nil, fmt.Errorf("load task: %w", err)
	}
	return &task, nil
}

// TaskProject returns the project a task belongs to
func (e *Engine) TaskProject(ctx context.Context, id uint64) (uint64, error) {
	task, err := e.loadTask(e.db.WithContext(ctx), id)
	if err != nil {
		return 0, err
	}
	return task.ProjectID, nil
}

// AssignTask creates a pending task for a stakeholder. The task, its activity
// entry and the stakeholder's notification commit together; the e-mail is
// sent afterwards and may fail without affecting the assignment.
func (e *Engine) AssignTask(ctx context.Context, stakeholderID uint64, in TaskInput) (*models.StakeholderTask, error) {
	description, err := in.validate()
	if err != nil {
		return nil, err
	}

	var (
		task    models.StakeholderTask
		member  *models.Stakeholder
		project *models.Project
	)
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if member, err = e.loadStakeholder(tx, stakeholderID); err != nil {
			return err
		}
		if project, err = e.loadProject(tx, member.ProjectID); err != nil {
			return err
		}

		task = models.StakeholderTask{
			StakeholderID:    member.ID,
			ProjectID:        member.ProjectID,
			TaskType:         in.TaskType,
			DocumentCategory: in.DocumentCategory,
			Description:      description,
			Status:           models.TaskPending,
			DueDate:          in.DueDate,
			CreatedByID:      in.AssignedBy.ID,
		}
		if err := tx.Create(&task).Error; err != nil {
			return fmt.Errorf("create task: %w", err)
		}

		if err := RecordActivity(tx, task.ProjectID, in.AssignedBy.ID, ActivityTaskAssigned,
			fmt.Sprintf("Assigned %s to %s: %s", taskSubject(&task), memberName(member), description)); err != nil {
			return err
		}

		metadata := map[string]any{
			"projectId":     task.ProjectID,
			"taskId":        task.ID,
			"stakeholderId": member.ID,
			"taskType":      task.TaskType,
		}
		if task.DocumentCategory != nil {
			metadata["category"] = *task.DocumentCategory
		}
		_, err = Notify(tx, member.UserID, NotificationTaskAssigned,
			fmt.Sprintf("New task on %s", project.Name),
			fmt.Sprintf("%s: %s", taskSubject(&task), description),
			metadata)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.publish(events.Change{Entity: events.EntityTask, EntityID: task.ID, ProjectID: task.ProjectID, Op: events.OpCreated, ActorID: in.AssignedBy.ID})
	e.emailTaskAssigned(member, project, &task)

	return &task, nil
}

// AssignTaskToUser assigns a task to the stakeholder record of userID on a project
func (e *Engine) AssignTaskToUser(ctx context.Context, projectID uint64, userID string, in TaskInput) (*models.StakeholderTask, error) {
	member, err := e.findMember(e.db.WithContext(ctx), projectID, strings.TrimSpace(userID))
	if err != nil {
		return nil, err
	}
	return e.AssignTask(ctx, member.ID, in)
}

func (e *Engine) emailTaskAssigned(member *models.Stakeholder, project *models.Project, task *models.StakeholderTask) {
	if member.UserEmail == "" {
		return
	}

	data := email.TaskAssignedData{
		UserName:    member.UserName,
		ProjectName: project.Name,
		TaskLabel:   task.TaskType.Label(),
		Description: task.Description,
		ProjectURL:  e.projectURL(project.ID),
	}
	if task.DocumentCategory != nil {
		data.Category = task.DocumentCategory.Label()
	}
	if task.DueDate != nil {
		data.DueDate = task.DueDate.Format("Jan 2, 2006")
	}

	msg, err := email.TaskAssigned(member.UserEmail, data)
	if err != nil {
		e.log.Warn("task email not rendered", zap.Uint64("taskId", task.ID), zap.Error(err))
		return
	}
	e.sendEmail(msg)
}

func taskSubject(task *models.StakeholderTask) string {
	if task.DocumentCategory != nil {
		return fmt.Sprintf("%s (%s)", task.TaskType.Label(), task.DocumentCategory.Label())
	}
	return task.TaskType.Label()
}

// ListTasks returns a stakeholder's tasks, newest first
func (e *Engine) ListTasks(ctx context.Context, stakeholderID uint64) ([]models.StakeholderTask, error) {
	if _, err := e.loadStakeholder(e.db.WithContext(ctx), stakeholderID); err != nil {
		return nil, err
	}
	return e.findTasks(ctx, "stakeholder_id = ?", stakeholderID)
}

// ListProjectTasks returns every task of a project, newest first
func (e *Engine) ListProjectTasks(ctx context.Context, projectID uint64) ([]models.StakeholderTask, error) {
	if _, err := e.loadProject(e.db.WithContext(ctx), projectID); err != nil {
		return nil, err
	}
	return e.findTasks(ctx, "project_id = ?", projectID)
}

func (e *Engine) findTasks(ctx context.Context, query string, arg any) ([]models.StakeholderTask, error) {
	var tasks []models.StakeholderTask
	if err := e.db.WithContext(ctx).
		Where(query, arg).
		Order("created_at desc").
		Order("id desc").
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// UpdateTask changes a task's status, description or due date
func (e *Engine) UpdateTask(ctx context.Context, id uint64, in TaskUpdate, actor Actor) (*models.StakeholderTask, error) {
	if in.Status != nil && !in.Status.Valid() {
		return nil, types.Validationf("unknown task status %q", *in.Status)
	}
	if in.Description != nil && strings.TrimSpace(*in.Description) == "" {
		return nil, types.Validationf("description cannot be empty")
	}

	var (
		task    *models.StakeholderTask
		changes []string
	)
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if task, err = e.loadTask(tx, id); err != nil {
			return err
		}

		if in.Status != nil && *in.Status != task.Status {
			changes = append(changes, fmt.Sprintf("status %s → %s", task.Status, *in.Status))
			task.Status = *in.Status
		}
		if in.Description != nil {
			if description := strings.TrimSpace(*in.Description); description != task.Description {
				task.Description = description
				changes = append(changes, "description")
			}
		}
		switch {
		case in.ClearDue:
			if task.DueDate != nil {
				task.DueDate = nil
				changes = append(changes, "due date cleared")
			}
		case in.DueDate != nil:
			if task.DueDate == nil || !task.DueDate.Equal(*in.DueDate) {
				task.DueDate = in.DueDate
				changes = append(changes, "due date "+in.DueDate.Format("2006-01-02"))
			}
		}

		// nothing to write or audit
		if len(changes) == 0 {
			return nil
		}

		if err := tx.Save(task).Error; err != nil {
			return fmt.Errorf("update task: %w", err)
		}
		return RecordActivity(tx, task.ProjectID, actor.ID, ActivityTaskUpdated,
			fmt.Sprintf("Updated task %s: %s", taskSubject(task), strings.Join(changes, ", ")))
	})
	if err != nil {
		return nil, err
	}

	if len(changes) > 0 {
		e.publish(events.Change{Entity: events.EntityTask, EntityID: task.ID, ProjectID: task.ProjectID, Op: events.OpUpdated, ActorID: actor.ID})
	}
	return task, nil
}

// DeleteTask removes a task and records it
func (e *Engine) DeleteTask(ctx context.Context, id uint64, actor Actor) (*models.StakeholderTask, error) {
	var task *models.StakeholderTask
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if task, err = e.loadTask(tx, id); err != nil {
			return err
		}
		if err := tx.Delete(&models.StakeholderTask{}, task.ID).Error; err != nil {
			return fmt.Errorf("delete task: %w", err)
		}
		return RecordActivity(tx, task.ProjectID, actor.ID, ActivityTaskDeleted,
			fmt.Sprintf("Deleted task %s: %s", taskSubject(task), task.Description))
	})
	if err != nil {
		return nil, err
	}

	e.publish(events.Change{Entity: events.EntityTask, EntityID: task.ID, ProjectID: task.ProjectID, Op: events.OpDeleted, ActorID: actor.ID})
	return task, nil
}
