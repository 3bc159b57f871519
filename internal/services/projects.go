package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/localnerve/permit-review/internal/events"
	"github.com/localnerve/permit-review/internal/models"
	"github.com/localnerve/permit-review/internal/types"
	"gorm.io/gorm"
)

// ProjectInput holds the writable project fields. Nil fields are left unchanged on update.
type ProjectInput struct {
	Name         *string               `json:"name"`
	CustomerName *string               `json:"customerName"`
	Jurisdiction *string               `json:"jurisdiction"`
	Address      *string               `json:"address"`
	PermitNumber *string               `json:"permitNumber"`
	Status       *models.ProjectStatus `json:"status"`
}

func (in ProjectInput) apply(p *models.Project) error {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return types.Validationf("name is required")
		}
		p.Name = name
	}
	if in.CustomerName != nil {
		p.CustomerName = strings.TrimSpace(*in.CustomerName)
	}
	if in.Jurisdiction != nil {
		p.Jurisdiction = strings.TrimSpace(*in.Jurisdiction)
	}
	if in.Address != nil {
		p.Address = strings.TrimSpace(*in.Address)
	}
	if in.PermitNumber != nil {
		p.PermitNumber = strings.TrimSpace(*in.PermitNumber)
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return types.Validationf("unknown project status %q", *in.Status)
		}
		p.Status = *in.Status
	}
	return nil
}

func (e *Engine) loadProject(tx *gorm.DB, projectID uint64) (*models.Project, error) {
	var project models.Project
	if err := quiet(tx).First(&project, projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.NotFoundf("project %d", projectID)
		}
		return nil, fmt.Errorf("load project: %w", err)
	}
	return &project, nil
}

// CreateProject creates a draft project owned by the actor
func (e *Engine) CreateProject(ctx context.Context, in ProjectInput, actor Actor) (*models.Project, error) {
	if in.Name == nil {
		return nil, types.Validationf("name is required")
	}

	project := models.Project{Status: models.ProjectDraft, CreatedByID: actor.ID}
	if err := in.apply(&project); err != nil {
		return nil, err
	}

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&project).Error; err != nil {
			return fmt.Errorf("create project: %w", err)
		}
		return RecordActivity(tx, project.ID, actor.ID, ActivityProjectCreated,
			fmt.Sprintf("Created project %s", project.Name))
	})
	if err != nil {
		return nil, err
	}

	e.publish(events.Change{Entity: events.EntityProject, EntityID: project.ID, ProjectID: project.ID, Op: events.OpCreated, ActorID: actor.ID})
	return &project, nil
}

// GetProject returns one project
func (e *Engine) GetProject(ctx context.Context, projectID uint64) (*models.Project, error) {
	return e.loadProject(e.db.WithContext(ctx), projectID)
}

// ListProjects returns the projects visible to the actor, newest first.
// Specialists see everything; others see what they created or are a stakeholder of.
func (e *Engine) ListProjects(ctx context.Context, actor Actor) ([]models.Project, error) {
	query := e.db.WithContext(ctx).Order("created_at desc").Order("id desc")
	if !actor.IsSpecialist() {
		members := e.db.Model(&models.Stakeholder{}).Select("project_id").Where("user_id = ?", actor.ID)
		query = query.Where("created_by_id = ? OR id IN (?)", actor.ID, members)
	}

	var projects []models.Project
	if err := query.Find(&projects).Error; err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return projects, nil
}

// UpdateProject applies the non-nil fields of in
func (e *Engine) UpdateProject(ctx context.Context, projectID uint64, in ProjectInput, actor Actor) (*models.Project, error) {
	var project *models.Project
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if project, err = e.loadProject(tx, projectID); err != nil {
			return err
		}
		if err := in.apply(project); err != nil {
			return err
		}
		if err := tx.Save(project).Error; err != nil {
			return fmt.Errorf("update project: %w", err)
		}
		return RecordActivity(tx, project.ID, actor.ID, ActivityProjectUpdated,
			fmt.Sprintf("Updated project %s", project.Name))
	})
	if err != nil {
		return nil, err
	}

	e.publish(events.Change{Entity: events.EntityProject, EntityID: project.ID, ProjectID: project.ID, Op: events.OpUpdated, ActorID: actor.ID})
	return project, nil
}

// DeleteProject removes a project and everything it owns in one transaction.
// Offloaded document content is removed after commit.
func (e *Engine) DeleteProject(ctx context.Context, projectID uint64, actor Actor) error {
	var contentKeys []string

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := e.loadProject(tx, projectID); err != nil {
			return err
		}

		if err := tx.Model(&models.Document{}).
			Where("project_id = ? AND content_key <> ''", projectID).
			Pluck("content_key", &contentKeys).Error; err != nil {
			return fmt.Errorf("collect document content: %w", err)
		}

		steps := []struct {
			name  string
			model any
		}{
			{"tasks", &models.StakeholderTask{}},
			{"stakeholders", &models.Stakeholder{}},
			{"documents", &models.Document{}},
			{"activities", &models.ActivityLog{}},
		}
		for _, step := range steps {
			if err := tx.Where("project_id = ?", projectID).Delete(step.model).Error; err != nil {
				return fmt.Errorf("delete project %s: %w", step.name, err)
			}
		}

		if err := tx.Delete(&models.Project{}, projectID).Error; err != nil {
			return fmt.Errorf("delete project: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	e.removeBlobs(contentKeys)
	e.publish(events.Change{Entity: events.EntityProject, EntityID: projectID, ProjectID: projectID, Op: events.OpDeleted, ActorID: actor.ID})
	return nil
}

// CanAccess returns nil when the actor may see the project: specialists,
// the creator and stakeholders. Unknown projects return ErrNotFound.
func (e *Engine) CanAccess(ctx context.Context, projectID uint64, actor Actor) error {
	project, err := e.loadProject(e.db.WithContext(ctx), projectID)
	if err != nil {
		return err
	}
	if actor.IsSpecialist() || project.CreatedByID == actor.ID {
		return nil
	}

	var count int64
	if err := e.db.WithContext(ctx).Model(&models.Stakeholder{}).
		Where("project_id = ? AND user_id = ?", projectID, actor.ID).
		Count(&count).Error; err != nil {
		return fmt.Errorf("check project access: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("project %d: %w", projectID, types.ErrForbidden)
	}
	return nil
}

// CanManage returns nil when the actor may change the project's membership
// and tasks: specialists and the project's creator. Stakeholders get ErrForbidden.
func (e *Engine) CanManage(ctx context.Context, projectID uint64, actor Actor) error {
	project, err := e.loadProject(e.db.WithContext(ctx), projectID)
	if err != nil {
		return err
	}
	if actor.IsSpecialist() || project.CreatedByID == actor.ID {
		return nil
	}
	return fmt.Errorf("managing project %d: %w", projectID, types.ErrForbidden)
}
