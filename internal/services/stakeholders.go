package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/localnerve/permit-review/internal/database"
	"github.com/localnerve/permit-review/internal/events"
	"github.com/localnerve/permit-review/internal/models"
	"github.com/localnerve/permit-review/internal/types"
	"gorm.io/gorm"
)

// StakeholderInput adds a user to a project
type StakeholderInput struct {
	ProjectID          uint64
	UserID             string
	UserEmail          string
	UserName           string
	Roles              []models.Role
	AssignedCategories []models.Category
	AddedBy            Actor
}

// StakeholderUpdate replaces roles and categories when set
type StakeholderUpdate struct {
	UserEmail          *string
	UserName           *string
	Roles              []models.Role
	AssignedCategories []models.Category
}

func validateMembership(roles []models.Role, categories []models.Category) error {
	for _, role := range roles {
		if !role.Valid() {
			return types.Validationf("unknown stakeholder role %q", role)
		}
	}
	for _, category := range categories {
		if !category.Valid() {
			return types.Validationf("unknown document category %q", category)
		}
	}
	return nil
}

func describeRoles(roles []models.Role) string {
	if len(roles) == 0 {
		return "no role"
	}
	names := make([]string, len(roles))
	for i, role := range roles {
		names[i] = string(role)
	}
	return strings.Join(names, ", ")
}

func memberName(s *models.Stakeholder) string {
	switch {
	case s.UserName != "":
		return s.UserName
	case s.UserEmail != "":
		return s.UserEmail
	}
	return s.UserID
}

func (e *Engine) loadStakeholder(tx *gorm.DB, id uint64) (*models.Stakeholder, error) {
	var s models.Stakeholder
	if err := quiet(tx).First(&s, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.NotFoundf("stakeholder %d", id)
		}
		return nil, fmt.Errorf("load stakeholder: %w", err)
	}
	return &s, nil
}

func (e *Engine) findMember(tx *gorm.DB, projectID uint64, userID string) (*models.Stakeholder, error) {
	var s models.Stakeholder
	err := quiet(tx).Where("project_id = ? AND user_id = ?", projectID, userID).First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.NotFoundf("stakeholder %s on project %d", userID, projectID)
		}
		return nil, fmt.Errorf("load stakeholder: %w", err)
	}
	return &s, nil
}

// StakeholderProject returns the project a stakeholder belongs to
func (e *Engine) StakeholderProject(ctx context.Context, id uint64) (uint64, error) {
	s, err := e.loadStakeholder(e.db.WithContext(ctx), id)
	if err != nil {
		return 0, err
	}
	return s.ProjectID, nil
}

// AddStakeholder adds a user to a project. Adding a user who is already a
// stakeholder returns the existing membership with created false and records nothing.
func (e *Engine) AddStakeholder(ctx context.Context, in StakeholderInput) (*models.Stakeholder, bool, error) {
	userID := strings.TrimSpace(in.UserID)
	if userID == "" {
		return nil, false, types.Validationf("userId is required")
	}
	if err := validateMembership(in.Roles, in.AssignedCategories); err != nil {
		return nil, false, err
	}

	s := models.Stakeholder{
		ProjectID:          in.ProjectID,
		UserID:             userID,
		UserEmail:          strings.TrimSpace(in.UserEmail),
		UserName:           strings.TrimSpace(in.UserName),
		Roles:              append([]models.Role{}, in.Roles...),
		AssignedCategories: append([]models.Category{}, in.AssignedCategories...),
		AddedByID:          in.AddedBy.ID,
		AddedAt:            e.now(),
	}

	existing := false
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := e.loadProject(tx, in.ProjectID); err != nil {
			return err
		}

		if member, err := e.findMember(tx, in.ProjectID, userID); err == nil {
			s = *member
			existing = true
			return nil
		} else if !errors.Is(err, types.ErrNotFound) {
			return err
		}

		if err := tx.Create(&s).Error; err != nil {
			return err
		}
		return RecordActivity(tx, s.ProjectID, in.AddedBy.ID, ActivityStakeholderAdded,
			fmt.Sprintf("Added %s as %s", memberName(&s), describeRoles(s.Roles)))
	})

	if database.IsUniqueViolation(err) {
		// lost a race with a concurrent add of the same user
		member, findErr := e.findMember(e.db.WithContext(ctx), in.ProjectID, userID)
		if findErr != nil {
			return nil, false, findErr
		}
		return member, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if existing {
		return &s, false, nil
	}

	e.publish(events.Change{Entity: events.EntityStakeholder, EntityID: s.ID, ProjectID: s.ProjectID, Op: events.OpCreated, ActorID: in.AddedBy.ID})
	return &s, true, nil
}

// ListStakeholders returns a project's stakeholders in the order they were added
func (e *Engine) ListStakeholders(ctx context.Context, projectID uint64) ([]models.Stakeholder, error) {
	if _, err := e.loadProject(e.db.WithContext(ctx), projectID); err != nil {
		return nil, err
	}

	var list []models.Stakeholder
	if err := e.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("added_at").
		Order("id").
		Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list stakeholders: %w", err)
	}
	return list, nil
}

// UpdateStakeholder changes a stakeholder's contact details, roles or categories
func (e *Engine) UpdateStakeholder(ctx context.Context, id uint64, in StakeholderUpdate, actor Actor) (*models.Stakeholder, error) {
	if err := validateMembership(in.Roles, in.AssignedCategories); err != nil {
		return nil, err
	}

	var s *models.Stakeholder
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if s, err = e.loadStakeholder(tx, id); err != nil {
			return err
		}

		if in.UserEmail != nil {
			s.UserEmail = strings.TrimSpace(*in.UserEmail)
		}
		if in.UserName != nil {
			s.UserName = strings.TrimSpace(*in.UserName)
		}
		if in.Roles != nil {
			s.Roles = in.Roles
		}
		if in.AssignedCategories != nil {
			s.AssignedCategories = in.AssignedCategories
		}

		if err := tx.Save(s).Error; err != nil {
			return fmt.Errorf("update stakeholder: %w", err)
		}
		return RecordActivity(tx, s.ProjectID, actor.ID, ActivityStakeholderUpdated,
			fmt.Sprintf("Updated %s as %s", memberName(s), describeRoles(s.Roles)))
	})
	if err != nil {
		return nil, err
	}

	e.publish(events.Change{Entity: events.EntityStakeholder, EntityID: s.ID, ProjectID: s.ProjectID, Op: events.OpUpdated, ActorID: actor.ID})
	return s, nil
}

// RemoveStakeholder removes a stakeholder and their tasks in one transaction
func (e *Engine) RemoveStakeholder(ctx context.Context, id uint64, actor Actor) (*models.Stakeholder, error) {
	var s *models.Stakeholder
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if s, err = e.loadStakeholder(tx, id); err != nil {
			return err
		}

		res := tx.Where("stakeholder_id = ?", s.ID).Delete(&models.StakeholderTask{})
		if res.Error != nil {
			return fmt.Errorf("delete stakeholder tasks: %w", res.Error)
		}
		if err := tx.Delete(&models.Stakeholder{}, s.ID).Error; err != nil {
			return fmt.Errorf("delete stakeholder: %w", err)
		}

		description := fmt.Sprintf("Removed %s", memberName(s))
		if res.RowsAffected > 0 {
			description += fmt.Sprintf(" and %d assigned task(s)", res.RowsAffected)
		}
		return RecordActivity(tx, s.ProjectID, actor.ID, ActivityStakeholderRemoved, description)
	})
	if err != nil {
		return nil, err
	}

	e.publish(events.Change{Entity: events.EntityStakeholder, EntityID: s.ID, ProjectID: s.ProjectID, Op: events.OpDeleted, ActorID: actor.ID})
	return s, nil
}
