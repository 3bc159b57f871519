package services

import (
	"context"
	"testing"

	"github.com/localnerve/permit-review/internal/blob"
	"github.com/localnerve/permit-review/internal/events"
	"github.com/localnerve/permit-review/internal/models"
	"github.com/localnerve/permit-review/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndUpdateProject(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.engine.CreateProject(ctx, ProjectInput{}, customer)
	assert.ErrorIs(t, err, types.ErrValidation)

	project := env.project(t, "  Warehouse 12 ")
	assert.Equal(t, "Warehouse 12", project.Name)
	assert.Equal(t, models.ProjectDraft, project.Status)
	assert.Equal(t, customer.ID, project.CreatedByID)

	status := models.ProjectSubmitted
	updated, err := env.engine.UpdateProject(ctx, project.ID, ProjectInput{
		Jurisdiction: strPtr("Springfield FD"),
		Status:       &status,
	}, customer)
	require.NoError(t, err)
	assert.Equal(t, "Springfield FD", updated.Jurisdiction)
	assert.Equal(t, models.ProjectSubmitted, updated.Status)
	assert.Equal(t, "Warehouse 12", updated.Name)

	bad := models.ProjectStatus("lost")
	_, err = env.engine.UpdateProject(ctx, project.ID, ProjectInput{Status: &bad}, customer)
	assert.ErrorIs(t, err, types.ErrValidation)

	assert.Len(t, env.activities(t, project.ID, ActivityProjectCreated), 1)
	assert.Len(t, env.activities(t, project.ID, ActivityProjectUpdated), 1)
}

func TestProjectVisibility(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	mine := env.project(t, "Warehouse 12")
	shared, err := env.engine.CreateProject(ctx, ProjectInput{Name: strPtr("Office 7")}, Actor{ID: "cust-2"})
	require.NoError(t, err)
	_, err = env.engine.CreateProject(ctx, ProjectInput{Name: strPtr("Hangar")}, Actor{ID: "cust-3"})
	require.NoError(t, err)

	_, _, err = env.engine.AddStakeholder(ctx, StakeholderInput{ProjectID: shared.ID, UserID: customer.ID, AddedBy: Actor{ID: "cust-2"}})
	require.NoError(t, err)

	visible, err := env.engine.ListProjects(ctx, customer)
	require.NoError(t, err)
	ids := make([]uint64, 0, len(visible))
	for _, p := range visible {
		ids = append(ids, p.ID)
	}
	assert.ElementsMatch(t, []uint64{mine.ID, shared.ID}, ids)

	all, err := env.engine.ListProjects(ctx, specialist)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	assert.NoError(t, env.engine.CanAccess(ctx, mine.ID, customer))
	assert.NoError(t, env.engine.CanAccess(ctx, shared.ID, customer))
	assert.NoError(t, env.engine.CanAccess(ctx, shared.ID, specialist))
	assert.ErrorIs(t, env.engine.CanAccess(ctx, mine.ID, outsider), types.ErrForbidden)
	assert.ErrorIs(t, env.engine.CanAccess(ctx, 404, specialist), types.ErrNotFound)

	// stakeholders see a project but only its creator and specialists manage it
	assert.NoError(t, env.engine.CanManage(ctx, mine.ID, customer))
	assert.NoError(t, env.engine.CanManage(ctx, shared.ID, specialist))
	assert.ErrorIs(t, env.engine.CanManage(ctx, shared.ID, customer), types.ErrForbidden)
	assert.ErrorIs(t, env.engine.CanManage(ctx, mine.ID, outsider), types.ErrForbidden)
	assert.ErrorIs(t, env.engine.CanManage(ctx, 404, specialist), types.ErrNotFound)
}

func TestDeleteProjectCascades(t *testing.T) {
	store := blob.NewMemoryStore()
	env := newTestEnv(t, WithBlobStore(store))
	ctx := context.Background()

	project := env.project(t, "Warehouse 12")
	keep := env.project(t, "Office 7")
	s := addArchitect(t, env, project.ID)
	env.upload(t, project.ID, models.CategorySitePlan, "Site.pdf")
	env.upload(t, project.ID, models.CategorySitePlan, "Site.pdf")
	kept := env.upload(t, keep.ID, models.CategorySitePlan, "Site.pdf")
	_, err := env.engine.AssignTask(ctx, s.ID, TaskInput{TaskType: models.TaskCollaborate, Description: "Kickoff", AssignedBy: specialist})
	require.NoError(t, err)
	env.engine.Wait()
	require.Equal(t, 3, store.Len())

	require.NoError(t, env.engine.DeleteProject(ctx, project.ID, specialist))

	for _, model := range []any{&models.StakeholderTask{}, &models.Stakeholder{}, &models.Document{}, &models.ActivityLog{}} {
		var count int64
		require.NoError(t, env.db.Model(model).Where("project_id = ?", project.ID).Count(&count).Error)
		assert.Zero(t, count, "%T rows remain", model)
	}
	_, err = env.engine.GetProject(ctx, project.ID)
	assert.ErrorIs(t, err, types.ErrNotFound)

	assert.Equal(t, 1, store.Len(), "only the other project's content remains")
	_, err = env.engine.GetDocument(ctx, kept.ID)
	assert.NoError(t, err)
	assert.Contains(t, env.publisher.ops(events.EntityProject), events.OpDeleted)

	assert.ErrorIs(t, env.engine.DeleteProject(ctx, project.ID, specialist), types.ErrNotFound)
}

func TestDeleteProjectRollsBack(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	project := env.project(t, "Warehouse 12")
	s := addArchitect(t, env, project.ID)
	_, err := env.engine.AssignTask(ctx, s.ID, TaskInput{TaskType: models.TaskCollaborate, Description: "Kickoff", AssignedBy: specialist})
	require.NoError(t, err)
	env.engine.Wait()

	require.NoError(t, env.db.Migrator().DropTable(&models.ActivityLog{}))

	err = env.engine.DeleteProject(ctx, project.ID, specialist)
	require.Error(t, err)

	var tasks, members int64
	require.NoError(t, env.db.Model(&models.StakeholderTask{}).Count(&tasks).Error)
	require.NoError(t, env.db.Model(&models.Stakeholder{}).Count(&members).Error)
	assert.EqualValues(t, 1, tasks)
	assert.EqualValues(t, 1, members)
}

func TestActivitiesNewestFirst(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	project := env.project(t, "Warehouse 12")
	env.upload(t, project.ID, models.CategorySitePlan, "Site.pdf")
	addArchitect(t, env, project.ID)

	entries, err := env.engine.ListActivities(ctx, project.ID, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, ActivityStakeholderAdded, entries[0].ActivityType)
	assert.Equal(t, ActivityDocumentUploaded, entries[1].ActivityType)
	assert.Equal(t, ActivityProjectCreated, entries[2].ActivityType)

	limited, err := env.engine.ListActivities(ctx, project.ID, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	_, err = env.engine.ListActivities(ctx, 999, 10)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestNotificationsMarkRead(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	project := env.project(t, "Warehouse 12")
	s := addArchitect(t, env, project.ID)

	for _, description := range []string{"one", "two", "three"} {
		_, err := env.engine.AssignTask(ctx, s.ID, TaskInput{TaskType: models.TaskCollaborate, Description: description, AssignedBy: specialist})
		require.NoError(t, err)
	}
	env.engine.Wait()

	unread, err := env.engine.ListNotifications(ctx, "arch-1", true)
	require.NoError(t, err)
	require.Len(t, unread, 3)
	assert.Contains(t, unread[0].Message, "three", "newest first")

	_, err = env.engine.MarkNotificationRead(ctx, unread[0].ID, "someone-else")
	assert.ErrorIs(t, err, types.ErrNotFound)

	read, err := env.engine.MarkNotificationRead(ctx, unread[0].ID, "arch-1")
	require.NoError(t, err)
	assert.True(t, read.IsRead)

	n, err := env.engine.MarkAllNotificationsRead(ctx, "arch-1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	unread, err = env.engine.ListNotifications(ctx, "arch-1", true)
	require.NoError(t, err)
	assert.Empty(t, unread)

	all, err := env.engine.ListNotifications(ctx, "arch-1", false)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
