package services

import (
	"context"
	"sync"
	"testing"

	"github.com/localnerve/permit-review/internal/blob"
	"github.com/localnerve/permit-review/internal/events"
	"github.com/localnerve/permit-review/internal/models"
	"github.com/localnerve/permit-review/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadAssignsSequentialVersions(t *testing.T) {
	env := newTestEnv(t)
	project := env.project(t, "Warehouse 12")

	for want := 1; want <= 3; want++ {
		doc := env.upload(t, project.ID, models.CategoryFireProtection, "Fire.pdf")
		assert.Equal(t, want, doc.Version)
		assert.Equal(t, models.StatusPendingReview, doc.Status)
		assert.False(t, doc.Checklist.IsEmpty(), "initial checklist state is stored")
	}

	other := env.upload(t, project.ID, models.CategoryFireProtection, "Sprinkler.pdf")
	assert.Equal(t, 1, other.Version, "versions are per file name")

	sameName := env.upload(t, project.ID, models.CategorySitePlan, "Fire.pdf")
	assert.Equal(t, 1, sameName.Version, "versions are per category")

	uploads := env.activities(t, project.ID, ActivityDocumentUploaded)
	require.Len(t, uploads, 5)
	assert.Equal(t, "Uploaded Fire.pdf (Fire Protection) version 3", uploads[2].Description)
	assert.Len(t, env.publisher.ops(events.EntityDocument), 5)
}

func TestConcurrentUploadsNeverShareAVersion(t *testing.T) {
	env := newTestEnv(t)
	project := env.project(t, "Warehouse 12")

	const uploads = 8
	var wg sync.WaitGroup
	errs := make(chan error, uploads)
	for i := 0; i < uploads; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.engine.UploadDocument(context.Background(), UploadInput{
				ProjectID:  project.ID,
				Category:   models.CategoryEgressPlan,
				FileName:   "Egress.pdf",
				Content:    []byte("plan"),
				UploaderID: customer.ID,
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	docs, err := env.engine.ListDocuments(context.Background(), project.ID)
	require.NoError(t, err)
	require.Len(t, docs, uploads)

	seen := make(map[int]bool)
	for _, doc := range docs {
		assert.False(t, seen[doc.Version], "version %d assigned twice", doc.Version)
		seen[doc.Version] = true
	}
	for v := 1; v <= uploads; v++ {
		assert.True(t, seen[v], "version %d missing", v)
	}
}

func TestUploadValidation(t *testing.T) {
	env := newTestEnv(t)
	project := env.project(t, "Warehouse 12")
	ctx := context.Background()

	tests := []struct {
		name string
		in   UploadInput
		want error
	}{
		{"unknown category", UploadInput{ProjectID: project.ID, Category: "blueprints", FileName: "a.pdf", Content: []byte("x")}, types.ErrValidation},
		{"blank file name", UploadInput{ProjectID: project.ID, Category: models.CategorySitePlan, FileName: "  ", Content: []byte("x")}, types.ErrValidation},
		{"line break in file name", UploadInput{ProjectID: project.ID, Category: models.CategorySitePlan, FileName: "Site.pdf\r\nBcc: a@example.com", Content: []byte("x")}, types.ErrValidation},
		{"no content", UploadInput{ProjectID: project.ID, Category: models.CategorySitePlan, FileName: "a.pdf"}, types.ErrValidation},
		{"unknown project", UploadInput{ProjectID: 999, Category: models.CategorySitePlan, FileName: "a.pdf", Content: []byte("x")}, types.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.engine.UploadDocument(ctx, tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestListDocumentsOmitsContentAndOrdersByCategory(t *testing.T) {
	env := newTestEnv(t)
	project := env.project(t, "Warehouse 12")
	ctx := context.Background()

	env.upload(t, project.ID, models.CategoryCoverLetter, "Letter.pdf")
	env.upload(t, project.ID, models.CategorySitePlan, "Site.pdf")
	env.upload(t, project.ID, models.CategorySitePlan, "Site.pdf")

	docs, err := env.engine.ListDocuments(ctx, project.ID)
	require.NoError(t, err)
	require.Len(t, docs, 3)

	assert.Equal(t, models.CategorySitePlan, docs[0].Category)
	assert.Equal(t, 2, docs[0].Version)
	assert.Equal(t, 1, docs[1].Version)
	assert.Equal(t, models.CategoryCoverLetter, docs[2].Category)
	for _, doc := range docs {
		assert.Empty(t, doc.Content)
	}

	full, err := env.engine.GetDocument(ctx, docs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.7 Site.pdf"), full.Content)
	assert.Equal(t, int64(len(full.Content)), full.FileSize)
}

func TestCurrentDocumentsCoversEveryCategory(t *testing.T) {
	env := newTestEnv(t)
	project := env.project(t, "Warehouse 12")

	env.upload(t, project.ID, models.CategoryFireProtection, "Fire.pdf")
	latest := env.upload(t, project.ID, models.CategoryFireProtection, "Fire.pdf")

	current, err := env.engine.CurrentDocuments(context.Background(), project.ID)
	require.NoError(t, err)
	require.Len(t, current, len(models.Categories))

	for i, summary := range current {
		assert.Equal(t, models.Categories[i], summary.Category)
		if summary.Category == models.CategoryFireProtection {
			require.NotNil(t, summary.Document)
			assert.Equal(t, latest.ID, summary.Document.ID)
			assert.Equal(t, 2, summary.Versions)
			continue
		}
		assert.Nil(t, summary.Document)
		assert.Zero(t, summary.Versions)
	}
}

func TestDeletingEveryVersionMakesHistoryNotFound(t *testing.T) {
	env := newTestEnv(t)
	project := env.project(t, "Warehouse 12")
	ctx := context.Background()

	var ids []uint64
	for i := 0; i < 3; i++ {
		ids = append(ids, env.upload(t, project.ID, models.CategoryCommodities, "Commodities.xlsx").ID)
	}

	versions, err := env.engine.ListVersions(ctx, ids[0])
	require.NoError(t, err)
	assert.Len(t, versions, 3)
	assert.Equal(t, 3, versions[0].Version)

	deleted, err := env.engine.DeleteDocuments(ctx, project.ID, append(ids, ids[1]), specialist)
	require.NoError(t, err)
	assert.Len(t, deleted, 3, "duplicate ids are deleted once")

	for _, id := range ids {
		_, err := env.engine.ListVersions(ctx, id)
		assert.ErrorIs(t, err, types.ErrNotFound)
	}
	assert.Len(t, env.activities(t, project.ID, ActivityDocumentDeleted), 3)
}

func TestDeleteDocumentsIsAllOrNothing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	project := env.project(t, "Warehouse 12")
	other := env.project(t, "Office 7")

	mine := env.upload(t, project.ID, models.CategorySitePlan, "Site.pdf")
	theirs := env.upload(t, other.ID, models.CategorySitePlan, "Site.pdf")

	_, err := env.engine.DeleteDocuments(ctx, project.ID, []uint64{mine.ID, 12345}, specialist)
	assert.ErrorIs(t, err, types.ErrNotFound)

	_, err = env.engine.DeleteDocuments(ctx, project.ID, []uint64{mine.ID, theirs.ID}, specialist)
	assert.ErrorIs(t, err, types.ErrForbidden)

	_, err = env.engine.DeleteDocuments(ctx, project.ID, nil, specialist)
	assert.ErrorIs(t, err, types.ErrValidation)

	_, err = env.engine.GetDocument(ctx, mine.ID)
	assert.NoError(t, err, "failed batch deletes nothing")
	assert.Empty(t, env.activities(t, project.ID, ActivityDocumentDeleted))
}

func TestBlobStoreHoldsContent(t *testing.T) {
	store := blob.NewMemoryStore()
	env := newTestEnv(t, WithBlobStore(store))
	ctx := context.Background()
	project := env.project(t, "Warehouse 12")

	doc := env.upload(t, project.ID, models.CategoryStructuralPlans, "Beams.pdf")
	assert.Equal(t, 1, store.Len())

	var row models.Document
	require.NoError(t, env.db.First(&row, doc.ID).Error)
	assert.Empty(t, row.Content, "content is not duplicated in the table")
	assert.NotEmpty(t, row.ContentKey)

	full, err := env.engine.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.7 Beams.pdf"), full.Content)

	_, err = env.engine.DeleteDocument(ctx, doc.ID, specialist)
	require.NoError(t, err)
	assert.Zero(t, store.Len())
}

func TestMissingBlobContentIsNotFound(t *testing.T) {
	store := blob.NewMemoryStore()
	env := newTestEnv(t, WithBlobStore(store))
	ctx := context.Background()
	project := env.project(t, "Warehouse 12")

	doc := env.upload(t, project.ID, models.CategorySitePlan, "Site.pdf")
	var row models.Document
	require.NoError(t, env.db.First(&row, doc.ID).Error)

	// as after a restart with the in-memory store
	require.NoError(t, store.Delete(ctx, row.ContentKey))

	_, err := env.engine.GetDocument(ctx, doc.ID)
	assert.ErrorIs(t, err, types.ErrNotFound)

	docs, err := env.engine.ListDocuments(ctx, project.ID)
	require.NoError(t, err)
	assert.Len(t, docs, 1, "metadata is still listed")
}

func TestUploadFailureRemovesStoredContent(t *testing.T) {
	store := blob.NewMemoryStore()
	env := newTestEnv(t, WithBlobStore(store), WithVersionAttempts(1))
	project := env.project(t, "Warehouse 12")

	// without the activity table the upload transaction fails after the blob is stored
	require.NoError(t, env.db.Migrator().DropTable(&models.ActivityLog{}))

	_, err := env.engine.UploadDocument(context.Background(), UploadInput{
		ProjectID:  project.ID,
		Category:   models.CategorySitePlan,
		FileName:   "Site.pdf",
		Content:    []byte("x"),
		UploaderID: customer.ID,
	})
	require.Error(t, err)
	assert.Zero(t, store.Len())
}
