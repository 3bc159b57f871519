package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/localnerve/permit-review/internal/blob"
	"github.com/localnerve/permit-review/internal/database"
	"github.com/localnerve/permit-review/internal/email"
	"github.com/localnerve/permit-review/internal/events"
	"github.com/localnerve/permit-review/internal/models"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var (
	customer   = Actor{ID: "cust-1", Email: "owner@example.com", Roles: []string{RoleCustomer}}
	specialist = Actor{ID: "spec-1", Email: "reviewer@example.com", Roles: []string{RoleSpecialist}}
	outsider   = Actor{ID: "cust-9", Roles: []string{RoleCustomer}}
)

type fakeMailer struct {
	mu   sync.Mutex
	sent []email.Message
	fail bool
}

func (m *fakeMailer) IsConfigured() bool { return true }

func (m *fakeMailer) Send(_ context.Context, msg email.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("relay refused")
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *fakeMailer) messages() []email.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]email.Message(nil), m.sent...)
}

type recordingPublisher struct {
	mu      sync.Mutex
	changes []events.Change
}

func (p *recordingPublisher) Publish(_ context.Context, change events.Change) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changes = append(p.changes, change)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) ops(entity string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var ops []string
	for _, c := range p.changes {
		if c.Entity == entity {
			ops = append(ops, c.Op)
		}
	}
	return ops
}

type testEnv struct {
	engine    *Engine
	db        *gorm.DB
	mailer    *fakeMailer
	publisher *recordingPublisher
	blobs     *blob.MemoryStore
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()

	db, err := database.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	env := &testEnv{
		db:        db,
		mailer:    &fakeMailer{},
		publisher: &recordingPublisher{},
	}
	opts = append([]Option{
		WithMailer(env.mailer, 0),
		WithPublisher(env.publisher),
		WithAppURL("https://permits.example.com"),
	}, opts...)
	env.engine = New(db, opts...)
	return env
}

func (env *testEnv) project(t *testing.T, name string) *models.Project {
	t.Helper()
	project, err := env.engine.CreateProject(context.Background(), ProjectInput{Name: &name}, customer)
	require.NoError(t, err)
	return project
}

func (env *testEnv) upload(t *testing.T, projectID uint64, category models.Category, fileName string) *models.Document {
	t.Helper()
	doc, err := env.engine.UploadDocument(context.Background(), UploadInput{
		ProjectID:  projectID,
		Category:   category,
		FileName:   fileName,
		FileType:   "application/pdf",
		Content:    []byte("%PDF-1.7 " + fileName),
		UploaderID: customer.ID,
	})
	require.NoError(t, err)
	return doc
}

func (env *testEnv) activities(t *testing.T, projectID uint64, activityType string) []models.ActivityLog {
	t.Helper()
	var list []models.ActivityLog
	require.NoError(t, env.db.Where("project_id = ? AND activity_type = ?", projectID, activityType).
		Order("id").Find(&list).Error)
	return list
}

func strPtr(s string) *string { return &s }
