package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("DB_TYPE", "postgres")
	t.Setenv("DB_DATABASE", "permits")
	t.Setenv("DB_USER", "permits")
	t.Setenv("AUTHZ_URL", "http://localhost:9010")
	t.Setenv("AUTHZ_CLIENT_ID", "client-id")
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, int64(DefaultMaxUploadBytes), cfg.MaxUploadBytes)
	assert.Equal(t, "db", cfg.BlobBackend)
	assert.Equal(t, "permit-review:changes", cfg.EventsChannel)
	assert.Equal(t, 10*time.Second, cfg.EmailTimeout)
	assert.Equal(t, 5, cfg.DBConnectionLimit)
}

func TestLoadOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	setRequired(t)
	t.Setenv("MAX_UPLOAD_BYTES", "1024")
	t.Setenv("DB_CONNECTION_LIMIT", "nope")
	t.Setenv("EMAIL_TIMEOUT", "3s")
	t.Setenv("APP_URL", "https://permits.example.com/")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, int64(1024), cfg.MaxUploadBytes)
	assert.Equal(t, 5, cfg.DBConnectionLimit)
	assert.Equal(t, 3*time.Second, cfg.EmailTimeout)
	assert.Equal(t, "https://permits.example.com", cfg.AppURL)
}

func TestLoadRequiredFields(t *testing.T) {
	t.Chdir(t.TempDir())

	tests := []struct {
		name    string
		unset   string
		wantErr string
	}{
		{"database", "DB_DATABASE", "DB_DATABASE is required"},
		{"user", "DB_USER", "DB_USER is required"},
		{"authorizer url", "AUTHZ_URL", "AUTHZ_URL is required"},
		{"authorizer client", "AUTHZ_CLIENT_ID", "AUTHZ_CLIENT_ID is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			t.Setenv(tt.unset, "")
			_, err := Load()
			assert.EqualError(t, err, tt.wantErr)
		})
	}
}

func TestLoadSQLiteNeedsNoUser(t *testing.T) {
	t.Chdir(t.TempDir())
	setRequired(t)
	t.Setenv("DB_TYPE", "sqlite-pure")
	t.Setenv("DB_USER", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsSQLite())
}

func TestLoadBlobBackend(t *testing.T) {
	t.Chdir(t.TempDir())
	setRequired(t)

	t.Setenv("BLOB_BACKEND", "s3")
	_, err := Load()
	assert.ErrorContains(t, err, "unsupported BLOB_BACKEND")

	t.Setenv("BLOB_BACKEND", "minio")
	_, err = Load()
	assert.ErrorContains(t, err, "MINIO_ENDPOINT")

	t.Setenv("MINIO_ENDPOINT", "localhost:9000")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "permit-documents", cfg.MinIOBucket)
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("PERMIT_TEST_SMTP_USER=mailer\nSMTP_HOST=ignored.example.com\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("PERMIT_TEST_SMTP_USER") })

	setRequired(t)
	t.Setenv("SMTP_HOST", "mail.example.com")
	t.Setenv("ENV_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "mailer", os.Getenv("PERMIT_TEST_SMTP_USER"))
	// variables already present win over the file
	assert.Equal(t, "mail.example.com", cfg.SMTPHost)

	t.Setenv("ENV_FILE", filepath.Join(dir, "missing.env"))
	_, err = Load()
	assert.Error(t, err)
}
