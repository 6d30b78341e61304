package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, int64(10*1024*1024), cfg.Uploads.MaxFileSize)
	assert.Equal(t, 1000, cfg.Quota.MonthlyUploads)
	assert.Equal(t, 500, cfg.Quota.MonthlySaves)
	assert.Equal(t, DriverDisk, cfg.Storage.Driver)
	assert.Equal(t, "http://localhost:8080/files", cfg.Storage.PublicBaseURL)
	assert.Contains(t, cfg.Uploads.AllowedTypes, "application/pdf")
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  address: ":9000"
  site_url: "https://brackets.example.com"
  session_lifetime: 72h
quota:
  monthly_uploads: 50
uploads:
  allowed_types: ["image/png"]
`), 0o644))

	t.Setenv("MONTHLY_SAVE_LIMIT", "7")
	t.Setenv("ALLOWED_FILE_TYPES", "image/png, application/pdf")
	t.Setenv("MAX_FILE_SIZE", "2048")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Address)
	assert.Equal(t, 72*time.Hour, cfg.Server.SessionLifetime)
	assert.Equal(t, 50, cfg.Quota.MonthlyUploads)
	assert.Equal(t, 7, cfg.Quota.MonthlySaves)
	assert.Equal(t, []string{"image/png", "application/pdf"}, cfg.Uploads.AllowedTypes)
	assert.Equal(t, int64(2048), cfg.Uploads.MaxFileSize)
	assert.Equal(t, "https://brackets.example.com/files", cfg.Storage.PublicBaseURL)
}

func TestLoadConfigErrors(t *testing.T) {
	t.Run("bad env number", func(t *testing.T) {
		t.Setenv("MONTHLY_UPLOAD_LIMIT", "lots")
		_, err := LoadConfig("does-not-exist.yaml")
		assert.Error(t, err)
	})

	t.Run("s3 without credentials", func(t *testing.T) {
		t.Setenv("STORAGE_DRIVER", "s3")
		_, err := LoadConfig("does-not-exist.yaml")
		assert.Error(t, err)
	})

	t.Run("r2 from env", func(t *testing.T) {
		t.Setenv("STORAGE_DRIVER", "s3")
		t.Setenv("R2_ACCOUNT_ID", "acct")
		t.Setenv("R2_BUCKET_NAME", "decklists")
		t.Setenv("R2_ACCESS_KEY_ID", "key")
		t.Setenv("R2_SECRET_ACCESS_KEY", "secret")
		t.Setenv("R2_PUBLIC_BASE_URL", "https://cdn.example.com")
		cfg, err := LoadConfig("does-not-exist.yaml")
		require.NoError(t, err)
		assert.Equal(t, "https://acct.r2.cloudflarestorage.com", cfg.Storage.Endpoint)
	})
}
