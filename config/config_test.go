package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yml"))

	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, int64(500*1024*1024), cfg.Upload.MaxSize)
	assert.Equal(t, 6*time.Hour, cfg.Retention.Interval)
	assert.Equal(t, 24*time.Hour, cfg.Retention.MaxAge)
	assert.Equal(t, "local", cfg.Storage.Backend)
	assert.Equal(t, "ffmpeg", cfg.Transcoder.Backend)
	assert.Equal(t, "none", cfg.OTEL.Exporter)
	assert.Equal(t, []string{"*"}, cfg.HTTP.CORSOrigins)
	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, uint64(16*1024*1024), cfg.Storage.PartSize)
	assert.Equal(t, int64(16*1024*1024), cfg.RMQ.MaxMessageSize)
}

func TestNewConfig_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("app:\n  env: production\nstorage:\n  backend: minio\n"), 0o600))
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("APP_ENV", "development")
	t.Setenv("UPLOAD_MAX_SIZE", "1024")

	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, "minio", cfg.Storage.Backend)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, int64(1024), cfg.Upload.MaxSize)
}

func TestNewConfig_RejectsUnknownBackend(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yml"))
	t.Setenv("STORAGE_BACKEND", "ftp")

	_, err := NewConfig()
	assert.ErrorContains(t, err, "ftp")
}

func TestNewConfig_RejectsTinyPartSize(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yml"))
	t.Setenv("STORAGE_PART_SIZE", "1024")

	_, err := NewConfig()
	assert.ErrorContains(t, err, "part_size")
}
