package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, ":8090", cfg.Server.Addr)
	assert.Equal(t, "/files", cfg.Server.BasePath)
	assert.Equal(t, 20, cfg.Upload.HourlyLimit)
	assert.Equal(t, 3, cfg.Upload.ConcurrencyLimit)
	assert.Equal(t, "blacklist", cfg.Policy.ExtensionMode)
	assert.Equal(t, "local", cfg.Storage.Backend)
	assert.Zero(t, cfg.Reclaim.IntervalSeconds)
}

func TestLoad_LocalFile(t *testing.T) {
	cfg, err := Load("local.yaml")
	require.NoError(t, err)

	assert.Equal(t, "X-Forwarded-For", cfg.Server.ProxyHeader)
	assert.Equal(t, int64(2147483648), cfg.Upload.MaxFileSize)
	assert.NotEmpty(t, cfg.Vault.MasterKey)
	assert.NotEmpty(t, cfg.Policy.CSRFSecret)
	assert.Equal(t, "uploads", cfg.Storage.S3.Bucket)
	assert.Equal(t, 300, cfg.Reclaim.IntervalSeconds)
}

func TestLoad_ExplicitMissingPath(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestUploadConfig_Durations(t *testing.T) {
	var zero UploadConfig
	assert.Equal(t, 24*time.Hour, zero.SessionTTL())
	assert.Equal(t, 6*time.Hour, zero.TokenTTL())
	assert.Equal(t, time.Minute, zero.ConcurrencyRetryAfter())
	assert.Equal(t, 2*time.Second, zero.LockWait())
	assert.Equal(t, time.Minute, zero.LockTTL())

	set := UploadConfig{
		SessionTTLHours:         2,
		TokenTTLMinutes:         30,
		ConcurrencyRetrySeconds: 15,
		LockWaitMS:              250,
		LockTTLMS:               5000,
	}
	assert.Equal(t, 2*time.Hour, set.SessionTTL())
	assert.Equal(t, 30*time.Minute, set.TokenTTL())
	assert.Equal(t, 15*time.Second, set.ConcurrencyRetryAfter())
	assert.Equal(t, 250*time.Millisecond, set.LockWait())
	assert.Equal(t, 5*time.Second, set.LockTTL())
}
