package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
server:
  port: 9090
  host: "0.0.0.0"

storage:
  drafts_table: "my_drafts"
  followups_table: "my_followups"
  aws_region: "eu-west-1"

followup:
  mail_writer_url: "https://composer.internal"
  crm_url: "https://crm.internal"
  crm_secret: "file-secret"
  rate_limit_per_minute: 30
  rate_limit_burst: 5
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)

	assert.Equal(t, "my_drafts", cfg.Storage.DraftsTable)
	assert.Equal(t, "my_followups", cfg.Storage.FollowupsTable)
	assert.Equal(t, "eu-west-1", cfg.Storage.AWSRegion)

	assert.Equal(t, "https://composer.internal", cfg.Followup.MailWriterURL)
	assert.Equal(t, "https://crm.internal", cfg.Followup.CRMURL)
	assert.Equal(t, "file-secret", cfg.Followup.CRMSecret)
	assert.Equal(t, 30, cfg.Followup.RateLimitPerMinute)
	assert.Equal(t, 5, cfg.Followup.RateLimitBurst)
}

func TestLoadDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	err := os.WriteFile(configPath, []byte("followup:\n  crm_url: \"https://crm.internal\"\n"), 0644)
	require.NoError(t, err)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, "email_drafts", cfg.Storage.DraftsTable)
	assert.Equal(t, "email_followups", cfg.Storage.FollowupsTable)
	assert.Equal(t, "us-west-2", cfg.Storage.AWSRegion)
	assert.Equal(t, 60, cfg.Followup.RateLimitPerMinute)
	assert.Equal(t, 10, cfg.Followup.RateLimitBurst)
	assert.Equal(t, 300, cfg.Followup.ProcessorTimeoutSeconds)
}

func TestLoadFromEnv(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	err := os.WriteFile(configPath, []byte(`followup:
  crm_url: "https://file-crm.internal"
`), 0644)
	require.NoError(t, err)

	os.Setenv("CRM_URL", "https://env-crm.internal")
	os.Setenv("DRAFT_COLLECTION", "env_drafts")
	defer func() {
		os.Unsetenv("CRM_URL")
		os.Unsetenv("DRAFT_COLLECTION")
	}()

	cfg, err := LoadFromEnv(configPath)
	require.NoError(t, err)

	assert.Equal(t, "https://env-crm.internal", cfg.Followup.CRMURL)
	assert.Equal(t, "env_drafts", cfg.Storage.DraftsTable)
}

func TestLoadFileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	assert.Error(t, err)
}

func TestProcessorTimeout(t *testing.T) {
	cfg := FollowupConfig{ProcessorTimeoutSeconds: 45}
	assert.Equal(t, 45*1000000000, int(cfg.ProcessorTimeout().Nanoseconds()))
}
