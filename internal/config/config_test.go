package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
server:
  port: 9090
  base_url: https://travel.example.org
database:
  path: /var/lib/travelreview/review.db
review:
  cost_warning_threshold: 15000
  admin_user_ids: [1, 2]
  travel_admin_emails: [travel@example.org]
  region_reviewers:
    PAC: [31, 32]
smtp:
  enabled: true
  host: smtp.example.org
  from: travel@example.org
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SMTP_PASSWORD", "s3cret")

	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "https://travel.example.org", cfg.Server.BaseURL)
	assert.Equal(t, 1, cfg.Database.MaxOpenConns)
	assert.Equal(t, 15000.0, cfg.Review.CostWarningThreshold)
	assert.Equal(t, 21*24*time.Hour, cfg.Review.LateSubmissionWindow)
	assert.Equal(t, []int64{1, 2}, cfg.Review.AdminUserIDs)
	assert.Equal(t, []string{"travel@example.org"}, cfg.Review.TravelAdminEmails)
	assert.Equal(t, []int64{31, 32}, cfg.Review.RegionAugment()["PAC"])
	assert.Equal(t, 587, cfg.SMTP.Port)
	assert.Equal(t, "s3cret", cfg.SMTP.Password)
	assert.False(t, cfg.NATS.Enabled)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("LARK_APP_ID=cli_test\nLARK_APP_SECRET=secret\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("LARK_APP_ID")
		os.Unsetenv("LARK_APP_SECRET")
	})

	cfg, err := Load(writeConfig(t, sampleConfig+"lark:\n  enabled: true\n"))
	require.NoError(t, err)
	assert.Equal(t, "cli_test", cfg.Lark.AppID)
	assert.Equal(t, "secret", cfg.Lark.AppSecret)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Chdir(t.TempDir())
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:   ServerConfig{Port: 8080},
			Database: DatabaseConfig{Path: "review.db"},
			Review:   ReviewConfig{AdminUserIDs: []int64{1}},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "bad port", mutate: func(c *Config) { c.Server.Port = 0 }, wantErr: "server.port"},
		{name: "no database", mutate: func(c *Config) { c.Database.Path = "" }, wantErr: "database.path"},
		{name: "no admins", mutate: func(c *Config) { c.Review.AdminUserIDs = nil }, wantErr: "admin_user_ids"},
		{name: "negative threshold", mutate: func(c *Config) { c.Review.CostWarningThreshold = -1 }, wantErr: "cost_warning_threshold"},
		{name: "smtp without host", mutate: func(c *Config) { c.SMTP = SMTPConfig{Enabled: true, From: "a@example.org"} }, wantErr: "smtp.host"},
		{name: "lark without secret", mutate: func(c *Config) { c.Lark = LarkConfig{Enabled: true, AppID: "x"} }, wantErr: "lark.app_secret"},
		{name: "nats without url", mutate: func(c *Config) { c.NATS = NATSConfig{Enabled: true} }, wantErr: "nats.url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
