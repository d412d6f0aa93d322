// Package container provides dependency injection and lifecycle management
// for the travel review engine.
package container

import (
	"fmt"
	"time"
)

// Config holds all configuration for the Container.
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Review   ReviewConfig
	Notify   NotifyConfig
	Queue    QueueConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Path to SQLite database file
	Path string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// ReviewConfig holds the review policy.
type ReviewConfig struct {
	// CostWarningThreshold is the non-resident trip total that warns travel administration
	CostWarningThreshold float64

	// LateSubmissionWindow is how long before a trip starts submissions become late
	LateSubmissionWindow time.Duration

	// AdminUserIDs are the travel administrators
	AdminUserIDs []int64

	// TravelAdminEmails receive cost warnings
	TravelAdminEmails []string

	// RegionReviewers are extra plain reviewers per region code
	RegionReviewers map[string][]int64
}

// NotifyConfig holds notification channel settings. A channel with
// Enabled false is not wired; with no channel enabled notices are only logged.
type NotifyConfig struct {
	BaseURL string

	SMTPEnabled       bool
	SMTPHost          string
	SMTPPort          int
	SMTPUsername      string
	SMTPPassword      string
	SMTPFrom          string
	SMTPSkipTLSVerify bool

	LarkEnabled   bool
	LarkAppID     string
	LarkAppSecret string
}

// QueueConfig holds the NATS notice queue settings.
type QueueConfig struct {
	Enabled bool
	URL     string
	Subject string
	Queue   string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:            "data/travelreview.db",
			MaxOpenConns:    1,
			MaxIdleConns:    1,
			ConnMaxLifetime: time.Hour,
		},
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Review: ReviewConfig{
			CostWarningThreshold: 10000,
			LateSubmissionWindow: 21 * 24 * time.Hour,
		},
		Notify: NotifyConfig{
			SMTPPort: 587,
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if len(c.Review.AdminUserIDs) == 0 {
		return fmt.Errorf("review.admin_user_ids is required")
	}
	if c.Notify.SMTPEnabled && (c.Notify.SMTPHost == "" || c.Notify.SMTPFrom == "") {
		return fmt.Errorf("smtp host and from are required when smtp is enabled")
	}
	if c.Notify.LarkEnabled && (c.Notify.LarkAppID == "" || c.Notify.LarkAppSecret == "") {
		return fmt.Errorf("lark app_id and app_secret are required when lark is enabled")
	}
	if c.Queue.Enabled && c.Queue.URL == "" {
		return fmt.Errorf("nats.url is required when the queue is enabled")
	}
	return nil
}
