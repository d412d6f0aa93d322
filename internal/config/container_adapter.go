package config

import (
	"github.com/garyjia/travel-review/internal/container"
)

// ToContainerConfig converts the application Config to a container.Config.
// This provides a bridge between the file-based config loaded by viper
// and the container's configuration structure.
func (c *Config) ToContainerConfig() *container.Config {
	return &container.Config{
		Database: container.DatabaseConfig{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
		},
		Server: container.ServerConfig{
			Host:         c.Server.Host,
			Port:         c.Server.Port,
			ReadTimeout:  c.Server.ReadTimeout,
			WriteTimeout: c.Server.WriteTimeout,
		},
		Review: container.ReviewConfig{
			CostWarningThreshold: c.Review.CostWarningThreshold,
			LateSubmissionWindow: c.Review.LateSubmissionWindow,
			AdminUserIDs:         c.Review.AdminUserIDs,
			TravelAdminEmails:    c.Review.TravelAdminEmails,
			RegionReviewers:      c.Review.RegionAugment(),
		},
		Notify: container.NotifyConfig{
			BaseURL:           c.Server.BaseURL,
			SMTPEnabled:       c.SMTP.Enabled,
			SMTPHost:          c.SMTP.Host,
			SMTPPort:          c.SMTP.Port,
			SMTPUsername:      c.SMTP.Username,
			SMTPPassword:      c.SMTP.Password,
			SMTPFrom:          c.SMTP.From,
			SMTPSkipTLSVerify: c.SMTP.SkipTLSVerify,
			LarkEnabled:       c.Lark.Enabled,
			LarkAppID:         c.Lark.AppID,
			LarkAppSecret:     c.Lark.AppSecret,
		},
		Queue: container.QueueConfig{
			Enabled: c.NATS.Enabled,
			URL:     c.NATS.URL,
			Subject: c.NATS.Subject,
			Queue:   c.NATS.Queue,
		},
	}
}
