package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Logger   LoggerConfig   `mapstructure:"logger"`
	Review   ReviewConfig   `mapstructure:"review"`
	SMTP     SMTPConfig     `mapstructure:"smtp"`
	Lark     LarkConfig     `mapstructure:"lark"`
	NATS     NATSConfig     `mapstructure:"nats"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// BaseURL prefixes links in notification messages
	BaseURL string `mapstructure:"base_url"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// ReviewConfig holds the review rules that vary by deployment
type ReviewConfig struct {
	CostWarningThreshold float64            `mapstructure:"cost_warning_threshold"`
	LateSubmissionWindow time.Duration      `mapstructure:"late_submission_window"`
	AdminUserIDs         []int64            `mapstructure:"admin_user_ids"`
	TravelAdminEmails    []string           `mapstructure:"travel_admin_emails"`
	RegionReviewers      map[string][]int64 `mapstructure:"region_reviewers"`
}

// RegionAugment returns the extra regional reviewers keyed by region code.
// Viper lowercases map keys, so codes are restored to upper case.
func (r ReviewConfig) RegionAugment() map[string][]int64 {
	if len(r.RegionReviewers) == 0 {
		return nil
	}
	out := make(map[string][]int64, len(r.RegionReviewers))
	for code, ids := range r.RegionReviewers {
		out[strings.ToUpper(code)] = ids
	}
	return out
}

// SMTPConfig holds the email channel configuration
type SMTPConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	Username      string `mapstructure:"username"`
	Password      string `mapstructure:"password"`
	From          string `mapstructure:"from"`
	SkipTLSVerify bool   `mapstructure:"skip_tls_verify"`
}

// LarkConfig holds the Lark IM channel configuration
type LarkConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	AppID     string `mapstructure:"app_id"`
	AppSecret string `mapstructure:"app_secret"`
}

// NATSConfig holds the notification queue configuration
type NATSConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Subject string `mapstructure:"subject"`
	Queue   string `mapstructure:"queue"`
}

// Load loads configuration from an optional YAML file, a .env file and
// environment variables, in increasing precedence
func Load(configPath string) (*Config, error) {
	if err := gotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("TRAVELREVIEW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)

	// Database defaults. SQLite allows one writer, so the pool stays at one connection.
	v.SetDefault("database.path", "data/travelreview.db")
	v.SetDefault("database.max_open_conns", 1)
	v.SetDefault("database.max_idle_conns", 1)
	v.SetDefault("database.conn_max_lifetime", time.Hour)

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")

	// Review defaults
	v.SetDefault("review.cost_warning_threshold", 10000.0)
	v.SetDefault("review.late_submission_window", 21*24*time.Hour)

	// Channel defaults
	v.SetDefault("smtp.port", 587)
	v.SetDefault("nats.url", "nats://127.0.0.1:4222")
	v.SetDefault("nats.subject", "travelreview.notices")
	v.SetDefault("nats.queue", "notice-relay")
}

// bindEnvVars binds the credentials usually kept out of config files
func bindEnvVars(v *viper.Viper) {
	_ = v.BindEnv("smtp.username", "SMTP_USERNAME")
	_ = v.BindEnv("smtp.password", "SMTP_PASSWORD")
	_ = v.BindEnv("lark.app_id", "LARK_APP_ID")
	_ = v.BindEnv("lark.app_secret", "LARK_APP_SECRET")
	_ = v.BindEnv("nats.url", "NATS_URL")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Review.CostWarningThreshold < 0 {
		return fmt.Errorf("review.cost_warning_threshold must not be negative")
	}
	if c.Review.LateSubmissionWindow < 0 {
		return fmt.Errorf("review.late_submission_window must not be negative")
	}
	if len(c.Review.AdminUserIDs) == 0 {
		return fmt.Errorf("review.admin_user_ids needs at least one travel administrator")
	}

	if c.SMTP.Enabled {
		if c.SMTP.Host == "" {
			return fmt.Errorf("smtp.host is required when smtp is enabled")
		}
		if c.SMTP.From == "" {
			return fmt.Errorf("smtp.from is required when smtp is enabled")
		}
	}

	if c.Lark.Enabled {
		if c.Lark.AppID == "" {
			return fmt.Errorf("lark.app_id is required when lark is enabled")
		}
		if c.Lark.AppSecret == "" {
			return fmt.Errorf("lark.app_secret is required when lark is enabled")
		}
	}

	if c.NATS.Enabled && c.NATS.URL == "" {
		return fmt.Errorf("nats.url is required when nats is enabled")
	}

	return nil
}
