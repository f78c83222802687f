// Package config loads server settings from an optional YAML file and
// FREIGHTDOCS_* environment variables. Environment values win over the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const envPrefix = "FREIGHTDOCS_"

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Auth     AuthConfig     `yaml:"auth"`
	Email    EmailConfig    `yaml:"email"`
	Classify ClassifyConfig `yaml:"classify"`
	Storage  StorageConfig  `yaml:"storage"`
	Push     PushConfig     `yaml:"push"`
	Audit    AuditConfig    `yaml:"audit"`
}

type ServerConfig struct {
	Port           string   `yaml:"port"`
	DBPath         string   `yaml:"db_path"`
	BaseURL        string   `yaml:"base_url"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type AuthConfig struct {
	JWTSecret         string `yaml:"jwt_secret"`
	UnsubscribeSecret string `yaml:"unsubscribe_secret"`
	InviteExpiryHours int    `yaml:"invite_expiry_hours"`
}

type EmailConfig struct {
	PostmarkToken string `yaml:"postmark_token"`
	FromEmail     string `yaml:"from_email"`
}

type ClassifyConfig struct {
	APIKey              string        `yaml:"api_key"`
	BaseURL             string        `yaml:"base_url"`
	Model               string        `yaml:"model"`
	MaxRetries          int           `yaml:"max_retries"`
	RetryDelay          time.Duration `yaml:"retry_delay"`
	ConfidenceThreshold float64       `yaml:"confidence_threshold"`
	RequestTimeout      time.Duration `yaml:"request_timeout"`
}

type StorageConfig struct {
	Endpoint   string        `yaml:"endpoint"`
	Bucket     string        `yaml:"bucket"`
	Region     string        `yaml:"region"`
	AccessKey  string        `yaml:"access_key"`
	SecretKey  string        `yaml:"secret_key"`
	PresignTTL time.Duration `yaml:"presign_ttl"`
}

type PushConfig struct {
	VAPIDPublicKey  string `yaml:"vapid_public_key"`
	VAPIDPrivateKey string `yaml:"vapid_private_key"`
	Subscriber      string `yaml:"subscriber"`
}

type AuditConfig struct {
	RetentionDays int `yaml:"retention_days"`
}

// InviteExpiry returns the configured invite lifetime.
func (c *Config) InviteExpiry() time.Duration {
	return time.Duration(c.Auth.InviteExpiryHours) * time.Hour
}

// AuditRetention returns how long audit rows are kept before pruning.
func (c *Config) AuditRetention() time.Duration {
	return time.Duration(c.Audit.RetentionDays) * 24 * time.Hour
}

// Load reads path (if non-empty and present), applies environment overrides
// and fills defaults.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.setDefaults()
	return &cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(envPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	integer := func(name string, dst *int) {
		if v, ok := lookup(envPrefix + name); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	float := func(name string, dst *float64) {
		if v, ok := lookup(envPrefix + name); ok && v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
				return
			}
			*dst = f
		}
	}
	duration := func(name string, dst *time.Duration) {
		if v, ok := lookup(envPrefix + name); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
				return
			}
			*dst = d
		}
	}

	str("PORT", &c.Server.Port)
	str("DB_PATH", &c.Server.DBPath)
	str("BASE_URL", &c.Server.BaseURL)
	if v, ok := lookup(envPrefix + "ALLOWED_ORIGINS"); ok && v != "" {
		c.Server.AllowedOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.Server.AllowedOrigins = append(c.Server.AllowedOrigins, o)
			}
		}
	}
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("JWT_SECRET", &c.Auth.JWTSecret)
	str("UNSUBSCRIBE_SECRET", &c.Auth.UnsubscribeSecret)
	integer("INVITE_EXPIRY_HOURS", &c.Auth.InviteExpiryHours)
	str("POSTMARK_TOKEN", &c.Email.PostmarkToken)
	str("FROM_EMAIL", &c.Email.FromEmail)
	str("OPENAI_API_KEY", &c.Classify.APIKey)
	str("OPENAI_BASE_URL", &c.Classify.BaseURL)
	str("OPENAI_MODEL", &c.Classify.Model)
	integer("CLASSIFY_MAX_RETRIES", &c.Classify.MaxRetries)
	duration("CLASSIFY_RETRY_DELAY", &c.Classify.RetryDelay)
	float("CLASSIFY_CONFIDENCE_THRESHOLD", &c.Classify.ConfidenceThreshold)
	duration("CLASSIFY_REQUEST_TIMEOUT", &c.Classify.RequestTimeout)
	str("S3_ENDPOINT", &c.Storage.Endpoint)
	str("S3_BUCKET", &c.Storage.Bucket)
	str("S3_REGION", &c.Storage.Region)
	str("S3_ACCESS_KEY", &c.Storage.AccessKey)
	str("S3_SECRET_KEY", &c.Storage.SecretKey)
	duration("PRESIGN_TTL", &c.Storage.PresignTTL)
	str("VAPID_PUBLIC_KEY", &c.Push.VAPIDPublicKey)
	str("VAPID_PRIVATE_KEY", &c.Push.VAPIDPrivateKey)
	str("VAPID_SUBSCRIBER", &c.Push.Subscriber)
	integer("AUDIT_RETENTION_DAYS", &c.Audit.RetentionDays)

	return errors.Join(errs...)
}

func (c *Config) setDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.DBPath == "" {
		c.Server.DBPath = "freightdocs.db"
	}
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = "http://localhost:" + c.Server.Port
	}
	c.Server.BaseURL = strings.TrimRight(c.Server.BaseURL, "/")
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Auth.InviteExpiryHours <= 0 {
		c.Auth.InviteExpiryHours = 72
	}
	if c.Classify.MaxRetries <= 0 {
		c.Classify.MaxRetries = 3
	}
	if c.Classify.RetryDelay <= 0 {
		c.Classify.RetryDelay = time.Second
	}
	if c.Classify.ConfidenceThreshold <= 0 {
		c.Classify.ConfidenceThreshold = 0.7
	}
	if c.Classify.RequestTimeout <= 0 {
		c.Classify.RequestTimeout = 30 * time.Second
	}
	if c.Storage.Region == "" {
		c.Storage.Region = "us-east-1"
	}
	if c.Storage.PresignTTL <= 0 {
		c.Storage.PresignTTL = 15 * time.Minute
	}
	if c.Audit.RetentionDays <= 0 {
		c.Audit.RetentionDays = 180
	}
}
