package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Followup FollowupConfig `yaml:"followup"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// GetHost returns the server host, with ECS detection.
func (c ServerConfig) GetHost() string {
	// On ECS/container, listen on all interfaces.
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// StorageConfig holds the DynamoDB connection settings for the two
// followup-engine tables.
type StorageConfig struct {
	DraftsTable    string `yaml:"drafts_table"`
	FollowupsTable string `yaml:"followups_table"`
	AWSRegion      string `yaml:"aws_region"`
	AWSProfile     string `yaml:"aws_profile"` // Empty string uses default credential chain (IAM role on ECS)
}

// GetAWSProfile returns the AWS profile, with environment variable override.
func (c StorageConfig) GetAWSProfile() string {
	if envProfile := os.Getenv("AWS_PROFILE_OVERRIDE"); envProfile != "" {
		if envProfile == "none" || envProfile == "iam" {
			return "" // Use default credential chain (IAM role)
		}
		return envProfile
	}
	// On ECS/Lambda, don't use a profile - use IAM role.
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return ""
	}
	return c.AWSProfile
}

// FollowupConfig holds the followup engine's own settings: its external
// collaborators and inbound rate limits.
type FollowupConfig struct {
	MailWriterURL           string `yaml:"mail_writer_url"`
	CRMURL                  string `yaml:"crm_url"`
	CRMSecret               string `yaml:"crm_secret"`
	RateLimitPerMinute      int    `yaml:"rate_limit_per_minute"`
	RateLimitBurst          int    `yaml:"rate_limit_burst"`
	ProcessorTimeoutSeconds int    `yaml:"processor_timeout_seconds"`
}

// ProcessorTimeout returns the configured processor-tick timeout as a
// duration.
func (c FollowupConfig) ProcessorTimeout() time.Duration {
	return time.Duration(c.ProcessorTimeoutSeconds) * time.Second
}

// Load reads and parses the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Storage.DraftsTable == "" {
		cfg.Storage.DraftsTable = "email_drafts"
	}
	if cfg.Storage.FollowupsTable == "" {
		cfg.Storage.FollowupsTable = "email_followups"
	}
	if cfg.Storage.AWSRegion == "" {
		cfg.Storage.AWSRegion = "us-west-2"
	}
	if cfg.Followup.RateLimitPerMinute == 0 {
		cfg.Followup.RateLimitPerMinute = 60
	}
	if cfg.Followup.RateLimitBurst == 0 {
		cfg.Followup.RateLimitBurst = 10
	}
	if cfg.Followup.ProcessorTimeoutSeconds == 0 {
		cfg.Followup.ProcessorTimeoutSeconds = 300
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars on ECS.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("PORT"); v != "" {
		if port, err := parsePositiveInt(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("DRAFT_COLLECTION"); v != "" {
		cfg.Storage.DraftsTable = v
	}
	if v := os.Getenv("FOLLOWUP_COLLECTION"); v != "" {
		cfg.Storage.FollowupsTable = v
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		cfg.Storage.AWSRegion = v
	}
	if v := os.Getenv("MAIL_WRITER_URL"); v != "" {
		cfg.Followup.MailWriterURL = v
	}
	if v := os.Getenv("CRM_URL"); v != "" {
		cfg.Followup.CRMURL = v
	}
	if v := os.Getenv("CRM_SECRET"); v != "" {
		cfg.Followup.CRMSecret = v
	}

	return cfg, nil
}

func parsePositiveInt(s string) (int, error) {
	var n int
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, os.ErrInvalid
		}
		n = n*10 + int(r-'0')
	}
	return n, nil
}
