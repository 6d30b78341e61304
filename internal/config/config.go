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

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Uploads   UploadsConfig   `yaml:"uploads"`
	Storage   StorageConfig   `yaml:"storage"`
	Quota     QuotaConfig     `yaml:"quota"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

type ServerConfig struct {
	Address         string        `yaml:"address"`
	SiteURL         string        `yaml:"site_url"`
	SessionLifetime time.Duration `yaml:"session_lifetime"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Path       string `yaml:"path"`
	Migrations string `yaml:"migrations"`
}

type UploadsConfig struct {
	MaxFileSize  int64    `yaml:"max_file_size"`
	AllowedTypes []string `yaml:"allowed_types"`
}

// StorageConfig picks where uploaded files go. Driver "disk" keeps them under Dir and serves
// them from /files; "s3" (also used for R2) pushes them to a bucket.
type StorageConfig struct {
	Driver        string `yaml:"driver"`
	Dir           string `yaml:"dir"`
	PublicBaseURL string `yaml:"public_base_url"`

	Endpoint        string `yaml:"endpoint"`
	Region          string `yaml:"region"`
	Bucket          string `yaml:"bucket"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	UsePathStyle    bool   `yaml:"use_path_style"`
}

type QuotaConfig struct {
	MonthlyUploads int `yaml:"monthly_uploads"`
	MonthlySaves   int `yaml:"monthly_saves"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

const (
	DriverDisk = "disk"
	DriverS3   = "s3"
)

func Default() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":8080",
			SiteURL:         "http://localhost:8080",
			SessionLifetime: 30 * 24 * time.Hour,
			AllowedOrigins:  []string{"*"},
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Path:       "bracket_manager.db",
			Migrations: "file://migrations",
		},
		Uploads: UploadsConfig{
			MaxFileSize:  10 * 1024 * 1024,
			AllowedTypes: []string{"image/jpeg", "image/png", "image/gif", "image/webp", "application/pdf"},
		},
		Storage: StorageConfig{
			Driver: DriverDisk,
			Dir:    "uploads",
		},
		Quota: QuotaConfig{
			MonthlyUploads: 1000,
			MonthlySaves:   500,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 5,
			Burst:             20,
		},
	}
}

// LoadConfig reads filename over the defaults and then applies environment overrides. A missing
// file is not an error.
func LoadConfig(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	if cfg.Storage.PublicBaseURL == "" && cfg.Storage.Driver == DriverDisk {
		cfg.Storage.PublicBaseURL = strings.TrimSuffix(cfg.Server.SiteURL, "/") + "/files"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Uploads.MaxFileSize <= 0 {
		return errors.New("uploads.max_file_size must be positive")
	}
	if len(c.Uploads.AllowedTypes) == 0 {
		return errors.New("uploads.allowed_types must not be empty")
	}
	if c.Quota.MonthlyUploads < 0 || c.Quota.MonthlySaves < 0 {
		return errors.New("quota limits cannot be negative")
	}
	switch c.Storage.Driver {
	case DriverDisk:
		if c.Storage.Dir == "" {
			return errors.New("storage.dir is required for the disk driver")
		}
	case DriverS3:
		if c.Storage.Bucket == "" || c.Storage.AccessKeyID == "" || c.Storage.SecretAccessKey == "" {
			return errors.New("storage bucket and credentials are required for the s3 driver")
		}
		if c.Storage.PublicBaseURL == "" {
			return errors.New("storage.public_base_url is required for the s3 driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("SITE_URL"); v != "" {
		cfg.Server.SiteURL = v
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("MIGRATIONS_SOURCE"); v != "" {
		cfg.Database.Migrations = v
	}
	if v := os.Getenv("MAX_FILE_SIZE"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid MAX_FILE_SIZE value: %w", err)
		}
		cfg.Uploads.MaxFileSize = n
	}
	if v := os.Getenv("ALLOWED_FILE_TYPES"); v != "" {
		cfg.Uploads.AllowedTypes = splitList(v)
	}
	if v := os.Getenv("MONTHLY_UPLOAD_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid MONTHLY_UPLOAD_LIMIT value: %w", err)
		}
		cfg.Quota.MonthlyUploads = n
	}
	if v := os.Getenv("MONTHLY_SAVE_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid MONTHLY_SAVE_LIMIT value: %w", err)
		}
		cfg.Quota.MonthlySaves = n
	}
	if v := os.Getenv("STORAGE_DRIVER"); v != "" {
		cfg.Storage.Driver = v
	}
	if v := os.Getenv("UPLOAD_DIR"); v != "" {
		cfg.Storage.Dir = v
	}
	if v := os.Getenv("R2_ACCOUNT_ID"); v != "" {
		cfg.Storage.Endpoint = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", v)
	}
	if v := os.Getenv("STORAGE_ENDPOINT"); v != "" {
		cfg.Storage.Endpoint = v
	}
	if v := os.Getenv("STORAGE_REGION"); v != "" {
		cfg.Storage.Region = v
	}
	if v := os.Getenv("R2_BUCKET_NAME"); v != "" {
		cfg.Storage.Bucket = v
	}
	if v := os.Getenv("R2_ACCESS_KEY_ID"); v != "" {
		cfg.Storage.AccessKeyID = v
	}
	if v := os.Getenv("R2_SECRET_ACCESS_KEY"); v != "" {
		cfg.Storage.SecretAccessKey = v
	}
	if v := os.Getenv("R2_PUBLIC_BASE_URL"); v != "" {
		cfg.Storage.PublicBaseURL = v
	}
	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid RATE_LIMIT_RPS value: %w", err)
		}
		cfg.RateLimit.RequestsPerSecond = f
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid RATE_LIMIT_BURST value: %w", err)
		}
		cfg.RateLimit.Burst = n
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
