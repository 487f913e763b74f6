// Package config loads the server configuration from an optional YAML file
// overlaid by NEXONSITE_* environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"nexonsite/internal/blob"
	"nexonsite/internal/chat"
	"nexonsite/internal/core"
)

// Config is the full server configuration.
type Config struct {
	Listen  string             `yaml:"listen"`
	Log     LogConfig          `yaml:"log"`
	Live    LiveConfig         `yaml:"live"`
	Auth    AuthConfig         `yaml:"auth"`
	Storage core.StorageConfig `yaml:"storage"`
	Blob    blob.Config        `yaml:"blob"`
	Chat    chat.Config        `yaml:"chat"`
}

// LogConfig selects logger level and encoding.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// LiveConfig tunes live subscriptions.
type LiveConfig struct {
	LoadTimeout time.Duration `yaml:"load_timeout"`
	// Strict makes the permission-error sink panic after logging.
	Strict bool `yaml:"strict"`
}

// AuthConfig holds the admin token secret.
type AuthConfig struct {
	Secret   string        `yaml:"secret"`
	TokenTTL time.Duration `yaml:"token_ttl"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Listen: ":8080",
		Log:    LogConfig{Level: "info"},
		Live:   LiveConfig{LoadTimeout: 10 * time.Second},
		Auth:   AuthConfig{TokenTTL: 12 * time.Hour},
		Storage: core.StorageConfig{
			Driver:     core.StorageSQLite,
			SQLitePath: "./nexonsite.db",
		},
		Blob: blob.Config{Driver: blob.DriverFilesystem, FSRoot: "./blobdata", PublicBaseURL: "/media"},
		Chat: chat.Config{Model: chat.DefaultModel},
	}
}

// Load reads path (when non-empty) over the defaults, then applies the
// environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := decode(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decode(raw []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ApplyEnv overlays variables found by lookup onto cfg.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("NEXONSITE_LISTEN", &c.Listen)
	str("NEXONSITE_LOG_LEVEL", &c.Log.Level)
	str("NEXONSITE_AUTH_SECRET", &c.Auth.Secret)
	str("GEMINI_API_KEY", &c.Chat.APIKey)
	str("NEXONSITE_CHAT_MODEL", &c.Chat.Model)

	var driver string
	str("NEXONSITE_STORAGE_DRIVER", &driver)
	if driver != "" {
		c.Storage.Driver = core.StorageDriver(driver)
	}
	str("NEXONSITE_SQLITE_PATH", &c.Storage.SQLitePath)
	str("NEXONSITE_POSTGRES_DSN", &c.Storage.PostgresDSN)

	var blobDriver string
	str("NEXONSITE_BLOB_DRIVER", &blobDriver)
	if blobDriver != "" {
		c.Blob.Driver = blob.Driver(blobDriver)
	}
	str("NEXONSITE_BLOB_FS_ROOT", &c.Blob.FSRoot)
	str("NEXONSITE_BLOB_PUBLIC_URL", &c.Blob.PublicBaseURL)
	str("NEXONSITE_BLOB_PUBLIC_URL", &c.Blob.S3.PublicBaseURL)
	str("NEXONSITE_BLOB_S3_BUCKET", &c.Blob.S3.Bucket)
	str("NEXONSITE_BLOB_S3_REGION", &c.Blob.S3.Region)
	str("NEXONSITE_BLOB_S3_ENDPOINT", &c.Blob.S3.Endpoint)

	if v, ok := lookup("NEXONSITE_BLOB_S3_PATH_STYLE"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("NEXONSITE_BLOB_S3_PATH_STYLE: %w", err)
		}
		c.Blob.S3.PathStyle = b
	}
	if v, ok := lookup("NEXONSITE_LIVE_LOAD_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("NEXONSITE_LIVE_LOAD_TIMEOUT: %w", err)
		}
		c.Live.LoadTimeout = d
	}
	return nil
}

// Validate rejects inconsistent settings.
func (c Config) Validate() error {
	var problems []string
	if c.Listen == "" {
		problems = append(problems, "listen address is empty")
	}
	switch c.Storage.Driver {
	case "", core.StorageMemory, core.StorageSQLite:
	case core.StoragePostgres:
		if c.Storage.PostgresDSN == "" {
			problems = append(problems, "storage.postgres_dsn is required for the postgres driver")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown storage driver %q", c.Storage.Driver))
	}
	switch c.Blob.Driver {
	case "", blob.DriverFilesystem, blob.DriverMemory:
	case blob.DriverS3:
		if c.Blob.S3.Bucket == "" {
			problems = append(problems, "blob.s3.bucket is required for the s3 driver")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown blob driver %q", c.Blob.Driver))
	}
	if c.Live.LoadTimeout < 0 {
		problems = append(problems, "live.load_timeout must not be negative")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}
