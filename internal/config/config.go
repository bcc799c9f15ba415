// Package config loads examist settings from defaults, an optional YAML file
// and EXAMIST_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "EXAMIST_"

// Config is the complete runtime configuration.
type Config struct {
	Log     Log     `yaml:"log"`
	Catalog Catalog `yaml:"catalog"`
	Blob    Blob    `yaml:"blob"`
	Store   Store   `yaml:"store"`
	Auth    Auth    `yaml:"auth"`
}

// Log selects the slog handler.
type Log struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// Catalog selects the API handle backend.
type Catalog struct {
	Driver      string        `yaml:"driver" validate:"oneof=memory sqlite postgres http"`
	SQLitePath  string        `yaml:"sqlite_path" validate:"required_if=Driver sqlite"`
	PostgresDSN string        `yaml:"postgres_dsn" validate:"required_if=Driver postgres"`
	BaseURL     string        `yaml:"base_url" validate:"required_if=Driver http,omitempty,url"`
	Timeout     time.Duration `yaml:"timeout" validate:"gt=0"`
	Seed        bool          `yaml:"seed"`
}

// Blob selects the paper document store.
type Blob struct {
	Driver        string        `yaml:"driver" validate:"oneof=memory s3"`
	S3Bucket      string        `yaml:"s3_bucket" validate:"required_if=Driver s3"`
	S3Region      string        `yaml:"s3_region"`
	S3Endpoint    string        `yaml:"s3_endpoint" validate:"omitempty,url"`
	S3PathStyle   bool          `yaml:"s3_path_style"`
	PresignExpiry time.Duration `yaml:"presign_expiry" validate:"gte=0"`
}

// Store tunes the resource store.
type Store struct {
	Metrics  string `yaml:"metrics" validate:"oneof=none prometheus expvar"`
	MemoSize int    `yaml:"memo_size" validate:"min=1"`
}

// Auth holds the credentials the CLI signs in with. Key takes precedence over
// Email and Password.
type Auth struct {
	Key      string `yaml:"key"`
	Email    string `yaml:"email" validate:"omitempty,email"`
	Password string `yaml:"password" validate:"required_with=Email"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Log:     Log{Level: "info", Format: "text"},
		Catalog: Catalog{Driver: "memory", Timeout: 10 * time.Second, Seed: true},
		Blob:    Blob{Driver: "memory", S3Region: "us-east-1", PresignExpiry: 15 * time.Minute},
		Store:   Store{Metrics: "none", MemoSize: 128},
	}
}

// Load reads path (skipped when empty), applies environment overrides and
// validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and reports every violation.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s fails %q", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("invalid config: %s: %w", strings.Join(msgs, "; "), err)
}

type lookupFunc func(string) (string, bool)

func applyEnv(cfg *Config, lookup lookupFunc) error {
	strs := map[string]*string{
		"LOG_LEVEL":            &cfg.Log.Level,
		"LOG_FORMAT":           &cfg.Log.Format,
		"CATALOG_DRIVER":       &cfg.Catalog.Driver,
		"CATALOG_SQLITE_PATH":  &cfg.Catalog.SQLitePath,
		"CATALOG_POSTGRES_DSN": &cfg.Catalog.PostgresDSN,
		"CATALOG_BASE_URL":     &cfg.Catalog.BaseURL,
		"BLOB_DRIVER":          &cfg.Blob.Driver,
		"BLOB_S3_BUCKET":       &cfg.Blob.S3Bucket,
		"BLOB_S3_REGION":       &cfg.Blob.S3Region,
		"BLOB_S3_ENDPOINT":     &cfg.Blob.S3Endpoint,
		"STORE_METRICS":        &cfg.Store.Metrics,
		"AUTH_KEY":             &cfg.Auth.Key,
		"AUTH_EMAIL":           &cfg.Auth.Email,
		"AUTH_PASSWORD":        &cfg.Auth.Password,
	}
	for name, dst := range strs {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = strings.TrimSpace(v)
		}
	}

	durations := map[string]*time.Duration{
		"CATALOG_TIMEOUT":     &cfg.Catalog.Timeout,
		"BLOB_PRESIGN_EXPIRY": &cfg.Blob.PresignExpiry,
	}
	for name, dst := range durations {
		if v, ok := lookup(EnvPrefix + name); ok {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
			}
			*dst = d
		}
	}

	bools := map[string]*bool{
		"CATALOG_SEED":       &cfg.Catalog.Seed,
		"BLOB_S3_PATH_STYLE": &cfg.Blob.S3PathStyle,
	}
	for name, dst := range bools {
		if v, ok := lookup(EnvPrefix + name); ok {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
			}
			*dst = b
		}
	}

	if v, ok := lookup(EnvPrefix + "STORE_MEMO_SIZE"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%sSTORE_MEMO_SIZE: %w", EnvPrefix, err)
		}
		cfg.Store.MemoSize = n
	}
	return nil
}
