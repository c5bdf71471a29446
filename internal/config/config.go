// Package config loads formsheet settings from an optional .env file, a
// formsheet.yaml file and FORMSHEET_* environment variables. The Google
// Sheets secrets keep their historical variable names.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/goliatone/go-formsheet/pkg/submission"
)

// Sink kinds.
const (
	SinkSheets = "sheets"
	SinkSQLite = "sqlite"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "FORMSHEET"

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Sink      SinkConfig      `mapstructure:"sink"`
	Draft     DraftConfig     `mapstructure:"draft"`
	Log       LogConfig       `mapstructure:"log"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`

	Secrets Secrets `mapstructure:"-"`
}

type ServerConfig struct {
	Addr          string        `mapstructure:"addr"`
	Mode          string        `mapstructure:"mode"`
	BodyLimit     int64         `mapstructure:"body_limit"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	ShutdownGrace time.Duration `mapstructure:"shutdown_grace"`
}

type SinkConfig struct {
	Kind       string `mapstructure:"kind"`
	Range      string `mapstructure:"range"`
	ValueInput string `mapstructure:"value_input"`
	SQLitePath string `mapstructure:"sqlite_path"`
	StoreID    string `mapstructure:"store_id"`
}

type DraftConfig struct {
	Store          string `mapstructure:"store"`
	Endpoint       string `mapstructure:"endpoint"`
	ClearOnSuccess bool   `mapstructure:"clear_on_success"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Endpoint    string `mapstructure:"endpoint"`
	Insecure    bool   `mapstructure:"insecure"`
	ServiceName string `mapstructure:"service_name"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// Secrets are read from the process environment only.
type Secrets struct {
	SheetsCredentials string `env:"GOOGLE_SHEETS_CREDENTIALS"`
	SheetsID          string `env:"GOOGLE_SHEETS_ID"`
}

// String never prints the credential blob.
func (s Secrets) String() string {
	state := "unset"
	if s.SheetsCredentials != "" {
		state = "set"
	}
	return fmt.Sprintf("credentials=%s sheet_id=%s", state, s.SheetsID)
}

// LoadOptions controls where configuration is read from.
type LoadOptions struct {
	// ConfigFile is an explicit config path. When empty, formsheet.yaml is
	// searched for in SearchPaths and its absence is not an error.
	ConfigFile  string
	SearchPaths []string
	// DotEnv lists .env files to load; a missing file is skipped.
	DotEnv []string
}

// Load resolves the configuration. Environment variables override file
// values, which override defaults.
func Load(opts LoadOptions) (*Config, error) {
	if err := loadDotEnv(opts.DotEnv); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", opts.ConfigFile, err)
		}
	} else {
		v.SetConfigName("formsheet")
		v.SetConfigType("yaml")
		paths := opts.SearchPaths
		if len(paths) == 0 {
			paths = []string{"."}
		}
		for _, path := range paths {
			v.AddConfigPath(path)
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("config: read: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := env.Parse(&cfg.Secrets); err != nil {
		return nil, fmt.Errorf("config: parse env: %w", err)
	}
	cfg.Sink.Kind = strings.ToLower(strings.TrimSpace(cfg.Sink.Kind))
	return &cfg, nil
}

func loadDotEnv(files []string) error {
	for _, file := range files {
		if err := godotenv.Load(file); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("config: load %s: %w", file, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.body_limit", 1<<20)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_grace", 10*time.Second)

	v.SetDefault("sink.kind", SinkSheets)
	v.SetDefault("sink.range", "Sheet1")
	v.SetDefault("sink.value_input", "USER_ENTERED")
	v.SetDefault("sink.sqlite_path", "formsheet.db")
	v.SetDefault("sink.store_id", "local")

	v.SetDefault("draft.store", "file:.formsheet/draft.json")
	v.SetDefault("draft.endpoint", "http://localhost:8080/api/submit")
	v.SetDefault("draft.clear_on_success", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 50)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "localhost:4318")
	v.SetDefault("tracing.insecure", true)
	v.SetDefault("tracing.service_name", "formsheet")

	v.SetDefault("rate_limit.requests_per_second", 5.0)
	v.SetDefault("rate_limit.burst", 10)
}

// Validate checks the settings needed to serve submissions.
func (c *Config) Validate() error {
	var problems []string
	switch c.Sink.Kind {
	case SinkSheets:
		if strings.TrimSpace(c.Secrets.SheetsCredentials) == "" {
			problems = append(problems, "GOOGLE_SHEETS_CREDENTIALS is required for the sheets sink")
		} else if !json.Valid([]byte(c.Secrets.SheetsCredentials)) {
			problems = append(problems, "GOOGLE_SHEETS_CREDENTIALS must be a JSON document")
		}
		if strings.TrimSpace(c.Secrets.SheetsID) == "" {
			problems = append(problems, "GOOGLE_SHEETS_ID is required for the sheets sink")
		}
	case SinkSQLite:
		if strings.TrimSpace(c.Sink.SQLitePath) == "" {
			problems = append(problems, "sink.sqlite_path is required for the sqlite sink")
		}
	default:
		problems = append(problems, fmt.Sprintf("sink.kind %q is not one of sheets, sqlite", c.Sink.Kind))
	}
	if c.Server.BodyLimit <= 0 {
		problems = append(problems, "server.body_limit must be positive")
	}
	if c.RateLimit.RequestsPerSecond < 0 || c.RateLimit.Burst < 0 {
		problems = append(problems, "rate_limit values must not be negative")
	}
	if len(problems) > 0 {
		return fmt.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Target returns where rows are appended for the configured sink.
func (c *Config) Target() submission.Target {
	if c.Sink.Kind == SinkSQLite {
		return submission.Target{StoreID: c.Sink.StoreID, Range: c.Sink.Range}
	}
	return submission.Target{StoreID: c.Secrets.SheetsID, Range: c.Sink.Range}
}
