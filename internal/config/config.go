// Package config loads application settings from defaults, an optional
// config file, a .env file and AGENTFLOW_* environment variables, in
// increasing order of precedence. Command-line flags bound into the same
// viper instance win over all of them.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides: max_workers is AGENTFLOW_MAX_WORKERS.
const EnvPrefix = "AGENTFLOW"

// Store kinds.
const (
	StoreFile   = "file"
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// ErrInvalid is returned when a loaded configuration fails validation.
var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	AgentsDir         string        `mapstructure:"agents_dir"`
	SessionsDir       string        `mapstructure:"sessions_dir"`
	MessageExportPath string        `mapstructure:"message_export_path"`
	Models            []string      `mapstructure:"models"`
	DefaultModel      string        `mapstructure:"default_model"`
	MaxWorkers        int           `mapstructure:"max_workers"`
	CallTimeout       time.Duration `mapstructure:"call_timeout"`
	MetricsAddr       string        `mapstructure:"metrics_addr"`
	Log               Log           `mapstructure:"log"`
	Store             Store         `mapstructure:"store"`
	Anthropic         Provider      `mapstructure:"anthropic"`
	OpenAI            Provider      `mapstructure:"openai"`
}

type Log struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

type Store struct {
	Kind  string `mapstructure:"kind"`
	Redis Redis  `mapstructure:"redis"`
	// EncryptionKey is a base64 AES-256 key. When set, sessions are stored encrypted.
	EncryptionKey string   `mapstructure:"encryption_key"`
	FallbackKeys  []string `mapstructure:"fallback_keys"`
	// Redact lists key patterns whose values are masked before saving.
	Redact []string `mapstructure:"redact"`
}

type Redis struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type Provider struct {
	APIKey string `mapstructure:"api_key"`
}

// Home is the per-user application directory.
func Home() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".agentflow"
	}
	return filepath.Join(home, ".agentflow")
}

// New returns a viper instance with defaults and environment bindings.
func New() *viper.Viper {
	v := viper.New()
	home := Home()

	v.SetDefault("agents_dir", filepath.Join(home, "agents"))
	v.SetDefault("sessions_dir", filepath.Join(home, "sessions"))
	v.SetDefault("message_export_path", filepath.Join(home, "exports"))
	v.SetDefault("models", []string{})
	v.SetDefault("default_model", "")
	v.SetDefault("max_workers", 5)
	v.SetDefault("call_timeout", 2*time.Minute)
	v.SetDefault("metrics_addr", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("store.kind", StoreFile)
	v.SetDefault("store.redis.addr", "localhost:6379")
	v.SetDefault("store.redis.password", "")
	v.SetDefault("store.redis.db", 0)
	v.SetDefault("store.redis.prefix", "agentflow:session:")
	v.SetDefault("store.redis.ttl", time.Duration(0))
	v.SetDefault("store.encryption_key", "")
	v.SetDefault("store.fallback_keys", []string{})
	v.SetDefault("store.redact", []string{"(?i)api_?key", "(?i)password", "(?i)token"})
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("openai.api_key", "")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Provider SDK variables are honoured too.
	_ = v.BindEnv("anthropic.api_key", EnvPrefix+"_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("openai.api_key", EnvPrefix+"_OPENAI_API_KEY", "OPENAI_API_KEY")

	return v
}

// LoadDotEnv loads the given .env files (".env" when none). Missing files
// are skipped and variables already set are kept.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads file, or config.{yaml,json} from ./.agentflow and the user
// home directory when file is empty, and decodes the result.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".agentflow")
		v.AddConfigPath(Home())
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	var errs []error
	switch c.Store.Kind {
	case StoreFile, StoreMemory, StoreRedis:
	default:
		errs = append(errs, fmt.Errorf("%w: store.kind %q (want file, memory or redis)", ErrInvalid, c.Store.Kind))
	}
	if c.MaxWorkers < 1 {
		errs = append(errs, fmt.Errorf("%w: max_workers must be at least 1, got %d", ErrInvalid, c.MaxWorkers))
	}
	if c.CallTimeout < 0 {
		errs = append(errs, fmt.Errorf("%w: call_timeout is negative", ErrInvalid))
	}
	return errors.Join(errs...)
}
