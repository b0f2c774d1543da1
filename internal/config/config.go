// Package config resolves CLI settings from flags, environment variables,
// dotenv files and an optional .sqlkit.yaml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable: SQLKIT_DSN, ...
const EnvPrefix = "SQLKIT"

// Config holds the resolved settings.
type Config struct {
	DSN         string
	Dialect     string
	LogLevel    string
	Format      string
	Concurrency int
	Timeout     time.Duration
	// MetricsFile, when set, receives the Prometheus text exposition after a run.
	MetricsFile string
}

// Loader wraps a private viper instance so tests and commands do not share
// global state.
type Loader struct {
	v *viper.Viper
	// ConfigFile overrides the search for .sqlkit.yaml.
	ConfigFile string
}

// NewLoader creates a loader with defaults and environment binding.
func NewLoader() *Loader {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	v.SetDefault("dialect", "mysql")
	v.SetDefault("log_level", "warn")
	v.SetDefault("format", "sql")
	v.SetDefault("concurrency", 4)
	v.SetDefault("timeout", 10*time.Minute)

	return &Loader{v: v}
}

// BindFlags binds command flags so that explicitly set flags override the
// environment and config file. Flag names use dashes; keys use underscores.
func (l *Loader) BindFlags(flags *pflag.FlagSet) error {
	for _, name := range []string{"dsn", "dialect", "log-level", "format", "concurrency", "timeout", "metrics-file"} {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := l.v.BindPFlag(key(name), f); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

// Load reads .env files, the config file and returns the merged settings.
func (l *Loader) Load() (*Config, error) {
	loadDotenv()

	if l.ConfigFile != "" {
		l.v.SetConfigFile(l.ConfigFile)
	} else {
		l.v.SetConfigName(".sqlkit")
		l.v.SetConfigType("yaml")
		l.v.AddConfigPath(".")
		if home, err := homedir.Dir(); err == nil {
			l.v.AddConfigPath(home)
			l.v.AddConfigPath(filepath.Join(home, ".config", "sqlkit"))
		}
	}
	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || l.ConfigFile != "" {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{
		DSN:         l.v.GetString("dsn"),
		Dialect:     l.v.GetString("dialect"),
		LogLevel:    l.v.GetString("log_level"),
		Format:      l.v.GetString("format"),
		Concurrency: l.v.GetInt("concurrency"),
		Timeout:     l.v.GetDuration("timeout"),
		MetricsFile: l.v.GetString("metrics_file"),
	}
	if cfg.Concurrency <= 0 {
		return nil, fmt.Errorf("concurrency must be positive, got %d", cfg.Concurrency)
	}
	return cfg, nil
}

// Used reports the config file that was read, if any.
func (l *Loader) Used() string {
	return l.v.ConfigFileUsed()
}

func key(flag string) string {
	out := []byte(flag)
	for i, c := range out {
		if c == '-' {
			out[i] = '_'
		}
	}
	return string(out)
}

// loadDotenv loads .env and then .env.local, the latter overriding. Missing
// files are ignored.
func loadDotenv() {
	if _, err := os.Stat(".env"); err == nil {
		_ = godotenv.Load()
	}
	if _, err := os.Stat(".env.local"); err == nil {
		_ = godotenv.Overload(".env.local")
	}
}
