// Package config provides configuration management for sysreport.
// It uses Viper to load settings from files, environment variables, and CLI flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all runtime configuration for sysreport.
type Config struct {
	// ── Collector ────────────────────────────────────────────────────────────
	IntervalSeconds int   `mapstructure:"interval_seconds"`
	StoreCap        int   `mapstructure:"store_cap"`
	Ports           []int `mapstructure:"ports"` // remote ports counted as HTTP(S) traffic
	// FlushEvery: persist store, archive and domain report every N ticks.
	FlushEvery       int `mapstructure:"flush_every"`
	CPUWindowMS      int `mapstructure:"cpu_window_ms"`
	NetWindowMS      int `mapstructure:"net_window_ms"`
	ResolveTimeoutMS int `mapstructure:"resolve_timeout_ms"`

	// ── Storage ──────────────────────────────────────────────────────────────
	DBPath   string `mapstructure:"db_path"`
	DBDriver string `mapstructure:"db_driver"` // only "sqlite" for now

	// ── Logging ──────────────────────────────────────────────────────────────
	LogLevel  string `mapstructure:"log_level"`  // debug | info | warn | error
	LogFormat string `mapstructure:"log_format"` // text | json

	Report ReportConfig `mapstructure:"report"`
}

// ReportConfig configures the read-only report viewer.
type ReportConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// JWTSecret: HS256 key for /api/*; empty disables auth.
	JWTSecret     string `mapstructure:"jwt_secret"`
	TokenTTLHours int    `mapstructure:"token_ttl_hours"`
}

// Load reads config from file (./config.yaml or ~/.sysreport/config.yaml,
// or the given search paths) and falls back to defaults. Environment
// variables with prefix SYSREPORT_ override file values.
func Load(searchPaths ...string) (*Config, error) {
	v := viper.New()

	v.SetDefault("interval_seconds", 300)
	v.SetDefault("store_cap", 40)
	v.SetDefault("ports", []int{80, 443})
	v.SetDefault("flush_every", 1)
	v.SetDefault("cpu_window_ms", 1000)
	v.SetDefault("net_window_ms", 1000)
	v.SetDefault("resolve_timeout_ms", 2000)

	v.SetDefault("db_path", "sysreport.db")
	v.SetDefault("db_driver", "sqlite")

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")

	// The viewer binds to loopback unless told otherwise.
	v.SetDefault("report.host", "127.0.0.1")
	v.SetDefault("report.port", 6678)
	v.SetDefault("report.jwt_secret", "")
	v.SetDefault("report.token_ttl_hours", 24)

	// --- Config file ---
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(searchPaths) == 0 {
		searchPaths = []string{".", "$HOME/.sysreport"}
	}
	for _, p := range searchPaths {
		v.AddConfigPath(p)
	}
	if err := v.ReadInConfig(); err != nil {
		// config file is optional; ignore "not found" errors
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	// --- Environment Variables ---
	v.SetEnvPrefix("SYSREPORT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// Validate rejects settings the collector cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.IntervalSeconds < 1 {
		errs = append(errs, fmt.Errorf("interval_seconds must be >= 1, got %d", c.IntervalSeconds))
	}
	if c.StoreCap < 1 {
		errs = append(errs, fmt.Errorf("store_cap must be >= 1, got %d", c.StoreCap))
	}
	if c.FlushEvery < 1 {
		errs = append(errs, fmt.Errorf("flush_every must be >= 1, got %d", c.FlushEvery))
	}
	// cpu.Percent needs a full second to produce a meaningful delta.
	if c.CPUWindowMS < 1000 {
		errs = append(errs, fmt.Errorf("cpu_window_ms must be >= 1000, got %d", c.CPUWindowMS))
	}
	if c.NetWindowMS < 1 {
		errs = append(errs, fmt.Errorf("net_window_ms must be >= 1, got %d", c.NetWindowMS))
	}
	if len(c.Ports) == 0 {
		errs = append(errs, errors.New("ports must not be empty"))
	}
	for _, p := range c.Ports {
		if p < 1 || p > 65535 {
			errs = append(errs, fmt.Errorf("port %d out of range", p))
		}
	}
	if c.DBDriver != "" && c.DBDriver != "sqlite" {
		errs = append(errs, fmt.Errorf("unsupported db_driver %q (use 'sqlite')", c.DBDriver))
	}
	return errors.Join(errs...)
}

// Interval is the delay between the end of one tick and the start of the next.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// CPUWindow is the blocking CPU measurement window.
func (c *Config) CPUWindow() time.Duration {
	return time.Duration(c.CPUWindowMS) * time.Millisecond
}

// NetWindow is the wait between the two network counter reads.
func (c *Config) NetWindow() time.Duration {
	return time.Duration(c.NetWindowMS) * time.Millisecond
}

// ResolveTimeout bounds a single reverse lookup.
func (c *Config) ResolveTimeout() time.Duration {
	return time.Duration(c.ResolveTimeoutMS) * time.Millisecond
}

// TokenTTL is the lifetime of viewer tokens minted by `sysreport token`.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.Report.TokenTTLHours) * time.Hour
}

// ReportAddr is the viewer listen address.
func (c *Config) ReportAddr() string {
	return fmt.Sprintf("%s:%d", c.Report.Host, c.Report.Port)
}
