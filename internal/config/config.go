// Package config provides unified configuration loading for battsim.
// Settings are layered: defaults, then a YAML file, then BATTSIM_*
// environment variables. Command-line flags are applied by the caller.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/nvandessel/battsim/internal/constants"
	"github.com/nvandessel/battsim/internal/logging"
	"github.com/nvandessel/battsim/internal/models"
	"github.com/nvandessel/battsim/internal/synth"
)

// Config contains all battsim configuration settings.
type Config struct {
	// Generation holds run-wide generation settings.
	Generation GenerationConfig `json:"generation" yaml:"generation"`

	// Domains holds per-domain settings and profile overrides.
	Domains DomainsConfig `json:"domains" yaml:"domains"`

	// Catalog configures the SQLite run catalog.
	Catalog CatalogConfig `json:"catalog" yaml:"catalog"`

	// Archive configures compressed dataset bundles.
	Archive ArchiveConfig `json:"archive" yaml:"archive"`

	// Publish configures upload of datasets to S3-compatible storage.
	Publish PublishConfig `json:"publish" yaml:"publish"`

	// Telemetry configures generation metrics.
	Telemetry TelemetryConfig `json:"telemetry" yaml:"telemetry"`

	// Logging contains settings for operational and trace logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// GenerationConfig holds defaults shared by every domain.
type GenerationConfig struct {
	// Seed makes runs reproducible: the same seed always yields the same files.
	Seed int64 `json:"seed" yaml:"seed" env:"BATTSIM_SEED"`

	// Samples is the row count per domain unless a domain overrides it.
	Samples int `json:"samples" yaml:"samples" env:"BATTSIM_SAMPLES"`

	// OutputDir is where dataset files are written. Relative paths resolve
	// against the project root.
	OutputDir string `json:"output_dir" yaml:"output_dir" env:"BATTSIM_OUTPUT_DIR"`

	// Format is "csv" (default) or "arrow".
	Format string `json:"format" yaml:"format" env:"BATTSIM_FORMAT"`

	// Workers is the number of goroutines synthesizing rows per domain.
	Workers int `json:"workers" yaml:"workers" env:"BATTSIM_WORKERS"`
}

// DomainsConfig has one entry per diagnostic domain.
type DomainsConfig struct {
	Safety DomainConfig `json:"safety" yaml:"safety"`
	Health DomainConfig `json:"health" yaml:"health"`
	Driver DomainConfig `json:"driver" yaml:"driver"`
}

// DomainConfig adjusts one domain. Zero values fall back to GenerationConfig.
type DomainConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Samples overrides GenerationConfig.Samples when positive.
	Samples int `json:"samples,omitempty" yaml:"samples,omitempty"`

	// Seed overrides GenerationConfig.Seed when set.
	Seed *int64 `json:"seed,omitempty" yaml:"seed,omitempty"`

	// Overrides adjust the built-in class profile.
	synth.Overrides `yaml:",inline"`
}

// CatalogConfig configures the run catalog.
type CatalogConfig struct {
	// Enabled records every domain run in the catalog.
	Enabled bool `json:"enabled" yaml:"enabled" env:"BATTSIM_CATALOG_ENABLED"`

	// Path overrides the default <root>/.battsim/catalog.db.
	Path string `json:"path,omitempty" yaml:"path,omitempty" env:"BATTSIM_CATALOG_PATH"`
}

// ArchiveConfig configures dataset bundles and their retention.
type ArchiveConfig struct {
	// Enabled writes a compressed bundle of every dataset produced.
	Enabled bool `json:"enabled" yaml:"enabled" env:"BATTSIM_ARCHIVE_ENABLED"`

	// Dir overrides the default <root>/.battsim/archive.
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty" env:"BATTSIM_ARCHIVE_DIR"`

	// MaxCount keeps at most this many bundles; 0 disables count retention.
	MaxCount int `json:"max_count" yaml:"max_count" env:"BATTSIM_ARCHIVE_MAX_COUNT"`

	// MaxAge removes bundles older than this; 0 disables age retention.
	MaxAge time.Duration `json:"max_age,omitempty" yaml:"max_age,omitempty" env:"BATTSIM_ARCHIVE_MAX_AGE"`
}

// PublishConfig configures dataset upload. Publishing is off while Endpoint is empty.
type PublishConfig struct {
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty" env:"BATTSIM_PUBLISH_ENDPOINT"`
	Bucket   string `json:"bucket,omitempty" yaml:"bucket,omitempty" env:"BATTSIM_PUBLISH_BUCKET"`

	// Prefix is prepended to object keys, e.g. "datasets/".
	Prefix string `json:"prefix,omitempty" yaml:"prefix,omitempty" env:"BATTSIM_PUBLISH_PREFIX"`

	// AccessKey and SecretKey support ${VAR} syntax for env vars.
	AccessKey string `json:"access_key,omitempty" yaml:"access_key,omitempty" env:"BATTSIM_PUBLISH_ACCESS_KEY"`
	SecretKey string `json:"secret_key,omitempty" yaml:"secret_key,omitempty" env:"BATTSIM_PUBLISH_SECRET_KEY"`

	UseSSL bool `json:"use_ssl" yaml:"use_ssl" env:"BATTSIM_PUBLISH_USE_SSL"`
}

// Enabled reports whether publishing is configured.
func (c PublishConfig) Enabled() bool {
	return c.Endpoint != ""
}

// RedactedSecretKey returns the secret key with most characters masked.
// Shows first 4 and last 4 characters, e.g., "wJal...EKEY".
// Returns "" for empty keys and "(set)" for keys shorter than 12 chars.
func (c PublishConfig) RedactedSecretKey() string {
	if c.SecretKey == "" {
		return ""
	}
	if len(c.SecretKey) < 12 {
		return "(set)"
	}
	return c.SecretKey[:4] + "..." + c.SecretKey[len(c.SecretKey)-4:]
}

// String implements fmt.Stringer to prevent accidental secret logging.
func (c PublishConfig) String() string {
	return fmt.Sprintf("PublishConfig{Endpoint:%s, Bucket:%s, SecretKey:%s, UseSSL:%t}",
		c.Endpoint, c.Bucket, c.RedactedSecretKey(), c.UseSSL)
}

// Redacted returns a copy of c with the secret masked, for display.
func (c *Config) Redacted() *Config {
	cp := *c
	cp.Publish.SecretKey = c.Publish.RedactedSecretKey()
	return &cp
}

// TelemetryConfig configures generation metrics.
type TelemetryConfig struct {
	// Metrics is "none" (default) or "stdout".
	Metrics string `json:"metrics" yaml:"metrics" env:"BATTSIM_METRICS"`

	// Interval is the export period of the stdout exporter.
	Interval time.Duration `json:"interval,omitempty" yaml:"interval,omitempty" env:"BATTSIM_METRICS_INTERVAL"`
}

// LoggingConfig configures battsim's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "error", "warn", "info" (default), "debug", or "trace".
	// "debug" enables trace logging of notable rows to .battsim/trace.jsonl.
	// "trace" traces every row.
	Level string `json:"level" yaml:"level" env:"BATTSIM_LOG_LEVEL"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Generation: GenerationConfig{
			Seed:      constants.DefaultSeed,
			Samples:   constants.DefaultSamples,
			OutputDir: constants.DefaultOutputDir,
			Format:    constants.FormatCSV,
			Workers:   constants.DefaultWorkers,
		},
		Domains: DomainsConfig{
			Safety: DomainConfig{Enabled: true},
			Health: DomainConfig{Enabled: true},
			Driver: DomainConfig{Enabled: true},
		},
		Catalog: CatalogConfig{Enabled: true},
		Archive: ArchiveConfig{
			Enabled:  false,
			MaxCount: constants.MaxArchiveRotation,
		},
		Telemetry: TelemetryConfig{
			Metrics:  "none",
			Interval: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultPath returns the project config file location under root.
func DefaultPath(root string) string {
	return filepath.Join(root, constants.StateDirName, constants.ConfigFileName)
}

// Load loads configuration for a project root.
// Order: defaults -> config file -> environment variables.
// An explicit path must exist; the default path is optional.
func Load(root, path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		if p := DefaultPath(root); fileExists(p) {
			path = p
		}
	}
	if path != "" {
		fileConfig, err := LoadFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
		cfg = fileConfig
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a specific YAML file on top of defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.Publish.AccessKey = expandEnvVars(cfg.Publish.AccessKey)
	cfg.Publish.SecretKey = expandEnvVars(cfg.Publish.SecretKey)

	return cfg, nil
}

// Save writes the configuration as YAML, creating parent directories.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Validate checks that the configuration is valid, including every
// domain's profile overrides.
func (c *Config) Validate() error {
	g := c.Generation
	if g.Samples < 1 || g.Samples > constants.MaxSamples {
		return fmt.Errorf("samples must be between 1 and %d, got %d", constants.MaxSamples, g.Samples)
	}
	if !constants.ValidFormats[g.Format] {
		return fmt.Errorf("invalid format: %s (valid: csv, arrow)", g.Format)
	}
	if g.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", g.Workers)
	}
	if g.OutputDir == "" {
		return fmt.Errorf("output_dir must not be empty")
	}

	for _, d := range models.AllDomains() {
		dc := c.Domain(d)
		if dc.Samples < 0 || dc.Samples > constants.MaxSamples {
			return fmt.Errorf("%s samples must be between 0 (use default) and %d, got %d", d, constants.MaxSamples, dc.Samples)
		}
		if _, err := synth.NewWithOverrides(d, dc.Overrides); err != nil {
			return fmt.Errorf("%s overrides: %w", d, err)
		}
	}

	if c.Archive.MaxCount < 0 {
		return fmt.Errorf("archive max_count must be non-negative, got %d", c.Archive.MaxCount)
	}
	if c.Archive.MaxAge < 0 {
		return fmt.Errorf("archive max_age must be non-negative, got %v", c.Archive.MaxAge)
	}

	if c.Publish.Enabled() && c.Publish.Bucket == "" {
		return fmt.Errorf("publish bucket is required when an endpoint is set")
	}

	validMetrics := map[string]bool{"": true, "none": true, "stdout": true}
	if !validMetrics[c.Telemetry.Metrics] {
		return fmt.Errorf("invalid metrics exporter: %s (valid: none, stdout)", c.Telemetry.Metrics)
	}
	if c.Telemetry.Interval < 0 {
		return fmt.Errorf("metrics interval must be non-negative, got %v", c.Telemetry.Interval)
	}

	if c.Logging.Level != "" && !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s (valid: error, warn, info, debug, trace, or empty for default)", c.Logging.Level)
	}

	return nil
}

// Domain returns the settings of one domain. Unknown domains get an
// empty, disabled config.
func (c *Config) Domain(d models.Domain) *DomainConfig {
	switch d {
	case models.DomainSafety:
		return &c.Domains.Safety
	case models.DomainHealth:
		return &c.Domains.Health
	case models.DomainDriver:
		return &c.Domains.Driver
	}
	return &DomainConfig{}
}

// EnabledDomains returns the enabled domains in canonical order.
func (c *Config) EnabledDomains() []models.Domain {
	var out []models.Domain
	for _, d := range models.AllDomains() {
		if c.Domain(d).Enabled {
			out = append(out, d)
		}
	}
	return out
}

// SamplesFor returns the row count for d.
func (c *Config) SamplesFor(d models.Domain) int {
	if n := c.Domain(d).Samples; n > 0 {
		return n
	}
	return c.Generation.Samples
}

// SeedFor returns the seed for d.
func (c *Config) SeedFor(d models.Domain) int64 {
	if s := c.Domain(d).Seed; s != nil {
		return *s
	}
	return c.Generation.Seed
}

// OutputDir resolves the dataset directory against root.
func (c *Config) OutputDir(root string) string {
	return resolve(root, c.Generation.OutputDir)
}

// CatalogPath resolves the catalog database path against root.
func (c *Config) CatalogPath(root string) string {
	if c.Catalog.Path != "" {
		return resolve(root, c.Catalog.Path)
	}
	return filepath.Join(root, constants.StateDirName, constants.CatalogFileName)
}

// ArchiveDir resolves the bundle directory against root.
func (c *Config) ArchiveDir(root string) string {
	if c.Archive.Dir != "" {
		return resolve(root, c.Archive.Dir)
	}
	return filepath.Join(root, constants.StateDirName, constants.DefaultArchiveDir)
}

// domainEnv mirrors the scalar DomainConfig settings for environment parsing.
type domainEnv struct {
	Enabled      *bool    `env:"ENABLED"`
	Samples      *int     `env:"SAMPLES"`
	Seed         *int64   `env:"SEED"`
	FaultProb    *float64 `env:"FAULT_PROB"`
	MislabelProb *float64 `env:"MISLABEL_PROB"`
}

// applyEnvOverrides applies BATTSIM_* environment variables to the config.
// Unset variables leave values unchanged.
func applyEnvOverrides(cfg *Config) error {
	targets := []any{&cfg.Generation, &cfg.Catalog, &cfg.Archive, &cfg.Publish, &cfg.Telemetry, &cfg.Logging}
	for _, target := range targets {
		if err := env.Parse(target); err != nil {
			return fmt.Errorf("parse env: %w", err)
		}
	}

	for _, d := range models.AllDomains() {
		var de domainEnv
		prefix := "BATTSIM_" + strings.ToUpper(string(d)) + "_"
		if err := env.ParseWithOptions(&de, env.Options{Prefix: prefix}); err != nil {
			return fmt.Errorf("parse env: %w", err)
		}
		dc := cfg.Domain(d)
		if de.Enabled != nil {
			dc.Enabled = *de.Enabled
		}
		if de.Samples != nil {
			dc.Samples = *de.Samples
		}
		if de.Seed != nil {
			dc.Seed = de.Seed
		}
		if de.FaultProb != nil {
			dc.FaultProb = de.FaultProb
		}
		if de.MislabelProb != nil {
			dc.MislabelProb = de.MislabelProb
		}
	}
	return nil
}

func resolve(root, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}
