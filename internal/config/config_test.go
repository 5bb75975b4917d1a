package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nvandessel/battsim/internal/models"
	"github.com/nvandessel/battsim/internal/synth"
)

func TestDefault(t *testing.T) {
	config := Default()

	if config.Generation.Seed != 42 {
		t.Errorf("expected Seed 42, got %d", config.Generation.Seed)
	}
	if config.Generation.Samples != 10000 {
		t.Errorf("expected Samples 10000, got %d", config.Generation.Samples)
	}
	if config.Generation.Format != "csv" {
		t.Errorf("expected Format 'csv', got '%s'", config.Generation.Format)
	}
	if got := config.EnabledDomains(); len(got) != 3 {
		t.Errorf("expected all 3 domains enabled, got %v", got)
	}
	if !config.Catalog.Enabled {
		t.Error("expected Catalog.Enabled to be true by default")
	}
	if config.Archive.Enabled {
		t.Error("expected Archive.Enabled to be false by default")
	}
	if config.Publish.Enabled() {
		t.Error("expected publishing to be off by default")
	}
	if config.Logging.Level != "info" {
		t.Errorf("expected Logging.Level 'info', got '%s'", config.Logging.Level)
	}
	if err := config.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
generation:
  seed: 7
  samples: 2500
  format: arrow
  workers: 4

domains:
  health:
    enabled: false
  driver:
    samples: 500
    seed: 99
    mislabel_prob: 0.2
    scenarios:
      traffic_jam: 0.3
    classes:
      Emergency:
        brake_intensity: {kind: normal, mean: 90, spread: 5}

archive:
  enabled: true
  max_count: 3
  max_age: 72h

logging:
  level: debug
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	config, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if config.Generation.Seed != 7 || config.Generation.Samples != 2500 {
		t.Errorf("generation = %+v, want seed 7 samples 2500", config.Generation)
	}
	if config.Generation.Format != "arrow" || config.Generation.Workers != 4 {
		t.Errorf("generation = %+v, want arrow with 4 workers", config.Generation)
	}
	// Unspecified fields keep their defaults
	if config.Generation.OutputDir != "data" {
		t.Errorf("expected OutputDir default 'data', got '%s'", config.Generation.OutputDir)
	}
	if config.Domains.Health.Enabled {
		t.Error("expected health disabled")
	}
	if !config.Domains.Safety.Enabled {
		t.Error("expected safety to stay enabled")
	}

	if got := config.SamplesFor(models.DomainDriver); got != 500 {
		t.Errorf("SamplesFor(driver) = %d, want 500", got)
	}
	if got := config.SamplesFor(models.DomainSafety); got != 2500 {
		t.Errorf("SamplesFor(safety) = %d, want 2500", got)
	}
	if got := config.SeedFor(models.DomainDriver); got != 99 {
		t.Errorf("SeedFor(driver) = %d, want 99", got)
	}
	if got := config.SeedFor(models.DomainSafety); got != 7 {
		t.Errorf("SeedFor(safety) = %d, want 7", got)
	}

	driver := config.Domains.Driver
	if driver.MislabelProb == nil || *driver.MislabelProb != 0.2 {
		t.Errorf("driver mislabel_prob = %v, want 0.2", driver.MislabelProb)
	}
	if driver.Scenarios["traffic_jam"] != 0.3 {
		t.Errorf("traffic_jam = %v, want 0.3", driver.Scenarios["traffic_jam"])
	}
	if got := driver.Classes["Emergency"]["brake_intensity"]; got != synth.Normal(90, 5) {
		t.Errorf("Emergency brake_intensity = %v, want N(90, 5)", got)
	}

	if config.Archive.MaxAge != 72*time.Hour || config.Archive.MaxCount != 3 {
		t.Errorf("archive = %+v, want max_count 3 max_age 72h", config.Archive)
	}
	if got := config.EnabledDomains(); len(got) != 2 {
		t.Errorf("EnabledDomains() = %v, want 2", got)
	}
	if err := config.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoadFromFile_NotFound(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoadFromFile_InvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("generation: [unterminated"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	if _, err := LoadFromFile(configPath); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestLoadFromFile_ExpandsSecrets(t *testing.T) {
	t.Setenv("TEST_MINIO_SECRET", "expanded-secret-value")

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	content := `
publish:
  endpoint: localhost:9000
  bucket: datasets
  secret_key: ${TEST_MINIO_SECRET}
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	config, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if config.Publish.SecretKey != "expanded-secret-value" {
		t.Errorf("expected expanded secret, got '%s'", config.Publish.SecretKey)
	}
}

func TestLoad_DefaultPathOptional(t *testing.T) {
	root := t.TempDir()
	config, err := Load(root, "")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if config.Generation.Seed != 42 {
		t.Errorf("expected default seed, got %d", config.Generation.Seed)
	}
}

func TestLoad_ProjectConfig(t *testing.T) {
	root := t.TempDir()
	cfg := Default()
	cfg.Generation.Seed = 1234
	if err := cfg.Save(DefaultPath(root)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(root, "")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Generation.Seed != 1234 {
		t.Errorf("expected seed 1234 from project config, got %d", loaded.Generation.Seed)
	}
}

func TestLoad_ExplicitPathMustExist(t *testing.T) {
	if _, err := Load(t.TempDir(), "/nonexistent/battsim.yaml"); err == nil {
		t.Error("expected error for missing explicit config")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("BATTSIM_SEED", "5")
	t.Setenv("BATTSIM_SAMPLES", "2000")
	t.Setenv("BATTSIM_FORMAT", "arrow")
	t.Setenv("BATTSIM_LOG_LEVEL", "trace")
	t.Setenv("BATTSIM_ARCHIVE_ENABLED", "true")
	t.Setenv("BATTSIM_ARCHIVE_MAX_AGE", "24h")
	t.Setenv("BATTSIM_PUBLISH_ENDPOINT", "minio:9000")
	t.Setenv("BATTSIM_PUBLISH_BUCKET", "battsim")
	t.Setenv("BATTSIM_HEALTH_ENABLED", "false")
	t.Setenv("BATTSIM_SAFETY_SAMPLES", "300")
	t.Setenv("BATTSIM_DRIVER_SEED", "77")
	t.Setenv("BATTSIM_DRIVER_FAULT_PROB", "0.05")

	config, err := Load(t.TempDir(), "")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if config.Generation.Seed != 5 || config.Generation.Samples != 2000 {
		t.Errorf("generation = %+v, want seed 5 samples 2000", config.Generation)
	}
	if config.Generation.Format != "arrow" {
		t.Errorf("expected format 'arrow', got '%s'", config.Generation.Format)
	}
	if config.Logging.Level != "trace" {
		t.Errorf("expected log level 'trace', got '%s'", config.Logging.Level)
	}
	if !config.Archive.Enabled || config.Archive.MaxAge != 24*time.Hour {
		t.Errorf("archive = %+v, want enabled with 24h max age", config.Archive)
	}
	if !config.Publish.Enabled() || config.Publish.Bucket != "battsim" {
		t.Errorf("publish = %v, want minio:9000/battsim", config.Publish)
	}
	if config.Domains.Health.Enabled {
		t.Error("expected health disabled by env")
	}
	if got := config.SamplesFor(models.DomainSafety); got != 300 {
		t.Errorf("SamplesFor(safety) = %d, want 300", got)
	}
	if got := config.SeedFor(models.DomainDriver); got != 77 {
		t.Errorf("SeedFor(driver) = %d, want 77", got)
	}
	if fp := config.Domains.Driver.FaultProb; fp == nil || *fp != 0.05 {
		t.Errorf("driver fault_prob = %v, want 0.05", fp)
	}
	// Untouched settings keep defaults
	if config.Generation.Workers != 1 {
		t.Errorf("expected default workers, got %d", config.Generation.Workers)
	}
	if config.Domains.Safety.Seed != nil {
		t.Error("expected safety seed to stay unset")
	}
}

func TestEnvOverrides_InvalidValue(t *testing.T) {
	t.Setenv("BATTSIM_SAMPLES", "lots")
	_, err := Load(t.TempDir(), "")
	if err == nil || !strings.Contains(err.Error(), "parse env:") {
		t.Errorf("expected parse env error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	neg := -0.1
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{"valid defaults", func(c *Config) {}, ""},
		{"zero samples", func(c *Config) { c.Generation.Samples = 0 }, "samples"},
		{"too many samples", func(c *Config) { c.Generation.Samples = 20_000_000 }, "samples"},
		{"bad format", func(c *Config) { c.Generation.Format = "parquet" }, "invalid format"},
		{"zero workers", func(c *Config) { c.Generation.Workers = 0 }, "workers"},
		{"empty output", func(c *Config) { c.Generation.OutputDir = "" }, "output_dir"},
		{"negative domain samples", func(c *Config) { c.Domains.Health.Samples = -1 }, "health samples"},
		{"bad fault prob", func(c *Config) { c.Domains.Safety.FaultProb = &neg }, "safety overrides"},
		{"unknown scenario", func(c *Config) {
			c.Domains.Driver.Scenarios = map[string]float64{"rush_hour": 0.1}
		}, "driver overrides"},
		{"bad class dist", func(c *Config) {
			c.Domains.Safety.Classes = map[string]map[string]synth.Dist{"Normal": {"gas_ppm": synth.Exponential(0)}}
		}, "safety overrides"},
		{"negative archive count", func(c *Config) { c.Archive.MaxCount = -1 }, "max_count"},
		{"publish without bucket", func(c *Config) { c.Publish.Endpoint = "localhost:9000" }, "bucket"},
		{"bad metrics", func(c *Config) { c.Telemetry.Metrics = "prometheus" }, "metrics"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "log level"},
		{"empty log level", func(c *Config) { c.Logging.Level = "" }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := Default()
			tt.modify(config)
			err := config.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestPaths(t *testing.T) {
	root := "/project"
	config := Default()

	if got := config.OutputDir(root); got != filepath.Join(root, "data") {
		t.Errorf("OutputDir() = %s", got)
	}
	if got := config.CatalogPath(root); got != filepath.Join(root, ".battsim", "catalog.db") {
		t.Errorf("CatalogPath() = %s", got)
	}
	if got := config.ArchiveDir(root); got != filepath.Join(root, ".battsim", "archive") {
		t.Errorf("ArchiveDir() = %s", got)
	}

	config.Generation.OutputDir = "/abs/out"
	if got := config.OutputDir(root); got != "/abs/out" {
		t.Errorf("absolute OutputDir() = %s", got)
	}
}

func TestPublishConfig_Redaction(t *testing.T) {
	tests := []struct {
		secret string
		want   string
	}{
		{"", ""},
		{"short", "(set)"},
		{"wJalrXUtnFEMIK7MDENGbPxRfiCYEXAMPLEKEY", "wJal...EKEY"},
	}
	for _, tt := range tests {
		c := PublishConfig{SecretKey: tt.secret}
		if got := c.RedactedSecretKey(); got != tt.want {
			t.Errorf("RedactedSecretKey(%q) = %q, want %q", tt.secret, got, tt.want)
		}
		if tt.secret != "" && strings.Contains(c.String(), tt.secret) && tt.secret != tt.want {
			t.Errorf("String() leaks secret: %s", c.String())
		}
	}

	full := Default()
	full.Publish.SecretKey = "wJalrXUtnFEMIK7MDENGbPxRfiCYEXAMPLEKEY"
	if got := full.Redacted().Publish.SecretKey; got != "wJal...EKEY" {
		t.Errorf("Redacted() secret = %q", got)
	}
	if full.Publish.SecretKey != "wJalrXUtnFEMIK7MDENGbPxRfiCYEXAMPLEKEY" {
		t.Error("Redacted() modified the original")
	}
}
