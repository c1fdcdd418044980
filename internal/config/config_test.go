package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{
		"HEMOSTAT_POLL_INTERVAL", "HEMOSTAT_CPU_THRESHOLD", "HEMOSTAT_MEMORY_THRESHOLD",
		"HEMOSTAT_CONFIDENCE_THRESHOLD", "HEMOSTAT_DRY_RUN", "HEMOSTAT_REDIS_ADDR",
		"HEMOSTAT_MQTT_BROKER_URL",
	} {
		os.Unsetenv(k)
	}

	cfg := Load()
	if cfg.PollInterval() != 30*time.Second {
		t.Errorf("PollInterval = %s, want 30s", cfg.PollInterval())
	}
	if cfg.CPUThreshold() != 85 {
		t.Errorf("CPUThreshold = %v, want 85", cfg.CPUThreshold())
	}
	if cfg.MemoryThreshold() != 80 {
		t.Errorf("MemoryThreshold = %v, want 80", cfg.MemoryThreshold())
	}
	if cfg.ConfidenceThreshold() != 0.7 {
		t.Errorf("ConfidenceThreshold = %v, want 0.7", cfg.ConfidenceThreshold())
	}
	if cfg.DryRun() {
		t.Error("DryRun = true, want false")
	}
	if !cfg.Standalone() {
		t.Error("Standalone() = false, want true when no Redis/MQTT configured")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("HEMOSTAT_POLL_INTERVAL", "1m")
	t.Setenv("HEMOSTAT_CPU_THRESHOLD", "90")
	t.Setenv("HEMOSTAT_DRY_RUN", "true")
	t.Setenv("HEMOSTAT_REDIS_ADDR", "localhost:6379")

	cfg := Load()
	if cfg.PollInterval() != time.Minute {
		t.Errorf("PollInterval = %s, want 1m", cfg.PollInterval())
	}
	if cfg.CPUThreshold() != 90 {
		t.Errorf("CPUThreshold = %v, want 90", cfg.CPUThreshold())
	}
	if !cfg.DryRun() {
		t.Error("DryRun = false, want true")
	}
	if cfg.Standalone() {
		t.Error("Standalone() = true, want false when Redis is configured")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"valid defaults", func(_ *Config) {}, false},
		{"zero poll interval", func(c *Config) { c.pollInterval = 0 }, true},
		{"cpu threshold out of range", func(c *Config) { c.cpuThreshold = 150 }, true},
		{"confidence threshold out of range", func(c *Config) { c.confidenceThreshold = 1.5 }, true},
		{"zero circuit window", func(c *Config) { c.circuitWindow = 0 }, true},
		{"zero max retries", func(c *Config) { c.maxRetriesPerWindow = 0 }, true},
		{"zero max parallel actions", func(c *Config) { c.maxParallelActions = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewTestConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr = %v", err, tt.wantErr)
			}
		})
	}
}

func TestEnvFloat(t *testing.T) {
	const key = "HEMOSTAT_TEST_ENV_FLOAT"

	t.Setenv(key, "0.85")
	if got := envFloat(key, 0); got != 0.85 {
		t.Errorf("got %v, want 0.85", got)
	}

	t.Setenv(key, "notanumber")
	if got := envFloat(key, 0.5); got != 0.5 {
		t.Errorf("got %v, want 0.5 (default on parse failure)", got)
	}
}

func TestEnvDuration(t *testing.T) {
	const key = "HEMOSTAT_TEST_ENV_DUR"

	t.Setenv(key, "5m")
	if got := envDuration(key, time.Hour); got != 5*time.Minute {
		t.Errorf("got %s, want 5m", got)
	}

	t.Setenv(key, "notaduration")
	if got := envDuration(key, time.Hour); got != time.Hour {
		t.Errorf("got %s, want 1h (default on parse failure)", got)
	}
}
