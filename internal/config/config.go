// Package config loads HemoStat's runtime configuration from environment
// variables, following the teacher's pattern of a mutex-guarded struct with
// typed getter/setter pairs for fields the running process may adjust
// without a restart.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"
)

// Config holds all HemoStat configuration. Fields that agents only ever
// read at startup are plain; fields a future control surface (or a test)
// may want to tune at runtime are behind the mutex and exposed via
// getter/setter methods, mirroring the teacher's PollInterval/GracePeriod
// treatment.
type Config struct {
	// Runtime backend selection. When RedisAddr/MQTTBrokerURL are empty,
	// HemoStat runs in standalone mode: embedded Bolt store + in-process
	// broker, suitable for a single binary with no external services.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	MQTTBrokerURL string
	MQTTClientID  string
	MQTTUsername  string
	MQTTPassword  string
	BoltPath      string

	// Container runtime connection.
	DockerHost string

	// Logging.
	LogJSON bool

	// Analyzer model capability.
	ModelEndpoint string
	ModelAPIKey   string

	// Alert delivery sinks.
	WebhookURL   string
	SlackToken   string
	SlackChannel string

	// NotifyMQTTEnabled additionally fans alert delivery out over MQTT
	// (a dedicated connection per send, separate from the core agent
	// broker transport). Off by default since the webhook+Slack sinks
	// already cover spec §4.5's required delivery chain.
	NotifyMQTTEnabled bool
	NotifyMQTTTopic   string

	MetricsEnabled bool

	mu                    sync.RWMutex
	pollInterval          time.Duration
	cpuThreshold          float64
	memoryThreshold       float64
	confidenceThreshold   float64
	modelEnabled          bool
	modelFallbackEnabled  bool
	modelDeadline         time.Duration
	cooldown              time.Duration
	circuitWindow         time.Duration
	maxRetriesPerWindow   int
	dryRun                bool
	maxParallelActions    int
	actionDeadline        time.Duration
	notificationsEnabled  bool
	dedupeTTL             time.Duration
	maxEventsPerKind      int
	eventsTTL             time.Duration
	drainDeadline         time.Duration
}

// NewTestConfig returns a Config with sensible defaults for tests. Use the
// setter methods to override specific values.
func NewTestConfig() *Config {
	return &Config{
		BoltPath:             ":memory:",
		pollInterval:         30 * time.Second,
		cpuThreshold:         85,
		memoryThreshold:      80,
		confidenceThreshold:  0.7,
		modelEnabled:         false,
		modelFallbackEnabled: true,
		modelDeadline:        10 * time.Second,
		cooldown:             3600 * time.Second,
		circuitWindow:        3600 * time.Second,
		maxRetriesPerWindow:  3,
		dryRun:               false,
		maxParallelActions:   4,
		actionDeadline:       30 * time.Second,
		notificationsEnabled: true,
		dedupeTTL:            60 * time.Second,
		maxEventsPerKind:     100,
		eventsTTL:            time.Hour,
		drainDeadline:        10 * time.Second,
	}
}

// Load reads all configuration from environment variables with HemoStat's
// documented defaults.
func Load() *Config {
	return &Config{
		RedisAddr:     envStr("HEMOSTAT_REDIS_ADDR", ""),
		RedisPassword: envStr("HEMOSTAT_REDIS_PASSWORD", ""),
		RedisDB:       envInt("HEMOSTAT_REDIS_DB", 0),
		MQTTBrokerURL: envStr("HEMOSTAT_MQTT_BROKER_URL", ""),
		MQTTClientID:  envStr("HEMOSTAT_MQTT_CLIENT_ID", "hemostat"),
		MQTTUsername:  envStr("HEMOSTAT_MQTT_USERNAME", ""),
		MQTTPassword:  envStr("HEMOSTAT_MQTT_PASSWORD", ""),
		BoltPath:      envStr("HEMOSTAT_BOLT_PATH", "/data/hemostat.db"),

		DockerHost: envStr("HEMOSTAT_DOCKER_HOST", "unix:///var/run/docker.sock"),

		LogJSON: envBool("HEMOSTAT_LOG_JSON", true),

		ModelEndpoint: envStr("HEMOSTAT_MODEL_ENDPOINT", ""),
		ModelAPIKey:   envStr("HEMOSTAT_MODEL_API_KEY", ""),

		WebhookURL:   envStr("HEMOSTAT_WEBHOOK_URL", ""),
		SlackToken:   envStr("HEMOSTAT_SLACK_TOKEN", ""),
		SlackChannel: envStr("HEMOSTAT_SLACK_CHANNEL", ""),

		NotifyMQTTEnabled: envBool("HEMOSTAT_NOTIFY_MQTT_ENABLED", false),
		NotifyMQTTTopic:   envStr("HEMOSTAT_NOTIFY_MQTT_TOPIC", "hemostat/alerts"),

		MetricsEnabled: envBool("HEMOSTAT_METRICS", false),

		pollInterval:         envDuration("HEMOSTAT_POLL_INTERVAL", 30*time.Second),
		cpuThreshold:         envFloat("HEMOSTAT_CPU_THRESHOLD", 85),
		memoryThreshold:      envFloat("HEMOSTAT_MEMORY_THRESHOLD", 80),
		confidenceThreshold:  envFloat("HEMOSTAT_CONFIDENCE_THRESHOLD", 0.7),
		modelEnabled:         envBool("HEMOSTAT_MODEL_ENABLED", false),
		modelFallbackEnabled: envBool("HEMOSTAT_MODEL_FALLBACK_ENABLED", true),
		modelDeadline:        envDuration("HEMOSTAT_MODEL_DEADLINE", 10*time.Second),
		cooldown:             envDuration("HEMOSTAT_COOLDOWN", 3600*time.Second),
		circuitWindow:        envDuration("HEMOSTAT_CIRCUIT_WINDOW", 3600*time.Second),
		maxRetriesPerWindow:  envInt("HEMOSTAT_MAX_RETRIES_PER_WINDOW", 3),
		dryRun:               envBool("HEMOSTAT_DRY_RUN", false),
		maxParallelActions:   envInt("HEMOSTAT_MAX_PARALLEL_ACTIONS", 4),
		actionDeadline:       envDuration("HEMOSTAT_ACTION_DEADLINE", 30*time.Second),
		notificationsEnabled: envBool("HEMOSTAT_NOTIFICATIONS_ENABLED", true),
		dedupeTTL:            envDuration("HEMOSTAT_DEDUPE_TTL", 60*time.Second),
		maxEventsPerKind:     envInt("HEMOSTAT_MAX_EVENTS_PER_KIND", 100),
		eventsTTL:            envDuration("HEMOSTAT_EVENTS_TTL", time.Hour),
		drainDeadline:        envDuration("HEMOSTAT_DRAIN_DEADLINE", 10*time.Second),
	}
}

// Standalone reports whether this process should run without Redis/MQTT,
// falling back to the embedded Bolt store and in-process broker.
func (c *Config) Standalone() bool {
	return c.RedisAddr == "" && c.MQTTBrokerURL == ""
}

// Validate checks configuration for invalid values.
func (c *Config) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var errs []error
	if c.pollInterval <= 0 {
		errs = append(errs, fmt.Errorf("HEMOSTAT_POLL_INTERVAL must be > 0, got %s", c.pollInterval))
	}
	if c.cpuThreshold <= 0 || c.cpuThreshold > 100 {
		errs = append(errs, fmt.Errorf("HEMOSTAT_CPU_THRESHOLD must be in (0, 100], got %v", c.cpuThreshold))
	}
	if c.memoryThreshold <= 0 || c.memoryThreshold > 100 {
		errs = append(errs, fmt.Errorf("HEMOSTAT_MEMORY_THRESHOLD must be in (0, 100], got %v", c.memoryThreshold))
	}
	if c.confidenceThreshold < 0 || c.confidenceThreshold > 1 {
		errs = append(errs, fmt.Errorf("HEMOSTAT_CONFIDENCE_THRESHOLD must be in [0, 1], got %v", c.confidenceThreshold))
	}
	if c.cooldown < 0 {
		errs = append(errs, fmt.Errorf("HEMOSTAT_COOLDOWN must be >= 0, got %s", c.cooldown))
	}
	if c.circuitWindow <= 0 {
		errs = append(errs, fmt.Errorf("HEMOSTAT_CIRCUIT_WINDOW must be > 0, got %s", c.circuitWindow))
	}
	if c.maxRetriesPerWindow <= 0 {
		errs = append(errs, fmt.Errorf("HEMOSTAT_MAX_RETRIES_PER_WINDOW must be > 0, got %d", c.maxRetriesPerWindow))
	}
	if c.maxParallelActions <= 0 {
		errs = append(errs, fmt.Errorf("HEMOSTAT_MAX_PARALLEL_ACTIONS must be > 0, got %d", c.maxParallelActions))
	}
	if c.maxEventsPerKind <= 0 {
		errs = append(errs, fmt.Errorf("HEMOSTAT_MAX_EVENTS_PER_KIND must be > 0, got %d", c.maxEventsPerKind))
	}
	return errors.Join(errs...)
}

// Values returns all configuration as a string map for display/diagnostics.
func (c *Config) Values() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return map[string]string{
		"HEMOSTAT_DOCKER_HOST":             c.DockerHost,
		"HEMOSTAT_BOLT_PATH":               c.BoltPath,
		"HEMOSTAT_REDIS_ADDR":              c.RedisAddr,
		"HEMOSTAT_MQTT_BROKER_URL":         c.MQTTBrokerURL,
		"HEMOSTAT_POLL_INTERVAL":           c.pollInterval.String(),
		"HEMOSTAT_CPU_THRESHOLD":           fmt.Sprintf("%v", c.cpuThreshold),
		"HEMOSTAT_MEMORY_THRESHOLD":        fmt.Sprintf("%v", c.memoryThreshold),
		"HEMOSTAT_CONFIDENCE_THRESHOLD":    fmt.Sprintf("%v", c.confidenceThreshold),
		"HEMOSTAT_MODEL_ENABLED":           fmt.Sprintf("%t", c.modelEnabled),
		"HEMOSTAT_MODEL_FALLBACK_ENABLED":  fmt.Sprintf("%t", c.modelFallbackEnabled),
		"HEMOSTAT_MODEL_DEADLINE":          c.modelDeadline.String(),
		"HEMOSTAT_COOLDOWN":                c.cooldown.String(),
		"HEMOSTAT_CIRCUIT_WINDOW":          c.circuitWindow.String(),
		"HEMOSTAT_MAX_RETRIES_PER_WINDOW":  fmt.Sprintf("%d", c.maxRetriesPerWindow),
		"HEMOSTAT_DRY_RUN":                 fmt.Sprintf("%t", c.dryRun),
		"HEMOSTAT_MAX_PARALLEL_ACTIONS":    fmt.Sprintf("%d", c.maxParallelActions),
		"HEMOSTAT_ACTION_DEADLINE":         c.actionDeadline.String(),
		"HEMOSTAT_NOTIFICATIONS_ENABLED":   fmt.Sprintf("%t", c.notificationsEnabled),
		"HEMOSTAT_DEDUPE_TTL":              c.dedupeTTL.String(),
		"HEMOSTAT_MAX_EVENTS_PER_KIND":     fmt.Sprintf("%d", c.maxEventsPerKind),
		"HEMOSTAT_EVENTS_TTL":              c.eventsTTL.String(),
		"HEMOSTAT_DRAIN_DEADLINE":          c.drainDeadline.String(),
		"HEMOSTAT_METRICS":                 fmt.Sprintf("%t", c.MetricsEnabled),
		"HEMOSTAT_NOTIFY_MQTT_ENABLED":     fmt.Sprintf("%t", c.NotifyMQTTEnabled),
		"HEMOSTAT_NOTIFY_MQTT_TOPIC":       c.NotifyMQTTTopic,
	}
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

// PollInterval returns the current Monitor sampling period (thread-safe).
func (c *Config) PollInterval() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pollInterval
}

func (c *Config) SetPollInterval(d time.Duration) {
	c.mu.Lock()
	c.pollInterval = d
	c.mu.Unlock()
}

func (c *Config) CPUThreshold() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cpuThreshold
}

func (c *Config) MemoryThreshold() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.memoryThreshold
}

func (c *Config) ConfidenceThreshold() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.confidenceThreshold
}

func (c *Config) ModelEnabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.modelEnabled
}

func (c *Config) ModelFallbackEnabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.modelFallbackEnabled
}

func (c *Config) ModelDeadline() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.modelDeadline
}

func (c *Config) Cooldown() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cooldown
}

func (c *Config) CircuitWindow() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.circuitWindow
}

func (c *Config) MaxRetriesPerWindow() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.maxRetriesPerWindow
}

func (c *Config) DryRun() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dryRun
}

func (c *Config) SetDryRun(b bool) {
	c.mu.Lock()
	c.dryRun = b
	c.mu.Unlock()
}

func (c *Config) MaxParallelActions() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.maxParallelActions
}

func (c *Config) ActionDeadline() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.actionDeadline
}

func (c *Config) NotificationsEnabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.notificationsEnabled
}

func (c *Config) DedupeTTL() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dedupeTTL
}

func (c *Config) MaxEventsPerKind() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.maxEventsPerKind
}

func (c *Config) EventsTTL() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.eventsTTL
}

func (c *Config) DrainDeadline() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.drainDeadline
}
