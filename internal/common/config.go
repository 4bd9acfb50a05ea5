package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Storage     StorageConfig   `toml:"storage"`
	Logging     LoggingConfig   `toml:"logging"`
	Pipeline    PipelineConfig  `toml:"pipeline"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
	Tenancy     TenancyConfig   `toml:"tenancy"`
	WebSocket   WebSocketConfig `toml:"websocket"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Format     string   `toml:"format"`      // "json" or "text"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // Time format for logs (default: "15:04:05.000")
}

// PipelineConfig describes how pipeline jobs are launched and where their
// working state lives.
type PipelineConfig struct {
	WorkerBin    string `toml:"worker_bin"`     // Path to the pipeline worker executable
	StagingDir   string `toml:"staging_dir"`    // Directory holding synced files awaiting extraction
	CasesDir     string `toml:"cases_dir"`      // Directory containing case template files (YAML)
	SchedulesDir string `toml:"schedules_dir"`  // Directory containing schedule seed files (TOML)
	RunStatePath string `toml:"run_state_path"` // Path to the resumability snapshot document
}

// SchedulerConfig contains scheduler behaviour and the timezone allow-list
type SchedulerConfig struct {
	Enabled   bool     `toml:"enabled"`
	Timezones []string `toml:"timezones"` // Supported IANA timezones for schedules
}

// TenancyConfig maps each brand to the purchasers that belong to it.
// Schedule scope resolution intersects schedule selections against this table.
type TenancyConfig struct {
	Brands map[string][]string `toml:"brands"`
}

// WebSocketConfig contains configuration for WebSocket event streaming
type WebSocketConfig struct {
	MinLevel          string            `toml:"min_level"`          // Minimum log level to broadcast
	AllowedEvents     []string          `toml:"allowed_events"`     // Whitelist of event types to broadcast (empty = all)
	ThrottleIntervals map[string]string `toml:"throttle_intervals"` // Per-event-type minimum broadcast interval
}

// DefaultConfig returns the baseline configuration applied before any file
// or environment overrides.
func DefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8181,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data/runner",
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     []string{"stdout", "file"},
			TimeFormat: "15:04:05.000",
		},
		Pipeline: PipelineConfig{
			WorkerBin:    "intelliextract-pipeline",
			StagingDir:   "./data/staging",
			CasesDir:     "./cases",
			SchedulesDir: "./schedules",
			RunStatePath: "./data/run-state.json",
		},
		Scheduler: SchedulerConfig{
			Enabled:   true,
			Timezones: []string{"UTC", "Australia/Sydney", "Australia/Melbourne", "Asia/Kolkata", "America/New_York", "Europe/London"},
		},
		Tenancy: TenancyConfig{
			Brands: map[string][]string{},
		},
		WebSocket: WebSocketConfig{
			MinLevel: "info",
			ThrottleIntervals: map[string]string{
				"run_progress": "500ms",
			},
		},
	}
}

// LoadFromFiles loads configuration from defaults, then each file in order
// (later files override earlier ones), then environment variables.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := DefaultConfig()

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// ApplyFlagOverrides applies command-line flag values on top of the loaded
// configuration. Zero values are treated as "not set".
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port != 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// applyEnvOverrides maps RUNNER_* environment variables onto the config
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("RUNNER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			config.Server.Port = port
		}
	}
	if v := os.Getenv("RUNNER_HOST"); v != "" {
		config.Server.Host = v
	}
	if v := os.Getenv("RUNNER_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	if v := os.Getenv("RUNNER_BADGER_PATH"); v != "" {
		config.Storage.Badger.Path = v
	}
	if v := os.Getenv("RUNNER_WORKER_BIN"); v != "" {
		config.Pipeline.WorkerBin = v
	}
	if v := os.Getenv("RUNNER_ENVIRONMENT"); v != "" {
		config.Environment = v
	}
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// SupportsTimezone reports whether tz is on the scheduler timezone allow-list.
func (c *Config) SupportsTimezone(tz string) bool {
	for _, supported := range c.Scheduler.Timezones {
		if supported == tz {
			return true
		}
	}
	return false
}

// PurchasersForBrand returns the purchasers configured for a brand
func (c *Config) PurchasersForBrand(brand string) []string {
	if c.Tenancy.Brands == nil {
		return nil
	}
	return c.Tenancy.Brands[brand]
}

// ValidateCronExpression validates a standard 5-field cron expression
func ValidateCronExpression(expr string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(expr); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	if len(strings.Fields(expr)) != 5 {
		return fmt.Errorf("invalid cron format: expected 5 fields")
	}
	return nil
}
