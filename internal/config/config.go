// YAML config loader with CUE validation integration
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schema []byte

// Reconnect tunes the system event stream backoff.
type Reconnect struct {
	BaseDelay   time.Duration `yaml:"base_delay"`
	Growth      float64       `yaml:"growth"`
	MaxAttempts int           `yaml:"max_attempts"`
}

// Timers holds the deferred dashboard transitions.
type Timers struct {
	EdgeProcessingDelay time.Duration `yaml:"edge_processing_delay"`
	MissionResetGrace   time.Duration `yaml:"mission_reset_grace"`
}

// Record selects where bus events are recorded.
type Record struct {
	File             string `yaml:"file"`
	GreptimeEndpoint string `yaml:"greptime_endpoint"`
	GreptimeDatabase string `yaml:"greptime_database"`
}

// Config is the console configuration.
type Config struct {
	BackendURL    string    `yaml:"backend_url"`
	Profile       string    `yaml:"profile"`
	Reconnect     Reconnect `yaml:"reconnect"`
	Timers        Timers    `yaml:"timers"`
	LogLevel      string    `yaml:"log_level"`
	LogFile       string    `yaml:"log_file"`
	HTTPAddr      string    `yaml:"http_addr"`
	Record        Record    `yaml:"record"`
	RegionHistory int       `yaml:"region_history"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		BackendURL: "http://localhost:4000",
		Profile:    "bushfire",
		Reconnect: Reconnect{
			BaseDelay:   2 * time.Second,
			Growth:      1.5,
			MaxAttempts: 5,
		},
		Timers: Timers{
			EdgeProcessingDelay: 30 * time.Second,
			MissionResetGrace:   2 * time.Second,
		},
		LogLevel:      "info",
		HTTPAddr:      ":8080",
		Record:        Record{GreptimeDatabase: "public"},
		RegionHistory: 1,
	}
}

// Load reads path over the defaults, validates it against the embedded CUE
// schema and applies environment overrides. An empty path or a missing file
// yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("read config: %w", err)
		default:
			if err := ValidateYAML(schema, "#Config", path, data); err != nil {
				return Config{}, err
			}
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("DRONEOPS_BACKEND_URL"); v != "" {
		cfg.BackendURL = v
	}
	if v := os.Getenv("DRONEOPS_PROFILE"); v != "" {
		cfg.Profile = v
	}
	if v := os.Getenv("DRONEOPS_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("GREPTIMEDB_ENDPOINT"); v != "" {
		cfg.Record.GreptimeEndpoint = v
	}
}
