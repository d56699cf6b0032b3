// Package config loads and validates the service configuration.
//
// Configuration is a single YAML document; omitted fields fall back to
// defaults so partial configs are safe. Credentials never live in the file:
// the language-model API key is read from the environment
// (SHIPTRACE_LLM_API_KEY), typically populated from a .env file at startup.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/seaway-data/shiptrace/internal/units"
)

// LLMKeyEnv is the environment variable holding the language-model API key.
// Absence degrades schema resolution to heuristic-only.
const LLMKeyEnv = "SHIPTRACE_LLM_API_KEY"

// ClipRule constrains one canonical field's values. Kind selects the
// variant: "range" replaces values outside [Min, Max] with missing, "enum"
// replaces values not in Allow with missing. Rules are data so they can be
// fingerprinted into the cache key.
type ClipRule struct {
	Kind  string    `yaml:"kind"`
	Min   *float64  `yaml:"min,omitempty"`
	Max   *float64  `yaml:"max,omitempty"`
	Allow []float64 `yaml:"allow,omitempty"`
}

// TrajectoryConfig describes the tabular input and its processing options.
type TrajectoryConfig struct {
	Path             string              `yaml:"path"`
	Encoding         string              `yaml:"encoding"`          // "utf-8" (default) or "gbk"
	Sheet            string              `yaml:"sheet"`             // xlsx sheet name; empty = first sheet
	SynonymTable     string              `yaml:"synonym_table"`     // optional extra synonym YAML
	ResampleInterval string              `yaml:"resample_interval"` // duration string; empty = natural timestamps
	RowLimit         int                 `yaml:"row_limit"`
	Clips            map[string]ClipRule `yaml:"clips"`
	Units            map[string]string   `yaml:"units"` // canonical field -> source unit
}

// GridConfig describes the environment grid input.
type GridConfig struct {
	Path        string `yaml:"path"`
	Levels      []int  `yaml:"levels"`       // vertical levels of interest, meters
	ReadTimeout string `yaml:"read_timeout"` // duration string
}

// CacheConfig describes the persistent result cache.
type CacheConfig struct {
	DBPath            string `yaml:"db_path"`
	MemoryEntries     int    `yaml:"memory_entries"`
	ForceRegeneration bool   `yaml:"force_regeneration"`
}

// LLMConfig describes the optional language-model schema backend.
type LLMConfig struct {
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	Temperature float64 `yaml:"temperature"`
}

// Config is the root configuration document.
type Config struct {
	Listen     string           `yaml:"listen"`
	Trajectory TrajectoryConfig `yaml:"trajectory"`
	Grid       GridConfig       `yaml:"grid"`
	Cache      CacheConfig      `yaml:"cache"`
	LLM        LLMConfig        `yaml:"llm"`
}

// Default returns a configuration with every field at its default value.
func Default() *Config {
	return &Config{
		Listen: ":8080",
		Trajectory: TrajectoryConfig{
			Encoding: "utf-8",
			RowLimit: 100000,
			Units: map[string]string{
				"speed":           units.Knots,
				"true_wind_speed": units.Knots,
			},
		},
		Grid: GridConfig{
			Levels:      []int{10, 100},
			ReadTimeout: "30s",
		},
		Cache: CacheConfig{
			DBPath:        "shiptrace.db",
			MemoryEntries: 32,
		},
		LLM: LLMConfig{
			Temperature: 0.1,
		},
	}
}

// Load reads a YAML config file over the defaults and validates the result.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .yaml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration values are usable.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address must not be empty")
	}

	switch c.Trajectory.Encoding {
	case "", "utf-8", "utf8", "gbk":
	default:
		return fmt.Errorf("unsupported encoding %q (want utf-8 or gbk)", c.Trajectory.Encoding)
	}

	if c.Trajectory.ResampleInterval != "" {
		d, err := time.ParseDuration(c.Trajectory.ResampleInterval)
		if err != nil {
			return fmt.Errorf("invalid resample_interval %q: %w", c.Trajectory.ResampleInterval, err)
		}
		if d <= 0 {
			return fmt.Errorf("resample_interval must be positive, got %s", d)
		}
	}

	for field, rule := range c.Trajectory.Clips {
		switch rule.Kind {
		case "range":
			if rule.Min == nil && rule.Max == nil {
				return fmt.Errorf("clip for %q: range rule needs min or max", field)
			}
			if rule.Min != nil && rule.Max != nil && *rule.Min > *rule.Max {
				return fmt.Errorf("clip for %q: min %v exceeds max %v", field, *rule.Min, *rule.Max)
			}
		case "enum":
			if len(rule.Allow) == 0 {
				return fmt.Errorf("clip for %q: enum rule needs a non-empty allow list", field)
			}
		default:
			return fmt.Errorf("clip for %q: unknown kind %q (want range or enum)", field, rule.Kind)
		}
	}

	for field, u := range c.Trajectory.Units {
		if !units.IsValid(u) {
			return fmt.Errorf("unit for %q: %q is not one of %s", field, u, units.GetValidUnitsString())
		}
	}

	if c.Grid.ReadTimeout != "" {
		if _, err := time.ParseDuration(c.Grid.ReadTimeout); err != nil {
			return fmt.Errorf("invalid grid read_timeout %q: %w", c.Grid.ReadTimeout, err)
		}
	}

	if c.Cache.MemoryEntries < 0 {
		return fmt.Errorf("cache memory_entries must be non-negative, got %d", c.Cache.MemoryEntries)
	}

	return nil
}

// GetResampleInterval parses the resample interval; zero means natural
// timestamp passthrough.
func (c *Config) GetResampleInterval() time.Duration {
	if c.Trajectory.ResampleInterval == "" {
		return 0
	}
	d, err := time.ParseDuration(c.Trajectory.ResampleInterval)
	if err != nil {
		return 0
	}
	return d
}

// GetGridReadTimeout parses the grid read timeout.
func (c *Config) GetGridReadTimeout() time.Duration {
	if c.Grid.ReadTimeout == "" {
		return 30 * time.Second
	}
	d, err := time.ParseDuration(c.Grid.ReadTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// LLMKey returns the language-model API key from the environment, or "".
func (c *Config) LLMKey() string {
	return os.Getenv(LLMKeyEnv)
}

// LLMEnabled reports whether a language-model schema pass is configured and
// has credentials available.
func (c *Config) LLMEnabled() bool {
	return c.LLM.Model != "" && c.LLM.BaseURL != "" && c.LLMKey() != ""
}
