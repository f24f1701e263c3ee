package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ExporterType selects where telemetry is exported.
type ExporterType string

const (
	ExporterNone   ExporterType = "none"
	ExporterStdout ExporterType = "stdout"
)

// SearchConfig holds the settings of the timing search.
type SearchConfig struct {
	// Threads bounds parallel visits. 0 uses one thread per CPU.
	Threads int `yaml:"threads" env:"GSTA_THREADS"`

	CrprEnabled bool   `yaml:"crpr_enabled" env:"GSTA_CRPR_ENABLED"`
	CrprMode    string `yaml:"crpr_mode" env:"GSTA_CRPR_MODE"`

	PocvEnabled bool    `yaml:"pocv_enabled" env:"GSTA_POCV_ENABLED"`
	SigmaFactor float32 `yaml:"sigma_factor" env:"GSTA_SIGMA_FACTOR"`

	ReportUnconstrained bool `yaml:"report_unconstrained" env:"GSTA_REPORT_UNCONSTRAINED"`
}

// ReportConfig holds the defaults of the report commands.
type ReportConfig struct {
	GroupPathCount    int     `yaml:"group_path_count" env:"GSTA_GROUP_PATH_COUNT"`
	EndpointPathCount int     `yaml:"endpoint_path_count" env:"GSTA_ENDPOINT_PATH_COUNT"`
	UniquePins        bool    `yaml:"unique_pins" env:"GSTA_UNIQUE_PINS"`
	SlackMin          float32 `yaml:"slack_min" env:"GSTA_SLACK_MIN"`
	SlackMax          float32 `yaml:"slack_max" env:"GSTA_SLACK_MAX"`
	SortBySlack       bool    `yaml:"sort_by_slack" env:"GSTA_SORT_BY_SLACK"`
	Format            string  `yaml:"format" env:"GSTA_FORMAT"`
	Digits            int     `yaml:"digits" env:"GSTA_DIGITS"`
}

// TelemetryConfig selects the trace and metric exporters.
type TelemetryConfig struct {
	TraceExporter  ExporterType `yaml:"trace_exporter" env:"GSTA_TRACE_EXPORTER"`
	MetricExporter ExporterType `yaml:"metric_exporter" env:"GSTA_METRIC_EXPORTER"`
}

// Config holds all configuration for gsta
type Config struct {
	Search    SearchConfig    `yaml:"search"`
	Report    ReportConfig    `yaml:"report"`
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Logging
	Verbose bool `yaml:"verbose" env:"GSTA_VERBOSE"`
	LogJSON bool `yaml:"log_json" env:"GSTA_LOG_JSON"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Search: SearchConfig{
			Threads:     0,
			CrprEnabled: true,
			CrprMode:    "same_pin",
			SigmaFactor: 3,
		},
		Report: ReportConfig{
			GroupPathCount:    1,
			EndpointPathCount: 1,
			SlackMin:          -1e30,
			SlackMax:          1e30,
			Format:            "text",
			Digits:            2,
		},
		Telemetry: TelemetryConfig{
			TraceExporter:  ExporterNone,
			MetricExporter: ExporterNone,
		},
	}
}

// globalConfigFilePath returns the global config file path (~/.gsta/config.yaml)
func globalConfigFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".gsta/config.yaml"
	}
	return filepath.Join(home, ".gsta", "config.yaml")
}

// ProjectConfigFilePath returns the project-level config file path (./.gsta/config.yaml)
func ProjectConfigFilePath() string {
	return filepath.Join(".gsta", "config.yaml")
}

// Load reads configuration with the following priority (highest to lowest):
// 1. Environment variables
// 2. Project-level config (./.gsta/config.yaml)
// 3. Global config (~/.gsta/config.yaml)
// 4. Defaults
func Load() (*Config, error) {
	cfg := DefaultConfig()

	for _, path := range []string{globalConfigFilePath(), ProjectConfigFilePath()} {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile reads configuration from a specific YAML file path
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	if data, err := os.ReadFile(path); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to the specified YAML file path.
// It creates parent directories if they don't exist.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to the config
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GSTA_THREADS"); v != "" {
		if i := parseInt(v); i > 0 {
			cfg.Search.Threads = i
		}
	}
	if v := os.Getenv("GSTA_CRPR_ENABLED"); v != "" {
		cfg.Search.CrprEnabled = parseBool(v)
	}
	if v := os.Getenv("GSTA_CRPR_MODE"); v != "" {
		cfg.Search.CrprMode = v
	}
	if v := os.Getenv("GSTA_POCV_ENABLED"); v != "" {
		cfg.Search.PocvEnabled = parseBool(v)
	}
	if v := os.Getenv("GSTA_SIGMA_FACTOR"); v != "" {
		if f := parseFloat(v); f > 0 {
			cfg.Search.SigmaFactor = float32(f)
		}
	}
	if v := os.Getenv("GSTA_REPORT_UNCONSTRAINED"); v != "" {
		cfg.Search.ReportUnconstrained = parseBool(v)
	}
	if v := os.Getenv("GSTA_GROUP_PATH_COUNT"); v != "" {
		if i := parseInt(v); i > 0 {
			cfg.Report.GroupPathCount = i
		}
	}
	if v := os.Getenv("GSTA_ENDPOINT_PATH_COUNT"); v != "" {
		if i := parseInt(v); i > 0 {
			cfg.Report.EndpointPathCount = i
		}
	}
	if v := os.Getenv("GSTA_UNIQUE_PINS"); v != "" {
		cfg.Report.UniquePins = parseBool(v)
	}
	if v := os.Getenv("GSTA_SORT_BY_SLACK"); v != "" {
		cfg.Report.SortBySlack = parseBool(v)
	}
	if v := os.Getenv("GSTA_FORMAT"); v != "" {
		cfg.Report.Format = v
	}
	if v := os.Getenv("GSTA_DIGITS"); v != "" {
		if i := parseInt(v); i > 0 {
			cfg.Report.Digits = i
		}
	}
	if v := os.Getenv("GSTA_TRACE_EXPORTER"); v != "" {
		cfg.Telemetry.TraceExporter = ExporterType(v)
	}
	if v := os.Getenv("GSTA_METRIC_EXPORTER"); v != "" {
		cfg.Telemetry.MetricExporter = ExporterType(v)
	}
	if v := os.Getenv("GSTA_VERBOSE"); v != "" {
		cfg.Verbose = parseBool(v)
	}
	if v := os.Getenv("GSTA_LOG_JSON"); v != "" {
		cfg.LogJSON = parseBool(v)
	}
}

// Validate checks that the configuration has valid required fields
func (c *Config) Validate() error {
	if c.Search.Threads < 0 {
		return fmt.Errorf("search.threads must be non-negative")
	}
	switch c.Search.CrprMode {
	case "", "same_pin", "same_transition":
	default:
		return fmt.Errorf("invalid search.crpr_mode: %s (must be 'same_pin' or 'same_transition')", c.Search.CrprMode)
	}
	if c.Search.PocvEnabled && c.Search.SigmaFactor <= 0 {
		return fmt.Errorf("search.sigma_factor must be positive when pocv is enabled")
	}

	if c.Report.GroupPathCount <= 0 {
		return fmt.Errorf("report.group_path_count must be positive")
	}
	if c.Report.EndpointPathCount <= 0 {
		return fmt.Errorf("report.endpoint_path_count must be positive")
	}
	if c.Report.SlackMin > c.Report.SlackMax {
		return fmt.Errorf("report.slack_min must not exceed report.slack_max")
	}
	switch c.Report.Format {
	case "", "text", "json", "msgpack":
	default:
		return fmt.Errorf("invalid report.format: %s (must be 'text', 'json' or 'msgpack')", c.Report.Format)
	}
	if c.Report.Digits < 0 || c.Report.Digits > 9 {
		return fmt.Errorf("report.digits must be between 0 and 9")
	}

	for name, e := range map[string]ExporterType{
		"trace_exporter":  c.Telemetry.TraceExporter,
		"metric_exporter": c.Telemetry.MetricExporter,
	} {
		switch e {
		case "", ExporterNone, ExporterStdout:
		default:
			return fmt.Errorf("invalid telemetry.%s: %s (must be 'none' or 'stdout')", name, e)
		}
	}

	return nil
}

// parseFloat attempts to parse a string as float64
func parseFloat(s string) float64 {
	var f float64
	if _, err := fmt.Sscanf(s, "%f", &f); err != nil {
		return 0
	}
	return f
}

// parseInt attempts to parse a string as int
func parseInt(s string) int {
	var i int
	if _, err := fmt.Sscanf(s, "%d", &i); err != nil {
		return 0
	}
	return i
}

func parseBool(s string) bool {
	switch strings.ToLower(s) {
	case "true", "1", "yes":
		return true
	}
	return false
}
