package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name     string
		got      interface{}
		expected interface{}
	}{
		{"Search.Threads", cfg.Search.Threads, 0},
		{"Search.CrprEnabled", cfg.Search.CrprEnabled, true},
		{"Search.CrprMode", cfg.Search.CrprMode, "same_pin"},
		{"Search.PocvEnabled", cfg.Search.PocvEnabled, false},
		{"Search.SigmaFactor", cfg.Search.SigmaFactor, float32(3)},
		{"Report.GroupPathCount", cfg.Report.GroupPathCount, 1},
		{"Report.EndpointPathCount", cfg.Report.EndpointPathCount, 1},
		{"Report.Format", cfg.Report.Format, "text"},
		{"Report.Digits", cfg.Report.Digits, 2},
		{"Telemetry.TraceExporter", cfg.Telemetry.TraceExporter, ExporterNone},
		{"Telemetry.MetricExporter", cfg.Telemetry.MetricExporter, ExporterNone},
		{"Verbose", cfg.Verbose, false},
		{"LogJSON", cfg.LogJSON, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("DefaultConfig().%s = %v, want %v", tt.name, tt.got, tt.expected)
			}
		})
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() = %v, want nil", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name        string
		modify      func(*Config)
		wantErr     bool
		errContains string
	}{
		{
			name:   "defaults",
			modify: func(c *Config) {},
		},
		{
			name:   "same transition crpr",
			modify: func(c *Config) { c.Search.CrprMode = "same_transition" },
		},
		{
			name:        "negative threads",
			modify:      func(c *Config) { c.Search.Threads = -1 },
			wantErr:     true,
			errContains: "search.threads",
		},
		{
			name:        "invalid crpr mode",
			modify:      func(c *Config) { c.Search.CrprMode = "sometimes" },
			wantErr:     true,
			errContains: "crpr_mode",
		},
		{
			name: "pocv without sigma",
			modify: func(c *Config) {
				c.Search.PocvEnabled = true
				c.Search.SigmaFactor = 0
			},
			wantErr:     true,
			errContains: "sigma_factor",
		},
		{
			name:        "zero group count",
			modify:      func(c *Config) { c.Report.GroupPathCount = 0 },
			wantErr:     true,
			errContains: "group_path_count",
		},
		{
			name:        "zero endpoint count",
			modify:      func(c *Config) { c.Report.EndpointPathCount = 0 },
			wantErr:     true,
			errContains: "endpoint_path_count",
		},
		{
			name: "slack range inverted",
			modify: func(c *Config) {
				c.Report.SlackMin = 1
				c.Report.SlackMax = 0
			},
			wantErr:     true,
			errContains: "slack_min",
		},
		{
			name:        "invalid format",
			modify:      func(c *Config) { c.Report.Format = "xml" },
			wantErr:     true,
			errContains: "report.format",
		},
		{
			name:        "too many digits",
			modify:      func(c *Config) { c.Report.Digits = 12 },
			wantErr:     true,
			errContains: "digits",
		},
		{
			name:        "invalid trace exporter",
			modify:      func(c *Config) { c.Telemetry.TraceExporter = "otlp" },
			wantErr:     true,
			errContains: "trace_exporter",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !strings.Contains(err.Error(), tt.errContains) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.errContains)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	tests := []struct {
		name       string
		configYAML string
		envVars    map[string]string
		checkCfg   func(*testing.T, *Config)
		wantErr    bool
	}{
		{
			name: "load nested sections",
			configYAML: `
search:
  threads: 4
  crpr_enabled: false
  pocv_enabled: true
  sigma_factor: 2.5
report:
  group_path_count: 5
  format: json
  digits: 3
telemetry:
  trace_exporter: stdout
verbose: true
`,
			checkCfg: func(t *testing.T, cfg *Config) {
				if cfg.Search.Threads != 4 {
					t.Errorf("Search.Threads = %v, want 4", cfg.Search.Threads)
				}
				if cfg.Search.CrprEnabled {
					t.Error("Search.CrprEnabled = true, want false")
				}
				if cfg.Search.SigmaFactor != 2.5 {
					t.Errorf("Search.SigmaFactor = %v, want 2.5", cfg.Search.SigmaFactor)
				}
				if cfg.Report.GroupPathCount != 5 {
					t.Errorf("Report.GroupPathCount = %v, want 5", cfg.Report.GroupPathCount)
				}
				if cfg.Report.Format != "json" {
					t.Errorf("Report.Format = %v, want json", cfg.Report.Format)
				}
				if cfg.Telemetry.TraceExporter != ExporterStdout {
					t.Errorf("Telemetry.TraceExporter = %v, want stdout", cfg.Telemetry.TraceExporter)
				}
				if !cfg.Verbose {
					t.Error("Verbose = false, want true")
				}
			},
		},
		{
			name:       "partial file keeps defaults",
			configYAML: "report:\n  digits: 4\n",
			checkCfg: func(t *testing.T, cfg *Config) {
				if cfg.Report.Digits != 4 {
					t.Errorf("Report.Digits = %v, want 4", cfg.Report.Digits)
				}
				if cfg.Report.GroupPathCount != 1 {
					t.Errorf("Report.GroupPathCount = %v, want 1", cfg.Report.GroupPathCount)
				}
				if cfg.Search.CrprMode != "same_pin" {
					t.Errorf("Search.CrprMode = %v, want same_pin", cfg.Search.CrprMode)
				}
			},
		},
		{
			name:       "env overrides file",
			configYAML: "search:\n  threads: 2\n",
			envVars:    map[string]string{"GSTA_THREADS": "8", "GSTA_LOG_JSON": "yes"},
			checkCfg: func(t *testing.T, cfg *Config) {
				if cfg.Search.Threads != 8 {
					t.Errorf("Search.Threads = %v, want 8", cfg.Search.Threads)
				}
				if !cfg.LogJSON {
					t.Error("LogJSON = false, want true")
				}
			},
		},
		{
			name:       "invalid yaml",
			configYAML: "search: [",
			wantErr:    true,
		},
		{
			name:       "invalid value",
			configYAML: "report:\n  format: pdf\n",
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.configYAML), 0644); err != nil {
				t.Fatalf("failed to write config: %v", err)
			}

			cfg, err := LoadFromFile(path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("LoadFromFile() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.checkCfg != nil && err == nil {
				tt.checkCfg(t, cfg)
			}
		})
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("LoadFromFile() error = nil, want error")
	}
}

func TestLoadProjectConfig(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", t.TempDir())
	t.Chdir(dir)

	if err := os.MkdirAll(".gsta", 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(ProjectConfigFilePath(), []byte("report:\n  sort_by_slack: true\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.Report.SortBySlack {
		t.Error("Report.SortBySlack = false, want true")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
		check func(*Config) bool
	}{
		{"threads", "GSTA_THREADS", "16", func(c *Config) bool { return c.Search.Threads == 16 }},
		{"invalid threads ignored", "GSTA_THREADS", "many", func(c *Config) bool { return c.Search.Threads == 0 }},
		{"crpr disabled", "GSTA_CRPR_ENABLED", "false", func(c *Config) bool { return !c.Search.CrprEnabled }},
		{"crpr mode", "GSTA_CRPR_MODE", "same_transition", func(c *Config) bool { return c.Search.CrprMode == "same_transition" }},
		{"pocv", "GSTA_POCV_ENABLED", "1", func(c *Config) bool { return c.Search.PocvEnabled }},
		{"sigma", "GSTA_SIGMA_FACTOR", "1.5", func(c *Config) bool { return c.Search.SigmaFactor == 1.5 }},
		{"unconstrained", "GSTA_REPORT_UNCONSTRAINED", "true", func(c *Config) bool { return c.Search.ReportUnconstrained }},
		{"group count", "GSTA_GROUP_PATH_COUNT", "10", func(c *Config) bool { return c.Report.GroupPathCount == 10 }},
		{"endpoint count", "GSTA_ENDPOINT_PATH_COUNT", "3", func(c *Config) bool { return c.Report.EndpointPathCount == 3 }},
		{"unique pins", "GSTA_UNIQUE_PINS", "TRUE", func(c *Config) bool { return c.Report.UniquePins }},
		{"format", "GSTA_FORMAT", "msgpack", func(c *Config) bool { return c.Report.Format == "msgpack" }},
		{"metric exporter", "GSTA_METRIC_EXPORTER", "stdout", func(c *Config) bool { return c.Telemetry.MetricExporter == ExporterStdout }},
		{"verbose", "GSTA_VERBOSE", "yes", func(c *Config) bool { return c.Verbose }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			cfg := DefaultConfig()
			applyEnvOverrides(cfg)
			if !tt.check(cfg) {
				t.Errorf("%s=%s not applied: %+v", tt.key, tt.value, cfg)
			}
		})
	}
}

func TestConfigSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "config.yaml")

	cfg := DefaultConfig()
	cfg.Search.Threads = 6
	cfg.Report.Format = "json"
	cfg.Telemetry.MetricExporter = ExporterStdout

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if *loaded != *cfg {
		t.Errorf("loaded config = %+v, want %+v", loaded, cfg)
	}
}

func TestParseInt(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{"42", 42},
		{"0", 0},
		{"-3", -3},
		{"abc", 0},
		{"", 0},
	}
	for _, tt := range tests {
		if got := parseInt(tt.input); got != tt.want {
			t.Errorf("parseInt(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
