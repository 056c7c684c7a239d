package config

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if got := cfg.DisabledCodes(); len(got) != 0 {
		t.Errorf("no rule should be disabled by default, got %v", got)
	}
	if !slices.Contains(cfg.Files.Exclude, "__pycache__") {
		t.Errorf("default excludes = %v", cfg.Files.Exclude)
	}
}

func TestLoadConfigYAML(t *testing.T) {
	path := writeFile(t, ".econlint.yml", `
analysis:
  disabled_rules: [ECON003]
  max_workers: 2
output:
  format: json
files:
  exclude: [build, "*_pb2.py"]
rules:
  unbounded_fan_out:
    enabled: false
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Analysis.MaxWorkers != 2 || cfg.Output.Format != "json" {
		t.Errorf("analysis/output not applied: %+v %+v", cfg.Analysis, cfg.Output)
	}
	if !slices.Equal(cfg.Files.Exclude, []string{"build", "*_pb2.py"}) {
		t.Errorf("Exclude = %v", cfg.Files.Exclude)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("unset sections keep their defaults, got level %q", cfg.Logging.Level)
	}
	if got := cfg.DisabledCodes(); !slices.Equal(got, []string{"ECON003", "ECON004"}) {
		t.Errorf("DisabledCodes = %v", got)
	}
}

func TestLoadConfigPyproject(t *testing.T) {
	path := writeFile(t, "pyproject.toml", `
[project]
name = "billing"

[tool.black]
line-length = 100

[tool.econlint.analysis]
disabled_rules = ["ECON001"]

[tool.econlint.output]
format = "json"
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Output.Format != "json" {
		t.Errorf("Format = %q, want json", cfg.Output.Format)
	}
	if cfg.IsRuleEnabled("ECON001") || !cfg.IsRuleEnabled("ECON002") {
		t.Errorf("DisabledCodes = %v", cfg.DisabledCodes())
	}
	if cfg.Analysis.MaxWorkers != DefaultConfig().Analysis.MaxWorkers {
		t.Errorf("MaxWorkers = %d, want the default", cfg.Analysis.MaxWorkers)
	}
	if !hasEconlintTable(path) {
		t.Error("hasEconlintTable = false")
	}
	if hasEconlintTable(writeFile(t, "pyproject.toml", "[tool.ruff]\nline-length = 100\n")) {
		t.Error("a pyproject without [tool.econlint] should not be picked up")
	}
}

func TestLoadConfigErrors(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yml")); err == nil {
		t.Error("expected an error for a missing file")
	}
	if _, err := LoadConfig(writeFile(t, "bad.yml", "analysis: [unclosed\n")); err == nil {
		t.Error("expected a parse error")
	}
	_, err := LoadConfig(writeFile(t, "bad.yml", "output:\n  format: xml\n"))
	if err == nil || !strings.Contains(err.Error(), "invalid configuration") {
		t.Errorf("expected a validation error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"format", func(c *Config) { c.Output.Format = "sarif" }},
		{"workers", func(c *Config) { c.Analysis.MaxWorkers = 0 }},
		{"file size", func(c *Config) { c.Files.MaxFileSize = -1 }},
		{"unknown code", func(c *Config) { c.Analysis.DisabledRules = []string{"ECON042"} }},
		{"log level", func(c *Config) { c.Logging.Level = "loud" }},
		{"history path", func(c *Config) { c.History.Enabled = true; c.History.Path = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}

func TestDisableRules(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DisableRules("econ001, ,ECON004,ECON999")

	if got := cfg.DisabledCodes(); !slices.Equal(got, []string{"ECON001", "ECON004"}) {
		t.Errorf("DisabledCodes = %v", got)
	}
	if cfg.IsRuleEnabled("ECON999") {
		t.Error("unknown codes are never enabled")
	}
}

func TestGenerateConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", ".econlint.yml")
	if err := GenerateConfig(path); err != nil {
		t.Fatalf("GenerateConfig: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	def := DefaultConfig()
	if cfg.Analysis.MaxWorkers != def.Analysis.MaxWorkers ||
		cfg.History.Path != def.History.Path ||
		!slices.Equal(cfg.Files.Exclude, def.Files.Exclude) {
		t.Errorf("round trip changed the config: %+v", cfg)
	}
}
