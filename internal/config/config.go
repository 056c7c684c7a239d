// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"econlint/internal/models"
)

// Config represents the configuration for econlint
type Config struct {
	// General settings
	Version string `yaml:"version" json:"version" toml:"version"`

	// Analysis settings
	Analysis AnalysisConfig `yaml:"analysis" json:"analysis" toml:"analysis"`

	// Output settings
	Output OutputConfig `yaml:"output" json:"output" toml:"output"`

	// Per-rule switches
	Rules RulesConfig `yaml:"rules" json:"rules" toml:"rules"`

	// File patterns
	Files FilesConfig `yaml:"files" json:"files" toml:"files"`

	Logging LoggingConfig `yaml:"logging" json:"logging" toml:"logging"`

	// Run history database
	History HistoryConfig `yaml:"history" json:"history" toml:"history"`
}

type AnalysisConfig struct {
	// Rule codes to skip, e.g. ECON003
	DisabledRules []string `yaml:"disabled_rules" json:"disabled_rules" toml:"disabled_rules"`

	// Parallel analysis
	MaxWorkers int `yaml:"max_workers" json:"max_workers" toml:"max_workers"`
}

type OutputConfig struct {
	// Default output format: text or json
	Format string `yaml:"format" json:"format" toml:"format"`

	// Colorized text output
	Colors bool `yaml:"colors" json:"colors" toml:"colors"`

	// Output file path (optional)
	OutputFile string `yaml:"output_file,omitempty" json:"output_file,omitempty" toml:"output_file,omitempty"`
}

type RulesConfig struct {
	ExternalCallInLoop RuleConfig `yaml:"external_call_in_loop" json:"external_call_in_loop" toml:"external_call_in_loop"`
	UnboundedRetry     RuleConfig `yaml:"unbounded_retry" json:"unbounded_retry" toml:"unbounded_retry"`
	NPlusOne           RuleConfig `yaml:"n_plus_one" json:"n_plus_one" toml:"n_plus_one"`
	UnboundedFanOut    RuleConfig `yaml:"unbounded_fan_out" json:"unbounded_fan_out" toml:"unbounded_fan_out"`
}

type RuleConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled" toml:"enabled"`
}

type FilesConfig struct {
	// Exclude patterns, matched against the full path, the file name and
	// every path segment
	Exclude []string `yaml:"exclude" json:"exclude" toml:"exclude"`

	// Max file size (in KB), 0 for no limit
	MaxFileSize int `yaml:"max_file_size" json:"max_file_size" toml:"max_file_size"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" json:"level" toml:"level"`
	Format string `yaml:"format" json:"format" toml:"format"`
}

type HistoryConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled" toml:"enabled"`
	Path    string `yaml:"path" json:"path" toml:"path"`
}

var knownCodes = []string{
	models.CodeExternalCallInLoop,
	models.CodeUnboundedRetry,
	models.CodeNPlusOne,
	models.CodeUnboundedFanOut,
}

func DefaultConfig() *Config {
	return &Config{
		Version: "1.0",
		Analysis: AnalysisConfig{
			DisabledRules: []string{},
			MaxWorkers:    4,
		},
		Output: OutputConfig{
			Format: "text",
			Colors: true,
		},
		Rules: RulesConfig{
			ExternalCallInLoop: RuleConfig{Enabled: true},
			UnboundedRetry:     RuleConfig{Enabled: true},
			NPlusOne:           RuleConfig{Enabled: true},
			UnboundedFanOut:    RuleConfig{Enabled: true},
		},
		Files: FilesConfig{
			Exclude:     []string{".git", "__pycache__", ".venv", "venv", "node_modules", ".tox"},
			MaxFileSize: 1024, // 1MB
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "text",
		},
		History: HistoryConfig{
			Enabled: false,
			Path:    ".econlint/history.db",
		},
	}
}

// LoadConfig loads configuration from file or returns default
func LoadConfig(configPath string) (*Config, error) {
	// If no config path provided, look for default config files
	if configPath == "" {
		configPath = findConfigFile()
	}

	// If still no config found, return default
	if configPath == "" {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	config := DefaultConfig() // Start with defaults

	if filepath.Ext(configPath) == ".toml" {
		err = decodePyproject(data, config)
	} else {
		err = yaml.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

type pyproject struct {
	Tool struct {
		Econlint *Config `toml:"econlint"`
	} `toml:"tool"`
}

// decodePyproject reads the [tool.econlint] table over the defaults in cfg.
func decodePyproject(data []byte, cfg *Config) error {
	var doc pyproject
	doc.Tool.Econlint = cfg
	return toml.Unmarshal(data, &doc)
}

// findConfigFile looks for config files in common locations. A
// pyproject.toml only counts when it has a [tool.econlint] table.
func findConfigFile() string {
	possiblePaths := []string{
		".econlint.yml",
		".econlint.yaml",
		"econlint.yml",
		"econlint.yaml",
		".config/econlint.yml",
		".config/econlint.yaml",
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	if hasEconlintTable("pyproject.toml") {
		return "pyproject.toml"
	}
	return ""
}

func hasEconlintTable(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	var doc struct {
		Tool map[string]any `toml:"tool"`
	}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return false
	}
	_, ok := doc.Tool["econlint"]
	return ok
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	validFormats := []string{"text", "json"}
	if !slices.Contains(validFormats, c.Output.Format) {
		return fmt.Errorf("invalid output format: %s (valid: %v)", c.Output.Format, validFormats)
	}

	if c.Analysis.MaxWorkers < 1 {
		return fmt.Errorf("max_workers must be at least 1")
	}

	if c.Files.MaxFileSize < 0 {
		return fmt.Errorf("max_file_size must not be negative")
	}

	for _, code := range c.Analysis.DisabledRules {
		if !slices.Contains(knownCodes, strings.ToUpper(strings.TrimSpace(code))) {
			return fmt.Errorf("unknown rule code in disabled_rules: %q", code)
		}
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLevels, strings.ToLower(c.Logging.Level)) {
		return fmt.Errorf("invalid log level: %s (valid: %v)", c.Logging.Level, validLevels)
	}

	if c.History.Enabled && c.History.Path == "" {
		return fmt.Errorf("history.path is required when history is enabled")
	}

	return nil
}

// SaveConfig saves configuration to file
func (c *Config) SaveConfig(configPath string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GenerateConfig creates a sample configuration file
func GenerateConfig(configPath string) error {
	config := DefaultConfig()
	return config.SaveConfig(configPath)
}

// IsRuleEnabled checks if a specific rule is enabled
func (c *Config) IsRuleEnabled(code string) bool {
	code = strings.ToUpper(strings.TrimSpace(code))
	for _, d := range c.Analysis.DisabledRules {
		if strings.ToUpper(strings.TrimSpace(d)) == code {
			return false
		}
	}
	switch code {
	case models.CodeExternalCallInLoop:
		return c.Rules.ExternalCallInLoop.Enabled
	case models.CodeUnboundedRetry:
		return c.Rules.UnboundedRetry.Enabled
	case models.CodeNPlusOne:
		return c.Rules.NPlusOne.Enabled
	case models.CodeUnboundedFanOut:
		return c.Rules.UnboundedFanOut.Enabled
	default:
		return false
	}
}

// DisabledCodes returns every known rule code that is switched off.
func (c *Config) DisabledCodes() []string {
	var out []string
	for _, code := range knownCodes {
		if !c.IsRuleEnabled(code) {
			out = append(out, code)
		}
	}
	return out
}

// DisableRules adds comma-separated codes, as given on the command line, to
// the disabled list.
func (c *Config) DisableRules(list string) {
	for _, code := range strings.Split(list, ",") {
		if code = strings.ToUpper(strings.TrimSpace(code)); code != "" {
			c.Analysis.DisabledRules = append(c.Analysis.DisabledRules, code)
		}
	}
}
