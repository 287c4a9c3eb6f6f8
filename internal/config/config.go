package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"webconcolic/internal/browser"
	"webconcolic/internal/logging"
)

// Config holds all webconcolic configuration: the iteration driver's entry
// point and budget, which selection policy and solver backend to use, the
// diagnostic constraint-negation flag, preset inputs, the browser bridge's
// launch settings, and logging.
type Config struct {
	// URL is the entry point the driver navigates to on iteration one.
	URL string `yaml:"url"`

	// IterationLimit bounds how many load/execute/merge/select/solve
	// cycles the driver runs before stopping with StopBudgetExhausted.
	// Zero means unbounded (run until the frontier is exhausted).
	IterationLimit int `yaml:"iteration_limit"`

	// SelectionPolicy names the frontier.Policy to use: "dfs" or "random"
	// (see ValidSelectionPolicies).
	SelectionPolicy string `yaml:"selection_policy"`

	// SolverBackend names the solver.Solver implementation: "fd" selects
	// the gokanlogic finite-domain backend.
	SolverBackend string `yaml:"solver_backend"`

	// NegateLastConstraint is a diagnostic switch that is loaded, validated
	// and saved with the rest of the config. No command reads it: the run
	// command prints no path condition at shutdown, negated or not.
	NegateLastConstraint bool `yaml:"negate_last_constraint"`

	// PresetFieldValues holds fixed form-field values as raw strings keyed
	// by field name. It is loaded and saved with the config; the run command
	// does not pass it to the driver, and no field is seeded from it.
	PresetFieldValues map[string]string `yaml:"preset_field_values"`

	// Browser carries the bridge's launch/connection/instrumentation
	// settings, reusing internal/browser's own Config shape directly
	// rather than duplicating its fields here.
	Browser browser.Config `yaml:"browser"`

	// Logging holds logging settings in the YAML config. The categorized
	// file logger does not read them: logging.Initialize loads its own
	// .webconcolic/config.json under the workspace.
	Logging LoggingConfig `yaml:"logging"`
}

// DefaultConfig returns sane defaults.
func DefaultConfig() *Config {
	return &Config{
		SelectionPolicy: "dfs",
		SolverBackend:   "fd",
		Browser:         browser.DefaultConfig(),
		Logging: LoggingConfig{
			Level:     "info",
			Format:    "text",
			File:      "webconcolic.log",
			DebugMode: false,
		},
	}
}

// Load loads configuration from a YAML file, falling back to defaults (plus
// environment overrides) if the file does not exist.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	logging.BootDebug("loading config from: %s", path)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logging.Boot("config file not found, using defaults: %s", path)
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		logging.BootError("failed to read config file %s: %v", path, err)
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		logging.BootError("failed to parse config file %s: %v", path, err)
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	logging.Boot("config loaded: url=%s policy=%s solver=%s", cfg.URL, cfg.SelectionPolicy, cfg.SolverBackend)
	return cfg, nil
}

// Save writes configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if url := os.Getenv("WEBCONCOLIC_URL"); url != "" {
		c.URL = url
	}
	if policy := os.Getenv("WEBCONCOLIC_SELECTION_POLICY"); policy != "" {
		c.SelectionPolicy = policy
	}
	if backend := os.Getenv("WEBCONCOLIC_SOLVER_BACKEND"); backend != "" {
		c.SolverBackend = backend
	}
	if debuggerURL := os.Getenv("WEBCONCOLIC_DEBUGGER_URL"); debuggerURL != "" {
		c.Browser.DebuggerURL = debuggerURL
	}
}

// GetNavigationTimeout returns the browser navigation timeout as a
// time.Duration.
func (c *Config) GetNavigationTimeout() time.Duration {
	if c.Browser.NavigationTimeoutMs == 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Browser.NavigationTimeoutMs) * time.Millisecond
}

// ValidSelectionPolicies lists all supported frontier.Policy names.
var ValidSelectionPolicies = []string{"dfs", "random"}

// ValidSolverBackends lists all supported solver.Solver backend names.
var ValidSolverBackends = []string{"fd"}

// Validate checks the configuration is usable before the driver starts.
func (c *Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("url not configured")
	}

	validPolicy := false
	for _, p := range ValidSelectionPolicies {
		if c.SelectionPolicy == p {
			validPolicy = true
			break
		}
	}
	if !validPolicy {
		return fmt.Errorf("invalid selection policy: %s (valid: %v)", c.SelectionPolicy, ValidSelectionPolicies)
	}

	validBackend := false
	for _, b := range ValidSolverBackends {
		if c.SolverBackend == b {
			validBackend = true
			break
		}
	}
	if !validBackend {
		return fmt.Errorf("invalid solver backend: %s (valid: %v)", c.SolverBackend, ValidSolverBackends)
	}

	return nil
}
