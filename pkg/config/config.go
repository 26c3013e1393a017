// Package config loads runner settings from defaults, an optional config
// file and the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Clear state levels control which before-hook clears cached scope instances.
const (
	ClearStateSuite    = "suite"
	ClearStateSpec     = "spec"
	ClearStateScenario = "scenario"
)

// Capture drivers.
const (
	CaptureNone = "none"
	CaptureRod  = "rod"
)

// CaptureConfig configures screenshot capture.
type CaptureConfig struct {
	Driver      string        `mapstructure:"driver"`
	DebuggerURL string        `mapstructure:"debugger_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// Config holds every runner setting.
type Config struct {
	ScreenshotOnFailure bool          `mapstructure:"screenshot_on_failure"`
	ClearStateLevel     string        `mapstructure:"clear_state_level"`
	HookOrder           string        `mapstructure:"hook_order"`
	Capture             CaptureConfig `mapstructure:"capture"`
	LogLevel            string        `mapstructure:"log_level"`
	TraceFile           string        `mapstructure:"trace_file"`
	ProjectRoot         string        `mapstructure:"project_root"`
	Watch               bool          `mapstructure:"watch"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		ScreenshotOnFailure: true,
		ClearStateLevel:     ClearStateScenario,
		HookOrder:           "discovery",
		Capture: CaptureConfig{
			Driver:  CaptureNone,
			Timeout: 5 * time.Second,
		},
		LogLevel: "info",
	}
}

// Load reads configuration. path may be empty, in which case only defaults
// and the environment apply.
func Load(path string) (*Config, error) {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("screenshot_on_failure", defaults.ScreenshotOnFailure)
	v.SetDefault("clear_state_level", defaults.ClearStateLevel)
	v.SetDefault("hook_order", defaults.HookOrder)
	v.SetDefault("capture.driver", defaults.Capture.Driver)
	v.SetDefault("capture.debugger_url", defaults.Capture.DebuggerURL)
	v.SetDefault("capture.timeout", defaults.Capture.Timeout)
	v.SetDefault("log_level", defaults.LogLevel)
	v.SetDefault("trace_file", defaults.TraceFile)
	v.SetDefault("project_root", defaults.ProjectRoot)
	v.SetDefault("watch", defaults.Watch)

	v.SetEnvPrefix("STEPRUNNER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unprefixed names understood by existing orchestrators.
	for key, env := range map[string]string{
		"screenshot_on_failure": "SCREENSHOT_ON_FAILURE",
		"clear_state_level":     "GAUGE_CLEAR_STATE_LEVEL",
		"project_root":          "GAUGE_PROJECT_ROOT",
	} {
		if err := v.BindEnv(key, "STEPRUNNER_"+strings.ToUpper(key), env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.ClearStateLevel = strings.ToLower(strings.TrimSpace(cfg.ClearStateLevel))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks enumerated settings.
func (c *Config) Validate() error {
	switch c.ClearStateLevel {
	case ClearStateSuite, ClearStateSpec, ClearStateScenario:
	default:
		return fmt.Errorf("clear_state_level: unknown level %q", c.ClearStateLevel)
	}
	switch c.HookOrder {
	case "discovery", "untagged-first", "tagged-first":
	default:
		return fmt.Errorf("hook_order: unknown order %q", c.HookOrder)
	}
	switch c.Capture.Driver {
	case CaptureNone, CaptureRod:
	default:
		return fmt.Errorf("capture.driver: unknown driver %q", c.Capture.Driver)
	}
	if c.Capture.Driver == CaptureRod && c.Capture.DebuggerURL == "" {
		return fmt.Errorf("capture.debugger_url is required for the rod driver")
	}
	if c.Capture.Timeout < 0 {
		return fmt.Errorf("capture.timeout must not be negative")
	}
	return nil
}
