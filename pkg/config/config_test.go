package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SCREENSHOT_ON_FAILURE", "")
	os.Unsetenv("SCREENSHOT_ON_FAILURE")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.ScreenshotOnFailure {
		t.Error("ScreenshotOnFailure = false, want true")
	}
	if cfg.ClearStateLevel != ClearStateScenario {
		t.Errorf("ClearStateLevel = %q, want scenario", cfg.ClearStateLevel)
	}
	if cfg.Capture.Timeout != 5*time.Second {
		t.Errorf("Capture.Timeout = %v, want 5s", cfg.Capture.Timeout)
	}
	if cfg.Capture.Driver != CaptureNone {
		t.Errorf("Capture.Driver = %q, want none", cfg.Capture.Driver)
	}
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("SCREENSHOT_ON_FAILURE", "false")
	t.Setenv("GAUGE_CLEAR_STATE_LEVEL", "Spec")
	t.Setenv("GAUGE_PROJECT_ROOT", "/tmp/project")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ScreenshotOnFailure {
		t.Error("ScreenshotOnFailure = true, want false")
	}
	if cfg.ClearStateLevel != ClearStateSpec {
		t.Errorf("ClearStateLevel = %q, want spec", cfg.ClearStateLevel)
	}
	if cfg.ProjectRoot != "/tmp/project" {
		t.Errorf("ProjectRoot = %q", cfg.ProjectRoot)
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "steprunner.yaml")
	data := "hook_order: tagged-first\ncapture:\n  driver: rod\n  debugger_url: ws://127.0.0.1:9222\n  timeout: 2s\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HookOrder != "tagged-first" {
		t.Errorf("HookOrder = %q", cfg.HookOrder)
	}
	if cfg.Capture.Driver != CaptureRod || cfg.Capture.DebuggerURL != "ws://127.0.0.1:9222" {
		t.Errorf("Capture = %+v", cfg.Capture)
	}
	if cfg.Capture.Timeout != 2*time.Second {
		t.Errorf("Capture.Timeout = %v, want 2s", cfg.Capture.Timeout)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad level", func(c *Config) { c.ClearStateLevel = "step" }},
		{"bad order", func(c *Config) { c.HookOrder = "random" }},
		{"bad driver", func(c *Config) { c.Capture.Driver = "selenium" }},
		{"rod without url", func(c *Config) { c.Capture.Driver = CaptureRod }},
		{"negative timeout", func(c *Config) { c.Capture.Timeout = -time.Second }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("defaults invalid: %v", err)
	}
}
