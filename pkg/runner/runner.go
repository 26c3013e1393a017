// Package runner assembles the registries, sandbox, processor and discovery
// loader from a Config.
package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/ormasoftchile/steprunner/pkg/capture"
	"github.com/ormasoftchile/steprunner/pkg/config"
	"github.com/ormasoftchile/steprunner/pkg/discovery"
	"github.com/ormasoftchile/steprunner/pkg/logging"
	"github.com/ormasoftchile/steprunner/pkg/processor"
	"github.com/ormasoftchile/steprunner/pkg/registry"
	"github.com/ormasoftchile/steprunner/pkg/sandbox"
	"github.com/ormasoftchile/steprunner/pkg/schema"
	"github.com/ormasoftchile/steprunner/pkg/strategy"
	"github.com/ormasoftchile/steprunner/pkg/trace"
	"github.com/ormasoftchile/steprunner/pkg/watch"
)

// Runner owns one wired-up execution core.
type Runner struct {
	Config    *config.Config
	Steps     *registry.StepRegistry
	Hooks     *registry.HookRegistry
	Sandbox   *sandbox.Sandbox
	Processor *processor.Processor
	Loader    *discovery.Loader
	Trace     *trace.Writer

	log *log.Logger
	// mu serialises requests with watch-driven reloads.
	mu sync.Mutex
}

// New builds a runner and performs the initial discovery.
func New(cfg *config.Config, scanner discovery.Scanner, logger *log.Logger) (*Runner, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = logging.Discard()
	}

	strat, err := strategy.New(cfg.HookOrder)
	if err != nil {
		return nil, err
	}

	var tw *trace.Writer
	if cfg.TraceFile != "" {
		tw, err = trace.NewFileWriter(cfg.TraceFile, trace.NewRunID())
		if err != nil {
			return nil, err
		}
	}

	steps := registry.NewStepRegistry()
	hooks := registry.NewHookRegistry()
	instances := sandbox.NewInstanceManager()
	sb := sandbox.New(hooks, instances, configuredCapturer(cfg), sandbox.Options{
		ScreenshotOnFailure: cfg.ScreenshotOnFailure,
		CaptureTimeout:      cfg.Capture.Timeout,
		Logger:              logger.WithPrefix("sandbox"),
	})

	loader := &discovery.Loader{
		Scanner:   scanner,
		Steps:     steps,
		Hooks:     hooks,
		Instances: instances,
		Capture:   sb,
		Logger:    logger.WithPrefix("discovery"),
	}

	proc := processor.New(steps, hooks, sb, processor.Options{
		Strategy:        strat,
		ClearStateLevel: cfg.ClearStateLevel,
		ProjectRoot:     cfg.ProjectRoot,
		Reloader:        loader,
		Trace:           tw,
		Logger:          logger.WithPrefix("processor"),
	})

	r := &Runner{
		Config:    cfg,
		Steps:     steps,
		Hooks:     hooks,
		Sandbox:   sb,
		Processor: proc,
		Loader:    loader,
		Trace:     tw,
		log:       logger,
	}
	if err := loader.Reload(); err != nil {
		_ = tw.Close()
		return nil, fmt.Errorf("initial discovery: %w", err)
	}
	_ = tw.Emit(trace.EventRunStart, map[string]any{
		"steps":       steps.Len(),
		"hooks":       hooks.Len(),
		"hook_order":  cfg.HookOrder,
		"clear_state": cfg.ClearStateLevel,
	})
	return r, nil
}

// configuredCapturer returns the capturer selected by the capture driver.
// A capturer registered through discovery replaces it on load.
func configuredCapturer(cfg *config.Config) capture.Capturer {
	if cfg.Capture.Driver == config.CaptureRod {
		return capture.NewRod(cfg.Capture.DebuggerURL)
	}
	return nil
}

// Process implements the transport and console handler contract. Requests
// are handled one at a time.
func (r *Runner) Process(ctx context.Context, req *schema.Request) *schema.Response {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Processor.Process(ctx, req)
}

// Killed reports whether a kill request has been processed.
func (r *Runner) Killed() bool { return r.Processor.Killed() }

// Watch forwards source changes under the project root to the processor
// until ctx is cancelled.
func (r *Runner) Watch(ctx context.Context) error {
	w, err := watch.New(watch.Config{
		BaseDir: r.Config.ProjectRoot,
		Logger:  r.log.WithPrefix("watch"),
		OnChange: func(_ context.Context, changes []watch.Change) error {
			r.mu.Lock()
			defer r.mu.Unlock()
			var errs []error
			for _, c := range changes {
				r.log.Debug("source changed", "path", c.Path, "status", c.Status)
				if err := r.Processor.CacheFile(&schema.CacheFileRequest{Path: c.Path, Status: c.Status}); err != nil {
					errs = append(errs, err)
				}
			}
			return errors.Join(errs...)
		},
	})
	if err != nil {
		return err
	}
	return w.Run(ctx)
}

// Close flushes the trace.
func (r *Runner) Close() error {
	_ = r.Trace.Emit(trace.EventRunComplete, map[string]any{"killed": r.Killed()})
	return r.Trace.Close()
}
