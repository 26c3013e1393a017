// Package sandbox invokes step and hook implementations in isolation and
// converts every failure into an execution result.
//
// User code never crashes the runner: panics are recovered at the call
// boundary, returned errors are rendered, and the optional screenshot is
// taken through a pluggable capture capability whose own failures are
// swallowed.
package sandbox

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ormasoftchile/steprunner/pkg/capture"
	"github.com/ormasoftchile/steprunner/pkg/logging"
	"github.com/ormasoftchile/steprunner/pkg/schema"
	"github.com/ormasoftchile/steprunner/pkg/strategy"
)

// HookSource lists the hooks registered for a kind, in discovery order.
type HookSource interface {
	Hooks(kind schema.HookKind) []*schema.HookHandle
}

// Options configures a Sandbox.
type Options struct {
	// ScreenshotOnFailure attaches a capture to failed results.
	ScreenshotOnFailure bool
	// CaptureTimeout bounds each capture; zero means unbounded.
	CaptureTimeout time.Duration
	Logger         *log.Logger
}

// Sandbox executes resolved implementations.
type Sandbox struct {
	hooks     HookSource
	instances *InstanceManager
	opts      Options
	log       *log.Logger

	mu       sync.RWMutex
	capturer capture.Capturer
}

// New creates a sandbox. A nil capturer means no capture capability.
func New(hooks HookSource, instances *InstanceManager, capturer capture.Capturer, opts Options) *Sandbox {
	if instances == nil {
		instances = NewInstanceManager()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Sandbox{
		hooks:     hooks,
		instances: instances,
		opts:      opts,
		log:       logger,
		capturer:  capturer,
	}
}

// Instances returns the instance manager.
func (s *Sandbox) Instances() *InstanceManager { return s.instances }

// SetCapturer installs the capture capability found by a later scan.
func (s *Sandbox) SetCapturer(c capture.Capturer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.capturer = c
}

// ExecuteStep invokes impl with args. Recoverable on failure mirrors the
// implementation's continue-on-failure flag.
func (s *Sandbox) ExecuteStep(ctx context.Context, impl *schema.StepImplementation, args []any) *schema.ExecutionResult {
	result := &schema.ExecutionResult{Success: true}
	s.log.Debug("executing step", "id", impl.ID, "args", len(args))

	start := time.Now()
	receiver, err := s.instances.Get(impl.Scope)
	if err == nil {
		err = invoke(impl.Fn, receiver, args)
	}
	result.ElapsedTimeMs = time.Since(start).Milliseconds()

	if err != nil {
		var ie *InvocationError
		if errors.As(err, &ie) {
			ie.Recoverable = impl.ContinueOnFailure
		}
		s.log.Debug("step failed", "id", impl.ID, "error", err)
		applyFailure(result, err)
		result.Recoverable = impl.ContinueOnFailure
		s.attachScreenshot(ctx, result)
	}
	return result
}

// ExecuteHooks runs every hook of kind selected by strat for tags. A failing
// hook does not stop the ones after it; the returned result carries the
// last failure.
func (s *Sandbox) ExecuteHooks(ctx context.Context, kind schema.HookKind, strat strategy.Strategy, tags []string) *schema.ExecutionResult {
	result := &schema.ExecutionResult{Success: true}
	if strat == nil {
		strat = strategy.Ordered{}
	}
	var handles []*schema.HookHandle
	if s.hooks != nil {
		handles = strat.SelectApplicable(kind, tags, s.hooks.Hooks(kind))
	}
	hc := schema.HookContext{Kind: kind, Tags: tags}

	start := time.Now()
	for _, h := range handles {
		receiver, err := s.instances.Get(h.Scope)
		if err == nil {
			err = invoke(h.Fn, receiver, hookArgs(h.Fn, receiver != nil, hc))
		}
		if err != nil {
			s.log.Debug("hook failed", "hook", h.ID, "kind", kind, "error", err)
			applyFailure(result, err)
		}
	}
	result.ElapsedTimeMs = time.Since(start).Milliseconds()

	if !result.Success {
		s.attachScreenshot(ctx, result)
	}
	return result
}

// TryCapture runs the capture capability. It reports false when none is
// installed or the capture fails.
func (s *Sandbox) TryCapture(ctx context.Context) ([]byte, bool) {
	s.mu.RLock()
	c := s.capturer
	s.mu.RUnlock()
	if c == nil {
		c = capture.Noop{}
	}
	data, ok := capture.Try(ctx, capture.WithTimeout(c, s.opts.CaptureTimeout))
	if !ok {
		s.log.Debug("screenshot unavailable")
	}
	return data, ok
}

// StartScope opens a new instance scope.
func (s *Sandbox) StartScope(tag string) { s.instances.StartScope(tag) }

// CloseScope discards the innermost instance scope.
func (s *Sandbox) CloseScope() { s.instances.CloseScope() }

// ClearCache drops every cached instance.
func (s *Sandbox) ClearCache() { s.instances.ClearCache() }

func (s *Sandbox) attachScreenshot(ctx context.Context, result *schema.ExecutionResult) {
	if !s.opts.ScreenshotOnFailure {
		return
	}
	if data, ok := s.TryCapture(ctx); ok {
		result.Screenshot = data
	}
}

func applyFailure(result *schema.ExecutionResult, err error) {
	result.Success = false
	var ie *InvocationError
	if !errors.As(err, &ie) {
		result.ErrorMessage = err.Error()
		result.StackTrace = ""
		result.Source = ""
		return
	}
	result.ErrorMessage = ie.Message
	result.StackTrace = ie.StackTrace
	result.Source = ie.Source
}
