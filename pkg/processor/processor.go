// Package processor turns orchestrator requests into registry lookups and
// sandbox invocations, and wraps every outcome into a response.
package processor

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/charmbracelet/log"

	"github.com/ormasoftchile/steprunner/pkg/logging"
	"github.com/ormasoftchile/steprunner/pkg/registry"
	"github.com/ormasoftchile/steprunner/pkg/schema"
	"github.com/ormasoftchile/steprunner/pkg/strategy"
	"github.com/ormasoftchile/steprunner/pkg/trace"
)

// ErrArgumentMismatch is reported when the supplied argument count differs
// from the implementation's declared parameter count.
var ErrArgumentMismatch = errors.New("argument length mismatch")

// Executor runs resolved implementations.
type Executor interface {
	ExecuteStep(ctx context.Context, impl *schema.StepImplementation, args []any) *schema.ExecutionResult
	ExecuteHooks(ctx context.Context, kind schema.HookKind, strat strategy.Strategy, tags []string) *schema.ExecutionResult
	StartScope(tag string)
	CloseScope()
	ClearCache()
}

// Reloader re-runs discovery and swaps the registries atomically.
type Reloader interface {
	Reload() error
}

// SourceTracker is implemented by reloaders that can keep a deleted source
// out of later reloads.
type SourceTracker interface {
	ForgetSource(path string)
	RestoreSource(path string)
}

// Options configures a Processor.
type Options struct {
	Strategy strategy.Strategy
	// ClearStateLevel is the lifecycle level ("suite", "spec", "scenario")
	// whose before-hook clears cached instances.
	ClearStateLevel string
	// ProjectRoot resolves relative paths in cache file requests.
	ProjectRoot string
	Reloader    Reloader
	Trace       *trace.Writer
	Logger      *log.Logger
}

// Processor handles one request at a time.
type Processor struct {
	steps *registry.StepRegistry
	hooks *registry.HookRegistry
	exec  Executor
	opts  Options
	log   *log.Logger

	killed atomic.Bool
}

// New creates a processor. hooks may be nil when source invalidation does
// not need to drop hooks.
func New(steps *registry.StepRegistry, hooks *registry.HookRegistry, exec Executor, opts Options) *Processor {
	if opts.Strategy == nil {
		opts.Strategy = strategy.Ordered{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Processor{steps: steps, hooks: hooks, exec: exec, opts: opts, log: logger}
}

// Killed reports whether a kill request has been processed.
func (p *Processor) Killed() bool { return p.killed.Load() }

// Process handles req and always returns a response.
func (p *Processor) Process(ctx context.Context, req *schema.Request) *schema.Response {
	resp := &schema.Response{ID: req.ID, Kind: req.Kind}
	_ = p.opts.Trace.EmitRequestStart(req.ID, string(req.Kind))

	switch req.Kind {
	case schema.KindStepExecution:
		if req.StepExecution == nil {
			return missingPayload(resp)
		}
		resp.ExecutionResult = p.ExecuteStep(ctx, req.StepExecution)
	case schema.KindHookExecution:
		if req.HookExecution == nil {
			return missingPayload(resp)
		}
		resp.ExecutionResult = p.ExecuteHooks(ctx, req.HookExecution)
	case schema.KindStepValidate:
		if req.StepValidate == nil {
			return missingPayload(resp)
		}
		resp.StepValidate = p.Validate(req.StepValidate)
	case schema.KindStepNames:
		resp.StepNames = p.steps.AllStepTexts()
	case schema.KindStepPositions:
		path := ""
		if req.StepPositions != nil {
			path = req.StepPositions.Path
		}
		resp.StepPositions = p.StepPositions(path)
	case schema.KindRefactor:
		if req.Refactor == nil {
			return missingPayload(resp)
		}
		resp.Refactor = p.Refactor(req.Refactor)
	case schema.KindCacheFile:
		if req.CacheFile == nil {
			return missingPayload(resp)
		}
		if err := p.CacheFile(req.CacheFile); err != nil {
			resp.Error = err.Error()
		}
	case schema.KindDataStoreInit:
		if req.DataStoreInit == nil {
			return missingPayload(resp)
		}
		if err := p.InitDataStore(req.DataStoreInit.Scope); err != nil {
			resp.Error = err.Error()
		}
	case schema.KindScopeStart:
		tag := ""
		if req.ScopeStart != nil {
			tag = req.ScopeStart.Tag
		}
		p.StartScope(tag)
	case schema.KindScopeClose:
		p.CloseScope()
	case schema.KindKill:
		p.killed.Store(true)
		p.log.Info("kill requested")
	default:
		resp.Error = fmt.Sprintf("unknown request kind %q", req.Kind)
	}
	return resp
}

func missingPayload(resp *schema.Response) *schema.Response {
	resp.Error = fmt.Sprintf("request of kind %q has no payload", resp.Kind)
	return resp
}
