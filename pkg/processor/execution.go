package processor

import (
	"context"
	"fmt"
	"time"

	"github.com/ormasoftchile/steprunner/pkg/schema"
	"github.com/ormasoftchile/steprunner/pkg/trace"
)

// ExecuteStep resolves and runs one step. Lookup and arity failures never
// reach the executor and are never recoverable.
func (p *Processor) ExecuteStep(ctx context.Context, r *schema.StepExecutionRequest) *schema.ExecutionResult {
	stepText, args, err := stepArguments(r)
	if err != nil {
		return schema.Failure(err.Error())
	}
	display := r.ActualStepText
	if display == "" {
		display = stepText
	}

	if !p.steps.ContainsStep(stepText) {
		return p.stepFailed(stepText, schema.Failure("Step Implementation not found: "+display))
	}
	if p.steps.HasMultipleImplementations(stepText) {
		return p.stepFailed(stepText, schema.Failure("Multiple step implementations found for: "+display))
	}
	impl, err := p.steps.ResolveStep(stepText)
	if err != nil {
		return p.stepFailed(stepText, schema.Failure(err.Error()))
	}
	if len(args) != impl.ParameterCount {
		msg := fmt.Sprintf("Argument length mismatch for %s. Actual Count: %d, Expected Count: %d",
			display, len(args), impl.ParameterCount)
		return p.stepFailed(stepText, schema.Failure(msg))
	}

	result := p.exec.ExecuteStep(ctx, impl, args)
	_ = p.opts.Trace.EmitStepComplete(stepText, result.Success, result.Recoverable,
		time.Duration(result.ElapsedTimeMs)*time.Millisecond, result.ErrorMessage)
	return result
}

func (p *Processor) stepFailed(stepText string, result *schema.ExecutionResult) *schema.ExecutionResult {
	p.log.Debug("step rejected", "step", stepText, "reason", result.ErrorMessage)
	_ = p.opts.Trace.EmitStepComplete(stepText, false, false, 0, result.ErrorMessage)
	return result
}

// stepArguments returns the parsed step text and the raw argument values.
// Table arguments are passed as decoded tables when available.
func stepArguments(r *schema.StepExecutionRequest) (string, []any, error) {
	stepText := r.StepText
	var parsedArgs []string
	if r.ActualStepText != "" && (stepText == "" || len(r.Arguments) == 0) {
		parsed, values, err := schema.ParseActualStep(r.ActualStepText)
		if err != nil {
			return "", nil, err
		}
		if stepText == "" {
			stepText = parsed
		}
		parsedArgs = values
	}

	if len(r.Arguments) == 0 {
		args := make([]any, len(parsedArgs))
		for i, v := range parsedArgs {
			args[i] = v
		}
		return stepText, args, nil
	}

	args := make([]any, 0, len(r.Arguments))
	for i, a := range r.Arguments {
		switch a.Kind {
		case schema.ArgumentTable:
			if a.Table != nil {
				args = append(args, *a.Table)
			} else {
				args = append(args, a.Value)
			}
		case schema.ArgumentPlain, "":
			args = append(args, a.Value)
		default:
			return "", nil, fmt.Errorf("argument %d has unknown kind %q", i, a.Kind)
		}
	}
	return stepText, args, nil
}

// ExecuteHooks runs the applicable hooks of the requested kind. A before-hook
// at the configured clear-state level first drops cached instances.
func (p *Processor) ExecuteHooks(ctx context.Context, r *schema.HookExecutionRequest) *schema.ExecutionResult {
	kind, err := schema.ParseHookKind(string(r.HookKind))
	if err != nil {
		return schema.Failure(err.Error())
	}
	if kind.IsBefore() && kind.Level() == p.opts.ClearStateLevel {
		p.exec.ClearCache()
		_ = p.opts.Trace.Emit(trace.EventCacheCleared, map[string]any{"hook_kind": string(kind)})
	}

	result := p.exec.ExecuteHooks(ctx, kind, p.opts.Strategy, r.ActiveTags)
	_ = p.opts.Trace.EmitHookComplete(string(kind), r.ActiveTags, result.Success,
		time.Duration(result.ElapsedTimeMs)*time.Millisecond, result.ErrorMessage)
	return result
}
