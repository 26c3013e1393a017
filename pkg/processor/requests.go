package processor

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ormasoftchile/steprunner/pkg/datastore"
	"github.com/ormasoftchile/steprunner/pkg/refactor"
	"github.com/ormasoftchile/steprunner/pkg/schema"
	"github.com/ormasoftchile/steprunner/pkg/trace"
)

// Validate reports whether a step text resolves to exactly one implementation.
func (p *Processor) Validate(r *schema.StepValidateRequest) *schema.StepValidateResponse {
	stepText := r.StepText
	if stepText == "" && r.ActualStepText != "" {
		parsed, _, err := schema.ParseActualStep(r.ActualStepText)
		if err != nil {
			return &schema.StepValidateResponse{ErrorType: schema.ValidationNotFound, Message: err.Error()}
		}
		stepText = parsed
	}
	switch {
	case !p.steps.ContainsStep(stepText):
		return &schema.StepValidateResponse{
			ErrorType:  schema.ValidationNotFound,
			Message:    "Step Implementation not found: " + stepText,
			Suggestion: Suggestion(stepText),
		}
	case p.steps.HasMultipleImplementations(stepText):
		return &schema.StepValidateResponse{
			ErrorType: schema.ValidationAmbiguous,
			Message:   "Multiple step implementations found for: " + stepText,
		}
	}
	return &schema.StepValidateResponse{Valid: true}
}

// Suggestion returns a Go registration stub for a parsed step text.
func Suggestion(stepText string) string {
	var text strings.Builder
	var params []string
	rest := stepText
	for {
		before, after, found := strings.Cut(rest, schema.Placeholder)
		text.WriteString(before)
		if !found {
			break
		}
		name := fmt.Sprintf("arg%d", len(params))
		params = append(params, name)
		text.WriteString("<" + name + ">")
		rest = after
	}
	signature := ""
	if len(params) > 0 {
		signature = strings.Join(params, ", ") + " string"
	}
	return fmt.Sprintf("discovery.Step(%q, func(%s) error {\n\treturn fmt.Errorf(\"not implemented\")\n})\n", text.String(), signature)
}

// StepPositions lists where steps are registered. An empty path lists every step.
func (p *Processor) StepPositions(path string) []schema.StepPosition {
	var positions []schema.StepPosition
	for _, e := range p.steps.Entries() {
		impl := e.Implementation
		if path != "" && impl.Source != p.resolvePath(path) {
			continue
		}
		text := impl.TextFor(e.StepText)
		if text == "" {
			text = e.StepText
		}
		positions = append(positions, schema.StepPosition{StepText: text, Source: impl.Source, Line: impl.Line})
	}
	return positions
}

// Refactor computes the edits for a step rename. Files are left untouched.
func (p *Processor) Refactor(r *schema.RefactorRequest) *schema.RefactorResponse {
	var (
		impl *schema.StepImplementation
		err  error
	)
	if r.ImplementationID != "" {
		impl, err = p.steps.ResolveID(r.ImplementationID)
	} else {
		parsed, _ := schema.ParseStepText(r.OldStepText)
		impl, err = p.steps.ResolveStep(parsed)
	}
	if err != nil {
		return &schema.RefactorResponse{Error: err.Error()}
	}
	edits, err := refactor.Compute(impl, r)
	if err != nil {
		return &schema.RefactorResponse{Error: fmt.Sprintf("refactor %s: %v", impl.ID, err)}
	}
	return &schema.RefactorResponse{Success: true, Edits: edits}
}

// CacheFile reacts to a source change: a deleted file drops everything it
// registered and stays dropped, any other change re-runs discovery.
func (p *Processor) CacheFile(r *schema.CacheFileRequest) error {
	path := p.resolvePath(r.Path)
	switch r.Status {
	case schema.FileDeleted:
		p.RemoveSource(path)
		return nil
	case schema.FileCreated, schema.FileChanged:
		if p.opts.Reloader == nil {
			return nil
		}
		if t, ok := p.opts.Reloader.(SourceTracker); ok {
			t.RestoreSource(path)
		}
		if err := p.opts.Reloader.Reload(); err != nil {
			return fmt.Errorf("reload after %s change: %w", path, err)
		}
		_ = p.opts.Trace.Emit(trace.EventRegistryReload, map[string]any{"path": path, "status": string(r.Status)})
		return nil
	default:
		return fmt.Errorf("unknown file status %q", r.Status)
	}
}

// RemoveSource drops every step and hook registered from path.
func (p *Processor) RemoveSource(path string) {
	if t, ok := p.opts.Reloader.(SourceTracker); ok {
		t.ForgetSource(path)
	}
	steps := p.steps.RemoveBySource(path)
	hooks := 0
	if p.hooks != nil {
		hooks = p.hooks.RemoveBySource(path)
	}
	p.log.Info("source removed", "path", path, "steps", steps, "hooks", hooks)
	_ = p.opts.Trace.Emit(trace.EventRegistryReload, map[string]any{"path": path, "removed_steps": steps, "removed_hooks": hooks})
}

// InitDataStore clears the suite, spec or scenario data store. The scope
// name is case-insensitive.
func (p *Processor) InitDataStore(scope string) error {
	return datastore.Initialize(datastore.ParseScope(scope))
}

// StartScope opens an instance scope.
func (p *Processor) StartScope(tag string) {
	p.exec.StartScope(tag)
	_ = p.opts.Trace.Emit(trace.EventScopeStart, map[string]any{"tag": tag})
}

// CloseScope closes the innermost instance scope.
func (p *Processor) CloseScope() {
	p.exec.CloseScope()
	_ = p.opts.Trace.Emit(trace.EventScopeClose, nil)
}

func (p *Processor) resolvePath(path string) string {
	if path == "" || filepath.IsAbs(path) || p.opts.ProjectRoot == "" {
		return filepath.Clean(path)
	}
	return filepath.Join(p.opts.ProjectRoot, path)
}
