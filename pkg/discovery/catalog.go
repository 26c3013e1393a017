// Package discovery collects step, hook, scope and capture registrations
// made by step packages and hands them to the runner as plain scan results.
//
// Step packages register from init functions:
//
//	func init() {
//		discovery.Scope(NewBrowser)
//		discovery.Step("Open <url>", (*Browser).Open)
//		discovery.AfterScenario(closeTabs, discovery.Tags("ui"))
//	}
package discovery

import (
	"fmt"
	"reflect"
	"runtime"
	"strings"
	"sync"

	"github.com/ormasoftchile/steprunner/pkg/capture"
	"github.com/ormasoftchile/steprunner/pkg/registry"
	"github.com/ormasoftchile/steprunner/pkg/sandbox"
	"github.com/ormasoftchile/steprunner/pkg/schema"
)

// Scanner is the discovery surface the runner consumes.
type Scanner interface {
	ScanForSteps() []registry.StepEntry
	ScanForHooks() []*schema.HookHandle
	// ScanForCaptureCapability returns nil when no capture was registered.
	ScanForCaptureCapability() capture.Capturer
	ScanForScopes() map[string]sandbox.Factory
}

type site struct {
	file string
	line int
}

type stepRegistration struct {
	texts             []string
	fn                any
	continueOnFailure bool
	at                site
}

type hookRegistration struct {
	kind        schema.HookKind
	fn          any
	tags        []string
	aggregation schema.TagAggregation
	expression  string
	at          site
}

// Catalog records registrations. The zero value is not usable; use NewCatalog.
type Catalog struct {
	mu       sync.Mutex
	steps    []stepRegistration
	hooks    []hookRegistration
	scopes   map[string]sandbox.Factory
	capturer capture.Capturer
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{scopes: make(map[string]sandbox.Factory)}
}

// Default is the catalog used by the package-level registration functions.
var Default = NewCatalog()

// StepOption customizes a step registration.
type StepOption func(*stepRegistration)

// Alias registers additional texts for the same implementation.
func Alias(texts ...string) StepOption {
	return func(r *stepRegistration) { r.texts = append(r.texts, texts...) }
}

// ContinueOnFailure marks the step recoverable: a failure does not abort the scenario.
func ContinueOnFailure() StepOption {
	return func(r *stepRegistration) { r.continueOnFailure = true }
}

// HookOption customizes a hook registration.
type HookOption func(*hookRegistration)

// Tags restricts the hook to contexts carrying every tag.
func Tags(tags ...string) HookOption {
	return func(r *hookRegistration) {
		r.tags = append(r.tags, tags...)
		r.aggregation = schema.AggregateAnd
	}
}

// AnyTag restricts the hook to contexts carrying at least one tag.
func AnyTag(tags ...string) HookOption {
	return func(r *hookRegistration) {
		r.tags = append(r.tags, tags...)
		r.aggregation = schema.AggregateOr
	}
}

// When adds a boolean tag expression such as `"smoke" in tags`.
func When(expression string) HookOption {
	return func(r *hookRegistration) { r.expression = expression }
}

// Step registers fn under text. fn's parameters are the step arguments,
// optionally preceded by a registered scope type that receives the instance.
func (c *Catalog) Step(text string, fn any, opts ...StepOption) {
	c.step(2, text, fn, opts)
}

func (c *Catalog) step(skip int, text string, fn any, opts []StepOption) {
	mustFunc("step "+text, fn)
	r := stepRegistration{texts: []string{text}, fn: fn, at: caller(skip + 1)}
	for _, opt := range opts {
		opt(&r)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.steps = append(c.steps, r)
}

// Hook registers fn for kind. fn takes no arguments or a single
// schema.HookContext, optionally preceded by a registered scope type.
func (c *Catalog) Hook(kind schema.HookKind, fn any, opts ...HookOption) {
	c.hook(2, kind, fn, opts)
}

func (c *Catalog) hook(skip int, kind schema.HookKind, fn any, opts []HookOption) {
	mustFunc("hook "+string(kind), fn)
	r := hookRegistration{kind: kind, fn: fn, at: caller(skip + 1)}
	for _, opt := range opts {
		opt(&r)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hooks = append(c.hooks, r)
}

// Scope registers a factory func() T. Steps and hooks whose first parameter
// is T receive the instance cached for the current execution scope.
func (c *Catalog) Scope(factory any) {
	v := reflect.ValueOf(factory)
	t := v.Type()
	if t.Kind() != reflect.Func || t.NumIn() != 0 || t.NumOut() != 1 {
		panic(fmt.Sprintf("discovery: scope factory must be func() T, got %s", t))
	}
	name := t.Out(0).String()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scopes[name] = func() any { return v.Call(nil)[0].Interface() }
}

// Capture installs the screenshot capability used on failures.
func (c *Catalog) Capture(capturer capture.Capturer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.capturer = capturer
}

// ScanForSteps builds one implementation per registration and returns an
// entry for every text it declares.
func (c *Catalog) ScanForSteps() []registry.StepEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	seen := make(map[string]bool)
	var entries []registry.StepEntry
	for _, r := range c.steps {
		t := reflect.TypeOf(r.fn)
		scope := c.scopeOf(t)
		params := t.NumIn()
		if scope != "" {
			params--
		}
		fnName, fnFile, fnLine := funcInfo(r.fn)

		id := fnName + strings.TrimPrefix(t.String(), "func")
		if seen[id] {
			id = fmt.Sprintf("%s@%s:%d", id, r.at.file, r.at.line)
		}
		seen[id] = true

		impl := &schema.StepImplementation{
			ID:                id,
			Scope:             scope,
			Aliases:           append([]string(nil), r.texts...),
			ParameterCount:    params,
			ContinueOnFailure: r.continueOnFailure,
			Source:            r.at.file,
			Line:              r.at.line,
			FuncName:          shortName(fnName),
			FuncSource:        fnFile,
			FuncLine:          fnLine,
			Fn:                r.fn,
		}
		for _, text := range r.texts {
			parsed, _ := schema.ParseStepText(text)
			entries = append(entries, registry.StepEntry{StepText: parsed, Implementation: impl})
		}
	}
	return entries
}

// ScanForHooks returns every hook in registration order.
func (c *Catalog) ScanForHooks() []*schema.HookHandle {
	c.mu.Lock()
	defer c.mu.Unlock()
	handles := make([]*schema.HookHandle, 0, len(c.hooks))
	for i, r := range c.hooks {
		name, _, _ := funcInfo(r.fn)
		handles = append(handles, &schema.HookHandle{
			ID:          fmt.Sprintf("%s#%d", name, i),
			Kind:        r.kind,
			FilterTags:  append([]string(nil), r.tags...),
			Aggregation: r.aggregation,
			Expression:  r.expression,
			Scope:       c.scopeOf(reflect.TypeOf(r.fn)),
			Source:      r.at.file,
			Line:        r.at.line,
			Fn:          r.fn,
		})
	}
	return handles
}

// ScanForCaptureCapability returns the registered capturer, or nil.
func (c *Catalog) ScanForCaptureCapability() capture.Capturer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capturer
}

// ScanForScopes returns a copy of the registered scope factories.
func (c *Catalog) ScanForScopes() map[string]sandbox.Factory {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]sandbox.Factory, len(c.scopes))
	for k, f := range c.scopes {
		out[k] = f
	}
	return out
}

// scopeOf returns the scope name when fn's first parameter is a registered
// scope type. Callers hold c.mu.
func (c *Catalog) scopeOf(t reflect.Type) string {
	if t.NumIn() == 0 {
		return ""
	}
	name := t.In(0).String()
	if _, ok := c.scopes[name]; ok {
		return name
	}
	return ""
}

func mustFunc(what string, fn any) {
	if fn == nil || reflect.TypeOf(fn).Kind() != reflect.Func {
		panic(fmt.Sprintf("discovery: %s: expected a function, got %T", what, fn))
	}
}

func caller(skip int) site {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return site{}
	}
	return site{file: file, line: line}
}

func funcInfo(fn any) (name, file string, line int) {
	f := runtime.FuncForPC(reflect.ValueOf(fn).Pointer())
	if f == nil {
		return fmt.Sprintf("%T", fn), "", 0
	}
	file, line = f.FileLine(f.Entry())
	return f.Name(), file, line
}

// shortName strips the package path and receiver: "x/steps.(*B).Open" → "Open".
func shortName(full string) string {
	name := full[strings.LastIndex(full, "/")+1:]
	name = name[strings.LastIndex(name, ".")+1:]
	return strings.TrimSuffix(name, "-fm")
}

// Step registers a step in the Default catalog.
func Step(text string, fn any, opts ...StepOption) { Default.step(2, text, fn, opts) }

// Hook registers a hook in the Default catalog.
func Hook(kind schema.HookKind, fn any, opts ...HookOption) { Default.hook(2, kind, fn, opts) }

// Scope registers a scope factory in the Default catalog.
func Scope(factory any) { Default.Scope(factory) }

// Capture installs the capture capability of the Default catalog.
func Capture(c capture.Capturer) { Default.Capture(c) }

func BeforeSuite(fn any, opts ...HookOption)    { Default.hook(2, schema.BeforeSuite, fn, opts) }
func BeforeSpec(fn any, opts ...HookOption)     { Default.hook(2, schema.BeforeSpec, fn, opts) }
func BeforeScenario(fn any, opts ...HookOption) { Default.hook(2, schema.BeforeScenario, fn, opts) }
func BeforeStep(fn any, opts ...HookOption)     { Default.hook(2, schema.BeforeStep, fn, opts) }
func AfterStep(fn any, opts ...HookOption)      { Default.hook(2, schema.AfterStep, fn, opts) }
func AfterScenario(fn any, opts ...HookOption)  { Default.hook(2, schema.AfterScenario, fn, opts) }
func AfterSpec(fn any, opts ...HookOption)      { Default.hook(2, schema.AfterSpec, fn, opts) }
func AfterSuite(fn any, opts ...HookOption)     { Default.hook(2, schema.AfterSuite, fn, opts) }
