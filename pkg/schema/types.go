// Package schema defines the runner's data model: step implementations, hook
// handles, execution results, and the request/response envelopes exchanged
// with the orchestrator.
package schema

import (
	"fmt"
	"strings"
)

// HookKind is one of the eight lifecycle points a hook can bind to.
type HookKind string

const (
	BeforeSuite    HookKind = "before_suite"
	BeforeSpec     HookKind = "before_spec"
	BeforeScenario HookKind = "before_scenario"
	BeforeStep     HookKind = "before_step"
	AfterStep      HookKind = "after_step"
	AfterScenario  HookKind = "after_scenario"
	AfterSpec      HookKind = "after_spec"
	AfterSuite     HookKind = "after_suite"
)

// HookKinds lists every hook kind in lifecycle order.
var HookKinds = []HookKind{
	BeforeSuite, BeforeSpec, BeforeScenario, BeforeStep,
	AfterStep, AfterScenario, AfterSpec, AfterSuite,
}

// ParseHookKind accepts both the wire form ("before_scenario") and the
// camel-case form ("BeforeScenario").
func ParseHookKind(s string) (HookKind, error) {
	normalized := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "-", "_"))
	for _, k := range HookKinds {
		if normalized == string(k) || normalized == strings.ReplaceAll(string(k), "_", "") {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown hook kind %q", s)
}

// IsBefore reports whether the hook runs before its lifecycle point.
func (k HookKind) IsBefore() bool {
	return strings.HasPrefix(string(k), "before_")
}

// Level returns the lifecycle level of the hook: suite, spec, scenario or step.
func (k HookKind) Level() string {
	_, level, _ := strings.Cut(string(k), "_")
	return level
}

// TagAggregation controls how a hook's filter tags are combined.
type TagAggregation string

const (
	AggregateAnd TagAggregation = "and"
	AggregateOr  TagAggregation = "or"
)

// StepImplementation is a discovered, callable step. It is immutable once
// created; the same implementation is shared by every alias it declares.
type StepImplementation struct {
	// ID is derived from the declaring scope and the function signature.
	ID string
	// Scope names the type whose instance is passed as the receiver; empty for
	// free functions.
	Scope string
	// Aliases holds every original step text the implementation declares.
	Aliases []string
	// ParameterCount excludes the receiver.
	ParameterCount    int
	ContinueOnFailure bool
	// Source and Line locate the registration call.
	Source string
	Line   int
	// FuncName is the bare Go name of the function ("Login" for "(*Auth).Login").
	FuncName string
	// FuncSource and FuncLine locate the function declaration.
	FuncSource string
	FuncLine   int
	Fn         any
}

// HasAlias reports whether the implementation is registered under more than one text.
func (s *StepImplementation) HasAlias() bool {
	return len(s.Aliases) > 1
}

// TextFor returns the original alias whose parsed form equals parsed, or "".
func (s *StepImplementation) TextFor(parsed string) string {
	for _, alias := range s.Aliases {
		if p, _ := ParseStepText(alias); p == parsed {
			return alias
		}
	}
	return ""
}

// HookHandle is a discovered lifecycle hook.
type HookHandle struct {
	ID         string
	Kind       HookKind
	FilterTags []string
	// Aggregation defaults to AND when empty.
	Aggregation TagAggregation
	// Expression is an optional boolean expression over the active tags.
	Expression string
	Scope      string
	Source     string
	Line       int
	Fn         any
}

// AggregationMode returns the effective aggregation, AND when unspecified.
func (h *HookHandle) AggregationMode() TagAggregation {
	if h.Aggregation == AggregateOr {
		return AggregateOr
	}
	return AggregateAnd
}

// IsTagged reports whether the hook carries any filter at all.
func (h *HookHandle) IsTagged() bool {
	return len(h.FilterTags) > 0 || h.Expression != ""
}

// HookContext is passed to hooks that declare a single parameter of this type.
type HookContext struct {
	Kind HookKind
	Tags []string
}

// ExecutionResult is the outcome of one invocation. Recoverable is only
// meaningful when Success is false.
type ExecutionResult struct {
	Success       bool   `json:"success"`
	ErrorMessage  string `json:"errorMessage,omitempty"`
	StackTrace    string `json:"stackTrace,omitempty"`
	Source        string `json:"source,omitempty"`
	Recoverable   bool   `json:"recoverable"`
	Screenshot    []byte `json:"screenshot,omitempty"`
	ElapsedTimeMs int64  `json:"elapsedTimeMs"`
}

// Failure builds a non-recoverable failed result that never reached the sandbox.
func Failure(message string) *ExecutionResult {
	return &ExecutionResult{
		Success:      false,
		Recoverable:  false,
		ErrorMessage: message,
	}
}

// Table is a deserialized tabular step argument.
type Table struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// Column returns the values of the named column, or nil when absent.
func (t Table) Column(name string) []string {
	idx := -1
	for i, h := range t.Headers {
		if h == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	values := make([]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		if idx < len(row) {
			values = append(values, row[idx])
		} else {
			values = append(values, "")
		}
	}
	return values
}
