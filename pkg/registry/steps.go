// Package registry indexes discovered step and hook implementations and
// resolves step texts to them.
//
// Every mutation happens under a write lock and replaces whole index entries,
// so a concurrent resolution observes either the old or the updated registry.
package registry

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/ormasoftchile/steprunner/pkg/schema"
)

var (
	// ErrNotFound is returned when no implementation is registered for a step text.
	ErrNotFound = errors.New("step implementation not found")
	// ErrAmbiguous is returned when a step text has more than one implementation.
	ErrAmbiguous = errors.New("multiple step implementations found")
)

// StepEntry pairs a parsed step text with an implementation.
type StepEntry struct {
	StepText       string
	Implementation *schema.StepImplementation
}

// stepIndex keeps implementations per parsed text plus the insertion order of texts.
type stepIndex struct {
	steps map[string][]*schema.StepImplementation
	order []string
}

func newStepIndex() *stepIndex {
	return &stepIndex{steps: make(map[string][]*schema.StepImplementation)}
}

func (ix *stepIndex) add(stepText string, impl *schema.StepImplementation) {
	existing, ok := ix.steps[stepText]
	if !ok {
		ix.order = append(ix.order, stepText)
	}
	for _, e := range existing {
		if e.ID == impl.ID {
			return
		}
	}
	ix.steps[stepText] = append(existing, impl)
}

// StepRegistry maps parsed step texts to one or more implementations.
type StepRegistry struct {
	mu sync.RWMutex
	ix *stepIndex
}

// NewStepRegistry creates an empty registry.
func NewStepRegistry() *StepRegistry {
	return &StepRegistry{ix: newStepIndex()}
}

// AddStep appends impl under stepText. Adding the same implementation twice
// under one text is a no-op; distinct implementations accumulate.
func (r *StepRegistry) AddStep(stepText string, impl *schema.StepImplementation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ix.add(stepText, impl)
}

// Replace swaps the whole registry for the given entries in one step.
func (r *StepRegistry) Replace(entries []StepEntry) {
	ix := newStepIndex()
	for _, e := range entries {
		ix.add(e.StepText, e.Implementation)
	}
	r.mu.Lock()
	r.ix = ix
	r.mu.Unlock()
}

// ContainsStep reports whether any implementation is registered for stepText.
func (r *StepRegistry) ContainsStep(stepText string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.ix.steps[stepText]
	return ok
}

// HasMultipleImplementations reports whether stepText is ambiguous.
func (r *StepRegistry) HasMultipleImplementations(stepText string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ix.steps[stepText]) > 1
}

// ResolveStep returns the first-registered implementation for stepText.
func (r *StepRegistry) ResolveStep(stepText string) (*schema.StepImplementation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	impls := r.ix.steps[stepText]
	if len(impls) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, stepText)
	}
	return impls[0], nil
}

// Implementations returns every implementation registered for stepText.
func (r *StepRegistry) Implementations(stepText string) []*schema.StepImplementation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.ix.steps[stepText])
}

// ResolveID finds an implementation by its identifier.
func (r *StepRegistry) ResolveID(id string) (*schema.StepImplementation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, text := range r.ix.order {
		for _, impl := range r.ix.steps[text] {
			if impl.ID == id {
				return impl, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: id %s", ErrNotFound, id)
}

// RemoveBySource drops every implementation registered from sourcePath.
// Texts left without implementations disappear entirely.
func (r *StepRegistry) RemoveBySource(sourcePath string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	ix := newStepIndex()
	for _, text := range r.ix.order {
		for _, impl := range r.ix.steps[text] {
			if impl.Source == sourcePath {
				removed++
				continue
			}
			ix.add(text, impl)
		}
	}
	r.ix = ix
	return removed
}

// HasAlias reports whether the implementation behind stepText declares several texts.
func (r *StepRegistry) HasAlias(stepText string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	impls := r.ix.steps[stepText]
	return len(impls) > 0 && impls[0].HasAlias()
}

// StepText returns the original text registered under the parsed stepText, or "".
func (r *StepRegistry) StepText(stepText string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	impls := r.ix.steps[stepText]
	if len(impls) == 0 {
		return ""
	}
	return impls[0].TextFor(stepText)
}

// AllStepTexts returns the original text of every registered implementation,
// in registration order.
func (r *StepRegistry) AllStepTexts() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var texts []string
	for _, text := range r.ix.order {
		for _, impl := range r.ix.steps[text] {
			if original := impl.TextFor(text); original != "" {
				texts = append(texts, original)
			} else {
				texts = append(texts, text)
			}
		}
	}
	return texts
}

// AllSteps returns the parsed step texts in registration order.
func (r *StepRegistry) AllSteps() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.ix.order)
}

// Entries returns a snapshot of every (text, implementation) pair.
func (r *StepRegistry) Entries() []StepEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var entries []StepEntry
	for _, text := range r.ix.order {
		for _, impl := range r.ix.steps[text] {
			entries = append(entries, StepEntry{StepText: text, Implementation: impl})
		}
	}
	return entries
}

// Len returns the number of distinct parsed step texts.
func (r *StepRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ix.order)
}

// Clear resets the registry to empty.
func (r *StepRegistry) Clear() {
	r.mu.Lock()
	r.ix = newStepIndex()
	r.mu.Unlock()
}
