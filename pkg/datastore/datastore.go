// Package datastore provides the suite, spec and scenario key/value stores
// step code uses to share state between steps.
package datastore

import (
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Scope names one of the three stores.
type Scope string

const (
	ScopeSuite    Scope = "suite"
	ScopeSpec     Scope = "spec"
	ScopeScenario Scope = "scenario"
)

// Store is a concurrency-safe key/value map.
type Store struct {
	mu   sync.RWMutex
	data map[string]any
}

// New returns an empty store.
func New() *Store {
	return &Store{data: make(map[string]any)}
}

// Get returns the value stored under key.
func (s *Store) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok
}

// GetString returns the value under key when it is a string.
func (s *Store) GetString(key string) string {
	v, _ := s.Get(key)
	str, _ := v.(string)
	return str
}

// Put stores value under key, replacing any previous value.
func (s *Store) Put(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
}

// Keys returns the stored keys in sorted order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Clear removes every entry.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.data)
}

var (
	suite    = New()
	spec     = New()
	scenario = New()
)

// Suite returns the store that lives for the whole run.
func Suite() *Store { return suite }

// Spec returns the store cleared at the start of every spec.
func Spec() *Store { return spec }

// Scenario returns the store cleared at the start of every scenario.
func Scenario() *Store { return scenario }

// ParseScope normalises a scope name, so "Scenario" and " scenario " both
// name ScopeScenario. Unknown names pass through for For to reject.
func ParseScope(name string) Scope {
	return Scope(strings.ToLower(strings.TrimSpace(name)))
}

// For returns the store for scope. Scope names are case-insensitive.
func For(scope Scope) (*Store, error) {
	switch ParseScope(string(scope)) {
	case ScopeSuite:
		return suite, nil
	case ScopeSpec:
		return spec, nil
	case ScopeScenario:
		return scenario, nil
	}
	return nil, fmt.Errorf("unknown data store scope %q", scope)
}

// Initialize clears the store for scope.
func Initialize(scope Scope) error {
	s, err := For(scope)
	if err != nil {
		return err
	}
	s.Clear()
	return nil
}
