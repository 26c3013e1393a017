package sandbox

import (
	"fmt"
	"reflect"
	"slices"
	"sync"
)

// Factory creates a fresh instance of a declaring scope.
type Factory func() any

type frame struct {
	tag       string
	instances map[string]any
}

// InstanceManager caches one instance per declaring scope inside the current
// execution scope. Scopes nest: StartScope pushes a fresh frame and
// CloseScope discards it, so no two scopes ever share an instance.
type InstanceManager struct {
	mu        sync.Mutex
	factories map[string]Factory
	frames    []*frame
}

// NewInstanceManager returns a manager with a single base scope.
func NewInstanceManager() *InstanceManager {
	return &InstanceManager{
		factories: make(map[string]Factory),
		frames:    []*frame{{tag: "suite", instances: make(map[string]any)}},
	}
}

// Register installs the factory for scope, replacing any previous one.
func (m *InstanceManager) Register(scope string, f Factory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.factories[scope] = f
}

// ReplaceFactories swaps every factory in one step. Cached instances survive
// when their factory is unchanged; the rest are evicted from every scope.
func (m *InstanceManager) ReplaceFactories(factories map[string]Factory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := make(map[string]Factory, len(factories))
	for k, f := range factories {
		next[k] = f
	}
	for _, fr := range m.frames {
		for scope := range fr.instances {
			if !sameFactory(m.factories[scope], next[scope]) {
				delete(fr.instances, scope)
			}
		}
	}
	m.factories = next
}

func sameFactory(a, b Factory) bool {
	if a == nil || b == nil {
		return false
	}
	return reflect.ValueOf(a).Pointer() == reflect.ValueOf(b).Pointer()
}

// Scopes returns the registered scope names, sorted.
func (m *InstanceManager) Scopes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.factories))
	for k := range m.factories {
		names = append(names, k)
	}
	slices.Sort(names)
	return names
}

// Get returns the instance for scope in the current frame, creating it on
// first use. An empty scope returns nil.
func (m *InstanceManager) Get(scope string) (any, error) {
	if scope == "" {
		return nil, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	top := m.frames[len(m.frames)-1]
	if inst, ok := top.instances[scope]; ok {
		return inst, nil
	}
	f, ok := m.factories[scope]
	if !ok {
		return nil, fmt.Errorf("could not load instance type %s", scope)
	}
	inst := f()
	if inst == nil {
		return nil, fmt.Errorf("factory for %s returned nil", scope)
	}
	top.instances[scope] = inst
	return inst, nil
}

// StartScope opens a nested scope with its own instances.
func (m *InstanceManager) StartScope(tag string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frames = append(m.frames, &frame{tag: tag, instances: make(map[string]any)})
}

// CloseScope discards the innermost scope. Closing the base scope clears it.
func (m *InstanceManager) CloseScope() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.frames) == 1 {
		clear(m.frames[0].instances)
		return
	}
	m.frames[len(m.frames)-1] = nil
	m.frames = m.frames[:len(m.frames)-1]
}

// ClearCache drops every cached instance in every scope.
func (m *InstanceManager) ClearCache() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, fr := range m.frames {
		clear(fr.instances)
	}
}

// Depth returns the number of open scopes, including the base scope.
func (m *InstanceManager) Depth() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.frames)
}

// CurrentTag returns the tag of the innermost scope.
func (m *InstanceManager) CurrentTag() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frames[len(m.frames)-1].tag
}
