package registry

import (
	"slices"
	"sync"

	"github.com/ormasoftchile/steprunner/pkg/schema"
)

// HookRegistry holds hook handles per kind in discovery order.
type HookRegistry struct {
	mu    sync.RWMutex
	hooks map[schema.HookKind][]*schema.HookHandle
}

// NewHookRegistry creates an empty hook registry.
func NewHookRegistry() *HookRegistry {
	return &HookRegistry{hooks: make(map[schema.HookKind][]*schema.HookHandle)}
}

// AddHook appends h under its kind.
func (r *HookRegistry) AddHook(h *schema.HookHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks[h.Kind] = append(r.hooks[h.Kind], h)
}

// Hooks returns the handles of one kind in discovery order.
func (r *HookRegistry) Hooks(kind schema.HookKind) []*schema.HookHandle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.hooks[kind])
}

// Replace swaps every hook for handles in one step.
func (r *HookRegistry) Replace(handles []*schema.HookHandle) {
	next := make(map[schema.HookKind][]*schema.HookHandle)
	for _, h := range handles {
		next[h.Kind] = append(next[h.Kind], h)
	}
	r.mu.Lock()
	r.hooks = next
	r.mu.Unlock()
}

// RemoveBySource drops every hook registered from sourcePath.
func (r *HookRegistry) RemoveBySource(sourcePath string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	next := make(map[schema.HookKind][]*schema.HookHandle)
	for kind, handles := range r.hooks {
		for _, h := range handles {
			if h.Source == sourcePath {
				removed++
				continue
			}
			next[kind] = append(next[kind], h)
		}
	}
	r.hooks = next
	return removed
}

// Len returns the total number of hooks.
func (r *HookRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, handles := range r.hooks {
		n += len(handles)
	}
	return n
}

// Clear removes every hook.
func (r *HookRegistry) Clear() {
	r.mu.Lock()
	r.hooks = make(map[schema.HookKind][]*schema.HookHandle)
	r.mu.Unlock()
}
