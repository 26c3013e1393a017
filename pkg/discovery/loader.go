package discovery

import (
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/ormasoftchile/steprunner/pkg/capture"
	"github.com/ormasoftchile/steprunner/pkg/logging"
	"github.com/ormasoftchile/steprunner/pkg/registry"
	"github.com/ormasoftchile/steprunner/pkg/sandbox"
	"github.com/ormasoftchile/steprunner/pkg/schema"
	"github.com/ormasoftchile/steprunner/pkg/strategy"
)

// CaptureSink receives the capture capability found by a scan.
type CaptureSink interface {
	SetCapturer(c capture.Capturer)
}

// Loader runs a Scanner and installs its results.
type Loader struct {
	Scanner   Scanner
	Steps     *registry.StepRegistry
	Hooks     *registry.HookRegistry
	Instances *sandbox.InstanceManager
	// Capture may be nil; a discovered capturer is then ignored.
	Capture CaptureSink
	Logger  *log.Logger

	mu      sync.Mutex
	removed map[string]bool
}

// ForgetSource excludes everything registered from path from later reloads
// until RestoreSource is called for it.
func (l *Loader) ForgetSource(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.removed == nil {
		l.removed = make(map[string]bool)
	}
	l.removed[path] = true
}

// RestoreSource lets registrations from path back into later reloads.
func (l *Loader) RestoreSource(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.removed, path)
}

// Reload scans and installs the results. Every snapshot is built before
// anything is swapped. Implementation ids must be unique; a scan violating
// that is rejected and nothing changes. Registrations from forgotten
// sources are skipped.
func (l *Loader) Reload() error {
	logger := l.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	var entries []registry.StepEntry
	ids := make(map[string]*schema.StepImplementation)
	for _, e := range l.Scanner.ScanForSteps() {
		if l.removed[e.Implementation.Source] {
			continue
		}
		if prev, ok := ids[e.Implementation.ID]; ok && prev != e.Implementation {
			return fmt.Errorf("duplicate implementation id %s", e.Implementation.ID)
		}
		ids[e.Implementation.ID] = e.Implementation
		entries = append(entries, e)
	}
	var hooks []*schema.HookHandle
	for _, h := range l.Scanner.ScanForHooks() {
		if l.removed[h.Source] {
			continue
		}
		if h.Expression != "" {
			if _, err := strategy.CompileExpression(h.Expression); err != nil {
				logger.Warn("hook expression does not compile, hook will never run", "hook", h.ID, "err", err)
			}
		}
		hooks = append(hooks, h)
	}
	var factories map[string]sandbox.Factory
	if l.Instances != nil {
		factories = l.Scanner.ScanForScopes()
	}
	var capturer capture.Capturer
	if l.Capture != nil {
		capturer = l.Scanner.ScanForCaptureCapability()
	}

	if l.Instances != nil {
		l.Instances.ReplaceFactories(factories)
	}
	l.Steps.Replace(entries)
	if l.Hooks != nil {
		l.Hooks.Replace(hooks)
	}
	if capturer != nil {
		l.Capture.SetCapturer(capturer)
	}
	logger.Info("discovery complete", "steps", l.Steps.Len(), "hooks", len(hooks), "forgotten_sources", len(l.removed))
	return nil
}
