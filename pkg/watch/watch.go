// Package watch turns filesystem events under the project root into cache
// file notifications for the processor.
//
// Events inside the debounce window are coalesced per path; the last event
// for a path decides whether it is reported as created, changed or deleted.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"

	"github.com/ormasoftchile/steprunner/pkg/logging"
	"github.com/ormasoftchile/steprunner/pkg/schema"
)

const defaultDebounce = 300 * time.Millisecond

// DefaultPatterns selects Go step sources.
var DefaultPatterns = []string{"**/*.go"}

var defaultIgnores = []string{
	"**/.git/**",
	"**/vendor/**",
	"**/testdata/**",
	"**/*_test.go",
	"**/*.swp",
	"**/*~",
}

// Change is one coalesced source change.
type Change struct {
	Path   string
	Status schema.FileStatus
}

// Config holds the parameters for a Watcher.
type Config struct {
	// BaseDir is watched recursively. Empty means the working directory.
	BaseDir string
	// Patterns are doublestar globs relative to BaseDir. Empty means DefaultPatterns.
	Patterns []string
	// Ignore is merged with the built-in ignores.
	Ignore   []string
	Debounce time.Duration
	// OnChange receives the changes of one debounce window, sorted by path.
	OnChange func(ctx context.Context, changes []Change) error
	Logger   *log.Logger
}

// Watcher monitors BaseDir. Run must be called exactly once.
type Watcher struct {
	cfg      Config
	fsw      *fsnotify.Watcher
	patterns []string
	ignores  []string
	debounce time.Duration
	baseDir  string
	log      *log.Logger
	started  atomic.Bool
}

// New resolves BaseDir, validates the globs and registers every
// non-ignored directory.
func New(cfg Config) (*Watcher, error) {
	baseDir := cfg.BaseDir
	if baseDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("watch: determine working directory: %w", err)
		}
		baseDir = wd
	}
	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("watch: resolve base directory: %w", err)
	}

	patterns := cfg.Patterns
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}
	if err := validatePatterns(patterns, "watch"); err != nil {
		return nil, err
	}
	if err := validatePatterns(cfg.Ignore, "ignore"); err != nil {
		return nil, err
	}

	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		cfg:      cfg,
		fsw:      fsw,
		patterns: patterns,
		ignores:  append(slices.Clone(defaultIgnores), cfg.Ignore...),
		debounce: debounce,
		baseDir:  absBase,
		log:      logger,
	}
	if err := w.addDirectories(); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

// Run blocks until ctx is cancelled and dispatches debounced changes.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return errors.New("watch: Run called more than once")
	}

	var (
		mu      sync.Mutex
		pending = make(map[string]schema.FileStatus)
		timer   *time.Timer
	)

	fire := func() {
		if ctx.Err() != nil {
			return
		}
		mu.Lock()
		changes := drain(pending)
		mu.Unlock()
		if len(changes) == 0 || w.cfg.OnChange == nil {
			return
		}
		if err := w.cfg.OnChange(ctx, changes); err != nil {
			w.log.Error("watch callback failed", "err", err)
		}
	}

	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
		if err := w.fsw.Close(); err != nil {
			w.log.Warn("close fsnotify", "err", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("watch: fsnotify event channel closed unexpectedly")
			}
			if evt.Has(fsnotify.Create) {
				w.maybeAddDir(evt.Name)
			}
			status, ok := statusFor(evt)
			if !ok || !w.relevant(evt.Name) {
				continue
			}

			mu.Lock()
			pending[evt.Name] = merge(pending[evt.Name], status)
			if timer == nil {
				timer = time.AfterFunc(w.debounce, fire)
			} else {
				timer.Reset(w.debounce)
			}
			mu.Unlock()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("watch: fsnotify error channel closed unexpectedly")
			}
			w.log.Warn("fsnotify error", "err", err)
		}
	}
}

// statusFor maps an fsnotify operation to a file status. Chmod alone is dropped.
func statusFor(evt fsnotify.Event) (schema.FileStatus, bool) {
	switch {
	case evt.Has(fsnotify.Remove), evt.Has(fsnotify.Rename):
		return schema.FileDeleted, true
	case evt.Has(fsnotify.Create):
		return schema.FileCreated, true
	case evt.Has(fsnotify.Write):
		return schema.FileChanged, true
	}
	return "", false
}

// merge folds a new status into the pending one for the same path.
func merge(prev, next schema.FileStatus) schema.FileStatus {
	if prev == schema.FileCreated && next == schema.FileChanged {
		return schema.FileCreated
	}
	if prev == schema.FileDeleted && next == schema.FileCreated {
		return schema.FileChanged
	}
	return next
}

func drain(pending map[string]schema.FileStatus) []Change {
	changes := make([]Change, 0, len(pending))
	for path, status := range pending {
		changes = append(changes, Change{Path: path, Status: status})
	}
	clear(pending)
	slices.SortFunc(changes, func(a, b Change) int {
		switch {
		case a.Path < b.Path:
			return -1
		case a.Path > b.Path:
			return 1
		}
		return 0
	})
	return changes
}

func (w *Watcher) addDirectories() error {
	err := filepath.WalkDir(w.baseDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			w.log.Warn("skipping inaccessible path", "path", path, "err", walkErr)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(w.baseDir, path)
		if relErr != nil {
			return nil
		}
		if rel != "." && (w.isIgnored(rel) || w.isIgnored(rel+"/")) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch: add directory %q: %w", path, err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("watch: walk directory tree: %w", err)
	}
	return nil
}

func (w *Watcher) maybeAddDir(path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}
	rel, err := filepath.Rel(w.baseDir, path)
	if err != nil || w.isIgnored(rel) || w.isIgnored(rel+"/") {
		return
	}
	if err := w.fsw.Add(path); err != nil {
		w.log.Warn("add new directory", "path", path, "err", err)
	}
}

func (w *Watcher) relevant(path string) bool {
	rel, err := filepath.Rel(w.baseDir, path)
	if err != nil {
		return false
	}
	return !w.isIgnored(rel) && matchAny(w.patterns, rel)
}

func (w *Watcher) isIgnored(rel string) bool {
	return matchAny(w.ignores, rel)
}

func matchAny(patterns []string, rel string) bool {
	normalized := filepath.ToSlash(rel)
	for _, pat := range patterns {
		if matched, err := doublestar.Match(pat, normalized); err == nil && matched {
			return true
		}
	}
	return false
}

func validatePatterns(patterns []string, label string) error {
	for _, pat := range patterns {
		if !doublestar.ValidatePattern(pat) {
			return fmt.Errorf("watch: invalid %s pattern %q", label, pat)
		}
	}
	return nil
}
