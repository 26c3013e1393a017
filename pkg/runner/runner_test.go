package runner

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/ormasoftchile/steprunner/pkg/capture"
	"github.com/ormasoftchile/steprunner/pkg/config"
	"github.com/ormasoftchile/steprunner/pkg/discovery"
	"github.com/ormasoftchile/steprunner/pkg/registry"
	"github.com/ormasoftchile/steprunner/pkg/schema"
)

type counter struct{ n int }

func newCounter() *counter { return &counter{} }

func (c *counter) Add(by int) { c.n += by }

func (c *counter) Expect(want int) error {
	if c.n != want {
		return errors.New("count mismatch")
	}
	return nil
}

func testCatalog() *discovery.Catalog {
	c := discovery.NewCatalog()
	c.Scope(newCounter)
	c.Step("Add <n>", (*counter).Add)
	c.Step("Expect <n>", (*counter).Expect)
	c.Hook(schema.BeforeScenario, func() {})
	c.Capture(capture.CapturerFunc(func(context.Context) ([]byte, error) {
		return []byte("png"), nil
	}))
	return c
}

func run(t *testing.T, r *Runner, req *schema.Request) *schema.Response {
	t.Helper()
	resp := r.Process(context.Background(), req)
	if resp.Error != "" {
		t.Fatalf("Process(%s) error: %s", req.Kind, resp.Error)
	}
	return resp
}

func step(actual string) *schema.Request {
	return &schema.Request{Kind: schema.KindStepExecution, StepExecution: &schema.StepExecutionRequest{ActualStepText: actual}}
}

func TestNewDiscoversCatalog(t *testing.T) {
	r, err := New(nil, testCatalog(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	if r.Steps.Len() != 2 {
		t.Errorf("steps = %d, want 2", r.Steps.Len())
	}
	if r.Hooks.Len() != 1 {
		t.Errorf("hooks = %d, want 1", r.Hooks.Len())
	}
}

func TestScenarioClearsScopedInstances(t *testing.T) {
	r, err := New(config.DefaultConfig(), testCatalog(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	run(t, r, step(`Add "2"`))
	run(t, r, step(`Add "3"`))
	if res := run(t, r, step(`Expect "5"`)).ExecutionResult; !res.Success {
		t.Fatalf("Expect 5 failed: %s", res.ErrorMessage)
	}

	run(t, r, &schema.Request{Kind: schema.KindHookExecution, HookExecution: &schema.HookExecutionRequest{HookKind: schema.BeforeScenario}})

	res := run(t, r, step(`Expect "5"`)).ExecutionResult
	if res.Success {
		t.Fatal("instance should be fresh after before_scenario")
	}
	if string(res.Screenshot) != "png" {
		t.Errorf("Screenshot = %q, want discovered capture", res.Screenshot)
	}
}

func TestTraceFile(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.TraceFile = filepath.Join(t.TempDir(), "trace.jsonl")

	r, err := New(cfg, testCatalog(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	run(t, r, step(`Add "1"`))
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(cfg.TraceFile)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{`"run_start"`, `"request_start"`, `"step_complete"`, `"run_complete"`} {
		if !bytes.Contains(data, []byte(want)) {
			t.Errorf("trace missing %s:\n%s", want, data)
		}
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.HookOrder = "random"
	if _, err := New(cfg, testCatalog(), nil); err == nil || !strings.Contains(err.Error(), "hook_order") {
		t.Errorf("New error = %v, want hook_order error", err)
	}
}

func TestRodDriverSelected(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Capture.Driver = config.CaptureRod
	cfg.Capture.DebuggerURL = "ws://127.0.0.1:9222/devtools/browser/x"
	if _, ok := configuredCapturer(cfg).(*capture.Rod); !ok {
		t.Error("rod driver should select the rod capturer")
	}
	if configuredCapturer(config.DefaultConfig()) != nil {
		t.Error("default driver should not install a capturer")
	}
}

// withFileA adds a step registered from a separate source file.
type withFileA struct{ *discovery.Catalog }

func (s withFileA) ScanForSteps() []registry.StepEntry {
	impl := &schema.StepImplementation{ID: "file-a", Aliases: []string{"Step from file A"}, Source: "/src/a.go", Fn: func() {}}
	return append(s.Catalog.ScanForSteps(), registry.StepEntry{StepText: "Step from file A", Implementation: impl})
}

func cacheFile(path string, status schema.FileStatus) *schema.Request {
	return &schema.Request{Kind: schema.KindCacheFile, CacheFile: &schema.CacheFileRequest{Path: path, Status: status}}
}

func TestCacheFile_DeletedSourceStaysRemoved(t *testing.T) {
	r, err := New(nil, withFileA{testCatalog()}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	tests := []struct {
		req   *schema.Request
		wantA bool
	}{
		{cacheFile("/src/a.go", schema.FileDeleted), false},
		{cacheFile("/src/b.go", schema.FileChanged), false},
		{cacheFile("/src/b.go", schema.FileCreated), false},
		{cacheFile("/src/a.go", schema.FileCreated), true},
	}
	for _, tt := range tests {
		run(t, r, tt.req)
		if got := r.Steps.ContainsStep("Step from file A"); got != tt.wantA {
			t.Errorf("after %s %s: ContainsStep = %v, want %v", tt.req.CacheFile.Status, tt.req.CacheFile.Path, got, tt.wantA)
		}
		if !r.Steps.ContainsStep("Add {}") {
			t.Errorf("after %s %s: steps from other files were dropped", tt.req.CacheFile.Status, tt.req.CacheFile.Path)
		}
	}
}

func TestCacheFile_ReloadKeepsScopeInstances(t *testing.T) {
	r, err := New(nil, testCatalog(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	run(t, r, &schema.Request{Kind: schema.KindScopeStart, ScopeStart: &schema.ScopeStartRequest{Tag: "scenario"}})
	run(t, r, step(`Add "2"`))
	run(t, r, cacheFile("/src/x.go", schema.FileChanged))
	if res := run(t, r, step(`Expect "2"`)).ExecutionResult; !res.Success {
		t.Errorf("Expect 2 after reload: Success = false, want true (%s)", res.ErrorMessage)
	}
}

func TestProcess_ConcurrentReloads(t *testing.T) {
	r, err := New(nil, testCatalog(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				r.Process(context.Background(), step(`Add "1"`))
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				r.Process(context.Background(), cacheFile("/src/x.go", schema.FileChanged))
			}
		}()
	}
	wg.Wait()

	if res := run(t, r, step(`Expect "100"`)).ExecutionResult; !res.Success {
		t.Errorf("Expect 100 after concurrent reloads: Success = false, want true (%s)", res.ErrorMessage)
	}
}
