package console

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/ormasoftchile/steprunner/pkg/schema"
)

// recordingHandler returns canned responses and remembers every request.
type recordingHandler struct {
	requests []*schema.Request
	respond  func(req *schema.Request) *schema.Response
	killed   bool
}

func (h *recordingHandler) Process(_ context.Context, req *schema.Request) *schema.Response {
	h.requests = append(h.requests, req)
	if h.respond != nil {
		return h.respond(req)
	}
	return &schema.Response{ID: req.ID, Kind: req.Kind, ExecutionResult: &schema.ExecutionResult{Success: true}}
}

func (h *recordingHandler) Killed() bool { return h.killed }

func newTestConsole(h Handler) (*Console, *bytes.Buffer) {
	var buf bytes.Buffer
	c := New(h)
	c.SetOutput(&buf)
	return c, &buf
}

func TestConsoleHelp(t *testing.T) {
	c, buf := newTestConsole(&recordingHandler{})
	c.Execute(context.Background(), "help")
	for _, cmd := range []string{"run", "hook", "validate", "scope start", "scope close", "datastore", "steps", "quit"} {
		if !strings.Contains(buf.String(), cmd) {
			t.Errorf("help output missing command %q", cmd)
		}
	}
}

func TestConsoleRunSendsActualStepText(t *testing.T) {
	h := &recordingHandler{}
	c, buf := newTestConsole(h)
	c.Execute(context.Background(), `run Say "hello" to "bob"`)

	if len(h.requests) != 1 {
		t.Fatalf("requests = %d, want 1", len(h.requests))
	}
	req := h.requests[0]
	if req.Kind != schema.KindStepExecution || req.StepExecution.ActualStepText != `Say "hello" to "bob"` {
		t.Errorf("request = %+v", req.StepExecution)
	}
	if req.ID != "console-1" {
		t.Errorf("ID = %q, want console-1", req.ID)
	}
	if !strings.Contains(buf.String(), "✓") {
		t.Errorf("output missing pass mark: %s", buf.String())
	}
}

func TestConsoleRunFailure(t *testing.T) {
	h := &recordingHandler{respond: func(req *schema.Request) *schema.Response {
		return &schema.Response{Kind: req.Kind, ExecutionResult: &schema.ExecutionResult{
			ErrorMessage: "boom", Recoverable: true, Screenshot: []byte{1, 2, 3},
		}}
	}}
	c, buf := newTestConsole(h)
	c.Execute(context.Background(), `r Explode`)

	out := buf.String()
	for _, want := range []string{"boom", "continuing", "3 bytes"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %s", want, out)
		}
	}
}

func TestConsoleHook(t *testing.T) {
	h := &recordingHandler{}
	c, buf := newTestConsole(h)
	c.Execute(context.Background(), "hook before-scenario smoke fast")

	if len(h.requests) != 1 {
		t.Fatalf("requests = %d, want 1", len(h.requests))
	}
	hr := h.requests[0].HookExecution
	if hr.HookKind != schema.BeforeScenario {
		t.Errorf("HookKind = %q, want %q", hr.HookKind, schema.BeforeScenario)
	}
	if strings.Join(hr.ActiveTags, ",") != "smoke,fast" {
		t.Errorf("ActiveTags = %v, want [smoke fast]", hr.ActiveTags)
	}

	buf.Reset()
	c.Execute(context.Background(), "hook sometimes")
	if !strings.Contains(buf.String(), "Error") {
		t.Errorf("unknown kind should report an error: %s", buf.String())
	}
	if len(h.requests) != 1 {
		t.Errorf("unknown kind must not reach the handler")
	}
}

func TestConsoleValidateSuggestion(t *testing.T) {
	h := &recordingHandler{respond: func(req *schema.Request) *schema.Response {
		return &schema.Response{Kind: req.Kind, StepValidate: &schema.StepValidateResponse{
			ErrorType: schema.ValidationNotFound, Message: "Step Implementation not found: Jump", Suggestion: "discovery.Step(...)",
		}}
	}}
	c, buf := newTestConsole(h)
	c.Execute(context.Background(), "validate Jump")
	if !strings.Contains(buf.String(), "not found") || !strings.Contains(buf.String(), "discovery.Step") {
		t.Errorf("output = %s", buf.String())
	}
}

func TestConsoleScopeDepth(t *testing.T) {
	h := &recordingHandler{}
	c, _ := newTestConsole(h)
	ctx := context.Background()

	c.Execute(ctx, "scope start login")
	c.Execute(ctx, "scope start")
	if c.prompt() != "steprunner[scope 2]> " {
		t.Errorf("prompt = %q", c.prompt())
	}
	c.Execute(ctx, "scope close")
	c.Execute(ctx, "scope close")
	c.Execute(ctx, "scope close")
	if c.depth != 0 {
		t.Errorf("depth = %d, want 0", c.depth)
	}
	if h.requests[0].ScopeStart.Tag != "login" {
		t.Errorf("tag = %q, want login", h.requests[0].ScopeStart.Tag)
	}
	if len(h.requests) != 5 {
		t.Errorf("requests = %d, want 5", len(h.requests))
	}
}

func TestConsoleSteps(t *testing.T) {
	h := &recordingHandler{respond: func(req *schema.Request) *schema.Response {
		return &schema.Response{Kind: req.Kind, StepNames: []string{"Say <what> to <who>", "Jump"}}
	}}
	c, buf := newTestConsole(h)
	c.Execute(context.Background(), "steps")
	if !strings.Contains(buf.String(), "Say <what> to <who>") || !strings.Contains(buf.String(), "Jump") {
		t.Errorf("output = %s", buf.String())
	}
}

func TestConsoleQuitAndUnknown(t *testing.T) {
	c, buf := newTestConsole(&recordingHandler{})
	if c.Execute(context.Background(), "dance") {
		t.Error("unknown command should not quit")
	}
	if !strings.Contains(buf.String(), "Unknown command") {
		t.Errorf("output = %s", buf.String())
	}
	if !c.Execute(context.Background(), "quit") {
		t.Error("quit should end the console")
	}
	if c.Execute(context.Background(), "") {
		t.Error("blank line should not quit")
	}
}

func TestConsoleStopsWhenKilled(t *testing.T) {
	h := &recordingHandler{killed: true}
	c, _ := newTestConsole(h)
	if !c.Execute(context.Background(), "steps") {
		t.Error("console should stop once the handler is killed")
	}
}
