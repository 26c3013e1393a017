package transport

import (
	"context"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
)

func textOf(t *testing.T, r *mcp.CallToolResult) string {
	t.Helper()
	if len(r.Content) == 0 {
		t.Fatal("empty result")
	}
	tc, ok := r.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content = %T", r.Content[0])
	}
	return tc.Text
}

func TestMCP_Execute(t *testing.T) {
	tools := &mcpTools{handler: newHandler()}

	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{"step": `Say "hello"`}
	result, err := tools.handleExecute(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if result.IsError {
		t.Errorf("execute failed: %s", textOf(t, result))
	}

	req.Params.Arguments = map[string]any{}
	result, _ = tools.handleExecute(context.Background(), req)
	if !result.IsError {
		t.Error("expected error for missing step")
	}
}

func TestMCP_ValidateAndList(t *testing.T) {
	tools := &mcpTools{handler: newHandler()}

	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{"step": `Shout "hello"`}
	result, _ := tools.handleValidate(context.Background(), req)
	if !result.IsError || !strings.Contains(textOf(t, result), "Suggested implementation") {
		t.Errorf("validate = %+v", result)
	}

	result, _ = tools.handleList(context.Background(), mcp.CallToolRequest{})
	if textOf(t, result) != "Say <word>" {
		t.Errorf("list = %q", textOf(t, result))
	}
}

func TestMCP_HooksBadKind(t *testing.T) {
	tools := &mcpTools{handler: newHandler()}
	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{"kind": "sometimes"}
	result, _ := tools.handleHooks(context.Background(), req)
	if !result.IsError {
		t.Error("expected error for unknown hook kind")
	}

	req.Params.Arguments = map[string]any{"kind": "before_scenario", "tags": "a, b"}
	result, _ = tools.handleHooks(context.Background(), req)
	if result.IsError {
		t.Errorf("hooks failed: %s", textOf(t, result))
	}

	if NewMCPServer(newHandler(), "test") == nil {
		t.Error("NewMCPServer returned nil")
	}
}
