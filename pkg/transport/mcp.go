package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ormasoftchile/steprunner/pkg/schema"
)

// NewMCPServer exposes the handler as MCP tools for agent-driven runs.
func NewMCPServer(h Handler, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"steprunner",
		version,
		server.WithToolCapabilities(true),
	)
	t := &mcpTools{handler: h}

	s.AddTool(
		mcp.NewTool("steps/list",
			mcp.WithDescription("List every registered step text"),
		),
		t.handleList,
	)

	s.AddTool(
		mcp.NewTool("step/execute",
			mcp.WithDescription(`Execute one step written as in a spec, e.g. Say "hello" to "bob"`),
			mcp.WithString("step", mcp.Required(), mcp.Description("Step text with quoted arguments")),
		),
		t.handleExecute,
	)

	s.AddTool(
		mcp.NewTool("hooks/execute",
			mcp.WithDescription("Run the lifecycle hooks of one kind"),
			mcp.WithString("kind", mcp.Required(), mcp.Description("Hook kind, e.g. before_scenario")),
			mcp.WithString("tags", mcp.Description("Comma-separated active tags")),
		),
		t.handleHooks,
	)

	s.AddTool(
		mcp.NewTool("step/validate",
			mcp.WithDescription("Check that a step resolves to exactly one implementation"),
			mcp.WithString("step", mcp.Required(), mcp.Description("Step text with quoted arguments")),
		),
		t.handleValidate,
	)

	return s
}

// ServeMCP serves the MCP tools over the given streams until ctx ends or
// the input closes.
func ServeMCP(ctx context.Context, h Handler, version string, in io.Reader, out io.Writer) error {
	return server.NewStdioServer(NewMCPServer(h, version)).Listen(ctx, in, out)
}

type mcpTools struct {
	handler Handler
}

func (t *mcpTools) handleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	resp := t.handler.Process(ctx, &schema.Request{Kind: schema.KindStepNames})
	if len(resp.StepNames) == 0 {
		return textResult("no steps registered"), nil
	}
	return textResult(strings.Join(resp.StepNames, "\n")), nil
}

func (t *mcpTools) handleExecute(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	step, _ := args["step"].(string)
	if step == "" {
		return errorResult("step argument is required"), nil
	}
	resp := t.handler.Process(ctx, &schema.Request{
		Kind:          schema.KindStepExecution,
		StepExecution: &schema.StepExecutionRequest{ActualStepText: step},
	})
	return executionResult(resp)
}

func (t *mcpTools) handleHooks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	kindArg, _ := args["kind"].(string)
	kind, err := schema.ParseHookKind(kindArg)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	var tags []string
	if raw, _ := args["tags"].(string); raw != "" {
		for _, tag := range strings.Split(raw, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				tags = append(tags, tag)
			}
		}
	}
	resp := t.handler.Process(ctx, &schema.Request{
		Kind:          schema.KindHookExecution,
		HookExecution: &schema.HookExecutionRequest{HookKind: kind, ActiveTags: tags},
	})
	return executionResult(resp)
}

func (t *mcpTools) handleValidate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	step, _ := args["step"].(string)
	if step == "" {
		return errorResult("step argument is required"), nil
	}
	resp := t.handler.Process(ctx, &schema.Request{
		Kind:         schema.KindStepValidate,
		StepValidate: &schema.StepValidateRequest{ActualStepText: step},
	})
	v := resp.StepValidate
	if v == nil {
		return errorResult(resp.Error), nil
	}
	if v.Valid {
		return textResult("✓ step is implemented"), nil
	}
	msg := fmt.Sprintf("%s (%s)", v.Message, v.ErrorType)
	if v.Suggestion != "" {
		msg += "\n\nSuggested implementation:\n" + v.Suggestion
	}
	return errorResult(msg), nil
}

func executionResult(resp *schema.Response) (*mcp.CallToolResult, error) {
	if resp.ExecutionResult == nil {
		return errorResult(resp.Error), nil
	}
	data, err := json.MarshalIndent(resp.ExecutionResult, "", "  ")
	if err != nil {
		return errorResult(err.Error()), nil
	}
	if !resp.ExecutionResult.Success {
		return errorResult(string(data)), nil
	}
	return textResult(string(data)), nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(msg),
		},
		IsError: true,
	}
}
