// Package console implements an interactive REPL that drives the request
// processor by hand: run steps, fire hooks, open and close scopes.
package console

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/chzyer/readline"

	"github.com/ormasoftchile/steprunner/pkg/schema"
)

// Handler processes requests.
type Handler interface {
	Process(ctx context.Context, req *schema.Request) *schema.Response
	Killed() bool
}

var (
	passStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

var commands = []string{"run", "hook", "validate", "scope start", "scope close",
	"datastore", "steps", "help", "quit"}

// Console is a line-oriented front end for a Handler.
type Console struct {
	handler Handler
	output  io.Writer
	depth   int
	seq     int
}

// New creates a console writing to stdout.
func New(h Handler) *Console {
	return &Console{handler: h, output: os.Stdout}
}

// SetOutput redirects command output.
func (c *Console) SetOutput(w io.Writer) { c.output = w }

// Run starts the interactive loop. It returns nil on quit, Ctrl-C or EOF.
func (c *Console) Run(ctx context.Context) error {
	completer := readline.NewPrefixCompleter()
	for _, cmd := range commands {
		completer.Children = append(completer.Children, readline.PcItem(cmd))
	}
	for _, kind := range schema.HookKinds {
		completer.Children = append(completer.Children, readline.PcItem("hook "+string(kind)))
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          c.prompt(),
		AutoComplete:    completer,
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		return fmt.Errorf("init readline: %w", err)
	}
	defer rl.Close()

	fmt.Fprintf(c.output, "steprunner console. Type 'help' for available commands.\n\n")
	for {
		rl.SetPrompt(c.prompt())
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				return nil
			}
			return err
		}
		if quit := c.Execute(ctx, line); quit {
			return nil
		}
	}
}

func (c *Console) prompt() string {
	if c.depth == 0 {
		return "steprunner> "
	}
	return fmt.Sprintf("steprunner[scope %d]> ", c.depth)
}

// Execute runs one command line and reports whether the console should exit.
func (c *Console) Execute(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch cmd {
	case "run", "r":
		c.handleRun(ctx, rest)
	case "hook":
		c.handleHook(ctx, rest)
	case "validate", "v":
		c.handleValidate(ctx, rest)
	case "scope":
		c.handleScope(ctx, rest)
	case "datastore":
		c.handleDataStore(ctx, rest)
	case "steps", "ls":
		c.handleSteps(ctx)
	case "help", "?":
		c.handleHelp()
	case "quit", "q", "exit":
		fmt.Fprintf(c.output, "Exiting console.\n")
		return true
	default:
		fmt.Fprintf(c.output, "Unknown command: %q. Type 'help' for available commands.\n", cmd)
	}
	return c.handler.Killed()
}

func (c *Console) process(ctx context.Context, req *schema.Request) *schema.Response {
	c.seq++
	req.ID = fmt.Sprintf("console-%d", c.seq)
	return c.handler.Process(ctx, req)
}

// handleRun executes a step written the way it appears in a spec file.
func (c *Console) handleRun(ctx context.Context, actual string) {
	if actual == "" {
		fmt.Fprintf(c.output, "Usage: run <step with \"quoted\" arguments>\n")
		return
	}
	resp := c.process(ctx, &schema.Request{
		Kind:          schema.KindStepExecution,
		StepExecution: &schema.StepExecutionRequest{ActualStepText: actual},
	})
	c.printResult(actual, resp)
}

func (c *Console) handleHook(ctx context.Context, args string) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		fmt.Fprintf(c.output, "Usage: hook <kind> [tag...]\n")
		return
	}
	kind, err := schema.ParseHookKind(fields[0])
	if err != nil {
		fmt.Fprintf(c.output, "Error: %v\n", err)
		return
	}
	resp := c.process(ctx, &schema.Request{
		Kind:          schema.KindHookExecution,
		HookExecution: &schema.HookExecutionRequest{HookKind: kind, ActiveTags: fields[1:]},
	})
	c.printResult(string(kind), resp)
}

func (c *Console) handleValidate(ctx context.Context, actual string) {
	if actual == "" {
		fmt.Fprintf(c.output, "Usage: validate <step>\n")
		return
	}
	resp := c.process(ctx, &schema.Request{
		Kind:         schema.KindStepValidate,
		StepValidate: &schema.StepValidateRequest{ActualStepText: actual},
	})
	if resp.Error != "" {
		fmt.Fprintf(c.output, "Error: %s\n", resp.Error)
		return
	}
	v := resp.StepValidate
	if v.Valid {
		fmt.Fprintf(c.output, "  %s %s\n", passStyle.Render("✓"), actual)
		return
	}
	fmt.Fprintf(c.output, "  %s %s\n", failStyle.Render("✗"), v.Message)
	if v.Suggestion != "" {
		fmt.Fprintf(c.output, "%s", dimStyle.Render(v.Suggestion))
		fmt.Fprintln(c.output)
	}
}

func (c *Console) handleScope(ctx context.Context, args string) {
	action, tag, _ := strings.Cut(args, " ")
	switch action {
	case "start":
		c.process(ctx, &schema.Request{
			Kind:       schema.KindScopeStart,
			ScopeStart: &schema.ScopeStartRequest{Tag: strings.TrimSpace(tag)},
		})
		c.depth++
		fmt.Fprintf(c.output, "Scope opened (depth %d).\n", c.depth)
	case "close":
		c.process(ctx, &schema.Request{Kind: schema.KindScopeClose})
		if c.depth > 0 {
			c.depth--
		}
		fmt.Fprintf(c.output, "Scope closed (depth %d).\n", c.depth)
	default:
		fmt.Fprintf(c.output, "Usage: scope start [tag] | scope close\n")
	}
}

func (c *Console) handleDataStore(ctx context.Context, scope string) {
	if scope == "" {
		fmt.Fprintf(c.output, "Usage: datastore suite|spec|scenario\n")
		return
	}
	resp := c.process(ctx, &schema.Request{
		Kind:          schema.KindDataStoreInit,
		DataStoreInit: &schema.DataStoreInitRequest{Scope: scope},
	})
	if resp.Error != "" {
		fmt.Fprintf(c.output, "Error: %s\n", resp.Error)
		return
	}
	fmt.Fprintf(c.output, "Data store %s cleared.\n", scope)
}

func (c *Console) handleSteps(ctx context.Context) {
	resp := c.process(ctx, &schema.Request{Kind: schema.KindStepNames})
	if len(resp.StepNames) == 0 {
		fmt.Fprintf(c.output, "No steps registered.\n")
		return
	}
	for _, name := range resp.StepNames {
		fmt.Fprintf(c.output, "  %s\n", name)
	}
}

func (c *Console) handleHelp() {
	fmt.Fprintf(c.output, `Commands:
  run, r <step>            Execute a step, e.g. run Say "hello" to "bob"
  hook <kind> [tag...]     Execute the hooks of a kind with the given tags
  validate, v <step>       Check that a step resolves to one implementation
  scope start [tag]        Open an instance scope
  scope close              Close the innermost scope
  datastore <scope>        Clear the suite, spec or scenario data store
  steps, ls                List registered step texts
  help, ?                  Show this help
  quit, q                  Exit the console
`)
}

func (c *Console) printResult(label string, resp *schema.Response) {
	if resp.Error != "" {
		fmt.Fprintf(c.output, "Error: %s\n", resp.Error)
		return
	}
	r := resp.ExecutionResult
	if r == nil {
		return
	}
	elapsed := dimStyle.Render(fmt.Sprintf("(%dms)", r.ElapsedTimeMs))
	if r.Success {
		fmt.Fprintf(c.output, "  %s %s %s\n", passStyle.Render("✓"), label, elapsed)
		return
	}
	kind := "failed"
	if r.Recoverable {
		kind = "failed (continuing)"
	}
	fmt.Fprintf(c.output, "  %s %s %s: %s %s\n", failStyle.Render("✗"), label, kind, r.ErrorMessage, elapsed)
	if r.StackTrace != "" {
		fmt.Fprintf(c.output, "%s\n", dimStyle.Render(r.StackTrace))
	}
	if len(r.Screenshot) > 0 {
		fmt.Fprintf(c.output, "    screenshot captured (%d bytes)\n", len(r.Screenshot))
	}
}
