package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/steprunner/pkg/console"
	"github.com/ormasoftchile/steprunner/pkg/schema"
)

// errScenarioFailed is returned by run when any hook or step failed.
var errScenarioFailed = errors.New("scenario failed")

func newRunCmd(opts *rootOptions) *cobra.Command {
	var tags []string
	cmd := &cobra.Command{
		Use:     `run <step>...`,
		Short:   "Run steps as one scenario, wrapped in scenario hooks",
		Example: `  steprunner run 'Open "https://example.com"' 'Title is "Example Domain"' --tags ui`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, logger, err := opts.newRunner()
			if err != nil {
				return err
			}
			defer func() {
				if err := r.Close(); err != nil {
					logger.Warn("close trace", "err", err)
				}
			}()
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()
			return runScenario(ctx, cmd.OutOrStdout(), r, args, tags)
		},
	}
	cmd.Flags().StringSliceVar(&tags, "tags", nil, "Active tags used to select hooks")
	return cmd
}

// runScenario mirrors one orchestrated scenario: before hooks, the steps
// until a non-recoverable failure, then after hooks regardless.
func runScenario(ctx context.Context, w io.Writer, h console.Handler, steps, tags []string) error {
	failed := false
	report := func(label string, resp *schema.Response) bool {
		if resp.Error != "" {
			fmt.Fprintf(w, "%s %s: %s\n", failStyle.Render("✗"), label, resp.Error)
			failed = true
			return false
		}
		res := resp.ExecutionResult
		if res.Success {
			fmt.Fprintf(w, "%s %s %s\n", passStyle.Render("✓"), label, dimStyle.Render(fmt.Sprintf("(%dms)", res.ElapsedTimeMs)))
			return true
		}
		failed = true
		fmt.Fprintf(w, "%s %s: %s\n", failStyle.Render("✗"), label, res.ErrorMessage)
		if res.StackTrace != "" {
			fmt.Fprintln(w, dimStyle.Render(res.StackTrace))
		}
		return res.Recoverable
	}
	hooks := func(kind schema.HookKind) bool {
		resp := h.Process(ctx, &schema.Request{
			Kind:          schema.KindHookExecution,
			HookExecution: &schema.HookExecutionRequest{HookKind: kind, ActiveTags: tags},
		})
		return report(string(kind), resp)
	}

	proceed := hooks(schema.BeforeScenario)
	for i, step := range steps {
		if !proceed {
			fmt.Fprintf(w, "%s %s\n", dimStyle.Render("-"), dimStyle.Render(step+" (skipped)"))
			continue
		}
		if !hooks(schema.BeforeStep) {
			proceed = false
			continue
		}
		resp := h.Process(ctx, &schema.Request{
			ID:            fmt.Sprintf("step-%d", i+1),
			Kind:          schema.KindStepExecution,
			StepExecution: &schema.StepExecutionRequest{ActualStepText: step},
		})
		proceed = report(step, resp)
		if !hooks(schema.AfterStep) {
			proceed = false
		}
	}
	hooks(schema.AfterScenario)

	if failed {
		return errScenarioFailed
	}
	return nil
}

func newConsoleCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "console",
		Short: "Start an interactive console for running steps and hooks",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, logger, err := opts.newRunner()
			if err != nil {
				return err
			}
			defer func() {
				if err := r.Close(); err != nil {
					logger.Warn("close trace", "err", err)
				}
			}()
			c := console.New(r)
			c.SetOutput(cmd.OutOrStdout())
			return c.Run(cmd.Context())
		},
	}
}
