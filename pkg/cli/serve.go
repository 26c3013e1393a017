package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/steprunner/pkg/transport"
)

const (
	transportStdio = "stdio"
	transportMCP   = "mcp"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var (
		mode  string
		watch bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve orchestrator requests over stdin/stdout",
		Long: `Start the request processor on stdin/stdout.

With --transport stdio, messages are newline-delimited JSON-RPC 2.0 and each
"process" call carries one request. With --transport mcp the same operations
are exposed as Model Context Protocol tools.`,
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

			if watch || r.Config.Watch {
				go func() {
					if err := r.Watch(ctx); err != nil {
						logger.Error("watcher stopped", "err", err)
					}
				}()
			}

			logger.Info("serving", "transport", mode, "steps", r.Steps.Len(), "hooks", r.Hooks.Len())
			switch mode {
			case transportStdio:
				return transport.NewServer(os.Stdin, os.Stdout, r, opts.version, logger.WithPrefix("jsonrpc")).Run(ctx)
			case transportMCP:
				return transport.ServeMCP(ctx, r, opts.version, os.Stdin, os.Stdout)
			default:
				return fmt.Errorf("unknown transport %q (want %s or %s)", mode, transportStdio, transportMCP)
			}
		},
	}
	cmd.Flags().StringVar(&mode, "transport", transportStdio, "Transport: stdio (JSON-RPC) or mcp")
	cmd.Flags().BoolVar(&watch, "watch", false, "Reload registrations when step sources change")
	return cmd
}
