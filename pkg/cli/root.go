// Package cli builds the steprunner command tree. Step packages link their
// registrations into a binary and hand the resulting scanner to NewRootCmd.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/ormasoftchile/steprunner/pkg/config"
	"github.com/ormasoftchile/steprunner/pkg/discovery"
	"github.com/ormasoftchile/steprunner/pkg/logging"
	"github.com/ormasoftchile/steprunner/pkg/runner"
)

type rootOptions struct {
	scanner    discovery.Scanner
	version    string
	configPath string
	logLevel   string
	verbose    bool
}

// NewRootCmd returns the root command for a binary built around scanner.
func NewRootCmd(scanner discovery.Scanner, version string) *cobra.Command {
	opts := &rootOptions{scanner: scanner, version: version}

	root := &cobra.Command{
		Use:           "steprunner",
		Short:         "Execute registered steps and hooks for a test orchestrator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to a config file (yaml, json or toml)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Override the configured log level")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log at debug level")

	root.AddCommand(
		newServeCmd(opts),
		newStepsCmd(opts),
		newRunCmd(opts),
		newConsoleCmd(opts),
		newSchemaCmd(),
		newVersionCmd(opts),
	)
	return root
}

// loadConfig resolves the config file, environment and flag overrides.
func (o *rootOptions) loadConfig() (*config.Config, *log.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, nil, err
	}
	switch {
	case o.verbose:
		cfg.LogLevel = "debug"
	case o.logLevel != "":
		cfg.LogLevel = o.logLevel
	}
	logger := logging.New("steprunner")
	if err := logging.SetLevel(logger, cfg.LogLevel); err != nil {
		logger.Warn("falling back to info level", "err", err)
	}
	return cfg, logger, nil
}

// newRunner loads config and performs discovery.
func (o *rootOptions) newRunner() (*runner.Runner, *log.Logger, error) {
	cfg, logger, err := o.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	r, err := runner.New(cfg, o.scanner, logger)
	if err != nil {
		return nil, nil, err
	}
	return r, logger, nil
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func newVersionCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "steprunner %s\n", opts.version)
		},
	}
}
