// Command tcrkp builds kinetic-proofreading reaction networks and drives
// simulator batches over sampled self-ligand concentrations.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tcrkp/internal/config"
	"tcrkp/internal/logging"
)

// cli holds the state shared by every subcommand.
type cli struct {
	configPath string
	verbose    bool
	logFormat  string

	cfg    config.Config
	logger *zap.Logger
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "tcrkp",
		Short: "TCR kinetic proofreading network builder and batch driver",
		Long: `tcrkp constructs the reaction network of a T-cell receptor kinetic
proofreading scenario, writes one simulator input per sampled self-ligand
concentration and, with --run, submits the jobs and waits for their output.

Configuration is read from --config (YAML), then TCRKP_* environment
variables, then command-line flags.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(c.configPath)
			if err != nil {
				return err
			}
			if c.verbose {
				cfg.Logging.Level = "debug"
			}
			if c.logFormat != "" {
				cfg.Logging.Format = c.logFormat
			}
			logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			c.cfg = cfg
			c.logger = logger
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "YAML configuration file")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "debug logging")
	root.PersistentFlags().StringVar(&c.logFormat, "log-format", "", "log encoding: json or console")

	root.AddCommand(
		c.generateCmd(),
		c.inspectCmd(),
		c.statusCmd(),
		c.waitCmd(),
	)
	return root
}

// signalContext cancels on SIGINT or SIGTERM so a batch records its state
// before exiting.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
