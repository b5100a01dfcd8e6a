package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"tcrkp/internal/blob"
	"tcrkp/internal/config"
	"tcrkp/internal/driver"
	"tcrkp/internal/infra/persistence"
	"tcrkp/internal/jobs"
	"tcrkp/internal/observability"
	"tcrkp/internal/runs"
)

// planFlags are the generate overrides. Only flags set on the command line
// replace configured values.
type planFlags struct {
	scenario    string
	steps       int
	foreign     int
	samples     int
	run         bool
	steady      bool
	seed        uint64
	existing    string
	fsRoot      string
	metricsFile string
}

func (c *cli) generateCmd() *cobra.Command {
	var f planFlags
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Construct the network and write one simulator input per sample",
		Long: `Constructs the network for the configured scenario once, draws the
self-ligand concentrations and writes sample_<i>/input.json and
sample_<i>/qsub.sh for each of them, plus the Ligand_concentrations
manifests. With --run the jobs are submitted and the command waits until
every sample has produced its output.

Example:
  tcrkp generate --scenario competing --steps 3 --foreign-ligands 30
  tcrkp generate --scenario self --steps 2 --run --existing resume`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f.apply(cmd, &c.cfg)
			return c.runGenerate(cmd)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.scenario, "scenario", "", "scenario: competing, self, foreign, first-order")
	fl.IntVar(&f.steps, "steps", 0, "number of proofreading steps")
	fl.IntVar(&f.foreign, "foreign-ligands", 0, "foreign ligand molecules (competing scenario)")
	fl.IntVar(&f.samples, "samples", 0, "number of samples (0: 2 for dry runs, 1000 with --run)")
	fl.BoolVar(&f.run, "run", false, "submit the jobs and wait for their output")
	fl.BoolVar(&f.steady, "ss", false, "ask the simulator to stop at steady state")
	fl.Uint64Var(&f.seed, "seed", 0, "sampling seed (0 draws one)")
	fl.StringVar(&f.existing, "existing", "", "existing sample policy: fail, resume, replace")
	fl.StringVar(&f.fsRoot, "out", "", "output directory for the fs blob driver")
	fl.StringVar(&f.metricsFile, "metrics-file", "", "write Prometheus metrics to this file")
	return cmd
}

func (f planFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	changed := cmd.Flags().Changed
	if changed("scenario") {
		cfg.Scenario = f.scenario
	}
	if changed("steps") {
		cfg.Steps = f.steps
	}
	if changed("foreign-ligands") {
		cfg.ForeignLigands = f.foreign
	}
	if changed("samples") {
		cfg.Samples = f.samples
	}
	if changed("run") {
		cfg.Run = f.run
	}
	if changed("ss") {
		cfg.SteadyStateCheck = f.steady
	}
	if changed("seed") {
		cfg.Sampling.Seed = f.seed
	}
	if changed("existing") {
		cfg.ExistingSample = f.existing
	}
	if changed("out") {
		cfg.Blob.FSRoot = f.fsRoot
	}
	if changed("metrics-file") {
		cfg.MetricsFile = f.metricsFile
	}
}

func (c *cli) runGenerate(cmd *cobra.Command) (err error) {
	if err := c.cfg.Validate(); err != nil {
		return err
	}
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	metrics := observability.NewMetrics()
	d, closeAll, err := c.openDriver(ctx, metrics)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, closeAll()) }()
	defer func() {
		if c.cfg.MetricsFile == "" {
			return
		}
		if werr := metrics.WriteTextfile(c.cfg.MetricsFile); werr != nil {
			err = multierr.Append(err, fmt.Errorf("write metrics: %w", werr))
		}
	}()

	report, err := d.Generate(ctx, c.cfg.Plan())
	if report.RunID != "" {
		printReport(cmd.OutOrStdout(), report)
	}
	return err
}

// openDriver opens the blob store and the ledger and returns a driver over
// them. closeAll releases the ledger.
func (c *cli) openDriver(ctx context.Context, recorder observability.Recorder) (*driver.Driver, func() error, error) {
	store, err := blob.Open(ctx, c.cfg.Blob)
	if err != nil {
		return nil, nil, fmt.Errorf("open blob store: %w", err)
	}
	ledger, err := persistence.Open(ctx, c.cfg.Storage)
	if err != nil {
		return nil, nil, fmt.Errorf("open ledger: %w", err)
	}
	c.logger.Debug("collaborators opened",
		zap.String("blob", string(store.Driver())),
		zap.String("ledger", string(c.cfg.Storage.Driver)))
	d := driver.New(store, ledger,
		driver.WithLogger(c.logger),
		driver.WithRecorder(recorder),
		driver.WithWaiter(c.cfg.Waiter()),
		driver.WithSubmitter(jobs.CommandSubmitter{Command: c.cfg.Jobs.Command, Logger: c.logger}),
	)
	return d, ledger.Close, nil
}

func printReport(w io.Writer, r driver.Report) {
	fmt.Fprintf(w, "run:        %s\n", r.RunID)
	fmt.Fprintf(w, "status:     %s\n", r.Status)
	fmt.Fprintf(w, "simulation: %s\n", r.SimulationName)
	if r.Forward > 0 {
		fmt.Fprintf(w, "reactions:  %d forward, %d reverse\n", r.Forward, r.Reverse)
		fmt.Fprintf(w, "record:     %s\n", strings.Join(r.Record, " "))
	}
	fmt.Fprintf(w, "samples:    %d\n", len(r.Samples))
	failed := 0
	for _, s := range r.Samples {
		if s.SubmitError != "" {
			failed++
		}
	}
	if failed > 0 {
		fmt.Fprintf(w, "submit errors: %d\n", failed)
	}
	if len(r.Pending) > 0 {
		fmt.Fprintf(w, "pending:    %d\n", len(r.Pending))
	}
	if r.Status == runs.StatusPrepared {
		fmt.Fprintln(w, "dry run: nothing submitted")
	}
}
