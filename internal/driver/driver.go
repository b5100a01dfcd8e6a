// Package driver runs a batch: it constructs the network once, writes one
// working directory per sampled self-ligand concentration, optionally
// submits and waits for the simulator jobs, and records everything in the
// run ledger.
package driver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"path"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tcrkp/internal/blob"
	"tcrkp/internal/jobs"
	"tcrkp/internal/network"
	"tcrkp/internal/observability"
	"tcrkp/internal/runs"
	"tcrkp/internal/scenario"
	"tcrkp/internal/siminput"
)

// Driver owns the collaborators of a batch.
type Driver struct {
	store     blob.Store
	ledger    runs.Store
	submitter jobs.Submitter
	waiter    jobs.Waiter
	recorder  observability.Recorder
	logger    *zap.Logger
	newID     func() string
	newSeed   func() uint64
}

// Option configures a Driver.
type Option func(*Driver)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(d *Driver) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithSubmitter replaces the default qsub command submitter.
func WithSubmitter(s jobs.Submitter) Option { return func(d *Driver) { d.submitter = s } }

// WithWaiter sets the wait loop parameters. The Checker defaults to the
// driver's blob store.
func WithWaiter(w jobs.Waiter) Option { return func(d *Driver) { d.waiter = w } }

// WithRecorder sets the metrics recorder.
func WithRecorder(r observability.Recorder) Option {
	return func(d *Driver) {
		if r != nil {
			d.recorder = r
		}
	}
}

// WithIDGenerator overrides run id generation.
func WithIDGenerator(fn func() string) Option { return func(d *Driver) { d.newID = fn } }

// WithSeedSource overrides the seed used when a plan leaves it zero.
func WithSeedSource(fn func() uint64) Option { return func(d *Driver) { d.newSeed = fn } }

// New returns a Driver writing to store and recording runs in ledger.
func New(store blob.Store, ledger runs.Store, opts ...Option) *Driver {
	d := &Driver{
		store:    store,
		ledger:   ledger,
		recorder: observability.Nop{},
		logger:   zap.NewNop(),
		newID:    uuid.NewString,
		newSeed:  rand.Uint64,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.submitter == nil {
		d.submitter = jobs.CommandSubmitter{Command: jobs.DefaultCommand, Logger: d.logger}
	}
	if d.waiter.Checker == nil {
		d.waiter.Checker = jobs.BlobChecker{Store: store}
	}
	if d.waiter.Logger == nil {
		d.waiter.Logger = d.logger
	}
	if d.waiter.Recorder == nil {
		d.waiter.Recorder = d.recorder
	}
	return d
}

// Report summarises a batch.
type Report struct {
	RunID          string
	SimulationName string
	Forward        int
	Reverse        int
	Record         []string
	Concentrations []int
	Samples        []runs.Sample
	// Pending lists outputs still missing when the wait loop returned.
	Pending   []string
	Status    runs.Status
	SubmitErr error
}

func (r *Report) absorb(run runs.Run) {
	r.RunID = run.ID
	r.Status = run.Status
	r.Samples = append([]runs.Sample(nil), run.Samples...)
}

// Generate runs the batch described by p. Construction and artifact errors
// abort the batch; submission errors are collected per sample and returned
// together once the remaining samples have been waited on.
func (d *Driver) Generate(ctx context.Context, p Plan) (Report, error) {
	p = p.withDefaults()
	if err := p.Validate(); err != nil {
		return Report{}, err
	}

	start := time.Now()
	variant, net, err := d.construct(p)
	d.recorder.Observe(ctx, "construct", err == nil, time.Since(start))
	if err != nil {
		return Report{}, err
	}
	d.recorder.ObserveNetwork(len(net.Forward), len(net.Reverse), len(net.Species()), len(net.Record))

	sp := p.Sampling
	if sp.Seed == 0 {
		sp.Seed = d.newSeed()
	}
	values, err := sp.Draw(p.SampleCount())
	if err != nil {
		return Report{}, err
	}

	run := runs.Run{
		ID:             d.newID(),
		Scenario:       string(p.Scenario),
		Steps:          p.Steps,
		ForeignLigands: p.ForeignLigands,
		Seed:           sp.Seed,
		SimulationName: net.SimulationName,
		BlobDriver:     string(d.store.Driver()),
		OutputFile:     p.OutputFile,
		Status:         runs.StatusPrepared,
	}
	report := Report{
		SimulationName: net.SimulationName,
		Forward:        len(net.Forward),
		Reverse:        len(net.Reverse),
		Record:         append([]string(nil), net.Record...),
		Concentrations: values,
	}
	logger := d.logger.With(zap.String("run", run.ID))
	logger.Info("network constructed",
		zap.String("simulation", net.SimulationName),
		zap.Int("forward", len(net.Forward)),
		zap.Int("reverse", len(net.Reverse)),
		zap.Int("samples", len(values)),
		zap.Uint64("seed", sp.Seed))

	params := siminput.Params{
		Scenario:         string(p.Scenario),
		RunTime:          p.RunTime,
		SimulationTime:   p.SimulationTime,
		SteadyStateCheck: p.SteadyStateCheck,
	}
	start = time.Now()
	for i, v := range values {
		sample, err := d.writeSample(ctx, p, variant, net, params, i, v)
		if err != nil {
			d.recorder.Observe(ctx, "write_samples", false, time.Since(start))
			return report, d.fail(ctx, &run, &report, err)
		}
		run.Samples = append(run.Samples, sample)
	}
	if err := d.writeManifests(ctx, p.Existing, values); err != nil {
		d.recorder.Observe(ctx, "write_samples", false, time.Since(start))
		return report, d.fail(ctx, &run, &report, err)
	}
	d.recorder.Observe(ctx, "write_samples", true, time.Since(start))
	if err := d.save(ctx, &run); err != nil {
		return report, err
	}
	report.absorb(run)
	if !p.Execute {
		return report, nil
	}

	report.SubmitErr = d.submit(ctx, p.Concurrency, &run)
	run.Status = runs.StatusSubmitted
	if report.SubmitErr != nil {
		run.Error = report.SubmitErr.Error()
	}
	if err := d.save(ctx, &run); err != nil {
		return report, multierr.Append(report.SubmitErr, err)
	}

	pending, waitErr := d.await(ctx, &run, p.PostProcess)
	report.absorb(run)
	report.Pending = pending
	return report, multierr.Append(report.SubmitErr, waitErr)
}

// Wait re-attaches the wait loop to a stored run and finishes it like
// Generate would.
func (d *Driver) Wait(ctx context.Context, runID string, postProcess []string) (Report, error) {
	run, err := d.ledger.GetRun(ctx, runID)
	if err != nil {
		return Report{}, err
	}
	report := Report{SimulationName: run.SimulationName}
	for _, s := range run.Samples {
		report.Concentrations = append(report.Concentrations, s.SelfLigands)
	}
	pending, err := d.await(ctx, &run, postProcess)
	report.absorb(run)
	report.Pending = pending
	return report, err
}

func (d *Driver) construct(p Plan) (*scenario.Variant, *network.Network, error) {
	variant, err := scenario.Select(p.Scenario, p.ForeignLigands,
		scenario.WithPrimary(p.Primary),
		scenario.WithLogger(d.logger))
	if err != nil {
		return nil, nil, err
	}
	net, err := variant.Construct(p.Steps)
	if err != nil {
		return nil, nil, err
	}
	return variant, net, nil
}

func (d *Driver) submit(ctx context.Context, limit int, run *runs.Run) error {
	var g errgroup.Group
	g.SetLimit(limit)
	errs := make([]error, len(run.Samples))
	for i := range run.Samples {
		s := &run.Samples[i]
		if s.Done {
			d.recorder.Submission(observability.OutcomeSkipped)
			continue
		}
		g.Go(func() error {
			start := time.Now()
			err := d.submitSample(ctx, s)
			d.recorder.Observe(ctx, "submit", err == nil, time.Since(start))
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", s.Dir, err)
				s.SubmitError = err.Error()
				d.recorder.Submission(observability.OutcomeFailed)
				d.logger.Warn("submission failed", zap.String("sample", s.Dir), zap.Error(err))
				return nil
			}
			s.Submitted = true
			s.SubmitError = ""
			d.recorder.Submission(observability.OutcomeSubmitted)
			return nil
		})
	}
	_ = g.Wait()
	return multierr.Combine(errs...)
}

func (d *Driver) submitSample(ctx context.Context, s *runs.Sample) error {
	script, err := d.read(ctx, path.Join(s.Dir, ScriptFile))
	if err != nil {
		return err
	}
	dir, _ := blob.LocalPath(d.store, s.Dir)
	_, err = d.submitter.Submit(ctx, jobs.Job{Name: s.SimulationName, Dir: dir, Script: script})
	return err
}

// await waits for the outputs of every sample that is not done and did not
// fail to submit, then runs the post-processing command once all samples
// are done.
func (d *Driver) await(ctx context.Context, run *runs.Run, postProcess []string) ([]string, error) {
	var keys, dirs []string
	waited := make(map[int]string)
	for i, s := range run.Samples {
		if s.Done || s.SubmitError != "" {
			continue
		}
		key := path.Join(s.Dir, run.OutputFile)
		waited[i] = key
		keys = append(keys, key)
		if dir, ok := blob.LocalPath(d.store, s.Dir); ok {
			dirs = append(dirs, dir)
		}
	}

	w := d.waiter
	if w.Notifier == nil && len(dirs) > 0 {
		n, err := jobs.NewFSNotifier(dirs, d.logger)
		if err != nil {
			d.logger.Warn("fs notifications unavailable", zap.Error(err))
		} else {
			defer func() { _ = n.Close() }()
			w.Notifier = n
		}
	}

	start := time.Now()
	remaining, err := w.Wait(ctx, keys)
	d.recorder.Observe(ctx, "wait", err == nil, time.Since(start))
	missing := make(map[string]bool, len(remaining))
	for _, k := range remaining {
		missing[k] = true
	}
	for i, key := range waited {
		if !missing[key] {
			run.Samples[i].Done = true
		}
	}

	switch {
	case errors.Is(err, jobs.ErrWaitStalled):
		run.Status = runs.StatusStalled
		run.Error = err.Error()
	case err != nil:
		run.Error = err.Error()
	case len(run.Pending()) > 0:
		run.Status = runs.StatusFailed
	default:
		run.Status = runs.StatusComplete
		if len(postProcess) > 0 {
			root, _ := blob.LocalPath(d.store, ".")
			start := time.Now()
			out, perr := jobs.Run(ctx, postProcess, root, nil)
			d.recorder.Observe(ctx, "post_process", perr == nil, time.Since(start))
			if perr != nil {
				run.Status = runs.StatusFailed
				run.Error = perr.Error()
				err = fmt.Errorf("post-process: %w", perr)
			} else {
				d.logger.Info("post-process finished", zap.String("output", out))
			}
		}
	}
	// record the outcome even after cancellation
	if serr := d.save(context.WithoutCancel(ctx), run); serr != nil {
		err = multierr.Append(err, serr)
	}
	return remaining, err
}

func (d *Driver) fail(ctx context.Context, run *runs.Run, report *Report, err error) error {
	run.Status = runs.StatusFailed
	run.Error = err.Error()
	report.absorb(*run)
	if serr := d.save(ctx, run); serr != nil {
		return multierr.Append(err, serr)
	}
	return err
}

func (d *Driver) save(ctx context.Context, run *runs.Run) error {
	if err := d.ledger.SaveRun(ctx, *run); err != nil {
		return fmt.Errorf("save run %s: %w", run.ID, err)
	}
	return nil
}

func (d *Driver) read(ctx context.Context, key string) ([]byte, error) {
	_, rc, err := d.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}

func (d *Driver) putArtifact(ctx context.Context, policy ExistingPolicy, key string, data []byte, contentType string, strict bool) error {
	_, err := d.store.Put(ctx, key, bytes.NewReader(data), blob.PutOptions{ContentType: contentType})
	if err == nil {
		return nil
	}
	if !errors.Is(err, blob.ErrExists) {
		return fmt.Errorf("put %s: %w", key, err)
	}
	if policy != PolicyResume {
		return fmt.Errorf("%s: %w", key, ErrSampleExists)
	}
	if !strict {
		return nil
	}
	existing, err := d.read(ctx, key)
	if err != nil {
		return err
	}
	if !bytes.Equal(existing, data) {
		return fmt.Errorf("%s differs from the stored artifact: %w", key, ErrSampleExists)
	}
	return nil
}
