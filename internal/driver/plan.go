package driver

import (
	"errors"
	"fmt"
	"time"

	"tcrkp/internal/rates"
	"tcrkp/internal/sampling"
	"tcrkp/internal/scenario"
)

var (
	// ErrSampleExists is returned when a sample directory (or the manifest)
	// is already present and the policy does not allow reusing it.
	ErrSampleExists = errors.New("driver: sample already exists")
	// ErrInvalidPlan is returned for an unusable Plan.
	ErrInvalidPlan = errors.New("driver: invalid plan")
)

// ExistingPolicy decides what happens to a sample directory that already
// holds artifacts.
type ExistingPolicy string

const (
	// PolicyFail refuses to touch an existing sample.
	PolicyFail ExistingPolicy = "fail"
	// PolicyResume keeps identical artifacts, fails on different ones and
	// does not resubmit samples whose output already exists.
	PolicyResume ExistingPolicy = "resume"
	// PolicyReplace deletes the sample's artifacts before writing.
	PolicyReplace ExistingPolicy = "replace"
)

// ParsePolicy maps a name to a policy; empty means PolicyFail.
func ParsePolicy(s string) (ExistingPolicy, error) {
	switch p := ExistingPolicy(s); p {
	case "":
		return PolicyFail, nil
	case PolicyFail, PolicyResume, PolicyReplace:
		return p, nil
	default:
		return "", fmt.Errorf("existing-sample policy %q: %w", s, ErrInvalidPlan)
	}
}

// Artifact names inside a sample directory.
const (
	InputFile         = "input.json"
	ScriptFile        = "qsub.sh"
	DefaultOutputFile = "mean_traj"
	DefaultSimulator  = "simulate"
)

// Default sample counts.
const (
	DryRunSamples  = 2
	ExecuteSamples = 1000
)

// Plan describes one batch.
type Plan struct {
	Scenario       scenario.Kind
	Steps          int
	ForeignLigands int
	// Samples is the number of ligand concentrations to draw. Zero selects
	// DryRunSamples, or ExecuteSamples when Execute is set.
	Samples          int
	Execute          bool
	SteadyStateCheck bool
	RunTime          float64
	SimulationTime   float64
	Sampling         sampling.LogNormal
	Primary          rates.Primary
	Existing         ExistingPolicy
	// Concurrency bounds parallel submissions; zero means 4.
	Concurrency int
	OutputFile  string
	Simulator   string
	// PostProcess runs in the store root after every output exists.
	PostProcess []string
	URLExpiry   time.Duration
}

// DefaultPlan returns the reference batch: competing scenario, zero steps,
// 20 foreign ligands.
func DefaultPlan() Plan {
	return Plan{
		Scenario:       scenario.Competing,
		ForeignLigands: scenario.DefaultForeignLigands,
		RunTime:        1000,
		SimulationTime: 7,
		Sampling:       sampling.Default(),
		Primary:        rates.DefaultPrimary(),
		Existing:       PolicyFail,
		OutputFile:     DefaultOutputFile,
		Simulator:      DefaultSimulator,
		URLExpiry:      24 * time.Hour,
	}
}

// SampleCount resolves the number of samples.
func (p Plan) SampleCount() int {
	switch {
	case p.Samples > 0:
		return p.Samples
	case p.Execute:
		return ExecuteSamples
	default:
		return DryRunSamples
	}
}

func (p Plan) withDefaults() Plan {
	if p.Existing == "" {
		p.Existing = PolicyFail
	}
	if p.Primary == (rates.Primary{}) {
		p.Primary = rates.DefaultPrimary()
	}
	if p.Sampling == (sampling.LogNormal{}) {
		p.Sampling = sampling.Default()
	}
	if p.Concurrency <= 0 {
		p.Concurrency = 4
	}
	if p.OutputFile == "" {
		p.OutputFile = DefaultOutputFile
	}
	if p.Simulator == "" {
		p.Simulator = DefaultSimulator
	}
	if p.URLExpiry <= 0 {
		p.URLExpiry = 24 * time.Hour
	}
	return p
}

// Validate reports plan errors that do not need the network.
func (p Plan) Validate() error {
	maxSteps, err := p.Scenario.MaxSteps()
	if err != nil {
		return err
	}
	if p.Steps < 0 || p.Steps > maxSteps {
		return fmt.Errorf("steps %d outside 0..%d for %s: %w", p.Steps, maxSteps, p.Scenario, ErrInvalidPlan)
	}
	if p.Samples < 0 {
		return fmt.Errorf("samples %d: %w", p.Samples, ErrInvalidPlan)
	}
	if !(p.RunTime > 0) || !(p.SimulationTime > 0) {
		return fmt.Errorf("run_time=%g simulation_time=%g: %w", p.RunTime, p.SimulationTime, ErrInvalidPlan)
	}
	if _, err := ParsePolicy(string(p.Existing)); err != nil {
		return err
	}
	return p.Sampling.Validate()
}

// SampleDir is the key prefix of sample i.
func SampleDir(i int) string { return fmt.Sprintf("sample_%d", i) }
