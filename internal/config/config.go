// Package config loads the batch configuration: YAML file first, then
// TCRKP_* environment overrides. Command-line flags are applied by the CLI
// on top of the result.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"tcrkp/internal/blob"
	"tcrkp/internal/driver"
	"tcrkp/internal/infra/persistence"
	"tcrkp/internal/jobs"
	"tcrkp/internal/rates"
	"tcrkp/internal/sampling"
	"tcrkp/internal/scenario"
)

// ErrInvalid is returned by Validate and for malformed overrides.
var ErrInvalid = errors.New("config: invalid configuration")

// Config is the complete batch configuration.
type Config struct {
	Scenario         string             `yaml:"scenario"`
	Steps            int                `yaml:"steps"`
	ForeignLigands   int                `yaml:"foreign_ligands"`
	Samples          int                `yaml:"samples"` // 0: 2 for dry runs, 1000 with run
	Run              bool               `yaml:"run"`
	SteadyStateCheck bool               `yaml:"steady_state_check"`
	RunTime          float64            `yaml:"run_time"`
	SimulationTime   float64            `yaml:"simulation_time"`
	ExistingSample   string             `yaml:"existing_sample"` // fail | resume | replace
	Sampling         sampling.LogNormal `yaml:"sampling"`
	Rates            rates.Primary      `yaml:"rates"`
	Jobs             Jobs               `yaml:"jobs"`
	Blob             blob.Config        `yaml:"blob"`
	Storage          persistence.Config `yaml:"storage"`
	Logging          Logging            `yaml:"logging"`
	MetricsFile      string             `yaml:"metrics_file"`
}

// Jobs configures submission and the wait loop.
type Jobs struct {
	// Command submits one sample. It runs in the sample directory on the fs
	// driver; the rendered script is also piped to it on stdin, so "qsub"
	// alone works for remote stores.
	Command      []string      `yaml:"command"`
	Simulator    string        `yaml:"simulator"`
	OutputFile   string        `yaml:"output_file"`
	Concurrency  int           `yaml:"concurrency"`
	PollInterval time.Duration `yaml:"poll_interval"`
	MaxAttempts  int           `yaml:"max_attempts"`
	PostProcess  []string      `yaml:"post_process"`
	URLExpiry    time.Duration `yaml:"url_expiry"`
}

// Logging configures the zap logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the reference configuration.
func Default() Config {
	return Config{
		Scenario:       string(scenario.Competing),
		ForeignLigands: scenario.DefaultForeignLigands,
		RunTime:        1000,
		SimulationTime: 7,
		ExistingSample: string(driver.PolicyFail),
		Sampling:       sampling.Default(),
		Rates:          rates.DefaultPrimary(),
		Jobs: Jobs{
			Command:      append([]string(nil), jobs.DefaultCommand...),
			Simulator:    driver.DefaultSimulator,
			OutputFile:   driver.DefaultOutputFile,
			Concurrency:  4,
			PollInterval: jobs.DefaultInterval,
			MaxAttempts:  jobs.DefaultMaxAttempts,
			URLExpiry:    24 * time.Hour,
		},
		Blob:    blob.Config{Driver: blob.DriverFilesystem, FSRoot: "./runs"},
		Storage: persistence.Config{Driver: persistence.DriverSQLite, SQLitePath: "tcrkp.db"},
		Logging: Logging{Level: "info", Format: "json"},
	}
}

// Load reads path (if non-empty) over the defaults and applies environment
// overrides. It does not validate.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnvOverrides(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	str := map[string]*string{
		"TCRKP_SCENARIO":           &c.Scenario,
		"TCRKP_EXISTING_SAMPLE":    &c.ExistingSample,
		"TCRKP_LOG_LEVEL":          &c.Logging.Level,
		"TCRKP_LOG_FORMAT":         &c.Logging.Format,
		"TCRKP_METRICS_FILE":       &c.MetricsFile,
		"TCRKP_BLOB_FS_ROOT":       &c.Blob.FSRoot,
		"TCRKP_BLOB_S3_BUCKET":     &c.Blob.S3.Bucket,
		"TCRKP_BLOB_S3_REGION":     &c.Blob.S3.Region,
		"TCRKP_BLOB_S3_ENDPOINT":   &c.Blob.S3.Endpoint,
		"TCRKP_BLOB_S3_PREFIX":     &c.Blob.S3.Prefix,
		"TCRKP_BLOB_S3_ACCESS_KEY": &c.Blob.S3.AccessKeyID,
		"TCRKP_BLOB_S3_SECRET_KEY": &c.Blob.S3.SecretAccessKey,
		"TCRKP_SQLITE_PATH":        &c.Storage.SQLitePath,
		"TCRKP_POSTGRES_DSN":       &c.Storage.PostgresDSN,
	}
	for key, dst := range str {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	if v := os.Getenv("TCRKP_BLOB_DRIVER"); v != "" {
		c.Blob.Driver = blob.Driver(v)
	}
	if v := os.Getenv("TCRKP_STORAGE_DRIVER"); v != "" {
		c.Storage.Driver = persistence.Driver(v)
	}
	if v := os.Getenv("TCRKP_JOB_COMMAND"); v != "" {
		c.Jobs.Command = strings.Fields(v)
	}

	ints := map[string]*int{
		"TCRKP_STEPS":           &c.Steps,
		"TCRKP_FOREIGN_LIGANDS": &c.ForeignLigands,
		"TCRKP_SAMPLES":         &c.Samples,
	}
	for key, dst := range ints {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s=%q: %w", key, v, ErrInvalid)
		}
		*dst = n
	}
	if v := os.Getenv("TCRKP_BLOB_S3_PATH_STYLE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("TCRKP_BLOB_S3_PATH_STYLE=%q: %w", v, ErrInvalid)
		}
		c.Blob.S3.PathStyle = b
	}
	return nil
}

// Validate checks every field the driver depends on.
func (c Config) Validate() error {
	kind, err := scenario.ParseKind(c.Scenario)
	if err != nil {
		return err
	}
	maxSteps, err := kind.MaxSteps()
	if err != nil {
		return err
	}
	var problems []string
	if c.Steps < 0 || c.Steps > maxSteps {
		problems = append(problems, fmt.Sprintf("steps %d outside 0..%d for %s", c.Steps, maxSteps, kind))
	}
	if c.ForeignLigands < 0 {
		problems = append(problems, fmt.Sprintf("foreign_ligands %d is negative", c.ForeignLigands))
	}
	if c.Samples < 0 {
		problems = append(problems, fmt.Sprintf("samples %d is negative", c.Samples))
	}
	if !(c.RunTime > 0) || !(c.SimulationTime > 0) {
		problems = append(problems, "run_time and simulation_time must be positive")
	}
	if _, err := driver.ParsePolicy(c.ExistingSample); err != nil {
		problems = append(problems, err.Error())
	}
	if err := c.Sampling.Validate(); err != nil {
		problems = append(problems, err.Error())
	}
	if err := c.Rates.Validate(); err != nil {
		problems = append(problems, err.Error())
	}
	if c.Jobs.Concurrency < 1 {
		problems = append(problems, "jobs.concurrency must be at least 1")
	}
	if c.Jobs.PollInterval <= 0 || c.Jobs.MaxAttempts < 1 {
		problems = append(problems, "jobs.poll_interval and jobs.max_attempts must be positive")
	}
	if c.Run && len(c.Jobs.Command) == 0 {
		problems = append(problems, "jobs.command is required with run")
	}
	switch c.Blob.Driver {
	case "", blob.DriverFilesystem, blob.DriverMemory:
	case blob.DriverS3:
		if c.Blob.S3.Bucket == "" {
			problems = append(problems, "blob.s3.bucket is required for the s3 driver")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown blob driver %q", c.Blob.Driver))
	}
	switch c.Storage.Driver {
	case "", persistence.DriverMemory, persistence.DriverSQLite, persistence.DriverPostgres:
	default:
		problems = append(problems, fmt.Sprintf("unknown storage driver %q", c.Storage.Driver))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%s: %w", strings.Join(problems, "; "), ErrInvalid)
	}
	return nil
}

// Plan converts the configuration into a driver plan. Call Validate first.
func (c Config) Plan() driver.Plan {
	return driver.Plan{
		Scenario:         scenario.Kind(c.Scenario),
		Steps:            c.Steps,
		ForeignLigands:   c.ForeignLigands,
		Samples:          c.Samples,
		Execute:          c.Run,
		SteadyStateCheck: c.SteadyStateCheck,
		RunTime:          c.RunTime,
		SimulationTime:   c.SimulationTime,
		Sampling:         c.Sampling,
		Primary:          c.Rates,
		Existing:         driver.ExistingPolicy(c.ExistingSample),
		Concurrency:      c.Jobs.Concurrency,
		OutputFile:       c.Jobs.OutputFile,
		Simulator:        c.Jobs.Simulator,
		PostProcess:      append([]string(nil), c.Jobs.PostProcess...),
		URLExpiry:        c.Jobs.URLExpiry,
	}
}

// Waiter returns the wait loop parameters.
func (c Config) Waiter() jobs.Waiter {
	return jobs.Waiter{Interval: c.Jobs.PollInterval, MaxAttempts: c.Jobs.MaxAttempts}
}
