// Package jobs submits per-sample simulator jobs to an external scheduler and
// waits, with a bound, for their output files to appear.
package jobs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"go.uber.org/zap"
)

var (
	// ErrEmptyCommand is returned when a command has no program name.
	ErrEmptyCommand = errors.New("jobs: empty command")
	// ErrWaitStalled is returned when expected outputs are still missing
	// after the last allowed poll.
	ErrWaitStalled = errors.New("jobs: wait stalled")
)

// DefaultCommand submits the rendered script from inside the sample directory.
var DefaultCommand = []string{"qsub", "qsub.sh"}

// Job is one submission.
type Job struct {
	Name   string // simulation name, used for logging
	Dir    string // working directory; empty means the current directory
	Script []byte // rendered job script, also fed to the command on stdin
}

// Submitter hands a job to the scheduler and returns its output (usually
// the scheduler's job id line).
type Submitter interface {
	Submit(ctx context.Context, job Job) (string, error)
}

// CommandSubmitter runs an external command per job.
type CommandSubmitter struct {
	Command []string
	Logger  *zap.Logger
}

var _ Submitter = CommandSubmitter{}

// Submit implements Submitter.
func (c CommandSubmitter) Submit(ctx context.Context, job Job) (string, error) {
	argv := c.Command
	if len(argv) == 0 {
		argv = DefaultCommand
	}
	out, err := Run(ctx, argv, job.Dir, job.Script)
	if err != nil {
		return out, fmt.Errorf("submit %s: %w", job.Name, err)
	}
	if c.Logger != nil {
		c.Logger.Debug("job submitted",
			zap.String("simulation", job.Name),
			zap.String("dir", job.Dir),
			zap.String("output", out))
	}
	return out, nil
}

// Run executes argv in dir with stdin as input and returns its trimmed
// combined output. A failing command's output is part of the error.
func Run(ctx context.Context, argv []string, dir string, stdin []byte) (string, error) {
	if len(argv) == 0 || argv[0] == "" {
		return "", ErrEmptyCommand
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	raw, err := cmd.CombinedOutput()
	out := strings.TrimSpace(string(raw))
	if err != nil {
		if out != "" {
			return out, fmt.Errorf("%s: %w: %s", strings.Join(argv, " "), err, out)
		}
		return out, fmt.Errorf("%s: %w", strings.Join(argv, " "), err)
	}
	return out, nil
}
