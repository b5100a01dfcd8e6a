// Package runs defines the batch run ledger: what was generated, where the
// per-sample artifacts live, and how submission and waiting went.
package runs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"
)

var (
	// ErrNotFound is returned for an unknown run ID.
	ErrNotFound = errors.New("runs: run not found")
	// ErrInvalidRun is returned when saving a run without an ID.
	ErrInvalidRun = errors.New("runs: invalid run")
)

// Status is the lifecycle state of a run.
type Status string

const (
	StatusPrepared  Status = "prepared"  // artifacts written, nothing submitted
	StatusSubmitted Status = "submitted" // jobs submitted, not yet waited on
	StatusComplete  Status = "complete"  // every expected output exists
	StatusStalled   Status = "stalled"   // wait loop gave up
	StatusFailed    Status = "failed"
)

// Sample is one per-sample working directory.
type Sample struct {
	Index          int    `json:"index"`
	SelfLigands    int    `json:"self_ligands"`
	Dir            string `json:"dir"`
	SimulationName string `json:"simulation_name"`
	InputURL       string `json:"input_url,omitempty"`
	Submitted      bool   `json:"submitted"`
	SubmitError    string `json:"submit_error,omitempty"`
	Done           bool   `json:"done"`
}

// Run is a single driver invocation.
type Run struct {
	ID             string    `json:"id"`
	Scenario       string    `json:"scenario"`
	Steps          int       `json:"steps"`
	ForeignLigands int       `json:"foreign_ligands"`
	Seed           uint64    `json:"seed"`
	SimulationName string    `json:"simulation_name"`
	BlobDriver     string    `json:"blob_driver"`
	OutputFile     string    `json:"output_file"`
	Status         Status    `json:"status"`
	Error          string    `json:"error,omitempty"`
	Samples        []Sample  `json:"samples"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Validate reports whether r can be stored.
func (r Run) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("empty id: %w", ErrInvalidRun)
	}
	return nil
}

// Clone returns a deep copy of r.
func (r Run) Clone() Run {
	r.Samples = append([]Sample(nil), r.Samples...)
	return r
}

// Pending returns the sample directories whose output is still missing.
func (r Run) Pending() []string {
	var out []string
	for _, s := range r.Samples {
		if !s.Done {
			out = append(out, s.Dir)
		}
	}
	return out
}

// Store persists runs.
type Store interface {
	// SaveRun inserts or replaces r.
	SaveRun(ctx context.Context, r Run) error
	// GetRun returns ErrNotFound for an unknown id.
	GetRun(ctx context.Context, id string) (Run, error)
	// ListRuns returns all runs, newest first.
	ListRuns(ctx context.Context) ([]Run, error)
	Close() error
}

// SortNewestFirst orders runs by CreatedAt descending, then ID.
func SortNewestFirst(list []Run) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].ID < list[j].ID
	})
}
