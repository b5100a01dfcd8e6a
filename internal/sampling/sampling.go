// Package sampling draws self-ligand concentrations for a batch run.
package sampling

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// ErrInvalid is returned for non-positive sigma or a negative sample count.
var ErrInvalid = errors.New("sampling: invalid parameters")

// LogNormal parameterises the concentration distribution. The defaults are
// mu=6, sigma=1 on the natural-log scale.
type LogNormal struct {
	Mu    float64 `yaml:"mu" json:"mu"`
	Sigma float64 `yaml:"sigma" json:"sigma"`
	Seed  uint64  `yaml:"seed" json:"seed"`
}

// Default returns the reference distribution.
func Default() LogNormal { return LogNormal{Mu: 6, Sigma: 1} }

// Validate reports invalid parameters.
func (l LogNormal) Validate() error {
	if !(l.Sigma > 0) || math.IsNaN(l.Mu) || math.IsInf(l.Mu, 0) {
		return fmt.Errorf("mu=%g sigma=%g: %w", l.Mu, l.Sigma, ErrInvalid)
	}
	return nil
}

// Draw returns n samples rounded to whole molecule counts. Equal seeds give
// equal sequences.
func (l LogNormal) Draw(n int) ([]int, error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, fmt.Errorf("count %d: %w", n, ErrInvalid)
	}
	d := distuv.LogNormal{
		Mu:    l.Mu,
		Sigma: l.Sigma,
		Src:   rand.NewPCG(l.Seed, l.Seed^0x9e3779b97f4a7c15),
	}
	out := make([]int, n)
	for i := range out {
		out[i] = int(math.Round(d.Rand()))
	}
	return out, nil
}
