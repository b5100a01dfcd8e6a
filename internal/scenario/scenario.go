// Package scenario selects a network variant: initial counts, rate set,
// tracked ligands and legal stages for one of the supported scenarios.
package scenario

import (
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"tcrkp/internal/network"
	"tcrkp/internal/rates"
	"tcrkp/internal/species"
)

var (
	// ErrNoScenario is returned when no scenario was selected.
	ErrNoScenario = errors.New("scenario: no scenario selected")
	// ErrUnknownScenario is returned for an unrecognised scenario name.
	ErrUnknownScenario = errors.New("scenario: unknown scenario")
	// ErrNoSelfLigand is returned when overriding the self-ligand count of a
	// scenario that does not track the self ligand.
	ErrNoSelfLigand = errors.New("scenario: scenario has no self ligand")
	// ErrNegativeCount is returned for a negative molecule count.
	ErrNegativeCount = errors.New("scenario: negative molecule count")
)

// Kind names a scenario.
type Kind string

const (
	Foreign    Kind = "foreign"
	Self       Kind = "self"
	Competing  Kind = "competing"
	FirstOrder Kind = "first-order"
)

// Default molecule counts.
const (
	DefaultForeignLigands = 20
	receptors             = 10000
	lckCount              = 1000
	zapCount              = 1000
	latCount              = 200
	selfLigands           = 1000
	foreignOnlyLigands    = 1000
)

type count struct {
	label string
	n     int
}

type strategy struct {
	name     string
	kinetics network.Kinetics
	ligands  []species.Ligand
	initial  func(foreign int) []count
	rates    func(p rates.Primary) rates.Set
	// needsForeign rejects a zero foreign count.
	needsForeign bool
}

func secondOrderCounts(ligands ...count) []count {
	out := []count{
		{"R", receptors},
		{"Lck", lckCount},
		{"Zap", zapCount},
		{"LAT", latCount},
	}
	return append(out, ligands...)
}

var strategies = map[Kind]strategy{
	Competing: {
		name:     "kp_competing",
		kinetics: network.SecondOrder,
		ligands:  []species.Ligand{species.Foreign, species.Self},
		initial: func(foreign int) []count {
			return secondOrderCounts(count{"Lf", foreign}, count{"Ls", selfLigands})
		},
		rates:        rates.Derive,
		needsForeign: true,
	},
	Foreign: {
		name:     "kp_lf",
		kinetics: network.SecondOrder,
		ligands:  []species.Ligand{species.Foreign},
		initial: func(int) []count {
			return secondOrderCounts(count{"Lf", foreignOnlyLigands})
		},
		rates: rates.Derive,
	},
	Self: {
		name:     "kp_ls",
		kinetics: network.SecondOrder,
		ligands:  []species.Ligand{species.Self},
		initial: func(int) []count {
			return secondOrderCounts(count{"Ls", selfLigands})
		},
		rates: rates.Derive,
	},
	FirstOrder: {
		name:     "kp_first_order",
		kinetics: network.FirstOrder,
		ligands:  []species.Ligand{species.Foreign, species.Self},
		initial: func(foreign int) []count {
			return []count{{"R", receptors}, {"Lf", foreign}, {"Ls", 0}}
		},
		rates: rates.FirstOrder,
	},
}

// Kinds lists the supported scenarios in name order.
func Kinds() []Kind {
	out := make([]Kind, 0, len(strategies))
	for k := range strategies {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ParseKind validates a scenario name.
func ParseKind(s string) (Kind, error) {
	if s == "" {
		return "", ErrNoScenario
	}
	if _, ok := strategies[Kind(s)]; !ok {
		return "", fmt.Errorf("%q: %w", s, ErrUnknownScenario)
	}
	return Kind(s), nil
}

// MaxSteps returns the largest step count k supports.
func (k Kind) MaxSteps() (int, error) {
	st, err := lookup(k)
	if err != nil {
		return 0, err
	}
	return st.kinetics.MaxSteps(), nil
}

func lookup(k Kind) (strategy, error) {
	if k == "" {
		return strategy{}, ErrNoScenario
	}
	st, ok := strategies[k]
	if !ok {
		return strategy{}, fmt.Errorf("%q: %w", k, ErrUnknownScenario)
	}
	return st, nil
}

type options struct {
	primary rates.Primary
	logger  *zap.Logger
}

// Option configures Select.
type Option func(*options)

// WithPrimary replaces the primary rate constants.
func WithPrimary(p rates.Primary) Option {
	return func(o *options) { o.primary = p }
}

// WithLogger is passed on to the network builder.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Variant is a selected scenario with an empty network builder.
type Variant struct {
	Kind     Kind
	Name     string
	Kinetics network.Kinetics
	Rates    rates.Set
	Ligands  []species.Ligand

	builder *network.Builder
	initial []count
}

// Select returns the variant for kind. foreign is the requested number of
// foreign ligand molecules; scenarios without a scanned foreign count
// ignore it. The competing scenario requires at least one.
func Select(kind Kind, foreign int, opts ...Option) (*Variant, error) {
	st, err := lookup(kind)
	if err != nil {
		return nil, err
	}
	if foreign < 0 {
		return nil, fmt.Errorf("select %s: foreign ligands %d: %w", kind, foreign, ErrNegativeCount)
	}
	if st.needsForeign && foreign == 0 {
		return nil, fmt.Errorf("select %s: no foreign ligands against the self background: %w", kind, ErrNoScenario)
	}
	o := options{primary: rates.DefaultPrimary(), logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.primary.Validate(); err != nil {
		return nil, fmt.Errorf("select %s: %w", kind, err)
	}
	set := st.rates(o.primary)
	initial := st.initial(foreign)
	labels := make([]string, len(initial))
	for i, c := range initial {
		labels[i] = c.label
	}
	b, err := network.NewBuilder(set, st.ligands,
		network.WithKinetics(st.kinetics),
		network.WithInitialSpecies(labels...),
		network.WithSimulationName(st.name),
		network.WithLogger(o.logger.With(zap.String("scenario", string(kind)))),
	)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", kind, err)
	}
	return &Variant{
		Kind:     kind,
		Name:     st.name,
		Kinetics: st.kinetics,
		Rates:    set,
		Ligands:  append([]species.Ligand(nil), st.ligands...),
		builder:  b,
		initial:  initial,
	}, nil
}

// Builder returns the variant's network builder.
func (v *Variant) Builder() *network.Builder { return v.builder }

// Record returns the tracked output species registered so far.
func (v *Variant) Record() []string { return v.builder.Record() }

// InitialOrder returns the initial-count labels in declaration order.
func (v *Variant) InitialOrder() []string {
	out := make([]string, len(v.initial))
	for i, c := range v.initial {
		out[i] = c.label
	}
	return out
}

// InitialCounts returns a copy of the initial counts.
func (v *Variant) InitialCounts() map[string]int {
	out := make(map[string]int, len(v.initial))
	for _, c := range v.initial {
		out[c.label] = c.n
	}
	return out
}

// SetSelfLigandCount overrides the initial self-ligand count and nothing else.
func (v *Variant) SetSelfLigandCount(n int) error {
	if n < 0 {
		return fmt.Errorf("self ligands %d: %w", n, ErrNegativeCount)
	}
	for i := range v.initial {
		if v.initial[i].label == species.Self.Label() {
			v.initial[i].n = n
			return nil
		}
	}
	return fmt.Errorf("%s: %w", v.Kind, ErrNoSelfLigand)
}

// Construct applies binding and the first steps counted builders, then
// freezes the network.
func (v *Variant) Construct(steps int) (*network.Network, error) {
	if err := v.builder.ApplySteps(steps); err != nil {
		return nil, fmt.Errorf("construct %s steps=%d: %w", v.Kind, steps, err)
	}
	return v.builder.Build()
}
