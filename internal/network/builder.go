// Package network builds the symbolic reaction network of the TCR kinetic
// proofreading model.
//
// A Builder grows monotonically: step-builders append forward/reverse
// reaction pairs, one-directional loops and tracked output species, in the
// fixed order of the active kinetics' stage table. Every append is checked
// (known reactants, unique keys, positive rates) and the first failure is
// sticky. Build freezes the builder and returns an immutable Network.
package network

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"tcrkp/internal/rates"
	"tcrkp/internal/species"
)

// Reaction is one directed reaction with its rate key.
type Reaction struct {
	Key       string
	Reactants []species.Species
	Products  []species.Species
	Rate      rates.Name
	Loop      bool // one-directional, no reverse counterpart
}

// ReactantLabels returns the reactant labels in order.
func (r Reaction) ReactantLabels() []string { return species.Labels(r.Reactants) }

// ProductLabels returns the product labels in order.
func (r Reaction) ProductLabels() []string { return species.Labels(r.Products) }

// ReactionKey is the canonical rate-table key of reactants -> products.
func ReactionKey(reactants, products []string) string {
	return strings.Join(reactants, "+") + "->" + strings.Join(products, "+")
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the diagnostic logger. Nil is ignored.
func WithLogger(l *zap.Logger) Option {
	return func(b *Builder) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithKinetics selects the step-builder family and its stage table.
func WithKinetics(k Kinetics) Option {
	return func(b *Builder) { b.kinetics = k }
}

// WithInitialSpecies declares species that exist before any reaction.
func WithInitialSpecies(labels ...string) Option {
	return func(b *Builder) {
		b.initial = append(b.initial, labels...)
	}
}

// WithSimulationName sets the base simulation name.
func WithSimulationName(name string) Option {
	return func(b *Builder) { b.name = name }
}

// Builder is the mutable construction state. It is owned by a single
// goroutine and frozen by Build.
type Builder struct {
	rates    rates.Set
	kinetics Kinetics
	stages   []Stage
	next     int
	ligands  []species.Ligand
	offRates map[species.Ligand]rates.Name

	initial  []string
	known    map[string]struct{}
	keys     map[string]struct{}
	forward  []Reaction
	reverse  []Reaction
	table    map[string]float64
	record   []string
	recorded map[string]struct{}

	step   int
	name   string
	frozen bool
	err    error
	logger *zap.Logger
}

// NewBuilder returns an empty builder tracking ligands in the given order.
// The first ligand is the reference species that receives the
// ligand-independent unwind pathways.
func NewBuilder(set rates.Set, ligands []species.Ligand, opts ...Option) (*Builder, error) {
	if err := set.Validate(); err != nil {
		return nil, fmt.Errorf("new builder: %w: %w", ErrNonPositiveRate, err)
	}
	if len(ligands) == 0 {
		return nil, fmt.Errorf("new builder: no ligands: %w", ErrBadLigands)
	}
	b := &Builder{
		rates:    set,
		ligands:  append([]species.Ligand(nil), ligands...),
		offRates: map[species.Ligand]rates.Name{species.Foreign: rates.ForeignOff, species.Self: rates.SelfOff},
		known:    make(map[string]struct{}),
		keys:     make(map[string]struct{}),
		table:    make(map[string]float64),
		recorded: make(map[string]struct{}),
		name:     "kp",
		logger:   zap.NewNop(),
	}
	seen := map[species.Ligand]bool{}
	for _, l := range ligands {
		if l == species.NoLigand || l > species.Self || seen[l] {
			return nil, fmt.Errorf("new builder: ligand %s: %w", l, ErrBadLigands)
		}
		seen[l] = true
	}
	for _, opt := range opts {
		opt(b)
	}
	b.stages = b.kinetics.Stages()
	if len(b.initial) == 0 {
		b.initial = append(b.initial, species.Receptor().Label())
		for _, l := range b.ligands {
			b.initial = append(b.initial, l.Label())
		}
		if b.kinetics == SecondOrder {
			b.initial = append(b.initial, species.Lck.Label(), species.Zap.Label(), species.LAT.Label())
		}
	}
	for _, l := range b.initial {
		b.known[l] = struct{}{}
	}
	for _, l := range b.ligands {
		b.appendRecord(l)
	}
	if b.err != nil {
		return nil, b.err
	}
	return b, nil
}

// Err returns the sticky construction error, if any.
func (b *Builder) Err() error { return b.err }

// Step returns the number of counted step-builders applied so far.
func (b *Builder) Step() int { return b.step }

// Name returns the current simulation name.
func (b *Builder) Name() string { return b.name }

// Kinetics returns the active kinetics.
func (b *Builder) Kinetics() Kinetics { return b.kinetics }

// Stages returns the legal stage sequence.
func (b *Builder) Stages() []Stage { return append([]Stage(nil), b.stages...) }

// Ligands returns the tracked ligands in order.
func (b *Builder) Ligands() []species.Ligand { return append([]species.Ligand(nil), b.ligands...) }

// Record returns a copy of the tracked output species.
func (b *Builder) Record() []string { return append([]string(nil), b.record...) }

// Apply runs the step-builder for stage.
func (b *Builder) Apply(stage Stage) error {
	switch {
	case stage == StageBinding:
		return b.AddInitialBinding()
	case stage.IsCycle():
		return b.AddCycle(stage)
	case stage == StageNegativeFeedback:
		return b.AddNegativeFeedback()
	case stage == StageLATPhosphorylation:
		return b.AddLATPhosphorylation()
	case stage == StageProduct:
		return b.AddProduct()
	case stage == StagePositiveFeedback:
		return b.AddPositiveFeedback()
	}
	return fmt.Errorf("apply %s: %w", stage, ErrStageNotAllowed)
}

// ApplySteps applies binding followed by the first steps counted builders.
func (b *Builder) ApplySteps(steps int) error {
	if steps < 0 || steps > len(b.stages)-1 {
		return fmt.Errorf("apply steps: %d outside [0,%d] for %s: %w", steps, len(b.stages)-1, b.kinetics, ErrStageNotAllowed)
	}
	for _, st := range b.stages[:steps+1] {
		if err := b.Apply(st); err != nil {
			return err
		}
	}
	return nil
}

// begin admits stage if it is the next one in the stage table.
func (b *Builder) begin(stage Stage) error {
	if b.frozen {
		return fmt.Errorf("%s: %w", stage, ErrFrozen)
	}
	if b.err != nil {
		return b.err
	}
	allowed := false
	for _, s := range b.stages {
		if s == stage {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("%s under %s kinetics: %w", stage, b.kinetics, ErrStageNotAllowed)
	}
	if b.next >= len(b.stages) || b.stages[b.next] != stage {
		expected := StageNone
		if b.next < len(b.stages) {
			expected = b.stages[b.next]
		}
		return fmt.Errorf("%s invoked, next is %s: %w", stage, expected, ErrOutOfOrder)
	}
	if stage != StageBinding {
		b.incrementStep(stage)
	}
	return nil
}

// finish closes a stage, advancing the cursor only on success.
func (b *Builder) finish() error {
	if b.err != nil {
		return b.err
	}
	b.next++
	return nil
}

func (b *Builder) incrementStep(stage Stage) {
	b.step++
	b.name = fmt.Sprintf("kp_steps_%d", b.step)
	b.logger.Info("kp step", zap.Int("step", b.step), zap.Stringer("stage", stage), zap.String("simulation", b.name))
}

func (b *Builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

func (b *Builder) ensureKnown(key string, reactants []species.Species) bool {
	for _, r := range reactants {
		if _, ok := b.known[r.Label()]; !ok {
			b.fail(fmt.Errorf("%s: reactant %s: %w", key, r.Label(), ErrDanglingReactant))
			return false
		}
	}
	return true
}

func (b *Builder) rate(key string, name rates.Name) (float64, bool) {
	v, ok := b.rates.Lookup(name)
	if !ok || !(v > 0) {
		b.fail(fmt.Errorf("%s: %s: %w", key, name, ErrNonPositiveRate))
		return 0, false
	}
	return v, true
}

func (b *Builder) register(r Reaction, value float64) bool {
	if _, dup := b.keys[r.Key]; dup {
		b.fail(fmt.Errorf("%s: %w", r.Key, ErrDuplicateReaction))
		return false
	}
	b.keys[r.Key] = struct{}{}
	b.table[r.Key] = value
	for _, p := range r.Products {
		b.known[p.Label()] = struct{}{}
	}
	return true
}

// reversible appends reactants -> products and its exact reverse.
func (b *Builder) reversible(reactants, products []species.Species, fwd, rev rates.Name) {
	if b.err != nil {
		return
	}
	rl, pl := species.Labels(reactants), species.Labels(products)
	fk, rk := ReactionKey(rl, pl), ReactionKey(pl, rl)
	if !b.ensureKnown(fk, reactants) {
		return
	}
	fv, ok := b.rate(fk, fwd)
	if !ok {
		return
	}
	rv, ok := b.rate(rk, rev)
	if !ok {
		return
	}
	f := Reaction{Key: fk, Reactants: reactants, Products: products, Rate: fwd}
	r := Reaction{Key: rk, Reactants: products, Products: reactants, Rate: rev}
	if fk == rk {
		b.fail(fmt.Errorf("%s: reaction is its own reverse: %w", fk, ErrDuplicateReaction))
		return
	}
	if !b.register(f, fv) || !b.register(r, rv) {
		return
	}
	b.forward = append(b.forward, f)
	b.reverse = append(b.reverse, r)
}

// loop appends a one-directional catalytic reaction.
func (b *Builder) loop(reactants, products []species.Species, rate rates.Name) {
	if b.err != nil {
		return
	}
	key := ReactionKey(species.Labels(reactants), species.Labels(products))
	if !b.ensureKnown(key, reactants) {
		return
	}
	v, ok := b.rate(key, rate)
	if !ok {
		return
	}
	f := Reaction{Key: key, Reactants: reactants, Products: products, Rate: rate, Loop: true}
	if !b.register(f, v) {
		return
	}
	b.forward = append(b.forward, f)
}

func (b *Builder) appendRecord(s species.Species) {
	if b.err != nil {
		return
	}
	label := s.Label()
	if _, dup := b.recorded[label]; dup {
		b.fail(fmt.Errorf("record %s: %w", label, ErrDuplicateRecord))
		return
	}
	b.recorded[label] = struct{}{}
	b.record = append(b.record, label)
}

// Build freezes the builder and returns the finished network.
func (b *Builder) Build() (*Network, error) {
	if b.err != nil {
		return nil, b.err
	}
	b.frozen = true
	n := &Network{
		Kinetics:       b.kinetics,
		RateVariant:    b.rates.Variant(),
		Ligands:        append([]species.Ligand(nil), b.ligands...),
		Steps:          b.step,
		SimulationName: b.name,
		Forward:        cloneReactions(b.forward),
		Reverse:        cloneReactions(b.reverse),
		Rates:          make(map[string]float64, len(b.table)),
		Record:         append([]string(nil), b.record...),
	}
	for k, v := range b.table {
		n.Rates[k] = v
	}
	return n, nil
}

func cloneReactions(in []Reaction) []Reaction {
	out := make([]Reaction, len(in))
	for i, r := range in {
		r.Reactants = append([]species.Species(nil), r.Reactants...)
		r.Products = append([]species.Species(nil), r.Products...)
		out[i] = r
	}
	return out
}
