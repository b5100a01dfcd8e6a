package network

import (
	"fmt"
	"sort"

	"tcrkp/internal/species"
)

// Network is a finished, immutable reaction network.
type Network struct {
	Kinetics       Kinetics
	RateVariant    string
	Ligands        []species.Ligand
	Steps          int
	SimulationName string
	Forward        []Reaction
	Reverse        []Reaction
	Rates          map[string]float64
	Record         []string
}

// Species returns every label that appears in a reaction, sorted.
func (n *Network) Species() []string {
	set := map[string]struct{}{}
	for _, list := range [][]Reaction{n.Forward, n.Reverse} {
		for _, r := range list {
			for _, s := range r.Reactants {
				set[s.Label()] = struct{}{}
			}
			for _, s := range r.Products {
				set[s.Label()] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Loops returns the forward reactions without a reverse counterpart.
func (n *Network) Loops() []Reaction {
	var out []Reaction
	for _, r := range n.Forward {
		if r.Loop {
			out = append(out, r)
		}
	}
	return out
}

// Validate checks the structural invariants of n against the given initial
// species:
//   - every reversible forward reaction has its exact reverse at the same
//     index and loops have none;
//   - reaction keys are unique, present in the rate table with a positive
//     value, and the table holds nothing else;
//   - every reactant has an initial count or is produced by an earlier
//     forward reaction;
//   - recorded species are unique and each exists in the network or the
//     initial set.
func Validate(n *Network, initial []string) error {
	reversible := 0
	for _, r := range n.Forward {
		if !r.Loop {
			reversible++
		}
	}
	if reversible != len(n.Reverse) {
		return fmt.Errorf("validate: %d reversible forward reactions, %d reverse: %w", reversible, len(n.Reverse), ErrUnpairedReaction)
	}

	known := make(map[string]struct{}, len(initial))
	for _, s := range initial {
		known[s] = struct{}{}
	}
	keys := map[string]struct{}{}
	checkKey := func(r Reaction) error {
		want := ReactionKey(r.ReactantLabels(), r.ProductLabels())
		if r.Key != want {
			return fmt.Errorf("validate: key %q does not match %q: %w", r.Key, want, ErrDuplicateReaction)
		}
		if _, dup := keys[r.Key]; dup {
			return fmt.Errorf("validate: %s: %w", r.Key, ErrDuplicateReaction)
		}
		keys[r.Key] = struct{}{}
		if v, ok := n.Rates[r.Key]; !ok || !(v > 0) {
			return fmt.Errorf("validate: %s: %w", r.Key, ErrNonPositiveRate)
		}
		return nil
	}

	ri := 0
	for _, f := range n.Forward {
		for _, s := range f.Reactants {
			if _, ok := known[s.Label()]; !ok {
				return fmt.Errorf("validate: %s: reactant %s: %w", f.Key, s.Label(), ErrDanglingReactant)
			}
		}
		if err := checkKey(f); err != nil {
			return err
		}
		for _, s := range f.Products {
			known[s.Label()] = struct{}{}
		}
		if f.Loop {
			continue
		}
		r := n.Reverse[ri]
		ri++
		want := ReactionKey(f.ProductLabels(), f.ReactantLabels())
		if r.Key != want || r.Loop {
			return fmt.Errorf("validate: %s paired with %s: %w", f.Key, r.Key, ErrUnpairedReaction)
		}
		if err := checkKey(r); err != nil {
			return err
		}
	}
	if len(keys) != len(n.Rates) {
		return fmt.Errorf("validate: %d rate entries for %d reactions: %w", len(n.Rates), len(keys), ErrUnpairedReaction)
	}

	recorded := map[string]struct{}{}
	for _, s := range n.Record {
		if _, dup := recorded[s]; dup {
			return fmt.Errorf("validate: record %s: %w", s, ErrDuplicateRecord)
		}
		recorded[s] = struct{}{}
		if _, ok := known[s]; !ok {
			return fmt.Errorf("validate: record %s: %w", s, ErrDanglingReactant)
		}
	}
	return nil
}
