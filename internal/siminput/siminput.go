// Package siminput encodes a frozen network and its initial counts into the
// simulator's per-sample input document, and writes the sample manifests.
package siminput

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	"tcrkp/internal/network"
	"tcrkp/internal/species"
)

// ErrInvalidInput is returned when a document violates the schema.
var ErrInvalidInput = errors.New("siminput: invalid input document")

// Reaction is one directed reaction. Rate is the key into Input.Rates.
type Reaction struct {
	Rate      string   `json:"rate"`
	Reactants []string `json:"reactants"`
	Products  []string `json:"products"`
	Loop      bool     `json:"loop,omitempty"`
}

// Input is the simulator input document for one sample.
type Input struct {
	SimulationName   string             `json:"simulation_name"`
	Scenario         string             `json:"scenario,omitempty"`
	Kinetics         string             `json:"kinetics"`
	Steps            int                `json:"steps"`
	RunTime          float64            `json:"run_time"`
	SimulationTime   float64            `json:"simulation_time"`
	SteadyStateCheck bool               `json:"steady_state_check"`
	InitialCounts    map[string]int     `json:"initial_counts"`
	Forward          []Reaction         `json:"forward"`
	Reverse          []Reaction         `json:"reverse"`
	Rates            map[string]float64 `json:"rates"`
	Record           []string           `json:"record"`
}

// Params carries the run-level simulator settings.
type Params struct {
	Scenario         string
	RunTime          float64
	SimulationTime   float64
	SteadyStateCheck bool
}

// FromNetwork builds the document for one sample.
func FromNetwork(n *network.Network, name string, initial map[string]int, p Params) Input {
	in := Input{
		SimulationName:   name,
		Scenario:         p.Scenario,
		Kinetics:         n.Kinetics.String(),
		Steps:            n.Steps,
		RunTime:          p.RunTime,
		SimulationTime:   p.SimulationTime,
		SteadyStateCheck: p.SteadyStateCheck,
		InitialCounts:    make(map[string]int, len(initial)),
		Forward:          convert(n.Forward),
		Reverse:          convert(n.Reverse),
		Rates:            make(map[string]float64, len(n.Rates)),
		Record:           append([]string{}, n.Record...),
	}
	for k, v := range initial {
		in.InitialCounts[k] = v
	}
	for k, v := range n.Rates {
		in.Rates[k] = v
	}
	return in
}

func convert(list []network.Reaction) []Reaction {
	out := make([]Reaction, len(list))
	for i, r := range list {
		out[i] = Reaction{Rate: r.Key, Reactants: r.ReactantLabels(), Products: r.ProductLabels(), Loop: r.Loop}
	}
	return out
}

// Encode writes in as indented JSON. Map keys are sorted, so equal inputs
// produce identical bytes.
func Encode(w io.Writer, in Input) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(in); err != nil {
		return fmt.Errorf("encode %s: %w", in.SimulationName, err)
	}
	return nil
}

// Marshal is Encode into a byte slice.
func Marshal(in Input) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, in); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode reads and validates a document.
func Decode(r io.Reader) (Input, error) {
	var in Input
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		return Input{}, fmt.Errorf("decode: %w: %w", ErrInvalidInput, err)
	}
	if err := in.Validate(); err != nil {
		return Input{}, err
	}
	return in, nil
}

// Validate checks counts and re-runs the network consistency checks.
func (in Input) Validate() error {
	for k, v := range in.InitialCounts {
		if v < 0 {
			return fmt.Errorf("validate: initial %s=%d: %w", k, v, ErrInvalidInput)
		}
	}
	n, err := in.Network()
	if err != nil {
		return err
	}
	initial := make([]string, 0, len(in.InitialCounts))
	for k := range in.InitialCounts {
		initial = append(initial, k)
	}
	sort.Strings(initial)
	if err := network.Validate(n, initial); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return nil
}

// Network rebuilds the typed network from the document.
func (in Input) Network() (*network.Network, error) {
	n := &network.Network{
		Steps:          in.Steps,
		SimulationName: in.SimulationName,
		Rates:          in.Rates,
		Record:         in.Record,
	}
	var err error
	if n.Kinetics, err = parseKinetics(in.Kinetics); err != nil {
		return nil, err
	}
	if n.Forward, err = parseReactions(in.Forward); err != nil {
		return nil, err
	}
	if n.Reverse, err = parseReactions(in.Reverse); err != nil {
		return nil, err
	}
	return n, nil
}

func parseKinetics(s string) (network.Kinetics, error) {
	for _, k := range []network.Kinetics{network.SecondOrder, network.FirstOrder} {
		if s == k.String() {
			return k, nil
		}
	}
	return 0, fmt.Errorf("kinetics %q: %w", s, ErrInvalidInput)
}

func parseReactions(list []Reaction) ([]network.Reaction, error) {
	out := make([]network.Reaction, len(list))
	for i, r := range list {
		reactants, err := parseAll(r.Reactants)
		if err != nil {
			return nil, fmt.Errorf("%s: %w: %w", r.Rate, ErrInvalidInput, err)
		}
		products, err := parseAll(r.Products)
		if err != nil {
			return nil, fmt.Errorf("%s: %w: %w", r.Rate, ErrInvalidInput, err)
		}
		out[i] = network.Reaction{Key: r.Rate, Reactants: reactants, Products: products, Loop: r.Loop}
	}
	return out, nil
}

func parseAll(labels []string) ([]species.Species, error) {
	out := make([]species.Species, len(labels))
	for i, l := range labels {
		s, err := species.Parse(l)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}
