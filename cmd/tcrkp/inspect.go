package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"tcrkp/internal/network"
	"tcrkp/internal/scenario"
	"tcrkp/internal/siminput"
)

func (c *cli) inspectCmd() *cobra.Command {
	var f planFlags
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print the constructed network without writing any sample",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f.apply(cmd, &c.cfg)
			return c.runInspect(cmd.OutOrStdout(), asJSON)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.scenario, "scenario", "", "scenario: competing, self, foreign, first-order")
	fl.IntVar(&f.steps, "steps", 0, "number of proofreading steps")
	fl.IntVar(&f.foreign, "foreign-ligands", 0, "foreign ligand molecules (competing scenario)")
	fl.BoolVar(&asJSON, "json", false, "print the simulator input document instead of a summary")
	return cmd
}

func (c *cli) runInspect(w io.Writer, asJSON bool) error {
	kind, err := scenario.ParseKind(c.cfg.Scenario)
	if err != nil {
		return err
	}
	v, err := scenario.Select(kind, c.cfg.ForeignLigands,
		scenario.WithPrimary(c.cfg.Rates),
		scenario.WithLogger(c.logger))
	if err != nil {
		return err
	}
	n, err := v.Construct(c.cfg.Steps)
	if err != nil {
		return err
	}
	if err := network.Validate(n, v.InitialOrder()); err != nil {
		return err
	}
	if asJSON {
		return siminput.Encode(w, siminput.FromNetwork(n, n.SimulationName, v.InitialCounts(), siminput.Params{
			Scenario:         string(kind),
			RunTime:          c.cfg.RunTime,
			SimulationTime:   c.cfg.SimulationTime,
			SteadyStateCheck: c.cfg.SteadyStateCheck,
		}))
	}

	fmt.Fprintf(w, "simulation: %s (%s kinetics)\n", n.SimulationName, n.Kinetics)
	fmt.Fprintf(w, "species:    %s\n", strings.Join(n.Species(), " "))
	fmt.Fprintf(w, "record:     %s\n", strings.Join(n.Record, " "))
	fmt.Fprintf(w, "forward:    %d\n", len(n.Forward))
	for _, r := range n.Forward {
		arrow := "<->"
		if r.Loop {
			arrow = "->"
		}
		fmt.Fprintf(w, "  %-8s %s %s %s  [%s=%g]\n", r.Key,
			strings.Join(r.ReactantLabels(), " + "), arrow,
			strings.Join(r.ProductLabels(), " + "), r.Rate, n.Rates[r.Key])
	}
	fmt.Fprintf(w, "reverse:    %d\n", len(n.Reverse))
	return nil
}
