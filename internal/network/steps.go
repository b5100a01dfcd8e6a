package network

import (
	"fmt"

	"tcrkp/internal/rates"
	"tcrkp/internal/species"
)

// unwindFunc adds the ligand-independent pathways that return a ligand-free
// intermediate to the bare receptor. It runs for the reference ligand only.
type unwindFunc func(b *Builder, free species.Complex)

// cycle describes one proofreading step: the receptor state it starts from,
// the flag it adds, the optional free partner molecule consumed, and the
// rates of the forward/reverse pair.
type cycle struct {
	from    species.Mod
	add     species.Mod
	partner species.Species
	on, off rates.Name
	unwind  unwindFunc
}

var secondOrderCycles = map[Stage]cycle{
	StageCycle1: {
		add: species.LckBound, partner: species.Lck,
		on: rates.LckOnRPMHC, off: rates.LckOffRPMHC,
		unwind: func(b *Builder, free species.Complex) {
			b.release(free, species.LckBound, species.Lck, rates.LckOffR, rates.LckOnR)
		},
	},
	StageCycle2: {
		from: species.LckBound, add: species.Phospho,
		on: rates.POnRPMHC, off: rates.POffRPMHC,
		unwind: func(b *Builder, free species.Complex) {
			rp := b.release(free, species.LckBound, species.Lck, rates.LckOffRP, rates.LckOnR)
			b.release(rp, species.Phospho, nil, rates.POffR, rates.POnR)
		},
	},
	StageCycle3: {
		from: species.Phospho | species.LckBound, add: species.ZapBound, partner: species.Zap,
		on: rates.ZapOnRPMHC, off: rates.ZapOffRPMHC,
		unwind: func(b *Builder, free species.Complex) {
			rpZap := b.release(free, species.LckBound, species.Lck, rates.LckOffZapR, rates.LckOnR)
			b.release(rpZap, species.ZapBound, species.Zap, rates.ZapOffR, rates.ZapOnR)
		},
	},
	StageCycle4: {
		from: species.Phospho | species.LckBound | species.ZapBound, add: species.ZapPhospho,
		on: rates.POnZap, off: rates.POffZap,
		unwind: func(b *Builder, free species.Complex) {
			rpZapP := b.release(free, species.LckBound, species.Lck, rates.LckOffZapR, rates.LckOnR)
			b.release(rpZapP, species.ZapPhospho, nil, rates.POffR, rates.POnR)
		},
	},
	StageCycle6: {
		from: species.Phospho | species.LckBound | species.ZapBound | species.ZapPhospho, add: species.LATBound, partner: species.LAT,
		on: rates.LATOn, off: rates.LATOff,
		unwind: func(b *Builder, free species.Complex) {
			rpZapPLAT := b.release(free, species.LckBound, species.Lck, rates.LckOffZapR, rates.LckOnR)
			rpZapLAT := b.release(rpZapPLAT, species.ZapPhospho, nil, rates.POffR, rates.POnR)
			b.releaseLAT(rpZapLAT)
		},
	},
}

// First-order cycles bind the partner implicitly, so no free molecule is
// consumed or released.
var firstOrderCycles = map[Stage]cycle{
	StageCycle1: {
		add: species.LckBound,
		on:  rates.LckOnRPMHC, off: rates.LckOffRPMHC,
		unwind: func(b *Builder, free species.Complex) {
			b.release(free, species.LckBound, nil, rates.LckOffR, rates.LckOnR)
		},
	},
	StageCycle2: {
		from: species.LckBound, add: species.Phospho,
		on: rates.POnRPMHC, off: rates.POffRPMHC,
		unwind: func(b *Builder, free species.Complex) {
			rp := b.release(free, species.LckBound, nil, rates.LckOffRP, rates.LckOnRP)
			b.release(rp, species.Phospho, nil, rates.POffR, rates.POnR)
		},
	},
	StageCycle3: {
		from: species.Phospho | species.LckBound, add: species.ZapBound,
		on: rates.ZapOnRPMHC, off: rates.ZapOffRPMHC,
		unwind: func(b *Builder, free species.Complex) {
			rpZap := b.release(free, species.LckBound, nil, rates.LckOffZapR, rates.LckOnZapR)
			b.release(rpZap, species.ZapBound, nil, rates.ZapOffR, rates.ZapOnR)
		},
	},
}

func (b *Builder) cycles() map[Stage]cycle {
	if b.kinetics == FirstOrder {
		return firstOrderCycles
	}
	return secondOrderCycles
}

// AddInitialBinding adds R + L <-> RL for every tracked ligand and records
// each bound receptor. It does not count as a KP step.
func (b *Builder) AddInitialBinding() error {
	if err := b.begin(StageBinding); err != nil {
		return err
	}
	for _, l := range b.ligands {
		bound := b.bind(species.Receptor(), l)
		b.reversible([]species.Species{species.Receptor(), l}, []species.Species{bound}, rates.LigandOn, b.offRates[l])
		b.appendRecord(bound)
	}
	return b.finish()
}

// AddCycle applies a proofreading cycle once per tracked ligand, passing the
// ligand's zero-based index, and records each cycle's final complex.
func (b *Builder) AddCycle(stage Stage) error {
	c, ok := b.cycles()[stage]
	if !ok {
		return fmt.Errorf("%s under %s kinetics: %w", stage, b.kinetics, ErrStageNotAllowed)
	}
	if err := b.begin(stage); err != nil {
		return err
	}
	for i, l := range b.ligands {
		final := b.advance(c, l, i)
		b.appendRecord(final)
	}
	return b.finish()
}

// advance adds the bound-state step, the ligand-off reaction from its
// product, and for index 0 the unwind chain.
func (b *Builder) advance(c cycle, l species.Ligand, index int) species.Complex {
	start := species.Complex{Ligand: l, Mods: c.from}
	final := b.with(start, c.add)
	reactants := []species.Species{start}
	if c.partner != nil {
		reactants = append(reactants, c.partner)
	}
	b.reversible(reactants, []species.Species{final}, c.on, c.off)
	free := b.ligandOff(final)
	if index == 0 && b.err == nil {
		c.unwind(b, free)
	}
	return final
}

// AddNegativeFeedback adds the SHP-1 style inhibition loops.
//
// Second order: the fully phosphorylated complex converts RL_Lck into
// RL_LckI, which releases inactive LckI that recovers to Lck. First order:
// the Zap-bound complex strips Lck from RL_Lck directly. Like the positive
// loop it records nothing, so the record positions of later stages do not
// depend on whether feedback is enabled.
func (b *Builder) AddNegativeFeedback() error {
	if err := b.begin(StageNegativeFeedback); err != nil {
		return err
	}
	for i, l := range b.ligands {
		if b.kinetics == FirstOrder {
			active := species.Complex{Ligand: l, Mods: species.Phospho | species.LckBound | species.ZapBound}
			target := species.Complex{Ligand: l, Mods: species.LckBound}
			b.loop([]species.Species{active, target}, []species.Species{species.Complex{Ligand: l}, active}, rates.NegativeLoop)
			continue
		}
		active := species.Complex{Ligand: l, Mods: species.Phospho | species.LckBound | species.ZapBound | species.ZapPhospho}
		target := species.Complex{Ligand: l, Mods: species.LckBound}
		inhibited := b.with(b.without(target, species.LckBound), species.LckInactive)
		b.loop([]species.Species{active, target}, []species.Species{inhibited, active}, rates.NegativeLoop)
		b.loop([]species.Species{inhibited}, []species.Species{b.without(inhibited, species.LckInactive), species.LckI}, rates.LckIRelease)
		if i == 0 {
			b.loop([]species.Species{species.LckI}, []species.Species{species.Lck}, rates.LckRecovery)
		}
	}
	return b.finish()
}

// AddLATPhosphorylation lets the LAT-bound complex release phosphorylated
// LAT into a per-ligand pool that decays back to free LAT.
func (b *Builder) AddLATPhosphorylation() error {
	if err := b.begin(StageLATPhosphorylation); err != nil {
		return err
	}
	for _, l := range b.ligands {
		active := species.Complex{Ligand: l, Mods: species.Phospho | species.LckBound | species.ZapBound | species.ZapPhospho}
		bound := b.with(active, species.LATBound)
		latp := species.Pool{Ligand: l, Stage: species.LATP}
		b.loop([]species.Species{bound}, []species.Species{active, latp}, rates.PLATOn)
		b.loop([]species.Species{latp}, []species.Species{species.LAT}, rates.PLATOff)
		b.appendRecord(latp)
	}
	return b.finish()
}

// AddProduct adds the reversible LATP <-> Product conversion per ligand.
func (b *Builder) AddProduct() error {
	if err := b.begin(StageProduct); err != nil {
		return err
	}
	for _, l := range b.ligands {
		latp := species.Pool{Ligand: l, Stage: species.LATP}
		product := species.Pool{Ligand: l, Stage: species.Product}
		b.reversible([]species.Species{latp}, []species.Species{product}, rates.ProductOn, rates.ProductOff)
		b.appendRecord(product)
	}
	return b.finish()
}

// AddPositiveFeedback adds the autocatalytic LATP + Product -> 2 Product
// loop per ligand. It introduces no species and records nothing.
func (b *Builder) AddPositiveFeedback() error {
	if err := b.begin(StagePositiveFeedback); err != nil {
		return err
	}
	for _, l := range b.ligands {
		latp := species.Pool{Ligand: l, Stage: species.LATP}
		product := species.Pool{Ligand: l, Stage: species.Product}
		b.loop([]species.Species{latp, product}, []species.Species{product, product}, rates.PositiveLoop)
	}
	return b.finish()
}

// ligandOff adds c <-> unbound(c) + L with the ligand's own off rate.
func (b *Builder) ligandOff(c species.Complex) species.Complex {
	free := b.unbind(c)
	b.reversible([]species.Species{c}, []species.Species{free, c.Ligand}, b.offRates[c.Ligand], rates.LigandOn)
	return free
}

// release adds c <-> c-m (+ partner) and returns c-m.
func (b *Builder) release(c species.Complex, m species.Mod, partner species.Species, off, on rates.Name) species.Complex {
	out := b.without(c, m)
	products := []species.Species{out}
	if partner != nil {
		products = append(products, partner)
	}
	b.reversible([]species.Species{c}, products, off, on)
	return out
}

// releaseLAT adds RP_Zap_LAT <-> LAT + RP_Zap.
func (b *Builder) releaseLAT(c species.Complex) {
	out := b.without(c, species.LATBound)
	b.reversible([]species.Species{c}, []species.Species{species.LAT, out}, rates.LATOffRPZap, rates.LATOnRPZap)
}

func (b *Builder) with(c species.Complex, m species.Mod) species.Complex {
	out, err := c.With(m)
	if err != nil {
		b.fail(err)
	}
	return out
}

func (b *Builder) without(c species.Complex, m species.Mod) species.Complex {
	out, err := c.Without(m)
	if err != nil {
		b.fail(err)
	}
	return out
}

func (b *Builder) bind(c species.Complex, l species.Ligand) species.Complex {
	out, err := c.Bind(l)
	if err != nil {
		b.fail(err)
	}
	return out
}

func (b *Builder) unbind(c species.Complex) species.Complex {
	out, err := c.Unbind()
	if err != nil {
		b.fail(err)
	}
	return out
}
