package network

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"tcrkp/internal/rates"
	"tcrkp/internal/species"
)

var competing = []species.Ligand{species.Foreign, species.Self}

func build(t *testing.T, k Kinetics, ligands []species.Ligand, steps int) *Network {
	t.Helper()
	set := rates.Default()
	if k == FirstOrder {
		set = rates.FirstOrder(rates.DefaultPrimary())
	}
	b, err := NewBuilder(set, ligands, WithKinetics(k))
	require.NoError(t, err)
	require.NoError(t, b.ApplySteps(steps))
	n, err := b.Build()
	require.NoError(t, err)
	return n
}

func TestCompetingTwoSteps(t *testing.T) {
	n := build(t, SecondOrder, competing, 2)

	want := []string{"Lf", "Ls", "RLf", "RLs", "RLf_Lck", "RLs_Lck", "RPLf_Lck", "RPLs_Lck"}
	if diff := cmp.Diff(want, n.Record); diff != "" {
		t.Fatalf("record mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 2, n.Steps)
	assert.Equal(t, "kp_steps_2", n.SimulationName)

	assert.Contains(t, n.Rates, "R_Lck->R+Lck")
	assert.Contains(t, n.Rates, "RP->R")
	// the unwind chain belongs to the reference ligand only, so there is one
	// copy even though both ligands reach R_Lck
	assert.Contains(t, n.Rates, "RLs_Lck->R_Lck+Ls")
	assert.Contains(t, n.Rates, "RLf_Lck->R_Lck+Lf")

	assert.InDelta(t, 0.0022, n.Rates["R+Lf->RLf"], 1e-12)
	assert.InDelta(t, 0.2, n.Rates["RLf->R+Lf"], 1e-12)
	assert.InDelta(t, 2.0, n.Rates["RLs->R+Ls"], 1e-12)
	require.NoError(t, Validate(n, []string{"R", "Lf", "Ls", "Lck", "Zap", "LAT"}))
}

func TestReactionCountsPerStep(t *testing.T) {
	forward := []int{2, 7, 13, 19, 25, 30, 37, 41, 43, 45}
	reverse := []int{2, 7, 13, 19, 25, 25, 32, 32, 34, 34}
	record := []int{4, 6, 8, 10, 12, 12, 14, 16, 18, 18}
	for steps := 0; steps <= SecondOrder.MaxSteps(); steps++ {
		n := build(t, SecondOrder, competing, steps)
		assert.Len(t, n.Forward, forward[steps], "steps=%d", steps)
		assert.Len(t, n.Reverse, reverse[steps], "steps=%d", steps)
		assert.Len(t, n.Record, record[steps], "steps=%d", steps)
		assert.Len(t, n.Rates, forward[steps]+reverse[steps], "steps=%d", steps)
		require.NoError(t, Validate(n, []string{"R", "Lf", "Ls", "Lck", "Zap", "LAT"}), "steps=%d", steps)
	}
}

func TestDeterministic(t *testing.T) {
	for steps := 0; steps <= SecondOrder.MaxSteps(); steps++ {
		a := build(t, SecondOrder, competing, steps)
		b := build(t, SecondOrder, competing, steps)
		if diff := cmp.Diff(a, b); diff != "" {
			t.Fatalf("steps=%d: networks differ (-a +b):\n%s", steps, diff)
		}
	}
}

func TestReversePairing(t *testing.T) {
	n := build(t, SecondOrder, competing, SecondOrder.MaxSteps())
	ri := 0
	for _, f := range n.Forward {
		if f.Loop {
			continue
		}
		r := n.Reverse[ri]
		ri++
		assert.Equal(t, f.ReactantLabels(), r.ProductLabels(), f.Key)
		assert.Equal(t, f.ProductLabels(), r.ReactantLabels(), f.Key)
	}
	assert.Equal(t, len(n.Reverse), ri)
}

func TestFullNetworkSpecies(t *testing.T) {
	n := build(t, SecondOrder, competing, SecondOrder.MaxSteps())
	got := n.Species()
	for _, s := range []string{
		"RLs_LckI", "LckI", "RPLf_Lck_Zap_P_LAT", "RP_Zap_P_LAT", "RP_Zap_LAT",
		"RP_Zap", "Lf_LATP", "Ls_Product",
	} {
		assert.Contains(t, got, s)
	}
	for _, s := range got {
		_, err := species.Parse(s)
		assert.NoError(t, err, s)
	}
	assert.Contains(t, n.Rates, "RP_Zap_LAT->LAT+RP_Zap")
	assert.Contains(t, n.Rates, "Lf_LATP+Lf_Product->Lf_Product+Lf_Product")
	assert.Len(t, n.Loops(), 11)
}

func TestRecordOrder(t *testing.T) {
	n := build(t, SecondOrder, []species.Ligand{species.Foreign}, SecondOrder.MaxSteps())
	assert.Equal(t, []string{
		"Lf", "RLf", "RLf_Lck", "RPLf_Lck", "RPLf_Lck_Zap", "RPLf_Lck_Zap_P",
		"RPLf_Lck_Zap_P_LAT", "Lf_LATP", "Lf_Product",
	}, n.Record)

	// neither feedback stage adds a tracked species
	before := build(t, SecondOrder, competing, 4)
	after := build(t, SecondOrder, competing, 5)
	assert.Equal(t, before.Record, after.Record)
	assert.NotContains(t, after.Record, "RLf_LckI")
	assert.Contains(t, after.Species(), "RLf_LckI")
	assert.Equal(t, build(t, SecondOrder, competing, 8).Record, build(t, SecondOrder, competing, 9).Record)
}

func TestSingleLigandScenarios(t *testing.T) {
	n := build(t, SecondOrder, []species.Ligand{species.Self}, 1)
	assert.Equal(t, []string{"Ls", "RLs", "RLs_Lck"}, n.Record)
	// the self ligand is the reference here and owns the unwind
	assert.Contains(t, n.Rates, "R_Lck->R+Lck")
}

func TestFirstOrder(t *testing.T) {
	n := build(t, FirstOrder, competing, FirstOrder.MaxSteps())
	assert.Equal(t, 4, FirstOrder.MaxSteps())
	assert.Equal(t, []string{
		"Lf", "Ls", "RLf", "RLs", "RLf_Lck", "RLs_Lck",
		"RPLf_Lck", "RPLs_Lck", "RPLf_Lck_Zap", "RPLs_Lck_Zap",
	}, n.Record)
	assert.Contains(t, n.Rates, "RLf->RLf_Lck")
	assert.Contains(t, n.Rates, "RP_Lck_Zap->RP_Zap")
	assert.Contains(t, n.Rates, "RPLs_Lck_Zap+RLs_Lck->RLs+RPLs_Lck_Zap")
	assert.InDelta(t, 10.0, n.Rates["RLf->RLf_Lck"], 1e-12)
	require.NoError(t, Validate(n, []string{"R", "Lf", "Ls"}))
}

func TestOrderingErrors(t *testing.T) {
	b, err := NewBuilder(rates.Default(), competing)
	require.NoError(t, err)

	assert.ErrorIs(t, b.AddCycle(StageCycle1), ErrOutOfOrder)
	require.NoError(t, b.AddInitialBinding())
	assert.ErrorIs(t, b.AddInitialBinding(), ErrOutOfOrder)
	assert.ErrorIs(t, b.AddCycle(StageCycle2), ErrOutOfOrder)
	assert.ErrorIs(t, b.AddPositiveFeedback(), ErrOutOfOrder)
	assert.Equal(t, 0, b.Step())
	require.NoError(t, b.AddCycle(StageCycle1))
	assert.Equal(t, 1, b.Step())

	_, err = b.Build()
	require.NoError(t, err)
	assert.ErrorIs(t, b.AddCycle(StageCycle2), ErrFrozen)
}

func TestFirstOrderRejectsSecondOrderStages(t *testing.T) {
	b, err := NewBuilder(rates.FirstOrder(rates.DefaultPrimary()), competing, WithKinetics(FirstOrder))
	require.NoError(t, err)
	require.NoError(t, b.ApplySteps(4))
	assert.ErrorIs(t, b.AddLATPhosphorylation(), ErrStageNotAllowed)
	assert.ErrorIs(t, b.AddCycle(StageCycle4), ErrStageNotAllowed)
	assert.ErrorIs(t, b.ApplySteps(5), ErrStageNotAllowed)
}

func TestDanglingReactantIsSticky(t *testing.T) {
	b, err := NewBuilder(rates.Default(), []species.Ligand{species.Foreign}, WithInitialSpecies("R", "Lf"))
	require.NoError(t, err)
	require.NoError(t, b.AddInitialBinding())

	err = b.AddCycle(StageCycle1)
	require.ErrorIs(t, err, ErrDanglingReactant)
	assert.ErrorIs(t, b.AddCycle(StageCycle2), ErrDanglingReactant)
	_, err = b.Build()
	assert.ErrorIs(t, err, ErrDanglingReactant)
}

func TestNewBuilderValidation(t *testing.T) {
	_, err := NewBuilder(rates.Default(), nil)
	assert.ErrorIs(t, err, ErrBadLigands)
	_, err = NewBuilder(rates.Default(), []species.Ligand{species.Foreign, species.Foreign})
	assert.ErrorIs(t, err, ErrBadLigands)
	_, err = NewBuilder(rates.Set{}, competing)
	assert.ErrorIs(t, err, ErrNonPositiveRate)
}

func TestValidateDetectsCorruption(t *testing.T) {
	initial := []string{"R", "Lf", "Ls", "Lck", "Zap", "LAT"}

	n := build(t, SecondOrder, competing, 3)
	n.Reverse = n.Reverse[:len(n.Reverse)-1]
	assert.ErrorIs(t, Validate(n, initial), ErrUnpairedReaction)

	n = build(t, SecondOrder, competing, 3)
	n.Rates["R+Lf->RLf"] = 0
	assert.ErrorIs(t, Validate(n, initial), ErrNonPositiveRate)

	n = build(t, SecondOrder, competing, 3)
	assert.ErrorIs(t, Validate(n, []string{"R", "Lf", "Ls"}), ErrDanglingReactant)

	n = build(t, SecondOrder, competing, 3)
	n.Record = append(n.Record, "RLf")
	assert.ErrorIs(t, Validate(n, initial), ErrDuplicateRecord)
}

func TestStepLogging(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	b, err := NewBuilder(rates.Default(), competing, WithLogger(zap.New(core)))
	require.NoError(t, err)
	require.NoError(t, b.ApplySteps(3))

	entries := logs.FilterMessage("kp step").All()
	require.Len(t, entries, 3)
	assert.Equal(t, "kp_steps_3", entries[2].ContextMap()["simulation"])
	assert.Equal(t, "cycle_3", entries[2].ContextMap()["stage"])
}
