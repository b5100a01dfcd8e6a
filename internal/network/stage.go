package network

import "fmt"

// Stage identifies one step-builder of the network.
type Stage uint8

const (
	StageNone Stage = iota
	StageBinding
	StageCycle1
	StageCycle2
	StageCycle3
	StageCycle4
	StageNegativeFeedback
	StageCycle6
	StageLATPhosphorylation
	StageProduct
	StagePositiveFeedback
)

var stageNames = map[Stage]string{
	StageNone:               "none",
	StageBinding:            "binding",
	StageCycle1:             "cycle_1",
	StageCycle2:             "cycle_2",
	StageCycle3:             "cycle_3",
	StageCycle4:             "cycle_4",
	StageNegativeFeedback:   "negative_feedback",
	StageCycle6:             "cycle_6",
	StageLATPhosphorylation: "step_7",
	StageProduct:            "step_8",
	StagePositiveFeedback:   "positive_feedback",
}

func (s Stage) String() string {
	if n, ok := stageNames[s]; ok {
		return n
	}
	return fmt.Sprintf("Stage(%d)", uint8(s))
}

// IsCycle reports whether s is applied through AddCycle.
func (s Stage) IsCycle() bool {
	switch s {
	case StageCycle1, StageCycle2, StageCycle3, StageCycle4, StageCycle6:
		return true
	}
	return false
}

// SecondOrderStages is the canonical builder order for second-order kinetics.
// Requesting n KP steps applies the first n+1 entries.
var SecondOrderStages = []Stage{
	StageBinding,
	StageCycle1,
	StageCycle2,
	StageCycle3,
	StageCycle4,
	StageNegativeFeedback,
	StageCycle6,
	StageLATPhosphorylation,
	StageProduct,
	StagePositiveFeedback,
}

// FirstOrderStages is the builder order for the first-order kinetics variant.
var FirstOrderStages = []Stage{
	StageBinding,
	StageCycle1,
	StageCycle2,
	StageCycle3,
	StageNegativeFeedback,
}

// Kinetics selects the implementation family of the step-builders.
type Kinetics uint8

const (
	SecondOrder Kinetics = iota
	FirstOrder
)

func (k Kinetics) String() string {
	if k == FirstOrder {
		return "first-order"
	}
	return "second-order"
}

// Stages returns the canonical sequence for k.
func (k Kinetics) Stages() []Stage {
	if k == FirstOrder {
		return append([]Stage(nil), FirstOrderStages...)
	}
	return append([]Stage(nil), SecondOrderStages...)
}

// MaxSteps is the largest KP step count k supports.
func (k Kinetics) MaxSteps() int { return len(k.Stages()) - 1 }
