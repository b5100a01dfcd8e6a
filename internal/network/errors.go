package network

import "errors"

// Network consistency errors. Callers branch with errors.Is; the builder wraps
// them with the stage and reaction that failed.
var (
	// ErrOutOfOrder is returned when a step-builder is invoked before the
	// builders that precede it in the canonical sequence.
	ErrOutOfOrder = errors.New("network: step-builder invoked out of order")
	// ErrStageNotAllowed is returned when the active kinetics has no such stage.
	ErrStageNotAllowed = errors.New("network: stage not allowed for kinetics")
	// ErrDanglingReactant is returned when a reaction consumes a species that
	// no earlier reaction produced and that has no initial count.
	ErrDanglingReactant = errors.New("network: dangling reactant")
	// ErrDuplicateReaction is returned when a reaction key is registered twice.
	ErrDuplicateReaction = errors.New("network: duplicate reaction key")
	// ErrDuplicateRecord is returned when a tracked output species repeats.
	ErrDuplicateRecord = errors.New("network: duplicate record species")
	// ErrFrozen is returned when mutating a network after Build.
	ErrFrozen = errors.New("network: builder is frozen")
	// ErrNonPositiveRate is returned when a reaction references a missing or
	// non-positive rate constant.
	ErrNonPositiveRate = errors.New("network: non-positive rate")
	// ErrUnpairedReaction is returned by Validate when a reversible reaction
	// lacks its exact reverse, or a loop has one.
	ErrUnpairedReaction = errors.New("network: unpaired reaction")
	// ErrBadLigands is returned for an empty or repeated ligand list.
	ErrBadLigands = errors.New("network: invalid ligand list")
)
