// Package gowake is a quasi-static plasma wakefield engine. It steps
// sequentially along the co-moving coordinate xi: for each slice it evolves
// the plasma under self-consistent fields through an implicit fixed-point
// iteration coupling the field solve, the particle push and the deposition,
// then advances the beam with the converged fields.
package gowake

import (
	"fmt"

	"github.com/quasistatic/gowake/beam"
	"github.com/quasistatic/gowake/deposit"
	"github.com/quasistatic/gowake/field"
	"github.com/quasistatic/gowake/plasma"
)

// RefinePolicy sets when the fine sample is regenerated from the coarse
// population relative to the fixed-point iteration.
type RefinePolicy int

const (
	// RefinePerIteration regenerates the fine sample from the freshly
	// pushed coarse state on every inner iteration.
	RefinePerIteration RefinePolicy = iota
	// RefinePerSlice regenerates it once, on the first inner iteration,
	// and reuses that sample for the rest of the slice. Cheaper, with a
	// source term frozen at the first iterate.
	RefinePerSlice
)

// BeamMode selects the beam representation.
type BeamMode int

const (
	NoBeam BeamMode = iota
	RigidBeam
	ParticleBeam
)

// Params are the pre-validated run parameters delivered once at Initialize.
type Params struct {
	GridSteps    int
	GridStepSize float64
	XiStepSize   float64
	XiMax        float64

	PlasmaCoarseness int
	PlasmaFineness   int
	ReflectPadding   int
	PlasmaPadding    int

	SubtractionTrick float64
	Tolerance        float64
	MaxIterations    int
	MinXiStepSize    float64
	MaxRetries       int

	Boundary plasma.BoundaryPolicy
	Refine   RefinePolicy
	IonMode  plasma.IonMode

	Workers         int
	DiagnosticsEach int

	BeamMode  BeamMode
	RigidBeam beam.RigidProfile
	Beam      *beam.State
}

// State is the evolving aggregate of a run. The Manager is its sole
// mutator; every other component receives borrowed views per call.
type State struct {
	Slice int
	Xi    float64
	Dxi   float64

	Electrons *plasma.Population
	Ions      *plasma.Population // nil unless mobile ions
	Beam      *beam.State

	// Fields and Src are the previous slice's converged values: the solver
	// seed and the d/dxi source history for the next slice.
	Fields *field.FieldSet
	Src    *deposit.SourceTerms
}

// Snapshot is the read-only view handed to the diagnostics hook at the
// configured cadence. The arrays are borrowed from the live state and must
// not be retained or written past the callback.
type Snapshot struct {
	Slice      int
	Xi         float64
	Iterations int
	Residual   float64

	Fields    *field.FieldSet
	Electrons *plasma.Population
	Beam      *beam.State
}

// DiagFunc receives cadenced snapshots. Formatting, persistence and
// plotting happen outside the engine.
type DiagFunc func(*Snapshot)

// sliceResult is the tagged outcome of one slice's fixed-point iteration.
type sliceResult struct {
	converged  bool
	iterations int
	residual   float64
}

func (r sliceResult) String() string {
	tag := "converged"
	if !r.converged {
		tag = "diverged"
	}
	return fmt.Sprintf("%s after %d iterations (residual %g)", tag, r.iterations, r.residual)
}
