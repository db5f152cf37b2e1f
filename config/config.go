// Package config loads and validates run parameters. The engine treats the
// result as an opaque, pre-validated set of values delivered once at
// initialization.
package config

import (
	"fmt"

	"gopkg.in/gcfg.v1"
)

const ExampleConfigFile = `[Simulation]

#######################
# Required Parameters #
#######################

# Transverse grid size in nodes per axis. Must be odd so that a node sits
# on the propagation axis.
GridSteps = 641

# Transverse grid step size in plasma units.
GridStepSize = 0.025

# Step size in the co-moving coordinate xi, and the total xi range covered.
XiStepSize = 0.005
XiMax = 1500.0

#######################
# Optional Parameters #
#######################

# Square root of the amount of cells per coarse plasma particle, and square
# root of the amount of fine particles per cell.
# PlasmaCoarseness = 3
# PlasmaFineness = 2

# Padding, in cells, between the field-solve boundary and the plasma
# reflection wall, and between the boundary and initial plasma placement.
# ReflectPadding = 5
# PlasmaPadding = 10

# Helmholtz subtraction-trick constant for the transverse field solve.
# 0 selects a plain Laplace solve.
# SubtractionTrick = 1.0

# Fixed-point iteration control: convergence tolerance on the max-abs
# FieldSet difference, iteration cap per slice, and the retry ladder for
# slices that fail to converge (the xi step is halved per retry down to
# MinXiStepSize; MaxRetries consecutive failures at the minimum are fatal).
# Tolerance = 1e-7
# MaxIterations = 20
# MinXiStepSize = 1e-4
# MaxRetries = 3

# Boundary policy for plasma particles crossing the reflection wall:
# [ Reflect | Remove ]
# BoundaryPolicy = Reflect

# Fine-sample regeneration cadence relative to the fixed-point iteration:
# [ PerIteration | PerSlice ]
# RefinePolicy = PerIteration

# Background ion model: [ Immobile | Mobile ]
# IonMode = Immobile

# Worker goroutines for deposition and particle pushes. Defaults to the
# number of logical cores.
# Workers = 8

# Snapshot cadence in slices for the diagnostics hook, and an optional
# checkpoint file written at the same cadence.
# DiagnosticsEach = 200
# CheckpointFile = run.checkpoint

[Beam]

# Beam mode: [ Rigid | Gaussian | Table | None ]
Mode = Rigid

# Rigid mode: analytic Gaussian envelope modulated along xi.
Amplitude = 0.05
Sigma = 1.0
Compress = 1.0

# Gaussian mode: a sampled macro-particle bunch.
# Particles = 100000
# Charge = -1.0
# SigmaR = 1.0
# SigmaXi = 1.0
# XiCenter = -3.0
# Gamma = 1000.0
# Seed = 42

# Table mode: whitespace table of x y xi px py pz q.
# File = path/to/beam.txt`

// ConfigurationError reports an invalid or missing parameter, surfaced
// before initialization completes.
type ConfigurationError struct {
	Param, Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("config: invalid '%s': %s", e.Param, e.Reason)
}

type Simulation struct {
	// Required
	GridSteps    int
	GridStepSize float64
	XiStepSize   float64
	XiMax        float64

	// Optional
	PlasmaCoarseness int
	PlasmaFineness   int
	ReflectPadding   int
	PlasmaPadding    int
	SubtractionTrick float64
	Tolerance        float64
	MaxIterations    int
	MinXiStepSize    float64
	MaxRetries       int
	BoundaryPolicy   string
	RefinePolicy     string
	IonMode          string
	Workers          int
	DiagnosticsEach  int
	CheckpointFile   string
}

type Beam struct {
	Mode string

	// Rigid
	Amplitude float64
	Sigma     float64
	Compress  float64
	YShift    float64

	// Gaussian
	Particles int
	Charge    float64
	SigmaR    float64
	SigmaXi   float64
	XiCenter  float64
	Gamma     float64
	Seed      int64

	// Table
	File string
}

// Wrapper maps gcfg sections onto the config structs.
type Wrapper struct {
	Simulation Simulation
	Beam       Beam
}

// Default returns a Wrapper with every optional parameter at its default.
func Default() *Wrapper {
	return &Wrapper{
		Simulation: Simulation{
			PlasmaCoarseness: 3,
			PlasmaFineness:   2,
			ReflectPadding:   5,
			PlasmaPadding:    10,
			SubtractionTrick: 1,
			Tolerance:        1e-7,
			MaxIterations:    20,
			MinXiStepSize:    1e-4,
			MaxRetries:       3,
			BoundaryPolicy:   "Reflect",
			RefinePolicy:     "PerIteration",
			IonMode:          "Immobile",
			DiagnosticsEach:  200,
		},
		Beam: Beam{Mode: "None", Sigma: 1, Compress: 1},
	}
}

// Read parses file into a defaulted Wrapper and validates it.
func Read(file string) (*Wrapper, error) {
	wrap := Default()
	if err := gcfg.ReadFileInto(wrap, file); err != nil {
		return nil, &ConfigurationError{"file", err.Error()}
	}
	if err := wrap.Validate(); err != nil {
		return nil, err
	}
	return wrap, nil
}

// ReadString parses configuration text, mainly for tests.
func ReadString(text string) (*Wrapper, error) {
	wrap := Default()
	if err := gcfg.ReadStringInto(wrap, text); err != nil {
		return nil, &ConfigurationError{"text", err.Error()}
	}
	if err := wrap.Validate(); err != nil {
		return nil, err
	}
	return wrap, nil
}

// Validate checks every parameter, returning the first violation as a
// ConfigurationError.
func (w *Wrapper) Validate() error {
	sim := &w.Simulation
	switch {
	case sim.GridSteps < 5:
		return &ConfigurationError{"GridSteps", "must be at least 5"}
	case sim.GridSteps%2 == 0:
		return &ConfigurationError{"GridSteps", "must be odd"}
	case sim.GridStepSize <= 0:
		return &ConfigurationError{"GridStepSize", "must be positive"}
	case sim.XiStepSize <= 0:
		return &ConfigurationError{"XiStepSize", "must be positive"}
	case sim.XiMax <= 0:
		return &ConfigurationError{"XiMax", "must be positive"}
	case sim.PlasmaCoarseness < 1:
		return &ConfigurationError{"PlasmaCoarseness", "must be at least 1"}
	case sim.PlasmaFineness < 1:
		return &ConfigurationError{"PlasmaFineness", "must be at least 1"}
	case sim.ReflectPadding < sim.PlasmaCoarseness+2:
		// Fine particles must never reach the pre-boundary stencil cells.
		return &ConfigurationError{
			"ReflectPadding", "must exceed PlasmaCoarseness + 1",
		}
	case sim.PlasmaPadding < sim.ReflectPadding:
		return &ConfigurationError{
			"PlasmaPadding", "must be at least ReflectPadding",
		}
	case sim.Tolerance <= 0:
		return &ConfigurationError{"Tolerance", "must be positive"}
	case sim.MaxIterations < 1:
		return &ConfigurationError{"MaxIterations", "must be at least 1"}
	case sim.MinXiStepSize <= 0 || sim.MinXiStepSize > sim.XiStepSize:
		return &ConfigurationError{
			"MinXiStepSize", "must be positive and no larger than XiStepSize",
		}
	case sim.MaxRetries < 1:
		return &ConfigurationError{"MaxRetries", "must be at least 1"}
	case sim.Workers < 0:
		return &ConfigurationError{"Workers", "must be non-negative"}
	case sim.DiagnosticsEach < 1:
		return &ConfigurationError{"DiagnosticsEach", "must be at least 1"}
	}

	if !oneOf(sim.BoundaryPolicy, "Reflect", "Remove") {
		return &ConfigurationError{"BoundaryPolicy", "must be Reflect or Remove"}
	}
	if !oneOf(sim.RefinePolicy, "PerSlice", "PerIteration") {
		return &ConfigurationError{"RefinePolicy", "must be PerSlice or PerIteration"}
	}
	if !oneOf(sim.IonMode, "Immobile", "Mobile") {
		return &ConfigurationError{"IonMode", "must be Immobile or Mobile"}
	}

	b := &w.Beam
	if !oneOf(b.Mode, "None", "Rigid", "Gaussian", "Table") {
		return &ConfigurationError{"Mode", "must be None, Rigid, Gaussian or Table"}
	}
	switch b.Mode {
	case "Rigid":
		if b.Sigma <= 0 {
			return &ConfigurationError{"Sigma", "must be positive"}
		}
		if b.Compress <= 0 {
			return &ConfigurationError{"Compress", "must be positive"}
		}
	case "Gaussian":
		if b.Particles < 1 {
			return &ConfigurationError{"Particles", "must be at least 1"}
		}
		if b.SigmaR <= 0 || b.SigmaXi <= 0 {
			return &ConfigurationError{"SigmaR/SigmaXi", "must be positive"}
		}
		if b.Gamma <= 1 {
			return &ConfigurationError{"Gamma", "must exceed 1"}
		}
	case "Table":
		if b.File == "" {
			return &ConfigurationError{"File", "must be set in Table mode"}
		}
	}
	return nil
}

func oneOf(s string, opts ...string) bool {
	for _, o := range opts {
		if s == o {
			return true
		}
	}
	return false
}
