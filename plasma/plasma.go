// Package plasma holds the particle representation of the plasma response:
// a coarse population that carries the authoritative dynamics across slices,
// and a fine sample regenerated from it each slice to feed the deposition
// with a denser, lower-noise source estimate.
package plasma

import (
	"fmt"
	"math"
)

// Species is the closed set of particle kinds the engine recognizes.
// Per-species charge sign and mass are looked up from a table, never from
// runtime type inspection.
type Species int

const (
	Electron Species = iota
	Ion
	Beam
)

var speciesTable = [...]struct {
	name   string
	charge float64
	mass   float64
}{
	Electron: {"electron", -1, 1},
	Ion:      {"ion", +1, 1836.152673},
	Beam:     {"beam", -1, 1},
}

func (sp Species) String() string { return speciesTable[sp].name }

// Charge returns the species charge in units of the elementary charge.
func (sp Species) Charge() float64 { return speciesTable[sp].charge }

// Mass returns the species mass in electron masses.
func (sp Species) Mass() float64 { return speciesTable[sp].mass }

// Population is the coarse plasma state: one macro-particle per coarse grid
// node, stored as flat parallel arrays of length Nc*Nc. Positions are kept
// as offsets from the immutable initial lattice, which both the pusher and
// the coarse-to-fine refinement rely on. Mass and charge are statistical
// weights and stay constant for each particle; a removed particle is marked
// by zeroing its charge.
type Population struct {
	Species Species
	Nc      int // particles per axis

	XInit, YInit []float64
	XOfft, YOfft []float64
	Px, Py, Pz   []float64
	M, Q         []float64
}

// NewPopulation lays out Nc x Nc particles of the given species at rest on
// the coarse lattice defined by steps usable grid cells, cell size h and the
// given coarseness. Each macro-particle carries the weight of coarseness^2
// physical-density units.
func NewPopulation(sp Species, steps int, h float64, coarseness int) *Population {
	lattice := coarseLattice(steps, h, coarseness)
	nc := len(lattice)
	n := nc * nc

	p := &Population{
		Species: sp,
		Nc:      nc,
		XInit:   make([]float64, n),
		YInit:   make([]float64, n),
		XOfft:   make([]float64, n),
		YOfft:   make([]float64, n),
		Px:      make([]float64, n),
		Py:      make([]float64, n),
		Pz:      make([]float64, n),
		M:       make([]float64, n),
		Q:       make([]float64, n),
	}

	weight := float64(coarseness * coarseness)
	for i := 0; i < nc; i++ {
		for j := 0; j < nc; j++ {
			k := i*nc + j
			p.XInit[k] = lattice[i]
			p.YInit[k] = lattice[j]
			p.M[k] = sp.Mass() * weight
			p.Q[k] = sp.Charge() * weight
		}
	}
	return p
}

// Len returns the number of coarse particles.
func (p *Population) Len() int { return len(p.Q) }

// Clone returns a deep copy, used to hold the pre-slice state while the
// fixed-point iteration reworks a trial push.
func (p *Population) Clone() *Population {
	c := &Population{Species: p.Species, Nc: p.Nc}
	c.XInit = append([]float64(nil), p.XInit...)
	c.YInit = append([]float64(nil), p.YInit...)
	c.XOfft = append([]float64(nil), p.XOfft...)
	c.YOfft = append([]float64(nil), p.YOfft...)
	c.Px = append([]float64(nil), p.Px...)
	c.Py = append([]float64(nil), p.Py...)
	c.Pz = append([]float64(nil), p.Pz...)
	c.M = append([]float64(nil), p.M...)
	c.Q = append([]float64(nil), p.Q...)
	return c
}

// CopyFrom overwrites the mutable state of p with that of other. The two
// populations must share geometry.
func (p *Population) CopyFrom(other *Population) {
	if p.Nc != other.Nc {
		panic(fmt.Sprintf("plasma: population size mismatch %d != %d", p.Nc, other.Nc))
	}
	copy(p.XOfft, other.XOfft)
	copy(p.YOfft, other.YOfft)
	copy(p.Px, other.Px)
	copy(p.Py, other.Py)
	copy(p.Pz, other.Pz)
	copy(p.Q, other.Q)
	copy(p.M, other.M)
}

// Gamma returns the Lorentz factor of particle k.
func (p *Population) Gamma(k int) float64 {
	return math.Sqrt(p.M[k]*p.M[k] + p.Px[k]*p.Px[k] + p.Py[k]*p.Py[k] + p.Pz[k]*p.Pz[k])
}

// coarseLattice returns the particle positions along one axis: a symmetric
// lattice with spacing h*coarseness covering steps grid cells.
func coarseLattice(steps int, h float64, coarseness int) []float64 {
	step := h * float64(coarseness)
	half := steps / (coarseness * 2)
	lattice := make([]float64, 0, 2*half-1)
	for i := half - 1; i > 0; i-- {
		lattice = append(lattice, -float64(i)*step)
	}
	for i := 0; i < half; i++ {
		lattice = append(lattice, float64(i)*step)
	}
	return lattice
}

// fineLattice returns the fine sample positions along one axis with spacing
// h/fineness. Odd fineness places particles on the axes, even fineness
// staggers them off both axes and cell corners.
func fineLattice(steps int, h float64, fineness int) []float64 {
	step := h / float64(fineness)
	half := steps / 2 * fineness
	var lattice []float64
	if fineness%2 == 1 {
		lattice = make([]float64, 0, 2*half-1)
		for i := half - 1; i > 0; i-- {
			lattice = append(lattice, -float64(i)*step)
		}
		for i := 0; i < half; i++ {
			lattice = append(lattice, float64(i)*step)
		}
	} else {
		lattice = make([]float64, 0, 2*half)
		for i := half - 1; i >= 0; i-- {
			lattice = append(lattice, -(0.5+float64(i))*step)
		}
		for i := 0; i < half; i++ {
			lattice = append(lattice, (0.5+float64(i))*step)
		}
	}
	return lattice
}
