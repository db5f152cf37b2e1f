// Package field solves the quasi-static field equations on the transverse
// grid. The transverse components and Bz satisfy elliptic boundary-value
// problems sourced by the deposited charge and current; Ez follows from the
// quasi-static consistency relation tying it to the divergence of the
// transverse current.
package field

import (
	"math"

	"github.com/quasistatic/gowake/grid"
)

// FieldSet holds the six field components sampled at grid nodes for the
// current slice. A previous slice's FieldSet may seed the implicit solve but
// is never ground truth.
type FieldSet struct {
	Ex, Ey, Ez []float64
	Bx, By, Bz []float64
}

// NewFieldSet returns a zeroed FieldSet shaped for g.
func NewFieldSet(g *grid.Grid) *FieldSet {
	return &FieldSet{
		Ex: make([]float64, g.Cells()),
		Ey: make([]float64, g.Cells()),
		Ez: make([]float64, g.Cells()),
		Bx: make([]float64, g.Cells()),
		By: make([]float64, g.Cells()),
		Bz: make([]float64, g.Cells()),
	}
}

func (f *FieldSet) components() [][]float64 {
	return [][]float64{f.Ex, f.Ey, f.Ez, f.Bx, f.By, f.Bz}
}

// CopyFrom overwrites f with the contents of other.
func (f *FieldSet) CopyFrom(other *FieldSet) {
	dst, src := f.components(), other.components()
	for i := range dst {
		copy(dst[i], src[i])
	}
}

// Zero clears all six components.
func (f *FieldSet) Zero() {
	for _, a := range f.components() {
		for i := range a {
			a[i] = 0
		}
	}
}

// Diff returns the max-abs difference between two FieldSets, the convergence
// norm of the per-slice fixed-point iteration.
func Diff(a, b *FieldSet) float64 {
	max := 0.0
	ac, bc := a.components(), b.components()
	for i := range ac {
		for k := range ac[i] {
			d := math.Abs(ac[i][k] - bc[i][k])
			if d > max {
				max = d
			}
		}
	}
	return max
}

// Average writes (a + b) / 2 into dst. The pusher samples fields at the
// slice midpoint, so the iteration works with half-step averaged fields.
func Average(dst, a, b *FieldSet) {
	dc, ac, bc := dst.components(), a.components(), b.components()
	for i := range dc {
		for k := range dc[i] {
			dc[i][k] = (ac[i][k] + bc[i][k]) / 2
		}
	}
}
