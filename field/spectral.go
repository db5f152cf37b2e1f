package field

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// The elliptic solves operate on the (n-2)x(n-2) interior of the grid: the
// perimeter of both the right-hand side and the solution is held at zero.
// Both solvers are diagonalized by a 2D sine or cosine transform with
// Samarskiy-Nikolaev eigenvalue multipliers; applying the type-I transform
// twice recovers the sequence up to a known scale, which is folded into the
// multiplier table.

// DirichletSolver solves Laplace u = -rhs with u = 0 on the boundary. It is
// used for Ez and Bz.
type DirichletSolver struct {
	n int // full grid size per axis
	m int // interior size, n-2

	dst *fourier.DST
	mul []float64

	scratch []float64
}

// NewDirichletSolver returns a solver for an n x n grid with step size h.
func NewDirichletSolver(n int, h float64) *DirichletSolver {
	m := n - 2
	s := &DirichletSolver{
		n:       n,
		m:       m,
		dst:     fourier.NewDST(m),
		mul:     make([]float64, m*m),
		scratch: make([]float64, m),
	}

	// Interior modes run 1..m; a double DST-I over both axes scales the
	// sequence by (2(m+1))^2.
	lamb := make([]float64, m)
	for k := 0; k < m; k++ {
		sin := math.Sin(float64(k+1) * math.Pi / (2 * float64(m+1)))
		lamb[k] = 4 / (h * h) * sin * sin
	}
	norm := 4 * float64(m+1) * float64(m+1)
	for i := 0; i < m; i++ {
		for j := 0; j < m; j++ {
			s.mul[i*m+j] = 1 / (norm * (lamb[i] + lamb[j]))
		}
	}
	return s
}

// Solve solves for out given the interior right-hand side rhs, both packed
// as full n x n grid arrays. The perimeter of rhs is ignored; the perimeter
// of out is set to zero.
func (s *DirichletSolver) Solve(out, rhs []float64) {
	inner := gatherInterior(rhs, s.n, s.m)
	transform2D(inner, s.m, s.scratch, s.dst.Transform)
	for i := range inner {
		inner[i] *= s.mul[i]
	}
	transform2D(inner, s.m, s.scratch, s.dst.Transform)
	scatterInterior(out, inner, s.n, s.m)
}

// MixedSolver solves the Helmholtz equation (Laplace - shift) u = -rhs with
// homogeneous Neumann-type boundary conditions, for the transverse field
// components. The shift is the subtraction-trick constant that keeps the
// fixed-point iteration contractive; shift = 0 degrades to a pure Laplace
// solve with the zero mode dropped.
type MixedSolver struct {
	n int
	m int

	dct *fourier.DCT
	mul []float64

	scratch []float64
}

// NewMixedSolver returns a solver for an n x n grid with step size h and the
// given subtraction-trick shift.
func NewMixedSolver(n int, h float64, shift float64) *MixedSolver {
	m := n - 2
	s := &MixedSolver{
		n:       n,
		m:       m,
		dct:     fourier.NewDCT(m),
		mul:     make([]float64, m*m),
		scratch: make([]float64, m),
	}

	// Cosine modes run 0..m-1; a double DCT-I over both axes scales the
	// sequence by (2(m-1))^2.
	lamb := make([]float64, m)
	for k := 0; k < m; k++ {
		sin := math.Sin(float64(k) * math.Pi / (2 * float64(m-1)))
		lamb[k] = 4 / (h * h) * sin * sin
	}
	norm := 4 * float64(m-1) * float64(m-1)
	for i := 0; i < m; i++ {
		for j := 0; j < m; j++ {
			denom := lamb[i] + lamb[j] + shift
			if denom == 0 {
				// Zero mode of the pure Laplace solve is undetermined;
				// pin it to zero.
				s.mul[i*m+j] = 0
				continue
			}
			s.mul[i*m+j] = 1 / (norm * denom)
		}
	}
	return s
}

// Solve solves for out given the interior right-hand side rhs, both packed
// as full n x n grid arrays.
func (s *MixedSolver) Solve(out, rhs []float64) {
	inner := gatherInterior(rhs, s.n, s.m)
	transform2D(inner, s.m, s.scratch, s.dct.Transform)
	for i := range inner {
		inner[i] *= s.mul[i]
	}
	transform2D(inner, s.m, s.scratch, s.dct.Transform)
	scatterInterior(out, inner, s.n, s.m)
}

// transform2D applies a 1D real transform along rows, then columns, of an
// m x m row-major array in place.
func transform2D(a []float64, m int, scratch []float64, tr func(dst, src []float64) []float64) {
	for i := 0; i < m; i++ {
		row := a[i*m : (i+1)*m]
		copy(scratch, row)
		tr(row, scratch)
	}
	col := make([]float64, m)
	for j := 0; j < m; j++ {
		for i := 0; i < m; i++ {
			col[i] = a[i*m+j]
		}
		tr(scratch, col)
		for i := 0; i < m; i++ {
			a[i*m+j] = scratch[i]
		}
	}
}

func gatherInterior(full []float64, n, m int) []float64 {
	inner := make([]float64, m*m)
	for i := 0; i < m; i++ {
		copy(inner[i*m:(i+1)*m], full[(i+1)*n+1:(i+1)*n+1+m])
	}
	return inner
}

func scatterInterior(full []float64, inner []float64, n, m int) {
	for i := range full {
		full[i] = 0
	}
	for i := 0; i < m; i++ {
		copy(full[(i+1)*n+1:(i+1)*n+1+m], inner[i*m:(i+1)*m])
	}
}
