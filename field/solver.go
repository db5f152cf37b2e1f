package field

import (
	"github.com/quasistatic/gowake/deposit"
	"github.com/quasistatic/gowake/grid"
)

// Solver computes a full FieldSet from one slice's source terms. The
// transverse components use the Helmholtz solve with halfstep-averaged
// previous fields in the right-hand side; Ez and Bz use the Dirichlet solve.
type Solver struct {
	g     *grid.Grid
	shift float64

	dirichlet *DirichletSolver
	mixed     *MixedSolver

	// RHS workspaces, full grid shaped with a zero perimeter.
	rhs []float64
}

// NewSolver returns a Solver for g. shift is the subtraction-trick constant
// of the transverse Helmholtz solve; 0 selects a pure Laplace solve.
func NewSolver(g *grid.Grid, shift float64) *Solver {
	return &Solver{
		g:         g,
		shift:     shift,
		dirichlet: NewDirichletSolver(g.Steps, g.CellSize),
		mixed:     NewMixedSolver(g.Steps, g.CellSize, shift),
		rhs:       make([]float64, g.Cells()),
	}
}

// Solve fills out with the fields produced by src for the current iterate.
// prevSrc carries the previous slice's transverse currents for the d/dxi
// terms, avg carries halfstep-averaged fields seeding the subtraction trick,
// beamRho is the beam charge density of the slice, and dxi is the slice step.
func (s *Solver) Solve(
	out *FieldSet, src, prevSrc *deposit.SourceTerms,
	beamRho []float64, avg *FieldSet, dxi float64,
) {
	n := s.g.Steps
	h2 := s.g.CellSize * 2

	// Ex: rhs = -(d(rho+beamRho)/dx - djx/dxi - shift*Ex_avg)
	s.eachInterior(func(i, j, idx int) {
		droDx := (src.Rho[idx+n] + beamRho[idx+n] - src.Rho[idx-n] - beamRho[idx-n]) / h2
		djxDxi := (prevSrc.Jx[idx] - src.Jx[idx]) / dxi
		s.rhs[idx] = -((droDx - djxDxi) - avg.Ex[idx]*s.shift)
	})
	s.mixed.Solve(out.Ex, s.rhs)

	// Ey: rhs = -(d(rho+beamRho)/dy - djy/dxi - shift*Ey_avg)
	s.eachInterior(func(i, j, idx int) {
		droDy := (src.Rho[idx+1] + beamRho[idx+1] - src.Rho[idx-1] - beamRho[idx-1]) / h2
		djyDxi := (prevSrc.Jy[idx] - src.Jy[idx]) / dxi
		s.rhs[idx] = -((droDy - djyDxi) - avg.Ey[idx]*s.shift)
	})
	s.mixed.Solve(out.Ey, s.rhs)

	// Bx: rhs = +(d(jz+beamRho)/dy - djy/dxi + shift*Bx_avg)
	s.eachInterior(func(i, j, idx int) {
		djzDy := (src.Jz[idx+1] + beamRho[idx+1] - src.Jz[idx-1] - beamRho[idx-1]) / h2
		djyDxi := (prevSrc.Jy[idx] - src.Jy[idx]) / dxi
		s.rhs[idx] = (djzDy - djyDxi) + avg.Bx[idx]*s.shift
	})
	s.mixed.Solve(out.Bx, s.rhs)

	// By: rhs = -(d(jz+beamRho)/dx - djx/dxi - shift*By_avg)
	s.eachInterior(func(i, j, idx int) {
		djzDx := (src.Jz[idx+n] + beamRho[idx+n] - src.Jz[idx-n] - beamRho[idx-n]) / h2
		djxDxi := (prevSrc.Jx[idx] - src.Jx[idx]) / dxi
		s.rhs[idx] = -((djzDx - djxDxi) - avg.By[idx]*s.shift)
	})
	s.mixed.Solve(out.By, s.rhs)

	// Ez: quasi-static consistency, Laplace Ez = div j_perp.
	s.eachInterior(func(i, j, idx int) {
		djxDx := (src.Jx[idx+n] - src.Jx[idx-n]) / h2
		djyDy := (src.Jy[idx+1] - src.Jy[idx-1]) / h2
		s.rhs[idx] = -(djxDx + djyDy)
	})
	s.dirichlet.Solve(out.Ez, s.rhs)

	// Bz: solenoidal response, Laplace Bz = -curl_z j_perp.
	s.eachInterior(func(i, j, idx int) {
		djyDx := (src.Jy[idx+n] - src.Jy[idx-n]) / h2
		djxDy := (src.Jx[idx+1] - src.Jx[idx-1]) / h2
		s.rhs[idx] = djyDx - djxDy
	})
	s.dirichlet.Solve(out.Bz, s.rhs)
}

// eachInterior visits every interior node, passing its flat index.
func (s *Solver) eachInterior(f func(i, j, idx int)) {
	n := s.g.Steps
	for i := 1; i < n-1; i++ {
		for j := 1; j < n-1; j++ {
			f(i, j, i*n+j)
		}
	}
}
