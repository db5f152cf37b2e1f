package field

import (
	"math"
	"testing"

	"github.com/quasistatic/gowake/deposit"
	"github.com/quasistatic/gowake/grid"
)

func TestSolverVacuumIsZero(t *testing.T) {
	g := grid.New(17, 0.1)
	s := NewSolver(g, 1)

	src := deposit.NewSourceTerms(g)
	prev := deposit.NewSourceTerms(g)
	beamRho := make([]float64, g.Cells())
	avg := NewFieldSet(g)
	out := NewFieldSet(g)
	out.Ex[40] = math.NaN() // Solve must fully overwrite

	s.Solve(out, src, prev, beamRho, avg, 0.01)
	if d := Diff(out, NewFieldSet(g)); d != 0 {
		t.Errorf("vacuum fields differ from zero by %g", d)
	}
}

func TestSolverBeamFieldSigns(t *testing.T) {
	// A positive beam charge blob on the axis must point Ex outward:
	// Ex > 0 for x > 0 and, by symmetry, Ex(-x) = -Ex(x).
	g := grid.New(33, 0.1)
	s := NewSolver(g, 1)

	src := deposit.NewSourceTerms(g)
	prev := deposit.NewSourceTerms(g)
	beamRho := make([]float64, g.Cells())
	for i := 0; i < g.Steps; i++ {
		for j := 0; j < g.Steps; j++ {
			x, y := g.Coord(i), g.Coord(j)
			beamRho[g.Idx(i, j)] = 0.1 * math.Exp(-(x*x+y*y)/(2*0.25))
		}
	}

	out := NewFieldSet(g)
	s.Solve(out, src, prev, beamRho, NewFieldSet(g), 0.01)

	c := g.Steps / 2
	if ex := out.Ex[g.Idx(c+3, c)]; ex <= 0 {
		t.Errorf("Ex on the +x side is %g, want > 0", ex)
	}
	exP := out.Ex[g.Idx(c+3, c)]
	exM := out.Ex[g.Idx(c-3, c)]
	if math.Abs(exP+exM) > 1e-10 {
		t.Errorf("Ex not antisymmetric: %g vs %g", exP, exM)
	}
	// The transverse problem is x/y symmetric.
	eyP := out.Ey[g.Idx(c, c+3)]
	if math.Abs(eyP-exP) > 1e-10 {
		t.Errorf("Ey breaks x/y symmetry: %g vs %g", eyP, exP)
	}
	// No plasma current: Ez and Bz stay zero.
	for i, v := range out.Ez {
		if v != 0 {
			t.Fatalf("Ez cell %d is %g, want 0", i, v)
		}
	}
	for i, v := range out.Bz {
		if v != 0 {
			t.Fatalf("Bz cell %d is %g, want 0", i, v)
		}
	}
}
