package plasma

import (
	"math"
	"testing"

	"github.com/quasistatic/gowake/deposit"
)

func TestRefineEquilibrium(t *testing.T) {
	// An unperturbed coarse population refines into fine particles sitting
	// exactly on the fine lattice, each carrying the smallness-scaled share
	// of a coarse particle's weight.
	steps, h := 30, 0.1
	coarseness, fineness := 3, 2
	pop := NewPopulation(Electron, steps, h, coarseness)
	r := NewRefiner(steps, h, coarseness, fineness)

	var s deposit.Sample
	r.Refine(pop, &s)

	nf := r.FineLen()
	if s.Len() != nf*nf {
		t.Fatalf("sample has %d particles, want %d", s.Len(), nf*nf)
	}

	smallness := 1 / float64(coarseness*coarseness*fineness*fineness)
	wantQ := Electron.Charge() * float64(coarseness*coarseness) * smallness
	for k := 0; k < s.Len(); k++ {
		if math.Abs(s.Q[k]-wantQ) > 1e-14 {
			t.Fatalf("fine particle %d has charge %g, want %g", k, s.Q[k], wantQ)
		}
		if s.Px[k] != 0 || s.Py[k] != 0 || s.Pz[k] != 0 {
			t.Fatalf("fine particle %d not at rest", k)
		}
	}

	// Positions are the fine lattice itself: no offsets to blend.
	for i := 0; i < nf; i++ {
		k := i*nf + i
		if math.Abs(s.X[k]-r.fineGrid[i]) > 1e-14 {
			t.Fatalf("fine particle (%d, %d) at x = %g, want %g",
				i, i, s.X[k], r.fineGrid[i])
		}
	}
}

func TestRefineStencilWeightsSumToOne(t *testing.T) {
	r := NewRefiner(30, 0.1, 3, 2)
	for k := range r.fineGrid {
		sum := r.infPrev[k] + r.infNext[k]
		if math.Abs(sum-1) > 1e-14 {
			t.Errorf("fine site %d: stencil weights sum to %g", k, sum)
		}
	}
}

func TestRefineBlendsOffsets(t *testing.T) {
	// A uniform coarse displacement passes through the bilinear blend
	// unchanged: every fine particle shifts by the same amount.
	steps, h := 30, 0.1
	pop := NewPopulation(Electron, steps, h, 3)
	for k := range pop.XOfft {
		pop.XOfft[k] = 0.013
		pop.YOfft[k] = -0.007
	}
	r := NewRefiner(steps, h, 3, 2)

	var s deposit.Sample
	r.Refine(pop, &s)

	nf := r.FineLen()
	for i := 0; i < nf; i++ {
		for j := 0; j < nf; j++ {
			k := i*nf + j
			if math.Abs(s.X[k]-(r.fineGrid[i]+0.013)) > 1e-14 {
				t.Fatalf("fine particle (%d, %d) at x = %g", i, j, s.X[k])
			}
			if math.Abs(s.Y[k]-(r.fineGrid[j]-0.007)) > 1e-14 {
				t.Fatalf("fine particle (%d, %d) at y = %g", i, j, s.Y[k])
			}
		}
	}
}

func TestRefineDoesNotMutateCoarse(t *testing.T) {
	pop := NewPopulation(Electron, 30, 0.1, 3)
	pop.XOfft[7] = 0.05
	pop.Px[7] = 0.3
	before := pop.Clone()

	var s deposit.Sample
	NewRefiner(30, 0.1, 3, 2).Refine(pop, &s)

	for k := 0; k < pop.Len(); k++ {
		if pop.XOfft[k] != before.XOfft[k] || pop.Px[k] != before.Px[k] ||
			pop.Q[k] != before.Q[k] {
			t.Fatalf("coarse particle %d mutated by Refine", k)
		}
	}
}
