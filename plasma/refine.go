package plasma

import (
	"sort"

	"github.com/quasistatic/gowake/deposit"
)

// Refiner regenerates the fine sample from the coarse population. Each fine
// particle is a bilinear blend of the four coarse particles that initially
// cornered its lattice site; the blend indices and weights depend only on
// the two immutable lattices, so they are precomputed once. Refine is pure:
// it never feeds anything back into the coarse state.
type Refiner struct {
	fineGrid []float64

	// Per-axis interpolation stencil into the coarse lattice.
	prev, next []int
	infPrev    []float64
	infNext    []float64

	// 1 / (coarseness * fineness)^2: a fine particle carries this share of
	// a coarse particle's statistical weight.
	smallness float64
}

// NewRefiner builds the coarse-to-fine stencil for a plasma occupying steps
// grid cells of size h, at the given coarseness and fineness.
func NewRefiner(steps int, h float64, coarseness, fineness int) *Refiner {
	coarse := coarseLattice(steps, h, coarseness)
	fine := fineLattice(steps, h, fineness)
	nc := len(coarse)
	coarseStep := h * float64(coarseness)

	r := &Refiner{
		fineGrid:  fine,
		prev:      make([]int, len(fine)),
		next:      make([]int, len(fine)),
		infPrev:   make([]float64, len(fine)),
		infNext:   make([]float64, len(fine)),
		smallness: 1 / float64(coarseness*fineness*coarseness*fineness),
	}

	for k, x := range fine {
		idx := sort.SearchFloat64s(coarse, x)
		next := clamp(idx, 0, nc-1)
		prev := clamp(idx-1, 0, nc-1)
		r.prev[k], r.next[k] = prev, next

		switch {
		case x <= coarse[0]:
			// No coarse particle on the left; lean fully on the right one.
			r.infPrev[k], r.infNext[k] = 0, 1
		case x >= coarse[nc-1]:
			r.infPrev[k], r.infNext[k] = 1, 0
		default:
			r.infPrev[k] = (coarse[next] - x) / coarseStep
			r.infNext[k] = (x - coarse[prev]) / coarseStep
		}
	}
	return r
}

// FineLen returns the fine particle count per axis.
func (r *Refiner) FineLen() int { return len(r.fineGrid) }

// Refine fills s with the fine sample derived from pop. s is resized to
// FineLen()^2 particles.
func (r *Refiner) Refine(pop *Population, s *deposit.Sample) {
	nf := len(r.fineGrid)
	nc := pop.Nc
	s.Resize(nf * nf)

	for i := 0; i < nf; i++ {
		pi, ni := r.prev[i], r.next[i]
		ax, bx := r.infPrev[i], r.infNext[i]
		for j := 0; j < nf; j++ {
			pj, nj := r.prev[j], r.next[j]
			ay, by := r.infPrev[j], r.infNext[j]

			// Corner weights: A lower-left, B lower-right, C upper-left,
			// D upper-right.
			wA, wB, wC, wD := ax*ay, bx*ay, ax*by, bx*by
			kA, kB := pi*nc+pj, ni*nc+pj
			kC, kD := pi*nc+nj, ni*nc+nj

			k := i*nf + j
			s.X[k] = r.fineGrid[i] + blend(pop.XOfft, kA, kB, kC, kD, wA, wB, wC, wD)
			s.Y[k] = r.fineGrid[j] + blend(pop.YOfft, kA, kB, kC, kD, wA, wB, wC, wD)
			s.Px[k] = r.smallness * blend(pop.Px, kA, kB, kC, kD, wA, wB, wC, wD)
			s.Py[k] = r.smallness * blend(pop.Py, kA, kB, kC, kD, wA, wB, wC, wD)
			s.Pz[k] = r.smallness * blend(pop.Pz, kA, kB, kC, kD, wA, wB, wC, wD)
			s.M[k] = r.smallness * blend(pop.M, kA, kB, kC, kD, wA, wB, wC, wD)
			s.Q[k] = r.smallness * blend(pop.Q, kA, kB, kC, kD, wA, wB, wC, wD)
		}
	}
}

func blend(a []float64, kA, kB, kC, kD int, wA, wB, wC, wD float64) float64 {
	return wA*a[kA] + wB*a[kB] + wC*a[kC] + wD*a[kD]
}

func clamp(x, lo, hi int) int {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
