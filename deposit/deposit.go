// Package deposit maps particle charge and current onto the transverse grid
// with the 9-point shape function. Deposition never mutates particle state
// and is exactly charge-conserving, which the field solvers rely on.
package deposit

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/quasistatic/gowake/grid"
)

// SourceTerms holds the charge density and the three current density
// components sampled at grid nodes for one xi slice.
type SourceTerms struct {
	Rho, Jx, Jy, Jz []float64
}

// Sample is a flat set of deposition particles, typically the fine sample
// regenerated from the coarse plasma each slice. All slices have equal
// length.
type Sample struct {
	X, Y       []float64
	Px, Py, Pz []float64
	Q, M       []float64
}

// Len returns the number of particles in the sample.
func (s *Sample) Len() int { return len(s.Q) }

// Resize grows or shrinks the sample to n particles, reusing storage.
func (s *Sample) Resize(n int) {
	grow := func(a *[]float64) {
		if cap(*a) < n {
			*a = make([]float64, n)
		}
		*a = (*a)[:n]
	}
	grow(&s.X)
	grow(&s.Y)
	grow(&s.Px)
	grow(&s.Py)
	grow(&s.Pz)
	grow(&s.Q)
	grow(&s.M)
}

// InvalidSourceTermsError reports a breach of the charge-conservation
// invariant. It is always fatal: it indicates a deposition or solver defect,
// never a recoverable condition.
type InvalidSourceTermsError struct {
	Deposited, Expected float64
}

func (e *InvalidSourceTermsError) Error() string {
	return fmt.Sprintf(
		"deposit: charge conservation violated: deposited %g, expected %g",
		e.Deposited, e.Expected,
	)
}

// ChargeTolerance is the relative tolerance of the conservation check.
const ChargeTolerance = 1e-10

// Engine deposits samples onto a shared grid using a fixed worker count.
// The worker partitioning is deterministic so that repeated runs reduce in
// the same order.
type Engine struct {
	g       *grid.Grid
	workers int

	// Per-worker accumulators, reduced into the output after the fan-out.
	bufs []workerBuf
}

type workerBuf struct {
	rho, jx, jy, jz []float64
	dropped         float64
}

// NewEngine returns an Engine for the given grid. workers must be at least 1.
func NewEngine(g *grid.Grid, workers int) *Engine {
	if workers < 1 {
		workers = 1
	}
	e := &Engine{g: g, workers: workers}
	e.bufs = make([]workerBuf, workers)
	for i := range e.bufs {
		e.bufs[i] = workerBuf{
			rho: make([]float64, g.Cells()),
			jx:  make([]float64, g.Cells()),
			jy:  make([]float64, g.Cells()),
			jz:  make([]float64, g.Cells()),
		}
	}
	return e
}

// NewSourceTerms returns zeroed source term arrays shaped for g.
func NewSourceTerms(g *grid.Grid) *SourceTerms {
	return &SourceTerms{
		Rho: make([]float64, g.Cells()),
		Jx:  make([]float64, g.Cells()),
		Jy:  make([]float64, g.Cells()),
		Jz:  make([]float64, g.Cells()),
	}
}

// Zero clears all four arrays.
func (src *SourceTerms) Zero() {
	for _, a := range [][]float64{src.Rho, src.Jx, src.Jy, src.Jz} {
		for i := range a {
			a[i] = 0
		}
	}
}

// CopyFrom overwrites src with the contents of other.
func (src *SourceTerms) CopyFrom(other *SourceTerms) {
	copy(src.Rho, other.Rho)
	copy(src.Jx, other.Jx)
	copy(src.Jy, other.Jy)
	copy(src.Jz, other.Jz)
}

// Deposit spreads the sample's charge and current onto src, which is zeroed
// first. The per-particle density is dro = q / (1 - pz/gamma) and the
// current is p * dro / gamma, the quasi-static xi-weighted forms. Particles
// whose stencil does not fit the domain are skipped; their charge is still
// counted against the conservation check, so a pusher that leaks particles
// past its boundary policy surfaces here as an InvalidSourceTermsError.
func (e *Engine) Deposit(s *Sample, src *SourceTerms) error {
	src.Zero()

	out := make(chan int, e.workers)
	for id := 0; id < e.workers-1; id++ {
		go e.chanDeposit(id, s, out)
	}
	e.chanDeposit(e.workers-1, s, out)

	total := 0.0
	for i := 0; i < e.workers; i++ {
		<-out
	}
	// Reduce in worker order, not completion order, for reproducibility.
	for id := 0; id < e.workers; id++ {
		buf := &e.bufs[id]
		floats.Add(src.Rho, buf.rho)
		floats.Add(src.Jx, buf.jx)
		floats.Add(src.Jy, buf.jy)
		floats.Add(src.Jz, buf.jz)
		total += buf.dropped
	}

	return e.checkCharge(s, src, total)
}

func (e *Engine) chanDeposit(id int, s *Sample, out chan<- int) {
	buf := &e.bufs[id]
	for _, a := range [][]float64{buf.rho, buf.jx, buf.jy, buf.jz} {
		for i := range a {
			a[i] = 0
		}
	}
	buf.dropped = 0

	n := s.Len()
	low, high := workerRange(n, id, e.workers)
	steps := e.g.Steps

	for k := low; k < high; k++ {
		q, m := s.Q[k], s.M[k]
		if q == 0 {
			continue
		}
		px, py, pz := s.Px[k], s.Py[k], s.Pz[k]
		gamma := math.Sqrt(m*m + px*px + py*py + pz*pz)
		dro := q / (1 - pz/gamma)
		djx := px * (dro / gamma)
		djy := py * (dro / gamma)
		djz := pz * (dro / gamma)

		w, err := e.g.InterpolationWeights(s.X[k], s.Y[k])
		if err != nil {
			buf.dropped += dro
			continue
		}
		grid.Spread(buf.rho, steps, w, dro)
		grid.Spread(buf.jx, steps, w, djx)
		grid.Spread(buf.jy, steps, w, djy)
		grid.Spread(buf.jz, steps, w, djz)
	}
	out <- id
}

// checkCharge verifies that the deposited charge matches the sample's total
// within ChargeTolerance. dropped is the charge of particles that could not
// be deposited; any nonzero amount is a defect since pushers remove or
// reflect particles before they leave the stencil-capable region.
func (e *Engine) checkCharge(s *Sample, src *SourceTerms, dropped float64) error {
	expected := 0.0
	for k := 0; k < s.Len(); k++ {
		q, m := s.Q[k], s.M[k]
		if q == 0 {
			continue
		}
		px, py, pz := s.Px[k], s.Py[k], s.Pz[k]
		gamma := math.Sqrt(m*m + px*px + py*py + pz*pz)
		expected += q / (1 - pz/gamma)
	}

	deposited := floats.Sum(src.Rho)
	scale := math.Abs(expected)
	if scale < 1 {
		scale = 1
	}
	if dropped != 0 || math.Abs(deposited-expected) > ChargeTolerance*scale {
		return &InvalidSourceTermsError{deposited, expected}
	}
	return nil
}

// workerRange partitions n particles between workers, giving the remainder
// to the leading workers.
func workerRange(n, id, workers int) (low, high int) {
	per := n / workers
	rem := n % workers
	low = per*id + min(id, rem)
	high = low + per
	if id < rem {
		high++
	}
	return low, high
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
