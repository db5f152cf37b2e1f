package plasma

import (
	"math"

	"github.com/quasistatic/gowake/field"
	"github.com/quasistatic/gowake/grid"
)

// BoundaryPolicy decides what happens to a plasma particle crossing the
// transverse boundary.
type BoundaryPolicy int

const (
	// Reflect folds the position back inside and negates the offending
	// momentum component.
	Reflect BoundaryPolicy = iota
	// Remove drops the particle from all future source terms.
	Remove
)

func (b BoundaryPolicy) String() string {
	if b == Remove {
		return "remove"
	}
	return "reflect"
}

// Pusher advances coarse plasma particles through one xi step with a
// leapfrog-split integrator: half momentum kick from (E, v x B), position
// update, completing kick. Fields are sampled at the estimated midpoint
// position. Parallel across particle ranges with the shared FieldSet
// read-only.
type Pusher struct {
	g        *grid.Grid
	boundary float64
	policy   BoundaryPolicy
	workers  int
}

// NewPusher returns a Pusher reflecting (or removing) at the given physical
// boundary.
func NewPusher(g *grid.Grid, boundary float64, policy BoundaryPolicy, workers int) *Pusher {
	if workers < 1 {
		workers = 1
	}
	return &Pusher{g: g, boundary: boundary, policy: policy, workers: workers}
}

// Estimate writes field-free midpoint position estimates for prev into
// estX, estY: each particle drifts by p/(gamma-pz) per unit xi. Used to
// seed the first fixed-point iteration of a slice.
func (p *Pusher) Estimate(prev *Population, estX, estY []float64, dxi float64) {
	for k := 0; k < prev.Len(); k++ {
		if prev.Q[k] == 0 {
			estX[k], estY[k] = prev.XOfft[k], prev.YOfft[k]
			continue
		}
		gamma := prev.Gamma(k)
		x := prev.XInit[k] + prev.XOfft[k] + prev.Px[k]/(gamma-prev.Pz[k])*dxi
		y := prev.YInit[k] + prev.YOfft[k] + prev.Py[k]/(gamma-prev.Pz[k])*dxi

		x = reflectCoord(x, p.boundary)
		y = reflectCoord(y, p.boundary)
		estX[k], estY[k] = x-prev.XInit[k], y-prev.YInit[k]
	}
}

// Push advances prev by dxi under the halfstep-averaged fields avg, writing
// the result into next. estX, estY are the midpoint offset estimates from
// Estimate or from the previous fixed-point iteration. prev is not modified.
func (p *Pusher) Push(
	next, prev *Population, avg *field.FieldSet,
	estX, estY []float64, dxi float64,
) {
	next.CopyFrom(prev)

	out := make(chan int, p.workers)
	for id := 0; id < p.workers-1; id++ {
		go p.chanPush(id, next, prev, avg, estX, estY, dxi, out)
	}
	p.chanPush(p.workers-1, next, prev, avg, estX, estY, dxi, out)
	for i := 0; i < p.workers; i++ {
		<-out
	}
}

func (p *Pusher) chanPush(
	id int, next, prev *Population, avg *field.FieldSet,
	estX, estY []float64, dxi float64, out chan<- int,
) {
	steps := p.g.Steps
	low, high := pushRange(prev.Len(), id, p.workers)

	for k := low; k < high; k++ {
		q, m := prev.Q[k], prev.M[k]
		if q == 0 {
			continue
		}

		// Sample fields at the midpoint of the previous and estimated
		// positions.
		xMid := prev.XInit[k] + (prev.XOfft[k]+estX[k])/2
		yMid := prev.YInit[k] + (prev.YOfft[k]+estY[k])/2
		w, err := p.g.InterpolationWeights(xMid, yMid)
		if err != nil {
			// The midpoint escaped the stencil region; apply the boundary
			// policy immediately rather than depositing out of domain.
			p.applyBoundary(next, k)
			continue
		}
		ex := grid.Interpolate(avg.Ex, steps, w)
		ey := grid.Interpolate(avg.Ey, steps, w)
		ez := grid.Interpolate(avg.Ez, steps, w)
		bx := grid.Interpolate(avg.Bx, steps, w)
		by := grid.Interpolate(avg.By, steps, w)
		bz := grid.Interpolate(avg.Bz, steps, w)

		opx, opy, opz := prev.Px[k], prev.Py[k], prev.Pz[k]
		px, py, pz := opx, opy, opz
		var dpx, dpy, dpz float64

		// Two half kicks against the same sampled fields; the second uses
		// the halfway-updated momentum, completing the leapfrog split.
		for half := 0; half < 2; half++ {
			gamma := math.Sqrt(m*m + px*px + py*py + pz*pz)
			vx, vy, vz := px/gamma, py/gamma, pz/gamma
			factor := q * dxi / (1 - pz/gamma)
			dpx = factor * (ex + vy*bz - vz*by)
			dpy = factor * (ey - vx*bz + vz*bx)
			dpz = factor * (ez + vx*by - vy*bx)
			px, py, pz = opx+dpx/2, opy+dpy/2, opz+dpz/2
		}

		gamma := math.Sqrt(m*m + px*px + py*py + pz*pz)
		xOfft := prev.XOfft[k] + px/(gamma-pz)*dxi
		yOfft := prev.YOfft[k] + py/(gamma-pz)*dxi
		px, py, pz = opx+dpx, opy+dpy, opz+dpz

		next.XOfft[k], next.YOfft[k] = xOfft, yOfft
		next.Px[k], next.Py[k], next.Pz[k] = px, py, pz

		x := prev.XInit[k] + xOfft
		y := prev.YInit[k] + yOfft
		if x > p.boundary || x < -p.boundary || y > p.boundary || y < -p.boundary {
			p.applyBoundary(next, k)
		}
	}
	out <- id
}

// applyBoundary handles particle k of pop crossing the wall under the
// configured policy.
func (p *Pusher) applyBoundary(pop *Population, k int) {
	if p.policy == Remove {
		pop.Q[k] = 0
		pop.Px[k], pop.Py[k], pop.Pz[k] = 0, 0, 0
		return
	}

	x := pop.XInit[k] + pop.XOfft[k]
	y := pop.YInit[k] + pop.YOfft[k]
	if x > p.boundary {
		x = 2*p.boundary - x
		pop.Px[k] = -pop.Px[k]
	} else if x < -p.boundary {
		x = -2*p.boundary - x
		pop.Px[k] = -pop.Px[k]
	}
	if y > p.boundary {
		y = 2*p.boundary - y
		pop.Py[k] = -pop.Py[k]
	} else if y < -p.boundary {
		y = -2*p.boundary - y
		pop.Py[k] = -pop.Py[k]
	}
	pop.XOfft[k] = x - pop.XInit[k]
	pop.YOfft[k] = y - pop.YInit[k]
}

func reflectCoord(x, boundary float64) float64 {
	if x > boundary {
		return 2*boundary - x
	}
	if x < -boundary {
		return -2*boundary - x
	}
	return x
}

func pushRange(n, id, workers int) (low, high int) {
	per := n / workers
	rem := n % workers
	low = per*id + minInt(id, rem)
	high = low + per
	if id < rem {
		high++
	}
	return low, high
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
