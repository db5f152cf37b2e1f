package beam

import (
	"math"

	"github.com/quasistatic/gowake/field"
	"github.com/quasistatic/gowake/grid"
)

// Advancer pushes beam particles through one slice using the converged
// FieldSet. Beam particles are ultra-relativistic, so the magnetic force
// uses vz close to 1 through the exact v x B form; the xi drift
// (pz/gamma - 1) per step is what slowly slips particles backward through
// the window.
type Advancer struct {
	g     *grid.Grid
	xiMin float64
}

// NewAdvancer returns an Advancer removing particles that leave the
// transverse stencil region or slip behind xiMin.
func NewAdvancer(g *grid.Grid, xiMin float64) *Advancer {
	return &Advancer{g: g, xiMin: xiMin}
}

// Advance pushes the particles of s whose xi lies in [xi-dxi, xi) and
// compacts away the ones that exit the domain. Removal is terminal.
func (a *Advancer) Advance(s *State, f *field.FieldSet, xi, dxi float64) {
	steps := a.g.Steps
	kept := s.Particles[:0]

	for i := range s.Particles {
		p := s.Particles[i]
		if p.Xi >= xi || p.Xi < xi-dxi {
			if p.Xi >= a.xiMin {
				kept = append(kept, p)
			}
			continue
		}

		w, err := a.g.InterpolationWeights(p.X, p.Y)
		if err != nil {
			continue // left the transverse domain: removed
		}
		ex := grid.Interpolate(f.Ex, steps, w)
		ey := grid.Interpolate(f.Ey, steps, w)
		ez := grid.Interpolate(f.Ez, steps, w)
		bx := grid.Interpolate(f.Bx, steps, w)
		by := grid.Interpolate(f.By, steps, w)
		bz := grid.Interpolate(f.Bz, steps, w)

		gamma := math.Sqrt(p.M*p.M + p.Px*p.Px + p.Py*p.Py + p.Pz*p.Pz)
		vx, vy, vz := p.Px/gamma, p.Py/gamma, p.Pz/gamma
		q := chargeSign(p.Q)

		p.Px += q * dxi * (ex + vy*bz - vz*by)
		p.Py += q * dxi * (ey + vz*bx - vx*bz)
		p.Pz += q * dxi * (ez + vx*by - vy*bx)

		gamma = math.Sqrt(p.M*p.M + p.Px*p.Px + p.Py*p.Py + p.Pz*p.Pz)
		p.X += p.Px / gamma * dxi
		p.Y += p.Py / gamma * dxi
		p.Xi += (p.Pz/gamma - 1) * dxi

		if _, _, err := a.g.CellIndex(p.X, p.Y); err != nil {
			continue // removed
		}
		if p.Xi < a.xiMin {
			continue // slipped out of the window
		}
		kept = append(kept, p)
	}
	s.Particles = kept
}

// chargeSign reduces a macro-particle weight to the per-particle charge
// sign for the push; the weight itself only matters for deposition.
func chargeSign(q float64) float64 {
	if q < 0 {
		return -1
	}
	return 1
}
