// Package beam holds the driver/witness beam. The beam probes and drives
// the plasma response but is not part of it: beam particles are pushed once
// per slice by the converged fields and never enter the per-slice
// fixed-point iteration.
package beam

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/phil-mansfield/table"

	"github.com/quasistatic/gowake/grid"
	"github.com/quasistatic/gowake/plasma"
)

// Particle is one beam macro-particle. Xi is its co-moving longitudinal
// position; Q and M are statistical weights, conserved for the particle's
// lifetime.
type Particle struct {
	X, Y, Xi   float64
	Px, Py, Pz float64
	Q, M       float64
}

// State is the ordered beam particle sequence. It persists for the whole
// run; particles exiting the transverse domain or the xi range are removed
// for good.
type State struct {
	Particles []Particle
}

// Len returns the number of live beam particles.
func (s *State) Len() int { return len(s.Particles) }

// GaussianParams describes a round Gaussian bunch.
type GaussianParams struct {
	N        int     // macro-particle count
	Charge   float64 // total charge, spread over N particles
	SigmaR   float64 // transverse RMS spot size
	SigmaXi  float64 // longitudinal RMS length
	XiCenter float64 // bunch centroid in xi (negative: behind the window head)
	Gamma    float64 // mean Lorentz factor
	Seed     int64
}

// NewGaussian samples a Gaussian bunch. Sampling is seeded and therefore
// reproducible; this is the only point where beam particles are created.
func NewGaussian(p GaussianParams) *State {
	rng := rand.New(rand.NewSource(p.Seed))
	qPer := p.Charge / float64(p.N)
	sp := plasma.Beam

	particles := make([]Particle, p.N)
	for i := range particles {
		particles[i] = Particle{
			X:  rng.NormFloat64() * p.SigmaR,
			Y:  rng.NormFloat64() * p.SigmaR,
			Xi: p.XiCenter + rng.NormFloat64()*p.SigmaXi,
			Pz: p.Gamma * sp.Mass(),
			Q:  qPer,
			M:  sp.Mass(),
		}
	}
	return &State{Particles: particles}
}

// ReadTable loads beam particles from a whitespace table with columns
// x y xi px py pz q. Mass is the beam species mass.
func ReadTable(file string) (*State, error) {
	cols, err := table.ReadTable(file, []int{0, 1, 2, 3, 4, 5, 6}, nil)
	if err != nil {
		return nil, err
	}
	n := len(cols[0])
	particles := make([]Particle, n)
	for i := 0; i < n; i++ {
		particles[i] = Particle{
			X: cols[0][i], Y: cols[1][i], Xi: cols[2][i],
			Px: cols[3][i], Py: cols[4][i], Pz: cols[5][i],
			Q: cols[6][i], M: plasma.Beam.Mass(),
		}
	}
	return &State{Particles: particles}, nil
}

// Clone returns a deep copy of the beam state.
func (s *State) Clone() *State {
	return &State{Particles: append([]Particle(nil), s.Particles...)}
}

// DepositRho spreads the charge density of particles inside the slice
// window [xi-dxi, xi) onto rho, which is zeroed first. The density is the
// per-cell charge divided by the cell area and the slice thickness.
func (s *State) DepositRho(g *grid.Grid, rho []float64, xi, dxi float64) {
	for i := range rho {
		rho[i] = 0
	}
	inv := 1 / (g.CellSize * g.CellSize * dxi)
	for i := range s.Particles {
		p := &s.Particles[i]
		if p.Xi >= xi || p.Xi < xi-dxi {
			continue
		}
		w, err := g.InterpolationWeights(p.X, p.Y)
		if err != nil {
			continue
		}
		grid.Spread(rho, g.Steps, w, p.Q*inv)
	}
}

// RigidProfile is the analytic beam density of the original minimal setup:
// a round Gaussian envelope modulated along xi. It replaces beam particles
// entirely when the rigid-beam mode is configured.
type RigidProfile struct {
	Amplitude float64
	Sigma     float64
	Compress  float64
	YShift    float64
}

// Density fills rho with the profile evaluated at slice position xi.
func (rp *RigidProfile) Density(g *grid.Grid, rho []float64, xi float64) {
	if xi < -2*math.Sqrt(2*math.Pi)/rp.Compress {
		for i := range rho {
			rho[i] = 0
		}
		return
	}
	mod := 1 - math.Cos(xi*rp.Compress*math.Sqrt(math.Pi/2))
	n := g.Steps
	for i := 0; i < n; i++ {
		x := g.Coord(i)
		for j := 0; j < n; j++ {
			y := g.Coord(j) - rp.YShift
			r2 := x*x + y*y
			rho[i*n+j] = rp.Amplitude * math.Exp(-0.5*r2/(rp.Sigma*rp.Sigma)) * mod
		}
	}
}

func (rp *RigidProfile) String() string {
	return fmt.Sprintf("rigid beam A=%g sigma=%g", rp.Amplitude, rp.Sigma)
}
