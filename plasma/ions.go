package plasma

import (
	"gonum.org/v1/gonum/floats"

	"github.com/quasistatic/gowake/deposit"
)

// IonMode selects the background ion model.
type IonMode int

const (
	// ImmobileIons contributes a static positive charge density that
	// exactly neutralizes the initial electron deposition, so the
	// unperturbed plasma is charge-neutral.
	ImmobileIons IonMode = iota
	// MobileIons represents ions as a second coarse population pushed
	// identically to the electrons and participating in the per-slice
	// fixed-point iteration.
	MobileIons
)

func (m IonMode) String() string {
	if m == MobileIons {
		return "mobile"
	}
	return "immobile"
}

// Background is the ion contribution to the source terms.
type Background struct {
	Mode IonMode

	// RhoInit is the static neutralizing density for ImmobileIons; nil in
	// mobile mode.
	RhoInit []float64

	// Ions is the dynamic ion population for MobileIons; nil in immobile
	// mode.
	Ions *Population
}

// NewImmobileBackground precomputes the neutralizing density from the
// initial electron deposition. electrons must still be in their equilibrium
// state: at rest on the lattice.
func NewImmobileBackground(
	engine *deposit.Engine, refiner *Refiner, electrons *Population,
	cells int,
) (*Background, error) {
	var sample deposit.Sample
	refiner.Refine(electrons, &sample)

	src := &deposit.SourceTerms{
		Rho: make([]float64, cells),
		Jx:  make([]float64, cells),
		Jy:  make([]float64, cells),
		Jz:  make([]float64, cells),
	}
	if err := engine.Deposit(&sample, src); err != nil {
		return nil, err
	}

	rho := make([]float64, cells)
	floats.AddScaled(rho, -1, src.Rho)
	return &Background{Mode: ImmobileIons, RhoInit: rho}, nil
}

// NewMobileBackground builds an ion population mirroring the electron
// lattice geometry.
func NewMobileBackground(steps int, h float64, coarseness int) *Background {
	return &Background{
		Mode: MobileIons,
		Ions: NewPopulation(Ion, steps, h, coarseness),
	}
}

// Apply adds the static ion contribution to src. Added after the electron
// deposit to preserve float precision in the near-cancelling sum. Mobile
// ions contribute through deposition instead and Apply is a no-op.
func (b *Background) Apply(src *deposit.SourceTerms) {
	if b.Mode != ImmobileIons {
		return
	}
	floats.Add(src.Rho, b.RhoInit)
}
