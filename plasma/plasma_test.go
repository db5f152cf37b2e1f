package plasma

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCoarseLattice(t *testing.T) {
	lattice := coarseLattice(42, 0.1, 3)
	assert.Equal(t, 13, len(lattice))

	for i, x := range lattice {
		want := 0.3 * float64(i-6)
		if math.Abs(x-want) > 1e-14 {
			t.Errorf("lattice[%d] = %g, want %g", i, x, want)
		}
	}
}

func TestFineLatticeOdd(t *testing.T) {
	// Odd fineness keeps particles on the axis.
	lattice := fineLattice(12, 0.1, 3)
	assert.Equal(t, 35, len(lattice))
	assert.InDelta(t, 0, lattice[len(lattice)/2], 1e-14)
}

func TestFineLatticeEven(t *testing.T) {
	// Even fineness staggers particles off the axis symmetrically.
	lattice := fineLattice(12, 0.1, 2)
	assert.Equal(t, 24, len(lattice))
	for i := range lattice {
		mirror := lattice[len(lattice)-1-i]
		if math.Abs(lattice[i]+mirror) > 1e-14 {
			t.Errorf("lattice[%d] = %g not mirrored by %g", i, lattice[i], mirror)
		}
		if lattice[i] == 0 {
			t.Errorf("lattice[%d] sits on the axis", i)
		}
	}
}

func TestNewPopulation(t *testing.T) {
	p := NewPopulation(Electron, 30, 0.1, 3)
	assert.Equal(t, 9, p.Nc)
	assert.Equal(t, 81, p.Len())

	for k := 0; k < p.Len(); k++ {
		assert.Equal(t, -9.0, p.Q[k]) // charge sign * coarseness^2
		assert.Equal(t, 9.0, p.M[k])
		assert.Equal(t, 0.0, p.Px[k])
		assert.Equal(t, 0.0, p.XOfft[k])
	}
	// Rest particle: gamma equals the statistical mass.
	assert.InDelta(t, 9.0, p.Gamma(0), 1e-14)
}

func TestSpeciesTable(t *testing.T) {
	assert.Equal(t, -1.0, Electron.Charge())
	assert.Equal(t, 1.0, Electron.Mass())
	assert.Equal(t, 1.0, Ion.Charge())
	assert.Greater(t, Ion.Mass(), 1000.0)
	assert.Equal(t, "electron", Electron.String())
	assert.Equal(t, "ion", Ion.String())
}
