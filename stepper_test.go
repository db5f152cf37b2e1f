package gowake

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quasistatic/gowake/beam"
	"github.com/quasistatic/gowake/field"
	"github.com/quasistatic/gowake/grid"
	"github.com/quasistatic/gowake/plasma"
)

func testParams() Params {
	return Params{
		GridSteps:    33,
		GridStepSize: 0.1,
		XiStepSize:   0.05,
		XiMax:        1.0,

		PlasmaCoarseness: 1,
		PlasmaFineness:   2,
		ReflectPadding:   5,
		PlasmaPadding:    10,

		SubtractionTrick: 1,
		Tolerance:        1e-6,
		MaxIterations:    50,
		MinXiStepSize:    1e-4,
		MaxRetries:       3,

		Workers:         1,
		DiagnosticsEach: 1,
	}
}

func rigidParams() Params {
	p := testParams()
	p.BeamMode = RigidBeam
	p.RigidBeam = beam.RigidProfile{Amplitude: 0.05, Sigma: 0.5, Compress: 1}
	return p
}

func zero(t *testing.T, g *grid.Grid, f *field.FieldSet) float64 {
	t.Helper()
	return field.Diff(f, field.NewFieldSet(g))
}

func TestEquilibriumStaysQuiet(t *testing.T) {
	// An unperturbed neutral plasma with no beam is an exact fixed point:
	// sources cancel, fields stay identically zero, nothing moves.
	m, err := NewManager(testParams())
	assert.NoError(t, err)

	for i := 0; i < 5; i++ {
		assert.NoError(t, m.Step())
	}
	st := m.State()
	assert.Equal(t, 5, st.Slice)
	assert.InDelta(t, -0.25, st.Xi, 1e-12)
	assert.Equal(t, 0.0, zero(t, m.Grid(), st.Fields))

	for k := 0; k < st.Electrons.Len(); k++ {
		if st.Electrons.XOfft[k] != 0 || st.Electrons.Px[k] != 0 {
			t.Fatalf("equilibrium particle %d moved", k)
		}
	}
}

func TestEquilibriumConvergesImmediately(t *testing.T) {
	m, err := NewManager(testParams())
	assert.NoError(t, err)

	res, err := m.solveSlice(-m.state.Dxi)
	assert.NoError(t, err)
	assert.True(t, res.converged)
	assert.Equal(t, 1, res.iterations)
	assert.Equal(t, 0.0, res.residual)
}

func TestSingleParticleNoSelfForce(t *testing.T) {
	// One macro-particle on the axis, neutralized by its own background:
	// its deposited field must never push it.
	p := testParams()
	p.PlasmaPadding = 15 // leaves a 3-cell plasma region: a single particle
	p.PlasmaFineness = 1
	m, err := NewManager(p)
	assert.NoError(t, err)
	assert.Equal(t, 1, m.State().Electrons.Len())

	for i := 0; i < 5; i++ {
		assert.NoError(t, m.Step())
	}
	e := m.State().Electrons
	assert.Equal(t, 0.0, e.XOfft[0])
	assert.Equal(t, 0.0, e.YOfft[0])
	assert.Equal(t, 0.0, e.Px[0])
	assert.Equal(t, 0.0, e.Pz[0])
}

func TestStepDeterminism(t *testing.T) {
	p := rigidParams()
	p.Workers = 3 // the parallel reduction must not perturb the result
	a, err := NewManager(p)
	assert.NoError(t, err)
	b, err := NewManager(p)
	assert.NoError(t, err)

	for i := 0; i < 4; i++ {
		assert.NoError(t, a.Step())
		assert.NoError(t, b.Step())
	}
	assert.Equal(t, 0.0, field.Diff(a.State().Fields, b.State().Fields))
	assert.Equal(t, a.State().Electrons, b.State().Electrons)
}

func TestRigidBeamDrivesWake(t *testing.T) {
	m, err := NewManager(rigidParams())
	assert.NoError(t, err)
	assert.NoError(t, m.Run(context.Background()))

	st := m.State()
	assert.InDelta(t, -1.0, st.Xi, 1e-9)

	g := m.Grid()
	c := g.Steps / 2
	ez00 := st.Fields.Ez[g.Idx(c, c)]
	// A positive driver pulls plasma electrons inward; the resulting
	// on-axis current makes the longitudinal field decelerating under the
	// driver.
	assert.Less(t, ez00, 0.0)
	assert.Greater(t, ez00, -1.0, "wake amplitude out of physical range")
	assert.Greater(t, zero(t, g, st.Fields), 0.0)
}

func TestNonConvergenceRetryLadder(t *testing.T) {
	p := rigidParams()
	p.Tolerance = 1e-30 // unreachable: every slice fails
	p.MaxIterations = 1
	p.MinXiStepSize = p.XiStepSize / 4
	p.MaxRetries = 2
	m, err := NewManager(p)
	assert.NoError(t, err)

	err = m.Run(context.Background())
	assert.Error(t, err)
	assert.True(t, IsNonConvergence(err))

	st := m.State()
	// Failed slices never commit, and the step has been walked down to the
	// floor before giving up.
	assert.Equal(t, 0, st.Slice)
	assert.Equal(t, 0.0, st.Xi)
	assert.InDelta(t, p.MinXiStepSize, st.Dxi, 1e-15)
}

func TestStepLeavesStateUntouchedOnFailure(t *testing.T) {
	p := rigidParams()
	p.Tolerance = 1e-30
	p.MaxIterations = 1
	m, err := NewManager(p)
	assert.NoError(t, err)

	before := m.State().Electrons.Clone()
	err = m.Step()
	assert.True(t, IsNonConvergence(err))
	assert.Equal(t, before, m.State().Electrons)
	assert.Equal(t, 0.0, zero(t, m.Grid(), m.State().Fields))
}

func TestNilLoggerSilences(t *testing.T) {
	// A nil logger must silence the manager, not crash its logging paths.
	m, err := NewManager(testParams())
	assert.NoError(t, err)
	m.SetLogger(nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, m.Run(ctx), context.Canceled) // cancellation path logs

	p := rigidParams()
	p.Tolerance = 1e-30 // retry and fatal paths log too
	p.MaxIterations = 1
	p.MinXiStepSize = p.XiStepSize / 2
	p.MaxRetries = 1
	m, err = NewManager(p)
	assert.NoError(t, err)
	m.SetLogger(nil)
	assert.True(t, IsNonConvergence(m.Run(context.Background())))
}

func TestRunHonorsCancellation(t *testing.T) {
	m, err := NewManager(testParams())
	assert.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, m.Run(ctx), context.Canceled)
	assert.Equal(t, 0, m.State().Slice)
}

func TestDiagnosticsCadence(t *testing.T) {
	p := testParams()
	p.DiagnosticsEach = 2
	m, err := NewManager(p)
	assert.NoError(t, err)

	var slices []int
	m.SetDiagnostics(func(s *Snapshot) {
		slices = append(slices, s.Slice)
		assert.Equal(t, 1, s.Iterations)
	})
	for i := 0; i < 5; i++ {
		assert.NoError(t, m.Step())
	}
	assert.Equal(t, []int{2, 4}, slices)
}

func TestRefinePolicies(t *testing.T) {
	// Both cadences must converge on the same problem; per-slice trades a
	// frozen source term for fewer refinements.
	for _, policy := range []RefinePolicy{RefinePerIteration, RefinePerSlice} {
		p := rigidParams()
		p.Refine = policy
		m, err := NewManager(p)
		assert.NoError(t, err)
		for i := 0; i < 3; i++ {
			assert.NoError(t, m.Step())
		}
		assert.InDelta(t, -0.15, m.State().Xi, 1e-12)
	}
}

func TestRestoreRejectsMismatch(t *testing.T) {
	m, err := NewManager(testParams())
	assert.NoError(t, err)

	p := testParams()
	p.PlasmaPadding = 12 // different plasma geometry
	other, err := NewManager(p)
	assert.NoError(t, err)

	assert.Error(t, m.Restore(other.State()))
}

func TestMobileIonInitNeutral(t *testing.T) {
	// Mobile-ion initialization deposits both species through the ion
	// scratch buffers; the seeded source history must be exactly neutral.
	p := testParams()
	p.IonMode = plasma.MobileIons
	m, err := NewManager(p)
	assert.NoError(t, err)
	assert.NotNil(t, m.State().Ions)

	for i, v := range m.State().Src.Rho {
		if v != 0 {
			t.Fatalf("seeded rho not neutral at cell %d: %g", i, v)
		}
	}
}

func TestMobileIonsBarelyMove(t *testing.T) {
	p := rigidParams()
	p.IonMode = plasma.MobileIons
	m, err := NewManager(p)
	assert.NoError(t, err)
	assert.NotNil(t, m.State().Ions)

	for i := 0; i < 3; i++ {
		assert.NoError(t, m.Step())
	}
	// Ions respond ~1836x more weakly than electrons over the same slices.
	maxIon, maxEle := 0.0, 0.0
	for k := 0; k < m.State().Ions.Len(); k++ {
		maxIon = math.Max(maxIon, math.Abs(m.State().Ions.Px[k]))
	}
	for k := 0; k < m.State().Electrons.Len(); k++ {
		maxEle = math.Max(maxEle, math.Abs(m.State().Electrons.Px[k]))
	}
	assert.Greater(t, maxEle, 0.0)
	assert.Less(t, maxIon, maxEle)
}
