package gowake

import (
	"context"
	"fmt"
	goio "io"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/quasistatic/gowake/beam"
	"github.com/quasistatic/gowake/deposit"
	"github.com/quasistatic/gowake/field"
	"github.com/quasistatic/gowake/grid"
	"github.com/quasistatic/gowake/plasma"
)

// Manager owns the run state and drives the per-slice sequence across the
// xi domain: fixed-point field/plasma coupling first, beam advance second.
type Manager struct {
	params Params

	g        *grid.Grid
	engine   *deposit.Engine
	refiner  *plasma.Refiner
	pusher   *plasma.Pusher
	solver   *field.Solver
	bg       *plasma.Background
	advancer *beam.Advancer

	state State

	log  logrus.FieldLogger
	diag DiagFunc

	// Scratch reused across slices.
	trial     *plasma.Population
	ionTrial  *plasma.Population
	estX      []float64
	estY      []float64
	ionEstX   []float64
	ionEstY   []float64
	sample    deposit.Sample
	ionSample deposit.Sample
	iterSrc   *deposit.SourceTerms
	ionSrc    *deposit.SourceTerms
	beamRho   []float64
	newFields *field.FieldSet
	avgFields *field.FieldSet
	iterPrev  *field.FieldSet
}

// NewManager initializes a run: grid, coarse plasma at equilibrium, ion
// background, beam state, xi = 0.
func NewManager(p Params) (*Manager, error) {
	g := grid.New(p.GridSteps, p.GridStepSize)
	workers := p.Workers
	if workers < 1 {
		workers = 1
	}

	plasmaSteps := p.GridSteps - 2*p.PlasmaPadding
	m := &Manager{
		params:  p,
		g:       g,
		engine:  deposit.NewEngine(g, workers),
		refiner: plasma.NewRefiner(plasmaSteps, p.GridStepSize, p.PlasmaCoarseness, p.PlasmaFineness),
		solver:  field.NewSolver(g, p.SubtractionTrick),
		log:     logrus.StandardLogger(),
	}
	m.pusher = plasma.NewPusher(g, g.ReflectBoundary(p.ReflectPadding), p.Boundary, workers)

	electrons := plasma.NewPopulation(plasma.Electron, plasmaSteps, p.GridStepSize, p.PlasmaCoarseness)

	var err error
	switch p.IonMode {
	case plasma.MobileIons:
		m.bg = plasma.NewMobileBackground(plasmaSteps, p.GridStepSize, p.PlasmaCoarseness)
	default:
		m.bg, err = plasma.NewImmobileBackground(m.engine, m.refiner, electrons, g.Cells())
		if err != nil {
			return nil, &SliceError{0, 0, err}
		}
	}

	bs := p.Beam
	if bs == nil {
		bs = &beam.State{}
	}
	m.advancer = beam.NewAdvancer(g, -p.XiMax)

	m.state = State{
		Slice:     0,
		Xi:        0,
		Dxi:       p.XiStepSize,
		Electrons: electrons,
		Ions:      m.bg.Ions,
		Beam:      bs,
		Fields:    field.NewFieldSet(g),
		Src:       deposit.NewSourceTerms(g),
	}

	m.trial = electrons.Clone()
	if m.state.Ions != nil {
		m.ionTrial = m.state.Ions.Clone()
		m.ionEstX = make([]float64, m.state.Ions.Len())
		m.ionEstY = make([]float64, m.state.Ions.Len())
		m.ionSrc = deposit.NewSourceTerms(g)
	}
	m.estX = make([]float64, electrons.Len())
	m.estY = make([]float64, electrons.Len())
	m.iterSrc = deposit.NewSourceTerms(g)
	m.beamRho = make([]float64, g.Cells())
	m.newFields = field.NewFieldSet(g)
	m.avgFields = field.NewFieldSet(g)
	m.iterPrev = field.NewFieldSet(g)

	// Seed the source history with the equilibrium deposition so that the
	// first slice's d/dxi terms vanish. Needs the ion scratch above.
	if err := m.depositAll(m.state.Electrons, m.state.Ions, m.state.Src); err != nil {
		return nil, &SliceError{0, 0, err}
	}

	return m, nil
}

// SetLogger replaces the logger. Nil silences the manager.
func (m *Manager) SetLogger(log logrus.FieldLogger) {
	if log == nil {
		silent := logrus.New()
		silent.SetOutput(goio.Discard)
		log = silent
	}
	m.log = log
}

// SetDiagnostics installs the cadenced diagnostics hook.
func (m *Manager) SetDiagnostics(f DiagFunc) { m.diag = f }

// State returns a borrowed view of the run state. Callers must not mutate
// it; the Manager is the sole mutator.
func (m *Manager) State() *State { return &m.state }

// Restore replaces the run state with a checkpoint snapshot. The snapshot
// must come from a run with identical grid and plasma geometry.
func (m *Manager) Restore(st *State) error {
	if st.Electrons.Nc != m.state.Electrons.Nc {
		return fmt.Errorf(
			"gowake: snapshot plasma %dx%d does not match run plasma %dx%d",
			st.Electrons.Nc, st.Electrons.Nc, m.state.Electrons.Nc, m.state.Electrons.Nc,
		)
	}
	if (st.Ions == nil) != (m.state.Ions == nil) {
		return fmt.Errorf("gowake: snapshot ion mode does not match run configuration")
	}
	m.state = *st
	if st.Ions != nil {
		m.bg.Ions = st.Ions
	}
	return nil
}

// Grid returns the shared transverse mesh.
func (m *Manager) Grid() *grid.Grid { return m.g }

// Run steps slices until xi reaches -XiMax, the context is canceled, or a
// fatal error occurs. Cancellation is honored only at slice boundaries so
// the state stays internally consistent.
func (m *Manager) Run(ctx context.Context) error {
	retriesAtMin := 0
	for m.state.Xi > -m.params.XiMax {
		select {
		case <-ctx.Done():
			m.log.WithField("slice", m.state.Slice).Info("run canceled")
			return ctx.Err()
		default:
		}

		err := m.Step()
		if err == nil {
			retriesAtMin = 0
			continue
		}
		if !IsNonConvergence(err) {
			return err
		}

		// Convergence failure: shrink the step and retry the slice. The
		// pre-slice state is untouched, so the retry is exact.
		if m.state.Dxi > m.params.MinXiStepSize {
			m.state.Dxi = math.Max(m.state.Dxi/2, m.params.MinXiStepSize)
			m.log.WithFields(logrus.Fields{
				"slice": m.state.Slice,
				"dxi":   m.state.Dxi,
			}).Warn("slice did not converge, reducing xi step")
			continue
		}
		retriesAtMin++
		if retriesAtMin >= m.params.MaxRetries {
			m.log.WithField("slice", m.state.Slice).Error("convergence failure at minimum xi step")
			return err
		}
		m.log.WithFields(logrus.Fields{
			"slice": m.state.Slice,
			"retry": retriesAtMin,
		}).Warn("retrying slice at minimum xi step")
	}
	return nil
}

// Step advances the run by one slice: fixed-point solve of the plasma
// response, commit, then beam advance under the converged fields. On
// NonConvergenceError the run state is left exactly as before the call.
func (m *Manager) Step() error {
	st := &m.state
	xiNext := st.Xi - st.Dxi

	m.beamDensity(xiNext, st.Dxi)

	res, err := m.solveSlice(xiNext)
	if err != nil {
		return err
	}
	if !res.converged {
		return &NonConvergenceError{st.Slice, xiNext, res.iterations, res.residual}
	}

	// Commit: the trial populations and fields become the authoritative
	// state for the next slice.
	st.Electrons, m.trial = m.trial, st.Electrons
	if st.Ions != nil {
		st.Ions, m.ionTrial = m.ionTrial, st.Ions
		m.bg.Ions = st.Ions
	}
	st.Fields, m.newFields = m.newFields, st.Fields
	if err := m.depositAll(st.Electrons, st.Ions, st.Src); err != nil {
		return &SliceError{st.Slice, xiNext, err}
	}

	if m.params.BeamMode == ParticleBeam {
		m.advancer.Advance(st.Beam, st.Fields, st.Xi, st.Dxi)
	}

	st.Xi = xiNext
	st.Slice++

	if m.diag != nil && st.Slice%m.params.DiagnosticsEach == 0 {
		m.diag(&Snapshot{
			Slice:      st.Slice,
			Xi:         st.Xi,
			Iterations: res.iterations,
			Residual:   res.residual,
			Fields:     st.Fields,
			Electrons:  st.Electrons,
			Beam:       st.Beam,
		})
	}
	return nil
}

// solveSlice runs the implicit fixed-point iteration for the slice ending
// at xiNext: push plasma under halfstep-averaged fields, redeposit,
// re-solve, until successive FieldSets differ below the tolerance or the
// iteration cap is reached. The result is tagged rather than raised from
// inside the numerical loop.
func (m *Manager) solveSlice(xiNext float64) (sliceResult, error) {
	st := &m.state
	dxi := st.Dxi

	m.pusher.Estimate(st.Electrons, m.estX, m.estY, dxi)
	if st.Ions != nil {
		m.pusher.Estimate(st.Ions, m.ionEstX, m.ionEstY, dxi)
	}

	// First iteration sees the previous slice's fields as the midpoint
	// average; later iterations average the fresh solve with them.
	m.avgFields.CopyFrom(st.Fields)
	m.iterPrev.CopyFrom(st.Fields)

	res := sliceResult{}
	for iter := 0; iter < m.params.MaxIterations; iter++ {
		m.pusher.Push(m.trial, st.Electrons, m.avgFields, m.estX, m.estY, dxi)
		if st.Ions != nil {
			m.pusher.Push(m.ionTrial, st.Ions, m.avgFields, m.ionEstX, m.ionEstY, dxi)
		}

		refresh := iter == 0 || m.params.Refine == RefinePerIteration
		if refresh {
			m.refiner.Refine(m.trial, &m.sample)
			if m.ionTrial != nil {
				m.refiner.Refine(m.ionTrial, &m.ionSample)
			}
		}

		src := m.iterSrc
		if err := m.engine.Deposit(&m.sample, src); err != nil {
			return res, &SliceError{st.Slice, xiNext, err}
		}
		if m.ionTrial != nil {
			if err := m.engine.Deposit(&m.ionSample, m.ionSrc); err != nil {
				return res, &SliceError{st.Slice, xiNext, err}
			}
			addSources(src, m.ionSrc)
		}
		m.bg.Apply(src)

		m.solver.Solve(m.newFields, src, st.Src, m.beamRho, m.avgFields, dxi)

		res.iterations = iter + 1
		res.residual = field.Diff(m.newFields, m.iterPrev)
		m.iterPrev.CopyFrom(m.newFields)
		field.Average(m.avgFields, m.newFields, st.Fields)

		// Midpoint estimates for the next iteration come from this trial.
		copy(m.estX, m.trial.XOfft)
		copy(m.estY, m.trial.YOfft)
		if m.ionTrial != nil {
			copy(m.ionEstX, m.ionTrial.XOfft)
			copy(m.ionEstY, m.ionTrial.YOfft)
		}

		if res.residual < m.params.Tolerance {
			res.converged = true
			return res, nil
		}
	}
	return res, nil
}

// beamDensity fills beamRho for the slice ending at xiNext.
func (m *Manager) beamDensity(xiNext, dxi float64) {
	switch m.params.BeamMode {
	case RigidBeam:
		m.params.RigidBeam.Density(m.g, m.beamRho, xiNext)
	case ParticleBeam:
		m.state.Beam.DepositRho(m.g, m.beamRho, m.state.Xi, dxi)
	default:
		for i := range m.beamRho {
			m.beamRho[i] = 0
		}
	}
}

// depositAll deposits the committed populations into src, including the
// ion background, producing the source history the next slice differences
// against.
func (m *Manager) depositAll(electrons, ions *plasma.Population, src *deposit.SourceTerms) error {
	m.refiner.Refine(electrons, &m.sample)
	if err := m.engine.Deposit(&m.sample, src); err != nil {
		return err
	}
	if ions != nil {
		m.refiner.Refine(ions, &m.ionSample)
		if err := m.engine.Deposit(&m.ionSample, m.ionSrc); err != nil {
			return err
		}
		addSources(src, m.ionSrc)
	}
	m.bg.Apply(src)
	return nil
}

func addSources(dst, src *deposit.SourceTerms) {
	for i := range dst.Rho {
		dst.Rho[i] += src.Rho[i]
		dst.Jx[i] += src.Jx[i]
		dst.Jy[i] += src.Jy[i]
		dst.Jz[i] += src.Jz[i]
	}
}
