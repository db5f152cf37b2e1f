package io

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quasistatic/gowake"
	"github.com/quasistatic/gowake/beam"
	"github.com/quasistatic/gowake/deposit"
	"github.com/quasistatic/gowake/field"
	"github.com/quasistatic/gowake/grid"
	"github.com/quasistatic/gowake/plasma"
)

func testState(g *grid.Grid, withIons bool) *gowake.State {
	st := &gowake.State{
		Slice:     17,
		Xi:        -0.085,
		Dxi:       0.005,
		Electrons: plasma.NewPopulation(plasma.Electron, 13, g.CellSize, 1),
		Beam: &beam.State{Particles: []beam.Particle{
			{X: 0.1, Y: -0.2, Xi: -1.5, Px: 0.01, Pz: 1000, Q: -0.5, M: 1},
			{X: -0.3, Y: 0.05, Xi: -2.1, Pz: 900, Q: -0.5, M: 1},
		}},
		Fields: field.NewFieldSet(g),
		Src:    deposit.NewSourceTerms(g),
	}
	st.Electrons.XOfft[3] = 0.0123
	st.Electrons.Px[3] = -0.45
	st.Fields.Ez[g.Idx(16, 16)] = -0.007
	st.Src.Rho[g.Idx(10, 20)] = 0.9
	if withIons {
		st.Ions = plasma.NewPopulation(plasma.Ion, 13, g.CellSize, 1)
		st.Ions.YOfft[5] = -0.002
	}
	return st
}

func TestSnapshotRoundTrip(t *testing.T) {
	g := grid.New(33, 0.1)
	for _, withIons := range []bool{false, true} {
		st := testState(g, withIons)

		buf := &bytes.Buffer{}
		assert.NoError(t, WriteSnapshot(buf, g.Steps, g.CellSize, st))

		got, err := ReadSnapshot(buf, g.Steps, g.CellSize)
		assert.NoError(t, err)

		assert.Equal(t, st.Slice, got.Slice)
		assert.Equal(t, st.Xi, got.Xi)
		assert.Equal(t, st.Dxi, got.Dxi)
		assert.Equal(t, st.Electrons, got.Electrons)
		assert.Equal(t, st.Ions, got.Ions)
		assert.Equal(t, st.Beam.Particles, got.Beam.Particles)
		assert.Equal(t, 0.0, field.Diff(st.Fields, got.Fields))
		assert.Equal(t, st.Src, got.Src)
	}
}

func TestSnapshotRejectsWrongGeometry(t *testing.T) {
	g := grid.New(33, 0.1)
	st := testState(g, false)

	buf := &bytes.Buffer{}
	assert.NoError(t, WriteSnapshot(buf, g.Steps, g.CellSize, st))
	_, err := ReadSnapshot(bytes.NewReader(buf.Bytes()), 65, g.CellSize)
	assert.Error(t, err)

	_, err = ReadSnapshot(bytes.NewReader(buf.Bytes()), g.Steps, 0.2)
	assert.Error(t, err)
}

func TestSnapshotRejectsCorruptCounts(t *testing.T) {
	// A snapshot with a valid magic but absurd counts must fail cleanly
	// instead of over-allocating or panicking.
	g := grid.New(33, 0.1)
	st := testState(g, false)
	buf := &bytes.Buffer{}
	assert.NoError(t, WriteSnapshot(buf, g.Steps, g.CellSize, st))
	clean := buf.Bytes()

	// Header layout: 8 int64/float64 words; BeamCount is word 7, the
	// population species and size words follow at 8 and 9.
	corruptions := []struct {
		word  int
		value uint64
	}{
		{7, 1 << 40},    // beam count over the cap
		{7, ^uint64(0)}, // negative beam count
		{8, 99},         // unknown species
		{9, ^uint64(0)}, // negative population size
		{9, 1 << 40},    // population size over the cap
	}
	for i, c := range corruptions {
		data := append([]byte(nil), clean...)
		end.PutUint64(data[c.word*8:], c.value)
		_, err := ReadSnapshot(bytes.NewReader(data), g.Steps, g.CellSize)
		if err == nil {
			t.Errorf("%d) corrupt word %d accepted", i+1, c.word)
		}
	}
}

func TestSnapshotRejectsGarbage(t *testing.T) {
	_, err := ReadSnapshot(bytes.NewReader(make([]byte, 128)), 33, 0.1)
	assert.Error(t, err)
}

func TestSnapshotFileRoundTrip(t *testing.T) {
	g := grid.New(33, 0.1)
	st := testState(g, false)
	name := t.TempDir() + "/run.checkpoint"

	assert.NoError(t, WriteSnapshotFile(name, g.Steps, g.CellSize, st))
	got, err := ReadSnapshotFile(name, g.Steps, g.CellSize)
	assert.NoError(t, err)
	assert.Equal(t, st.Slice, got.Slice)
	assert.Equal(t, st.Electrons, got.Electrons)
}
