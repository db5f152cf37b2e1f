// Package io reads and writes checkpoint snapshots of a run: the xi index,
// the coarse plasma populations, the beam, and the last converged fields
// and source terms. Restoring a snapshot and continuing reproduces an
// uninterrupted run.
package io

import (
	"encoding/binary"
	"fmt"
	goio "io"
	"os"

	"github.com/quasistatic/gowake"
	"github.com/quasistatic/gowake/beam"
	"github.com/quasistatic/gowake/deposit"
	"github.com/quasistatic/gowake/field"
	"github.com/quasistatic/gowake/plasma"
)

var end = binary.LittleEndian

const snapshotMagic = int64(0x474f57414b450001) // "GOWAKE" + version

// maxSnapshotCount bounds the particle counts read from a snapshot header
// so that a corrupted file fails instead of panicking or over-allocating.
const maxSnapshotCount = 1 << 30

type snapshotHeader struct {
	Magic     int64
	GridSteps int64
	CellSize  float64
	Slice     int64
	Xi, Dxi   float64
	HasIons   int64
	BeamCount int64
}

// WriteSnapshot serializes st to w.
func WriteSnapshot(w goio.Writer, gridSteps int, cellSize float64, st *gowake.State) error {
	hd := snapshotHeader{
		Magic:     snapshotMagic,
		GridSteps: int64(gridSteps),
		CellSize:  cellSize,
		Slice:     int64(st.Slice),
		Xi:        st.Xi,
		Dxi:       st.Dxi,
		BeamCount: int64(st.Beam.Len()),
	}
	if st.Ions != nil {
		hd.HasIons = 1
	}
	if err := binary.Write(w, end, &hd); err != nil {
		return err
	}

	if err := writePopulation(w, st.Electrons); err != nil {
		return err
	}
	if st.Ions != nil {
		if err := writePopulation(w, st.Ions); err != nil {
			return err
		}
	}
	if err := binary.Write(w, end, st.Beam.Particles); err != nil {
		return err
	}
	for _, a := range [][]float64{
		st.Fields.Ex, st.Fields.Ey, st.Fields.Ez,
		st.Fields.Bx, st.Fields.By, st.Fields.Bz,
		st.Src.Rho, st.Src.Jx, st.Src.Jy, st.Src.Jz,
	} {
		if err := binary.Write(w, end, a); err != nil {
			return err
		}
	}
	return nil
}

// ReadSnapshot deserializes a snapshot written for the given grid geometry.
func ReadSnapshot(r goio.Reader, gridSteps int, cellSize float64) (*gowake.State, error) {
	hd := snapshotHeader{}
	if err := binary.Read(r, end, &hd); err != nil {
		return nil, err
	}
	if hd.Magic != snapshotMagic {
		return nil, fmt.Errorf("io: not a gowake snapshot")
	}
	if int(hd.GridSteps) != gridSteps || hd.CellSize != cellSize {
		return nil, fmt.Errorf(
			"io: snapshot grid %dx%d cells of %g does not match run grid %dx%d cells of %g",
			hd.GridSteps, hd.GridSteps, hd.CellSize, gridSteps, gridSteps, cellSize,
		)
	}
	if hd.BeamCount < 0 || hd.BeamCount > maxSnapshotCount {
		return nil, fmt.Errorf("io: snapshot beam count %d out of range", hd.BeamCount)
	}

	st := &gowake.State{
		Slice: int(hd.Slice),
		Xi:    hd.Xi,
		Dxi:   hd.Dxi,
	}

	var err error
	if st.Electrons, err = readPopulation(r); err != nil {
		return nil, err
	}
	if hd.HasIons == 1 {
		if st.Ions, err = readPopulation(r); err != nil {
			return nil, err
		}
	}

	st.Beam = &beam.State{Particles: make([]beam.Particle, hd.BeamCount)}
	if err := binary.Read(r, end, st.Beam.Particles); err != nil {
		return nil, err
	}

	cells := gridSteps * gridSteps
	st.Fields = &field.FieldSet{}
	st.Src = &deposit.SourceTerms{}
	for _, a := range []*[]float64{
		&st.Fields.Ex, &st.Fields.Ey, &st.Fields.Ez,
		&st.Fields.Bx, &st.Fields.By, &st.Fields.Bz,
		&st.Src.Rho, &st.Src.Jx, &st.Src.Jy, &st.Src.Jz,
	} {
		*a = make([]float64, cells)
		if err := binary.Read(r, end, *a); err != nil {
			return nil, err
		}
	}
	return st, nil
}

// WriteSnapshotFile writes st to a file, replacing any previous checkpoint.
func WriteSnapshotFile(name string, gridSteps int, cellSize float64, st *gowake.State) error {
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	defer f.Close()
	return WriteSnapshot(f, gridSteps, cellSize, st)
}

// ReadSnapshotFile reads a checkpoint file.
func ReadSnapshotFile(name string, gridSteps int, cellSize float64) (*gowake.State, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadSnapshot(f, gridSteps, cellSize)
}

func writePopulation(w goio.Writer, p *plasma.Population) error {
	if err := binary.Write(w, end, []int64{int64(p.Species), int64(p.Nc)}); err != nil {
		return err
	}
	for _, a := range popArrays(p) {
		if err := binary.Write(w, end, *a); err != nil {
			return err
		}
	}
	return nil
}

func readPopulation(r goio.Reader) (*plasma.Population, error) {
	meta := make([]int64, 2)
	if err := binary.Read(r, end, meta); err != nil {
		return nil, err
	}
	if meta[0] < int64(plasma.Electron) || meta[0] > int64(plasma.Beam) {
		return nil, fmt.Errorf("io: snapshot species %d unknown", meta[0])
	}
	// Bound Nc itself so its square cannot overflow.
	if meta[1] < 1 || meta[1] > 1<<15 {
		return nil, fmt.Errorf("io: snapshot population size %d out of range", meta[1])
	}
	p := &plasma.Population{Species: plasma.Species(meta[0]), Nc: int(meta[1])}
	n := p.Nc * p.Nc
	for _, a := range popArrays(p) {
		*a = make([]float64, n)
		if err := binary.Read(r, end, *a); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func popArrays(p *plasma.Population) []*[]float64 {
	return []*[]float64{
		&p.XInit, &p.YInit, &p.XOfft, &p.YOfft,
		&p.Px, &p.Py, &p.Pz, &p.M, &p.Q,
	}
}
