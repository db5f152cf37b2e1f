package diag

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/quasistatic/gowake"
	"github.com/quasistatic/gowake/beam"
	"github.com/quasistatic/gowake/field"
	"github.com/quasistatic/gowake/grid"
)

func TestRecorderHook(t *testing.T) {
	g := grid.New(33, 0.1)
	log := logrus.New()
	log.SetOutput(io.Discard)
	r := NewRecorder(g, log)

	f := field.NewFieldSet(g)
	f.Ez[g.Idx(16, 16)] = -0.042

	r.Hook(&gowake.Snapshot{
		Slice:      10,
		Xi:         -0.5,
		Iterations: 3,
		Residual:   1e-8,
		Fields:     f,
		Beam:       &beam.State{},
	})
	r.Hook(&gowake.Snapshot{
		Slice:  20,
		Xi:     -1.0,
		Fields: field.NewFieldSet(g),
		Beam:   &beam.State{},
	})

	assert.Equal(t, []float64{-0.5, -1.0}, r.Xi)
	assert.Equal(t, []float64{-0.042, 0}, r.Ez00)
}
