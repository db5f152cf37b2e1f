// Package diag consumes cadenced snapshots from the engine: a structured
// log line per snapshot, the on-axis Ez history, and optionally a
// matplotlib script of that history at the end of the run.
package diag

import (
	"fmt"

	plt "github.com/phil-mansfield/pyplot"
	"github.com/sirupsen/logrus"

	"github.com/quasistatic/gowake"
	"github.com/quasistatic/gowake/grid"
)

// Recorder accumulates the on-axis Ez history across a run.
type Recorder struct {
	g   *grid.Grid
	log logrus.FieldLogger

	Xi   []float64
	Ez00 []float64
}

// NewRecorder returns a Recorder logging through log.
func NewRecorder(g *grid.Grid, log logrus.FieldLogger) *Recorder {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Recorder{g: g, log: log}
}

// Hook is the DiagFunc to install on the Manager.
func (r *Recorder) Hook(s *gowake.Snapshot) {
	center := r.g.Idx(r.g.Steps/2, r.g.Steps/2)
	ez := s.Fields.Ez[center]
	r.Xi = append(r.Xi, s.Xi)
	r.Ez00 = append(r.Ez00, ez)

	r.log.WithFields(logrus.Fields{
		"slice":      s.Slice,
		"xi":         fmt.Sprintf("%+.4f", s.Xi),
		"Ez00":       fmt.Sprintf("%+.4e", ez),
		"iterations": s.Iterations,
		"residual":   fmt.Sprintf("%.3e", s.Residual),
		"beam":       s.Beam.Len(),
	}).Info("slice")
}

// SaveEzPlot writes a matplotlib plot of the Ez history to fname.
func (r *Recorder) SaveEzPlot(fname string) {
	plt.Reset()
	plt.Figure()
	plt.Plot(r.Xi, r.Ez00, "k", plt.LW(2))
	plt.XLabel(`$\xi$ $[c/\omega_p]$`)
	plt.YLabel(`$E_z(0,0)$ $[E_0]$`)
	plt.Title("On-axis longitudinal wakefield")
	plt.SaveFig(fname)
	plt.Execute()
}
