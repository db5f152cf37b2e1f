package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/quasistatic/gowake"
	"github.com/quasistatic/gowake/beam"
	"github.com/quasistatic/gowake/config"
	"github.com/quasistatic/gowake/diag"
	wakeio "github.com/quasistatic/gowake/io"
	"github.com/quasistatic/gowake/plasma"
)

func main() {
	var (
		configFile   string
		resumeFile   string
		ezPlot       string
		printExample bool
		workers      int
	)
	flag.StringVar(
		&configFile, "Config", "",
		"Configuration file for the run.",
	)
	flag.StringVar(
		&resumeFile, "Resume", "",
		"Checkpoint file to resume from. The configuration must match the "+
			"run the checkpoint was written by.",
	)
	flag.StringVar(
		&ezPlot, "EzPlot", "",
		"If set, write a matplotlib script plotting the on-axis Ez history "+
			"to this file at the end of the run.",
	)
	flag.BoolVar(
		&printExample, "ExampleConfig", false,
		"Print an example configuration file to stdout and exit.",
	)
	flag.IntVar(
		&workers, "Threads", runtime.NumCPU(),
		"Number of worker threads. Default is the number of logical cores.",
	)
	flag.Parse()

	if printExample {
		fmt.Println(config.ExampleConfigFile)
		return
	}
	if configFile == "" {
		logrus.Fatal("No -Config file given. Run with -ExampleConfig for a template.")
	}

	wrap, err := config.Read(configFile)
	if err != nil {
		logrus.Fatal(err.Error())
	}
	if wrap.Simulation.Workers == 0 {
		wrap.Simulation.Workers = workers
	}

	params, err := buildParams(wrap)
	if err != nil {
		logrus.Fatal(err.Error())
	}

	man, err := gowake.NewManager(params)
	if err != nil {
		logrus.Fatal(err.Error())
	}

	if resumeFile != "" {
		st, err := wakeio.ReadSnapshotFile(
			resumeFile, wrap.Simulation.GridSteps, wrap.Simulation.GridStepSize,
		)
		if err != nil {
			logrus.Fatal(err.Error())
		}
		if err := man.Restore(st); err != nil {
			logrus.Fatal(err.Error())
		}
		logrus.WithField("slice", st.Slice).Info("resumed from checkpoint")
	}

	rec := diag.NewRecorder(man.Grid(), logrus.StandardLogger())
	checkpoint := wrap.Simulation.CheckpointFile
	man.SetDiagnostics(func(s *gowake.Snapshot) {
		rec.Hook(s)
		if checkpoint != "" {
			err := wakeio.WriteSnapshotFile(
				checkpoint, wrap.Simulation.GridSteps,
				wrap.Simulation.GridStepSize, man.State(),
			)
			if err != nil {
				logrus.WithError(err).Warn("checkpoint write failed")
			}
		}
	})

	ctx, stop := signal.NotifyContext(
		context.Background(), os.Interrupt, syscall.SIGTERM,
	)
	defer stop()

	if err := man.Run(ctx); err != nil && ctx.Err() == nil {
		logrus.Fatal(err.Error())
	}

	if checkpoint != "" {
		err := wakeio.WriteSnapshotFile(
			checkpoint, wrap.Simulation.GridSteps,
			wrap.Simulation.GridStepSize, man.State(),
		)
		if err != nil {
			logrus.WithError(err).Warn("final checkpoint write failed")
		}
	}
	if ezPlot != "" {
		rec.SaveEzPlot(ezPlot)
	}
}

// buildParams translates the validated configuration into engine parameters.
func buildParams(wrap *config.Wrapper) (gowake.Params, error) {
	sim := &wrap.Simulation
	p := gowake.Params{
		GridSteps:        sim.GridSteps,
		GridStepSize:     sim.GridStepSize,
		XiStepSize:       sim.XiStepSize,
		XiMax:            sim.XiMax,
		PlasmaCoarseness: sim.PlasmaCoarseness,
		PlasmaFineness:   sim.PlasmaFineness,
		ReflectPadding:   sim.ReflectPadding,
		PlasmaPadding:    sim.PlasmaPadding,
		SubtractionTrick: sim.SubtractionTrick,
		Tolerance:        sim.Tolerance,
		MaxIterations:    sim.MaxIterations,
		MinXiStepSize:    sim.MinXiStepSize,
		MaxRetries:       sim.MaxRetries,
		Workers:          sim.Workers,
		DiagnosticsEach:  sim.DiagnosticsEach,
	}
	if sim.BoundaryPolicy == "Remove" {
		p.Boundary = plasma.Remove
	}
	if sim.RefinePolicy == "PerSlice" {
		p.Refine = gowake.RefinePerSlice
	}
	if sim.IonMode == "Mobile" {
		p.IonMode = plasma.MobileIons
	}

	b := &wrap.Beam
	switch b.Mode {
	case "Rigid":
		p.BeamMode = gowake.RigidBeam
		p.RigidBeam = beam.RigidProfile{
			Amplitude: b.Amplitude,
			Sigma:     b.Sigma,
			Compress:  b.Compress,
			YShift:    b.YShift,
		}
	case "Gaussian":
		p.BeamMode = gowake.ParticleBeam
		p.Beam = beam.NewGaussian(beam.GaussianParams{
			N:        b.Particles,
			Charge:   b.Charge,
			SigmaR:   b.SigmaR,
			SigmaXi:  b.SigmaXi,
			XiCenter: b.XiCenter,
			Gamma:    b.Gamma,
			Seed:     b.Seed,
		})
	case "Table":
		p.BeamMode = gowake.ParticleBeam
		bs, err := beam.ReadTable(b.File)
		if err != nil {
			return p, err
		}
		p.Beam = bs
	}
	return p, nil
}
