package gowake

import (
	"errors"
	"fmt"
)

// NonConvergenceError reports a slice whose fixed-point iteration did not
// converge within its iteration cap. The stepper recovers by reducing the
// xi step and retrying; repeated failure at the minimum step is fatal.
type NonConvergenceError struct {
	Slice      int
	Xi         float64
	Iterations int
	Residual   float64
}

func (e *NonConvergenceError) Error() string {
	return fmt.Sprintf(
		"gowake: slice %d (xi=%g) did not converge after %d iterations (residual %g)",
		e.Slice, e.Xi, e.Iterations, e.Residual,
	)
}

// SliceError wraps any error with the slice context it occurred in. Fatal
// invariant breaches always carry this context.
type SliceError struct {
	Slice   int
	Xi      float64
	Wrapped error
}

func (e *SliceError) Error() string {
	return fmt.Sprintf("gowake: slice %d (xi=%g): %v", e.Slice, e.Xi, e.Wrapped)
}

func (e *SliceError) Unwrap() error { return e.Wrapped }

// IsNonConvergence reports whether err is a NonConvergenceError, possibly
// wrapped in slice context.
func IsNonConvergence(err error) bool {
	var nc *NonConvergenceError
	return errors.As(err, &nc)
}
