// Package grid describes the transverse mesh shared by the field solvers and
// the deposition code. A Grid is immutable after construction: every other
// component holds a read-only reference to the same instance.
package grid

import (
	"fmt"
	"math"
)

// Grid is a square transverse mesh of Steps x Steps nodes centered on the
// propagation axis. Node (i, j) sits at physical position
// ((i - Steps/2) * CellSize, (j - Steps/2) * CellSize).
type Grid struct {
	Steps    int
	CellSize float64

	halfExtent float64
}

// Weights holds the 9-point quadratic shape function of a particle: the
// indices of the center cell and the weight each neighboring node receives.
// W[di][dj] is the weight of node (I+di-1, J+dj-1).
type Weights struct {
	I, J int
	W    [3][3]float64
}

// OutOfDomainError reports a position outside the physical extent of the
// grid. The caller decides whether to reflect, clip, or drop the particle.
type OutOfDomainError struct {
	X, Y float64
}

func (e *OutOfDomainError) Error() string {
	return fmt.Sprintf("grid: position (%g, %g) outside domain", e.X, e.Y)
}

// New returns a Grid with the given node count per axis and cell size.
// steps must be odd so that a node sits exactly on the axis.
func New(steps int, cellSize float64) *Grid {
	if steps%2 != 1 {
		panic(fmt.Sprintf("grid: steps = %d must be odd", steps))
	}
	if cellSize <= 0 {
		panic(fmt.Sprintf("grid: cell size = %g must be positive", cellSize))
	}
	return &Grid{
		Steps:      steps,
		CellSize:   cellSize,
		halfExtent: cellSize * float64(steps) / 2,
	}
}

// Cells returns the number of nodes in the full mesh.
func (g *Grid) Cells() int { return g.Steps * g.Steps }

// Idx returns the flat row-major index of node (i, j).
func (g *Grid) Idx(i, j int) int { return i*g.Steps + j }

// Coord returns the physical coordinate of node index i along one axis.
func (g *Grid) Coord(i int) float64 {
	return float64(i-g.Steps/2) * g.CellSize
}

// HalfExtent returns the physical half-width of the domain.
func (g *Grid) HalfExtent() float64 { return g.halfExtent }

// ReflectBoundary returns the position of the reflecting wall for pushers,
// padding cells inside the field-solve boundary.
func (g *Grid) ReflectBoundary(padding int) float64 {
	return g.CellSize * (float64(g.Steps)/2 - float64(padding))
}

// CellIndex returns the indices of the node nearest to (x, y), or an
// OutOfDomainError if the position cannot carry a full 9-point stencil.
func (g *Grid) CellIndex(x, y float64) (i, j int, err error) {
	w, err := g.InterpolationWeights(x, y)
	if err != nil {
		return -1, -1, err
	}
	return w.I, w.J, nil
}

// InterpolationWeights returns the second-order 9-point shape function of a
// particle at (x, y). The weights sum to exactly 1, which is what makes the
// deposition charge-conserving.
func (g *Grid) InterpolationWeights(x, y float64) (Weights, error) {
	xh, yh := x/g.CellSize+0.5, y/g.CellSize+0.5
	fx, fy := math.Floor(xh), math.Floor(yh)
	i, j := int(fx)+g.Steps/2, int(fy)+g.Steps/2
	if i < 1 || i > g.Steps-2 || j < 1 || j > g.Steps-2 {
		return Weights{}, &OutOfDomainError{x, y}
	}

	// Offsets from the cell center, in [-0.5, 0.5).
	xLoc, yLoc := xh-fx-0.5, yh-fy-0.5

	wx0, wy0 := 0.75-xLoc*xLoc, 0.75-yLoc*yLoc
	wxP, wyP := (0.5+xLoc)*(0.5+xLoc)/2, (0.5+yLoc)*(0.5+yLoc)/2
	wxM, wyM := (0.5-xLoc)*(0.5-xLoc)/2, (0.5-yLoc)*(0.5-yLoc)/2

	return Weights{
		I: i, J: j,
		W: [3][3]float64{
			{wxM * wyM, wxM * wy0, wxM * wyP},
			{wx0 * wyM, wx0 * wy0, wx0 * wyP},
			{wxP * wyM, wxP * wy0, wxP * wyP},
		},
	}, nil
}

// Interpolate evaluates a grid-shaped array at the stencil w.
func Interpolate(a []float64, steps int, w Weights) float64 {
	sum := 0.0
	for di := 0; di < 3; di++ {
		row := (w.I + di - 1) * steps
		for dj := 0; dj < 3; dj++ {
			sum += a[row+w.J+dj-1] * w.W[di][dj]
		}
	}
	return sum
}

// Spread adds val, distributed by the stencil w, onto a grid-shaped array.
func Spread(a []float64, steps int, w Weights, val float64) {
	for di := 0; di < 3; di++ {
		row := (w.I + di - 1) * steps
		for dj := 0; dj < 3; dj++ {
			a[row+w.J+dj-1] += val * w.W[di][dj]
		}
	}
}
