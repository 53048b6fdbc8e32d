package lowlying

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidGrid is matched by every *InvalidGridError with errors.Is.
var ErrInvalidGrid = errors.New("invalid grid")

// An InvalidGridError is returned when a grid cannot be segmented.
type InvalidGridError struct {
	Reason string
}

func (e *InvalidGridError) Error() string {
	return "invalid grid: " + e.Reason
}

func (e *InvalidGridError) Is(target error) bool {
	return target == ErrInvalidGrid
}

// An ElevationGrid is a rectangular raster of elevation samples.
// Elevations[i][j] is the sample at (XCoordinates[j], YCoordinates[i]).
type ElevationGrid struct {
	Elevations   [][]float64
	XCoordinates []float64
	YCoordinates []float64
}

// Rows returns the number of rows in g.
func (g *ElevationGrid) Rows() int {
	return len(g.Elevations)
}

// Cols returns the number of columns in g.
func (g *ElevationGrid) Cols() int {
	if len(g.Elevations) == 0 {
		return 0
	}
	return len(g.Elevations[0])
}

// Validate returns an *InvalidGridError if g is empty, ragged, has
// coordinate axes that do not match its shape, or has missing samples.
func (g *ElevationGrid) Validate() error {
	m, n := g.Rows(), g.Cols()
	switch {
	case m == 0:
		return &InvalidGridError{Reason: "zero rows"}
	case n == 0:
		return &InvalidGridError{Reason: "zero columns"}
	case len(g.XCoordinates) != n:
		return &InvalidGridError{
			Reason: fmt.Sprintf("%d x coordinates for %d columns", len(g.XCoordinates), n),
		}
	case len(g.YCoordinates) != m:
		return &InvalidGridError{
			Reason: fmt.Sprintf("%d y coordinates for %d rows", len(g.YCoordinates), m),
		}
	}
	for i, row := range g.Elevations {
		if len(row) != n {
			return &InvalidGridError{
				Reason: fmt.Sprintf("row %d has %d columns, expected %d", i, len(row), n),
			}
		}
		for j, h := range row {
			if math.IsNaN(h) {
				return &InvalidGridError{
					Reason: fmt.Sprintf("missing sample at row %d, column %d", i, j),
				}
			}
		}
	}
	return nil
}
