// Package lowlying finds low-lying points in digital terrain models.
package lowlying

import "context"

// A Point is a geographic coordinate.
type Point struct {
	X float64
	Y float64
}

// A Label is the classification of a single grid cell.
type Label uint8

const (
	NotDepression Label = 0
	Depression    Label = 1
)

// A Segmenter returns the low-lying points of a terrain.
type Segmenter interface {
	Segment(ctx context.Context) ([]Point, error)
}

// A SegmenterFunc is a func that implements Segmenter.
type SegmenterFunc func(ctx context.Context) ([]Point, error)

// Segment calls f.
func (f SegmenterFunc) Segment(ctx context.Context) ([]Point, error) {
	return f(ctx)
}
