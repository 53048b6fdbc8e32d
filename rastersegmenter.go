package lowlying

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	segmentRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lowlying_segment_runs_total",
		Help: "The total number of raster segmentation runs",
	})
	segmentCells = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lowlying_segment_cells_total",
		Help: "The total number of grid cells classified",
	})
	segmentLowPoints = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lowlying_segment_low_points_total",
		Help: "The total number of low-lying points found",
	})
)

// neighborOffsets is the Moore neighborhood.
var neighborOffsets = [8][2]int{
	{-1, -1}, {-1, 0}, {-1, 1},
	{0, -1}, {0, 1},
	{1, -1}, {1, 0}, {1, 1},
}

// A RasterElevationSegmenter classifies the cells of an ElevationGrid as
// depressions when they are strictly lower than all eight of their
// neighbors. Out of range neighbors are clamped to the nearest border cell,
// so border cells are compared against repeated cells.
type RasterElevationSegmenter struct {
	grid    *ElevationGrid
	m       int
	n       int
	workers int
}

// A RasterSegmenterOption sets an option on a RasterElevationSegmenter.
type RasterSegmenterOption func(*RasterElevationSegmenter)

// WithWorkers sets the number of goroutines that classify rows
// concurrently.
func WithWorkers(workers int) RasterSegmenterOption {
	return func(s *RasterElevationSegmenter) {
		s.workers = workers
	}
}

// LoadRasterSegmenter returns a new RasterElevationSegmenter bound to grid.
// grid must not be modified afterwards.
func LoadRasterSegmenter(grid *ElevationGrid, options ...RasterSegmenterOption) (*RasterElevationSegmenter, error) {
	if grid == nil {
		return nil, &InvalidGridError{Reason: "nil grid"}
	}
	if err := grid.Validate(); err != nil {
		return nil, err
	}
	s := &RasterElevationSegmenter{
		grid:    grid,
		m:       grid.Rows(),
		n:       grid.Cols(),
		workers: 1,
	}
	for _, option := range options {
		option(s)
	}
	s.workers = min(max(s.workers, 1), s.m)
	return s, nil
}

// Classify returns the label of the cell at row i, column j. Neighbors that
// clamp back onto the cell itself are skipped, so a cell with no distinct
// neighbor is never a depression.
func (s *RasterElevationSegmenter) Classify(i, j int) Label {
	h := s.grid.Elevations[i][j]
	neighbors := 0
	for _, offset := range neighborOffsets {
		ni := clamp(i+offset[0], 0, s.m-1)
		nj := clamp(j+offset[1], 0, s.n-1)
		if ni == i && nj == j {
			continue
		}
		if s.grid.Elevations[ni][nj] <= h {
			return NotDepression
		}
		neighbors++
	}
	if neighbors == 0 {
		return NotDepression
	}
	return Depression
}

// Labels returns the label of every cell, indexed like the grid's
// elevations.
func (s *RasterElevationSegmenter) Labels(ctx context.Context) ([][]Label, error) {
	labels := make([][]Label, s.m)
	err := s.forEachRow(ctx, func(i int) {
		row := make([]Label, s.n)
		for j := range s.n {
			row[j] = s.Classify(i, j)
		}
		labels[i] = row
	})
	if err != nil {
		return nil, err
	}
	return labels, nil
}

// Segment returns the coordinates of every depression in row-major order.
func (s *RasterElevationSegmenter) Segment(ctx context.Context) ([]Point, error) {
	pointsByRow := make([][]Point, s.m)
	err := s.forEachRow(ctx, func(i int) {
		var points []Point
		for j := range s.n {
			if s.Classify(i, j) == Depression {
				points = append(points, Point{
					X: s.grid.XCoordinates[j],
					Y: s.grid.YCoordinates[i],
				})
			}
		}
		pointsByRow[i] = points
	})
	if err != nil {
		return nil, err
	}

	count := 0
	for _, points := range pointsByRow {
		count += len(points)
	}
	result := make([]Point, 0, count)
	for _, points := range pointsByRow {
		result = append(result, points...)
	}

	segmentRuns.Inc()
	segmentCells.Add(float64(s.m * s.n))
	segmentLowPoints.Add(float64(count))
	return result, nil
}

// forEachRow calls f for every row index, spreading rows across s's workers.
// It checks ctx between rows.
func (s *RasterElevationSegmenter) forEachRow(ctx context.Context, f func(int)) error {
	if s.workers == 1 {
		for i := range s.m {
			if err := ctx.Err(); err != nil {
				return err
			}
			f(i)
		}
		return nil
	}

	rows := make(chan int)
	var wg sync.WaitGroup
	for range s.workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range rows {
				f(i)
			}
		}()
	}
	var err error
FOR:
	for i := range s.m {
		if err = ctx.Err(); err != nil {
			break
		}
		select {
		case <-ctx.Done():
			err = ctx.Err()
			break FOR
		case rows <- i:
		}
	}
	close(rows)
	wg.Wait()
	return err
}

func clamp(x, lo, hi int) int {
	return min(max(x, lo), hi)
}
