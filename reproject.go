package lowlying

import (
	"context"
	"strings"

	"github.com/twpayne/go-proj/v10"
)

// latLonCRSs are geographic CRSs whose authority axis order is
// latitude, longitude.
var latLonCRSs = map[string]bool{
	"epsg:4326": true,
	"epsg:4258": true,
	"epsg:4269": true,
	"epsg:4979": true,
}

// A Reprojector transforms points between CRSs. Points in geographic CRSs
// are always X=longitude, Y=latitude regardless of the CRS's axis order.
type Reprojector struct {
	pj         *proj.PJ
	flipSource bool
	flipTarget bool
}

// NewReprojector returns a new Reprojector from sourceCRS to targetCRS. If
// the CRSs are equal then the Reprojector returns copies of its input.
func NewReprojector(sourceCRS, targetCRS string) (*Reprojector, error) {
	sourceCRS = strings.ToLower(sourceCRS)
	targetCRS = strings.ToLower(targetCRS)
	if sourceCRS == targetCRS {
		return &Reprojector{}, nil
	}
	pj, err := proj.NewCRSToCRS(sourceCRS, targetCRS, nil)
	if err != nil {
		return nil, err
	}
	return &Reprojector{
		pj:         pj,
		flipSource: latLonCRSs[sourceCRS],
		flipTarget: latLonCRSs[targetCRS],
	}, nil
}

// Reproject returns points transformed by r. points is not modified.
func (r *Reprojector) Reproject(points []Point) ([]Point, error) {
	if r.pj == nil {
		return append([]Point(nil), points...), nil
	}

	coordsFlat := make([]float64, 2*len(points))
	coords := make([][]float64, len(points))
	for i, point := range points {
		coords[i] = coordsFlat[2*i : 2*i+2]
		if r.flipSource {
			coords[i][0], coords[i][1] = point.Y, point.X
		} else {
			coords[i][0], coords[i][1] = point.X, point.Y
		}
	}
	if err := r.pj.ForwardFloat64Slices(coords); err != nil {
		return nil, err
	}

	result := make([]Point, len(points))
	for i, coord := range coords {
		if r.flipTarget {
			result[i] = Point{X: coord[1], Y: coord[0]}
		} else {
			result[i] = Point{X: coord[0], Y: coord[1]}
		}
	}
	return result, nil
}

// A ReprojectingSegmenter reprojects the points of another Segmenter.
type ReprojectingSegmenter struct {
	Segmenter   Segmenter
	Reprojector *Reprojector
}

// Segment returns the reprojected points of s.Segmenter.
func (s *ReprojectingSegmenter) Segment(ctx context.Context) ([]Point, error) {
	points, err := s.Segmenter.Segment(ctx)
	if err != nil {
		return nil, err
	}
	return s.Reprojector.Reproject(points)
}
