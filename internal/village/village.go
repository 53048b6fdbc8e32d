// Package village loads village boundary polygons and filters points to
// them.
package village

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"

	"github.com/twpayne/go-lowlying"
)

// DefaultNameProperty is the feature property of the Bengaluru Urban
// villages dataset that holds the village name.
const DefaultNameProperty = "KGISVill_2"

var ErrUnknownVillage = errors.New("unknown village")

// A Village is a named village boundary.
type Village struct {
	Name     string
	Geometry orb.MultiPolygon
	bound    orb.Bound
}

// Contains returns if point is within v.
func (v *Village) Contains(point lowlying.Point) bool {
	p := orb.Point{point.X, point.Y}
	if !v.bound.Contains(p) {
		return false
	}
	return planar.MultiPolygonContains(v.Geometry, p)
}

// Filter returns the points within v, in order.
func (v *Village) Filter(points []lowlying.Point) []lowlying.Point {
	var result []lowlying.Point
	for _, point := range points {
		if v.Contains(point) {
			result = append(result, point)
		}
	}
	return result
}

// Centroid returns the area-weighted centroid of v.
func (v *Village) Centroid() lowlying.Point {
	centroid, _ := planar.CentroidArea(v.Geometry)
	return lowlying.Point{X: centroid.X(), Y: centroid.Y()}
}

// ExteriorRing returns the outer ring of v's first polygon.
func (v *Village) ExteriorRing() [][2]float64 {
	if len(v.Geometry) == 0 || len(v.Geometry[0]) == 0 {
		return nil
	}
	ring := v.Geometry[0][0]
	coords := make([][2]float64, len(ring))
	for i, point := range ring {
		coords[i] = [2]float64(point)
	}
	return coords
}

// Boundaries is a set of villages.
type Boundaries struct {
	names      []string
	villageMap map[string]*Village
}

// LoadBoundaries reads a GeoJSON FeatureCollection of village polygons from
// filename in fsys. The village name is read from nameProperty.
func LoadBoundaries(fsys fs.FS, filename, nameProperty string) (*Boundaries, error) {
	data, err := fs.ReadFile(fsys, filename)
	if err != nil {
		return nil, err
	}
	boundaries, err := ParseBoundaries(data, nameProperty)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return boundaries, nil
}

// ParseBoundaries parses a GeoJSON FeatureCollection of village polygons.
// Features without a name or without a polygonal geometry are ignored. If
// several features have the same name then the last one is used.
func ParseBoundaries(data []byte, nameProperty string) (*Boundaries, error) {
	if nameProperty == "" {
		nameProperty = DefaultNameProperty
	}
	featureCollection, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, err
	}
	b := &Boundaries{
		villageMap: make(map[string]*Village),
	}
	for _, feature := range featureCollection.Features {
		name, ok := feature.Properties[nameProperty].(string)
		if !ok || name == "" {
			continue
		}
		var geometry orb.MultiPolygon
		switch g := feature.Geometry.(type) {
		case orb.Polygon:
			geometry = orb.MultiPolygon{g}
		case orb.MultiPolygon:
			geometry = g
		default:
			continue
		}
		if _, ok := b.villageMap[name]; !ok {
			b.names = append(b.names, name)
		}
		b.villageMap[name] = &Village{
			Name:     name,
			Geometry: geometry,
			bound:    geometry.Bound(),
		}
	}
	return b, nil
}

// Names returns the village names in the order in which they first appear.
func (b *Boundaries) Names() []string {
	return append([]string(nil), b.names...)
}

// Lookup returns the village called name.
func (b *Boundaries) Lookup(name string) (*Village, error) {
	village, ok := b.villageMap[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrUnknownVillage)
	}
	return village, nil
}
