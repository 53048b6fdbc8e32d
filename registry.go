package lowlying

import (
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"sync"
)

var ErrUnknownMethod = errors.New("unknown segmentation method")

// A SegmenterConfig configures a Segmenter created by NewSegmenter.
type SegmenterConfig struct {
	FS             fs.FS
	Path           string
	Workers        int
	NoDataFill     *float64
	GeoTIFFOptions []GeoTIFFOption
}

// A SegmenterFactory returns a new Segmenter.
type SegmenterFactory func(SegmenterConfig) (Segmenter, error)

var (
	segmenterFactoriesMutex sync.RWMutex
	segmenterFactories      = map[string]SegmenterFactory{
		"raster": newRasterSegmenterFromConfig,
		"static": newPrecomputedPointLoaderFromConfig,
	}
)

// RegisterSegmenter registers factory for method, replacing any existing
// factory.
func RegisterSegmenter(method string, factory SegmenterFactory) {
	segmenterFactoriesMutex.Lock()
	defer segmenterFactoriesMutex.Unlock()
	segmenterFactories[method] = factory
}

// SegmenterMethods returns the registered methods in sorted order.
func SegmenterMethods() []string {
	segmenterFactoriesMutex.RLock()
	defer segmenterFactoriesMutex.RUnlock()
	methods := make([]string, 0, len(segmenterFactories))
	for method := range segmenterFactories {
		methods = append(methods, method)
	}
	slices.Sort(methods)
	return methods
}

// NewSegmenter returns a new Segmenter for method.
func NewSegmenter(method string, config SegmenterConfig) (Segmenter, error) {
	segmenterFactoriesMutex.RLock()
	factory, ok := segmenterFactories[method]
	segmenterFactoriesMutex.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s: %w", method, ErrUnknownMethod)
	}
	return factory(config)
}

// A CRSSegmenter is a Segmenter whose points are in a known CRS.
type CRSSegmenter interface {
	Segmenter
	CRS() string
}

// A GeoTIFFSegmenter is a RasterElevationSegmenter over a GeoTIFF. Its points
// are in the GeoTIFF's CRS.
type GeoTIFFSegmenter struct {
	*RasterElevationSegmenter
	crs string
}

// CRS returns the GeoTIFF's CRS, or an empty string if it is unknown.
func (s *GeoTIFFSegmenter) CRS() string {
	return s.crs
}

// SegmenterCRS returns the CRS of s's points if s knows it, otherwise
// defaultCRS.
func SegmenterCRS(s Segmenter, defaultCRS string) string {
	if crsSegmenter, ok := s.(CRSSegmenter); ok {
		if crs := crsSegmenter.CRS(); crs != "" {
			return crs
		}
	}
	return defaultCRS
}

// newRasterSegmenterFromConfig loads the GeoTIFF at config.Path and returns
// a GeoTIFFSegmenter for it.
func newRasterSegmenterFromConfig(config SegmenterConfig) (Segmenter, error) {
	geoTIFFOptions := slices.Clone(config.GeoTIFFOptions)
	if config.NoDataFill != nil {
		geoTIFFOptions = append(geoTIFFOptions, WithNoDataFill(*config.NoDataFill))
	}
	geoTIFF, err := LoadGeoTIFF(config.FS, config.Path, geoTIFFOptions...)
	if err != nil {
		return nil, err
	}
	rasterSegmenter, err := LoadRasterSegmenter(geoTIFF.Grid, WithWorkers(config.Workers))
	if err != nil {
		return nil, err
	}
	return &GeoTIFFSegmenter{
		RasterElevationSegmenter: rasterSegmenter,
		crs:                      geoTIFF.CRS(),
	}, nil
}

func newPrecomputedPointLoaderFromConfig(config SegmenterConfig) (Segmenter, error) {
	return NewPrecomputedPointLoader(config.FS, config.Path), nil
}
