package lowlying

import (
	"errors"
	"testing"

	"github.com/alecthomas/assert/v2"
)

func TestParseGeoKeys(t *testing.T) {
	// SRTM 1 arc-second tile, WGS 84.
	directory := []uint16{
		1, 1, 0, 4,
		1024, 0, 1, 2,
		1025, 0, 1, 2,
		2048, 0, 1, 4326,
		2049, 34737, 7, 0,
	}
	asciiParams := []byte("WGS 84|")

	actual, err := ParseGeoKeys(directory, nil, asciiParams)
	assert.NoError(t, err)
	assert.Equal(t, &ParsedGeoKeys{
		Params: map[GeoKey]int{
			GeoKeyGTModelType:  ModelTypeGeographic,
			GeoKeyGTRasterType: RasterPixelIsPoint,
			GeoKeyGeodeticCRS:  4326,
		},
		DoubleParams: map[GeoKey]float64{},
		ASCIIParams: map[GeoKey]string{
			GeoKeyGeogCitation: "WGS 84|",
		},
	}, actual)

	epsg, ok := actual.EPSG()
	assert.True(t, ok)
	assert.Equal(t, 4326, epsg)
	assert.Equal(t, RasterPixelIsPoint, actual.RasterType())
}

func TestParseGeoKeys_Projected(t *testing.T) {
	// WGS 84 / UTM zone 43N in metres.
	directory := []uint16{
		1, 1, 0, 4,
		1024, 0, 1, 1,
		1025, 0, 1, 1,
		3072, 0, 1, 32643,
		3076, 0, 1, 9001,
	}

	actual, err := ParseGeoKeys(directory, nil, nil)
	assert.NoError(t, err)
	assert.Equal(t, &ParsedGeoKeys{
		Params: map[GeoKey]int{
			GeoKeyGTModelType:     ModelTypeProjected,
			GeoKeyGTRasterType:    RasterPixelIsArea,
			GeoKeyProjectedCRS:    32643,
			GeoKeyProjLinearUnits: 9001,
		},
		DoubleParams: map[GeoKey]float64{},
		ASCIIParams:  map[GeoKey]string{},
	}, actual)
	_, ok := actual.Params[GeoKeyGeogLinearUnits]
	assert.False(t, ok)

	epsg, ok := actual.EPSG()
	assert.True(t, ok)
	assert.Equal(t, 32643, epsg)
}

func TestParsedGeoKeys_EPSG(t *testing.T) {
	for _, tc := range []struct {
		name     string
		params   map[GeoKey]int
		expected int
	}{
		{
			name: "projected",
			params: map[GeoKey]int{
				GeoKeyProjectedCRS: 32643,
				GeoKeyGeodeticCRS:  4326,
			},
			expected: 32643,
		},
		{
			name: "user_defined_projected",
			params: map[GeoKey]int{
				GeoKeyProjectedCRS: userDefined,
				GeoKeyGeodeticCRS:  4258,
			},
			expected: 4258,
		},
		{
			name: "missing",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			k := &ParsedGeoKeys{Params: tc.params}
			actual, ok := k.EPSG()
			assert.Equal(t, tc.expected != 0, ok)
			assert.Equal(t, tc.expected, actual)
			assert.Equal(t, RasterPixelIsArea, k.RasterType())
		})
	}
}

func TestParseGeoKeys_Errors(t *testing.T) {
	for _, tc := range []struct {
		name         string
		directory    []uint16
		doubleParams []float64
		unsupported  bool
	}{
		{
			name:      "short",
			directory: []uint16{1, 1, 0},
		},
		{
			name:      "bad_version",
			directory: []uint16{2, 1, 0, 0},
		},
		{
			name:      "bad_count",
			directory: []uint16{1, 1, 0, 2, 1024, 0, 1, 1},
		},
		{
			name:      "double_out_of_range",
			directory: []uint16{1, 1, 0, 1, 2057, 34736, 1, 3},
		},
		{
			name:        "unknown_location",
			directory:   []uint16{1, 1, 0, 1, 1024, 1, 1, 1},
			unsupported: true,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseGeoKeys(tc.directory, tc.doubleParams, nil)
			if tc.unsupported {
				assert.IsError(t, err, errors.ErrUnsupported)
			} else {
				assert.IsError(t, err, errParse)
			}
		})
	}
}
