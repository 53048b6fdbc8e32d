package lowlying_test

import (
	"bytes"
	"testing"
	"testing/fstest"

	"github.com/alecthomas/assert/v2"

	"github.com/twpayne/go-lowlying"
)

func TestPrecomputedPointLoader_Segment(t *testing.T) {
	fsys := fstest.MapFS{
		"low_lying_pts.csv": &fstest.MapFile{
			Data: []byte("" +
				"label,x,y\n" +
				"1.0,77.5,12.9\n" +
				"0.0,77.6,13.0\n" +
				"1,77.7,13.1\n",
			),
		},
		"xy_only.csv": &fstest.MapFile{
			Data: []byte("y,x\n12.9,77.5\n"),
		},
		"points.geojson": &fstest.MapFile{
			Data: []byte(`{"type":"FeatureCollection","features":[` +
				`{"type":"Feature","geometry":{"type":"Point","coordinates":[77.5,12.9]},"properties":{}},` +
				`{"type":"Feature","geometry":{"type":"LineString","coordinates":[[0,0],[1,1]]},"properties":{}},` +
				`{"type":"Feature","geometry":{"type":"Point","coordinates":[77.7,13.1]},"properties":{}}` +
				`]}`),
		},
		"missing_y.csv": &fstest.MapFile{
			Data: []byte("x\n1\n"),
		},
		"bad_x.csv": &fstest.MapFile{
			Data: []byte("x,y\n1,2\nabc,3\n"),
		},
		"points.shp": &fstest.MapFile{},
	}

	for _, tc := range []struct {
		name        string
		filename    string
		expected    []lowlying.Point
		expectedErr string
	}{
		{
			name:     "csv_with_labels",
			filename: "low_lying_pts.csv",
			expected: []lowlying.Point{
				{X: 77.5, Y: 12.9},
				{X: 77.7, Y: 13.1},
			},
		},
		{
			name:     "csv_without_labels",
			filename: "xy_only.csv",
			expected: []lowlying.Point{
				{X: 77.5, Y: 12.9},
			},
		},
		{
			name:     "geojson",
			filename: "points.geojson",
			expected: []lowlying.Point{
				{X: 77.5, Y: 12.9},
				{X: 77.7, Y: 13.1},
			},
		},
		{
			name:        "missing_column",
			filename:    "missing_y.csv",
			expectedErr: "missing_y.csv: y: missing column",
		},
		{
			name:        "bad_value",
			filename:    "bad_x.csv",
			expectedErr: `bad_x.csv: line 3: x: strconv.ParseFloat: parsing "abc": invalid syntax`,
		},
		{
			name:        "unsupported",
			filename:    "points.shp",
			expectedErr: "points.shp: unsupported format",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			actual, err := lowlying.NewPrecomputedPointLoader(fsys, tc.filename).Segment(t.Context())
			if tc.expectedErr != "" {
				assert.EqualError(t, err, tc.expectedErr)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.expected, actual)
		})
	}
}

func TestPrecomputedPointLoader_Missing(t *testing.T) {
	_, err := lowlying.NewPrecomputedPointLoader(fstest.MapFS{}, "missing.csv").Segment(t.Context())
	assert.Error(t, err)
}

func TestWritePointsCSV(t *testing.T) {
	points := []lowlying.Point{
		{X: 77.5, Y: 12.9},
		{X: -1, Y: 0.25},
	}
	var buffer bytes.Buffer
	assert.NoError(t, lowlying.WritePointsCSV(&buffer, points))
	assert.Equal(t, "label,x,y\n1,77.5,12.9\n1,-1,0.25\n", buffer.String())

	fsys := fstest.MapFS{
		"points.csv": &fstest.MapFile{Data: buffer.Bytes()},
	}
	actual, err := lowlying.NewPrecomputedPointLoader(fsys, "points.csv").Segment(t.Context())
	assert.NoError(t, err)
	assert.Equal(t, points, actual)
}
