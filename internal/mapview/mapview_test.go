package mapview

import (
	"encoding/json"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/paulmach/orb"

	"github.com/twpayne/go-lowlying"
	"github.com/twpayne/go-lowlying/internal/village"
)

func testVillage(t *testing.T) *village.Village {
	t.Helper()
	boundaries, err := village.ParseBoundaries([]byte(`{"type":"FeatureCollection","features":[`+
		`{"type":"Feature","properties":{"KGISVill_2":"Kadugodi"},`+
		`"geometry":{"type":"Polygon","coordinates":[[[77,12],[78,12],[78,13],[77,13],[77,12]]]}}]}`), "")
	assert.NoError(t, err)
	v, err := boundaries.Lookup("Kadugodi")
	assert.NoError(t, err)
	assert.Equal(t, orb.MultiPolygon{{{{77, 12}, {78, 12}, {78, 13}, {77, 13}, {77, 12}}}}, v.Geometry)
	return v
}

func TestInitialViewState(t *testing.T) {
	assert.Equal(t, ViewState{
		Latitude:  12.5,
		Longitude: 77.5,
		Zoom:      13,
		Pitch:     50,
	}, InitialViewState(testVillage(t)))
}

func TestSelect(t *testing.T) {
	layers := Layers([]lowlying.Point{{X: 77.25, Y: 12.75}}, testVillage(t))

	for _, tc := range []struct {
		name        string
		names       []string
		expected    []string
		expectedErr error
	}{
		{
			name:     "all",
			names:    []string{VillageBoundaries, LowLyingAreas},
			expected: []string{LowLyingAreas, VillageBoundaries},
		},
		{
			name:     "points_only",
			names:    []string{LowLyingAreas},
			expected: []string{LowLyingAreas},
		},
		{
			name:        "none",
			expectedErr: ErrNoLayers,
		},
		{
			name:        "unknown",
			names:       []string{"Roads"},
			expectedErr: ErrNoLayers,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			selected, err := Select(layers, tc.names)
			if tc.expectedErr != nil {
				assert.IsError(t, err, tc.expectedErr)
				return
			}
			assert.NoError(t, err)
			var names []string
			for _, layer := range selected {
				names = append(names, layer.Name)
			}
			assert.Equal(t, tc.expected, names)
		})
	}
}

func TestDeck_JSON(t *testing.T) {
	v := testVillage(t)
	deck := NewDeck(v, Layers([]lowlying.Point{{X: 77.25, Y: 12.75}}, v))
	data, err := json.Marshal(deck)
	assert.NoError(t, err)

	var actual map[string]any
	assert.NoError(t, json.Unmarshal(data, &actual))
	assert.Equal(t, nil, actual["mapStyle"])
	layers := actual["layers"].([]any)
	assert.Equal(t, 2, len(layers))
	points := layers[0].(map[string]any)
	assert.Equal(t, "ScatterplotLayer", points["@@type"])
	assert.Equal[any](t, []any{map[string]any{"x": 77.25, "y": 12.75}}, points["data"])
	polygon := layers[1].(map[string]any)
	assert.Equal(t, false, polygon["stroked"])
	assert.Equal(t, true, polygon["filled"])
}
