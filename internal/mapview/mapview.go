// Package mapview describes the deck.gl map of a village and its low-lying
// points.
package mapview

import (
	"errors"
	"slices"

	"github.com/twpayne/go-lowlying"
	"github.com/twpayne/go-lowlying/internal/village"
)

// Layer names.
const (
	LowLyingAreas     = "Low Lying Areas"
	VillageBoundaries = "Village Boundaries"
)

const (
	defaultZoom  = 13
	defaultPitch = 50
)

var ErrNoLayers = errors.New("no layers selected")

// A ViewState is the initial camera of a map.
type ViewState struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Zoom      float64 `json:"zoom"`
	Pitch     float64 `json:"pitch"`
}

// A Layer is a deck.gl layer.
type Layer struct {
	Name        string `json:"id"`
	Type        string `json:"@@type"`
	Data        any    `json:"data"`
	GetPosition string `json:"getPosition,omitempty"`
	GetPolygon  string `json:"getPolygon,omitempty"`
	GetColor    []int  `json:"getColor,omitempty"`
	GetFill     []int  `json:"getFillColor,omitempty"`
	GetRadius   int    `json:"getRadius,omitempty"`
	Stroked     *bool  `json:"stroked,omitempty"`
	Filled      *bool  `json:"filled,omitempty"`
	Pickable    bool   `json:"pickable"`
}

type position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// A Deck is a deck.gl map.
type Deck struct {
	MapStyle         *string   `json:"mapStyle"`
	InitialViewState ViewState `json:"initialViewState"`
	Layers           []Layer   `json:"layers"`
}

// InitialViewState returns a view state centered on v.
func InitialViewState(v *village.Village) ViewState {
	centroid := v.Centroid()
	return ViewState{
		Latitude:  centroid.Y,
		Longitude: centroid.X,
		Zoom:      defaultZoom,
		Pitch:     defaultPitch,
	}
}

// Layers returns the layers for the low-lying points in v, in display
// order.
func Layers(points []lowlying.Point, v *village.Village) []Layer {
	positions := make([]position, len(points))
	for i, point := range points {
		positions[i] = position{X: point.X, Y: point.Y}
	}
	return []Layer{
		{
			Name:        LowLyingAreas,
			Type:        "ScatterplotLayer",
			Data:        positions,
			GetPosition: "@@=[x, y]",
			GetColor:    []int{200, 30, 0, 160},
			GetRadius:   10,
			Pickable:    true,
		},
		{
			Name:       VillageBoundaries,
			Type:       "PolygonLayer",
			Data:       [][][2]float64{v.ExteriorRing()},
			GetPolygon: "@@=-",
			GetFill:    []int{255, 0, 100, 30},
			Stroked:    boolPtr(false),
			Filled:     boolPtr(true),
			Pickable:   true,
		},
	}
}

// Select returns the layers whose names are in names, in their original
// order. It returns ErrNoLayers if no layer is selected.
func Select(layers []Layer, names []string) ([]Layer, error) {
	var selected []Layer
	for _, layer := range layers {
		if slices.Contains(names, layer.Name) {
			selected = append(selected, layer)
		}
	}
	if len(selected) == 0 {
		return nil, ErrNoLayers
	}
	return selected, nil
}

// NewDeck returns the deck for the selected layers of v.
func NewDeck(v *village.Village, layers []Layer) *Deck {
	return &Deck{
		InitialViewState: InitialViewState(v),
		Layers:           layers,
	}
}

func boolPtr(b bool) *bool {
	return &b
}
