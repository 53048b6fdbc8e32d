package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/twpayne/go-lowlying"
	"github.com/twpayne/go-lowlying/internal/history"
	"github.com/twpayne/go-lowlying/internal/village"
)

const villagesGeoJSON = `{"type":"FeatureCollection","features":[` +
	`{"type":"Feature","properties":{"KGISVill_2":"Kadugodi"},` +
	`"geometry":{"type":"Polygon","coordinates":[[[77,12],[78,12],[78,13],[77,13],[77,12]]]}},` +
	`{"type":"Feature","properties":{"KGISVill_2":"Whitefield"},` +
	`"geometry":{"type":"Polygon","coordinates":[[[78,12],[79,12],[79,13],[78,13],[78,12]]]}}` +
	`]}`

func newTestServer(t *testing.T) (*Server, *history.MemoryStore) {
	t.Helper()
	boundaries, err := village.ParseBoundaries([]byte(villagesGeoJSON), village.DefaultNameProperty)
	assert.NoError(t, err)
	store := history.NewMemoryStore()
	s, err := New(Options{
		Points: []lowlying.Point{
			{X: 77.25, Y: 12.5},
			{X: 78.5, Y: 12.5},
			{X: 77.75, Y: 12.25},
		},
		Boundaries: boundaries,
		History:    store,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	assert.NoError(t, err)
	return s, store
}

func get(t *testing.T, handler http.Handler, target string, value any) int {
	t.Helper()
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	if value != nil {
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), value))
	}
	return w.Code
}

func TestServer_Villages(t *testing.T) {
	s, store := newTestServer(t)

	var response villagesResponse
	assert.Equal(t, http.StatusOK, get(t, s, "/api/villages", &response))
	assert.Equal(t, villagesResponse{Villages: []string{"Kadugodi", "Whitefield"}}, response)

	assert.NoError(t, store.Persist(t.Context(), "Whitefield"))
	assert.Equal(t, http.StatusOK, get(t, s, "/api/villages", &response))
	assert.True(t, response.Last != nil)
	assert.Equal(t, "Whitefield", *response.Last)
}

func TestServer_VillageMap(t *testing.T) {
	s, store := newTestServer(t)

	var deck struct {
		InitialViewState struct {
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
			Zoom      float64 `json:"zoom"`
		} `json:"initialViewState"`
		Layers []struct {
			ID   string `json:"id"`
			Data any    `json:"data"`
		} `json:"layers"`
	}
	assert.Equal(t, http.StatusOK, get(t, s, "/api/villages/Kadugodi/map", &deck))
	assert.Equal(t, 12.5, deck.InitialViewState.Latitude)
	assert.Equal(t, 77.5, deck.InitialViewState.Longitude)
	assert.Equal(t, 13.0, deck.InitialViewState.Zoom)
	assert.Equal(t, 2, len(deck.Layers))
	assert.Equal(t, "Low Lying Areas", deck.Layers[0].ID)
	assert.Equal[any](t, []any{
		map[string]any{"x": 77.25, "y": 12.5},
		map[string]any{"x": 77.75, "y": 12.25},
	}, deck.Layers[0].Data)

	target := "/api/villages/Kadugodi/map?" + url.Values{"layers": {"Village Boundaries"}}.Encode()
	assert.Equal(t, http.StatusOK, get(t, s, target, &deck))
	assert.Equal(t, 1, len(deck.Layers))
	assert.Equal(t, "Village Boundaries", deck.Layers[0].ID)

	var errorResponse map[string]string
	assert.Equal(t, http.StatusBadRequest, get(t, s, "/api/villages/Kadugodi/map?layers=", &errorResponse))
	assert.Equal(t, map[string]string{"error": "Please choose at least one layer above."}, errorResponse)

	assert.Equal(t, http.StatusNotFound, get(t, s, "/api/villages/Hoskote/map", &errorResponse))

	entries, err := store.Fetch(t.Context())
	assert.NoError(t, err)
	assert.Equal(t, []history.Entry{{Village: "Kadugodi", Count: 2, Last: true}}, entries)
}

func TestServer_VillagePoints(t *testing.T) {
	s, _ := newTestServer(t)

	for range 2 {
		var featureCollection struct {
			Type     string `json:"type"`
			Features []struct {
				Geometry struct {
					Coordinates []float64 `json:"coordinates"`
				} `json:"geometry"`
			} `json:"features"`
		}
		assert.Equal(t, http.StatusOK, get(t, s, "/api/villages/Whitefield/points", &featureCollection))
		assert.Equal(t, "FeatureCollection", featureCollection.Type)
		assert.Equal(t, 1, len(featureCollection.Features))
		assert.Equal(t, []float64{78.5, 12.5}, featureCollection.Features[0].Geometry.Coordinates)
	}
	assert.Equal(t, 1, s.pointCache.Len())
}

func TestServer_History(t *testing.T) {
	s, store := newTestServer(t)
	assert.NoError(t, store.Persist(t.Context(), "Kadugodi"))
	assert.NoError(t, store.Persist(t.Context(), "Whitefield"))

	var entries []history.Entry
	assert.Equal(t, http.StatusOK, get(t, s, "/api/history", &entries))
	assert.Equal(t, []history.Entry{
		{Village: "Kadugodi", Count: 1},
		{Village: "Whitefield", Count: 1, Last: true},
	}, entries)
}

func TestServer_Health(t *testing.T) {
	s, _ := newTestServer(t)
	assert.Equal(t, http.StatusOK, get(t, s, "/healthz", nil))
	assert.Equal(t, http.StatusOK, get(t, s, "/metrics", nil))

	w := httptest.NewRecorder()
	s.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/history", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
