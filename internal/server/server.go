// Package server serves villages, their low-lying points, and search
// history over HTTP.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/twpayne/go-lowlying"
	"github.com/twpayne/go-lowlying/internal/history"
	"github.com/twpayne/go-lowlying/internal/logger"
	"github.com/twpayne/go-lowlying/internal/mapview"
	"github.com/twpayne/go-lowlying/internal/village"
)

const noLayersMessage = "Please choose at least one layer above."

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lowlying_http_requests_total",
		Help: "The total number of HTTP requests",
	}, []string{"route", "code"})
	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lowlying_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	pointCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lowlying_point_cache_hits_total",
		Help: "The total number of hits on the village point cache",
	})
	pointCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lowlying_point_cache_misses_total",
		Help: "The total number of misses on the village point cache",
	})
)

// Options configure a Server.
type Options struct {
	Points         []lowlying.Point
	Boundaries     *village.Boundaries
	History        history.Store
	Logger         *slog.Logger
	PointCacheSize int
}

// A Server is an http.Handler.
type Server struct {
	points     []lowlying.Point
	boundaries *village.Boundaries
	history    history.Store
	logger     *slog.Logger
	pointCache *lru.Cache[string, []lowlying.Point]
	mux        *http.ServeMux
	handler    http.Handler
}

// New returns a new Server.
func New(options Options) (*Server, error) {
	if options.Logger == nil {
		options.Logger = logger.L()
	}
	if options.PointCacheSize <= 0 {
		options.PointCacheSize = 128
	}
	pointCache, err := lru.New[string, []lowlying.Point](options.PointCacheSize)
	if err != nil {
		return nil, err
	}
	s := &Server{
		points:     options.Points,
		boundaries: options.Boundaries,
		history:    options.History,
		logger:     options.Logger,
		pointCache: pointCache,
		mux:        http.NewServeMux(),
	}
	s.handle("GET /api/villages", s.handleVillages)
	s.handle("GET /api/villages/{name}/map", s.handleVillageMap)
	s.handle("GET /api/villages/{name}/points", s.handleVillagePoints)
	s.handle("GET /api/history", s.handleHistory)
	s.handle("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok\n"))
	})
	s.mux.Handle("GET /metrics", promhttp.Handler())
	s.handler = logger.AccessMiddleware(s.logger)(s.mux)
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// handle registers handler for pattern, instrumenting it.
func (s *Server) handle(pattern string, handler http.HandlerFunc) {
	duration := httpRequestDuration.WithLabelValues(pattern)
	s.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		cw := &codeWriter{ResponseWriter: w, code: http.StatusOK}
		handler(cw, r)
		duration.Observe(time.Since(start).Seconds())
		httpRequests.WithLabelValues(pattern, strconv.Itoa(cw.code)).Inc()
	})
}

type villagesResponse struct {
	Villages []string `json:"villages"`
	Last     *string  `json:"last"`
}

func (s *Server) handleVillages(w http.ResponseWriter, r *http.Request) {
	response := villagesResponse{
		Villages: s.boundaries.Names(),
	}
	switch last, ok, err := s.history.LastSearched(r.Context()); {
	case err != nil:
		s.logger.Warn("history_last_searched_error", "err", err)
	case ok:
		response.Last = &last
	}
	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleVillageMap(w http.ResponseWriter, r *http.Request) {
	v, points, ok := s.villagePoints(w, r)
	if !ok {
		return
	}

	layers := mapview.Layers(points, v)
	if names, ok := r.URL.Query()["layers"]; ok {
		var err error
		layers, err = mapview.Select(layers, names)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, noLayersMessage)
			return
		}
	}

	if err := s.history.Persist(r.Context(), v.Name); err != nil {
		s.logger.Warn("history_persist_error", "village", v.Name, "err", err)
	}
	s.writeJSON(w, http.StatusOK, mapview.NewDeck(v, layers))
}

func (s *Server) handleVillagePoints(w http.ResponseWriter, r *http.Request) {
	_, points, ok := s.villagePoints(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, lowlying.PointsFeatureCollection(points))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := s.history.Fetch(r.Context())
	if err != nil {
		s.logger.Error("history_fetch_error", "err", err)
		s.writeError(w, http.StatusInternalServerError, "history unavailable")
		return
	}
	s.writeJSON(w, http.StatusOK, entries)
}

// villagePoints returns the village named in r and its low-lying points. If
// the village does not exist it writes an error response and returns false.
func (s *Server) villagePoints(w http.ResponseWriter, r *http.Request) (*village.Village, []lowlying.Point, bool) {
	name := r.PathValue("name")
	v, err := s.boundaries.Lookup(name)
	if err != nil {
		s.writeError(w, http.StatusNotFound, err.Error())
		return nil, nil, false
	}
	if points, ok := s.pointCache.Get(name); ok {
		pointCacheHits.Inc()
		return v, points, true
	}
	pointCacheMisses.Inc()
	points := v.Filter(s.points)
	s.pointCache.Add(name, points)
	return v, points, true
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(value); err != nil {
		s.logger.Warn("http_write_error", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, code int, message string) {
	s.writeJSON(w, code, map[string]string{"error": message})
}

// codeWriter records the status code.
type codeWriter struct {
	http.ResponseWriter
	code int
}

func (w *codeWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
