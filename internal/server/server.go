// Package server provides the HTTP API for submitting shuttle-run videos
// and retrieving analysis results.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/fieldside/shuttlerun/internal/analysis"
	"github.com/fieldside/shuttlerun/internal/pose"
	"github.com/fieldside/shuttlerun/internal/store"
	"github.com/fieldside/shuttlerun/internal/track"
	"github.com/fieldside/shuttlerun/internal/video"
)

// ExtractFunc turns an uploaded file into pipeline signals. It exists
// as a seam so tests can feed synthetic extractions without OpenCV.
type ExtractFunc func(ctx context.Context, path string) (*video.Extraction, error)

// Config holds the server configuration.
type Config struct {
	Store     *store.Store
	Analyzer  *analysis.Analyzer
	UploadDir string
	StaticDir string

	// PoseDetector and MarkerDetector feed the default extractor.
	// Ignored when Extract is set.
	PoseDetector   pose.Detector
	MarkerDetector track.MarkerDetector
	Extract        ExtractFunc
}

// Server represents the HTTP server for the analysis service.
type Server struct {
	config  Config
	mux     *http.ServeMux
	hub     *ProgressHub
	extract ExtractFunc
	start   time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		hub:    NewProgressHub(),
		start:  time.Now(),
	}
	s.extract = config.Extract
	if s.extract == nil {
		s.extract = s.defaultExtract
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)
	s.mux.HandleFunc("/api/upload", s.handleUpload)
	s.mux.HandleFunc("/api/status/", s.handleStatus)
	s.mux.HandleFunc("/api/result/", s.handleResult)
	s.mux.HandleFunc("/api/benchmarks", s.handleBenchmarks)
	s.mux.HandleFunc("/api/age-groups", s.handleAgeGroups)
	s.mux.Handle("/api/progress/", s.hub)

	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	})
}

// defaultExtract walks the uploaded file with the configured detectors.
func (s *Server) defaultExtract(ctx context.Context, path string) (*video.Extraction, error) {
	markerDet := s.config.MarkerDetector
	if markerDet == nil {
		markerDet = track.NewEdgeMarkerDetector()
	}
	extractor := video.NewExtractor(s.config.PoseDetector, markerDet)
	return extractor.Run(ctx, video.NewFileSource(path))
}

// ListenAndServe starts the HTTP server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
