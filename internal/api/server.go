// Package api serves stored AIS positions and vessel data over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"aisdb/internal/export"
	"aisdb/internal/logging"
	"aisdb/internal/metrics"
	"aisdb/internal/query"
	"aisdb/internal/storage"
)

// Config holds configuration for the API server.
type Config struct {
	Addr        string   `yaml:"addr"`
	AuthEnabled bool     `yaml:"auth_enabled"`
	APIKeys     []string `yaml:"api_keys"` // List of valid API keys.
}

// Server provides REST access to the query engine.
type Server struct {
	engine      *query.Engine
	store       *storage.Handle
	log         *zap.Logger
	metrics     *metrics.Metrics
	addr        string
	authEnabled bool
	apiKeys     map[string]bool
}

// NewServer creates a new API server.
func NewServer(engine *query.Engine, store *storage.Handle, cfg Config, log *zap.Logger, m *metrics.Metrics) *Server {
	keys := make(map[string]bool)
	for _, k := range cfg.APIKeys {
		if k != "" {
			keys[k] = true
		}
	}
	addr := cfg.Addr
	if addr == "" {
		addr = ":8080"
	}

	return &Server{
		engine:      engine,
		store:       store,
		log:         logging.OrNop(log),
		metrics:     m,
		addr:        addr,
		authEnabled: cfg.AuthEnabled,
		apiKeys:     keys,
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info("api listening", zap.String("addr", s.addr), zap.Bool("auth", s.authEnabled))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown api: %w", err)
		}
		return nil
	}
}

// Router returns the configured chi router.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS for browser access.
	r.Use(corsMiddleware)

	r.Handle("/metrics", s.metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required).
		r.Get("/health", s.handleHealth)

		r.Group(func(r chi.Router) {
			if s.authEnabled {
				r.Use(s.authMiddleware)
			}
			r.Get("/positions", s.handlePositions)
			r.Get("/vessels", s.handleVessels)
			r.Get("/vessels/{mmsi}", s.handleVessel)
			r.Get("/stats", s.handleStats)
			r.Post("/cache/invalidate", s.handleInvalidate)
		})
	})

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)))
	})
}

// corsMiddleware adds CORS headers for browser access.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-API-Key")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// authMiddleware validates API key authentication.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Check X-API-Key header first.
		apiKey := r.Header.Get("X-API-Key")

		// Fall back to Authorization: Bearer <key>.
		if apiKey == "" {
			auth := r.Header.Get("Authorization")
			if strings.HasPrefix(auth, "Bearer ") {
				apiKey = strings.TrimPrefix(auth, "Bearer ")
			}
		}

		// Fall back to query parameter.
		if apiKey == "" {
			apiKey = r.URL.Query().Get("api_key")
		}

		if apiKey == "" {
			writeError(w, http.StatusUnauthorized, "API key required")
			return
		}

		if !s.apiKeys[apiKey] {
			writeError(w, http.StatusForbidden, "Invalid API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"backend": s.store.Backend(),
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// handlePositions runs a position search. Query parameters are the filter
// keys plus format (json, geojson, csv, kml, wkt, xlsx, parquet).
func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	format := export.JSON
	if f := params.Get("format"); f != "" {
		var err error
		if format, err = export.ParseFormat(f); err != nil || format == export.Shapefile {
			writeError(w, http.StatusBadRequest, "Unsupported format "+strconv.Quote(f))
			return
		}
	}

	c, err := query.FromValues(params)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rs, err := s.engine.Search(r.Context(), c)
	if err != nil {
		s.writeQueryError(w, err)
		return
	}

	w.Header().Set("Content-Type", export.ContentType(format))
	if format == export.Excel || format == export.Parquet {
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="positions.%s"`, format))
	}
	w.Header().Set("X-Result-Count", strconv.Itoa(rs.Len()))
	w.WriteHeader(http.StatusOK)
	if err := export.Write(w, rs, format); err != nil {
		s.log.Error("write response", zap.String("format", string(format)), zap.Error(err))
	}
}

// VesselResponse is the JSON response for vessel lookups.
type VesselResponse struct {
	MMSI        uint32           `json:"mmsi"`
	Voyage      []map[string]any `json:"voyage"`
	StaticParts []map[string]any `json:"static_parts,omitempty"`
}

func (s *Server) handleVessel(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "mmsi"), 10, 32)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid MMSI")
		return
	}
	mmsi := uint32(id)

	voyage, err := s.engine.Vessels(r.Context(), mmsi)
	if err != nil {
		s.writeQueryError(w, err)
		return
	}
	resp := VesselResponse{MMSI: mmsi, Voyage: records(voyage)}

	if s.store.Extended() {
		parts, err := s.engine.StaticParts(r.Context(), mmsi)
		if err != nil {
			s.writeQueryError(w, err)
			return
		}
		resp.StaticParts = records(parts)
	}

	if len(resp.Voyage) == 0 && len(resp.StaticParts) == 0 {
		writeError(w, http.StatusNotFound, "No static data found for vessel")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleVessels(w http.ResponseWriter, r *http.Request) {
	rs, err := s.engine.Vessels(r.Context())
	if err != nil {
		s.writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records(rs))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		s.log.Error("table stats", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to read table statistics")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"backend":  s.store.Backend(),
		"extended": s.store.Extended(),
		"tables":   stats,
	})
}

func (s *Server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	dropped := s.engine.CacheLen()
	s.engine.InvalidateCache()
	writeJSON(w, http.StatusOK, map[string]int{"dropped": dropped})
}

func (s *Server) writeQueryError(w http.ResponseWriter, err error) {
	if errors.Is(err, query.ErrInvalidCriteria) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, "Query failed")
}

func records(rs *query.ResultSet) []map[string]any {
	out := make([]map[string]any, rs.Len())
	for i := range out {
		out[i] = rs.Record(i)
	}
	return out
}

// Helper functions.

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
