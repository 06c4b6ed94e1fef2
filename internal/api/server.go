// Package api serves buffer-zone analyses, merged schools and run history over
// HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/school-risk/internal/analysis"
	"github.com/sells-group/school-risk/internal/layers"
	"github.com/sells-group/school-risk/internal/model"
	"github.com/sells-group/school-risk/internal/store"
)

// Limits bound the zone configuration accepted from clients.
type Limits struct {
	MinTotalRadiusKm float64
	MaxTotalRadiusKm float64
	MinZoneWidthKm   float64
	MaxZoneWidthKm   float64
}

// Options configures a Server.
type Options struct {
	Limits Limits
	// Defaults fill in a zone configuration the client left out.
	Defaults       model.ZoneConfig
	AllowedOrigins []string
	// BaseContext parents background layer refreshes. Defaults to
	// context.Background().
	BaseContext context.Context
}

// Server holds the handler dependencies. Store may be nil, which disables
// run history.
type Server struct {
	analyzer *analysis.Analyzer
	holder   *layers.Holder
	store    store.Store
	opts     Options
}

// NewServer creates a Server.
func NewServer(analyzer *analysis.Analyzer, holder *layers.Holder, st store.Store, opts Options) *Server {
	if opts.BaseContext == nil {
		opts.BaseContext = context.Background()
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	return &Server{analyzer: analyzer, holder: holder, store: st, opts: opts}
}

// Routes returns the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/analysis", s.handleAnalysis)
		r.Get("/schools", s.handleSchools)
		r.Get("/layers", s.handleLayers)
		r.Post("/layers/refresh", s.handleRefresh)
		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{id}", s.handleGetRun)
	})
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: code, Message: message})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"layers_loaded": s.holder.Current() != nil,
	})
}
