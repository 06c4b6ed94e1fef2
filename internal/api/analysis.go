package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/sells-group/school-risk/internal/export"
	"github.com/sells-group/school-risk/internal/geo"
	"github.com/sells-group/school-risk/internal/model"
	"github.com/sells-group/school-risk/internal/store"
)

type analysisRequest struct {
	Lat           *float64 `json:"lat"`
	Lng           *float64 `json:"lng"`
	TotalRadiusKm float64  `json:"total_radius_km"`
	ZoneWidthKm   float64  `json:"zone_width_km"`
}

type analysisResponse struct {
	RunID string `json:"run_id,omitempty"`
	*model.AnalysisResult
	Rings *geojson.FeatureCollection `json:"rings"`
}

// config returns the requested zone config with defaults applied, or an
// error message when it is outside the configured limits.
func (s *Server) config(req analysisRequest) (model.ZoneConfig, string) {
	cfg := model.ZoneConfig{TotalRadiusKm: req.TotalRadiusKm, ZoneWidthKm: req.ZoneWidthKm}
	if cfg.TotalRadiusKm == 0 {
		cfg.TotalRadiusKm = s.opts.Defaults.TotalRadiusKm
	}
	if cfg.ZoneWidthKm == 0 {
		cfg.ZoneWidthKm = s.opts.Defaults.ZoneWidthKm
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err.Error()
	}

	l := s.opts.Limits
	if l.MaxTotalRadiusKm > 0 && (cfg.TotalRadiusKm < l.MinTotalRadiusKm || cfg.TotalRadiusKm > l.MaxTotalRadiusKm) {
		return cfg, fmt.Sprintf("total_radius_km must be between %g and %g", l.MinTotalRadiusKm, l.MaxTotalRadiusKm)
	}
	if l.MaxZoneWidthKm > 0 && (cfg.ZoneWidthKm < l.MinZoneWidthKm || cfg.ZoneWidthKm > l.MaxZoneWidthKm) {
		return cfg, fmt.Sprintf("zone_width_km must be between %g and %g", l.MinZoneWidthKm, l.MaxZoneWidthKm)
	}
	return cfg, ""
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	var req analysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
		return
	}
	if req.Lat == nil || req.Lng == nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "lat and lng are required")
		return
	}
	center := geo.FromLatLng(*req.Lat, *req.Lng)
	if !center.Valid() {
		writeError(w, http.StatusBadRequest, "validation_failed", "lat/lng out of range")
		return
	}
	cfg, msg := s.config(req)
	if msg != "" {
		writeError(w, http.StatusBadRequest, "validation_failed", msg)
		return
	}

	state := s.holder.Current()
	if state == nil {
		writeError(w, http.StatusServiceUnavailable, "layers_unavailable", "layers are not loaded yet")
		return
	}

	result, err := s.analyzer.Analyze(center, cfg, state.Schools, state.Snapshot)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	resp := analysisResponse{AnalysisResult: result, Rings: export.ZoneFeatures(result)}
	if s.store != nil {
		run := store.NewRun(result)
		if err := s.store.SaveRun(r.Context(), run); err != nil {
			zap.L().Error("api: save run", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "store_error", "failed to record run")
			return
		}
		resp.RunID = run.ID
	}
	writeJSON(w, http.StatusOK, resp)
}
