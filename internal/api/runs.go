package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/sells-group/school-risk/internal/export"
	"github.com/sells-group/school-risk/internal/model"
	"github.com/sells-group/school-risk/internal/store"
)

const maxListLimit = 500

func parseIntParam(v string, def, limit int) (int, error) {
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, errors.New("must be a non-negative integer")
	}
	return min(n, limit), nil
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotImplemented, "history_disabled", "run history is not configured")
		return
	}
	q := r.URL.Query()
	limit, err := parseIntParam(q.Get("limit"), 50, maxListLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "limit "+err.Error())
		return
	}
	offset, err := parseIntParam(q.Get("offset"), 0, 1<<30)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "offset "+err.Error())
		return
	}

	runs, err := s.store.ListRuns(r.Context(), model.RunFilter{Limit: limit, Offset: offset})
	if err != nil {
		zap.L().Error("api: list runs", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "store_error", "failed to list runs")
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

type runResponse struct {
	model.Run
	Rings *geojson.FeatureCollection `json:"rings,omitempty"`
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotImplemented, "history_disabled", "run history is not configured")
		return
	}
	id := chi.URLParam(r, "id")
	run, err := s.store.GetRun(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "run not found")
		return
	}
	if err != nil {
		zap.L().Error("api: get run", zap.String("run_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "store_error", "failed to load run")
		return
	}

	resp := runResponse{Run: *run}
	if run.Result != nil {
		resp.Rings = export.ZoneFeatures(run.Result)
	}
	writeJSON(w, http.StatusOK, resp)
}
