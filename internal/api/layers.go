package api

import (
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/school-risk/internal/layers"
	"github.com/sells-group/school-risk/internal/source"
)

func (s *Server) handleSchools(w http.ResponseWriter, _ *http.Request) {
	state := s.holder.Current()
	if state == nil {
		writeError(w, http.StatusServiceUnavailable, "layers_unavailable", "layers are not loaded yet")
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	if err := source.EncodeSchools(w, state.Schools); err != nil {
		zap.L().Warn("api: encode schools", zap.Error(err))
	}
}

type layersResponse struct {
	Loaded     bool           `json:"loaded"`
	Refreshing bool           `json:"refreshing"`
	LoadedAt   *time.Time     `json:"loaded_at,omitempty"`
	Schools    int            `json:"schools"`
	Counts     map[string]int `json:"counts,omitempty"`
	Failed     []string       `json:"failed,omitempty"`
}

func (s *Server) handleLayers(w http.ResponseWriter, _ *http.Request) {
	resp := layersResponse{Refreshing: s.holder.Refreshing()}
	if state := s.holder.Current(); state != nil {
		resp.Loaded = true
		resp.LoadedAt = &state.LoadedAt
		resp.Schools = len(state.Schools)
		resp.Counts = state.Counts
		resp.Failed = state.Failed
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.holder.Refreshing() {
		writeError(w, http.StatusConflict, "refresh_in_progress", "a layer refresh is already running")
		return
	}
	opts := layers.LoadOpts{Refresh: r.URL.Query().Get("force") == "true"}
	go func() {
		if err := s.holder.Refresh(s.opts.BaseContext, opts); err != nil {
			if errors.Is(err, layers.ErrRefreshInProgress) {
				return
			}
			zap.L().Error("api: layer refresh failed", zap.Error(err))
		}
	}()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}
