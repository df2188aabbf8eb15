package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sentinel-access/sentinel/server/internal/sentinel/aggregate"
	"github.com/sentinel-access/sentinel/server/internal/sentinel/service"
	"github.com/sentinel-access/sentinel/server/internal/sentinel/types"
)

// summaryWindow bounds how many recent logs go to the analyst.
const summaryWindow = 50

type statsResponse struct {
	types.DashboardStats
	PendingRetries int  `json:"pending_retries"`
	SyncInProgress bool `json:"sync_in_progress"`
}

// ── Views ────────────────────────────────────────────────────────────────────

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	logs := s.monitor.Snapshot().FilteredLogs(r.URL.Query().Get("device"))
	writeJSON(w, http.StatusOK, logs)
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	alerts := s.monitor.Snapshot().FilteredAlerts(r.URL.Query().Get("device"))
	writeJSON(w, http.StatusOK, alerts)
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	limit := aggregate.DefaultNotificationLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "bad_limit", "limit must be a positive integer")
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, s.monitor.Snapshot().RecentNotifications(limit))
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, statsResponse{
		DashboardStats: s.monitor.Snapshot().Stats,
		PendingRetries: s.monitor.PendingRetries(),
		SyncInProgress: s.monitor.SyncInProgress(),
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	audit, _ := strconv.ParseBool(r.URL.Query().Get("audit"))
	logs := s.monitor.Snapshot().FilteredLogs(r.URL.Query().Get("device"))
	if len(logs) > summaryWindow {
		logs = logs[:summaryWindow]
	}

	sum, err := s.analyst.Summarize(r.Context(), logs, audit)
	if err != nil {
		s.logger.Warn("summary unavailable", zap.Error(err))
	}
	if sum == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// ── Directory ────────────────────────────────────────────────────────────────

func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.monitor.Devices())
}

func (s *Server) handleAddDevice(w http.ResponseWriter, r *http.Request) {
	var d types.Device
	if err := decodeJSON(w, r, &d, maxAdminBody); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}
	created, err := s.monitor.AddDevice(r.Context(), d)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListUsers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.monitor.Users())
}

func (s *Server) handleAddUser(w http.ResponseWriter, r *http.Request) {
	var u types.User
	if err := decodeJSON(w, r, &u, maxAdminBody); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}
	created, err := s.monitor.AddUser(r.Context(), u)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := s.monitor.DeleteUser(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ── Settings ─────────────────────────────────────────────────────────────────

func (s *Server) handleGetSettings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.monitor.Settings().Redacted())
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var next types.NotificationSettings
	if err := decodeJSON(w, r, &next, maxAdminBody); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}
	// The dashboard echoes the redacted password back when it is unchanged.
	if next.SMTP.Pass == types.RedactedSecret {
		next.SMTP.Pass = s.monitor.Settings().SMTP.Pass
	}
	if err := s.monitor.UpdateSettings(r.Context(), next); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.monitor.Settings().Redacted())
}

// ── Sync ─────────────────────────────────────────────────────────────────────

// handleSync starts a manual batch in the background. The interlock is taken
// before returning, so a second call gets 409 until the batch finishes.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if err := s.monitor.StartManualSync(s.baseCtx); err != nil {
		if errors.Is(err, service.ErrSyncInProgress) {
			writeError(w, http.StatusConflict, "sync_in_progress", "a manual sync is already running")
			return
		}
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]bool{"accepted": true})
}

func (s *Server) handleResync(w http.ResponseWriter, r *http.Request) {
	if err := s.monitor.Resync(r.Context()); err != nil {
		s.logger.Warn("resync failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", "could not reload from the durable store")
		return
	}
	s.handleStats(w, r)
}
