package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/sentinel-access/sentinel/server/internal/analyst"
	"github.com/sentinel-access/sentinel/server/internal/metrics"
	"github.com/sentinel-access/sentinel/server/internal/sentinel/service"
)

type Dependencies struct {
	Logger     *zap.Logger
	Addr       string
	Monitor    *service.Monitor
	Heartbeats *service.HeartbeatService
	Analyst    analyst.Analyst
	Metrics    *metrics.Metrics
	Clock      func() time.Time

	// Feed serves the live websocket stream. Optional.
	Feed http.Handler

	// BaseContext outlives individual requests; background syncs started
	// over HTTP run under it. Defaults to context.Background().
	BaseContext context.Context
}

type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
	router     chi.Router
	monitor    *service.Monitor
	heartbeats *service.HeartbeatService
	analyst    analyst.Analyst
	metrics    *metrics.Metrics
	baseCtx    context.Context
	now        func() time.Time
}

func NewServer(d Dependencies) *Server {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Metrics == nil {
		d.Metrics = metrics.New(nil)
	}
	if d.Analyst == nil {
		d.Analyst = analyst.Disabled{}
	}
	if d.BaseContext == nil {
		d.BaseContext = context.Background()
	}
	if d.Clock == nil {
		d.Clock = func() time.Time { return time.Now().UTC() }
	}
	if d.Heartbeats == nil && d.Monitor != nil {
		d.Heartbeats = service.NewHeartbeatService(d.Monitor, d.Logger, d.Metrics)
	}

	s := &Server{
		logger:     d.Logger.Named("http"),
		monitor:    d.Monitor,
		heartbeats: d.Heartbeats,
		analyst:    d.Analyst,
		metrics:    d.Metrics,
		baseCtx:    d.BaseContext,
		now:        d.Clock,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	if d.Feed != nil {
		r.Method(http.MethodGet, "/ws", d.Feed)
	}

	// Terminal-facing endpoints.
	r.Route("/v1", func(r chi.Router) {
		r.Post("/heartbeat", s.handleHeartbeat)
		r.Post("/events", s.handleTerminalEvent)
	})

	// Dashboard.
	r.Route("/api", func(r chi.Router) {
		r.Get("/logs", s.handleLogs)
		r.Get("/alerts", s.handleAlerts)
		r.Get("/notifications", s.handleNotifications)
		r.Get("/stats", s.handleStats)
		r.Get("/export.csv", s.handleExport)
		r.Get("/summary", s.handleSummary)

		r.Get("/devices", s.handleListDevices)
		r.Post("/devices", s.handleAddDevice)

		r.Get("/users", s.handleListUsers)
		r.Post("/users", s.handleAddUser)
		r.Delete("/users/{id}", s.handleDeleteUser)

		r.Get("/settings", s.handleGetSettings)
		r.Put("/settings", s.handlePutSettings)

		r.Post("/sync", s.handleSync)
		r.Post("/resync", s.handleResync)
	})

	s.router = r
	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ErrorLog:          zap.NewStdLog(s.logger),
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.monitor.Ping(r.Context()); err != nil {
		s.logger.Warn("readiness check failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", "durable store unreachable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
