package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sentinel-access/sentinel/server/internal/analyst"
	"github.com/sentinel-access/sentinel/server/internal/config"
	"github.com/sentinel-access/sentinel/server/internal/db"
	"github.com/sentinel-access/sentinel/server/internal/feed"
	"github.com/sentinel-access/sentinel/server/internal/grpcapi"
	"github.com/sentinel-access/sentinel/server/internal/httpapi"
	"github.com/sentinel-access/sentinel/server/internal/metrics"
	"github.com/sentinel-access/sentinel/server/internal/notify"
	"github.com/sentinel-access/sentinel/server/internal/sentinel/service"
	"github.com/sentinel-access/sentinel/server/internal/sentinel/store/sqlite"
)

// app is the fully wired server. newApp builds it; start launches the
// background loops; close tears everything down in reverse order.
type app struct {
	cfg     config.Config
	logger  *zap.Logger
	metrics *metrics.Metrics

	db     *sql.DB
	writer *db.Worker

	dispatcher *notify.Dispatcher
	hub        *feed.Hub
	rdb        *redis.Client
	redisPub   *feed.RedisPublisher

	monitor   *service.Monitor
	scheduler *service.Scheduler
	sweeper   *service.PresenceSweeper

	http *httpapi.Server
	grpc *grpcapi.Server

	cancel context.CancelFunc
	hubRun chan struct{}
}

func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (_ *app, err error) {
	a := &app{cfg: cfg, logger: logger, metrics: metrics.New(nil)}
	defer func() {
		if err != nil {
			a.close(context.Background())
		}
	}()

	// DB
	a.db, err = db.Open(ctx, db.Config{Path: cfg.DBPath, Env: cfg.Env}, logger.Named("db"))
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if cfg.SeedDev {
		if err = db.SeedDev(ctx, a.db); err != nil {
			return nil, fmt.Errorf("seed dev data: %w", err)
		}
		logger.Info("dev seed applied")
	}
	a.writer = db.NewWorker(a.db, logger.Named("db"))
	gw := sqlite.New(a.db, a.writer, logger.Named("store"), sqlite.WithMalformedHook(a.metrics.MalformedHook()))

	// Fan-out
	a.dispatcher = notify.NewDispatcher(
		notify.Config{Workers: cfg.NotifyWorkers},
		logger.Named("notify"), a.metrics, notify.DefaultTransport(logger.Named("notify")),
	)
	a.hub = feed.NewHub(logger.Named("feed"), a.metrics)
	sinks := []service.EventSink{a.hub}
	if cfg.RedisURL != "" {
		a.rdb, err = feed.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		a.redisPub = feed.NewRedisPublisher(a.rdb, cfg.RedisChannel, logger.Named("redis"), a.metrics)
		sinks = append(sinks, a.redisPub)
	}

	// Engine
	a.monitor = service.NewMonitor(gw, service.MonitorConfig{
		Generator: service.NewGenerator(service.WithDeniedProbability(cfg.DeniedProbability)),
		Notifier:  a.dispatcher,
		Sinks:     sinks,
		Logger:    logger.Named("monitor"),
		Metrics:   a.metrics,
	})
	if err := a.monitor.Init(ctx); err != nil {
		// The dashboard stays up on an empty view; POST /api/resync retries.
		logger.Error("initial load failed", zap.Error(err))
	}

	a.scheduler = service.NewScheduler(service.MonitorTick(a.monitor), cfg.TickInterval, logger.Named("scheduler"))
	a.sweeper = service.NewPresenceSweeper(a.monitor, service.PresenceConfig{
		Timeout:  cfg.PresenceTimeout,
		Interval: cfg.PresenceSweepInterval,
	}, logger.Named("presence"), a.metrics)

	// Surfaces
	a.http = httpapi.NewServer(httpapi.Dependencies{
		Logger:      logger,
		Addr:        cfg.HTTPAddr,
		Monitor:     a.monitor,
		Feed:        a.hub,
		Analyst:     analyst.New(cfg.OpenAIKey, cfg.OpenAIModel, logger.Named("analyst")),
		Metrics:     a.metrics,
		BaseContext: ctx,
	})
	a.grpc = grpcapi.NewServer(grpcapi.Dependencies{
		Logger: logger,
		Addr:   cfg.GRPCAddr,
		Pinger: a.monitor,
	})

	return a, nil
}

// start launches the hub, notification workers, tick scheduler and
// presence sweeper. It does not bind any listener.
func (a *app) start(ctx context.Context) error {
	ctx, a.cancel = context.WithCancel(ctx)

	a.hubRun = make(chan struct{})
	go func() {
		defer close(a.hubRun)
		a.hub.Run(ctx)
	}()
	a.dispatcher.Start(ctx)
	a.sweeper.Start(ctx)
	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	return nil
}

// serve binds the HTTP and gRPC listeners and blocks until one fails.
func (a *app) serve() error {
	errc := make(chan error, 2)
	go func() {
		a.logger.Info("http listening", zap.String("addr", a.cfg.HTTPAddr))
		if err := a.http.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- fmt.Errorf("http: %w", err)
		}
	}()
	go func() {
		if err := a.grpc.Start(); err != nil {
			errc <- fmt.Errorf("grpc: %w", err)
		}
	}()
	return <-errc
}

func (a *app) close(ctx context.Context) {
	if a.http != nil {
		if err := a.http.Shutdown(ctx); err != nil {
			a.logger.Warn("http shutdown", zap.Error(err))
		}
	}
	if a.grpc != nil {
		a.grpc.Stop(ctx)
	}
	if a.scheduler != nil && a.cancel != nil {
		a.scheduler.Stop()
	}
	if a.sweeper != nil && a.cancel != nil {
		a.sweeper.Stop()
	}
	if a.monitor != nil {
		a.monitor.Wait()
	}
	if a.cancel != nil {
		a.cancel()
		<-a.hubRun
	}
	if a.dispatcher != nil {
		a.dispatcher.Stop()
	}
	if a.redisPub != nil {
		a.redisPub.Close()
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if a.writer != nil {
		a.writer.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}
