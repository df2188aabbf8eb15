// Package grpcapi exposes the standard gRPC health service so orchestrators
// can probe the engine without speaking HTTP.
package grpcapi

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health entry tracking the durable store.
const ServiceName = "sentinel.Engine"

const defaultProbeInterval = 10 * time.Second

// Pinger is satisfied by the monitor.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Dependencies struct {
	Logger        *zap.Logger
	Addr          string
	Pinger        Pinger
	ProbeInterval time.Duration
}

type Server struct {
	grpc     *grpc.Server
	health   *health.Server
	logger   *zap.Logger
	addr     string
	pinger   Pinger
	interval time.Duration

	stopOnce sync.Once
	stop     chan struct{}
}

func NewServer(d Dependencies) *Server {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.ProbeInterval <= 0 {
		d.ProbeInterval = defaultProbeInterval
	}

	s := &Server{
		grpc:     grpc.NewServer(),
		health:   health.NewServer(),
		logger:   d.Logger.Named("grpc"),
		addr:     d.Addr,
		pinger:   d.Pinger,
		interval: d.ProbeInterval,
		stop:     make(chan struct{}),
	}
	healthpb.RegisterHealthServer(s.grpc, s.health)
	reflection.Register(s.grpc)

	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// Probe pings the store once and updates both the overall and the engine
// health entries.
func (s *Server) Probe(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	if s.pinger != nil {
		if err := s.pinger.Ping(ctx); err != nil {
			s.logger.Warn("store probe failed", zap.Error(err))
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
	return status
}

// Serve probes once, starts the probe loop and serves on lis until Stop.
func (s *Server) Serve(lis net.Listener) error {
	s.Probe(context.Background())
	go s.loop()

	s.logger.Info("grpc listening", zap.String("addr", lis.Addr().String()))
	err := s.grpc.Serve(lis)
	if errors.Is(err, grpc.ErrServerStopped) {
		return nil
	}
	return err
}

// Start listens on the configured address and serves.
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(lis)
}

func (s *Server) loop() {
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-t.C:
			ctx, cancel := context.WithTimeout(context.Background(), s.interval)
			s.Probe(ctx)
			cancel()
		}
	}
}

// Stop marks everything not serving and drains in-flight RPCs, falling back
// to a hard stop when ctx expires.
func (s *Server) Stop(ctx context.Context) {
	s.stopOnce.Do(func() {
		close(s.stop)
		s.health.Shutdown()

		stopped := make(chan struct{})
		go func() {
			s.grpc.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-ctx.Done():
			s.grpc.Stop()
		}
	})
}
