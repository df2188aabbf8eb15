package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sentinel-access/sentinel/server/internal/metrics"
	"github.com/sentinel-access/sentinel/server/internal/sentinel/types"
)

// Presence is the part of the monitor heartbeats and the sweeper touch.
type Presence interface {
	NoteHeartbeat(ctx context.Context, deviceID string, at time.Time) (bool, error)
	SweepOffline(ctx context.Context, cutoff time.Time) (int64, error)
}

type HeartbeatService struct {
	presence Presence
	logger   *zap.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewHeartbeatService(p Presence, logger *zap.Logger, m *metrics.Metrics) *HeartbeatService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.New(nil)
	}
	return &HeartbeatService{
		presence: p,
		logger:   logger,
		metrics:  m,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *HeartbeatService) Record(ctx context.Context, req types.HeartbeatRequest) (types.HeartbeatResponse, error) {
	deviceID := strings.TrimSpace(req.DeviceID)
	if deviceID == "" {
		return types.HeartbeatResponse{}, ErrInvalidDeviceID
	}

	now := s.now()
	known, err := s.presence.NoteHeartbeat(ctx, deviceID, now)
	if err != nil {
		return types.HeartbeatResponse{}, err
	}
	s.metrics.Heartbeats.WithLabelValues(strconv.FormatBool(known)).Inc()
	if !known {
		s.logger.Debug("heartbeat from unregistered device",
			zap.String("device_id", deviceID),
			zap.String("ip", req.IP),
		)
	}

	return types.HeartbeatResponse{
		OK:         true,
		Known:      known,
		DeviceID:   deviceID,
		ServerTime: now.Format(time.RFC3339Nano),
	}, nil
}
