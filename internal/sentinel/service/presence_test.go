package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/sentinel-access/sentinel/server/internal/sentinel/service"
	"github.com/sentinel-access/sentinel/server/internal/sentinel/types"
)

// ── Heartbeats ───────────────────────────────────────────────────────────────

func TestHeartbeat_KnownDeviceGoesOnline(t *testing.T) {
	ms := seededStore(t)
	m := newTestMonitor(t, ms, monitorOpts{seed: 1})
	hs := service.NewHeartbeatService(m, zaptest.NewLogger(t), testMetrics())

	resp, err := hs.Record(context.Background(), types.HeartbeatRequest{DeviceID: " dev-a "})
	require.NoError(t, err)
	assert.True(t, resp.OK)
	assert.True(t, resp.Known)
	assert.Equal(t, "dev-a", resp.DeviceID)
	assert.NotEmpty(t, resp.ServerTime)

	d, ok := m.Device("dev-a")
	require.True(t, ok)
	assert.Equal(t, types.DeviceOnline, d.Status)
	require.NotNil(t, d.LastSeen)

	stored, err := ms.AllDevices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.DeviceOnline, stored[0].Status)
}

func TestHeartbeat_UnknownDevice(t *testing.T) {
	m := newTestMonitor(t, seededStore(t), monitorOpts{seed: 1})
	hs := service.NewHeartbeatService(m, zaptest.NewLogger(t), testMetrics())

	resp, err := hs.Record(context.Background(), types.HeartbeatRequest{DeviceID: "ghost"})
	require.NoError(t, err)
	assert.True(t, resp.OK)
	assert.False(t, resp.Known)
	assert.Len(t, m.Devices(), 2, "heartbeats never register devices")
}

func TestHeartbeat_MissingID(t *testing.T) {
	m := newTestMonitor(t, seededStore(t), monitorOpts{seed: 1})
	hs := service.NewHeartbeatService(m, nil, nil)

	_, err := hs.Record(context.Background(), types.HeartbeatRequest{DeviceID: "  "})
	assert.ErrorIs(t, err, service.ErrInvalidDeviceID)
}

// ── Sweeper ──────────────────────────────────────────────────────────────────

func TestPresenceSweeper_MarksStaleDevicesOffline(t *testing.T) {
	ms := seededStore(t)
	m := newTestMonitor(t, ms, monitorOpts{seed: 1})
	ctx := context.Background()

	_, err := m.NoteHeartbeat(ctx, "dev-a", time.Now().UTC().Add(-10*time.Minute))
	require.NoError(t, err)
	_, err = m.NoteHeartbeat(ctx, "dev-b", time.Now().UTC())
	require.NoError(t, err)

	sw := service.NewPresenceSweeper(m, service.PresenceConfig{Timeout: 2 * time.Minute}, zaptest.NewLogger(t), testMetrics())
	sw.Sweep(ctx)

	a, _ := m.Device("dev-a")
	b, _ := m.Device("dev-b")
	assert.Equal(t, types.DeviceOffline, a.Status)
	assert.Equal(t, types.DeviceOnline, b.Status)
}

func TestPresenceSweeper_DisabledWhenTimeoutZero(t *testing.T) {
	m := newTestMonitor(t, seededStore(t), monitorOpts{seed: 1})
	sw := service.NewPresenceSweeper(m, service.PresenceConfig{}, zaptest.NewLogger(t), nil)

	sw.Start(context.Background())
	sw.Stop()
}

func TestPresenceSweeper_StartStop(t *testing.T) {
	ms := seededStore(t)
	m := newTestMonitor(t, ms, monitorOpts{seed: 1})
	_, err := m.NoteHeartbeat(context.Background(), "dev-a", time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)

	sw := service.NewPresenceSweeper(m, service.PresenceConfig{
		Timeout:  time.Minute,
		Interval: time.Hour,
	}, zaptest.NewLogger(t), testMetrics())

	sw.Start(context.Background())
	// the first sweep runs immediately on start
	assert.Eventually(t, func() bool {
		d, _ := m.Device("dev-a")
		return d.Status == types.DeviceOffline
	}, 2*time.Second, 10*time.Millisecond)

	sw.Stop()
	sw.Stop()
}
