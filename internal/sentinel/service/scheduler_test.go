package service_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/sentinel-access/sentinel/server/internal/sentinel/service"
)

func TestScheduler_DrivesMonitor(t *testing.T) {
	m := newTestMonitor(t, seededStore(t), monitorOpts{seed: 2})
	s := service.NewScheduler(service.MonitorTick(m), time.Second, zaptest.NewLogger(t))

	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(s.Stop)

	assert.Eventually(t, func() bool {
		return len(m.Snapshot().Logs) >= 1
	}, 4*time.Second, 50*time.Millisecond)
}

func TestScheduler_SlowTickSkipsInsteadOfOverlapping(t *testing.T) {
	var running, maxRunning, calls atomic.Int32
	release := make(chan struct{})

	tick := func(ctx context.Context) error {
		calls.Add(1)
		n := running.Add(1)
		defer running.Add(-1)
		for {
			cur := maxRunning.Load()
			if n <= cur || maxRunning.CompareAndSwap(cur, n) {
				break
			}
		}
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	}

	s := service.NewScheduler(tick, time.Second, zaptest.NewLogger(t))
	require.NoError(t, s.Start(context.Background()))

	// let several intervals fire while the first tick is stuck
	time.Sleep(3500 * time.Millisecond)
	close(release)
	s.Stop()

	assert.EqualValues(t, 1, maxRunning.Load())
	assert.EqualValues(t, 1, calls.Load(), "ticks that fired during the slow one were dropped")
}

func TestScheduler_StopCancelsRunningTick(t *testing.T) {
	entered := make(chan struct{})
	var once atomic.Bool
	tick := func(ctx context.Context) error {
		if once.CompareAndSwap(false, true) {
			close(entered)
		}
		<-ctx.Done()
		return ctx.Err()
	}

	s := service.NewScheduler(tick, time.Second, zaptest.NewLogger(t))
	require.NoError(t, s.Start(context.Background()))

	select {
	case <-entered:
	case <-time.After(3 * time.Second):
		t.Fatal("tick never ran")
	}

	stopped := make(chan struct{})
	go func() { s.Stop(); close(stopped) }()
	select {
	case <-stopped:
	case <-time.After(3 * time.Second):
		t.Fatal("Stop did not return")
	}
}
