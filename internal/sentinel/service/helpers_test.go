package service_test

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/sentinel-access/sentinel/server/internal/metrics"
	"github.com/sentinel-access/sentinel/server/internal/sentinel/service"
	"github.com/sentinel-access/sentinel/server/internal/sentinel/store/memory"
	"github.com/sentinel-access/sentinel/server/internal/sentinel/types"
)

var epoch = time.Date(2026, 4, 10, 14, 0, 0, 0, time.UTC)

// stepClock advances one second per call.
type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

func seqIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("evt-%04d", n)
	}
}

func testGenerator(seed uint64, denied float64) *service.Generator {
	clock := &stepClock{t: epoch}
	return service.NewGenerator(
		service.WithRand(rand.New(rand.NewPCG(seed, seed+1))),
		service.WithClock(clock.Now),
		service.WithIDs(seqIDs()),
		service.WithDeniedProbability(denied),
	)
}

func testMetrics() *metrics.Metrics {
	return metrics.New(prometheus.NewRegistry())
}

var (
	devA  = types.Device{ID: "dev-a", Name: "Door A", Port: "4370", Model: "ZKTeco F22", Status: types.DeviceOffline}
	devB  = types.Device{ID: "dev-b", Name: "Door B", Port: "4370", Model: "ZKTeco F22", Status: types.DeviceOffline}
	alice = types.User{ID: "u-1", Name: "Alice", Department: "Ops", PrimaryMethod: types.MethodFingerprint, EnrollmentDate: epoch, SyncStatus: types.SyncSynced}
	bob   = types.User{ID: "u-2", Name: "Bob", Department: "Facilities", PrimaryMethod: types.MethodCard, EnrollmentDate: epoch, SyncStatus: types.SyncSynced}
)

// seededStore returns a memory store holding two devices and two users.
func seededStore(t *testing.T) *memory.Store {
	t.Helper()
	ctx := context.Background()
	ms := memory.New()
	for _, d := range []types.Device{devA, devB} {
		require.NoError(t, ms.SaveDevice(ctx, d))
	}
	for _, u := range []types.User{alice, bob} {
		require.NoError(t, ms.SaveUser(ctx, u))
	}
	return ms
}

// recordingSink captures everything published or enqueued.
type recordingSink struct {
	mu        sync.Mutex
	published []types.ProcessedResult
	enqueued  []types.AccessEvent
	refuse    bool
}

func (r *recordingSink) Publish(res types.ProcessedResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.published = append(r.published, res)
}

func (r *recordingSink) Enqueue(ev types.AccessEvent, _ types.NotificationSettings) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.refuse {
		return false
	}
	r.enqueued = append(r.enqueued, ev)
	return true
}

func (r *recordingSink) counts() (published, enqueued int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.published), len(r.enqueued)
}

type monitorOpts struct {
	seed   uint64
	denied float64
	sink   *recordingSink
}

func newTestMonitor(t *testing.T, gw *memory.Store, o monitorOpts) *service.Monitor {
	t.Helper()
	cfg := service.MonitorConfig{
		Generator: testGenerator(o.seed, o.denied),
		Logger:    zaptest.NewLogger(t),
		Metrics:   testMetrics(),
	}
	if o.sink != nil {
		cfg.Notifier = o.sink
		cfg.Sinks = []service.EventSink{o.sink}
	}
	m := service.NewMonitor(gw, cfg)
	require.NoError(t, m.Init(context.Background()))
	return m
}
