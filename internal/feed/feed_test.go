package feed_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/sentinel-access/sentinel/server/internal/feed"
	"github.com/sentinel-access/sentinel/server/internal/metrics"
	"github.com/sentinel-access/sentinel/server/internal/sentinel/types"
)

func result(id string) types.ProcessedResult {
	ev := types.AccessEvent{
		ID:        id,
		Timestamp: time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
		UserID:    types.UnknownUserID,
		DeviceID:  "dev-a",
		Method:    types.MethodFace,
		Status:    types.StatusDenied,
	}
	return types.ProcessedResult{
		Event:     ev,
		Alert:     &types.SecurityAlert{ID: id, Severity: types.SeverityHigh},
		Delta:     types.StatsDelta{Denied: 1},
		Persisted: true,
	}
}

type envelope struct {
	Type    string                `json:"type"`
	Content types.ProcessedResult `json:"content"`
}

// ── Hub ──────────────────────────────────────────────────────────────────────

func TestHub_BroadcastsToClients(t *testing.T) {
	hub := feed.NewHub(zaptest.NewLogger(t), metrics.New(prometheus.NewRegistry()))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	var conns []*websocket.Conn
	for range 2 {
		c, _, err := websocket.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		t.Cleanup(func() { c.Close() })
		conns = append(conns, c)
	}
	require.Eventually(t, func() bool { return hub.Clients() == 2 }, 2*time.Second, 10*time.Millisecond)

	hub.Publish(result("evt-1"))

	for _, c := range conns {
		require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, data, err := c.ReadMessage()
		require.NoError(t, err)

		var got envelope
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, feed.MessageAccessEvent, got.Type)
		assert.Equal(t, "evt-1", got.Content.Event.ID)
		require.NotNil(t, got.Content.Alert)
	}
}

func TestHub_ClientDisconnectUnregisters(t *testing.T) {
	hub := feed.NewHub(zaptest.NewLogger(t), nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)

	c, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	c.Close()
	assert.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_PublishWithoutRunDoesNotBlock(t *testing.T) {
	hub := feed.NewHub(zaptest.NewLogger(t), nil)
	done := make(chan struct{})
	go func() {
		for i := range 1000 {
			hub.Publish(result(string(rune('a' + i%26))))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked")
	}
}

// ── Redis ────────────────────────────────────────────────────────────────────

func TestRedisPublisher_Publishes(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	rdb, err := feed.NewRedisClient(ctx, "redis://"+mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { rdb.Close() })

	sub := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { sub.Close() })
	ps := sub.Subscribe(ctx, "alerts:test")
	t.Cleanup(func() { ps.Close() })
	_, err = ps.Receive(ctx) // subscription confirmation
	require.NoError(t, err)

	pub := feed.NewRedisPublisher(rdb, "alerts:test", zaptest.NewLogger(t), nil)
	pub.Publish(result("evt-9"))

	select {
	case msg := <-ps.Channel():
		var got envelope
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		assert.Equal(t, "evt-9", got.Content.Event.ID)
		assert.Equal(t, 1, got.Content.Delta.Denied)
	case <-time.After(3 * time.Second):
		t.Fatal("no message on channel")
	}

	pub.Close()
	pub.Close()
	pub.Publish(result("after-close"))
}

func TestRedisPublisher_ServerDownIsCounted(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { rdb.Close() })
	mr.Close()

	m := metrics.New(prometheus.NewRegistry())
	pub := feed.NewRedisPublisher(rdb, "", zaptest.NewLogger(t), m)
	pub.Publish(result("evt-1"))
	pub.Close()

	var count int
	mfs, err := m.Registry.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() == "sentinel_feed_publish_errors_total" {
			count = int(mf.GetMetric()[0].GetCounter().GetValue())
		}
	}
	assert.Equal(t, 1, count)
}

func TestNewRedisClient_BadURL(t *testing.T) {
	_, err := feed.NewRedisClient(context.Background(), "not a url")
	assert.Error(t, err)
}
