package service

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/sentinel-access/sentinel/server/internal/metrics"
	"github.com/sentinel-access/sentinel/server/internal/sentinel/aggregate"
	"github.com/sentinel-access/sentinel/server/internal/sentinel/store"
	"github.com/sentinel-access/sentinel/server/internal/sentinel/types"
)

// MaxPendingRetries bounds the events kept for a later persistence retry.
// Beyond it the oldest pending event is dropped (and logged).
const MaxPendingRetries = 500

// NotificationSink queues an outbound notification. Enqueue must not block.
type NotificationSink interface {
	Enqueue(ev types.AccessEvent, settings types.NotificationSettings) bool
}

// EventSink receives every committed result. Publish must not block.
type EventSink interface {
	Publish(res types.ProcessedResult)
}

type ProcessorConfig struct {
	Logs        store.LogStore
	Aggregate   *aggregate.Store
	Settings    func() types.NotificationSettings
	ActiveUsers func() int
	Notifier    NotificationSink // optional
	Sinks       []EventSink
	Clock       func() time.Time
	Logger      *zap.Logger
	Metrics     *metrics.Metrics
}

// Processor runs one event at a time through evaluate, persist, commit and
// fan-out.
type Processor struct {
	cfg      ProcessorConfig
	pending  []types.AccessEvent
	nPending atomic.Int64  // len(pending), readable without the semaphore
	pass     chan struct{} // one-slot semaphore; held for a whole pass
}

func NewProcessor(cfg ProcessorConfig) *Processor {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New(nil)
	}
	if cfg.Clock == nil {
		cfg.Clock = func() time.Time { return time.Now().UTC() }
	}
	if cfg.Settings == nil {
		cfg.Settings = types.DefaultNotificationSettings
	}
	if cfg.ActiveUsers == nil {
		cfg.ActiveUsers = func() int { return 0 }
	}
	return &Processor{cfg: cfg, pass: make(chan struct{}, 1)}
}

// Process runs ev through a full pass. The only error is a cancelled ctx,
// reported before anything happens; persistence failures are absorbed and
// show up as Persisted=false. An id that was already processed commits and
// fans out nothing and comes back with Duplicate set.
func (p *Processor) Process(ctx context.Context, ev types.AccessEvent) (types.ProcessedResult, error) {
	select {
	case p.pass <- struct{}{}:
	case <-ctx.Done():
		return types.ProcessedResult{}, ctx.Err()
	}
	defer func() { <-p.pass }()
	if err := ctx.Err(); err != nil {
		return types.ProcessedResult{}, err
	}

	start := time.Now()
	defer func() { p.cfg.Metrics.PassDuration.Observe(time.Since(start).Seconds()) }()

	p.retryPending(ctx)

	if first, persisted, seen := p.seen(ev.ID); seen {
		return p.duplicate(first, persisted), nil
	}

	settings := p.cfg.Settings()
	decision := Evaluate(ev, settings)
	decision.Apply(&ev)

	persisted := true
	if err := p.cfg.Logs.SaveLog(ctx, ev); errors.Is(err, store.ErrDuplicate) {
		// Stored by an earlier pass whose event has left the window.
		return p.duplicate(ev, true), nil
	} else if err != nil {
		persisted = false
		p.cfg.Metrics.PersistFailures.Inc()
		p.cfg.Logger.Error("persist access event",
			zap.String("event_id", ev.ID),
			zap.String("status", string(ev.Status)),
			zap.Error(err),
		)
		p.queuePending(ev)
	}

	alert := aggregate.AlertFor(ev)
	p.cfg.Aggregate.Apply(ev, alert, p.cfg.ActiveUsers(), p.cfg.Clock())
	p.cfg.Metrics.EventsProcessed.WithLabelValues(string(ev.Status)).Inc()

	res := types.ProcessedResult{
		Event:     ev,
		Alert:     alert,
		Delta:     aggregate.DeltaFor(ev),
		Persisted: persisted,
		Notify:    decision.Notify,
	}

	if decision.Notify && p.cfg.Notifier != nil {
		if !p.cfg.Notifier.Enqueue(ev, settings) {
			p.cfg.Logger.Warn("notification queue full, dropping", zap.String("event_id", ev.ID))
		}
	}
	for _, s := range p.cfg.Sinks {
		s.Publish(res)
	}
	return res, nil
}

// seen finds an earlier event with id in the pending list or the log
// window. persisted is false for a pending one. Caller holds the pass
// semaphore.
func (p *Processor) seen(id string) (first types.AccessEvent, persisted, ok bool) {
	for _, ev := range p.pending {
		if ev.ID == id {
			return ev, false, true
		}
	}
	if ev, ok := p.cfg.Aggregate.Log(id); ok {
		return ev, true, true
	}
	return types.AccessEvent{}, false, false
}

func (p *Processor) duplicate(first types.AccessEvent, persisted bool) types.ProcessedResult {
	p.cfg.Logger.Info("duplicate access event ignored", zap.String("event_id", first.ID))
	return types.ProcessedResult{
		Event:     first,
		Alert:     aggregate.AlertFor(first),
		Persisted: persisted,
		Duplicate: true,
	}
}

// Pending returns how many events are waiting for a persistence retry.
func (p *Processor) Pending() int {
	return int(p.nPending.Load())
}

// Exclusive retries pending writes and then runs fn with no pass in
// flight, so a reload inside fn cannot race a concurrent Process.
func (p *Processor) Exclusive(ctx context.Context, fn func(context.Context) error) error {
	select {
	case p.pass <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-p.pass }()
	p.retryPending(ctx)
	return fn(ctx)
}

// Caller holds the pass semaphore.
func (p *Processor) retryPending(ctx context.Context) {
	if len(p.pending) == 0 {
		return
	}
	remaining := p.pending[:0]
	for _, ev := range p.pending {
		if err := p.cfg.Logs.SaveLog(ctx, ev); err != nil && !errors.Is(err, store.ErrDuplicate) {
			remaining = append(remaining, ev)
			continue
		}
		p.cfg.Logger.Info("persisted pending access event", zap.String("event_id", ev.ID))
	}
	clear(p.pending[len(remaining):])
	p.pending = remaining
	p.notePending()
}

// Caller holds the pass semaphore.
func (p *Processor) queuePending(ev types.AccessEvent) {
	if len(p.pending) >= MaxPendingRetries {
		p.cfg.Logger.Error("pending retry list full, dropping oldest",
			zap.String("dropped_event_id", p.pending[0].ID))
		p.pending = append(p.pending[:0], p.pending[1:]...)
	}
	p.pending = append(p.pending, ev)
	p.notePending()
}

func (p *Processor) notePending() {
	p.nPending.Store(int64(len(p.pending)))
	p.cfg.Metrics.PendingRetries.Set(float64(len(p.pending)))
}
