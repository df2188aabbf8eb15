package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sentinel-access/sentinel/server/internal/metrics"
	"github.com/sentinel-access/sentinel/server/internal/sentinel/types"
)

// TransportFactory picks the transport for the settings current at enqueue
// time.
type TransportFactory func(settings types.NotificationSettings) Transport

type Config struct {
	Workers   int           // concurrent deliveries, default 2
	QueueSize int           // default 100
	Timeout   time.Duration // per delivery, default 20s
}

type job struct {
	ev       types.AccessEvent
	settings types.NotificationSettings
}

// Dispatcher delivers notifications on its own worker goroutines. Delivery
// is best-effort: a full queue or a failed send is logged and counted, never
// retried.
type Dispatcher struct {
	logger    *zap.Logger
	metrics   *metrics.Metrics
	transport TransportFactory
	cfg       Config

	queue chan job
	wg    sync.WaitGroup
	done  chan struct{}

	mu      sync.RWMutex
	running bool
}

func NewDispatcher(cfg Config, logger *zap.Logger, m *metrics.Metrics, factory TransportFactory) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.New(nil)
	}
	if factory == nil {
		factory = DefaultTransport(logger)
	}
	return &Dispatcher{
		logger:    logger,
		metrics:   m,
		transport: factory,
		cfg:       cfg,
		queue:     make(chan job, cfg.QueueSize),
		done:      make(chan struct{}),
	}
}

// DefaultTransport relays over SMTP when a host is configured and logs the
// message otherwise.
func DefaultTransport(logger *zap.Logger) TransportFactory {
	return func(s types.NotificationSettings) Transport {
		if s.SMTP.Host == "" {
			return LogTransport{Logger: logger}
		}
		return SMTPTransport{Relay: s.SMTP}
	}
}

func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return
	}
	d.running = true
	d.mu.Unlock()

	d.logger.Info("starting notification dispatcher", zap.Int("workers", d.cfg.Workers))
	for i := range d.cfg.Workers {
		d.wg.Add(1)
		go d.worker(ctx, i)
	}
}

// Stop stops the workers. Queued but undelivered notifications are dropped.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	d.mu.Unlock()

	close(d.done)
	d.wg.Wait()
	d.logger.Info("notification dispatcher stopped")
}

// Enqueue never blocks; it returns false when the queue is full or the
// dispatcher is stopped.
func (d *Dispatcher) Enqueue(ev types.AccessEvent, settings types.NotificationSettings) bool {
	d.mu.RLock()
	running := d.running
	d.mu.RUnlock()
	if !running {
		d.metrics.Notifications.WithLabelValues("dropped").Inc()
		return false
	}

	select {
	case d.queue <- job{ev: ev, settings: settings}:
		return true
	default:
		d.metrics.Notifications.WithLabelValues("dropped").Inc()
		return false
	}
}

func (d *Dispatcher) worker(ctx context.Context, id int) {
	defer d.wg.Done()
	for {
		select {
		case <-d.done:
			return
		case <-ctx.Done():
			return
		case j := <-d.queue:
			d.deliver(ctx, id, j)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, worker int, j job) {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	msg := Compose(j.ev, j.settings)
	if err := d.transport(j.settings).Send(ctx, msg); err != nil {
		d.metrics.Notifications.WithLabelValues("failed").Inc()
		d.logger.Warn("notification delivery failed",
			zap.Int("worker", worker),
			zap.String("event_id", j.ev.ID),
			zap.String("to", msg.To),
			zap.Error(err),
		)
		return
	}
	d.metrics.Notifications.WithLabelValues("sent").Inc()
	d.logger.Debug("notification sent",
		zap.Int("worker", worker),
		zap.String("event_id", j.ev.ID),
		zap.String("to", msg.To),
	)
}
