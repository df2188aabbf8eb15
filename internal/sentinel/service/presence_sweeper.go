package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sentinel-access/sentinel/server/internal/metrics"
)

// PresenceSweeper periodically marks devices offline once they have gone
// PresenceConfig.Timeout without a heartbeat. It runs as a background
// goroutine and is stopped via its context or Stop.
type PresenceSweeper struct {
	presence Presence
	timeout  time.Duration
	interval time.Duration
	logger   *zap.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
	cancel   context.CancelFunc
	done     chan struct{}
}

type PresenceConfig struct {
	// Timeout is how long a device may stay silent before it is offline.
	// 0 disables the sweeper.
	Timeout time.Duration

	// Interval is how often the sweep runs. Defaults to 30s.
	Interval time.Duration
}

// NewPresenceSweeper creates a sweeper but does not start it.
func NewPresenceSweeper(p Presence, cfg PresenceConfig, logger *zap.Logger, m *metrics.Metrics) *PresenceSweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.New(nil)
	}
	return &PresenceSweeper{
		presence: p,
		timeout:  cfg.Timeout,
		interval: cfg.Interval,
		logger:   logger,
		metrics:  m,
		now:      func() time.Time { return time.Now().UTC() },
		done:     make(chan struct{}),
	}
}

// Start sweeps once immediately, then on every interval until ctx is
// cancelled or Stop is called.
func (p *PresenceSweeper) Start(ctx context.Context) {
	if p.timeout <= 0 {
		p.logger.Info("presence sweeper disabled (timeout=0)")
		close(p.done)
		return
	}

	ctx, p.cancel = context.WithCancel(ctx)
	go p.loop(ctx)

	p.logger.Info("presence sweeper started",
		zap.Duration("timeout", p.timeout),
		zap.Duration("interval", p.interval),
	)
}

// Stop signals the sweeper to exit and waits for it.
func (p *PresenceSweeper) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	<-p.done
}

func (p *PresenceSweeper) loop(ctx context.Context) {
	defer close(p.done)

	p.Sweep(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Sweep(ctx)
		}
	}
}

// Sweep runs one pass.
func (p *PresenceSweeper) Sweep(ctx context.Context) {
	cutoff := p.now().Add(-p.timeout)
	n, err := p.presence.SweepOffline(ctx, cutoff)
	if err != nil {
		p.logger.Error("presence sweep", zap.Error(err))
		return
	}
	if n > 0 {
		p.metrics.DevicesOffline.Add(float64(n))
		p.logger.Info("devices marked offline",
			zap.Int64("count", n),
			zap.Time("cutoff", cutoff),
		)
	}
}
