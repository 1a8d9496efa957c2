package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/garyjia/invoicing/internal/application/service"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Sweeper refreshes stale gateway transactions
type Sweeper interface {
	Sweep(ctx context.Context, before time.Time) (*service.SweepResult, error)
}

// GatewaySweeperConfig holds the sweep schedule
type GatewaySweeperConfig struct {
	// Schedule is a standard five-field cron expression
	Schedule string
	// StaleAfter is how long a transaction may stay open before it is polled
	StaleAfter time.Duration
	// Timeout bounds one sweep run
	Timeout time.Duration
}

// GatewaySweeper polls the gateway for open transactions whose webhook never
// arrived.
type GatewaySweeper struct {
	cfg     GatewaySweeperConfig
	sweeper Sweeper
	now     func() time.Time
	logger  *zap.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

// NewGatewaySweeper creates a new sweeper worker
func NewGatewaySweeper(cfg GatewaySweeperConfig, sweeper Sweeper, now func() time.Time, logger *zap.Logger) *GatewaySweeper {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	return &GatewaySweeper{
		cfg:     cfg,
		sweeper: sweeper,
		now:     now,
		logger:  logger,
	}
}

// Name implements Worker
func (w *GatewaySweeper) Name() string {
	return "gateway-sweeper"
}

// Start schedules the sweep. Overlapping runs are skipped.
func (w *GatewaySweeper) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cron != nil {
		return fmt.Errorf("gateway sweeper already started")
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(w.cfg.Schedule, func() { _, _ = w.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", w.cfg.Schedule, err)
	}
	c.Start()
	w.cron = c

	w.logger.Info("Gateway sweeper scheduled",
		zap.String("schedule", w.cfg.Schedule),
		zap.Duration("stale_after", w.cfg.StaleAfter))
	return nil
}

// Stop waits for a running sweep to finish
func (w *GatewaySweeper) Stop() error {
	w.mu.Lock()
	c := w.cron
	w.cron = nil
	w.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
	return nil
}

// RunOnce sweeps transactions that have been open longer than StaleAfter
func (w *GatewaySweeper) RunOnce(ctx context.Context) (*service.SweepResult, error) {
	ctx, cancel := context.WithTimeout(ctx, w.cfg.Timeout)
	defer cancel()

	before := w.now().Add(-w.cfg.StaleAfter)
	result, err := w.sweeper.Sweep(ctx, before)
	if err != nil {
		w.logger.Error("Gateway sweep failed", zap.Error(err))
		return nil, err
	}

	if result.Refreshed+result.Abandoned+result.Failed > 0 {
		w.logger.Info("Gateway sweep completed",
			zap.Int("refreshed", result.Refreshed),
			zap.Int("abandoned", result.Abandoned),
			zap.Int("failed", result.Failed))
	}
	return result, nil
}

var _ Worker = (*GatewaySweeper)(nil)
