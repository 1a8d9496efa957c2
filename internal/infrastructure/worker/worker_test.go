package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/garyjia/invoicing/internal/application/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockSweeper struct {
	sweepFunc func(ctx context.Context, before time.Time) (*service.SweepResult, error)
	befores   []time.Time
}

func (m *mockSweeper) Sweep(ctx context.Context, before time.Time) (*service.SweepResult, error) {
	m.befores = append(m.befores, before)
	if m.sweepFunc != nil {
		return m.sweepFunc(ctx, before)
	}
	return &service.SweepResult{}, nil
}

type mockWorker struct {
	name     string
	startErr error
	stopErr  error
	started  bool
	stopped  bool
}

func (w *mockWorker) Start(ctx context.Context) error {
	w.started = w.startErr == nil
	return w.startErr
}

func (w *mockWorker) Stop() error {
	w.stopped = true
	return w.stopErr
}

func (w *mockWorker) Name() string { return w.name }

func TestGatewaySweeper_RunOnce(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	s := &mockSweeper{sweepFunc: func(ctx context.Context, before time.Time) (*service.SweepResult, error) {
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		return &service.SweepResult{Refreshed: 2, Abandoned: 1}, nil
	}}
	w := NewGatewaySweeper(GatewaySweeperConfig{Schedule: "*/5 * * * *", StaleAfter: time.Hour}, s,
		func() time.Time { return now }, zap.NewNop())

	result, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Refreshed)
	require.Len(t, s.befores, 1)
	assert.Equal(t, now.Add(-time.Hour), s.befores[0])
}

func TestGatewaySweeper_RunOnceError(t *testing.T) {
	s := &mockSweeper{sweepFunc: func(ctx context.Context, before time.Time) (*service.SweepResult, error) {
		return nil, errors.New("database is locked")
	}}
	w := NewGatewaySweeper(GatewaySweeperConfig{Schedule: "@every 1m"}, s, time.Now, zap.NewNop())

	_, err := w.RunOnce(context.Background())
	assert.Error(t, err)
}

func TestGatewaySweeper_StartStop(t *testing.T) {
	w := NewGatewaySweeper(GatewaySweeperConfig{Schedule: "not a schedule"}, &mockSweeper{}, time.Now, zap.NewNop())
	assert.Error(t, w.Start(context.Background()))

	w = NewGatewaySweeper(GatewaySweeperConfig{Schedule: "@every 1h"}, &mockSweeper{}, time.Now, zap.NewNop())
	require.NoError(t, w.Start(context.Background()))
	assert.Error(t, w.Start(context.Background()))
	assert.NoError(t, w.Stop())
	assert.NoError(t, w.Stop())
}

func TestManager_Lifecycle(t *testing.T) {
	m := NewManager(zap.NewNop())
	ok := &mockWorker{name: "ok"}
	broken := &mockWorker{name: "broken", startErr: errors.New("boom"), stopErr: errors.New("stuck")}
	m.Register(ok)
	m.Register(broken)

	require.NoError(t, m.StartAll(context.Background()))
	assert.True(t, m.IsRunning())
	assert.True(t, ok.started)
	assert.Error(t, m.StartAll(context.Background()))

	err := m.StopAll()
	assert.ErrorContains(t, err, "broken")
	assert.True(t, ok.stopped)
	assert.False(t, m.IsRunning())
	assert.NoError(t, m.StopAll())
}
