package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"snail-trail-service/internal/platform/metrics"
	"snail-trail-service/internal/platform/obs"
	"snail-trail-service/internal/ports"
	"sync/atomic"
	"time"
)

// Ticker drives the simulation: every Interval it advances all snails,
// publishes the new positions and periodically checkpoints them.
type Ticker struct {
	Store      *AppState
	Repo       ports.SnailRepository
	Publishers []ports.PositionPublisher
	Metrics    *metrics.Collector
	Logger     *slog.Logger

	Interval        time.Duration
	CheckpointEvery int

	tick atomic.Uint64
}

// Run blocks until ctx is cancelled. Positions are checkpointed one last
// time on the way out.
func (t *Ticker) Run(ctx context.Context) error {
	if t.Store == nil {
		return errors.New("ticker: store is nil")
	}
	if t.Interval <= 0 {
		return fmt.Errorf("ticker: interval must be positive, got %s", t.Interval)
	}

	tk := time.NewTicker(t.Interval)
	defer tk.Stop()

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			t.checkpoint(flushCtx)
			return nil
		case <-tk.C:
			if _, err := t.Step(ctx, t.Interval.Seconds()); err != nil && ctx.Err() == nil {
				t.logger().ErrorContext(ctx, "tick failed", "tick", t.tick.Load(), "err", err)
			}
		}
	}
}

// Step runs a single tick of elapsedSeconds and returns the snails that
// arrived. Publisher and checkpoint failures are logged, not returned.
func (t *Ticker) Step(ctx context.Context, elapsedSeconds float64) (arrived []string, err error) {
	defer obs.Time(ctx, "ticker.Step")(&err)

	start := time.Now()
	arrived, err = t.Store.AdvanceAll(ctx, elapsedSeconds)
	if err != nil {
		return nil, err
	}
	n := t.tick.Add(1)

	snap := ports.PositionSnapshot{Tick: n, Snails: t.Store.Snapshot()}
	t.Metrics.ObserveTick(time.Since(start), len(snap.Snails), len(arrived))

	for _, id := range arrived {
		t.logger().InfoContext(ctx, "snail arrived", "id", id, "tick", n)
	}

	for _, p := range t.Publishers {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, snap); err != nil {
			t.logger().WarnContext(ctx, "publish positions failed", "tick", n, "err", err)
		}
	}

	every := max(t.CheckpointEvery, 1)
	if n%uint64(every) == 0 {
		t.checkpoint(ctx)
	}

	return arrived, nil
}

// Tick returns the number of completed ticks.
func (t *Ticker) Tick() uint64 {
	return t.tick.Load()
}

func (t *Ticker) checkpoint(ctx context.Context) {
	if t.Repo == nil {
		return
	}
	if err := t.Repo.SavePositions(ctx, t.Store.Snapshot()); err != nil {
		t.logger().WarnContext(ctx, "checkpoint positions failed", "tick", t.tick.Load(), "err", err)
	}
}

func (t *Ticker) logger() *slog.Logger {
	if t.Logger == nil {
		return slog.Default()
	}
	return t.Logger
}
