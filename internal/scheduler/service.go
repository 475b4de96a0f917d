// Package scheduler runs the dispatch watchdog.
package scheduler

import (
	"context"
	"time"

	"vtu/pkg/logger"
)

// Sweeper is implemented by the dispatcher.
type Sweeper interface {
	ReconcileStale(ctx context.Context, staleAfter time.Duration, limit int) (int, error)
}

const sweepBatchSize = 100

// Watchdog periodically fails pending transactions that outlived the dispatch
// window and refunds their reservations.
type Watchdog struct {
	sweeper    Sweeper
	interval   time.Duration
	staleAfter time.Duration
	logger     logger.Logger
	stop       chan struct{}
	done       chan struct{}
}

func NewWatchdog(sweeper Sweeper, interval, staleAfter time.Duration, log logger.Logger) *Watchdog {
	if interval <= 0 {
		interval = time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 5 * time.Minute
	}
	return &Watchdog{
		sweeper:    sweeper,
		interval:   interval,
		staleAfter: staleAfter,
		logger:     log,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start runs the sweep loop until Stop is called.
func (w *Watchdog) Start() {
	go w.run()
}

func (w *Watchdog) run() {
	defer close(w.done)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("Watchdog started", map[string]interface{}{
		"interval":    w.interval.String(),
		"stale_after": w.staleAfter.String(),
	})
	for {
		select {
		case <-ticker.C:
			w.sweep()
		case <-w.stop:
			return
		}
	}
}

func (w *Watchdog) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), w.interval)
	defer cancel()

	swept, err := w.sweeper.ReconcileStale(ctx, w.staleAfter, sweepBatchSize)
	if err != nil {
		w.logger.Error("Watchdog sweep failed", map[string]interface{}{"error": err.Error()})
		return
	}
	if swept > 0 {
		w.logger.Info("Watchdog sweep completed", map[string]interface{}{"swept": swept})
	}
}

func (w *Watchdog) Stop() {
	close(w.stop)
	<-w.done
}
