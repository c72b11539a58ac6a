package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Requeuer re-publishes pending delivery emails that nobody has touched since staleAfter.
type Requeuer interface {
	RequeueStale(ctx context.Context, staleAfter time.Duration, limit int) (int, error)
}

// EmailOutboxWorker sweeps pending EmailLogs whose queue message was lost, for example
// when the broker was down at checkout time.
type EmailOutboxWorker struct {
	requeuer     Requeuer
	staleAfter   time.Duration
	tickInterval time.Duration
	batchLimit   int
	logger       *zap.Logger
}

func NewEmailOutboxWorker(requeuer Requeuer, tickInterval, staleAfter time.Duration, batchLimit int, logger *zap.Logger) *EmailOutboxWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailOutboxWorker{
		requeuer:     requeuer,
		staleAfter:   staleAfter,
		tickInterval: tickInterval,
		batchLimit:   batchLimit,
		logger:       logger,
	}
}

// Start sweeps once immediately, then on every tick until ctx is cancelled.
func (w *EmailOutboxWorker) Start(ctx context.Context) {
	w.logger.Info("email outbox worker started",
		zap.Duration("interval", w.tickInterval),
		zap.Duration("stale_after", w.staleAfter),
	)

	ticker := time.NewTicker(w.tickInterval)
	defer ticker.Stop()

	w.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("email outbox worker stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *EmailOutboxWorker) sweep(ctx context.Context) {
	n, err := w.requeuer.RequeueStale(ctx, w.staleAfter, w.batchLimit)
	if err != nil {
		w.logger.Error("email outbox sweep failed", zap.Int("requeued", n), zap.Error(err))
		return
	}
	if n > 0 {
		w.logger.Info("requeued stale delivery emails", zap.Int("count", n))
	}
}
