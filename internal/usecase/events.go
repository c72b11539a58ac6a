package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/xavierca1/healing-ledger/internal/entity"
)

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, entity.Event) error { return nil }

func orNoop(p entity.EventPublisher) entity.EventPublisher {
	if p == nil {
		return noopPublisher{}
	}
	return p
}

func orNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}

// publish never fails the caller; the write it describes has already happened.
func publish(ctx context.Context, pub entity.EventPublisher, logger *zap.Logger, e entity.Event) {
	if err := pub.Publish(ctx, e); err != nil {
		logger.Warn("event publish failed",
			zap.String("type", e.Type),
			zap.String("key", e.Key),
			zap.Error(err),
		)
	}
}

func utcNow() time.Time { return time.Now().UTC() }
