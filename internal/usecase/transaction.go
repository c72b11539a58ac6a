package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Transaction runs steps in order and, when one fails, runs the compensations of the
// steps that already succeeded in reverse order.
type Transaction struct {
	steps  []step
	logger *zap.Logger
}

type step struct {
	name       string
	operation  func(context.Context) error
	compensate func(context.Context) error
}

func NewTransaction(logger *zap.Logger) *Transaction {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transaction{logger: logger}
}

// AddStep registers an operation. compensate may be nil for steps with nothing to undo.
func (t *Transaction) AddStep(name string, operation, compensate func(context.Context) error) {
	t.steps = append(t.steps, step{name: name, operation: operation, compensate: compensate})
}

func (t *Transaction) Execute(ctx context.Context) error {
	for i, s := range t.steps {
		if err := s.operation(ctx); err != nil {
			t.rollback(ctx, i)
			return fmt.Errorf("step %q failed: %w (rolled back %d steps)", s.name, err, i)
		}
	}
	return nil
}

func (t *Transaction) rollback(ctx context.Context, failedAt int) {
	// Compensations run even if the request context was cancelled.
	ctx = context.WithoutCancel(ctx)
	for i := failedAt - 1; i >= 0; i-- {
		s := t.steps[i]
		if s.compensate == nil {
			continue
		}
		if err := s.compensate(ctx); err != nil {
			t.logger.Error("compensation failed, manual reconciliation needed",
				zap.String("step", s.name),
				zap.Error(err),
			)
		}
	}
}
