package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Deliverer sends the email behind an EmailLog.
type Deliverer interface {
	Deliver(ctx context.Context, emailLogID string) error
}

// Consumer is the subset of *amqp.Channel the worker needs.
type Consumer interface {
	Qos(prefetchCount, prefetchSize int, global bool) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
}

type Outcome string

const (
	OutcomeSent         Outcome = "sent"
	OutcomeDeadLettered Outcome = "dead_lettered"
	OutcomeMalformed    Outcome = "malformed"
)

type Worker struct {
	Channel   Consumer
	Deliverer Deliverer
	Logger    *zap.Logger
	// OnOutcome, when set, observes every handled message.
	OnOutcome func(Outcome)
}

func NewWorker(ch Consumer, deliverer Deliverer, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{Channel: ch, Deliverer: deliverer, Logger: logger}
}

// Start consumes queueName with manual acks until ctx is cancelled or the channel closes.
func (w *Worker) Start(ctx context.Context, queueName string) error {
	if err := w.Channel.Qos(1, 0, false); err != nil {
		return fmt.Errorf("failed to set qos: %w", err)
	}
	msgs, err := w.Channel.Consume(queueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	w.Logger.Info("worker waiting for messages", zap.String("queue", queueName))
	for {
		select {
		case <-ctx.Done():
			w.Logger.Info("worker stopping")
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("delivery channel closed")
			}
			w.Handle(ctx, d)
		}
	}
}

// Handle processes one delivery. Success acks; malformed bodies and failed deliveries
// are nacked without requeue so they land in the dead-letter queue.
func (w *Worker) Handle(ctx context.Context, d amqp.Delivery) {
	var payload EmailDeliveryPayload
	if err := json.Unmarshal(d.Body, &payload); err != nil || payload.EmailLogID == "" {
		w.Logger.Error("malformed delivery task", zap.ByteString("body", d.Body), zap.Error(err))
		w.nack(d)
		w.observe(OutcomeMalformed)
		return
	}

	if err := w.Deliverer.Deliver(ctx, payload.EmailLogID); err != nil {
		w.Logger.Error("delivery task failed",
			zap.String("email_log_id", payload.EmailLogID),
			zap.Error(err),
		)
		w.nack(d)
		w.observe(OutcomeDeadLettered)
		return
	}

	if err := d.Ack(false); err != nil {
		w.Logger.Warn("ack failed", zap.String("email_log_id", payload.EmailLogID), zap.Error(err))
	}
	w.observe(OutcomeSent)
}

func (w *Worker) nack(d amqp.Delivery) {
	if err := d.Nack(false, false); err != nil {
		w.Logger.Warn("nack failed", zap.Error(err))
	}
}

func (w *Worker) observe(o Outcome) {
	if w.OnOutcome != nil {
		w.OnOutcome(o)
	}
}
