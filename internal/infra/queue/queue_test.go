package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAck struct {
	acked   int
	nacked  int
	requeue bool
}

func (f *fakeAck) Ack(tag uint64, multiple bool) error { f.acked++; return nil }

func (f *fakeAck) Nack(tag uint64, multiple, requeue bool) error {
	f.nacked++
	f.requeue = requeue
	return nil
}

func (f *fakeAck) Reject(tag uint64, requeue bool) error { return nil }

type fakeDeliverer struct {
	ids []string
	err error
}

func (f *fakeDeliverer) Deliver(_ context.Context, id string) error {
	f.ids = append(f.ids, id)
	return f.err
}

func delivery(ack amqp.Acknowledger, body string) amqp.Delivery {
	return amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: []byte(body)}
}

func TestWorkerHandle_AcksDeliveredTask(t *testing.T) {
	ack := &fakeAck{}
	deliverer := &fakeDeliverer{}
	var outcomes []Outcome
	w := NewWorker(nil, deliverer, nil)
	w.OnOutcome = func(o Outcome) { outcomes = append(outcomes, o) }

	w.Handle(context.Background(), delivery(ack, `{"email_log_id":"log-1"}`))

	assert.Equal(t, []string{"log-1"}, deliverer.ids)
	assert.Equal(t, 1, ack.acked)
	assert.Equal(t, 0, ack.nacked)
	assert.Equal(t, []Outcome{OutcomeSent}, outcomes)
}

func TestWorkerHandle_DeadLettersFailedDelivery(t *testing.T) {
	ack := &fakeAck{}
	w := NewWorker(nil, &fakeDeliverer{err: errors.New("smtp down")}, nil)

	w.Handle(context.Background(), delivery(ack, `{"email_log_id":"log-1"}`))

	assert.Equal(t, 0, ack.acked)
	assert.Equal(t, 1, ack.nacked)
	assert.False(t, ack.requeue)
}

func TestWorkerHandle_MalformedBody(t *testing.T) {
	for name, body := range map[string]string{
		"invalid json": `{not json`,
		"missing id":   `{}`,
	} {
		t.Run(name, func(t *testing.T) {
			ack := &fakeAck{}
			deliverer := &fakeDeliverer{}
			w := NewWorker(nil, deliverer, nil)

			w.Handle(context.Background(), delivery(ack, body))

			assert.Empty(t, deliverer.ids)
			assert.Equal(t, 1, ack.nacked)
			assert.False(t, ack.requeue)
		})
	}
}

type fakeChannel struct {
	msgs chan amqp.Delivery
	qos  int
}

func (f *fakeChannel) Qos(prefetchCount, _ int, _ bool) error {
	f.qos = prefetchCount
	return nil
}

func (f *fakeChannel) Consume(string, string, bool, bool, bool, bool, amqp.Table) (<-chan amqp.Delivery, error) {
	return f.msgs, nil
}

func TestWorkerStart_StopsOnClosedChannel(t *testing.T) {
	ch := &fakeChannel{msgs: make(chan amqp.Delivery, 1)}
	ack := &fakeAck{}
	ch.msgs <- delivery(ack, `{"email_log_id":"log-9"}`)
	close(ch.msgs)

	deliverer := &fakeDeliverer{}
	err := NewWorker(ch, deliverer, nil).Start(context.Background(), QueueName)

	require.Error(t, err)
	assert.Equal(t, 1, ch.qos)
	assert.Equal(t, []string{"log-9"}, deliverer.ids)
	assert.Equal(t, 1, ack.acked)
}

func TestWorkerStart_StopsOnContextCancel(t *testing.T) {
	ch := &fakeChannel{msgs: make(chan amqp.Delivery)}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewWorker(ch, &fakeDeliverer{}, nil).Start(ctx, QueueName)
	assert.NoError(t, err)
}

type fakePublisher struct {
	exchange, key string
	msg           amqp.Publishing
	err           error
}

func (f *fakePublisher) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	f.exchange, f.key, f.msg = exchange, key, msg
	return f.err
}

func TestProducer_PublishEmailDelivery(t *testing.T) {
	pub := &fakePublisher{}
	err := NewProducer(pub).PublishEmailDelivery(context.Background(), EmailDeliveryPayload{EmailLogID: "log-1"})
	require.NoError(t, err)

	assert.Equal(t, ExchangeName, pub.exchange)
	assert.Equal(t, RoutingKey, pub.key)
	assert.Equal(t, amqp.Persistent, pub.msg.DeliveryMode)

	var got EmailDeliveryPayload
	require.NoError(t, json.Unmarshal(pub.msg.Body, &got))
	assert.Equal(t, "log-1", got.EmailLogID)
}

func TestProducer_WrapsPublishError(t *testing.T) {
	pub := &fakePublisher{err: errors.New("channel closed")}
	err := NewProducer(pub).PublishEmailDelivery(context.Background(), EmailDeliveryPayload{EmailLogID: "x"})
	assert.ErrorContains(t, err, "channel closed")
}

type topologyRecorder struct {
	queueArgs map[string]amqp.Table
	bindings  []string
}

func (r *topologyRecorder) ExchangeDeclare(string, string, bool, bool, bool, bool, amqp.Table) error {
	return nil
}

func (r *topologyRecorder) QueueDeclare(name string, _, _, _, _ bool, args amqp.Table) (amqp.Queue, error) {
	if r.queueArgs == nil {
		r.queueArgs = map[string]amqp.Table{}
	}
	r.queueArgs[name] = args
	return amqp.Queue{Name: name}, nil
}

func (r *topologyRecorder) QueueBind(name, key, exchange string, _ bool, _ amqp.Table) error {
	r.bindings = append(r.bindings, exchange+"->"+name)
	return nil
}

func TestSetupTopology_WorkQueueDeadLettersToDLQ(t *testing.T) {
	rec := &topologyRecorder{}
	require.NoError(t, SetupTopology(rec))

	assert.Equal(t, DLXName, rec.queueArgs[QueueName]["x-dead-letter-exchange"])
	assert.Nil(t, rec.queueArgs[DLQName])
	assert.Equal(t, []string{DLXName + "->" + DLQName, ExchangeName + "->" + QueueName}, rec.bindings)
}
