package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/xavierca1/healing-ledger/internal/entity"
)

type ProducerConfig struct {
	Brokers     []string
	Topic       string
	Retries     int
	Timeout     time.Duration
	Compression string
}

// KafkaPublisher writes domain events to one topic, keyed by aggregate id so events of
// the same purchase or lead stay ordered within a partition.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
	logger   *zap.Logger
}

func NewKafkaPublisher(cfg ProducerConfig, logger *zap.Logger) (*KafkaPublisher, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true
	config.Producer.Retry.Max = cfg.Retries
	config.Producer.Timeout = cfg.Timeout
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Partitioner = sarama.NewHashPartitioner

	switch cfg.Compression {
	case "snappy":
		config.Producer.Compression = sarama.CompressionSnappy
	case "zstd":
		config.Producer.Compression = sarama.CompressionZSTD
	case "lz4":
		config.Producer.Compression = sarama.CompressionLZ4
	case "gzip":
		config.Producer.Compression = sarama.CompressionGZIP
	default:
		config.Producer.Compression = sarama.CompressionNone
	}
	config.Version = sarama.V3_3_0_0

	producer, err := sarama.NewSyncProducer(cfg.Brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create producer: %w", err)
	}

	logger.Info("Kafka producer initialized",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic", cfg.Topic),
	)
	return NewKafkaPublisherFromProducer(producer, cfg.Topic, logger), nil
}

func NewKafkaPublisherFromProducer(producer sarama.SyncProducer, topic string, logger *zap.Logger) *KafkaPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KafkaPublisher{producer: producer, topic: topic, logger: logger}
}

func (p *KafkaPublisher) Publish(ctx context.Context, e entity.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(e.Key),
		Value: sarama.ByteEncoder(value),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(e.Type)},
		},
		Timestamp: e.OccurredAt,
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to send %s event: %w", e.Type, err)
	}

	p.logger.Debug("event published",
		zap.String("type", e.Type),
		zap.String("key", e.Key),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
	)
	return nil
}

func (p *KafkaPublisher) Close() error {
	if err := p.producer.Close(); err != nil {
		return fmt.Errorf("failed to close producer: %w", err)
	}
	p.logger.Info("Kafka producer closed")
	return nil
}

// Noop drops events. It is used when no brokers are configured.
type Noop struct{}

func (Noop) Publish(context.Context, entity.Event) error { return nil }

func (Noop) Close() error { return nil }
