package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"
	"github.com/overlay-relay/internal/config"
	"github.com/overlay-relay/internal/domain"
)

// EventPublisher emits accepted overlay writes to a Kafka topic, keyed by slot
// so each slot's events stay ordered within a partition.
type EventPublisher struct {
	config   *config.KafkaConfig
	producer sarama.SyncProducer
	logger   *slog.Logger
}

// NewEventPublisher creates a new Kafka event publisher
func NewEventPublisher(cfg *config.KafkaConfig, logger *slog.Logger) (*EventPublisher, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_0_0_0
	saramaConfig.ClientID = cfg.ClientID
	saramaConfig.Producer.RequiredAcks = sarama.WaitForLocal
	saramaConfig.Producer.Compression = sarama.CompressionSnappy
	saramaConfig.Producer.Retry.Max = cfg.RetryAttempts
	saramaConfig.Producer.Retry.Backoff = cfg.RetryDelay
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("creating kafka producer: %w", err)
	}

	return NewEventPublisherWithProducer(cfg, producer, logger), nil
}

// NewEventPublisherWithProducer wraps an existing producer
func NewEventPublisherWithProducer(cfg *config.KafkaConfig, producer sarama.SyncProducer, logger *slog.Logger) *EventPublisher {
	return &EventPublisher{
		config:   cfg,
		producer: producer,
		logger:   logger,
	}
}

// RecordOverlayEvent publishes one event
func (p *EventPublisher) RecordOverlayEvent(_ context.Context, event domain.OverlayEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling overlay event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.config.Topic,
		Key:   sarama.StringEncoder(event.Slot),
		Value: sarama.ByteEncoder(data),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("publishing overlay event: %w", err)
	}

	p.logger.Debug("published overlay event",
		"event_id", event.ID,
		"slot", event.Slot,
		"partition", partition,
		"offset", offset,
	)
	return nil
}

// Close flushes and closes the producer
func (p *EventPublisher) Close() error {
	p.logger.Info("stopping Kafka publisher")
	return p.producer.Close()
}
