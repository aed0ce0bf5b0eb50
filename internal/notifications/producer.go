package notifications

import (
	"context"
	"fmt"
	"time"

	"ridehub/pkg/logger"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
)

// AvailabilityProducer publishes seat availability changes. Fire-and-forget
// from the engine's point of view: errors are logged, never surfaced.
type AvailabilityProducer interface {
	EmitSeatAvailabilityChanged(ctx context.Context, tripID uuid.UUID, seatNo string, state SeatState)
	Close() error
	HealthCheck(ctx context.Context) error
}

// KafkaProducerConfig contains configuration for the Kafka producer
type KafkaProducerConfig struct {
	Brokers           []string
	AvailabilityTopic string
	RetryMax          int
	TimeoutMs         int
	RequiredAcks      sarama.RequiredAcks
	CompressionType   sarama.CompressionCodec
	IdempotentWrites  bool
}

// DefaultKafkaProducerConfig returns a default producer configuration
func DefaultKafkaProducerConfig() *KafkaProducerConfig {
	return &KafkaProducerConfig{
		Brokers:           []string{"localhost:9092"},
		AvailabilityTopic: "seat-availability",
		RetryMax:          3,
		TimeoutMs:         10000,
		RequiredAcks:      sarama.WaitForAll,
		CompressionType:   sarama.CompressionSnappy,
		IdempotentWrites:  true,
	}
}

// KafkaAvailabilityProducer publishes availability events to Kafka
type KafkaAvailabilityProducer struct {
	producer sarama.SyncProducer
	config   *KafkaProducerConfig
}

// NewKafkaAvailabilityProducer creates a new Kafka availability producer
func NewKafkaAvailabilityProducer(config *KafkaProducerConfig) (AvailabilityProducer, error) {
	if config == nil {
		config = DefaultKafkaProducerConfig()
	}

	saramaConfig := sarama.NewConfig()
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true
	saramaConfig.Producer.RequiredAcks = config.RequiredAcks
	saramaConfig.Producer.Compression = config.CompressionType
	saramaConfig.Producer.Retry.Max = config.RetryMax
	saramaConfig.Producer.Timeout = time.Duration(config.TimeoutMs) * time.Millisecond
	saramaConfig.Producer.Idempotent = config.IdempotentWrites

	// Idempotent producer requires broker >= 0.11 and a single in-flight
	// request
	if config.IdempotentWrites {
		saramaConfig.Version = sarama.V2_1_0_0
		saramaConfig.Net.MaxOpenRequests = 1
	}

	// Hash partitioner keyed by trip:seat keeps per-seat ordering
	saramaConfig.Producer.Partitioner = sarama.NewHashPartitioner

	producer, err := sarama.NewSyncProducer(config.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	return &KafkaAvailabilityProducer{
		producer: producer,
		config:   config,
	}, nil
}

// EmitSeatAvailabilityChanged publishes one availability change. Best-effort:
// a publish failure is logged and swallowed so it can never fail a booking.
func (p *KafkaAvailabilityProducer) EmitSeatAvailabilityChanged(ctx context.Context, tripID uuid.UUID, seatNo string, state SeatState) {
	event := NewSeatAvailabilityEvent(tripID, seatNo, state)

	messageBytes, err := event.ToJSON()
	if err != nil {
		logger.GetDefault().ErrorWithContext(ctx, "failed to marshal availability event", err,
			map[string]interface{}{"trip_id": tripID.String(), "seat_no": seatNo})
		return
	}

	message := &sarama.ProducerMessage{
		Topic:     p.config.AvailabilityTopic,
		Key:       sarama.StringEncoder(event.GetPartitionKey()),
		Value:     sarama.ByteEncoder(messageBytes),
		Timestamp: event.EmittedAt,
	}

	partition, offset, err := p.producer.SendMessage(message)
	if err != nil {
		logger.GetDefault().ErrorWithContext(ctx, "failed to publish availability event", err,
			map[string]interface{}{"trip_id": tripID.String(), "seat_no": seatNo, "state": string(state)})
		return
	}

	logger.GetDefault().DebugWithContext(ctx, "availability event published", map[string]interface{}{
		"topic":     p.config.AvailabilityTopic,
		"partition": partition,
		"offset":    offset,
		"trip_id":   tripID.String(),
		"seat_no":   seatNo,
		"state":     string(state),
	})
}

// Close shuts down the underlying producer
func (p *KafkaAvailabilityProducer) Close() error {
	if err := p.producer.Close(); err != nil {
		return fmt.Errorf("failed to close Kafka producer: %w", err)
	}
	return nil
}

// HealthCheck verifies the producer is usable
func (p *KafkaAvailabilityProducer) HealthCheck(ctx context.Context) error {
	if p.producer == nil {
		return fmt.Errorf("kafka producer is not initialized")
	}
	return nil
}

// NoopProducer is used when Kafka is disabled or unreachable; availability
// changes are still observable via the status endpoints.
type NoopProducer struct{}

func NewNoopProducer() AvailabilityProducer {
	return &NoopProducer{}
}

func (NoopProducer) EmitSeatAvailabilityChanged(ctx context.Context, tripID uuid.UUID, seatNo string, state SeatState) {
	logger.GetDefault().DebugWithContext(ctx, "availability event dropped (producer disabled)",
		map[string]interface{}{"trip_id": tripID.String(), "seat_no": seatNo, "state": string(state)})
}

func (NoopProducer) Close() error { return nil }

func (NoopProducer) HealthCheck(ctx context.Context) error { return nil }
