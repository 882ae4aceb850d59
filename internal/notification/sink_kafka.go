package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/smallbiznis/eventpass/internal/notification/domain"
	"github.com/smallbiznis/eventpass/pkg/money"
	"go.uber.org/zap"
)

// producer is the subset of *kafka.Producer the sink uses.
type producer interface {
	Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error
	Flush(timeoutMs int) int
	Close()
}

type KafkaSink struct {
	producer producer
	topic    string
	log      *zap.Logger
}

func NewKafkaProducer(brokers string) (*kafka.Producer, error) {
	return kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers":  brokers,
		"enable.idempotence": true,
		"acks":               "all",
	})
}

func NewKafkaSink(p producer, topic string, log *zap.Logger) *KafkaSink {
	return &KafkaSink{
		producer: p,
		topic:    topic,
		log:      log.Named("notification.kafka"),
	}
}

func (s *KafkaSink) Name() string { return "kafka" }

type envelope struct {
	ID          string         `json:"id"`
	Type        string         `json:"type"`
	OrgID       string         `json:"org_id"`
	AggregateID string         `json:"aggregate_id"`
	OccurredAt  time.Time      `json:"occurred_at"`
	Payload     map[string]any `json:"payload"`
}

// Deliver produces one message and waits for the broker acknowledgement.
func (s *KafkaSink) Deliver(ctx context.Context, event domain.OutboxEvent) error {
	value, err := json.Marshal(buildEnvelope(event))
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	delivery := make(chan kafka.Event, 1)
	err = s.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &s.topic, Partition: kafka.PartitionAny},
		Key:            []byte(event.AggregateID.String()),
		Value:          value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "dedupe_key", Value: []byte(event.DedupeKey)},
		},
	}, delivery)
	if err != nil {
		return fmt.Errorf("produce: %w", err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case e := <-delivery:
		msg, ok := e.(*kafka.Message)
		if !ok {
			return fmt.Errorf("unexpected delivery event %T", e)
		}
		if msg.TopicPartition.Error != nil {
			return fmt.Errorf("delivery: %w", msg.TopicPartition.Error)
		}
		s.log.Debug("delivered",
			zap.String("event_type", string(event.EventType)),
			zap.Int32("partition", msg.TopicPartition.Partition),
		)
		return nil
	}
}

func (s *KafkaSink) Close() {
	s.producer.Flush(5000)
	s.producer.Close()
}

func buildEnvelope(event domain.OutboxEvent) envelope {
	payload := make(map[string]any, len(event.Payload)+1)
	for k, v := range event.Payload {
		payload[k] = v
	}
	currency, _ := payload["currency"].(string)
	if amount, ok := minorAmount(payload["amount"]); ok && currency != "" {
		payload["amount_display"] = money.FormatMinor(amount, currency)
	}

	return envelope{
		ID:          event.ID.String(),
		Type:        string(event.EventType),
		OrgID:       event.OrgID.String(),
		AggregateID: event.AggregateID.String(),
		OccurredAt:  event.CreatedAt.UTC(),
		Payload:     payload,
	}
}

// minorAmount accepts the numeric shapes a JSON round trip can produce.
func minorAmount(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	case json.Number:
		parsed, err := n.Int64()
		return parsed, err == nil
	default:
		return 0, false
	}
}
