package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"caqm-backend/config"
	"caqm-backend/internal/domain/entity"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// KafkaPublisher writes appointment events to a single topic, keyed by
// appointment ID so events of one appointment stay ordered.
type KafkaPublisher struct {
	writer *kafka.Writer
	topic  string
	log    *logrus.Logger
}

// NewKafkaPublisher returns nil when no brokers are configured.
func NewKafkaPublisher(cfg config.KafkaConfig, log *logrus.Logger) *KafkaPublisher {
	brokers := SplitBrokers(cfg.Brokers)
	if len(brokers) == 0 {
		log.Warn("Kafka publisher disabled (no brokers configured)")
		return nil
	}

	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers:  brokers,
		Topic:    cfg.Topic,
		Balancer: &kafka.Hash{},
	})

	log.Infof("Kafka publisher ready: topic=%s brokers=%s", cfg.Topic, strings.Join(brokers, ","))
	return &KafkaPublisher{writer: writer, topic: cfg.Topic, log: log}
}

func (p *KafkaPublisher) PublishAppointmentCancelled(ctx context.Context, event entity.AppointmentCancelledEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal cancellation event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.AppointmentID.String()),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(event.EventID.String())},
			{Key: "event_type", Value: []byte(entity.EventTypeAppointmentCancelled)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish to %s: %w", p.topic, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// SplitBrokers parses a comma separated broker list.
func SplitBrokers(raw string) []string {
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
