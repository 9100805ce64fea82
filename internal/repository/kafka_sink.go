package repository

import (
	"context"
	"fmt"

	"github.com/AllsHub/predictive-lead-scoring-for-banking-sales/internal/domain/models"
	domrepo "github.com/AllsHub/predictive-lead-scoring-for-banking-sales/internal/domain/repository"
	pkgkafka "github.com/AllsHub/predictive-lead-scoring-for-banking-sales/pkg/kafka"
)

// BatchPublisher is the part of *kafka.Producer the sink needs.
type BatchPublisher interface {
	PublishBatch(ctx context.Context, topic string, messages []pkgkafka.Message) error
	Close() error
}

// KafkaScoreSink publishes scored leads as JSON events keyed by event id.
type KafkaScoreSink struct {
	producer BatchPublisher
	topic    string
}

// NewKafkaScoreSink creates Kafka sink.
func NewKafkaScoreSink(producer BatchPublisher, topic string) *KafkaScoreSink {
	return &KafkaScoreSink{producer: producer, topic: topic}
}

func (s *KafkaScoreSink) Name() string { return "kafka" }

func (s *KafkaScoreSink) Publish(ctx context.Context, leads []models.ScoredLead) error {
	if len(leads) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(leads))
	for i, l := range leads {
		msgs[i] = pkgkafka.Message{Key: []byte(l.EventID), Value: l}
	}
	if err := s.producer.PublishBatch(ctx, s.topic, msgs); err != nil {
		return fmt.Errorf("publish %d scored leads to %s: %w", len(leads), s.topic, err)
	}
	return nil
}

func (s *KafkaScoreSink) Close() error {
	if s.producer != nil {
		return s.producer.Close()
	}
	return nil
}

var _ domrepo.ScoreSink = (*KafkaScoreSink)(nil)
