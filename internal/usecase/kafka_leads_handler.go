package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/AllsHub/predictive-lead-scoring-for-banking-sales/internal/domain/models"
	xhttp "github.com/AllsHub/predictive-lead-scoring-for-banking-sales/pkg/http"
	pkgkafka "github.com/AllsHub/predictive-lead-scoring-for-banking-sales/pkg/kafka"
)

// KafkaLeadsHandler scores leads arriving on a topic. Scored events leave
// through the scorer's sinks.
type KafkaLeadsHandler struct {
	topic  string
	scorer *LeadScorer
}

func NewKafkaLeadsHandler(topic string, scorer *LeadScorer) *KafkaLeadsHandler {
	return &KafkaLeadsHandler{topic: topic, scorer: scorer}
}

func (h *KafkaLeadsHandler) Topic() string { return h.topic }

// incoming message schema: the /predict JSON body
func (h *KafkaLeadsHandler) Handle(ctx context.Context, b []byte) error {
	var req models.LeadRequest
	if err := json.Unmarshal(b, &req); err != nil {
		h.scorer.metrics.RecordError("consumer_unmarshal")
		return pkgkafka.Permanent(fmt.Errorf("decode lead: %w", err))
	}
	if err := xhttp.ValidateStruct(ctx, &req); err != nil {
		h.scorer.metrics.RecordError("consumer_validate")
		return pkgkafka.Permanent(err)
	}
	// scoring failures stay retryable: a remote model may recover
	if _, err := h.scorer.Score(ctx, req.ToLead(), models.SourceKafka); err != nil {
		return fmt.Errorf("score lead: %w", err)
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaLeadsHandler)(nil)
