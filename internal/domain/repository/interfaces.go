package repository

import (
	"context"

	"github.com/AllsHub/predictive-lead-scoring-for-banking-sales/internal/domain/models"
)

// ScoreSink receives scored leads after the caller has its answer.
// Implementations must not block scoring on downstream outages for long.
type ScoreSink interface {
	Name() string
	Publish(ctx context.Context, leads []models.ScoredLead) error
	Close() error
}

// ScoreCache memoizes model output per feature row.
type ScoreCache interface {
	GetScore(ctx context.Context, key string) (score float64, ok bool, err error)
	SetScore(ctx context.Context, key string, score float64) error
}

type Metrics interface {
	RecordPrediction(source string, tier models.Tier)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
	RecordBatch(rows, failed int)
	RecordCache(hit bool)
}
