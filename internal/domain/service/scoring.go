package service

import (
	"context"
	"errors"

	"github.com/AllsHub/predictive-lead-scoring-for-banking-sales/internal/domain/models"
)

// ErrModelUnavailable means no scorer was loaded at startup. It is a service
// condition, not a client error.
var ErrModelUnavailable = errors.New("model not loaded")

// Scorer returns the positive-class probability for one feature row.
// The trained model behind it is opaque.
type Scorer interface {
	Name() string
	Version() string
	Score(ctx context.Context, row models.FeatureRow) (float64, error)
}
