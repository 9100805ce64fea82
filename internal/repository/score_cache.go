package repository

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/AllsHub/predictive-lead-scoring-for-banking-sales/internal/domain/models"
	domrepo "github.com/AllsHub/predictive-lead-scoring-for-banking-sales/internal/domain/repository"
	"github.com/AllsHub/predictive-lead-scoring-for-banking-sales/pkg/cache"
)

// ScoreCache stores model scores in a cache.Service (memory, Redis or both).
type ScoreCache struct {
	c   cache.Service
	ttl time.Duration
}

func NewScoreCache(c cache.Service, ttl time.Duration) *ScoreCache {
	return &ScoreCache{c: c, ttl: ttl}
}

func (s *ScoreCache) GetScore(ctx context.Context, key string) (float64, bool, error) {
	var score float64
	if err := s.c.Get(ctx, key, &score); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return score, true, nil
}

func (s *ScoreCache) SetScore(ctx context.Context, key string, score float64) error {
	return s.c.Set(ctx, key, score, s.ttl)
}

// Close releases the underlying cache.
func (s *ScoreCache) Close() error { return s.c.Close() }

// ScoreCacheKey identifies a feature row under one model version. Values are
// formatted exactly, so NaN and signed zero stay distinct from other values.
func ScoreCacheKey(model, version string, row models.FeatureRow) string {
	var b strings.Builder
	for _, k := range row.Keys() {
		b.WriteString(k)
		b.WriteByte('=')
		if v, ok := row.Numeric[k]; ok {
			b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		} else {
			b.WriteString(strconv.Quote(row.Categorical[k]))
		}
		b.WriteByte(';')
	}
	return cache.GenerateKeyWithParams("score", model, version, cache.HashKey(b.String()))
}

var _ domrepo.ScoreCache = (*ScoreCache)(nil)
