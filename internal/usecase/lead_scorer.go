package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/AllsHub/predictive-lead-scoring-for-banking-sales/internal/domain/models"
	domrepo "github.com/AllsHub/predictive-lead-scoring-for-banking-sales/internal/domain/repository"
	domsvc "github.com/AllsHub/predictive-lead-scoring-for-banking-sales/internal/domain/service"
	"github.com/AllsHub/predictive-lead-scoring-for-banking-sales/internal/repository"
	"github.com/AllsHub/predictive-lead-scoring-for-banking-sales/internal/services/features"
	"github.com/AllsHub/predictive-lead-scoring-for-banking-sales/internal/services/tabular"
	applogger "github.com/AllsHub/predictive-lead-scoring-for-banking-sales/pkg/logger"
	"github.com/AllsHub/predictive-lead-scoring-for-banking-sales/pkg/metrics"
)

// LeadScorer derives features, scores and tiers leads. A nil scorer means
// the model is unavailable; every scoring call then fails with
// service.ErrModelUnavailable.
type LeadScorer struct {
	scorer      domsvc.Scorer
	thresholds  models.Thresholds
	cache       domrepo.ScoreCache
	sinks       []domrepo.ScoreSink
	sinkTimeout time.Duration
	metrics     domrepo.Metrics
	l           *applogger.Logger
	now         func() time.Time
}

// LeadScorerOption configures LeadScorer.
type LeadScorerOption func(*LeadScorer)

func WithThresholds(th models.Thresholds) LeadScorerOption {
	return func(s *LeadScorer) { s.thresholds = th }
}

func WithScoreCache(c domrepo.ScoreCache) LeadScorerOption {
	return func(s *LeadScorer) { s.cache = c }
}

// WithSinks adds downstream sinks. Nil entries are skipped.
func WithSinks(sinks ...domrepo.ScoreSink) LeadScorerOption {
	return func(s *LeadScorer) {
		for _, sink := range sinks {
			if sink != nil {
				s.sinks = append(s.sinks, sink)
			}
		}
	}
}

// WithSinkTimeout bounds how long one publish may take.
func WithSinkTimeout(d time.Duration) LeadScorerOption {
	return func(s *LeadScorer) { s.sinkTimeout = d }
}

func WithMetrics(m domrepo.Metrics) LeadScorerOption {
	return func(s *LeadScorer) {
		if m != nil {
			s.metrics = m
		}
	}
}

func WithLogger(l *applogger.Logger) LeadScorerOption {
	return func(s *LeadScorer) {
		if l != nil {
			s.l = l
		}
	}
}

func NewLeadScorer(scorer domsvc.Scorer, opts ...LeadScorerOption) *LeadScorer {
	s := &LeadScorer{
		scorer:      scorer,
		thresholds:  models.DefaultThresholds(),
		sinkTimeout: 5 * time.Second,
		metrics:     metrics.Nop{},
		l:           applogger.Nop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Available reports whether a model is loaded.
func (s *LeadScorer) Available() bool { return s.scorer != nil }

// Info describes the loaded model.
func (s *LeadScorer) Info() models.ModelInfo {
	info := models.ModelInfo{Available: s.Available(), Thresholds: s.thresholds}
	if s.scorer != nil {
		info.Name = s.scorer.Name()
		info.Version = s.scorer.Version()
	}
	return info
}

// Score runs one lead through derive, score and tier. The returned error is
// service.ErrModelUnavailable or a processing error carrying the cause.
func (s *LeadScorer) Score(ctx context.Context, lead models.Lead, source string) (models.Prediction, error) {
	if !s.Available() {
		s.metrics.RecordError("model_unavailable")
		return models.Prediction{}, domsvc.ErrModelUnavailable
	}
	start := time.Now()
	enriched, pred, err := s.evaluate(ctx, lead)
	s.metrics.RecordLatency("score", time.Since(start).Seconds())
	if err != nil {
		s.metrics.RecordError("score")
		return models.Prediction{}, err
	}
	s.metrics.RecordPrediction(source, pred.Tier)
	s.emit(ctx, []models.ScoredLead{s.event(enriched, pred, source)})
	return pred, nil
}

// ScoreTable scores every row of t in order. Row failures are recorded in
// place and never stop the batch; the only error is an unavailable model.
func (s *LeadScorer) ScoreTable(ctx context.Context, t *tabular.Table) (models.BatchResult, error) {
	if !s.Available() {
		s.metrics.RecordError("model_unavailable")
		return models.BatchResult{}, domsvc.ErrModelUnavailable
	}
	// a started batch runs to completion even if the client goes away
	ctx = context.WithoutCancel(ctx)
	start := time.Now()

	missing := MissingColumns(t.Header)
	res := models.BatchResult{Results: make([]models.RowResult, 0, t.Len())}
	events := make([]models.ScoredLead, 0, t.Len())
	for i := 0; i < t.Len(); i++ {
		var (
			enriched models.EnrichedLead
			pred     models.Prediction
			err      error
		)
		if len(missing) > 0 {
			err = fmt.Errorf("%w: column %q not found", ErrInvalidRow, missing[0])
		} else {
			var lead models.Lead
			if lead, err = DecodeLead(t.Record(i)); err == nil {
				enriched, pred, err = s.evaluate(ctx, lead)
			}
		}
		if err != nil {
			res.Results = append(res.Results, models.RowResult{RowIndex: i, Err: err.Error()})
			continue
		}
		p := pred
		res.Results = append(res.Results, models.RowResult{RowIndex: i, Prediction: &p})
		s.metrics.RecordPrediction(models.SourceBatch, pred.Tier)
		events = append(events, s.event(enriched, pred, models.SourceBatch))
	}
	res.TotalProcessed = len(res.Results)

	failed := res.Failures()
	s.metrics.RecordBatch(res.TotalProcessed, failed)
	s.metrics.RecordLatency("score_batch", time.Since(start).Seconds())
	s.l.Info("batch scored",
		applogger.Int("rows", res.TotalProcessed),
		applogger.Int("failed", failed),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	s.emit(ctx, events)
	return res, nil
}

func (s *LeadScorer) evaluate(ctx context.Context, lead models.Lead) (models.EnrichedLead, models.Prediction, error) {
	enriched := features.Augment(lead)
	p, err := s.probability(ctx, models.NewFeatureRow(enriched))
	if err != nil {
		return enriched, models.Prediction{}, err
	}
	return enriched, models.NewPrediction(p, s.thresholds), nil
}

func (s *LeadScorer) probability(ctx context.Context, row models.FeatureRow) (float64, error) {
	if s.cache == nil {
		return s.scorer.Score(ctx, row)
	}
	key := repository.ScoreCacheKey(s.scorer.Name(), s.scorer.Version(), row)
	if p, ok, err := s.cache.GetScore(ctx, key); err != nil {
		s.l.Warn("score cache get", applogger.Error(err))
	} else if ok {
		s.metrics.RecordCache(true)
		return p, nil
	}
	s.metrics.RecordCache(false)

	p, err := s.scorer.Score(ctx, row)
	if err != nil {
		return 0, err
	}
	if err := s.cache.SetScore(ctx, key, p); err != nil {
		s.l.Warn("score cache set", applogger.Error(err))
	}
	return p, nil
}

func (s *LeadScorer) event(e models.EnrichedLead, p models.Prediction, source string) models.ScoredLead {
	return models.ScoredLead{
		EventID:      uuid.NewString(),
		Lead:         e.Lead,
		Features:     e.EngineeredFeatures,
		Prediction:   p,
		ModelName:    s.scorer.Name(),
		ModelVersion: s.scorer.Version(),
		Source:       source,
		ScoredAt:     s.now().UTC(),
	}
}

// emit fans events out to every sink concurrently. Sink failures are logged
// and counted; they never reach the caller.
func (s *LeadScorer) emit(ctx context.Context, events []models.ScoredLead) {
	if len(s.sinks) == 0 || len(events) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.sinkTimeout)
	defer cancel()

	var eg errgroup.Group
	for _, sink := range s.sinks {
		sink := sink
		eg.Go(func() error {
			if err := sink.Publish(ctx, events); err != nil {
				s.metrics.RecordError("sink_" + sink.Name())
				s.l.Error("publish scored leads",
					applogger.String("sink", sink.Name()),
					applogger.Int("events", len(events)),
					applogger.Error(err),
				)
			}
			return nil
		})
	}
	_ = eg.Wait()
}

// Close closes every sink.
func (s *LeadScorer) Close() error {
	var first error
	for _, sink := range s.sinks {
		if err := sink.Close(); err != nil && first == nil {
			first = fmt.Errorf("close sink %s: %w", sink.Name(), err)
		}
	}
	return first
}
