package repository

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/AllsHub/predictive-lead-scoring-for-banking-sales/internal/domain/models"
	"github.com/AllsHub/predictive-lead-scoring-for-banking-sales/pkg/cache"
	pkgkafka "github.com/AllsHub/predictive-lead-scoring-for-banking-sales/pkg/kafka"
)

func scored(id string) models.ScoredLead {
	return models.ScoredLead{
		EventID:    id,
		Lead:       models.Lead{Age: models.Int(41), Job: "admin.", Campaign: models.Int(2), Pdays: models.Int(999)},
		Features:   models.EngineeredFeatures{IsNewCustomer: 1, LifeStage: 1},
		Prediction: models.NewPrediction(0.3, models.DefaultThresholds()),
		ModelName:  "tiny",
		Source:     models.SourceBatch,
		ScoredAt:   time.Unix(1_700_000_000, 0),
	}
}

func TestScoreCacheHitAndMiss(t *testing.T) {
	mc := cache.NewMemoryCache()
	sc := NewScoreCache(mc, time.Minute)
	defer sc.Close()
	ctx := context.Background()

	if _, ok, err := sc.GetScore(ctx, "k"); ok || err != nil {
		t.Fatalf("expected clean miss, got ok=%v err=%v", ok, err)
	}
	if err := sc.SetScore(ctx, "k", 0.123); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, ok, err := sc.GetScore(ctx, "k")
	if err != nil || !ok || got != 0.123 {
		t.Fatalf("get = %v %v %v", got, ok, err)
	}
}

func TestScoreCacheKey(t *testing.T) {
	row := func(age float64, job string) models.FeatureRow {
		return models.FeatureRow{
			Numeric:     map[string]float64{"age": age},
			Categorical: map[string]string{"job": job},
		}
	}
	a := ScoreCacheKey("m", "1", row(30, "admin."))
	if a != ScoreCacheKey("m", "1", row(30, "admin.")) {
		t.Fatalf("key must be deterministic")
	}
	if a == ScoreCacheKey("m", "2", row(30, "admin.")) {
		t.Fatalf("key must change with model version")
	}
	if a == ScoreCacheKey("m", "1", row(31, "admin.")) || a == ScoreCacheKey("m", "1", row(30, "services")) {
		t.Fatalf("key must change with row values")
	}
	if ScoreCacheKey("m", "1", row(math.NaN(), "")) == "" {
		t.Fatalf("NaN rows must still produce a key")
	}
	if !strings.HasPrefix(a, "score:m:1:") {
		t.Fatalf("unexpected key layout %s", a)
	}
}

type fakePublisher struct {
	topic string
	msgs  []pkgkafka.Message
	err   error
}

func (p *fakePublisher) PublishBatch(_ context.Context, topic string, msgs []pkgkafka.Message) error {
	p.topic = topic
	p.msgs = append(p.msgs, msgs...)
	return p.err
}

func (p *fakePublisher) Close() error { return nil }

func TestKafkaScoreSink(t *testing.T) {
	p := &fakePublisher{}
	s := NewKafkaScoreSink(p, "leads.scored")
	if err := s.Publish(context.Background(), nil); err != nil || len(p.msgs) != 0 {
		t.Fatalf("empty publish must be a no-op")
	}
	if err := s.Publish(context.Background(), []models.ScoredLead{scored("e1"), scored("e2")}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if p.topic != "leads.scored" || len(p.msgs) != 2 || string(p.msgs[1].Key) != "e2" {
		t.Fatalf("unexpected messages: %s %+v", p.topic, p.msgs)
	}

	p.err = errors.New("broker down")
	if err := s.Publish(context.Background(), []models.ScoredLead{scored("e3")}); err == nil {
		t.Fatalf("expected publish error")
	}
}

type fakeExecer struct {
	queries []string
	args    [][]any
	err     error
}

func (f *fakeExecer) ExecContext(_ context.Context, q string, args ...any) (sql.Result, error) {
	f.queries = append(f.queries, q)
	f.args = append(f.args, args)
	return nil, f.err
}

func TestClickHouseScoreSinkInsert(t *testing.T) {
	db := &fakeExecer{}
	s := NewClickHouseScoreSink(db, "leadscore.scored_leads")
	if err := s.Publish(context.Background(), []models.ScoredLead{scored("e1"), scored("e2")}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(db.queries) != 1 {
		t.Fatalf("expected one statement, got %d", len(db.queries))
	}
	q := db.queries[0]
	if !strings.HasPrefix(q, "INSERT INTO leadscore.scored_leads (event_id, scored_at") {
		t.Fatalf("unexpected query: %s", q)
	}
	if want := 2 * len(scoredLeadColumns); len(db.args[0]) != want {
		t.Fatalf("args = %d, want %d", len(db.args[0]), want)
	}
	if db.args[0][0] != "e1" || db.args[0][len(scoredLeadColumns)] != "e2" {
		t.Fatalf("rows out of order: %v", db.args[0])
	}

	if db.args[0][9] != int32(41) || db.args[0][15] != nil {
		t.Fatalf("age/market_condition args = %v %v", db.args[0][9], db.args[0][15])
	}

	noAge := scored("e4")
	noAge.Lead.Age = nil
	if err := s.Publish(context.Background(), []models.ScoredLead{noAge}); err != nil {
		t.Fatalf("publish lead without age: %v", err)
	}
	if db.args[1][9] != nil || !strings.Contains(db.args[1][len(scoredLeadColumns)-1].(string), `"age":null`) {
		t.Fatalf("missing age must be NULL: %v", db.args[1])
	}

	db.err = errors.New("table missing")
	if err := s.Publish(context.Background(), []models.ScoredLead{scored("e3")}); err == nil {
		t.Fatalf("expected insert error")
	}
}

func TestScoredLeadsSchema(t *testing.T) {
	stmts := ScoredLeadsSchema("leadscore", "scored_leads")
	if len(stmts) != 2 || !strings.Contains(stmts[1], "leadscore.scored_leads") {
		t.Fatalf("unexpected schema: %v", stmts)
	}
	for _, col := range scoredLeadColumns {
		if !strings.Contains(stmts[1], col+" ") {
			t.Fatalf("schema missing column %s", col)
		}
	}
}
