package server

import (
	"context"
	"testing"

	"github.com/AllsHub/predictive-lead-scoring-for-banking-sales/internal/domain/models"
	"github.com/AllsHub/predictive-lead-scoring-for-banking-sales/internal/service/ratelimit"
	"github.com/AllsHub/predictive-lead-scoring-for-banking-sales/internal/usecase"
	"github.com/AllsHub/predictive-lead-scoring-for-banking-sales/pkg/config"
	xhttp "github.com/AllsHub/predictive-lead-scoring-for-banking-sales/pkg/http"
)

type orderLog []string

type sink struct{ log *orderLog }

func (s sink) Name() string                                       { return "test" }
func (s sink) Publish(context.Context, []models.ScoredLead) error { return nil }
func (s sink) Close() error {
	*s.log = append(*s.log, "sinks")
	return nil
}

type closer struct {
	name string
	log  *orderLog
}

func (c closer) Close() error {
	*c.log = append(*c.log, c.name)
	return nil
}

func TestShutdownOrder(t *testing.T) {
	cfg, err := config.Default()
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	var log orderLog
	scorer := usecase.NewLeadScorer(nil, usecase.WithSinks(sink{&log}))
	srv := xhttp.NewServer(nil, xhttp.WithHost("127.0.0.1"), xhttp.WithPort(0))

	app := New(cfg, nil, srv, scorer)
	app.AddCloser("cache", closer{"cache", &log})
	app.AddCloser("clickhouse", closer{"clickhouse", &log})
	app.SetRateLimiter(ratelimit.New(0, 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := app.run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}

	want := []string{"sinks", "cache", "clickhouse"}
	if len(log) != len(want) {
		t.Fatalf("close order = %v, want %v", log, want)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Fatalf("close order = %v, want %v", log, want)
		}
	}
}
