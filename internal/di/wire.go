//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"github.com/AllsHub/predictive-lead-scoring-for-banking-sales/pkg/config"
	"github.com/AllsHub/predictive-lead-scoring-for-banking-sales/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Model and infrastructure
		ProvideScorer,
		ProvideScoreCache,
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideScoreSinks,

		// Use cases
		ProvideLeadScorer,
		ProvideKafkaConsumer,
		ProvideKafkaLeadsHandler,

		// Transport
		ProvideRateLimiter,
		ProvideLeadsHandler,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
