package di

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/AllsHub/predictive-lead-scoring-for-banking-sales/internal/domain/models"
	domrepo "github.com/AllsHub/predictive-lead-scoring-for-banking-sales/internal/domain/repository"
	domsvc "github.com/AllsHub/predictive-lead-scoring-for-banking-sales/internal/domain/service"
	"github.com/AllsHub/predictive-lead-scoring-for-banking-sales/internal/handler/api"
	internalrepo "github.com/AllsHub/predictive-lead-scoring-for-banking-sales/internal/repository"
	"github.com/AllsHub/predictive-lead-scoring-for-banking-sales/internal/service/ratelimit"
	"github.com/AllsHub/predictive-lead-scoring-for-banking-sales/internal/services/scoring"
	"github.com/AllsHub/predictive-lead-scoring-for-banking-sales/internal/usecase"
	pkgcache "github.com/AllsHub/predictive-lead-scoring-for-banking-sales/pkg/cache"
	pkgch "github.com/AllsHub/predictive-lead-scoring-for-banking-sales/pkg/clickhouse"
	"github.com/AllsHub/predictive-lead-scoring-for-banking-sales/pkg/config"
	xhttp "github.com/AllsHub/predictive-lead-scoring-for-banking-sales/pkg/http"
	pkgkafka "github.com/AllsHub/predictive-lead-scoring-for-banking-sales/pkg/kafka"
	applogger "github.com/AllsHub/predictive-lead-scoring-for-banking-sales/pkg/logger"
	"github.com/AllsHub/predictive-lead-scoring-for-banking-sales/pkg/metrics"
	"github.com/AllsHub/predictive-lead-scoring-for-banking-sales/pkg/server"
)

// ScoreSinks are the enabled downstream sinks, possibly none.
type ScoreSinks []domrepo.ScoreSink

// ProvideLogger creates the application logger from the log section.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder on the default registry.
func ProvideMetrics() domrepo.Metrics {
	return metrics.New(prometheus.DefaultRegisterer)
}

// ProvideScorer loads the configured model. A model that fails to load is
// logged and leaves the service running without one: scoring routes then
// answer 503 until a restart with a good model.
func ProvideScorer(cfg *config.Config, l *applogger.Logger) domsvc.Scorer {
	switch cfg.Model.Backend {
	case config.BackendArtifact:
		m, err := scoring.LoadArtifact(cfg.Model.Path)
		if err != nil {
			l.Error("model load failed", applogger.String("path", cfg.Model.Path), applogger.Error(err))
			return nil
		}
		l.Info("model loaded",
			applogger.String("name", m.Name()),
			applogger.String("version", m.Version()),
			applogger.Int("features", m.Width()),
		)
		return m
	case config.BackendRemote:
		base := scoring.NewHTTPServiceBase(cfg.Model.RemoteURL, cfg.Model.Timeout)
		l.Info("remote model configured", applogger.String("url", cfg.Model.RemoteURL))
		return scoring.NewRemoteModel(base, cfg.Model.RemotePath, scoring.WithRemoteAttempts(cfg.Model.Retries+1))
	default:
		l.Warn("no model backend configured")
		return nil
	}
}

// ProvideScoreCache builds the prediction cache: memory only, or memory in
// front of Redis. Returns nil when caching is disabled. A Redis that cannot
// be reached falls back to memory only.
func ProvideScoreCache(cfg *config.Config, l *applogger.Logger) *internalrepo.ScoreCache {
	if !cfg.Cache.Enabled {
		return nil
	}
	if cfg.Cache.Redis.Enabled {
		rc, err := pkgcache.NewRedisCache(
			pkgcache.WithRedisHost(cfg.Cache.Redis.Host),
			pkgcache.WithRedisPort(cfg.Cache.Redis.Port),
			pkgcache.WithRedisPassword(cfg.Cache.Redis.Password),
			pkgcache.WithRedisDB(cfg.Cache.Redis.DB),
			pkgcache.WithRedisPrefix(cfg.Cache.Redis.Prefix),
		)
		if err == nil {
			l.Info("score cache: layered", applogger.String("redis", cfg.Cache.Redis.Host))
			lc := pkgcache.NewLayeredCache(rc,
				pkgcache.WithLayeredMemorySize(cfg.Cache.MemoryMaxSize),
				pkgcache.WithLayeredMemoryTTL(time.Minute),
			)
			return internalrepo.NewScoreCache(lc, cfg.Cache.TTL)
		}
		l.Warn("score cache: redis unavailable, using memory", applogger.Error(err))
	}
	mc := pkgcache.NewMemoryCache(pkgcache.WithMemoryMaxSize(cfg.Cache.MemoryMaxSize))
	return internalrepo.NewScoreCache(mc, cfg.Cache.TTL)
}

// ProvideClickHouseClient creates a ClickHouse client and the scored_leads
// table. Returns nil when ClickHouse is disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.ScoredLeadsSchema(cfg.ClickHouse.Database, cfg.ClickHouse.Table)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideKafkaProducer creates a Kafka producer. Returns nil when the
// scored-lead topic is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithDelivery(
			cfg.Kafka.Producer.MaxAttempts,
			cfg.Kafka.Producer.WriteTimeout,
			cfg.Kafka.Producer.ReadTimeout,
			cfg.Kafka.Producer.Async,
		),
		pkgkafka.WithKeyPartitioning(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideScoreSinks collects the enabled sinks.
func ProvideScoreSinks(cfg *config.Config, producer *pkgkafka.Producer, ch *pkgch.Client, l *applogger.Logger) ScoreSinks {
	var sinks ScoreSinks
	if producer != nil {
		sinks = append(sinks, internalrepo.NewKafkaScoreSink(producer, cfg.Kafka.ScoredTopic))
	}
	if ch != nil {
		s := internalrepo.NewClickHouseScoreSinkFromClient(ch, cfg.ClickHouse.Database+"."+cfg.ClickHouse.Table)
		s.SetLogger(l)
		sinks = append(sinks, s)
	}
	return sinks
}

// ProvideLeadScorer creates the scoring use case.
func ProvideLeadScorer(
	cfg *config.Config,
	scorer domsvc.Scorer,
	cache *internalrepo.ScoreCache,
	sinks ScoreSinks,
	m domrepo.Metrics,
	l *applogger.Logger,
) *usecase.LeadScorer {
	t1, t2 := cfg.Thresholds()
	opts := []usecase.LeadScorerOption{
		usecase.WithThresholds(models.Thresholds{Tier1: t1, Tier2: t2}),
		usecase.WithSinks(sinks...),
		usecase.WithMetrics(m),
		usecase.WithLogger(l),
	}
	if cache != nil {
		opts = append(opts, usecase.WithScoreCache(cache))
	}
	return usecase.NewLeadScorer(scorer, opts...)
}

// ProvideRateLimiter creates the per-client limiter for the predict routes.
func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.RateLimit.Capacity, cfg.RateLimit.RefillPerSec)
}

// ProvideLeadsHandler creates the HTTP handler.
func ProvideLeadsHandler(cfg *config.Config, scorer *usecase.LeadScorer, rl *ratelimit.Limiter, l *applogger.Logger) *api.LeadsHandler {
	return api.NewLeadsHandler(scorer,
		api.WithRateLimiter(rl),
		api.WithUploadLimits(cfg.Batch.MaxUploadBytes, cfg.Batch.MaxRows),
		api.WithLogger(l),
	)
}

// ProvideHTTPServer creates the echo server with routes registered.
func ProvideHTTPServer(cfg *config.Config, h *api.LeadsHandler, l *applogger.Logger) *xhttp.Server {
	opts := []xhttp.ServerOption{
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(cfg.Server.CORS),
		xhttp.WithLogger(l),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetrics(cfg.Metrics.Path, cfg.Metrics.SlowThreshold))
	}
	return xhttp.NewServer(h, opts...)
}

// ProvideKafkaConsumer creates the lead stream consumer. Returns nil when
// stream scoring is disabled.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Consumer.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideKafkaLeadsHandler creates the handler for the incoming leads topic.
func ProvideKafkaLeadsHandler(cfg *config.Config, scorer *usecase.LeadScorer) *usecase.KafkaLeadsHandler {
	return usecase.NewKafkaLeadsHandler(cfg.Kafka.Consumer.Topic, scorer)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	httpServer *xhttp.Server,
	scorer *usecase.LeadScorer,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaLeadsHandler,
	cache *internalrepo.ScoreCache,
	ch *pkgch.Client,
	rl *ratelimit.Limiter,
) *server.App {
	app := server.New(cfg, l, httpServer, scorer)
	if consumer != nil {
		app.SetConsumer(consumer, kh)
	}
	if cache != nil {
		app.AddCloser("score cache", cache)
	}
	if ch != nil {
		app.AddCloser("clickhouse", ch)
	}
	app.SetRateLimiter(rl)
	return app
}
