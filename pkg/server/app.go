package server

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AllsHub/predictive-lead-scoring-for-banking-sales/internal/service/ratelimit"
	"github.com/AllsHub/predictive-lead-scoring-for-banking-sales/internal/usecase"
	"github.com/AllsHub/predictive-lead-scoring-for-banking-sales/pkg/config"
	xhttp "github.com/AllsHub/predictive-lead-scoring-for-banking-sales/pkg/http"
	pkgkafka "github.com/AllsHub/predictive-lead-scoring-for-banking-sales/pkg/kafka"
	applogger "github.com/AllsHub/predictive-lead-scoring-for-banking-sales/pkg/logger"
)

const limiterPruneInterval = time.Minute

type namedCloser struct {
	name string
	c    io.Closer
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	l          *applogger.Logger
	httpServer *xhttp.Server
	scorer     *usecase.LeadScorer
	consumer   *pkgkafka.Consumer
	kh         pkgkafka.MessageHandler
	limiter    *ratelimit.Limiter
	closers    []namedCloser
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, l *applogger.Logger, httpServer *xhttp.Server, scorer *usecase.LeadScorer) *App {
	if l == nil {
		l = applogger.Nop()
	}
	return &App{
		cfg:        cfg,
		l:          l,
		httpServer: httpServer,
		scorer:     scorer,
	}
}

// SetConsumer enables stream scoring of the handler's topic.
func (a *App) SetConsumer(consumer *pkgkafka.Consumer, kh pkgkafka.MessageHandler) {
	a.consumer = consumer
	a.kh = kh
}

// SetRateLimiter makes Run prune idle limiter buckets periodically.
func (a *App) SetRateLimiter(rl *ratelimit.Limiter) { a.limiter = rl }

// AddCloser registers a resource closed last during shutdown, in
// registration order.
func (a *App) AddCloser(name string, c io.Closer) {
	a.closers = append(a.closers, namedCloser{name: name, c: c})
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.run(ctx)
}

func (a *App) run(ctx context.Context) error {
	if !a.scorer.Available() {
		a.l.Warn("starting without a model: scoring routes answer 503")
	}

	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		if err := a.consumer.Start(); err != nil {
			a.l.Error("kafka consumer start error", applogger.Error(err))
			return err
		}
		a.l.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	if a.limiter.Enabled() {
		go a.pruneLimiter(ctx)
	}

	if err := a.httpServer.Start(); err != nil {
		a.l.Error("http server start error", applogger.Error(err))
		return err
	}

	<-ctx.Done()
	a.l.Info("shutdown signal received")
	return a.shutdown(context.Background())
}

func (a *App) pruneLimiter(ctx context.Context) {
	ticker := time.NewTicker(limiterPruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := a.limiter.Prune(); n > 0 {
				a.l.Debug("rate limiter pruned", applogger.Int("keys", n))
			}
		case <-ctx.Done():
			return
		}
	}
}

// shutdown stops intake first (HTTP, then the consumer) so nothing is
// scored while sinks and caches close.
func (a *App) shutdown(ctx context.Context) error {
	a.l.Info("shutting down...")

	if err := a.httpServer.Stop(ctx); err != nil {
		a.l.Error("http shutdown error", applogger.Error(err))
	}

	if a.consumer != nil {
		stopCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
		if err := a.consumer.Stop(stopCtx); err != nil {
			a.l.Warn("kafka consumer stop error", applogger.Error(err))
		}
		cancel()
	}

	if err := a.scorer.Close(); err != nil {
		a.l.Warn("score sinks close error", applogger.Error(err))
	}

	for _, nc := range a.closers {
		if err := nc.c.Close(); err != nil {
			a.l.Warn("close error", applogger.String("resource", nc.name), applogger.Error(err))
		}
	}

	a.l.Info("shutdown complete")
	return nil
}
