// Command companion runs the live interview analysis service: it
// captures diarized speech, aggregates it into batches, runs the
// two-tier analysis pipeline, and serves insights over HTTP and SSE.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Montinou/interview-companion-sub000/analysis"
	"github.com/Montinou/interview-companion-sub000/config"
	"github.com/Montinou/interview-companion-sub000/database"
	"github.com/Montinou/interview-companion-sub000/llm"
	"github.com/Montinou/interview-companion-sub000/llm/ollama"
	"github.com/Montinou/interview-companion-sub000/logger"
	"github.com/Montinou/interview-companion-sub000/observability"
	"github.com/Montinou/interview-companion-sub000/provider"
	"github.com/Montinou/interview-companion-sub000/resilience"
	"github.com/Montinou/interview-companion-sub000/server"
	"github.com/Montinou/interview-companion-sub000/session"
	"github.com/Montinou/interview-companion-sub000/sse"
	"github.com/Montinou/interview-companion-sub000/store"
	"github.com/Montinou/interview-companion-sub000/stt"
	"github.com/Montinou/interview-companion-sub000/stt/deepgram"
	"github.com/Montinou/interview-companion-sub000/version"
)

const serviceName = "interview-companion"

func main() {
	cfg, err := config.LoadService()
	if err != nil {
		logger.Fatal("config load failed", logger.Fields("error", err.Error()))
	}

	log := logger.New(&cfg.Logger, serviceName)
	logger.SetGlobalLogger(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("service failed", logger.Fields("error", err.Error()))
	}
}

func run(ctx context.Context, cfg *config.Service, log *logger.Logger) error {
	var metrics *observability.PipelineMetrics
	if cfg.Observability.Enabled {
		mp, err := observability.InitMeter(ctx, &cfg.Observability)
		if err != nil {
			return err
		}
		defer shutdownQuietly(mp.Shutdown, log, "meter")

		tp, err := observability.InitTracer(ctx, &cfg.Observability)
		if err != nil {
			return err
		}
		defer shutdownQuietly(tp.Shutdown, log, "tracer")

		metrics, err = observability.NewPipelineMetrics(observability.Meter(serviceName))
		if err != nil {
			return err
		}
	}

	db, err := database.Open(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := db.AutoMigrate(store.Models()...); err != nil {
			return err
		}
	}
	st := store.NewGorm(db)

	retryCfg := resilience.DefaultRetryConfig()
	cbCfg := resilience.DefaultCircuitBreakerConfig("ollama")
	deep := provider.WithResilience(
		llm.AsRequestResponse(ollama.NewProvider(cfg.Ollama)),
		provider.ResilienceConfig{Retry: &retryCfg, CircuitBreaker: &cbCfg},
	)
	// The cheap tier can run on its own model; otherwise it shares the
	// deep tier's backend.
	fast := deep
	if cfg.OllamaFilter.Model != "" {
		fastCB := resilience.DefaultCircuitBreakerConfig("ollama-filter")
		fast = provider.WithResilience(
			llm.AsRequestResponse(ollama.NewProvider(cfg.OllamaFilter)),
			provider.ResilienceConfig{Retry: &retryCfg, CircuitBreaker: &fastCB},
		)
	}

	hub := sse.NewHub(log)
	defer hub.Close()
	pub := sse.NewPublisher(hub, log)

	engine := analysis.NewEngine(cfg.Analysis, analysis.Deps{
		Store:    st,
		Tracker:  analysis.NewInsightLogTracker(st, cfg.Analysis.StateWindow),
		Filter:   analysis.NewFilter(fast, cfg.Analysis.FilterTimeout, log),
		Analyzer: analysis.NewAnalyzer(deep, cfg.Analysis.AnalyzeTimeout, log),
		Roles:    analysis.NewRoleResolver(fast, st, cfg.Analysis.RoleThreshold, cfg.Analysis.FilterTimeout, log),
		Synth:    analysis.NewSynthesizer(deep, st, cfg.Analysis.ScorecardTimeout, log),
		Pub:      pub,
		Log:      log,
		Metrics:  metrics,
	})
	defer engine.Close()

	factory := func(context.Context) (stt.Source, error) {
		return deepgram.NewSource(cfg.Deepgram, log), nil
	}
	sessions := session.NewManager(cfg.Aggregator, factory, engine, st, pub, log, metrics)
	defer sessions.Close(context.Background())

	srv := server.New(cfg.Server, log)
	srv.ApplyMiddleware()
	server.NewAPI(st, sessions, hub, db.PingContext, log).RegisterRoutes(srv.GinEngine())

	if err := srv.Start(ctx); err != nil {
		return err
	}

	log.Info("service started", logger.Fields(
		"version", version.GetShortVersion(),
		"addr", srv.Addr(),
		"model", cfg.Ollama.Model,
		"flush_interval", cfg.Aggregator.FlushInterval.String(),
		"role_threshold", cfg.Analysis.RoleThreshold,
	))
	<-ctx.Done()
	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Stop(shutdownCtx)
}

func shutdownQuietly(fn func(context.Context) error, log *logger.Logger, what string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := fn(ctx); err != nil {
		log.Warn(what+" shutdown failed", logger.Fields("error", err.Error()))
	}
}
