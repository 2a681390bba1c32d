package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"verdict-engine/internal/bayes"
	"verdict-engine/internal/cache"
	"verdict-engine/internal/config"
	"verdict-engine/internal/db"
	"verdict-engine/internal/drift"
	"verdict-engine/internal/handler"
	"verdict-engine/internal/inference"
	"verdict-engine/internal/job"
	"verdict-engine/internal/metrics"
	"verdict-engine/internal/notify"
	"verdict-engine/internal/outcome"
	"verdict-engine/internal/predictions"
	"verdict-engine/internal/registry"
	"verdict-engine/pkg/tracing"

	_ "verdict-engine/docs"
)

var (
	loadEnvFunc      = godotenv.Load
	loadConfigFunc   = config.Load
	loadPolicyFunc   = config.LoadPolicy
	initPostgresFunc = db.InitPostgres
	initRedisFunc    = cache.InitRedis
	initTracerFunc   = tracing.InitTracer
	newRouterFunc    = gin.Default

	startDriftJobFunc = func(j *job.DriftJob, ctx context.Context) { go j.Start(ctx) }
	startFlushJobFunc = func(j *job.PosteriorFlushJob, ctx context.Context) { go j.Start(ctx) }
	startConsumerFunc = func(c *outcome.Consumer, ctx context.Context) { go c.Run(ctx) }

	setupSignalNotify      = signal.Notify
	waitForSignalFunc      = func(quit <-chan os.Signal) { <-quit }
	startHTTPServerFunc    = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFunc = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
)

// @title           Verdict Engine API
// @version         1.0
// @description     Adaptive signal-ensembling and calibration service.

// @securityDefinitions.apikey ApiKeyAuth
// @in   header
// @name X-API-Key

// @host      localhost:8080
// @BasePath  /
func main() {
	loadEnvFunc()
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg := loadConfigFunc()
	policy, err := loadPolicyFunc(cfg.PolicyPath)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid policy file")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	os.Setenv("DATABASE_URL", cfg.DatabaseURL)
	os.Setenv("REDIS_URL", cfg.RedisURL)
	initPostgresFunc(ctx)
	initRedisFunc(ctx)

	tp, tracer, err := initTracerFunc(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize tracer")
	}
	defer func() {
		if err := tp.Shutdown(ctx); err != nil {
			log.Warn().Err(err).Msg("error shutting down tracer provider")
		}
	}()

	rec := metrics.New()

	// Artifacts load once; a missing active version degrades to the
	// documented per-component fallbacks instead of failing startup.
	store := registry.NewStore(cfg.ArtifactsDir)
	reg := registry.New(store, nil)
	if err := reg.Load(); err != nil {
		log.Warn().Err(err).Msg("no active model artifact, serving fallback constants")
	} else {
		cur := reg.Current()
		log.Info().Int("version", cur.Version).Strs("missing", cur.Missing).Msg("model artifact loaded")
	}

	engine := bayes.New(bayes.Config{
		PriorAlpha:      policy.Bayes.PriorAlpha,
		PriorBeta:       policy.Bayes.PriorBeta,
		Decay:           policy.Bayes.Decay,
		MinSamples:      policy.Bayes.MinSamples,
		ExplorationRate: policy.Bayes.ExplorationRate,
	}, nil, nil)

	var bayesRepo *bayes.Repository
	var predRepo *predictions.Repository
	var writer *predictions.Writer
	if db.Pool != nil {
		bayesRepo = bayes.NewRepository(db.Pool, tracer)
		predRepo = predictions.NewRepository(db.Pool, tracer)
		writer = predictions.NewWriter(predRepo, cfg.PredictionLogSize, rec.RecordDroppedLog)
		writer.Start(ctx)

		if posteriors, err := bayesRepo.ListPosteriors(ctx); err != nil {
			log.Warn().Err(err).Msg("failed to hydrate strategy posteriors, starting from priors")
		} else {
			engine.Hydrate(posteriors)
			log.Info().Int("strategies", len(posteriors)).Msg("strategy posteriors hydrated")
		}
	}

	window := cache.NewFeatureWindow(cache.Client, cfg.FeatureWindowSize)
	svc := inference.NewService(tracer, reg, writer, window, rec, nil)
	notifier := notify.NewNotifier(cfg.TelegramBotToken, cfg.TelegramChatID)

	driftJob := job.NewDriftJob(tracer, window, reg,
		drift.NewMonitor(policy.Drift.Bins, nil), rec, notifier,
		time.Duration(cfg.DriftPollSecs)*time.Second)
	startDriftJobFunc(driftJob, ctx)

	if bayesRepo != nil {
		flushJob := job.NewPosteriorFlushJob(tracer, engine, bayesRepo, rec,
			time.Duration(cfg.PosteriorFlushSecs)*time.Second)
		startFlushJobFunc(flushJob, ctx)
	}

	if len(cfg.KafkaBrokers) > 0 {
		reader := outcome.NewReader(cfg.KafkaBrokers, cfg.OutcomeTopic, cfg.OutcomeGroupID)
		var consumer *outcome.Consumer
		if predRepo != nil {
			consumer = outcome.NewConsumer(reader, engine, predRepo, rec)
		} else {
			consumer = outcome.NewConsumer(reader, engine, nil, rec)
		}
		startConsumerFunc(consumer, ctx)
	}

	h := handler.New(tracer, svc, engine, reg)

	r := newRouterFunc()
	r.Use(otelgin.Middleware("verdict-engine"))

	h.RegisterRoutes(r, cfg.APIKey)
	r.GET("/metrics", gin.WrapH(rec.Handler()))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: r,
	}

	go func() {
		if err := startHTTPServerFunc(srv); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("listen failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	log.Info().Msg("shutting down server")

	cancel()
	writer.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := shutdownHTTPServerFunc(srv, shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exiting")
}
