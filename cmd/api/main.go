package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/campus-card/backend/internal/api/handlers"
	"github.com/campus-card/backend/internal/cache"
	"github.com/campus-card/backend/internal/cache/redis"
	"github.com/campus-card/backend/internal/facility"
	"github.com/campus-card/backend/internal/gazetteer"
	"github.com/campus-card/backend/internal/llm"
	"github.com/campus-card/backend/internal/location"
	"github.com/campus-card/backend/internal/metrics"
	"github.com/campus-card/backend/internal/middleware/ratelimit"
	"github.com/campus-card/backend/internal/middleware/security"
	"github.com/campus-card/backend/internal/middleware/validation"
	"github.com/campus-card/backend/internal/refine"
	"github.com/campus-card/backend/internal/storage/sqlite"
	"github.com/campus-card/backend/pkg/config"
	appLogger "github.com/campus-card/backend/pkg/logger"
	"github.com/campus-card/backend/pkg/retry"
)

func main() {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting campus card API server")

	metrics.Init()

	gaz := gazetteer.LoadOrEmpty(cfg.Gazetteer.Path)
	metrics.GazetteerLocations.Set(float64(gaz.Len()))

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	if err := sqliteClient.InitSchema(); err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	resultCache, closeCache := newResultCache(cfg)
	defer closeCache()

	llmClient := llm.NewClient(llm.Config{
		BaseURL:           cfg.LLM.BaseURL,
		Model:             cfg.LLM.Model,
		APIKey:            cfg.LLM.APIKey,
		Temperature:       cfg.LLM.Temperature,
		MaxTokens:         cfg.LLM.MaxTokens,
		ConnectTimeout:    time.Duration(cfg.LLM.ConnectTimeoutSec) * time.Second,
		ReadTimeout:       time.Duration(cfg.LLM.ReadTimeoutSec) * time.Second,
		InsecureSkipTLS:   !cfg.LLM.VerifySSL,
		RequestsPerMinute: cfg.LLM.RequestsPerMinute,
		Retry: retry.Config{
			MaxAttempts:  cfg.LLM.MaxAttempts,
			InitialDelay: time.Duration(cfg.LLM.BackoffBaseSec) * time.Second,
			MaxDelay:     30 * time.Second,
			Multiplier:   2.0,
			Logger:       appLogger.GetLogger(),
		},
	})

	// Keep the interfaces nil rather than wrapping an unconfigured client.
	var (
		resolverModel location.ModelClient
		adviceModel   facility.ModelClient
	)
	if llmClient.Configured() {
		resolverModel = llmClient
		adviceModel = llmClient
	} else {
		appLogger.Warn("No model API key configured, resolving lexically only")
	}

	resolver := location.NewResolver(gaz, resultCache, resolverModel)
	finder := facility.NewFinder(gaz)
	advisor := facility.NewAdvisor(adviceModel)

	scheduler := refine.NewScheduler(resolver, sqliteClient, refine.Config{
		Workers:       cfg.Refine.Workers,
		QueueSize:     cfg.Refine.QueueSize,
		TaskTimeout:   time.Duration(cfg.Refine.TaskTimeoutSec) * time.Second,
		MinConfidence: cfg.Refine.MinConfidence,
	})
	scheduler.Start()

	limiter := ratelimit.New(ratelimit.Config{
		RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
		Burst:             cfg.RateLimit.Burst,
		Logger:            appLogger.GetLogger(),
	})
	defer limiter.Stop()

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-User-ID",
		AllowMethods: "GET, POST, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{IsDevelopment: cfg.Server.Development}))

	app.Get("/metrics", metrics.MetricsHandler())

	api := app.Group("/api/v1",
		limiter.Middleware(),
		validation.Middleware(validation.Config{
			MaxTextLength: cfg.Server.MaxTextLength,
			Logger:        appLogger.GetLogger(),
		}),
	)

	handlers.Register(api,
		handlers.NewLocationHandler(resolver, gaz, finder, advisor),
		handlers.NewCardHandler(sqliteClient, scheduler),
		handlers.NewHealthHandler(gaz.Len(), llmClient.Configured(), sqliteClient),
	)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	if err := app.Shutdown(); err != nil {
		appLogger.Error("Server shutdown failed", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := scheduler.Stop(ctx); err != nil {
		appLogger.Warn("Refinement tasks abandoned", zap.Error(err))
	}

	appLogger.Info("Server stopped")
}

// newResultCache picks the configured backend. An unreachable Redis falls
// back to the in-process cache.
func newResultCache(cfg *config.Config) (location.ResultCache, func()) {
	ttl := time.Duration(cfg.Cache.TTLSec) * time.Second
	noop := func() {}

	if cfg.Cache.Backend != "redis" {
		return cache.NewMemory[location.Result](ttl), noop
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := redis.NewClient(ctx, cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		appLogger.Warn("Redis unavailable, using in-memory cache", zap.Error(err))
		return cache.NewMemory[location.Result](ttl), noop
	}

	store := redis.NewStore[location.Result](client, "location", ttl)
	if cfg.Cache.FlushOnStart {
		if err := store.Invalidate(ctx); err != nil {
			appLogger.Warn("Failed to flush resolution cache", zap.Error(err))
		}
	}

	return store, func() { client.Close() }
}
