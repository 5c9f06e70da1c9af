package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gwi.com/interview-coach/internal/api"
	"gwi.com/interview-coach/internal/auth"
	"gwi.com/interview-coach/internal/cache"
	"gwi.com/interview-coach/internal/catalog"
	"gwi.com/interview-coach/internal/config"
	"gwi.com/interview-coach/internal/core"
	"gwi.com/interview-coach/internal/metrics"
	"gwi.com/interview-coach/internal/store"
	"gwi.com/interview-coach/internal/utils"
)

func main() {
	// Command line flags for one-shot maintenance tasks
	seedFlag := flag.String("seed", "", `Seed the question store from a YAML file ("builtin" for the sample set) and exit`)
	issueTokenFlag := flag.String("issue-token", "", "Print a signed API token for the given subject and exit")
	flag.Parse()

	// Load configuration
	config.LoadConfig()
	cfg := config.AppConfig

	logger := utils.NewLogger(cfg.LogFormat, cfg.Debug())
	if cfg.Debug() {
		logger.Debug("Service starting in DEBUG mode")
	}
	if err := cfg.Validate(); err != nil {
		logger.LogError(err, "Invalid configuration")
		os.Exit(1)
	}

	if *issueTokenFlag != "" {
		if cfg.JWTSecret == "" {
			logger.Error("JWT_SECRET must be set to issue tokens")
			os.Exit(1)
		}
		token, err := auth.GenerateJWT(cfg.JWTSecret, *issueTokenFlag, 24*time.Hour)
		if err != nil {
			logger.LogError(err, "Failed to issue token")
			os.Exit(1)
		}
		fmt.Println(token)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize question store
	questionStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.LogError(err, "Failed to initialize question store", "driver", cfg.StoreDriver)
		os.Exit(1)
	}
	defer questionStore.Close()

	// Handle seeding if flag is set
	if *seedFlag != "" {
		logger.Info("Starting question seeding", "source", *seedFlag)
		n, err := seed(ctx, questionStore, *seedFlag)
		if err != nil {
			questionStore.Close()
			logger.LogError(err, "Question seeding failed")
			os.Exit(1)
		}
		logger.Info("Question seeding complete, exiting", "inserted", n)
		return
	}
	if cfg.SeedOnEmpty {
		seedIfEmpty(ctx, questionStore, logger)
	}

	cat, err := catalog.Load(cfg.CatalogFile)
	if err != nil {
		logger.LogError(err, "Failed to load catalog", "path", cfg.CatalogFile)
		os.Exit(1)
	}

	// Initialize generator backend
	generator, err := core.NewGenerator(ctx, cfg, logger)
	if err != nil {
		logger.LogError(err, "Failed to initialize generator", "provider", cfg.LLMProvider)
		os.Exit(1)
	}
	if closer, ok := generator.(io.Closer); ok {
		defer closer.Close()
	}

	m := metrics.NewMetrics()
	questionService := core.NewQuestionService(questionStore, generator, cat, m, logger, cfg.QuestionTimeout)
	feedbackService := core.NewFeedbackService(questionStore, generator, cat, m, logger, cfg.FeedbackTimeout)
	sessions := core.NewSessionManager(questionService, feedbackService, m, logger, cfg.SessionTTL, cfg.FeedbackCeiling)
	go sessions.RunExpiryMonitor(ctx, time.Minute)

	// Initialize API Handler and Router
	apiHandler := api.NewAPIHandler(questionService, feedbackService, sessions, questionStore, logger)
	router := api.NewRouter(apiHandler, m.Handler(), cfg.JWTSecret, logger)

	// Start HTTP server
	serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)

	srv := &http.Server{
		Addr:        serverAddr,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// Summary requests may wait out the feedback ceiling.
		WriteTimeout: cfg.FeedbackCeiling + cfg.QuestionTimeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown handling
	go func() {
		logger.Info("Starting server", "addr", serverAddr, "store", cfg.StoreDriver, "llm_provider", cfg.LLMProvider)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.LogError(err, "Could not listen", "addr", serverAddr)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.LogError(err, "Server forced to shutdown")
	}

	cancel()
	sessions.Close()
	logger.Info("Server exiting gracefully")
}

// openStore builds the configured question store, wrapped in a Redis-backed
// cache when REDIS_URL is set.
func openStore(ctx context.Context, cfg config.Config, logger utils.Logger) (store.QuestionStore, error) {
	var (
		qs  store.QuestionStore
		err error
	)
	switch cfg.StoreDriver {
	case "mongo":
		qs, err = store.NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDatabase)
	default:
		qs, err = store.NewSQLiteStore(cfg.DatabaseURL)
	}
	if err != nil {
		return nil, err
	}

	if cfg.RedisURL == "" {
		return qs, nil
	}
	client, err := cache.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		// The cache is optional; serve straight from the store.
		logger.Warn("Redis unavailable, question cache disabled", "error", err)
		return qs, nil
	}
	logger.Info("Question cache enabled", "ttl", cfg.CacheTTL.String())
	return store.NewCachedStore(qs, cache.NewRedisCache(client, logger), cfg.CacheTTL, logger), nil
}

func seed(ctx context.Context, qs store.QuestionStore, path string) (int, error) {
	records, err := store.LoadSeedFile(path)
	if err != nil {
		return 0, err
	}
	return qs.Seed(ctx, records)
}

func seedIfEmpty(ctx context.Context, qs store.QuestionStore, logger utils.Logger) {
	n, err := qs.Count(ctx)
	if err != nil {
		logger.Warn("Could not count questions, skipping startup seed", "error", err)
		return
	}
	if n > 0 {
		return
	}
	inserted, err := seed(ctx, qs, store.BuiltinSeed)
	if err != nil {
		logger.Warn("Startup seed failed", "error", err)
		return
	}
	logger.Info("Seeded empty question store", "inserted", inserted)
}
