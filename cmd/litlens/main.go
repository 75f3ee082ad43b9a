package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"litlens/internal/analysis"
	"litlens/internal/cache"
	"litlens/internal/config"
	"litlens/internal/gutenberg"
	"litlens/internal/handlers"
	"litlens/internal/httpserver"
	"litlens/internal/llm"
	"litlens/internal/metrics"
	"litlens/pkg/logging"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("litlens exited with error: %v", err)
	}
}

func run() error {
	// ----- Logger -----
	logger := logging.DefaultLogger()
	defer logger.Sync()

	// ----- Metrics -----
	metrics.Register()

	// ----- Config -----
	cfg := config.Load()

	logger.Info("loaded config",
		zap.String("port", cfg.Port),
		zap.String("cache_backend", cfg.CacheBackend),
		zap.String("redis_addr", cfg.RedisAddr),
		zap.String("gutenberg_base_url", cfg.GutenbergBaseURL),
		zap.String("llm_base_url", cfg.LLMBaseURL),
		zap.String("llm_model", cfg.LLMModel),
	)

	// ----- Redis client (only if needed) -----
	var redisClient *redis.Client
	if cfg.CacheBackend == "redis" {
		redisClient = redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
		})

		// Fail fast if Redis is misconfigured
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Error("redis connection failed", zap.Error(err))
			return err
		}
		logger.Info("redis connection established",
			zap.String("addr", cfg.RedisAddr),
		)
	}

	// ----- Cache -----
	store := cache.NewStore(cache.Config{
		Backend: cfg.CacheBackend,
		Prefix:  cfg.CachePrefix,
	}, redisClient)
	safe := cache.NewSafeCache(store, cfg.TextTTL)

	// ----- LLM client -----
	if cfg.LLMAPIKey == "" {
		return fmt.Errorf("LLM_API_KEY is required")
	}

	llmClient, err := llm.NewClient(llm.Config{
		BaseURL:         cfg.LLMBaseURL,
		APIKey:          cfg.LLMAPIKey,
		Model:           cfg.LLMModel,
		UpstreamTimeout: cfg.LLMTimeout,
		MaxRetries:      cfg.LLMRetries,
	}, logger)
	if err != nil {
		return err
	}
	if closer, ok := llmClient.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	// ----- Book text client -----
	books := gutenberg.NewClient(gutenberg.Config{
		BaseURL:      cfg.GutenbergBaseURL,
		UserAgent:    cfg.UserAgent,
		FetchTimeout: cfg.FetchTimeout,
		MaxTextLen:   cfg.MaxTextLen,
		TextTTL:      cfg.TextTTL,
	}, safe)

	// ----- Analysis service -----
	svc := analysis.NewService(analysis.ServiceConfig{
		Model:       cfg.LLMModel,
		Temperature: cfg.Temperature,
	}, safe, books, llmClient)

	// ----- Handlers -----
	bookHandler := handlers.NewBookHandler(svc, books)

	// ----- Router + middleware -----
	r := chi.NewRouter()
	httpserver.SetupRouter(r, logger, bookHandler, httpserver.Options{
		RequestTimeout: cfg.RequestTimeout,
		MaxBodyBytes:   cfg.MaxBodyBytes,
	})

	// ----- HTTP server -----
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 10*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("starting litlens",
		zap.String("addr", srv.Addr),
		zap.String("cache_backend", cfg.CacheBackend),
	)

	// Start server in background
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", zap.Error(err))
		}
	}()

	// ----- Graceful shutdown -----
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
		return err
	}

	if c, ok := store.(interface{ Close() error }); ok {
		_ = c.Close()
	}

	logger.Info("server shutdown complete")
	return nil
}
