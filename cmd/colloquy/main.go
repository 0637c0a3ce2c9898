package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/colloquy-ai/colloquy/internal/config"
	dbRedis "github.com/colloquy-ai/colloquy/internal/db/redis"
	logpkg "github.com/colloquy-ai/colloquy/internal/logger"
	"github.com/colloquy-ai/colloquy/internal/metrics"
	cacherepo "github.com/colloquy-ai/colloquy/internal/repository/cache"
	"github.com/colloquy-ai/colloquy/internal/repository/columnindex"
	"github.com/colloquy-ai/colloquy/internal/repository/convstate"
	chiTransport "github.com/colloquy-ai/colloquy/internal/transport/chi"
	"github.com/colloquy-ai/colloquy/internal/transport/dataapi"
	openaiTransport "github.com/colloquy-ai/colloquy/internal/transport/openai"
	"github.com/colloquy-ai/colloquy/internal/usecase/conversation"
	"github.com/colloquy-ai/colloquy/internal/usecase/discovery"
	"github.com/colloquy-ai/colloquy/internal/usecase/executor"
	healthuc "github.com/colloquy-ai/colloquy/internal/usecase/health"
	"github.com/colloquy-ai/colloquy/internal/usecase/intent"
	"github.com/colloquy-ai/colloquy/internal/usecase/pipeline"
	"github.com/colloquy-ai/colloquy/internal/usecase/router"
	"github.com/colloquy-ai/colloquy/internal/usecase/selection"
	"github.com/colloquy-ai/colloquy/internal/usecase/sqlgen"
	"github.com/colloquy-ai/colloquy/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting colloquy API server",
		zap.String("build", version.String()),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Username: cfg.Database.Username,
		Password: cfg.Database.Password,
		DB:       cfg.Database.DB,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register pipeline metrics explicitly (no init())
	metrics.RegisterPipelineMetrics()

	embedder := openaiTransport.NewEmbedder(&openaiTransport.EmbedderConfig{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Timeout:    time.Duration(cfg.Embedding.TimeoutSec) * time.Second,
		Logger:     logger,
	})
	inference := openaiTransport.NewChat(&openaiTransport.ChatConfig{
		APIKey:      cfg.Inference.APIKey,
		BaseURL:     cfg.Inference.BaseURL,
		Model:       cfg.Inference.Model,
		Temperature: float32(cfg.Inference.Temperature),
		MaxTokens:   cfg.Inference.MaxTokens,
		Timeout:     time.Duration(cfg.Inference.TimeoutSec) * time.Second,
		Logger:      logger,
	})
	backend := dataapi.New(&dataapi.Config{
		BaseURL:  cfg.Execution.BaseURL,
		APIToken: cfg.Execution.APIToken,
		Timeout:  time.Duration(cfg.Execution.TimeoutSec) * time.Second,
		Logger:   logger,
	})
	logger.Info("External providers created",
		zap.String("embedding_model", cfg.Embedding.Model),
		zap.String("inference_model", cfg.Inference.Model),
	)

	// Repositories
	queryCache := cacherepo.New(store, cfg.Cache.KeyPrefix, cacherepo.TTLs{
		SQLResult:     cfg.Cache.SQLResultTTL,
		ColumnSearch:  cfg.Cache.ColumnSearchTTL,
		SQLGeneration: cfg.Cache.SQLGenerationTTL,
		Metadata:      cfg.Cache.MetadataTTL,
	}, metrics.CacheOperationsTotal, logger)
	columns := columnindex.New(store, cfg.Pipeline.IndexName)
	conversations := convstate.New(cfg.Conversation.TTL, uint64(cfg.Conversation.MaxConversation))
	defer conversations.Stop()

	// Use case services
	intentSvc := intent.New(inference, logger)
	routerSvc := router.New(inference, logger)
	discoverySvc := discovery.New(columns, embedder, queryCache,
		cfg.Pipeline.FacetLimit, cfg.Pipeline.ScrollLimit, logger)
	selectionSvc := selection.New(inference, cfg.Pipeline.MaxSelectColumns, logger)
	sqlgenSvc := sqlgen.New(inference, queryCache, logger)
	executorSvc := executor.New(backend, queryCache, cfg.Execution.MaxRowLimit, logger)
	conversationSvc := conversation.New(conversations, inference,
		cfg.Conversation.SummaryAfter, cfg.Conversation.RecentKept, logger)
	healthSvc := healthuc.New(store, embedder)

	pipelineSvc := pipeline.New(
		intentSvc, routerSvc, discoverySvc, selectionSvc,
		sqlgenSvc, executorSvc, conversationSvc, inference,
		cfg.Pipeline.PageSize, logger,
	)

	server := chiTransport.NewServer(pipelineSvc, conversationSvc, healthSvc, queryCache, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Register(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line, one per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
