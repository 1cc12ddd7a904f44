package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"scene-bridge/internal/assets"
	"scene-bridge/internal/config"
	"scene-bridge/internal/db"
	"scene-bridge/internal/executor"
	"scene-bridge/internal/llm"
	"scene-bridge/internal/repository"
	"scene-bridge/internal/safety"
	"scene-bridge/internal/service"
	"scene-bridge/internal/session"
	"scene-bridge/internal/ws"
)

func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Un asset root ilegible es falla de arranque, no de request.
	index, err := assets.NewIndex(cfg.AssetRoot, logger)
	if err != nil {
		logger.Fatal("asset index", zap.Error(err))
	}

	var repo repository.MessageRepository
	if cfg.DatabaseURL != "" {
		pool, err := db.NewPool(ctx, cfg)
		if err != nil {
			logger.Warn("db connect failed, running in-memory only", zap.Error(err))
		} else {
			defer pool.Close()
			repo = repository.NewPgMessageRepository(pool)
		}
	}

	store := session.NewStore(cfg.SessionID, repo, logger)
	if repo != nil {
		if err := store.Load(ctx); err != nil {
			logger.Warn("load persisted history failed", zap.Error(err))
		} else {
			logger.Info("history loaded", zap.Int("messages", len(store.List())))
		}
	}

	var limiter service.GenRateLimiter
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed, generation unlimited", zap.Error(err))
		} else {
			limiter = service.NewRedisGenRateLimiter(
				redisClient,
				time.Duration(cfg.GenRateWindowSeconds)*time.Second,
				cfg.GenRateMax,
			)
		}
		cancel()
	}

	llmClient := llm.NewHTTPClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel, cfg.TranscribeModel, logger)
	genSvc := service.NewGenerationService(llmClient, logger)
	hostExec := executor.NewHTTPExecutor(
		cfg.ExecutorBaseURL,
		time.Duration(cfg.ExecutorTimeoutSeconds)*time.Second,
		logger,
	)

	hub := ws.NewHub(logger)
	chatSvc := service.NewChatService(store, safety.NewGate(), index, genSvc, hostExec, limiter, hub, logger)
	srv := ws.NewServer(hub, chatSvc, time.Duration(cfg.HeartbeatSeconds)*time.Second, logger)
	router := ws.NewRouter(logger, srv)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("starting bridge",
		zap.String("port", cfg.HTTPPort),
		zap.String("session_id", cfg.SessionID),
		zap.Int("assets", index.Len()),
	)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}
}
