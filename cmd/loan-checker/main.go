// cmd/loan-checker/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"loan-checker/internal/common/config"
	"loan-checker/internal/common/database"
	apphttp "loan-checker/internal/common/http"
	"loan-checker/internal/common/llm"
	"loan-checker/internal/common/logger"
	"loan-checker/internal/common/observability"
	"loan-checker/internal/generation"
	"loan-checker/internal/presentation"
	"loan-checker/internal/server"
)

const modelHTTPTimeout = 90 * time.Second

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting loan checker...",
		zap.String("environment", cfg.App.Environment),
		zap.String("model", cfg.Model.Name),
	)

	if err := run(cfg, log, zapLog); err != nil {
		zapLog.Fatal("loan checker stopped with error", zap.Error(err))
	}
	zapLog.Info("Loan checker stopped")
}

func run(cfg *config.Config, log logger.Logger, zapLog *zap.Logger) error {
	gin.SetMode(cfg.Server.Mode)

	spans, err := observability.NewSpanExporter(cfg.Tracing.Exporter, os.Stderr)
	if err != nil {
		return err
	}
	obs, err := observability.New(cfg.App.Name, spans)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := obs.Shutdown(ctx); err != nil {
			zapLog.Warn("observability shutdown failed", zap.Error(err))
		}
	}()

	provider, err := llm.NewOpenAICompatible(llm.OpenAIConfig{
		APIKey:      cfg.Model.APIKey,
		BaseURL:     cfg.Model.BaseURL,
		HTTPClient:  apphttp.NewClient(modelHTTPTimeout),
		Temperature: cfg.Model.Temperature,
		MaxTokens:   cfg.Model.MaxTokens,
	})
	if err != nil {
		return fmt.Errorf("model client: %w", err)
	}

	// --- Redis is only needed by the rate limiter ---
	var redisClient *database.RedisClient
	if cfg.RateLimit.Enabled {
		redisClient, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return fmt.Errorf("redis client: %w", err)
		}
		defer redisClient.Close()

		err = retryWithBackoff(func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			return redisClient.Ping(ctx)
		}, 5, time.Second, zapLog, "Redis connection")
		if err != nil {
			// The limiter fails open, so the service can run without Redis.
			zapLog.Warn("redis unavailable, rate limiting will allow all requests", zap.Error(err))
		} else {
			zapLog.Info("Redis connected successfully")
		}
	}

	generator := generation.NewService(generation.LoadConfig(cfg), provider, log, obs)
	forms := presentation.NewRegistry(config.GetDuration(cfg.Forms.IdleTTL), log)

	srv, err := server.New(cfg, server.Deps{
		Generator: generator,
		Forms:     forms,
		Redis:     redisClient,
		Logger:    log,
	})
	if err != nil {
		return err
	}

	// --- Graceful Shutdown ---
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(ctx)
	})
	g.Go(func() error {
		return forms.Run(ctx, config.GetDuration(cfg.Forms.SweepInterval))
	})

	zapLog.Info("Loan checker ready", zap.Int("port", cfg.Server.Port))
	return g.Wait()
}
