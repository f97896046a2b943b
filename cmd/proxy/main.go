package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"deepseek-proxy/internal/config"
	"deepseek-proxy/internal/deepseek"
	"deepseek-proxy/internal/handlers"
	"deepseek-proxy/internal/httpserver"
	"deepseek-proxy/internal/metrics"
	"deepseek-proxy/internal/middleware"
	"deepseek-proxy/internal/usage"
	"deepseek-proxy/pkg/logging"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("proxy exited with error: %v", err)
	}
}

func run() error {
	// ----- Logger -----
	logger := logging.DefaultLogger()
	defer logger.Sync()

	// ----- Metrics -----
	metrics.Register()

	// ----- Config -----
	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", zap.Error(err))
		return err
	}

	logger.Info("loaded config",
		zap.String("port", cfg.Port),
		zap.String("service", cfg.ServiceName),
		zap.String("deepseek_base_url", cfg.DeepSeekBaseURL),
		zap.Bool("deepseek_api_key_set", cfg.DeepSeekAPIKey != ""),
		zap.Duration("upstream_timeout", cfg.UpstreamTimeout),
		zap.Bool("enforce_path", cfg.EnforcePath),
		zap.String("usage_backend", cfg.UsageBackend),
	)
	if cfg.DeepSeekAPIKey == "" {
		logger.Warn("DEEPSEEK_API_KEY is not set; proxy requests will fail with 500")
	}

	// ----- Redis client (only if needed) -----
	var redisClient *redis.Client
	if cfg.UsageBackend == usage.BackendRedis {
		redisClient = redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
		})
		defer redisClient.Close()

		// Fail fast if Redis is misconfigured
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Error("redis connection failed", zap.Error(err))
			return err
		}
		logger.Info("redis connection established",
			zap.String("addr", cfg.RedisAddr),
		)
	}

	// ----- Usage ledger -----
	ledger, err := usage.NewLedger(usage.Config{
		Backend:   cfg.UsageBackend,
		Retention: cfg.UsageRetention,
		Prefix:    "deepseek-proxy",
	}, redisClient)
	if err != nil {
		return err
	}
	ledger = usage.NewLoggingLedger(ledger)
	if closer, ok := ledger.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	// ----- DeepSeek client -----
	client, err := deepseek.NewClient(deepseek.Config{
		BaseURL:         cfg.DeepSeekBaseURL,
		APIKey:          cfg.DeepSeekAPIKey,
		UpstreamTimeout: cfg.UpstreamTimeout,
	}, logger)
	if err != nil {
		return err
	}
	if closer, ok := client.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	// ----- Handlers -----
	cors := middleware.DefaultCORSOptions()
	cors.MaxAge = cfg.CORSMaxAge

	h := httpserver.Handlers{
		Proxy: handlers.NewProxyHandler(client, ledger, handlers.ProxyConfig{
			EnforcePath: cfg.EnforcePath,
			CORS:        cors,
		}),
		Health: handlers.NewHealthHandler(cfg.ServiceName, httpserver.Endpoints()),
		Usage:  handlers.NewUsageHandler(ledger),
	}

	// ----- Router + middleware -----
	r := chi.NewRouter()
	httpserver.SetupRouter(r, logger, h, httpserver.Options{
		MaxBodyBytes:    cfg.MaxBodyBytes,
		RequestDeadline: cfg.UpstreamTimeout + 5*time.Second,
	})

	// ----- HTTP server -----
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.UpstreamTimeout + 10*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("starting proxy", zap.String("addr", srv.Addr))

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// ----- Graceful shutdown -----
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		logger.Error("server error", zap.Error(err))
		return err
	case <-stop:
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
		return err
	}

	logger.Info("server shutdown complete")
	return nil
}
