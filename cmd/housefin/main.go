package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"housefin/internal/amqp"
	"housefin/internal/auth"
	"housefin/internal/cli"
	"housefin/internal/config"
	apphttp "housefin/internal/http"
	applog "housefin/internal/log"
	"housefin/internal/middleware/ratelimit"
	"housefin/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg.LogLevel, cfg.IsProduction())

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	res := cli.InitStore(startupCtx, logger, cfg)
	cancelStartup()

	tokens, err := auth.NewTokenManager(cfg.SecretKey, cfg.Algorithm, cfg.TokenTTL())
	if err != nil {
		logger.Error("Invalid token settings", applog.FieldError, err.Error(), applog.FieldErrorType, applog.ErrorTypeConfiguration)
		os.Exit(1)
	}

	// Events are optional: without AMQP_URL contributions are only stored.
	var publisher services.EventPublisher
	var amqpClient *amqp.Client
	if cfg.AMQPEnabled() {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, contribution events disabled", applog.FieldError, err.Error())
		} else {
			amqpClient.SetLogger(logger)
			publisher = amqpClient
			logger.Info("AMQP publisher initialized", "exchange", cfg.AMQPExchange)
		}
	}

	limiter, stopLimiter := newLoginLimiter(logger, cfg)

	srv, err := apphttp.NewServer(apphttp.Options{
		Addr:          ":" + cfg.Port,
		Config:        cfg,
		Store:         res.Store,
		Accounts:      services.NewAccountService(res.Store, tokens, cfg.BcryptCost, logger),
		Households:    services.NewHouseholdService(res.Store, logger),
		Contributions: services.NewContributionService(res.Store, publisher, logger),
		Limiter:       limiter,
		Logger:        logger,
	})
	if err != nil {
		logger.Error("Failed to build HTTP server", applog.FieldError, err.Error())
		os.Exit(1)
	}

	srv.OnShutdown(stopLimiter)
	if amqpClient != nil {
		srv.OnShutdown(func() {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("AMQP close failed", applog.FieldError, err.Error())
			}
		})
	}
	srv.OnShutdown(func() {
		if err := res.Cleanup(); err != nil {
			logger.Warn("Store close failed", applog.FieldError, err.Error())
		}
	})

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err.Error())
		}
	})

	go func() {
		logger.Info("Starting housefin server",
			"port", cfg.Port,
			"env", cfg.Env,
			"backend", res.Store.Driver().String(),
			"amqp", publisher != nil,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", applog.FieldError, err.Error(), "port", cfg.Port)
			os.Exit(1)
		}
	}()

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}

// newLoginLimiter prefers a shared redis counter and falls back to an
// in-process one. A non-positive LOGIN_RATE_LIMIT disables limiting.
func newLoginLimiter(logger *applog.Logger, cfg *config.Config) (*ratelimit.Limiter, func()) {
	if cfg.LoginRateLimit <= 0 {
		logger.Info("Login rate limiting disabled")
		return nil, func() {}
	}
	rlCfg := ratelimit.Config{Limit: cfg.LoginRateLimit, Window: time.Minute, Prefix: "login"}

	if cfg.RedisURL != "" {
		rdb, err := ratelimit.DialRedis(context.Background(), cfg.RedisURL)
		if err == nil {
			counter := ratelimit.NewRedisCounter(rdb)
			logger.Info("Login rate limiting via redis", "limit", cfg.LoginRateLimit)
			return ratelimit.NewLimiter(counter, rlCfg), func() { _ = counter.Close() }
		}
		logger.Warn("Redis unavailable, using in-memory rate limiting", applog.FieldError, err.Error())
	}

	counter := ratelimit.NewMemoryCounter(5 * time.Minute)
	return ratelimit.NewLimiter(counter, rlCfg), counter.Stop
}
