package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"profile_server/internal/auth"
	"profile_server/internal/batch"
	"profile_server/internal/events"
	apphttp "profile_server/internal/http"
	"profile_server/internal/http/router"
	"profile_server/internal/profile"
	"profile_server/platform/config"
	"profile_server/platform/logger"
	"profile_server/platform/observability"
	"profile_server/platform/redisx"

	"github.com/redis/go-redis/v9"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: "profile-server",
		Environment: cfg.Env,
		Version:     version,
	})
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownOTel(flushCtx)
	}()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	var (
		store       batch.Store
		health      apphttp.HealthChecker
		redisClient *redis.Client
	)
	if cfg.IsRedisEnabled() {
		if err := withRetry(ctx, log, "redis connection", 5, 2*time.Second, func() error {
			c, err := redisx.NewClient(ctx, cfg)
			if err != nil {
				return err
			}
			redisClient = c
			return nil
		}); err != nil {
			log.Error("failed to connect to redis", "error", err)
			panic("failed to connect to redis: " + err.Error())
		}
		defer redisClient.Close()
		store = batch.NewRedisStore(redisClient)
		health = redisx.NewHealthAdapter(redisClient)
		log.Info("redis cache store connected")
	} else {
		memStore := batch.NewMemoryStore()
		store = memStore
		health = memStore
		log.Warn("REDIS_URL not configured; using in-process cache store")
	}

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	verifier, err := auth.NewVerifier(cfg, log)
	if err != nil {
		log.Error("failed to initialize oauth verifier", "error", err)
		panic("failed to initialize oauth verifier: " + err.Error())
	}

	routes, err := profile.LoadRoutes(cfg.GetRoutesFile())
	if err != nil {
		log.Error("failed to load profile routes", "error", err, "file", cfg.GetRoutesFile())
		panic("failed to load profile routes: " + err.Error())
	}

	fetcher := batch.NewHTTPFetcher(cfg.GetUpstreamURL(), cfg.GetUpstreamTimeout(), log.Named("batch.fetch"))
	registry := batch.NewRegistry(store, fetcher, log)

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	profileModule := profile.NewModule(registry, cfg, routes, log)
	profileModule.RegisterHandlers(eventBus)

	if redisClient != nil {
		changes := profile.NewChangeSubscriber(redisClient, cfg.GetProfileChangesChannel(), eventBus, log)
		go func() {
			if err := changes.Run(ctx); err != nil {
				log.Error("profile change subscriber stopped", "error", err)
			}
		}()
	}

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   health,
		Verifier: verifier,
		EventBus: eventBus,
		Modules: []apphttp.Module{
			profileModule,
		},
	}

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		// Let cache drops started by the change subscriber finish.
		eventBus.Wait()
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
