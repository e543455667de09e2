package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/dharmasatrya/flightsearch-web/internal/config"
	"github.com/dharmasatrya/flightsearch-web/internal/handler"
	"github.com/dharmasatrya/flightsearch-web/internal/logger"
	"github.com/dharmasatrya/flightsearch-web/internal/ratelimit"
	"github.com/dharmasatrya/flightsearch-web/internal/searchclient"
	"github.com/dharmasatrya/flightsearch-web/internal/session"
	"github.com/dharmasatrya/flightsearch-web/internal/view"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logg, err := logger.New(cfg.IsProduction(), cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logg.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := searchclient.New(searchclient.Config{
		BaseURL: cfg.SearchAPIURL,
		Path:    cfg.SearchAPIPath,
		Timeout: cfg.SearchTimeout,
	}, logg.Named("searchclient"))
	if err != nil {
		logg.Fatal("Failed to create search client", zap.Error(err))
	}
	logg.Info("Flight search service configured",
		zap.String("endpoint", client.Endpoint()),
		zap.Duration("timeout", cfg.SearchTimeout))

	limiter := ratelimit.NewClientLimiter(ratelimit.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	})
	sessions := session.NewManager(client, logg.Named("session"))
	go sweep(ctx, sessions, limiter, cfg.SessionMaxIdle)

	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())

	searchHandler := handler.NewSearchHandler(sessions, limiter, view.Options{Currency: cfg.DisplayCurrency}, logg.Named("handler"))
	if err := searchHandler.Register(e); err != nil {
		logg.Fatal("Failed to register handlers", zap.Error(err))
	}

	go func() {
		logg.Info("Starting flight search server", zap.String("port", cfg.Port))
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.SearchTimeout+5*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logg.Error("Server shutdown failed", zap.Error(err))
	}
}

func sweep(ctx context.Context, sessions *session.Manager, limiter *ratelimit.ClientLimiter, maxIdle time.Duration) {
	if maxIdle <= 0 {
		return
	}
	ticker := time.NewTicker(maxIdle / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			sessions.Sweep(maxIdle)
			limiter.Prune(maxIdle)
		case <-ctx.Done():
			return
		}
	}
}
