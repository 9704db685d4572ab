package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpapi "github.com/i474232898/campus-energy-week/internal/api/http"
	"github.com/i474232898/campus-energy-week/internal/config"
	"github.com/i474232898/campus-energy-week/internal/energy"
	"github.com/i474232898/campus-energy-week/internal/energy/archive"
	"github.com/i474232898/campus-energy-week/internal/metrics"
	"github.com/i474232898/campus-energy-week/internal/store"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(log)

	collector := metrics.NewCollector("campus_energy", nil)
	clock := energy.SystemClock(cfg.ArchiveLocation)

	// Shared HTTP client for archive requests.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}
	client := archive.NewClient(archive.ClientConfig{
		HTTPClient:   httpClient,
		Backoff:      cfg.BackoffConfig(),
		MaxBodyBytes: cfg.FetchMaxBodyBytes,
	})

	var loader energy.DayLoader = archive.NewLoader(
		archive.Locator{BaseURL: cfg.ArchiveBaseURL},
		client,
		archive.WithTimeLocation(cfg.ArchiveLocation),
		archive.WithLoaderLogger(log),
		archive.WithLoaderMetrics(collector),
	)
	if cfg.CacheMaxDays > 0 {
		loader = store.NewDayCache(loader, clock, cfg.CacheMaxDays, cfg.CacheMaxAge, collector)
	}

	// Core service assembling weekly series.
	service := energy.NewService(loader, clock,
		energy.WithLogger(log),
		energy.WithMetrics(collector),
	)

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "campus-energy-week",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          cfg.RequestTimeout + 10*time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "campus-energy-week",
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// API routes.
	httpapi.RegisterRoutes(app, service, httpapi.Options{
		RequestTimeout: cfg.RequestTimeout,
		Metrics:        collector,
	})

	go func() {
		log.Info("listening", "port", cfg.Port, "archive", cfg.ArchiveBaseURL, "timezone", cfg.ArchiveLocation.String())
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error("fiber server stopped", "error", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error("error during shutdown", "error", err)
	}
}
