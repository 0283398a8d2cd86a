package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	httpapi "github.com/i474232898/energy-demand-features/internal/api/http"
	"github.com/i474232898/energy-demand-features/internal/common"
	"github.com/i474232898/energy-demand-features/internal/config"
	"github.com/i474232898/energy-demand-features/internal/energy"
	"github.com/i474232898/energy-demand-features/internal/energy/providers"
	"github.com/i474232898/energy-demand-features/internal/evaluation"
	"github.com/i474232898/energy-demand-features/internal/holiday"
	"github.com/i474232898/energy-demand-features/internal/logging"
	"github.com/i474232898/energy-demand-features/internal/observability"
	"github.com/i474232898/energy-demand-features/internal/scheduler"
	"github.com/i474232898/energy-demand-features/internal/store"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	sugar, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer sugar.Sync() //nolint:errcheck

	req, err := cfg.Request()
	if err != nil {
		sugar.Fatalw("invalid request", "error", err)
	}

	// Shared HTTP client for outbound API calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	metrics := observability.NewMetrics("")

	weatherSrc := providers.NewVisualCrossingProvider(httpClient, cfg.WeatherAPIKey, sugar.Named("weather")).
		WithBaseURL(cfg.WeatherBaseURL).
		WithUnitGroup(cfg.WeatherUnitGroup)
	demandSrc := providers.NewEIAProvider(httpClient, cfg.EIAAPIKey, sugar.Named("demand")).
		WithBaseURL(cfg.EIABaseURL)

	// In-memory store with configured retention.
	memStore := store.NewMemoryStore(cfg.StoreMaxHistory, cfg.StoreMaxAge)

	service := energy.NewService(
		weatherSrc,
		demandSrc,
		holiday.NewFederalCalendar(),
		memStore,
		metrics,
		sugar.Named("pipeline"),
		energy.Options{FailOnWeatherGaps: cfg.FailOnWeatherGaps},
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ds, err := service.BuildAndStore(ctx, req)
	if err != nil {
		if errors.Is(err, energy.ErrNoDemandData) {
			sugar.Fatalw("no demand data; nothing to build", "respondent", req.Respondent, "error", err)
		}
		sugar.Fatalw("dataset build failed", "error", err)
	}

	for _, fw := range ds.FailedWindows {
		sugar.Warnw("weather gap", "window", fw.Range.String(), "error", fw.Error)
	}

	if cfg.OutputPath != "" {
		if err := writeFeatureCSV(cfg.OutputPath, ds.Features); err != nil {
			sugar.Fatalw("writing feature table", "path", cfg.OutputPath, "error", err)
		}
		sugar.Infow("wrote feature table", "path", cfg.OutputPath, "rows", len(ds.Features))
	}

	if cfg.EvalSplitDate != "" {
		logBaseline(sugar, ds.Features, cfg.EvalSplitDate)
	}

	if !cfg.Serve {
		return
	}

	// Scheduler that periodically rebuilds and caches the dataset.
	sched := scheduler.New([]energy.Request{req}, cfg.RefreshInterval, service, sugar.Named("scheduler")).
		DeferFirstRun()
	if err := sched.Start(); err != nil {
		sugar.Fatalw("failed to start scheduler", "error", err)
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "energy-demand-features",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          5 * time.Minute,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "energy-demand-features",
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	httpapi.RegisterRoutes(app, service)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			sugar.Errorw("fiber server stopped", "error", err)
		}
	}()
	sugar.Infow("serving datasets", "port", cfg.Port, "refresh", cfg.RefreshInterval)

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		sugar.Errorw("error during shutdown", "error", err)
	}
}

func writeFeatureCSV(path string, features []energy.FeatureRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return energy.FeatureFrame(features).WriteCSV(f)
}

// logBaseline reports the RMSE of a day-ago persistence forecast on the rows
// at or after the split date.
func logBaseline(sugar *zap.SugaredLogger, features []energy.FeatureRecord, split string) {
	at, err := common.ParseDate(split)
	if err != nil {
		sugar.Warnw("invalid evaluation split date", "error", err)
		return
	}

	train, test := evaluation.SplitAt(features, at)
	pred, err := evaluation.LagBaseline(test, 24)
	if err != nil {
		sugar.Warnw("baseline unavailable", "error", err)
		return
	}
	rmse, err := evaluation.RMSE(evaluation.Targets(test), pred)
	if err != nil {
		sugar.Warnw("baseline RMSE unavailable", "train", len(train), "test", len(test), "error", err)
		return
	}
	sugar.Infow("24h persistence baseline", "train", len(train), "test", len(test), "rmseMW", rmse)
}
