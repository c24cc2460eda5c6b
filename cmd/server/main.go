package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pulseboard/pulseboard/internal/alert"
	"github.com/pulseboard/pulseboard/internal/config"
	"github.com/pulseboard/pulseboard/internal/cooldown"
	"github.com/pulseboard/pulseboard/internal/dex"
	"github.com/pulseboard/pulseboard/internal/handler"
	"github.com/pulseboard/pulseboard/internal/middleware"
	"github.com/pulseboard/pulseboard/internal/monitor"
	"github.com/pulseboard/pulseboard/internal/pushover"
	"github.com/pulseboard/pulseboard/internal/store"
)

// pushoverSource serves credentials from the database, falling back to the
// deploy-time token when the dashboard has not stored one.
type pushoverSource struct {
	db           *store.Store
	defaultToken string
}

func (s pushoverSource) GetPushoverConfig(ctx context.Context) (*store.PushoverConfig, error) {
	cfg, err := s.db.GetPushoverConfig(ctx)
	if err != nil {
		return nil, err
	}
	if cfg.APIToken == "" {
		cfg.APIToken = s.defaultToken
	}
	return cfg, nil
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	cfg := config.Load()

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	db, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("database connected and migrated")

	// Redis cooldown state (retry up to 30s for ExternalSecret to sync)
	var state *cooldown.Tracker
	for i := 0; i < 6; i++ {
		state, err = cooldown.New(cfg.RedisURL, cfg.RedisPassword)
		if err == nil {
			break
		}
		logger.Warn("redis not ready, retrying...", "attempt", i+1, "error", err)
		time.Sleep(5 * time.Second)
	}
	if err != nil {
		logger.Error("failed to connect to redis after retries", "error", err)
		os.Exit(1)
	}
	defer state.Close()
	logger.Info("redis connected for alert cooldowns")

	// Notifications and alert evaluation
	notifier := pushover.NewClient(pushoverSource{db: db, defaultToken: cfg.PushoverAPIToken}, logger)
	alerts := alert.NewEngine(db, state, notifier, logger)

	// Refresh loop and funding collector
	engine := monitor.NewEngine(db, alerts, logger, cfg.RefreshInterval, cfg.WebhookRetention)
	collector := dex.New(db, logger)

	go engine.Run(ctx)
	go collector.Run(ctx)

	// HTTP routes
	r := chi.NewRouter()
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS(cfg.FrontendOrigin))

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", handler.Health())
	r.Get("/readyz", handler.Ready(db))

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.WebhookRateRPS, cfg.WebhookRateBurst))
		r.Post("/webhook/distill", handler.IngestWebhook(db, engine, logger))
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/monitors", handler.ListMonitors(db))
		r.Post("/monitors", handler.CreateMonitor(db, engine))
		r.Get("/monitors/{id}", handler.GetMonitor(db))
		r.Put("/monitors/{id}", handler.UpdateMonitor(db, engine))
		r.Delete("/monitors/{id}", handler.DeleteMonitor(db))
		r.Get("/monitors/{id}/history", handler.MonitorHistory(db))
		r.Get("/monitors/{id}/chart.png", handler.MonitorChart(db))
		r.Get("/webhook-events", handler.ListWebhookEvents(db))

		r.Get("/alert-rules", handler.ListAlertRules(db, state))
		r.Post("/alert-rules", handler.CreateAlertRule(db))
		r.Put("/alert-rules/{id}", handler.UpdateAlertRule(db))
		r.Delete("/alert-rules/{id}", handler.DeleteAlertRule(db))
		r.Get("/alert-rules/by-monitor/{id}", handler.ListAlertRulesByMonitor(db, state))
		r.Get("/alert-events", handler.ListAlertEvents(db))

		r.Get("/dex/accounts", handler.ListDexAccounts(db))
		r.Post("/dex/accounts", handler.CreateDexAccount(db))
		r.Delete("/dex/accounts/{id}", handler.DeleteDexAccount(db))
		r.Get("/dex/funding-rates", handler.FundingRates(db))

		r.Get("/pushover/config", handler.GetPushoverConfig(db))
		r.Put("/pushover/config", handler.PutPushoverConfig(db))
		r.Post("/pushover/test", handler.TestPushover(notifier))
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down gracefully")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
}
