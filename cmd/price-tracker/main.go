package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/ujjwalr27/Ecommerce-Price-Tracker/internal/analysis"
	"github.com/ujjwalr27/Ecommerce-Price-Tracker/internal/api"
	"github.com/ujjwalr27/Ecommerce-Price-Tracker/internal/config"
	"github.com/ujjwalr27/Ecommerce-Price-Tracker/internal/database"
	"github.com/ujjwalr27/Ecommerce-Price-Tracker/internal/events"
	"github.com/ujjwalr27/Ecommerce-Price-Tracker/internal/notify"
	"github.com/ujjwalr27/Ecommerce-Price-Tracker/internal/schedule"
	"github.com/ujjwalr27/Ecommerce-Price-Tracker/internal/scraper"
)

func main() {
	// .env is optional; deployments usually set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database connection and schema.
	db, err := database.New(ctx, database.Config{
		DSN:      cfg.Database.DSN(),
		MaxConns: cfg.Database.MaxConns,
	})
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.CreateTables(ctx); err != nil {
		logger.Error("failed to create tables", "error", err)
		os.Exit(1)
	}

	// Redis carries the published alert events.
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}

	// Relay drains the outbox into the alert stream.
	relay := database.NewRelay(db, redisClient, logger, database.RelayConfig{
		PollInterval: cfg.Alerts.RelayInterval,
		BatchSize:    cfg.Alerts.RelayBatchSize,
		MaxRetries:   cfg.Alerts.MaxRetries,
	})
	go func() {
		if err := relay.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("relay stopped with error", "error", err)
		}
	}()

	// Scrape pipeline and its downstream consumers.
	fetcher := scraper.NewFetcher(cfg.Scraper, logger)
	scrapeService := scraper.NewService(fetcher, scraper.NewRegistry(), logger)

	analyzer := analysis.NewAnalyzer(db, cfg.Alerts.DropThreshold, logger)
	publisher := events.NewPublisher(db, cfg.Alerts.Stream, logger)

	var notifiers []notify.Notifier
	if cfg.Discord.Enabled {
		notifiers = append(notifiers, notify.NewDiscordNotifier(cfg.Discord.WebhookURL, logger))
	}
	if cfg.Email.Enabled {
		notifiers = append(notifiers, notify.NewEmailNotifier(cfg.Email, db, logger))
	}
	dispatcher := notify.NewDispatcher(logger, notifiers...)

	checker := schedule.NewChecker(scrapeService, db, analyzer, publisher, dispatcher, logger,
		schedule.CheckerConfig{
			Workers:      cfg.Scraper.Workers,
			RateLimitMin: cfg.Scraper.RateLimitMin,
			RateLimitMax: cfg.Scraper.RateLimitMax,
		})

	if cfg.Schedule.WatchlistFile != "" {
		seedWatchlist(ctx, db, cfg.Schedule.WatchlistFile, logger)
	}

	var scheduler *schedule.Scheduler
	if cfg.Schedule.Enabled {
		scheduler = schedule.NewScheduler(checker, cfg.Schedule.CheckInterval, logger)
		if err := scheduler.Start(ctx); err != nil {
			logger.Error("failed to start scheduler", "error", err)
			os.Exit(1)
		}
	}

	handlers := api.NewHandlers(scrapeService, db, checker, db, redisClient, relay, logger)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://localhost:*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", handlers.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Post("/", handlers.TrackProduct)
			r.Get("/", handlers.ListProducts)
			r.Delete("/", handlers.UntrackProduct)
			r.Get("/history", handlers.GetProductHistory)
			r.Post("/pause", handlers.PauseProduct)
			r.Post("/resume", handlers.ResumeProduct)
		})
		r.Post("/check", handlers.RunCheck)
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down...")
		cancel()
		if scheduler != nil {
			scheduler.Stop()
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}
	}()

	logger.Info("server starting", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(cfg.Format) == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// seedWatchlist imports product URLs from a YAML file. Existing entries
// are left untouched, so the file can stay in place across restarts.
func seedWatchlist(ctx context.Context, db *database.DB, path string, logger *slog.Logger) {
	urls, err := config.LoadWatchlist(path)
	if err != nil {
		logger.Warn("could not load watchlist", "path", path, "error", err)
		return
	}

	added := 0
	for _, url := range urls {
		if err := db.AddProduct(ctx, url); err != nil {
			logger.Warn("could not add watchlist product", "url", url, "error", err)
			continue
		}
		added++
	}

	logger.Info("watchlist imported", "path", path, "products", added)
}
