package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ujjwalr27/Ecommerce-Price-Tracker/internal/analysis"
	"github.com/ujjwalr27/Ecommerce-Price-Tracker/internal/config"
	"github.com/ujjwalr27/Ecommerce-Price-Tracker/internal/database"
	"github.com/ujjwalr27/Ecommerce-Price-Tracker/internal/events"
	"github.com/ujjwalr27/Ecommerce-Price-Tracker/internal/models"
	"github.com/ujjwalr27/Ecommerce-Price-Tracker/internal/notify"
	"github.com/ujjwalr27/Ecommerce-Price-Tracker/internal/queue"
	"github.com/ujjwalr27/Ecommerce-Price-Tracker/internal/ratelimit"
	"github.com/ujjwalr27/Ecommerce-Price-Tracker/internal/schedule"
	"github.com/ujjwalr27/Ecommerce-Price-Tracker/internal/scraper"
	"github.com/ujjwalr27/Ecommerce-Price-Tracker/internal/storage"
)

func main() {
	var (
		urlFlag     = flag.String("url", "", "Check a single product URL now")
		checkAll    = flag.Bool("check-all", false, "Check every tracked product")
		sendEmail   = flag.Bool("email", false, "Send the email price report after the run")
		importFile  = flag.String("import", "", "Import product URLs from a watchlist YAML file")
		historyFile = flag.String("file", "", "Track prices in a local JSON file instead of the database")
	)
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)

	if *urlFlag == "" && !*checkAll && *importFile == "" && !*sendEmail {
		fmt.Println("Nothing to do. Use -url, -check-all, -import, or -email.")
		flag.Usage()
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("shutdown signal received")
		cancel()
	}()

	fetcher := scraper.NewFetcher(cfg.Scraper, logger)
	svc := scraper.NewService(fetcher, scraper.NewRegistry(), logger)

	if *historyFile != "" {
		if *importFile != "" {
			fmt.Fprintln(os.Stderr, "-import requires the database, ignoring")
		}
		if *sendEmail {
			fmt.Fprintln(os.Stderr, "-email requires the database, ignoring")
		}
		if err := runFileMode(ctx, cfg, svc, *historyFile, *urlFlag, *checkAll, logger); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	db, err := database.New(ctx, database.Config{
		DSN:      cfg.Database.DSN(),
		MaxConns: cfg.Database.MaxConns,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to database: %v\n", err)
		fmt.Fprintln(os.Stderr, "hint: use -file to track prices in a local JSON file instead")
		os.Exit(1)
	}
	defer db.Close()

	if err := db.CreateTables(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create tables: %v\n", err)
		os.Exit(1)
	}

	if *importFile != "" {
		urls, err := config.LoadWatchlist(*importFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		for _, url := range urls {
			if err := db.AddProduct(ctx, url); err != nil {
				fmt.Fprintf(os.Stderr, "could not add %s: %v\n", url, err)
				continue
			}
			fmt.Printf("Tracking %s\n", url)
		}
	}

	analyzer := analysis.NewAnalyzer(db, cfg.Alerts.DropThreshold, logger)
	publisher := events.NewPublisher(db, cfg.Alerts.Stream, logger)
	dispatcher := notify.NewDispatcher(logger, buildNotifiers(cfg, db, logger)...)

	if *urlFlag != "" {
		rec, err := svc.Scrape(ctx, *urlFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "scrape failed: %v\n", err)
			os.Exit(1)
		}
		printRecord(rec)

		if err := db.SaveRecord(ctx, rec); err != nil {
			fmt.Fprintf(os.Stderr, "failed to save record: %v\n", err)
			os.Exit(1)
		}

		alert, err := analyzer.AnalyzeProduct(ctx, rec.URL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "analysis failed: %v\n", err)
		} else if alert != nil {
			printAlert(alert)
			if err := publisher.PublishPriceDrop(ctx, alert); err != nil {
				logger.Error("failed to publish price drop event", "error", err)
			}
			dispatcher.Dispatch(ctx, []*models.PriceAlert{alert})
		}
	}

	if *checkAll {
		checker := schedule.NewChecker(svc, db, analyzer, publisher, dispatcher, logger,
			schedule.CheckerConfig{
				Workers:      cfg.Scraper.Workers,
				RateLimitMin: cfg.Scraper.RateLimitMin,
				RateLimitMax: cfg.Scraper.RateLimitMax,
			})

		stats, err := checker.CheckAll(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "check run failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Checked %d products (%d failed), %d alerts in %s\n",
			stats.Checked, stats.Failed, stats.Alerts, stats.Duration.Round(time.Millisecond))
	}

	if *sendEmail {
		emailer := notify.NewEmailNotifier(cfg.Email, db, logger)
		if err := emailer.SendReport(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "failed to send report: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Price report sent.")
	}
}

// runFileMode tracks prices in a local JSON file, no database or Redis
// required. Alerts still go out through the configured notifiers.
func runFileMode(ctx context.Context, cfg *config.Config, svc *scraper.Service, path, urlFlag string, checkAll bool, logger *slog.Logger) error {
	store, err := storage.NewFileStore(path)
	if err != nil {
		return fmt.Errorf("failed to open history file: %w", err)
	}

	analyzer := analysis.NewAnalyzer(store, cfg.Alerts.DropThreshold, logger)
	dispatcher := notify.NewDispatcher(logger, buildNotifiers(cfg, nil, logger)...)

	if urlFlag != "" {
		rec, err := svc.Scrape(ctx, urlFlag)
		if err != nil {
			return fmt.Errorf("scrape failed: %w", err)
		}
		printRecord(rec)

		if err := store.SaveRecord(ctx, rec); err != nil {
			return fmt.Errorf("failed to save record: %w", err)
		}

		alert, err := analyzer.AnalyzeProduct(ctx, rec.URL)
		if err != nil {
			return err
		}
		if alert != nil {
			printAlert(alert)
			dispatcher.Dispatch(ctx, []*models.PriceAlert{alert})
		}
	}

	if checkAll {
		urls, err := store.GetTrackedURLs(ctx)
		if err != nil {
			return err
		}
		if len(urls) == 0 {
			fmt.Println("No products in the history file yet. Add one with -url first.")
			return nil
		}

		tasks := queue.NewInMemoryQueue()
		for _, url := range urls {
			tasks.Push(&queue.Task{URL: url})
		}
		tasks.Close()

		limiter := ratelimit.NewAdaptiveRateLimiter(cfg.Scraper.RateLimitMin, cfg.Scraper.RateLimitMax)

		var alerts []*models.PriceAlert
		checked, failed := 0, 0
		for {
			task, err := tasks.Pop(ctx)
			if err != nil {
				break
			}
			if err := limiter.Wait(ctx); err != nil {
				break
			}

			rec, err := svc.Scrape(ctx, task.URL)
			if err != nil {
				limiter.RecordError()
				logger.Warn("scrape failed", "url", task.URL, "error", err)
				failed++
				checked++
				continue
			}
			limiter.RecordSuccess()
			checked++

			if err := store.SaveRecord(ctx, rec); err != nil {
				logger.Error("failed to save record", "url", task.URL, "error", err)
				continue
			}

			alert, err := analyzer.AnalyzeProduct(ctx, task.URL)
			if err != nil {
				logger.Warn("analysis failed", "url", task.URL, "error", err)
				continue
			}
			if alert != nil {
				printAlert(alert)
				alerts = append(alerts, alert)
			}
		}

		if len(alerts) > 0 {
			dispatcher.Dispatch(ctx, alerts)
		}
		fmt.Printf("Checked %d products (%d failed), %d alerts\n", checked, failed, len(alerts))
	}

	return nil
}

// buildNotifiers assembles the enabled notifiers. The email notifier
// needs a database-backed report store, so it is skipped when store is
// nil.
func buildNotifiers(cfg *config.Config, store notify.ReportStore, logger *slog.Logger) []notify.Notifier {
	var notifiers []notify.Notifier
	if cfg.Discord.Enabled {
		notifiers = append(notifiers, notify.NewDiscordNotifier(cfg.Discord.WebhookURL, logger))
	}
	if cfg.Email.Enabled && store != nil {
		notifiers = append(notifiers, notify.NewEmailNotifier(cfg.Email, store, logger))
	}
	return notifiers
}

func printRecord(rec *models.ProductRecord) {
	fmt.Printf("Product: %s\n", rec.Name)
	fmt.Printf("URL: %s\n", rec.URL)
	fmt.Printf("Price: %s %.2f\n", rec.Currency, rec.Price)
	if rec.MainImageURL != "" {
		fmt.Printf("Image: %s\n", rec.MainImageURL)
	}
	fmt.Printf("Checked: %s\n", rec.Timestamp.Format(time.RFC3339))
	fmt.Println("---")
}

func printAlert(alert *models.PriceAlert) {
	fmt.Printf("PRICE DROP: %s\n", alert.ProductName)
	fmt.Printf("  %s %.2f -> %s %.2f (%.1f%% drop)\n",
		alert.Currency, alert.OldPrice, alert.Currency, alert.NewPrice, alert.DropPercentage)
	fmt.Printf("  %s\n", alert.ProductURL)
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
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
