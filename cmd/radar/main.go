package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	"github.com/user/listing-radar/internal/adapter/chromedp_fetcher"
	"github.com/user/listing-radar/internal/adapter/postgres"
	redis_adapter "github.com/user/listing-radar/internal/adapter/redis"
	"github.com/user/listing-radar/internal/adapter/seenfile"
	"github.com/user/listing-radar/internal/adapter/telegram"
	"github.com/user/listing-radar/internal/delivery/http/handler"
	"github.com/user/listing-radar/internal/delivery/http/router"
	"github.com/user/listing-radar/internal/extract"
	"github.com/user/listing-radar/internal/repository"
	"github.com/user/listing-radar/internal/usecase"
	"github.com/user/listing-radar/pkg/config"
	"github.com/user/listing-radar/pkg/logger"
	"github.com/user/listing-radar/pkg/metrics"
)

// renderSettle is the extra wait after page load for client-side rendering
// to fill the DOM in, matching the site's observed hydration time.
const renderSettle = 1200 * time.Millisecond

func main() {
	// --- Configuration ---
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", configPath, "error", err)
		os.Exit(1)
	}

	// --- Logger ---
	logger.Init(os.Stdout, logger.ParseLevel(cfg.LogLevel))
	slog.Info("Logger initialized", "level", cfg.LogLevel)

	// --- Metrics ---
	metrics.Init()

	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Seen store ---
	var seen repository.SeenRepository
	switch cfg.SeenStore {
	case "redis":
		rdb := goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if _, err := rdb.Ping(ctx).Result(); err != nil {
			slog.Error("Unable to connect to Redis", "addr", cfg.RedisAddr, "error", err)
			os.Exit(1)
		}
		seen = redis_adapter.NewSeenRepo(rdb, cfg.SeenTTL)
		slog.Info("Redis seen store ready", "addr", cfg.RedisAddr)
	default:
		seen = seenfile.Load(cfg.SeenFile)
		if n, err := seen.Len(ctx); err == nil {
			slog.Info("File seen store loaded", "path", cfg.SeenFile, "entries", n)
		}
	}

	// --- Listing archive (optional) ---
	var archive repository.ListingArchive
	if cfg.PostgresURL != "" {
		dbpool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			slog.Error("Unable to connect to database", "error", err)
			os.Exit(1)
		}
		defer dbpool.Close()
		archive = postgres.NewListingArchive(dbpool)
		slog.Info("PostgreSQL listing archive enabled")
	}

	// --- Notifier ---
	var notifier repository.NotifierRepository
	if !cfg.Warmup {
		notifier, err = telegram.NewNotifier(cfg.BotToken, cfg.ChatID)
		if err != nil {
			slog.Error("Telegram authentication failed", "error", err)
			os.Exit(1)
		}
		slog.Info("Telegram notifier ready", "chat_id", cfg.ChatID)
	}

	// --- Browser ---
	fetcher, err := chromedp_fetcher.NewChromedpFetcher(cfg.PageLoadTimeout, renderSettle)
	if err != nil {
		slog.Error("Failed to start headless browser", "error", err)
		os.Exit(1)
	}
	defer fetcher.Close()

	// --- Pipeline ---
	extractor, err := extract.NewLinkExtractor(cfg.ListingPattern)
	if err != nil {
		slog.Error("Invalid listing pattern", "pattern", cfg.ListingPattern, "error", err)
		os.Exit(1)
	}

	radar := usecase.NewRadar(
		usecase.RadarConfig{
			Searches:           cfg.Searches,
			MaxAgeHours:        cfg.MaxAgeHours,
			Mode:               cfg.Mode,
			TopNPerSearch:      cfg.TopNPerSearch,
			MaxNotifyPerSearch: cfg.MaxNotifyPerSearch,
			PerLinkDelay:       cfg.PerLinkDelay,
			PerFetchDelay:      cfg.PerFetchDelay,
			Warmup:             cfg.Warmup,
			Force:              cfg.Force,
		},
		fetcher,
		extractor,
		extract.NewRecencyClassifier(),
		seen,
		notifier,
		archive,
	)

	if cfg.PollInterval > 0 {
		watch(ctx, cfg, radar)
	} else {
		if _, err := radar.RunOnce(ctx); err != nil {
			slog.Error("Run failed", "error", err)
		}
	}

	// Flush whatever completed, even after an interrupt: re-notifying
	// already-delivered listings is the one thing we must not do.
	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := seen.Flush(flushCtx); err != nil {
		slog.Error("Failed to flush seen store on exit", "error", err)
	}
}

// watch runs the pipeline on a ticker and serves the admin endpoints until
// the context is cancelled.
func watch(ctx context.Context, cfg *config.Config, radar usecase.Radar) {
	trigger := make(chan struct{}, 1)

	apiHandler := handler.NewHandler(radar, trigger)
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router.New(apiHandler),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	go func() {
		slog.Info("Admin server listening", "port", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Admin server failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()

	for {
		if _, err := radar.RunOnce(ctx); err != nil {
			slog.Error("Run failed", "error", err)
		}
		select {
		case <-ctx.Done():
			slog.Info("Shutting down watch loop")
			return
		case <-ticker.C:
		case <-trigger:
			slog.Info("Run triggered via admin API")
		}
	}
}
