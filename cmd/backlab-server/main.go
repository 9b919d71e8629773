package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"backlab/internal/api"
	"backlab/internal/backtest"
	"backlab/internal/config"
	"backlab/internal/feed"
	"backlab/internal/store"
	"backlab/internal/util"
)

func main() {
	cfgPath := "config/backlab.yaml"
	if p := os.Getenv("BACKLAB_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.LoadOrDefault(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	dataDir := cfg.Storage.DataDir
	if dataDir == "" {
		dataDir = "data"
	}
	dbPath := cfg.Storage.SQLitePath
	if dbPath == "" {
		dbPath = filepath.Join(dataDir, "backlab.db")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		log.Fatalf("creating data directory: %v", err)
	}

	runs, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		log.Fatalf("opening run store: %v", err)
	}
	defer runs.Close()

	var exchange feed.Feed
	if cfg.Alpaca.APIKey != "" {
		cache := store.NewParquetCache(dataDir)
		alpaca := feed.NewAlpacaFeed(
			cfg.Alpaca.APIKey,
			cfg.Alpaca.APISecret,
			cfg.Alpaca.DataURL,
			cfg.Alpaca.RateLimitPerMin,
		)
		exchange = feed.NewCachedFeed(alpaca, cache)
		logger.Info("exchange feed enabled")
	} else {
		logger.Info("no exchange credentials, synthetic and file sources only")
	}

	svc := backtest.NewService(feed.NewSyntheticFeed(), exchange, runs)
	srv := api.NewServer(cfg.Server.Addr(), svc)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := srv.ListenAndServe(ctx); err != nil {
		log.Fatalf("server error: %v", err)
	}
	logger.Info("shutdown complete")
}
