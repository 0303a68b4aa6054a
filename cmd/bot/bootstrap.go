package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"zone-trading-bot/internal/broker/brokerobs"
	"zone-trading-bot/internal/broker/paper"
	"zone-trading-bot/internal/broker/zerodha"
	"zone-trading-bot/internal/calendar"
	"zone-trading-bot/internal/engine"
	"zone-trading-bot/internal/engine/engineobs"
	"zone-trading-bot/internal/eod"
	"zone-trading-bot/internal/eod/eodobs"
	"zone-trading-bot/internal/interfaces"
	"zone-trading-bot/internal/logger"
	"zone-trading-bot/internal/store"
	"zone-trading-bot/internal/trace"
	"zone-trading-bot/internal/tradelog"
)

// initializeSystem initializes logger and tracer
func initializeSystem() error {
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := trace.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}

	return nil
}

func shutdownSystem() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := trace.Shutdown(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to flush traces: %v\n", err)
	}
	_ = logger.Shutdown(ctx)
}

// loadConfig reads BOT_CONFIG, falling back to config.yaml
func loadConfig(ctx context.Context) (*store.Config, error) {
	path := os.Getenv("BOT_CONFIG")
	if path == "" {
		path = "config.yaml"
	}

	cfg, err := store.LoadConfig(path)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err, "path", path)
		return nil, err
	}

	logger.Info(ctx, "Config loaded",
		"path", path,
		"mode", cfg.Mode,
		"profile", cfg.Profile,
		"symbols", cfg.Symbols,
		"timeframe", cfg.Timeframe,
	)
	return cfg, nil
}

// initializeJournal points the trade journal at the configured directory
// and compresses files past retention.
func initializeJournal(ctx context.Context, cfg *store.Config) {
	tradelog.Configure(cfg.Journal.Dir)

	if cfg.Journal.RetentionDays > 0 {
		if err := tradelog.CompressOlder(cfg.Journal.RetentionDays); err != nil {
			logger.Warn(ctx, "Failed to compress old logs", "error", err)
		}
	}
	logger.Info(ctx, "Journal ready", "dir", cfg.Journal.Dir, "run_id", tradelog.RunID())
}

// initializeBroker returns the paper broker in DRY_RUN and Kite in LIVE,
// wrapped with observability.
func initializeBroker(ctx context.Context, cfg *store.Config) interfaces.Broker {
	var brk interfaces.Broker

	if cfg.Mode == store.ModeLive {
		brk = zerodha.NewZerodha(zerodha.Params{
			APIKey:      os.Getenv(cfg.Kite.APIKeyEnv),
			AccessToken: os.Getenv(cfg.Kite.AccessTokenEnv),
			Exchange:    cfg.Exchange,
			Product:     cfg.Kite.Product,
			HistoryDays: cfg.Kite.HistoryDays,
			Timeout:     time.Duration(cfg.Kite.TimeoutSeconds) * time.Second,
		})
		logger.Warn(ctx, "Running in LIVE mode - orders go to the exchange", "exchange", cfg.Exchange)
	} else {
		brk = paper.New(cfg.Paper)
		logger.Warn(ctx, "Running in DRY_RUN mode - orders will be simulated", "balance", cfg.Paper.Balance)
	}

	return brokerobs.Wrap(brk)
}

// initializeCalendar returns nil when the news filter is off.
func initializeCalendar(ctx context.Context, cfg *store.Config) interfaces.NewsCalendar {
	if !cfg.Calendar.Enabled {
		logger.Info(ctx, "News calendar disabled")
		return nil
	}

	logger.Info(ctx, "News calendar enabled",
		"url", cfg.Calendar.URL,
		"impact_levels", cfg.Calendar.ImpactLevels,
		"window_before_min", cfg.Calendar.WindowBeforeMinutes,
		"window_after_min", cfg.Calendar.WindowAfterMinutes,
	)
	return calendar.New(cfg.Calendar)
}

// initializeEngine initializes and returns the trading engine with observability
func initializeEngine(cfg *store.Config, brk interfaces.Broker, cal interfaces.NewsCalendar) interfaces.Engine {
	eng := engine.New(cfg, brk, cal)

	return engineobs.Wrap(eng)
}

// initializeEOD returns nil when the summary time is unusable.
func initializeEOD(ctx context.Context, cfg *store.Config) interfaces.EodSummarizer {
	s, err := eod.NewSummarizer(cfg.Journal.SummaryTime)
	if err != nil {
		logger.Warn(ctx, "EOD report disabled", "error", err)
		return nil
	}

	return eodobs.Wrap(s)
}
