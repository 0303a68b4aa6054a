package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"

	"zone-trading-bot/internal/interfaces"
	"zone-trading-bot/internal/logger"
	"zone-trading-bot/internal/store"
	"zone-trading-bot/internal/types"
)

func main() {
	if err := initializeSystem(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer shutdownSystem()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(ctx)
	if err != nil {
		shutdownSystem()
		os.Exit(1)
	}

	initializeJournal(ctx, cfg)

	brk := initializeBroker(ctx, cfg)
	if err := brk.Start(ctx, cfg.Symbols); err != nil {
		logger.ErrorWithErr(ctx, "Broker failed to start", err)
		shutdownSystem()
		os.Exit(1)
	}
	defer brk.Stop(context.Background())

	eng := initializeEngine(cfg, brk, initializeCalendar(ctx, cfg))
	eod := initializeEOD(ctx, cfg)

	logger.Info(ctx, "Bot started", "poll_seconds", cfg.PollSeconds, "symbols", len(cfg.Symbols))
	run(ctx, cfg, eng, eod)
	logger.Info(ctx, "Shutting down...")

	if eod != nil {
		_, _ = eod.SummarizeToday()
	}
}

// run drives one cycle per poll interval until ctx is cancelled. A cycle that
// could not read market data pauses the loop for RetryPauseSeconds. The EOD
// report is written once per day after the configured summary time.
func run(ctx context.Context, cfg *store.Config, eng interfaces.Engine, eod interfaces.EodSummarizer) {
	poll := time.NewTicker(time.Duration(cfg.PollSeconds) * time.Second)
	defer poll.Stop()

	for {
		if dataMissing := runCycle(ctx, cfg, eng); dataMissing && cfg.RetryPauseSeconds > 0 {
			logger.Warn(ctx, "Market data unavailable, pausing", "seconds", cfg.RetryPauseSeconds)
			if !sleep(ctx, time.Duration(cfg.RetryPauseSeconds)*time.Second) {
				return
			}
		}

		if eod != nil {
			if due, _ := eod.ShouldRunNow(); due {
				_, _ = eod.SummarizeToday()
			}
		}

		select {
		case <-poll.C:
		case <-ctx.Done():
			return
		}
	}
}

// runCycle steps every symbol, at most Parallelism at a time, and reports
// whether any of them lacked market data.
func runCycle(ctx context.Context, cfg *store.Config, eng interfaces.Engine) bool {
	var g errgroup.Group
	g.SetLimit(cfg.Parallelism)

	missing := make(chan struct{}, len(cfg.Symbols))
	for _, sym := range cfg.Symbols {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, time.Duration(cfg.CycleTimeoutSeconds)*time.Second)
			defer cancel()

			res, err := eng.Step(cctx, sym)
			if err != nil {
				if errors.Is(err, types.ErrDataUnavailable) {
					missing <- struct{}{}
				}
				return nil
			}
			printResult(res)
			return nil
		})
	}
	_ = g.Wait()

	return len(missing) > 0
}

func printResult(res *types.CycleResult) {
	b, err := json.Marshal(res)
	if err != nil {
		return
	}
	fmt.Println(string(b))
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
