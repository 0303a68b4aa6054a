package eodobs

import (
	"context"
	"time"

	"zone-trading-bot/internal/interfaces"
	"zone-trading-bot/internal/logger"
	"zone-trading-bot/internal/trace"
	"zone-trading-bot/internal/tradelog"
	"zone-trading-bot/internal/types"
)

type observableEodSummarizer struct {
	summarizer interfaces.EodSummarizer
}

var _ interfaces.EodSummarizer = (*observableEodSummarizer)(nil)

// Wrap adds spans and journal-level logs around an EodSummarizer.
func Wrap(summarizer interfaces.EodSummarizer) interfaces.EodSummarizer {
	return &observableEodSummarizer{
		summarizer: summarizer,
	}
}

func (oes *observableEodSummarizer) SummarizeDay(t time.Time) (types.DaySummary, error) {
	ctx, span := trace.StartSpan(context.Background(), "eod.SummarizeDay")
	defer span.End()

	summary, err := oes.summarizer.SummarizeDay(t)
	logSummary(ctx, summary, err)
	return summary, err
}

func (oes *observableEodSummarizer) SummarizeToday() (types.DaySummary, error) {
	ctx, span := trace.StartSpan(context.Background(), "eod.SummarizeToday")
	defer span.End()

	summary, err := oes.summarizer.SummarizeToday()
	logSummary(ctx, summary, err)
	return summary, err
}

func (oes *observableEodSummarizer) ShouldRunNow() (bool, string) {
	ctx, span := trace.StartSpan(context.Background(), "eod.ShouldRunNow")
	defer span.End()

	shouldRun, csvPath := oes.summarizer.ShouldRunNow()
	if shouldRun {
		logger.DebugSkip(ctx, 1, "EOD report due", "csv_path", csvPath)
	}
	return shouldRun, csvPath
}

// logSummary reports against the caller of the wrapped method.
func logSummary(ctx context.Context, s types.DaySummary, err error) {
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 2, "EOD report failed", err,
			"date", s.Date,
			"journal_dir", tradelog.Dir(),
			"entries_read", s.Entries,
		)
		return
	}

	if s.Path == "" {
		logger.InfoSkip(ctx, 2, "Journal empty, no EOD report",
			"date", s.Date,
			"journal_dir", tradelog.Dir(),
		)
		return
	}

	logger.InfoSkip(ctx, 2, "EOD report written",
		"date", s.Date,
		"csv_path", s.Path,
		"entries", s.Entries,
		"symbols", s.Symbols,
		"profit_points", s.ProfitPoints,
	)
}
