package interfaces

import (
	"time"

	"zone-trading-bot/internal/types"
)

// EodSummarizer turns a day's trade journal into a per-symbol CSV report.
type EodSummarizer interface {
	// SummarizeDay writes the report for t's date. A day without journal
	// entries yields a summary with an empty Path.
	SummarizeDay(t time.Time) (types.DaySummary, error)

	SummarizeToday() (types.DaySummary, error)

	// ShouldRunNow is true once the summary time has passed and today has
	// been neither reported nor summarized as empty.
	ShouldRunNow() (shouldRun bool, csvPath string)
}
