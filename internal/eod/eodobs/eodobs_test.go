package eodobs

import (
	"errors"
	"testing"
	"time"

	"zone-trading-bot/internal/types"
)

type stubSummarizer struct {
	summary types.DaySummary
	err     error
	due     bool
}

func (s stubSummarizer) SummarizeDay(time.Time) (types.DaySummary, error) { return s.summary, s.err }
func (s stubSummarizer) SummarizeToday() (types.DaySummary, error) { return s.summary, s.err }
func (s stubSummarizer) ShouldRunNow() (bool, string) { return s.due, "logs/eod/x.csv" }

func TestWrapPassesSummaryThrough(t *testing.T) {
	want := types.DaySummary{Date: "2024-03-08", Path: "logs/eod/2024-03-08.csv", Entries: 4, Symbols: 2, ProfitPoints: 35}
	w := Wrap(stubSummarizer{summary: want, due: true})

	got, err := w.SummarizeDay(time.Now())
	if err != nil || got != want {
		t.Errorf("SummarizeDay: expected %+v, got %+v %v", want, got, err)
	}
	if got, _ := w.SummarizeToday(); got != want {
		t.Errorf("SummarizeToday: expected %+v, got %+v", want, got)
	}
	if due, path := w.ShouldRunNow(); !due || path != "logs/eod/x.csv" {
		t.Errorf("ShouldRunNow: got %v %q", due, path)
	}
}

func TestWrapReturnsErrors(t *testing.T) {
	boom := errors.New("journal unreadable")
	w := Wrap(stubSummarizer{summary: types.DaySummary{Date: "2024-03-08"}, err: boom})

	if _, err := w.SummarizeToday(); !errors.Is(err, boom) {
		t.Errorf("expected wrapped summarizer error, got %v", err)
	}
}
