// Package eod writes an end-of-day report of the orders and closes
// recorded in the trade journal.
package eod

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/gocarina/gocsv"

	"zone-trading-bot/internal/interfaces"
	"zone-trading-bot/internal/tradelog"
	"zone-trading-bot/internal/types"
)

// Row is one line of the report. The TOTAL row sums every symbol.
type Row struct {
	Symbol       string  `csv:"symbol"`
	Opens        int     `csv:"opens"`
	Closes       int     `csv:"closes"`
	BuyVolume    float64 `csv:"buy_volume"`
	BuyAvg       float64 `csv:"buy_avg"`
	SellVolume   float64 `csv:"sell_volume"`
	SellAvg      float64 `csv:"sell_avg"`
	ProfitPoints float64 `csv:"profit_points"`
}

type notional struct {
	buy, sell float64
}

type eodSummarizer struct {
	hour, minute int
	now          func() time.Time

	mu      sync.Mutex
	lastDay string
}

var _ interfaces.EodSummarizer = (*eodSummarizer)(nil)

// NewSummarizer reports after summaryTime ("15:04") in the journal's zone.
func NewSummarizer(summaryTime string) (interfaces.EodSummarizer, error) {
	at, err := time.Parse("15:04", summaryTime)
	if err != nil {
		return nil, fmt.Errorf("invalid summary time %q: %w", summaryTime, err)
	}
	return &eodSummarizer{hour: at.Hour(), minute: at.Minute(), now: tradelog.Now}, nil
}

func eodCSVPath(t time.Time) string {
	return filepath.Join(tradelog.Dir(), "eod", t.Format("2006-01-02")+".csv")
}

func (s *eodSummarizer) SummarizeDay(t time.Time) (types.DaySummary, error) {
	summary := types.DaySummary{Date: t.Format("2006-01-02")}

	entries, err := tradelog.ReadTrades(t)
	if err != nil {
		return summary, err
	}
	summary.Entries = len(entries)

	rows := aggregate(entries)
	if len(rows) == 0 {
		s.markDone(summary.Date)
		return summary, nil
	}

	outPath := eodCSVPath(t)
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return summary, err
	}
	out, err := os.Create(outPath)
	if err != nil {
		return summary, err
	}
	defer out.Close()

	if err := gocsv.MarshalFile(&rows, out); err != nil {
		return summary, err
	}

	total := rows[len(rows)-1]
	summary.Path = outPath
	summary.Symbols = len(rows) - 1
	summary.ProfitPoints = total.ProfitPoints
	s.markDone(summary.Date)
	return summary, nil
}

func (s *eodSummarizer) SummarizeToday() (types.DaySummary, error) {
	return s.SummarizeDay(s.now())
}

func (s *eodSummarizer) ShouldRunNow() (bool, string) {
	now := s.now()
	cutoff := time.Date(now.Year(), now.Month(), now.Day(), s.hour, s.minute, 0, 0, now.Location())
	outPath := eodCSVPath(now)
	if !now.After(cutoff) || s.done(now.Format("2006-01-02")) {
		return false, outPath
	}
	if _, err := os.Stat(outPath); errors.Is(err, os.ErrNotExist) {
		return true, outPath
	}
	return false, outPath
}

// markDone remembers a summarized day so an empty journal is read once.
func (s *eodSummarizer) markDone(day string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastDay = day
}

func (s *eodSummarizer) done(day string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastDay == day
}

// aggregate groups entries by symbol, sorted, followed by a TOTAL row.
// Volume and averages count OPEN entries; profit sums CLOSE entries.
func aggregate(entries []tradelog.Entry) []*Row {
	bySymbol := map[string]*Row{}
	values := map[string]*notional{}
	for _, e := range entries {
		r := bySymbol[e.Symbol]
		if r == nil {
			r = &Row{Symbol: e.Symbol}
			bySymbol[e.Symbol] = r
			values[e.Symbol] = &notional{}
		}
		v := values[e.Symbol]
		switch e.Action {
		case "OPEN":
			r.Opens++
			if e.Side == "BUY" {
				r.BuyVolume += e.Volume
				v.buy += e.Volume * e.Price
			} else {
				r.SellVolume += e.Volume
				v.sell += e.Volume * e.Price
			}
		case "CLOSE":
			r.Closes++
			r.ProfitPoints += e.Profit
		}
	}
	if len(bySymbol) == 0 {
		return nil
	}

	keys := make([]string, 0, len(bySymbol))
	for k := range bySymbol {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	total := &Row{Symbol: "TOTAL"}
	rows := make([]*Row, 0, len(keys)+1)
	for _, k := range keys {
		r, v := bySymbol[k], values[k]
		if r.BuyVolume > 0 {
			r.BuyAvg = v.buy / r.BuyVolume
		}
		if r.SellVolume > 0 {
			r.SellAvg = v.sell / r.SellVolume
		}
		total.Opens += r.Opens
		total.Closes += r.Closes
		total.BuyVolume += r.BuyVolume
		total.SellVolume += r.SellVolume
		total.ProfitPoints += r.ProfitPoints
		rows = append(rows, r)
	}
	return append(rows, total)
}
