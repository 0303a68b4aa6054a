package paper

import (
	"fmt"
	"hash/fnv"
	"math"
	"os"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"zone-trading-bot/internal/types"
)

// csvBar is one row of a replay file: time,open,high,low,close,volume.
type csvBar struct {
	Time   string  `csv:"time"`
	Open   float64 `csv:"open"`
	High   float64 `csv:"high"`
	Low    float64 `csv:"low"`
	Close  float64 `csv:"close"`
	Volume float64 `csv:"volume"`
}

var timeLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02 15:04", "2006-01-02"}

func loadBars(path string) ([]types.PriceBar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var rows []csvBar
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, err
	}

	bars := make([]types.PriceBar, 0, len(rows))
	for i, r := range rows {
		t, err := parseTime(r.Time)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		if r.High < r.Low {
			return nil, fmt.Errorf("row %d: high %v below low %v", i+1, r.High, r.Low)
		}
		bars = append(bars, types.PriceBar{Time: t, Open: r.Open, High: r.High, Low: r.Low, Close: r.Close, Volume: r.Volume})
	}
	return bars, nil
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised time %q", s)
}

// syntheticBar is bar i of a slow swing with a faster ripple on top, phase
// shifted per symbol. The ripple produces regular swing highs and lows.
func (b *Broker) syntheticBar(symbol string, i int, tf time.Duration) types.PriceBar {
	phase := symbolPhase(symbol)
	closeAt := func(k int) float64 {
		x := float64(k)
		swing := math.Sin(2*math.Pi*x/96 + phase)
		ripple := 0.35 * math.Sin(2*math.Pi*x/11+phase*3)
		return b.cfg.BasePrice * (1 + b.cfg.Amplitude*(swing+ripple))
	}

	c, o := closeAt(i), closeAt(i-1)
	wick := b.cfg.BasePrice * b.cfg.Amplitude * 0.08
	return types.PriceBar{
		Time:   epoch.Add(time.Duration(i) * tf),
		Open:   o,
		High:   math.Max(o, c) + wick,
		Low:    math.Min(o, c) - wick,
		Close:  c,
		Volume: 100 + float64(i%17)*10,
	}
}

func symbolPhase(symbol string) float64 {
	h := fnv.New32a()
	h.Write([]byte(symbol))
	return float64(h.Sum32()%360) * math.Pi / 180
}
