// Package trend labels the prevailing direction of a bar series from a fast
// and slow EMA crossover and grades it by the percentage move over the window.
package trend

import (
	"zone-trading-bot/internal/ta"
	"zone-trading-bot/internal/types"
)

// Config holds the EMA spans, RSI window and thresholds, and the lookback
// over which strength is measured.
type Config struct {
	FastSpan   int
	SlowSpan   int
	RSIPeriod  int
	Lookback   int
	Overbought float64
	Oversold   float64
	Dampening  float64
}

// DefaultConfig is 20/50 EMAs, RSI 14 at 70/30 and a 34 bar lookback.
func DefaultConfig() Config {
	return Config{
		FastSpan:   20,
		SlowSpan:   50,
		RSIPeriod:  14,
		Lookback:   34,
		Overbought: 70,
		Oversold:   30,
		Dampening:  0.5,
	}
}

// Classifier labels bar series. It is stateless and safe for concurrent use.
type Classifier struct {
	cfg Config
}

// NewClassifier returns a Classifier for cfg.
func NewClassifier(cfg Config) *Classifier {
	return &Classifier{cfg: cfg}
}

// MinBars is the number of bars below which the classifier reports a
// ranging market.
func (c *Classifier) MinBars() int {
	return c.cfg.RSIPeriod + 1
}

// Classify never fails; short or degenerate input is ranging with zero strength.
func (c *Classifier) Classify(bars []types.PriceBar) types.TrendState {
	ranging := types.TrendState{Label: types.TrendRanging, RSI: 50}

	if c.cfg.Lookback > 0 && len(bars) > c.cfg.Lookback {
		bars = bars[len(bars)-c.cfg.Lookback:]
	}
	if len(bars) < c.MinBars() {
		return ranging
	}

	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	first, last := closes[0], closes[len(closes)-1]
	if first <= 0 {
		return ranging
	}

	st := types.TrendState{
		FastEMA:   ta.Last(ta.EMA(closes, c.cfg.FastSpan)),
		SlowEMA:   ta.Last(ta.EMA(closes, c.cfg.SlowSpan)),
		RSI:       ta.Last(ta.RSI(closes, c.cfg.RSIPeriod)),
		ChangePct: (last - first) / first * 100,
	}

	switch {
	case st.FastEMA > st.SlowEMA:
		st.Label = types.TrendBullish
		if st.ChangePct > 0 {
			st.Strength = st.ChangePct
		}
		if st.RSI > c.cfg.Overbought {
			st.Strength *= c.cfg.Dampening
		}
	case st.FastEMA < st.SlowEMA:
		st.Label = types.TrendBearish
		if st.ChangePct < 0 {
			st.Strength = -st.ChangePct
		}
		if st.RSI < c.cfg.Oversold {
			st.Strength *= c.cfg.Dampening
		}
	default:
		st.Label = types.TrendRanging
	}
	return st
}
