package engine

import (
	"math"

	"github.com/shopspring/decimal"

	"zone-trading-bot/internal/types"
)

// roundToTick rounds price to the nearest multiple of tick.
func roundToTick(price, tick float64) float64 {
	if tick <= 0 || !finite(price) {
		return price
	}
	t := decimal.NewFromFloat(tick)
	v, _ := decimal.NewFromFloat(price).Div(t).Round(0).Mul(t).Float64()
	return v
}

// floorToStep rounds v down to a multiple of step.
func floorToStep(v, step float64) float64 {
	if step <= 0 || !finite(v) {
		return v
	}
	s := decimal.NewFromFloat(step)
	out, _ := decimal.NewFromFloat(v).Div(s).Floor().Mul(s).Float64()
	return out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// lastBar returns a pointer to the final bar or nil.
func lastBar(bars []types.PriceBar) *types.PriceBar {
	if len(bars) == 0 {
		return nil
	}
	b := bars[len(bars)-1]
	return &b
}

// positionsFor keeps the positions that belong to symbol.
func positionsFor(symbol string, all []types.Position) []types.Position {
	out := make([]types.Position, 0, len(all))
	for _, p := range all {
		if p.Symbol == symbol {
			out = append(out, p)
		}
	}
	return out
}

func countSide(positions []types.Position, side types.Side) int {
	n := 0
	for _, p := range positions {
		if p.Side == side {
			n++
		}
	}
	return n
}

func seriesOf(bars []types.PriceBar) (highs, lows, closes []float64) {
	highs = make([]float64, len(bars))
	lows = make([]float64, len(bars))
	closes = make([]float64, len(bars))
	for i, b := range bars {
		highs[i], lows[i], closes[i] = b.High, b.Low, b.Close
	}
	return highs, lows, closes
}
