package ta

import (
	"math"

	"github.com/markcheno/go-talib"
)

// EMA returns the recursive exponential moving average of vals, seeded
// with the first value and smoothed with alpha = 2/(span+1). The result has
// the same length as vals.
func EMA(vals []float64, span int) []float64 {
	out := make([]float64, len(vals))
	if len(vals) == 0 || span <= 0 {
		return out
	}
	alpha := 2.0 / (float64(span) + 1.0)
	out[0] = vals[0]
	for i := 1; i < len(vals); i++ {
		out[i] = alpha*vals[i] + (1-alpha)*out[i-1]
	}
	return out
}

// RSI returns the relative strength index series of closes using simple
// rolling means of gains and losses over period. The first delta counts as
// zero. Indices without a full window hold the neutral value 50. A window
// without losses yields 100, or 50 when it also has no gains.
func RSI(closes []float64, period int) []float64 {
	out := make([]float64, len(closes))
	for i := range out {
		out[i] = 50
	}
	if period <= 0 || len(closes) < period {
		return out
	}

	gains := make([]float64, len(closes))
	losses := make([]float64, len(closes))
	for i := 1; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gains[i] = d
		} else {
			losses[i] = -d
		}
	}

	avgGain := talib.Sma(gains, period)
	avgLoss := talib.Sma(losses, period)
	for i := period - 1; i < len(closes); i++ {
		g, l := avgGain[i], avgLoss[i]
		switch {
		case l <= 0 && g <= 0:
			out[i] = 50
		case l <= 0:
			out[i] = 100
		default:
			out[i] = 100 - 100/(1+g/l)
		}
	}
	return out
}

// Last returns the final element of vals or NaN when empty.
func Last(vals []float64) float64 {
	if len(vals) == 0 {
		return math.NaN()
	}
	return vals[len(vals)-1]
}

// ATR returns the latest average true range, NaN when there is not enough data.
func ATR(highs, lows, closes []float64, period int) float64 {
	if len(highs) != len(lows) || len(lows) != len(closes) {
		return math.NaN()
	}
	if period <= 0 || len(closes) < period+1 {
		return math.NaN()
	}
	return Last(talib.Atr(highs, lows, closes, period))
}
