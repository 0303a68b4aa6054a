package engine

import (
	"math"

	"zone-trading-bot/internal/types"
)

// riskManager turns a risk budget and stop distance into an order volume.
type riskManager struct {
	minLot  float64
	lotStep float64
}

func newRiskManager(minLot, lotStep float64) *riskManager {
	return &riskManager{minLot: minLot, lotStep: lotStep}
}

// limits returns the lot step and minimum lot for an instrument, preferring
// the broker's metadata over the configured defaults.
func (rm *riskManager) limits(meta types.SymbolMeta) (step, min float64) {
	step, min = rm.lotStep, rm.minLot
	if meta.LotStep > 0 {
		step = meta.LotStep
	}
	if meta.MinLot > 0 {
		min = meta.MinLot
	}
	return step, min
}

// size returns balance*riskPercent/100 divided by the loss of one lot at
// the stop, floored to the lot step and never below the minimum lot.
// Unusable inputs fall back to the minimum lot.
//
// Parameters:
//   - balance: account balance in account currency
//   - riskPercent: share of the balance put at risk
//   - slPoints: stop-loss distance in points
//   - pointValuePerLot: value of a one point move for one lot
func (rm *riskManager) size(balance, riskPercent, slPoints, pointValuePerLot float64, meta types.SymbolMeta) float64 {
	step, minLot := rm.limits(meta)

	if !(balance > 0) || !(pointValuePerLot > 0) || !(slPoints > 0) || !(riskPercent >= 0) ||
		!finite(balance) || !finite(pointValuePerLot) {
		return minLot
	}

	riskAmount := balance * riskPercent / 100
	lossPerLot := slPoints * pointValuePerLot
	volume := math.Max(riskAmount/lossPerLot, minLot)
	if !finite(volume) {
		return minLot
	}

	volume = floorToStep(volume, step)
	if volume < minLot {
		volume = minLot
	}
	return volume
}
