package engine

import (
	"zone-trading-bot/internal/types"
)

// stopManager places stop-loss and take-profit levels. The stop widens with
// trend strength and the target keeps a fixed reward:risk ratio.
type stopManager struct {
	basePoints int
	tpRatio    float64
}

func newStopManager(basePoints int, tpRatio float64) *stopManager {
	return &stopManager{basePoints: basePoints, tpRatio: tpRatio}
}

// distances returns max(base, floor(base*(1+strength))) and the matching
// take-profit distance, both in points.
func (sm *stopManager) distances(strength float64) (slPoints, tpPoints float64) {
	sl := sm.basePoints
	if strength > 0 {
		if widened := int(float64(sm.basePoints) * (1 + strength)); widened > sl {
			sl = widened
		}
	}
	return float64(sl), float64(sl) * sm.tpRatio
}

// levels computes stop-loss and take-profit prices around entry, rounded to point.
func (sm *stopManager) levels(side types.Side, entry, point, strength float64) (sl, tp, slPoints float64) {
	slPoints, tpPoints := sm.distances(strength)
	if side == types.SideBuy {
		sl = entry - slPoints*point
		tp = entry + tpPoints*point
	} else {
		sl = entry + slPoints*point
		tp = entry - tpPoints*point
	}
	return roundToTick(sl, point), roundToTick(tp, point), slPoints
}
