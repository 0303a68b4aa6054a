package engine

import (
	"zone-trading-bot/internal/types"
)

// Action is the verdict on an open position.
type Action string

const (
	ActionHold  Action = "HOLD"
	ActionClose Action = "CLOSE"
)

// positionManager closes any position that is in profit. It has no
// trailing stop or partial close.
type positionManager struct{}

func newPositionManager() *positionManager {
	return &positionManager{}
}

// evaluate estimates the open profit in points times volume, marking longs
// at the bid and shorts at the ask.
func (pm *positionManager) evaluate(pos types.Position, tick types.Tick, meta types.SymbolMeta) (Action, float64) {
	if !(meta.Point > 0) {
		return ActionHold, 0
	}

	var profit float64
	if pos.Side == types.SideBuy {
		profit = (tick.Bid - pos.OpenPrice) * pos.Volume / meta.Point
	} else {
		profit = (pos.OpenPrice - tick.Ask) * pos.Volume / meta.Point
	}

	if profit > 0 {
		return ActionClose, profit
	}
	return ActionHold, profit
}

// exitPrice is the side of the book a position closes against.
func exitPrice(pos types.Position, tick types.Tick) float64 {
	if pos.Side == types.SideBuy {
		return tick.Bid
	}
	return tick.Ask
}
