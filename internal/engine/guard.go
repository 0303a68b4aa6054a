package engine

import (
	"context"
	"fmt"
	"math"

	"zone-trading-bot/internal/interfaces"
	"zone-trading-bot/internal/logger"
	"zone-trading-bot/internal/store"
	"zone-trading-bot/internal/types"
	"zone-trading-bot/internal/zones"
)

// GuardInput is everything one guard evaluation looks at.
type GuardInput struct {
	Side      types.Side
	Symbol    string
	Supply    []types.Zone
	Demand    []types.Zone
	Trend     types.TrendState
	Positions []types.Position
	Account   types.AccountSnapshot
	Tick      types.Tick
	Meta      types.SymbolMeta
	LastBar   *types.PriceBar
}

// Guard runs the ordered entry gates for one side of one symbol. It holds
// no state between calls, so identical inputs give identical decisions as
// long as the margin calculator is deterministic.
type Guard struct {
	cfg    store.GuardConfig
	margin interfaces.MarginCalculator
	risk   *riskManager
	stops  *stopManager
}

func NewGuard(cfg store.GuardConfig, margin interfaces.MarginCalculator) *Guard {
	return &Guard{
		cfg:    cfg,
		margin: margin,
		risk:   newRiskManager(cfg.MinLot, cfg.LotStep),
		stops:  newStopManager(cfg.SLBasePoints, cfg.TPRatio),
	}
}

// Decide evaluates the gates in order and returns the first rejection, or a
// fully populated order request when every gate passes. Positions on other
// symbols are ignored.
func (g *Guard) Decide(ctx context.Context, in GuardInput) types.Decision {
	side := in.Side
	point := in.Meta.Point
	positions := positionsFor(in.Symbol, in.Positions)
	reject := func(reason string, kv ...any) types.Decision {
		logger.Debug(ctx, "Gate rejected", append([]any{"symbol", in.Symbol, "side", side, "reason", reason}, kv...)...)
		return types.Reject(side, reason)
	}

	if !(point > 0) {
		return reject(types.ReasonInvalidMeta, "point", point)
	}

	// 1. volatility
	if in.LastBar == nil {
		return reject(types.ReasonVolatilityUnknown)
	}
	if size := g.barSize(*in.LastBar) / point; size > g.cfg.VolatilityThresholdPoints {
		return reject(types.ReasonHighVolatility, "bar_points", size, "threshold", g.cfg.VolatilityThresholdPoints)
	}

	// 2. position cap
	if n := countSide(positions, side); n >= g.cfg.MaxPositions {
		return reject(types.ReasonMaxPositions, "open", n, "max", g.cfg.MaxPositions)
	}

	// 3. hedge
	if !g.cfg.AllowHedging {
		if n := countSide(positions, side.Opposite()); n > 0 {
			return reject(types.ReasonHedgePrevented, "opposite_open", n)
		}
	}

	// 4. zone proximity
	if g.cfg.MinZoneDistancePoints > 0 {
		if dist, ok := zones.Spread(in.Supply, in.Demand); ok && dist/point < g.cfg.MinZoneDistancePoints {
			return reject(types.ReasonZonesTooClose, "distance_points", dist/point, "min", g.cfg.MinZoneDistancePoints)
		}
	}

	// 5. trend opposition
	if in.Trend.Opposes(side) && in.Trend.Strength > g.cfg.TrendStrengthThreshold {
		return reject(types.ReasonCounterTrend, "trend", in.Trend.Label, "strength", in.Trend.Strength)
	}

	// 6. entry condition
	entry := in.Tick.Ask
	if side == types.SideSell {
		entry = in.Tick.Bid
	}
	if !(entry > 0) {
		return reject(types.ReasonNoPrice, "bid", in.Tick.Bid, "ask", in.Tick.Ask)
	}
	trigger, ok := g.entrySignal(in, entry)
	if !ok {
		return reject(types.ReasonNoEntrySignal, "price", entry, "trend", in.Trend.Label, "strength", in.Trend.Strength)
	}

	// 7. duplicate price
	for _, p := range positions {
		if p.Side == side && p.OpenPrice == entry {
			return reject(types.ReasonDuplicatePrice, "price", entry, "position", p.ID)
		}
	}

	// 8. sizing
	sl, tp, slPoints := g.stops.levels(side, entry, point, in.Trend.Strength)
	volume := g.risk.size(in.Account.Balance, g.cfg.RiskPercent, slPoints, in.Meta.TickValue, in.Meta)

	// 9. margin
	if g.margin == nil {
		return reject(types.ReasonMarginCalcFailed, "error", "no margin calculator")
	}
	required, err := g.margin.RequiredMargin(ctx, side, in.Symbol, volume, entry)
	if err != nil {
		return reject(types.ReasonMarginCalcFailed, "error", err)
	}
	if math.IsNaN(required) || in.Account.FreeMargin < required {
		logger.Risk(ctx, in.Symbol, "INSUFFICIENT_MARGIN", "side", side, "required", required, "free_margin", in.Account.FreeMargin, "volume", volume)
		return types.Reject(side, types.ReasonInsufficientMargin)
	}

	return types.Propose(types.OrderRequest{
		Symbol:     in.Symbol,
		Side:       side,
		Volume:     volume,
		Price:      entry,
		StopLoss:   sl,
		TakeProfit: tp,
		Comment:    fmt.Sprintf("%s order - %s market", side.Title(), in.Trend.Label),
		Deviation:  g.cfg.Deviation,
		Magic:      g.cfg.Magic,
	}).WithReason(trigger)
}

func (g *Guard) barSize(b types.PriceBar) float64 {
	if g.cfg.VolatilityMeasure == "body" {
		return b.Body()
	}
	return b.Range()
}

// entrySignal reports which entry rule fired. A strongly aligned trend
// trades without a zone; otherwise price must cross the latest opposite
// zone, with the crossing band widened when the trend agrees with side.
func (g *Guard) entrySignal(in GuardInput, price float64) (string, bool) {
	if in.Trend.Reinforces(in.Side) && in.Trend.Strength > g.cfg.TrendStrengthThreshold {
		return "strong trend", true
	}

	tol := 0.0
	if in.Trend.Reinforces(in.Side) {
		tol = g.cfg.EntryTolerancePercent / 100
	}

	if in.Side == types.SideSell {
		z, ok := zones.Latest(in.Supply)
		if ok && price > z.Price*(1-tol) {
			return "supply zone crossed", true
		}
		return "", false
	}

	z, ok := zones.Latest(in.Demand)
	if ok && price < z.Price*(1+tol) {
		return "demand zone crossed", true
	}
	return "", false
}
