package engine

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"zone-trading-bot/internal/interfaces"
	"zone-trading-bot/internal/logger"
	"zone-trading-bot/internal/store"
	"zone-trading-bot/internal/ta"
	"zone-trading-bot/internal/trend"
	"zone-trading-bot/internal/types"
	"zone-trading-bot/internal/zones"
)

// cycleSides is the order in which entries are evaluated each cycle.
var cycleSides = []types.Side{types.SideSell, types.SideBuy}

type Engine struct {
	cfg   *store.Config
	brk   interfaces.Broker
	cal   interfaces.NewsCalendar
	guard *Guard
	trend *trend.Classifier
	exec  *orderExecutor
	pm    *positionManager
	now   func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newEngine(cfg *store.Config, brk interfaces.Broker, cal interfaces.NewsCalendar) *Engine {
	p := cfg.ActiveProfile()
	return &Engine{
		cfg:   cfg,
		brk:   brk,
		cal:   cal,
		guard: NewGuard(p.Guard, brk),
		trend: trend.NewClassifier(trendConfig(p.Trend)),
		exec:  newOrderExecutor(brk),
		pm:    newPositionManager(),
		now:   time.Now,
		locks: make(map[string]*sync.Mutex),
	}
}

func trendConfig(t store.TrendConfig) trend.Config {
	return trend.Config{
		FastSpan:   t.FastSpan,
		SlowSpan:   t.SlowSpan,
		RSIPeriod:  t.RSIPeriod,
		Lookback:   t.Lookback,
		Overbought: t.Overbought,
		Oversold:   t.Oversold,
		Dampening:  t.Dampening,
	}
}

// lock serialises read-decide-submit for one symbol.
func (e *Engine) lock(symbol string) func() {
	e.mu.Lock()
	l, ok := e.locks[symbol]
	if !ok {
		l = &sync.Mutex{}
		e.locks[symbol] = l
	}
	e.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Step reads a fresh snapshot for symbol and runs one cycle on it. Any
// collaborator failure aborts the cycle before a decision is made.
func (e *Engine) Step(ctx context.Context, symbol string) (*types.CycleResult, error) {
	unlock := e.lock(symbol)
	defer unlock()

	bars, err := e.brk.FetchBars(ctx, symbol, e.cfg.Timeframe, e.cfg.Bars)
	if err != nil {
		return nil, fmt.Errorf("fetch bars: %w", err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: no bars for %s", types.ErrDataUnavailable, symbol)
	}
	logger.Debug(ctx, "Bars fetched", "symbol", symbol, "count", len(bars))

	positions, err := e.brk.OpenPositions(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("open positions: %w", err)
	}
	account, err := e.brk.AccountSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("account snapshot: %w", err)
	}
	tick, err := e.brk.CurrentTick(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("current tick: %w", err)
	}
	meta, err := e.brk.SymbolMeta(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("symbol meta: %w", err)
	}

	in := types.CycleInput{
		Symbol:    symbol,
		Bars:      bars,
		Positions: positions,
		Account:   account,
		Tick:      tick,
		Meta:      meta,
	}
	if e.cal != nil {
		if ev, ok := e.cal.Blackout(ctx, symbol, e.now()); ok {
			logger.Risk(ctx, symbol, "NEWS_BLACKOUT", "event", ev.Title, "currency", ev.Currency, "at", ev.Time)
			in.Blackout = &ev
		}
	}

	return e.RunCycle(ctx, in), nil
}

// RunCycle detects zones, classifies the trend, evaluates a sell and then a
// buy entry, submits accepted proposals and finally closes profitable
// positions. It never returns an error; every outcome is an event.
func (e *Engine) RunCycle(ctx context.Context, in types.CycleInput) *types.CycleResult {
	supply, demand := zones.Detect(in.Bars)
	tr := e.trend.Classify(in.Bars)
	last := lastBar(in.Bars)

	res := &types.CycleResult{
		Symbol: in.Symbol,
		Time:   in.Tick.Time,
		Price:  in.Tick.Bid,
		Trend:  tr,
		Supply: supply,
		Demand: demand,
	}
	if last != nil && res.Time.IsZero() {
		res.Time = last.Time
	}

	logger.Debug(ctx, "Market state",
		"symbol", in.Symbol,
		"trend", tr.Label,
		"strength", tr.Strength,
		"rsi", tr.RSI,
		"supply_zones", len(supply),
		"demand_zones", len(demand),
		"bid", in.Tick.Bid,
		"ask", in.Tick.Ask,
	)

	indicators := e.indicators(in.Bars, tr)
	snapshot := positionsFor(in.Symbol, in.Positions)
	// view also holds orders accepted earlier in this cycle
	view := append([]types.Position(nil), snapshot...)

	for _, side := range cycleSides {
		var d types.Decision
		if in.Blackout != nil {
			d = types.Reject(side, types.ReasonNewsBlackout)
		} else {
			d = e.guard.Decide(ctx, GuardInput{
				Side:      side,
				Symbol:    in.Symbol,
				Supply:    supply,
				Demand:    demand,
				Trend:     tr,
				Positions: view,
				Account:   in.Account,
				Tick:      in.Tick,
				Meta:      in.Meta,
				LastBar:   last,
			})
		}
		e.exec.logDecision(ctx, in, tr, d, indicators)

		if !d.Proposed() {
			res.Events = append(res.Events, types.CycleEvent{Kind: types.EventRejected, Side: side, Reason: d.Reason})
			continue
		}

		ev := e.exec.submit(ctx, *d.Order)
		res.Events = append(res.Events, ev)
		if ev.Kind == types.EventOrderSubmitted {
			view = append(view, types.Position{
				ID:        ev.OrderID,
				Symbol:    in.Symbol,
				Side:      side,
				OpenPrice: d.Order.Price,
				Volume:    d.Order.Volume,
			})
		}
	}

	for _, pos := range snapshot {
		action, profit := e.pm.evaluate(pos, in.Tick, in.Meta)
		if action != ActionClose {
			continue
		}
		res.Events = append(res.Events, e.exec.close(ctx, pos, exitPrice(pos, in.Tick), profit))
	}

	return res
}

func (e *Engine) indicators(bars []types.PriceBar, tr types.TrendState) map[string]float64 {
	out := map[string]float64{
		"EMA_FAST":   tr.FastEMA,
		"EMA_SLOW":   tr.SlowEMA,
		"RSI":        tr.RSI,
		"CHANGE_PCT": tr.ChangePct,
	}
	h, l, c := seriesOf(bars)
	if atr := ta.ATR(h, l, c, 14); !math.IsNaN(atr) {
		out["ATR"] = atr
	}
	return out
}
