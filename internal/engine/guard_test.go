package engine

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"

	"zone-trading-bot/internal/store"
	"zone-trading-bot/internal/trend"
	"zone-trading-bot/internal/types"
	"zone-trading-bot/internal/zones"
)

func vDipInput(t *testing.T, side types.Side) GuardInput {
	t.Helper()
	bars := vDipBars()
	supply, demand := zones.Detect(bars)
	return GuardInput{
		Side:    side,
		Symbol:  "EURUSD",
		Supply:  supply,
		Demand:  demand,
		Trend:   trend.NewClassifier(trend.DefaultConfig()).Classify(bars),
		Account: types.AccountSnapshot{Balance: 10000, FreeMargin: 10000},
		Tick:    types.Tick{Bid: 99.93, Ask: 99.95},
		Meta:    fxMeta(),
		LastBar: lastBar(bars),
	}
}

func defaultGuard(margin flatMargin) *Guard {
	return NewGuard(store.DefaultProfile().Guard, margin)
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestGuardProposesBuyAtDemandZone(t *testing.T) {
	in := vDipInput(t, types.SideBuy)
	if len(in.Demand) != 1 || in.Demand[0].Index != 4 || in.Demand[0].Price != 99.80 {
		t.Fatalf("expected one demand zone at index 4 price 99.80, got %+v", in.Demand)
	}
	if in.Trend.Label != types.TrendBullish {
		t.Fatalf("expected bullish trend, got %s", in.Trend.Label)
	}

	d := defaultGuard(flatMargin{rate: 0.01}).Decide(context.Background(), in)
	if !d.Proposed() {
		t.Fatalf("expected proposal, got rejection %q", d.Reason)
	}
	if d.Reason != "demand zone crossed" {
		t.Errorf("expected demand zone trigger, got %q", d.Reason)
	}

	o := d.Order
	if o.Price != 99.95 {
		t.Errorf("expected entry at ask 99.95, got %v", o.Price)
	}
	if !approx(o.StopLoss, 98.79) || !approx(o.TakeProfit, 101.69) {
		t.Errorf("expected SL 98.79 TP 101.69, got SL %v TP %v", o.StopLoss, o.TakeProfit)
	}
	if o.StopLoss >= o.Price || o.TakeProfit <= o.Price {
		t.Errorf("stops on wrong side of entry: %+v", o)
	}
	ratio := (o.TakeProfit - o.Price) / (o.Price - o.StopLoss)
	if math.Abs(ratio-1.5) > 1e-6 {
		t.Errorf("expected 1:1.5 reward ratio, got %v", ratio)
	}
	if !approx(o.Volume, 0.86) {
		t.Errorf("expected volume 0.86, got %v", o.Volume)
	}
	if o.Deviation != 10 || o.Magic != 234000 {
		t.Errorf("expected deviation 10 magic 234000, got %d %d", o.Deviation, o.Magic)
	}
	if o.Comment != "Buy order - BULLISH market" {
		t.Errorf("unexpected comment %q", o.Comment)
	}
}

func TestGuardMaxPositions(t *testing.T) {
	in := vDipInput(t, types.SideSell)
	for i := 0; i < 5; i++ {
		in.Positions = append(in.Positions, types.Position{ID: string(rune('a' + i)), Symbol: "EURUSD", Side: types.SideSell, OpenPrice: 100 + float64(i), Volume: 0.1})
	}
	// a supply zone right under the bid would otherwise trigger a sell
	in.Supply = []types.Zone{{Index: 30, Price: 99.00, Kind: types.ZoneSupply}}

	d := defaultGuard(flatMargin{rate: 0.01}).Decide(context.Background(), in)
	if d.Proposed() || d.Reason != types.ReasonMaxPositions {
		t.Fatalf("expected %q, got %+v", types.ReasonMaxPositions, d)
	}

	in.Positions = in.Positions[:4]
	d = defaultGuard(flatMargin{rate: 0.01}).Decide(context.Background(), in)
	if !d.Proposed() {
		t.Fatalf("expected proposal below the cap, got %q", d.Reason)
	}
}

func TestGuardHedgePrevented(t *testing.T) {
	in := vDipInput(t, types.SideBuy)
	in.Positions = []types.Position{{ID: "s1", Symbol: "EURUSD", Side: types.SideSell, OpenPrice: 100.2, Volume: 0.1}}

	d := defaultGuard(flatMargin{rate: 0.01}).Decide(context.Background(), in)
	if d.Reason != types.ReasonHedgePrevented {
		t.Fatalf("expected %q, got %+v", types.ReasonHedgePrevented, d)
	}

	cfg := store.DefaultProfile().Guard
	cfg.AllowHedging = true
	d = NewGuard(cfg, flatMargin{rate: 0.01}).Decide(context.Background(), in)
	if !d.Proposed() {
		t.Fatalf("expected proposal with hedging allowed, got %q", d.Reason)
	}
}

func TestGuardIgnoresOtherSymbols(t *testing.T) {
	g := defaultGuard(flatMargin{rate: 0.01})

	in := vDipInput(t, types.SideBuy)
	in.Positions = []types.Position{{ID: "g1", Symbol: "GBPUSD", Side: types.SideSell, OpenPrice: 1.27, Volume: 0.1}}
	if d := g.Decide(context.Background(), in); !d.Proposed() {
		t.Errorf("a GBPUSD sell must not block a EURUSD buy, got %q", d.Reason)
	}

	in.Positions = nil
	for i := 0; i < 5; i++ {
		in.Positions = append(in.Positions, types.Position{ID: string(rune('a' + i)), Symbol: "GBPUSD", Side: types.SideBuy, OpenPrice: 1.27, Volume: 0.1})
	}
	if d := g.Decide(context.Background(), in); !d.Proposed() {
		t.Errorf("GBPUSD buys must not count toward the EURUSD cap, got %q", d.Reason)
	}

	in.Positions = []types.Position{{ID: "g2", Symbol: "GBPUSD", Side: types.SideBuy, OpenPrice: 99.95, Volume: 0.1}}
	if d := g.Decide(context.Background(), in); !d.Proposed() {
		t.Errorf("a GBPUSD buy at the same price is not a duplicate, got %q", d.Reason)
	}
}

func TestGuardRejectsMissingPrice(t *testing.T) {
	g := defaultGuard(flatMargin{rate: 0.01})
	for _, side := range []types.Side{types.SideBuy, types.SideSell} {
		in := vDipInput(t, side)
		in.Tick = types.Tick{}
		d := g.Decide(context.Background(), in)
		if d.Proposed() || d.Reason != types.ReasonNoPrice {
			t.Errorf("%s: expected %q on an empty tick, got %+v", side, types.ReasonNoPrice, d)
		}
	}

	in := vDipInput(t, types.SideBuy)
	in.Tick.Ask = math.NaN()
	if d := g.Decide(context.Background(), in); d.Reason != types.ReasonNoPrice {
		t.Errorf("expected %q on a NaN ask, got %+v", types.ReasonNoPrice, d)
	}
}

func TestGuardMargin(t *testing.T) {
	t.Run("no free margin", func(t *testing.T) {
		in := vDipInput(t, types.SideBuy)
		in.Account.FreeMargin = 0
		d := defaultGuard(flatMargin{rate: 0.01}).Decide(context.Background(), in)
		if d.Reason != types.ReasonInsufficientMargin {
			t.Fatalf("expected %q, got %+v", types.ReasonInsufficientMargin, d)
		}
	})

	t.Run("calculator error", func(t *testing.T) {
		in := vDipInput(t, types.SideBuy)
		d := defaultGuard(flatMargin{err: errors.New("timeout")}).Decide(context.Background(), in)
		if d.Reason != types.ReasonMarginCalcFailed {
			t.Fatalf("expected %q, got %+v", types.ReasonMarginCalcFailed, d)
		}
	})

	t.Run("no calculator", func(t *testing.T) {
		in := vDipInput(t, types.SideBuy)
		d := NewGuard(store.DefaultProfile().Guard, nil).Decide(context.Background(), in)
		if d.Reason != types.ReasonMarginCalcFailed {
			t.Fatalf("expected %q, got %+v", types.ReasonMarginCalcFailed, d)
		}
	})

	t.Run("NaN margin", func(t *testing.T) {
		in := vDipInput(t, types.SideBuy)
		d := defaultGuard(flatMargin{rate: math.NaN()}).Decide(context.Background(), in)
		if d.Reason != types.ReasonInsufficientMargin {
			t.Fatalf("expected %q, got %+v", types.ReasonInsufficientMargin, d)
		}
	})
}

func TestGuardVolatility(t *testing.T) {
	in := vDipInput(t, types.SideBuy)
	in.LastBar = nil
	if d := defaultGuard(flatMargin{rate: 0.01}).Decide(context.Background(), in); d.Reason != types.ReasonVolatilityUnknown {
		t.Fatalf("expected %q, got %+v", types.ReasonVolatilityUnknown, d)
	}

	// 60 point range, 2 point body
	wide := types.PriceBar{Open: 100.00, Close: 100.02, High: 100.30, Low: 99.70}
	in.LastBar = &wide
	if d := defaultGuard(flatMargin{rate: 0.01}).Decide(context.Background(), in); d.Reason != types.ReasonHighVolatility {
		t.Fatalf("expected %q, got %+v", types.ReasonHighVolatility, d)
	}

	cfg := store.DefaultProfile().Guard
	cfg.VolatilityMeasure = "body"
	if d := NewGuard(cfg, flatMargin{rate: 0.01}).Decide(context.Background(), in); !d.Proposed() {
		t.Fatalf("expected body measure to accept a long-wicked bar, got %q", d.Reason)
	}
}

func TestGuardCounterTrend(t *testing.T) {
	in := vDipInput(t, types.SideSell)
	in.Supply = []types.Zone{{Index: 30, Price: 99.00, Kind: types.ZoneSupply}}
	in.Trend = types.TrendState{Label: types.TrendBullish, Strength: 0.8}

	d := defaultGuard(flatMargin{rate: 0.01}).Decide(context.Background(), in)
	if d.Reason != types.ReasonCounterTrend {
		t.Fatalf("expected %q, got %+v", types.ReasonCounterTrend, d)
	}

	in.Trend.Strength = 0.4
	if d := defaultGuard(flatMargin{rate: 0.01}).Decide(context.Background(), in); !d.Proposed() {
		t.Fatalf("weak opposing trend should not block, got %q", d.Reason)
	}
}

func TestGuardStrongTrendEntry(t *testing.T) {
	in := vDipInput(t, types.SideBuy)
	in.Demand = nil
	in.Trend = types.TrendState{Label: types.TrendBullish, Strength: 0.8}

	d := defaultGuard(flatMargin{rate: 0.01}).Decide(context.Background(), in)
	if !d.Proposed() || d.Reason != "strong trend" {
		t.Fatalf("expected strong trend proposal, got %+v", d)
	}
	// stop widens to int(100 * 1.8) points
	if !approx(d.Order.StopLoss, 98.15) || !approx(d.Order.TakeProfit, 102.65) {
		t.Errorf("expected SL 98.15 TP 102.65, got %v %v", d.Order.StopLoss, d.Order.TakeProfit)
	}
}

func TestGuardEntrySignal(t *testing.T) {
	tests := []struct {
		name   string
		side   types.Side
		label  types.TrendLabel
		bid    float64
		ask    float64
		want   bool
		reason string
	}{
		{"buy below demand", types.SideBuy, types.TrendRanging, 99.77, 99.79, true, "demand zone crossed"},
		{"buy above demand without trend", types.SideBuy, types.TrendRanging, 99.83, 99.85, false, types.ReasonNoEntrySignal},
		{"buy inside tolerance with trend", types.SideBuy, types.TrendBullish, 100.03, 100.05, true, "demand zone crossed"},
		{"buy beyond tolerance", types.SideBuy, types.TrendBullish, 100.48, 100.50, false, types.ReasonNoEntrySignal},
		{"sell above supply", types.SideSell, types.TrendRanging, 100.11, 100.13, true, "supply zone crossed"},
		{"sell below supply without trend", types.SideSell, types.TrendRanging, 99.95, 99.97, false, types.ReasonNoEntrySignal},
		{"sell inside tolerance with trend", types.SideSell, types.TrendBearish, 99.80, 99.82, true, "supply zone crossed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := vDipInput(t, tt.side)
			in.Supply = []types.Zone{{Index: 20, Price: 100.10, Kind: types.ZoneSupply}}
			in.Trend = types.TrendState{Label: tt.label, Strength: 0.1}
			in.Tick = types.Tick{Bid: tt.bid, Ask: tt.ask}

			d := defaultGuard(flatMargin{rate: 0.01}).Decide(context.Background(), in)
			if d.Proposed() != tt.want || d.Reason != tt.reason {
				t.Errorf("expected proposed=%v reason %q, got %+v", tt.want, tt.reason, d)
			}
			if d.Proposed() && d.Order.Price != map[types.Side]float64{types.SideBuy: tt.ask, types.SideSell: tt.bid}[tt.side] {
				t.Errorf("entry priced on wrong side of the book: %v", d.Order.Price)
			}
		})
	}
}

func TestGuardDuplicatePrice(t *testing.T) {
	in := vDipInput(t, types.SideBuy)
	in.Positions = []types.Position{{ID: "b1", Symbol: "EURUSD", Side: types.SideBuy, OpenPrice: 99.95, Volume: 0.5}}

	d := defaultGuard(flatMargin{rate: 0.01}).Decide(context.Background(), in)
	if d.Reason != types.ReasonDuplicatePrice {
		t.Fatalf("expected %q, got %+v", types.ReasonDuplicatePrice, d)
	}
}

func TestGuardZoneProximity(t *testing.T) {
	in := vDipInput(t, types.SideBuy)
	in.Supply = []types.Zone{{Index: 20, Price: 100.00, Kind: types.ZoneSupply}}

	if d := defaultGuard(flatMargin{rate: 0.01}).Decide(context.Background(), in); !d.Proposed() {
		t.Fatalf("proximity gate is off by default, got %q", d.Reason)
	}

	cfg := store.DefaultProfile().Guard
	cfg.MinZoneDistancePoints = 100
	d := NewGuard(cfg, flatMargin{rate: 0.01}).Decide(context.Background(), in)
	if d.Reason != types.ReasonZonesTooClose {
		t.Fatalf("expected %q, got %+v", types.ReasonZonesTooClose, d)
	}
}

func TestGuardInvalidMeta(t *testing.T) {
	in := vDipInput(t, types.SideBuy)
	in.Meta.Point = 0
	if d := defaultGuard(flatMargin{rate: 0.01}).Decide(context.Background(), in); d.Reason != types.ReasonInvalidMeta {
		t.Fatalf("expected %q, got %+v", types.ReasonInvalidMeta, d)
	}
}

func TestGuardIsDeterministic(t *testing.T) {
	g := defaultGuard(flatMargin{rate: 0.01})
	for _, side := range []types.Side{types.SideBuy, types.SideSell} {
		in := vDipInput(t, side)
		first := g.Decide(context.Background(), in)
		second := g.Decide(context.Background(), in)
		if !reflect.DeepEqual(first, second) {
			t.Errorf("%s: decisions differ: %+v vs %+v", side, first, second)
		}
	}
}
