package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"zone-trading-bot/internal/store"
	"zone-trading-bot/internal/tradelog"
	"zone-trading-bot/internal/types"
)

var baseTime = time.Date(2024, 3, 1, 9, 15, 0, 0, time.UTC)

// useTempJournal points the trade journal at a throwaway directory.
func useTempJournal(t *testing.T) {
	t.Helper()
	tradelog.Configure(t.TempDir())
}

// vDipBars is a gently rising series with a single V-shaped dip whose
// trough (index 4, low 99.80) is the only demand zone.
func vDipBars() []types.PriceBar {
	bars := make([]types.PriceBar, 40)
	for i := range bars {
		c := 100 + 0.01*float64(i)
		bars[i] = types.PriceBar{
			Time:  baseTime.Add(time.Duration(i) * 15 * time.Minute),
			Open:  c - 0.01,
			High:  c + 0.05,
			Low:   c - 0.05,
			Close: c,
		}
	}
	for i, low := range []float64{99.90, 99.85, 99.80, 99.86, 99.92} {
		bars[i+2].Low = low
	}
	return bars
}

// crossedBars has a supply zone at 100.00 (index 2) below a demand zone at
// 100.50 (index 7), so one tick can trigger both sides at once.
func crossedBars() []types.PriceBar {
	highs := []float64{99.90, 99.95, 100.00, 99.95, 99.90, 100.70, 100.65, 100.60, 100.65, 100.70, 100.25, 100.25}
	lows := []float64{99.80, 99.85, 99.90, 99.85, 99.80, 100.60, 100.55, 100.50, 100.55, 100.60, 100.15, 100.15}
	bars := make([]types.PriceBar, len(highs))
	for i := range highs {
		mid := (highs[i] + lows[i]) / 2
		bars[i] = types.PriceBar{
			Time:  baseTime.Add(time.Duration(i) * 15 * time.Minute),
			Open:  mid,
			High:  highs[i],
			Low:   lows[i],
			Close: mid,
		}
	}
	return bars
}

func fxMeta() types.SymbolMeta {
	return types.SymbolMeta{Point: 0.01, TickValue: 1, LotStep: 0.01}
}

func testConfig(mutate func(*store.GuardConfig)) *store.Config {
	cfg := store.Default()
	cfg.Symbols = []string{"EURUSD"}
	p := cfg.ActiveProfile()
	if mutate != nil {
		mutate(&p.Guard)
	}
	cfg.Profiles[cfg.Profile] = p
	return cfg
}

// flatMargin charges a fixed fraction of notional.
type flatMargin struct {
	rate float64
	err  error
}

func (m flatMargin) RequiredMargin(_ context.Context, _ types.Side, _ string, volume, price float64) (float64, error) {
	if m.err != nil {
		return 0, m.err
	}
	return volume * price * m.rate, nil
}

type fakeBroker struct {
	flatMargin

	mu        sync.Mutex
	bars      []types.PriceBar
	barsErr   error
	positions []types.Position
	account   types.AccountSnapshot
	tick      types.Tick
	meta      types.SymbolMeta
	submitErr error
	closeErr  error

	submitted []types.OrderRequest
	closed    []types.Position
}

func newFakeBroker(bars []types.PriceBar, tick types.Tick) *fakeBroker {
	return &fakeBroker{
		flatMargin: flatMargin{rate: 0.01},
		bars:       bars,
		account:    types.AccountSnapshot{Balance: 10000, FreeMargin: 10000},
		tick:       tick,
		meta:       fxMeta(),
	}
}

func (f *fakeBroker) FetchBars(context.Context, string, string, int) ([]types.PriceBar, error) {
	return f.bars, f.barsErr
}

func (f *fakeBroker) CurrentTick(context.Context, string) (types.Tick, error) {
	return f.tick, nil
}

func (f *fakeBroker) SymbolMeta(context.Context, string) (types.SymbolMeta, error) {
	return f.meta, nil
}

func (f *fakeBroker) OpenPositions(_ context.Context, symbol string) ([]types.Position, error) {
	return f.positions, nil
}

func (f *fakeBroker) AccountSnapshot(context.Context) (types.AccountSnapshot, error) {
	return f.account, nil
}

func (f *fakeBroker) SubmitOrder(_ context.Context, req types.OrderRequest) (types.OrderResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return types.OrderResult{}, f.submitErr
	}
	f.submitted = append(f.submitted, req)
	return types.OrderResult{OrderID: req.ClientID, Status: "COMPLETE", Price: req.Price}, nil
}

func (f *fakeBroker) ClosePosition(_ context.Context, pos types.Position) (types.OrderResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closeErr != nil {
		return types.OrderResult{}, f.closeErr
	}
	f.closed = append(f.closed, pos)
	return types.OrderResult{OrderID: "close-" + pos.ID, Status: "COMPLETE"}, nil
}

func (f *fakeBroker) Start(context.Context, []string) error { return nil }
func (f *fakeBroker) Stop(context.Context)                  {}

type fixedCalendar struct {
	event types.NewsEvent
	on    bool
}

func (c fixedCalendar) Blackout(context.Context, string, time.Time) (types.NewsEvent, bool) {
	return c.event, c.on
}

var errBrokerDown = errors.New("broker down")
