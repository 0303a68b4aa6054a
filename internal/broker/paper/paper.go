// Package paper is an in-memory broker for DRY_RUN mode. Prices replay
// CSV files when present and otherwise follow a deterministic synthetic
// series, so two runs with the same configuration see the same market.
package paper

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"zone-trading-bot/internal/interfaces"
	"zone-trading-bot/internal/logger"
	"zone-trading-bot/internal/store"
	"zone-trading-bot/internal/types"
)

// Return codes reported through types.OrderRejectedError.
const (
	CodeInvalidVolume  = 10014
	CodeNoMoney        = 10019
	CodePositionClosed = 10036
	CodeNoPrice        = 10021
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type Broker struct {
	cfg store.PaperConfig

	mu        sync.Mutex
	balance   float64
	positions []types.Position
	replay    map[string][]types.PriceBar
	cursor    map[string]int
	last      map[string]types.PriceBar
	seq       int
}

var _ interfaces.Broker = (*Broker)(nil)

func New(cfg store.PaperConfig) *Broker {
	return &Broker{
		cfg:     cfg,
		balance: cfg.Balance,
		replay:  make(map[string][]types.PriceBar),
		cursor:  make(map[string]int),
		last:    make(map[string]types.PriceBar),
	}
}

// Start loads <BarsDir>/<SYMBOL>.csv for every symbol that has one.
func (b *Broker) Start(ctx context.Context, symbols []string) error {
	if b.cfg.BarsDir == "" {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, s := range symbols {
		path := filepath.Join(b.cfg.BarsDir, s+".csv")
		bars, err := loadBars(path)
		if errors.Is(err, os.ErrNotExist) {
			logger.Debug(ctx, "No replay file, using synthetic prices", "symbol", s, "path", path)
			continue
		}
		if err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		b.replay[s] = bars
		logger.Info(ctx, "Replay bars loaded", "symbol", s, "bars", len(bars))
	}
	return nil
}

func (b *Broker) Stop(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()

	logger.Info(ctx, "Paper session closed",
		"balance", b.balance,
		"open_positions", len(b.positions),
		"fills", b.seq,
	)
}

// FetchBars returns count bars ending at the symbol's cursor and then moves
// the cursor one bar forward, so each cycle sees one new bar.
func (b *Broker) FetchBars(ctx context.Context, symbol, timeframe string, count int) ([]types.PriceBar, error) {
	tf, err := types.TimeframeDuration(timeframe)
	if err != nil {
		return nil, err
	}
	if count <= 0 {
		return nil, fmt.Errorf("%w: bar count %d", types.ErrDataUnavailable, count)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	end, ok := b.cursor[symbol]
	if !ok {
		end = count - 1
	}

	var bars []types.PriceBar
	if replay, ok := b.replay[symbol]; ok {
		if len(replay) == 0 {
			return nil, fmt.Errorf("%w: empty replay for %s", types.ErrDataUnavailable, symbol)
		}
		if end > len(replay)-1 {
			end = len(replay) - 1
		}
		start := end - count + 1
		if start < 0 {
			start = 0
		}
		bars = append(bars, replay[start:end+1]...)
	} else {
		start := end - count + 1
		if start < 0 {
			start = 0
		}
		bars = make([]types.PriceBar, 0, end-start+1)
		for i := start; i <= end; i++ {
			bars = append(bars, b.syntheticBar(symbol, i, tf))
		}
	}

	b.cursor[symbol] = end + 1
	b.last[symbol] = bars[len(bars)-1]
	return bars, nil
}

// CurrentTick quotes the close of the last bar served for symbol, with the
// configured spread on the ask.
func (b *Broker) CurrentTick(ctx context.Context, symbol string) (types.Tick, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.tickLocked(symbol)
}

func (b *Broker) tickLocked(symbol string) (types.Tick, error) {
	bar, ok := b.last[symbol]
	if !ok {
		return types.Tick{}, fmt.Errorf("%w: no bars served yet for %s", types.ErrTickUnavailable, symbol)
	}
	return types.Tick{
		Bid:  bar.Close,
		Ask:  bar.Close + b.cfg.SpreadPoints*b.cfg.Point,
		Time: bar.Time,
	}, nil
}

func (b *Broker) SymbolMeta(ctx context.Context, symbol string) (types.SymbolMeta, error) {
	return types.SymbolMeta{
		Point:     b.cfg.Point,
		TickValue: b.cfg.TickValue,
		LotStep:   b.cfg.LotStep,
		MinLot:    b.cfg.MinLot,
	}, nil
}

func (b *Broker) RequiredMargin(ctx context.Context, side types.Side, symbol string, volume, price float64) (float64, error) {
	if b.cfg.Leverage <= 0 {
		return 0, fmt.Errorf("%w: leverage %v", types.ErrMarginCalc, b.cfg.Leverage)
	}
	return b.margin(volume, price), nil
}

func (b *Broker) margin(volume, price float64) float64 {
	return volume * b.cfg.ContractSize * price / b.cfg.Leverage
}

func (b *Broker) OpenPositions(ctx context.Context, symbol string) ([]types.Position, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []types.Position
	for _, p := range b.positions {
		if p.Symbol == symbol {
			out = append(out, p)
		}
	}
	return out, nil
}

// AccountSnapshot reports free margin as balance less the margin held by
// open positions at their entry prices.
func (b *Broker) AccountSnapshot(ctx context.Context) (types.AccountSnapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return types.AccountSnapshot{Balance: b.balance, FreeMargin: b.freeMarginLocked()}, nil
}

func (b *Broker) freeMarginLocked() float64 {
	used := 0.0
	for _, p := range b.positions {
		used += b.margin(p.Volume, p.OpenPrice)
	}
	return b.balance - used
}

// SubmitOrder fills at the current ask for buys and bid for sells.
func (b *Broker) SubmitOrder(ctx context.Context, req types.OrderRequest) (types.OrderResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !(req.Volume > 0) {
		return types.OrderResult{}, &types.OrderRejectedError{Code: CodeInvalidVolume, Message: "invalid volume"}
	}
	tick, err := b.tickLocked(req.Symbol)
	if err != nil {
		return types.OrderResult{}, &types.OrderRejectedError{Code: CodeNoPrice, Message: err.Error()}
	}

	price := tick.Ask
	if req.Side == types.SideSell {
		price = tick.Bid
	}
	if required := b.margin(req.Volume, price); required > b.freeMarginLocked() {
		return types.OrderResult{}, &types.OrderRejectedError{Code: CodeNoMoney, Message: "no money"}
	}

	b.seq++
	pos := types.Position{
		ID:        fmt.Sprintf("P%06d", b.seq),
		Symbol:    req.Symbol,
		Side:      req.Side,
		OpenPrice: price,
		Volume:    req.Volume,
	}
	b.positions = append(b.positions, pos)

	logger.Info(ctx, "Simulated order filled",
		"symbol", req.Symbol,
		"side", req.Side,
		"volume", req.Volume,
		"price", price,
		"position", pos.ID,
	)
	return types.OrderResult{OrderID: pos.ID, Status: "FILLED", Price: price}, nil
}

// ClosePosition settles pos at the opposite side of the book and books the
// profit into the balance.
func (b *Broker) ClosePosition(ctx context.Context, pos types.Position) (types.OrderResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	idx := -1
	for i, p := range b.positions {
		if p.ID == pos.ID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return types.OrderResult{}, &types.OrderRejectedError{Code: CodePositionClosed, Message: "position " + pos.ID + " not found"}
	}
	open := b.positions[idx]

	tick, err := b.tickLocked(open.Symbol)
	if err != nil {
		return types.OrderResult{}, &types.OrderRejectedError{Code: CodeNoPrice, Message: err.Error()}
	}

	exit, move := tick.Bid, tick.Bid-open.OpenPrice
	if open.Side == types.SideSell {
		exit, move = tick.Ask, open.OpenPrice-tick.Ask
	}
	pnl := move / b.cfg.Point * b.cfg.TickValue * open.Volume
	b.balance += pnl
	b.positions = append(b.positions[:idx], b.positions[idx+1:]...)

	logger.Info(ctx, "Simulated position closed",
		"symbol", open.Symbol,
		"position", open.ID,
		"price", exit,
		"pnl", pnl,
		"balance", b.balance,
	)
	return types.OrderResult{OrderID: open.ID, Status: "CLOSED", Price: exit}, nil
}
