package interfaces

import (
	"context"

	"zone-trading-bot/internal/types"
)

// MarketData serves bars, quotes and instrument metadata.
type MarketData interface {
	// FetchBars returns the most recent count bars in chronological order.
	FetchBars(ctx context.Context, symbol, timeframe string, count int) ([]types.PriceBar, error)
	CurrentTick(ctx context.Context, symbol string) (types.Tick, error)
	SymbolMeta(ctx context.Context, symbol string) (types.SymbolMeta, error)
}

// MarginCalculator prices the margin a candidate order would lock.
type MarginCalculator interface {
	RequiredMargin(ctx context.Context, side types.Side, symbol string, volume, price float64) (float64, error)
}

// Account exposes the broker-owned account state. Every call is a fresh read.
type Account interface {
	MarginCalculator
	OpenPositions(ctx context.Context, symbol string) ([]types.Position, error)
	AccountSnapshot(ctx context.Context) (types.AccountSnapshot, error)
}

// Executor transmits order and close requests.
type Executor interface {
	SubmitOrder(ctx context.Context, req types.OrderRequest) (types.OrderResult, error)
	ClosePosition(ctx context.Context, pos types.Position) (types.OrderResult, error)
}

type Broker interface {
	MarketData
	Account
	Executor

	// Start prepares the session for the given symbols.
	Start(ctx context.Context, symbols []string) error

	// Stop releases broker resources.
	Stop(ctx context.Context)
}
