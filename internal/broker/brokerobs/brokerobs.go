package brokerobs

import (
	"context"
	"fmt"

	"zone-trading-bot/internal/interfaces"
	"zone-trading-bot/internal/logger"
	"zone-trading-bot/internal/trace"
	"zone-trading-bot/internal/types"
)

// observableBroker wraps a Broker with observability (logging & tracing)
type observableBroker struct {
	broker interfaces.Broker
}

// Compile-time interface check
var _ interfaces.Broker = (*observableBroker)(nil)

// Wrap wraps a broker with observability middleware
func Wrap(broker interfaces.Broker) interfaces.Broker {
	return &observableBroker{
		broker: broker,
	}
}

func (ob *observableBroker) FetchBars(ctx context.Context, symbol, timeframe string, count int) ([]types.PriceBar, error) {
	ctx, span := trace.StartSpan(ctx, "broker.FetchBars")
	defer span.End()

	logger.DebugSkip(ctx, 1, "Fetching bars", "symbol", symbol, "timeframe", timeframe, "count", count)

	bars, err := ob.broker.FetchBars(ctx, symbol, timeframe, count)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch bars", err, "symbol", symbol, "timeframe", timeframe)
		return nil, err
	}

	logger.DebugSkip(ctx, 1, "Bars fetched successfully", "symbol", symbol, "count", len(bars))
	return bars, nil
}

func (ob *observableBroker) CurrentTick(ctx context.Context, symbol string) (types.Tick, error) {
	ctx, span := trace.StartSpan(ctx, "broker.CurrentTick")
	defer span.End()

	tick, err := ob.broker.CurrentTick(ctx, symbol)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch tick", err, "symbol", symbol)
		return types.Tick{}, err
	}

	logger.DebugSkip(ctx, 1, "Tick fetched", "symbol", symbol, "bid", tick.Bid, "ask", tick.Ask)
	return tick, nil
}

func (ob *observableBroker) SymbolMeta(ctx context.Context, symbol string) (types.SymbolMeta, error) {
	meta, err := ob.broker.SymbolMeta(ctx, symbol)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to resolve symbol", err, "symbol", symbol)
	}
	return meta, err
}

func (ob *observableBroker) RequiredMargin(ctx context.Context, side types.Side, symbol string, volume, price float64) (float64, error) {
	ctx, span := trace.StartSpan(ctx, "broker.RequiredMargin")
	defer span.End()

	margin, err := ob.broker.RequiredMargin(ctx, side, symbol, volume, price)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Margin calculation failed", err,
			"symbol", symbol,
			"side", side,
			"volume", volume,
		)
		return 0, err
	}

	logger.DebugSkip(ctx, 1, "Margin calculated", "symbol", symbol, "side", side, "volume", volume, "margin", margin)
	return margin, nil
}

func (ob *observableBroker) OpenPositions(ctx context.Context, symbol string) ([]types.Position, error) {
	ctx, span := trace.StartSpan(ctx, "broker.OpenPositions")
	defer span.End()

	positions, err := ob.broker.OpenPositions(ctx, symbol)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch positions", err, "symbol", symbol)
		return nil, err
	}

	logger.DebugSkip(ctx, 1, "Positions fetched", "symbol", symbol, "count", len(positions))
	return positions, nil
}

func (ob *observableBroker) AccountSnapshot(ctx context.Context) (types.AccountSnapshot, error) {
	ctx, span := trace.StartSpan(ctx, "broker.AccountSnapshot")
	defer span.End()

	acct, err := ob.broker.AccountSnapshot(ctx)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch account", err)
		return types.AccountSnapshot{}, err
	}

	logger.DebugSkip(ctx, 1, "Account fetched", "balance", acct.Balance, "free_margin", acct.FreeMargin)
	return acct, nil
}

// SubmitOrder places an order with observability
func (ob *observableBroker) SubmitOrder(ctx context.Context, req types.OrderRequest) (types.OrderResult, error) {
	ctx, span := trace.StartSpan(ctx, "broker.SubmitOrder")
	defer span.End()

	logger.InfoSkip(ctx, 1, "Placing order",
		"symbol", req.Symbol,
		"side", req.Side,
		"volume", req.Volume,
		"price", req.Price,
		"client_id", req.ClientID,
	)

	res, err := ob.broker.SubmitOrder(ctx, req)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to place order", err,
			"symbol", req.Symbol,
			"side", req.Side,
			"volume", req.Volume,
		)
		return types.OrderResult{}, err
	}

	logger.InfoSkip(ctx, 1, "Order placed successfully",
		"symbol", req.Symbol,
		"order_id", res.OrderID,
		"status", res.Status,
	)
	return res, nil
}

func (ob *observableBroker) ClosePosition(ctx context.Context, pos types.Position) (types.OrderResult, error) {
	ctx, span := trace.StartSpan(ctx, "broker.ClosePosition")
	defer span.End()

	logger.InfoSkip(ctx, 1, "Closing position", "symbol", pos.Symbol, "position", pos.ID, "side", pos.Side, "volume", pos.Volume)

	res, err := ob.broker.ClosePosition(ctx, pos)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to close position", err, "symbol", pos.Symbol, "position", pos.ID)
		return types.OrderResult{}, err
	}

	logger.InfoSkip(ctx, 1, "Position closed successfully", "symbol", pos.Symbol, "position", pos.ID, "price", res.Price)
	return res, nil
}

// Start initializes the broker with observability
func (ob *observableBroker) Start(ctx context.Context, symbols []string) error {
	ctx, span := trace.StartSpan(ctx, "broker.Start")
	defer span.End()

	logger.InfoSkip(ctx, 1, "Starting broker", "symbols", symbols, "count", len(symbols))

	err := ob.broker.Start(ctx, symbols)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to start broker", err, "symbols", symbols)
		return fmt.Errorf("broker start failed: %w", err)
	}

	logger.InfoSkip(ctx, 1, "Broker started successfully", "symbols", symbols)
	return nil
}

// Stop shuts down the broker with observability
func (ob *observableBroker) Stop(ctx context.Context) {
	ctx, span := trace.StartSpan(ctx, "broker.Stop")
	defer span.End()

	logger.InfoSkip(ctx, 1, "Stopping broker")
	ob.broker.Stop(ctx)
	logger.InfoSkip(ctx, 1, "Broker stopped successfully")
}
