package engine

import (
	"context"

	"zone-trading-bot/internal/interfaces"
	"zone-trading-bot/internal/logger"
	"zone-trading-bot/internal/tradelog"
	"zone-trading-bot/internal/types"
)

// orderExecutor transmits guard proposals and closes, and journals the outcome.
// Rejected orders are reported once and never retried within a cycle.
type orderExecutor struct {
	broker interfaces.Executor
}

func newOrderExecutor(broker interfaces.Executor) *orderExecutor {
	return &orderExecutor{broker: broker}
}

// submit sends req and returns the cycle event describing the outcome.
func (oe *orderExecutor) submit(ctx context.Context, req types.OrderRequest) types.CycleEvent {
	if req.ClientID == "" {
		req.ClientID = tradelog.NewClientID()
	}

	res, err := oe.broker.SubmitOrder(ctx, req)
	if err != nil {
		code, _ := types.IsOrderRejected(err)
		logger.ErrorWithErr(ctx, "Order submission failed", err,
			"symbol", req.Symbol,
			"side", req.Side,
			"volume", req.Volume,
			"price", req.Price,
			"code", code,
		)
		return types.CycleEvent{Kind: types.EventOrderFailed, Side: req.Side, Order: &req, Reason: err.Error(), Err: err}
	}

	price := res.Price
	if price == 0 {
		price = req.Price
	}
	logger.Trade(ctx, req.Symbol, string(req.Side), req.Volume, price, res.OrderID,
		"stop_loss", req.StopLoss,
		"take_profit", req.TakeProfit,
		"comment", req.Comment,
	)
	if err := tradelog.Append(tradelog.Entry{
		Symbol:     req.Symbol,
		Action:     "OPEN",
		Side:       string(req.Side),
		Volume:     req.Volume,
		Price:      price,
		StopLoss:   req.StopLoss,
		TakeProfit: req.TakeProfit,
		OrderID:    res.OrderID,
		ClientID:   req.ClientID,
		Reason:     req.Comment,
	}); err != nil {
		logger.Warn(ctx, "Failed to journal trade", "error", err, "order_id", res.OrderID)
	}

	return types.CycleEvent{Kind: types.EventOrderSubmitted, Side: req.Side, Order: &req, OrderID: res.OrderID}
}

// close asks the broker to flatten pos.
func (oe *orderExecutor) close(ctx context.Context, pos types.Position, price, profit float64) types.CycleEvent {
	res, err := oe.broker.ClosePosition(ctx, pos)
	if err != nil {
		logger.ErrorWithErr(ctx, "Position close failed", err,
			"symbol", pos.Symbol,
			"position", pos.ID,
			"side", pos.Side,
		)
		return types.CycleEvent{Kind: types.EventCloseFailed, Side: pos.Side, Position: &pos, Profit: profit, Reason: err.Error(), Err: err}
	}

	if res.Price != 0 {
		price = res.Price
	}
	logger.Trade(ctx, pos.Symbol, string(pos.Side.Opposite()), pos.Volume, price, res.OrderID,
		"closed_position", pos.ID,
		"profit_points", profit,
	)
	if err := tradelog.Append(tradelog.Entry{
		Symbol:  pos.Symbol,
		Action:  "CLOSE",
		Side:    string(pos.Side),
		Volume:  pos.Volume,
		Price:   price,
		Profit:  profit,
		OrderID: res.OrderID,
		Reason:  "Closing profitable position",
	}); err != nil {
		logger.Warn(ctx, "Failed to journal close", "error", err, "order_id", res.OrderID)
	}

	return types.CycleEvent{Kind: types.EventPositionClosed, Side: pos.Side, Position: &pos, Profit: profit, OrderID: res.OrderID}
}

// logDecision records a guard verdict in the log and the decision journal.
func (oe *orderExecutor) logDecision(ctx context.Context, in types.CycleInput, tr types.TrendState, d types.Decision, indicators map[string]float64) {
	logger.Decision(ctx, in.Symbol, string(d.Side), string(d.Verdict), d.Reason,
		"trend", tr.Label,
		"strength", tr.Strength,
		"bid", in.Tick.Bid,
		"ask", in.Tick.Ask,
	)

	if err := tradelog.AppendDecision(tradelog.DecisionEntry{
		Symbol:     in.Symbol,
		Side:       string(d.Side),
		Verdict:    string(d.Verdict),
		Reason:     d.Reason,
		Trend:      string(tr.Label),
		Strength:   tr.Strength,
		Bid:        in.Tick.Bid,
		Ask:        in.Tick.Ask,
		Indicators: indicators,
	}); err != nil {
		logger.Warn(ctx, "Failed to journal decision", "error", err, "symbol", in.Symbol)
	}
}
