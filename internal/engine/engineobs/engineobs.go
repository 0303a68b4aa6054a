package engineobs

import (
	"context"
	"time"

	"zone-trading-bot/internal/interfaces"
	"zone-trading-bot/internal/logger"
	"zone-trading-bot/internal/trace"
	"zone-trading-bot/internal/types"
)

type observableEngine struct {
	engine interfaces.Engine
}

var _ interfaces.Engine = (*observableEngine)(nil)

func Wrap(eng interfaces.Engine) interfaces.Engine {
	return &observableEngine{
		engine: eng,
	}
}

func (oe *observableEngine) Step(ctx context.Context, symbol string) (*types.CycleResult, error) {
	ctx, span := trace.StartSpan(ctx, "engine.Step")
	defer span.End()

	start := time.Now()

	logger.InfoSkip(ctx, 1, "Starting trading cycle",
		"symbol", symbol,
	)

	result, err := oe.engine.Step(ctx, symbol)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Trading cycle failed", err,
			"symbol", symbol,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return nil, err
	}

	logCompleted(ctx, result, start)
	return result, nil
}

func (oe *observableEngine) RunCycle(ctx context.Context, in types.CycleInput) *types.CycleResult {
	ctx, span := trace.StartSpan(ctx, "engine.RunCycle")
	defer span.End()

	start := time.Now()
	result := oe.engine.RunCycle(ctx, in)
	logCompleted(ctx, result, start)
	return result
}

func logCompleted(ctx context.Context, result *types.CycleResult, start time.Time) {
	logger.InfoSkip(ctx, 2, "Trading cycle completed",
		"symbol", result.Symbol,
		"trend", result.Trend.Label,
		"strength", result.Trend.Strength,
		"supply_zones", len(result.Supply),
		"demand_zones", len(result.Demand),
		"submitted", len(result.Submitted()),
		"rejected", len(result.Rejections()),
		"events", len(result.Events),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
