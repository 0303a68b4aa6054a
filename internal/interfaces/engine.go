package interfaces

import (
	"context"

	"zone-trading-bot/internal/types"
)

type Engine interface {
	// Step fetches a fresh snapshot for symbol and runs one decision cycle on it.
	Step(ctx context.Context, symbol string) (*types.CycleResult, error)

	// RunCycle runs one decision cycle on an already gathered snapshot.
	RunCycle(ctx context.Context, in types.CycleInput) *types.CycleResult
}
