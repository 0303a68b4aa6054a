package interfaces

import (
	"context"
	"time"

	"zone-trading-bot/internal/types"
)

// NewsCalendar reports whether a high-impact release makes symbol untradeable at a given time.
type NewsCalendar interface {
	Blackout(ctx context.Context, symbol string, at time.Time) (types.NewsEvent, bool)
}
