package engine

import (
	"zone-trading-bot/internal/interfaces"
	"zone-trading-bot/internal/store"
)

// New builds the decision engine. cal may be nil to trade without a news calendar.
func New(cfg *store.Config, brk interfaces.Broker, cal interfaces.NewsCalendar) interfaces.Engine {
	return newEngine(cfg, brk, cal)
}
