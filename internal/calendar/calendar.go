// Package calendar blocks new entries around high-impact economic releases
// scraped from a configurable calendar page.
package calendar

import (
	"context"
	"strings"
	"sync"
	"time"

	"zone-trading-bot/internal/interfaces"
	"zone-trading-bot/internal/logger"
	"zone-trading-bot/internal/store"
	"zone-trading-bot/internal/types"
)

type fetcher interface {
	Fetch(ctx context.Context) ([]types.NewsEvent, error)
}

// Calendar caches scraped events and refreshes them every RefreshMinutes.
// A failed refresh keeps the previous events.
type Calendar struct {
	cfg     store.CalendarConfig
	src     fetcher
	now     func() time.Time
	before  time.Duration
	after   time.Duration
	refresh time.Duration

	mu        sync.Mutex
	events    []types.NewsEvent
	fetchedAt time.Time
}

var _ interfaces.NewsCalendar = (*Calendar)(nil)

func New(cfg store.CalendarConfig) *Calendar {
	return newWithFetcher(cfg, NewScraper(cfg))
}

func newWithFetcher(cfg store.CalendarConfig, src fetcher) *Calendar {
	return &Calendar{
		cfg:     cfg,
		src:     src,
		now:     time.Now,
		before:  time.Duration(cfg.WindowBeforeMinutes) * time.Minute,
		after:   time.Duration(cfg.WindowAfterMinutes) * time.Minute,
		refresh: time.Duration(cfg.RefreshMinutes) * time.Minute,
	}
}

// Blackout reports the first matching high-impact event whose window
// [event-before, event+after] contains at.
func (c *Calendar) Blackout(ctx context.Context, symbol string, at time.Time) (types.NewsEvent, bool) {
	events := c.current(ctx)
	currencies := c.cfg.Currencies[symbol]

	for _, ev := range events {
		if !c.highImpact(ev.Impact) || !affects(currencies, ev.Currency) {
			continue
		}
		if !at.Before(ev.Time.Add(-c.before)) && !at.After(ev.Time.Add(c.after)) {
			return ev, true
		}
	}
	return types.NewsEvent{}, false
}

func (c *Calendar) current(ctx context.Context) []types.NewsEvent {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.fetchedAt.IsZero() && c.now().Sub(c.fetchedAt) < c.refresh {
		return c.events
	}

	events, err := c.src.Fetch(ctx)
	c.fetchedAt = c.now()
	if err != nil {
		logger.Warn(ctx, "Calendar refresh failed, keeping previous events", "error", err, "events", len(c.events))
		return c.events
	}

	logger.Info(ctx, "Calendar refreshed", "events", len(events))
	c.events = events
	return c.events
}

func (c *Calendar) highImpact(impact string) bool {
	for _, lvl := range c.cfg.ImpactLevels {
		if strings.EqualFold(lvl, impact) {
			return true
		}
	}
	return false
}

// affects treats an unmapped symbol as exposed to every currency.
func affects(currencies []string, currency string) bool {
	if len(currencies) == 0 {
		return true
	}
	for _, cur := range currencies {
		if strings.EqualFold(cur, currency) {
			return true
		}
	}
	return false
}
