package calendar

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"github.com/spf13/cast"

	"zone-trading-bot/internal/logger"
	"zone-trading-bot/internal/store"
	"zone-trading-bot/internal/types"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Scraper reads an economic calendar page. Row and cell selectors come from
// configuration so the page layout can change without a rebuild.
type Scraper struct {
	cfg     store.CalendarConfig
	timeout time.Duration
}

func NewScraper(cfg store.CalendarConfig) *Scraper {
	return &Scraper{
		cfg:     cfg,
		timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
	}
}

// Fetch visits the calendar URL and returns every event row it can parse.
func (s *Scraper) Fetch(ctx context.Context) ([]types.NewsEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	events := []types.NewsEvent{}
	var scrapeErr error

	c := colly.NewCollector(
		colly.AllowedDomains(getDomain(s.cfg.URL)),
		colly.MaxDepth(1),
		colly.Async(false),
	)
	c.SetRequestTimeout(s.timeout)

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("User-Agent", userAgent)
	})

	c.OnHTML(s.cfg.RowSelector, func(e *colly.HTMLElement) {
		if ev, ok := parseRow(e.DOM, s.cfg); ok {
			events = append(events, ev)
		}
	})

	c.OnError(func(r *colly.Response, err error) {
		scrapeErr = fmt.Errorf("status %d: %w", r.StatusCode, err)
	})

	if err := c.Visit(s.cfg.URL); err != nil {
		return nil, fmt.Errorf("failed to visit %s: %w", s.cfg.URL, err)
	}
	c.Wait()

	if scrapeErr != nil {
		return nil, scrapeErr
	}

	logger.Debug(ctx, "Calendar scraped", "url", s.cfg.URL, "events", len(events))
	return events, nil
}

// ParseEvents extracts events from a calendar document.
func ParseEvents(r io.Reader, cfg store.CalendarConfig) ([]types.NewsEvent, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}

	events := []types.NewsEvent{}
	doc.Find(cfg.RowSelector).Each(func(_ int, row *goquery.Selection) {
		if ev, ok := parseRow(row, cfg); ok {
			events = append(events, ev)
		}
	})
	return events, nil
}

// parseRow skips rows without a readable time, such as day separators.
func parseRow(row *goquery.Selection, cfg store.CalendarConfig) (types.NewsEvent, bool) {
	t, ok := parseTime(row.Find(cfg.TimeSelector).First(), cfg)
	if !ok {
		return types.NewsEvent{}, false
	}

	impactCell := row.Find(cfg.ImpactSelector).First()
	impact := strings.TrimSpace(impactCell.Text())
	if cfg.ImpactAttr != "" {
		if v, exists := impactCell.Attr(cfg.ImpactAttr); exists {
			impact = strings.TrimSpace(v)
		}
	}

	return types.NewsEvent{
		Time:     t,
		Currency: strings.ToUpper(strings.TrimSpace(row.Find(cfg.CurrencySelector).First().Text())),
		Impact:   impact,
		Title:    strings.TrimSpace(row.Find(cfg.TitleSelector).First().Text()),
	}, true
}

// parseTime reads a unix timestamp attribute when TimeAttr is set and the
// cell text in TimeLayout otherwise.
func parseTime(cell *goquery.Selection, cfg store.CalendarConfig) (time.Time, bool) {
	if cell.Length() == 0 {
		return time.Time{}, false
	}

	if cfg.TimeAttr != "" {
		if v, exists := cell.Attr(cfg.TimeAttr); exists {
			secs, err := cast.ToInt64E(strings.TrimSpace(v))
			if err != nil || secs <= 0 {
				return time.Time{}, false
			}
			return time.Unix(secs, 0).UTC(), true
		}
	}

	layout := cfg.TimeLayout
	if layout == "" {
		layout = time.RFC3339
	}
	t, err := time.Parse(layout, strings.TrimSpace(cell.Text()))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func getDomain(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
