package types

import "time"

// Side is the direction of an order or position.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// Title returns "Buy" or "Sell" for order comments.
func (s Side) Title() string {
	if s == SideBuy {
		return "Buy"
	}
	return "Sell"
}

type PriceBar struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Range returns high minus low.
func (b PriceBar) Range() float64 {
	return b.High - b.Low
}

// Body returns the absolute open-to-close distance.
func (b PriceBar) Body() float64 {
	if b.Close >= b.Open {
		return b.Close - b.Open
	}
	return b.Open - b.Close
}

type ZoneKind string

const (
	ZoneSupply ZoneKind = "supply"
	ZoneDemand ZoneKind = "demand"
)

// Zone is a structural price level found by a single detection scan.
type Zone struct {
	Time  time.Time `json:"time"`
	Index int       `json:"index"`
	Price float64   `json:"price"`
	Kind  ZoneKind  `json:"kind"`
}

type TrendLabel string

const (
	TrendBullish TrendLabel = "BULLISH"
	TrendBearish TrendLabel = "BEARISH"
	TrendRanging TrendLabel = "RANGING"
)

// TrendState is the per-cycle trend classification. Strength is a
// percentage move and is never negative.
type TrendState struct {
	Label     TrendLabel `json:"label"`
	Strength  float64    `json:"strength"`
	FastEMA   float64    `json:"fast_ema"`
	SlowEMA   float64    `json:"slow_ema"`
	RSI       float64    `json:"rsi"`
	ChangePct float64    `json:"change_pct"`
}

// Reinforces reports whether the trend label points the same way as side.
func (t TrendState) Reinforces(side Side) bool {
	return (side == SideBuy && t.Label == TrendBullish) || (side == SideSell && t.Label == TrendBearish)
}

// Opposes reports whether the trend label points against side.
func (t TrendState) Opposes(side Side) bool {
	return (side == SideBuy && t.Label == TrendBearish) || (side == SideSell && t.Label == TrendBullish)
}

// Position is a broker-owned snapshot; the engine never mutates it.
type Position struct {
	ID        string  `json:"id"`
	Symbol    string  `json:"symbol"`
	Side      Side    `json:"side"`
	OpenPrice float64 `json:"open_price"`
	Volume    float64 `json:"volume"`
	Product   string  `json:"product,omitempty"`
}

type OrderRequest struct {
	Symbol     string  `json:"symbol"`
	Side       Side    `json:"side"`
	Volume     float64 `json:"volume"`
	Price      float64 `json:"price"`
	StopLoss   float64 `json:"stop_loss"`
	TakeProfit float64 `json:"take_profit"`
	Comment    string  `json:"comment"`
	Deviation  int     `json:"deviation"`
	Magic      int     `json:"magic"`
	ClientID   string  `json:"client_id,omitempty"`
}

// OrderResult is the one-shot outcome of a submit or close request.
type OrderResult struct {
	OrderID string  `json:"order_id"`
	Status  string  `json:"status"`
	Price   float64 `json:"price"`
	Message string  `json:"message,omitempty"`
}

type AccountSnapshot struct {
	Balance    float64 `json:"balance"`
	FreeMargin float64 `json:"free_margin"`
}

type Tick struct {
	Bid  float64   `json:"bid"`
	Ask  float64   `json:"ask"`
	Time time.Time `json:"time"`
}

// SymbolMeta describes an instrument. TickValue is the account-currency
// value of a one point move for one lot.
type SymbolMeta struct {
	Point     float64 `json:"point"`
	TickValue float64 `json:"tick_value"`
	LotStep   float64 `json:"lot_step"`
	MinLot    float64 `json:"min_lot,omitempty"`
}

type Verdict string

const (
	VerdictProposed Verdict = "PROPOSED"
	VerdictRejected Verdict = "REJECTED"
)

// Decision is the outcome of one guard evaluation. Order is set only
// when Verdict is VerdictProposed.
type Decision struct {
	Verdict Verdict       `json:"verdict"`
	Side    Side          `json:"side"`
	Reason  string        `json:"reason,omitempty"`
	Order   *OrderRequest `json:"order,omitempty"`
}

func (d Decision) Proposed() bool {
	return d.Verdict == VerdictProposed
}

// WithReason annotates the decision, typically with the entry rule that fired.
func (d Decision) WithReason(reason string) Decision {
	d.Reason = reason
	return d
}

// Reject builds a rejected decision.
func Reject(side Side, reason string) Decision {
	return Decision{Verdict: VerdictRejected, Side: side, Reason: reason}
}

// Propose builds a proposed decision.
func Propose(req OrderRequest) Decision {
	return Decision{Verdict: VerdictProposed, Side: req.Side, Order: &req}
}

// Guard rejection reasons.
const (
	ReasonVolatilityUnknown  = "volatility unknown"
	ReasonHighVolatility     = "high volatility"
	ReasonMaxPositions       = "max positions"
	ReasonHedgePrevented     = "hedge prevented"
	ReasonZonesTooClose      = "zones too close"
	ReasonCounterTrend       = "counter trend"
	ReasonNoEntrySignal      = "no entry signal"
	ReasonDuplicatePrice     = "duplicate price"
	ReasonInsufficientMargin = "insufficient margin"
	ReasonMarginCalcFailed   = "margin calculation failed"
	ReasonInvalidMeta        = "invalid symbol meta"
	ReasonNewsBlackout       = "news blackout"
	ReasonNoPrice            = "no price"
)

type EventKind string

const (
	EventOrderSubmitted EventKind = "ORDER_SUBMITTED"
	EventOrderFailed    EventKind = "ORDER_FAILED"
	EventPositionClosed EventKind = "POSITION_CLOSED"
	EventCloseFailed    EventKind = "CLOSE_FAILED"
	EventRejected       EventKind = "REJECTED"
)

// CycleEvent records one observable outcome of a decision cycle.
type CycleEvent struct {
	Kind     EventKind     `json:"kind"`
	Side     Side          `json:"side,omitempty"`
	Reason   string        `json:"reason,omitempty"`
	Order    *OrderRequest `json:"order,omitempty"`
	Position *Position     `json:"position,omitempty"`
	Profit   float64       `json:"profit,omitempty"`
	OrderID  string        `json:"order_id,omitempty"`
	Err      error         `json:"-"`
}

// CycleInput carries the fresh per-cycle snapshot for one symbol.
type CycleInput struct {
	Symbol    string
	Bars      []PriceBar
	Positions []Position
	Account   AccountSnapshot
	Tick      Tick
	Meta      SymbolMeta
	// Blackout, when set, rejects new entries for this cycle.
	Blackout *NewsEvent
}

type CycleResult struct {
	Symbol string       `json:"symbol"`
	Time   time.Time    `json:"time"`
	Price  float64      `json:"price"`
	Trend  TrendState   `json:"trend"`
	Supply []Zone       `json:"supply"`
	Demand []Zone       `json:"demand"`
	Events []CycleEvent `json:"events"`
}

// Submitted returns the events for orders accepted by the broker.
func (r *CycleResult) Submitted() []CycleEvent {
	return r.filter(EventOrderSubmitted)
}

// Rejections returns the guard rejections of the cycle.
func (r *CycleResult) Rejections() []CycleEvent {
	return r.filter(EventRejected)
}

func (r *CycleResult) filter(kind EventKind) []CycleEvent {
	var out []CycleEvent
	for _, ev := range r.Events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

// NewsEvent is a scheduled economic release.
type NewsEvent struct {
	Time     time.Time `json:"time"`
	Currency string    `json:"currency"`
	Impact   string    `json:"impact"`
	Title    string    `json:"title"`
}

// DaySummary describes one end-of-day journal report. Path is empty when
// the day had no journal entries and no file was written.
type DaySummary struct {
	Date         string  `json:"date"`
	Path         string  `json:"path,omitempty"`
	Entries      int     `json:"entries"`
	Symbols      int     `json:"symbols"`
	ProfitPoints float64 `json:"profit_points"`
}
