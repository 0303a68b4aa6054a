package zerodha

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	kiteconnect "github.com/zerodha/gokiteconnect/v4"

	"zone-trading-bot/internal/interfaces"
	"zone-trading-bot/internal/logger"
	"zone-trading-bot/internal/types"
)

type Params struct {
	APIKey      string
	AccessToken string
	Exchange    string
	Product     string
	HistoryDays int
	Timeout     time.Duration
}

// Zerodha is a live Kite Connect broker. Every read goes to the REST API;
// only the instrument table is kept between cycles.
type Zerodha struct {
	p      Params
	kc     kiteClient
	mapper *instrumentMapper
	now    func() time.Time
}

var _ interfaces.Broker = (*Zerodha)(nil)

func NewZerodha(p Params) *Zerodha {
	return newWithClient(p, newKiteClient(p.APIKey, p.AccessToken, p.Timeout))
}

func newWithClient(p Params, kc kiteClient) *Zerodha {
	if p.Exchange == "" {
		p.Exchange = kiteconnect.ExchangeNSE
	}
	if p.Product == "" {
		p.Product = kiteconnect.ProductMIS
	}
	if p.HistoryDays <= 0 {
		p.HistoryDays = 30
	}
	return &Zerodha{
		p:      p,
		kc:     kc,
		mapper: newInstrumentMapper(),
		now:    time.Now,
	}
}

// Start loads the exchange instrument dump and registers symbols.
func (z *Zerodha) Start(ctx context.Context, symbols []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	instruments, err := z.kc.GetInstrumentsByExchange(z.p.Exchange)
	if err != nil {
		return fmt.Errorf("failed to load %s instruments: %w", z.p.Exchange, err)
	}

	wanted := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		wanted[s] = true
	}

	for _, inst := range instruments {
		if !wanted[inst.Tradingsymbol] {
			continue
		}
		lot := float64(inst.LotSize)
		if lot <= 0 {
			lot = 1
		}
		z.mapper.addMapping(inst.Tradingsymbol, instrument{
			token: int(inst.InstrumentToken),
			meta: types.SymbolMeta{
				Point:     inst.TickSize,
				TickValue: inst.TickSize,
				LotStep:   lot,
				MinLot:    lot,
			},
		})
	}

	var missing []string
	for _, s := range symbols {
		if _, ok := z.mapper.get(s); !ok {
			missing = append(missing, s)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w on %s: %s", types.ErrUnknownSymbol, z.p.Exchange, strings.Join(missing, ", "))
	}

	logger.Info(ctx, "Instruments loaded", "exchange", z.p.Exchange, "symbols", z.mapper.size())
	return nil
}

func (z *Zerodha) Stop(ctx context.Context) {
	z.mapper.clear()
}

func (z *Zerodha) instrument(symbol string) (instrument, error) {
	inst, ok := z.mapper.get(symbol)
	if !ok {
		return instrument{}, fmt.Errorf("%w: %s", types.ErrUnknownSymbol, symbol)
	}
	return inst, nil
}

// FetchBars pulls historical candles covering HistoryDays and keeps the last count.
func (z *Zerodha) FetchBars(ctx context.Context, symbol, timeframe string, count int) ([]types.PriceBar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	inst, err := z.instrument(symbol)
	if err != nil {
		return nil, err
	}
	interval, ok := kiteIntervals[timeframe]
	if !ok {
		return nil, fmt.Errorf("unsupported timeframe %q", timeframe)
	}

	to := z.now()
	from := to.AddDate(0, 0, -z.p.HistoryDays)
	candles, err := z.kc.GetHistoricalData(inst.token, interval, from, to, false, false)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", types.ErrDataUnavailable, symbol, err)
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("%w: no candles for %s", types.ErrDataUnavailable, symbol)
	}

	if count > 0 && len(candles) > count {
		candles = candles[len(candles)-count:]
	}
	bars := make([]types.PriceBar, len(candles))
	for i, c := range candles {
		bars[i] = types.PriceBar{
			Time:   c.Date.Time,
			Open:   c.Open,
			High:   c.High,
			Low:    c.Low,
			Close:  c.Close,
			Volume: float64(c.Volume),
		}
	}
	return bars, nil
}

// CurrentTick reads the top of book, falling back to the last trade price
// when the depth is empty.
func (z *Zerodha) CurrentTick(ctx context.Context, symbol string) (types.Tick, error) {
	if err := ctx.Err(); err != nil {
		return types.Tick{}, err
	}

	key := z.p.Exchange + ":" + symbol
	quotes, err := z.kc.GetQuote(key)
	if err != nil {
		return types.Tick{}, fmt.Errorf("%w: %s: %v", types.ErrTickUnavailable, symbol, err)
	}
	q, ok := quotes[key]
	if !ok || q.LastPrice <= 0 {
		return types.Tick{}, fmt.Errorf("%w: no quote for %s", types.ErrTickUnavailable, symbol)
	}

	tick := types.Tick{Bid: q.LastPrice, Ask: q.LastPrice, Time: q.Timestamp.Time}
	if len(q.Depth.Buy) > 0 && q.Depth.Buy[0].Price > 0 {
		tick.Bid = q.Depth.Buy[0].Price
	}
	if len(q.Depth.Sell) > 0 && q.Depth.Sell[0].Price > 0 {
		tick.Ask = q.Depth.Sell[0].Price
	}
	if tick.Time.IsZero() {
		tick.Time = z.now()
	}
	return tick, nil
}

func (z *Zerodha) SymbolMeta(ctx context.Context, symbol string) (types.SymbolMeta, error) {
	inst, err := z.instrument(symbol)
	if err != nil {
		return types.SymbolMeta{}, err
	}
	return inst.meta, nil
}

// OpenPositions returns the net positions for symbol. Kite nets fills per
// product, so there is at most one position per symbol and product.
func (z *Zerodha) OpenPositions(ctx context.Context, symbol string) ([]types.Position, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	all, err := z.kc.GetPositions()
	if err != nil {
		return nil, fmt.Errorf("%w: positions: %v", types.ErrAccountUnavailable, err)
	}

	var out []types.Position
	for _, p := range all.Net {
		if p.Tradingsymbol != symbol || p.Exchange != z.p.Exchange || p.Quantity == 0 {
			continue
		}
		side := types.SideBuy
		if p.Quantity < 0 {
			side = types.SideSell
		}
		out = append(out, types.Position{
			ID:        positionID(p.Exchange, p.Tradingsymbol, p.Product),
			Symbol:    p.Tradingsymbol,
			Side:      side,
			OpenPrice: p.AveragePrice,
			Volume:    math.Abs(float64(p.Quantity)),
			Product:   p.Product,
		})
	}
	return out, nil
}

func positionID(exchange, symbol, product string) string {
	return exchange + ":" + symbol + ":" + product
}

func (z *Zerodha) AccountSnapshot(ctx context.Context) (types.AccountSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return types.AccountSnapshot{}, err
	}

	m, err := z.kc.GetUserMargins()
	if err != nil {
		return types.AccountSnapshot{}, fmt.Errorf("%w: margins: %v", types.ErrAccountUnavailable, err)
	}
	return types.AccountSnapshot{
		Balance:    m.Equity.Available.Cash + m.Equity.Available.Collateral,
		FreeMargin: m.Equity.Net,
	}, nil
}

// RequiredMargin asks Kite for the total margin a market order would block.
func (z *Zerodha) RequiredMargin(ctx context.Context, side types.Side, symbol string, volume, price float64) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	res, err := z.kc.GetOrderMargins(kiteconnect.GetMarginParams{
		OrderParams: []kiteconnect.OrderMarginParam{{
			Exchange:        z.p.Exchange,
			Tradingsymbol:   symbol,
			TransactionType: transactionType(side),
			Variety:         kiteconnect.VarietyRegular,
			Product:         z.p.Product,
			OrderType:       kiteconnect.OrderTypeMarket,
			Quantity:        volume,
			Price:           price,
		}},
		Compact: true,
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", types.ErrMarginCalc, err)
	}
	if len(res) == 0 {
		return 0, fmt.Errorf("%w: empty response for %s", types.ErrMarginCalc, symbol)
	}
	return res[0].Total, nil
}

// SubmitOrder places a regular market order. Stop-loss and take-profit are
// not sent: regular orders carry no bracket legs.
func (z *Zerodha) SubmitOrder(ctx context.Context, req types.OrderRequest) (types.OrderResult, error) {
	return z.placeMarket(ctx, req.Symbol, req.Side, req.Volume, z.p.Product, req.ClientID)
}

// ClosePosition flattens pos with an opposite market order in its product.
func (z *Zerodha) ClosePosition(ctx context.Context, pos types.Position) (types.OrderResult, error) {
	product := pos.Product
	if product == "" {
		product = z.p.Product
	}
	return z.placeMarket(ctx, pos.Symbol, pos.Side.Opposite(), pos.Volume, product, "")
}

func (z *Zerodha) placeMarket(ctx context.Context, symbol string, side types.Side, volume float64, product, tag string) (types.OrderResult, error) {
	if err := ctx.Err(); err != nil {
		return types.OrderResult{}, err
	}

	qty := int(math.Round(volume))
	if qty <= 0 {
		return types.OrderResult{}, &types.OrderRejectedError{Message: fmt.Sprintf("quantity %v rounds to zero", volume)}
	}

	resp, err := z.kc.PlaceOrder(kiteconnect.VarietyRegular, kiteconnect.OrderParams{
		Exchange:        z.p.Exchange,
		Tradingsymbol:   symbol,
		Validity:        kiteconnect.ValidityDay,
		Product:         product,
		OrderType:       kiteconnect.OrderTypeMarket,
		TransactionType: transactionType(side),
		Quantity:        qty,
		Tag:             orderTag(tag),
	})
	if err != nil {
		return types.OrderResult{}, toRejected(err)
	}

	return types.OrderResult{OrderID: resp.OrderID, Status: "PLACED"}, nil
}

func transactionType(side types.Side) string {
	if side == types.SideSell {
		return kiteconnect.TransactionTypeSell
	}
	return kiteconnect.TransactionTypeBuy
}

// orderTag trims a client id to Kite's 20 character tag limit.
func orderTag(id string) string {
	id = strings.ReplaceAll(id, "-", "")
	if len(id) > 20 {
		return id[:20]
	}
	return id
}

func toRejected(err error) error {
	var ke kiteconnect.Error
	if errors.As(err, &ke) {
		return &types.OrderRejectedError{Code: ke.Code, Message: ke.Message}
	}
	return &types.OrderRejectedError{Message: err.Error()}
}
