package zerodha

import (
	"net/http"
	"time"

	kiteconnect "github.com/zerodha/gokiteconnect/v4"
)

// kiteClient is the subset of the Kite Connect REST client the adapter uses.
type kiteClient interface {
	GetInstrumentsByExchange(exchange string) (kiteconnect.Instruments, error)
	GetHistoricalData(instrumentToken int, interval string, fromDate, toDate time.Time, continuous, oi bool) ([]kiteconnect.HistoricalData, error)
	GetQuote(instruments ...string) (kiteconnect.Quote, error)
	GetPositions() (kiteconnect.Positions, error)
	GetUserMargins() (kiteconnect.AllMargins, error)
	GetOrderMargins(params kiteconnect.GetMarginParams) ([]kiteconnect.OrderMargins, error)
	PlaceOrder(variety string, params kiteconnect.OrderParams) (kiteconnect.OrderResponse, error)
}

var _ kiteClient = (*kiteconnect.Client)(nil)

func newKiteClient(apiKey, accessToken string, timeout time.Duration) kiteClient {
	kc := kiteconnect.New(apiKey)
	kc.SetAccessToken(accessToken)
	if timeout > 0 {
		kc.SetHTTPClient(&http.Client{Timeout: timeout})
	}
	return kc
}

// kiteIntervals maps bot timeframes onto historical candle intervals.
var kiteIntervals = map[string]string{
	"M1":  "minute",
	"M3":  "3minute",
	"M5":  "5minute",
	"M10": "10minute",
	"M15": "15minute",
	"M30": "30minute",
	"H1":  "60minute",
	"D1":  "day",
}
