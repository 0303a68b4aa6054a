package types

import (
	"errors"
	"fmt"
)

var (
	ErrDataUnavailable    = errors.New("market data unavailable")
	ErrAccountUnavailable = errors.New("account unavailable")
	ErrTickUnavailable    = errors.New("tick unavailable")
	ErrMarginCalc         = errors.New("margin calculation failed")
	ErrUnknownSymbol      = errors.New("unknown symbol")
)

// OrderRejectedError is returned by executors when the broker refuses a
// submit or close request.
type OrderRejectedError struct {
	Code    int
	Message string
}

func (e *OrderRejectedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("order rejected: code %d", e.Code)
	}
	return fmt.Sprintf("order rejected: code %d: %s", e.Code, e.Message)
}

// IsOrderRejected reports whether err carries an OrderRejectedError and
// returns its code.
func IsOrderRejected(err error) (int, bool) {
	var rej *OrderRejectedError
	if errors.As(err, &rej) {
		return rej.Code, true
	}
	return 0, false
}
