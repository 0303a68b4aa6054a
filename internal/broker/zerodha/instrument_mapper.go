package zerodha

import (
	"sync"

	"zone-trading-bot/internal/types"
)

type instrument struct {
	token int
	meta  types.SymbolMeta
}

// instrumentMapper resolves trading symbols to instrument tokens and
// contract metadata loaded from the exchange instrument dump.
type instrumentMapper struct {
	bySymbol map[string]instrument
	mu       sync.RWMutex
}

func newInstrumentMapper() *instrumentMapper {
	return &instrumentMapper{
		bySymbol: make(map[string]instrument),
	}
}

func (im *instrumentMapper) addMapping(symbol string, inst instrument) {
	im.mu.Lock()
	defer im.mu.Unlock()

	im.bySymbol[symbol] = inst
}

func (im *instrumentMapper) get(symbol string) (instrument, bool) {
	im.mu.RLock()
	defer im.mu.RUnlock()

	inst, exists := im.bySymbol[symbol]
	return inst, exists
}

func (im *instrumentMapper) size() int {
	im.mu.RLock()
	defer im.mu.RUnlock()

	return len(im.bySymbol)
}

func (im *instrumentMapper) clear() {
	im.mu.Lock()
	defer im.mu.Unlock()

	im.bySymbol = make(map[string]instrument)
}
