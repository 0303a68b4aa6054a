// Package zones finds supply and demand levels from five-bar swing patterns.
package zones

import (
	"math"

	"zone-trading-bot/internal/types"
)

// MinBars is the shortest series that can contain a zone.
const MinBars = 5

// Detect scans bars once and returns the supply and demand zones in
// detection order. Both results are non-nil.
//
// A demand zone sits at i when low[i] is below both neighbours, lows keep
// rising for two bars after it and kept falling for two bars before it.
// Supply is the mirror image on highs.
func Detect(bars []types.PriceBar) (supply, demand []types.Zone) {
	supply = []types.Zone{}
	demand = []types.Zone{}
	if len(bars) < MinBars {
		return supply, demand
	}

	for i := 2; i <= len(bars)-3; i++ {
		if isDemand(bars, i) {
			demand = append(demand, types.Zone{
				Time:  bars[i].Time,
				Index: i,
				Price: bars[i].Low,
				Kind:  types.ZoneDemand,
			})
		}
		if isSupply(bars, i) {
			supply = append(supply, types.Zone{
				Time:  bars[i].Time,
				Index: i,
				Price: bars[i].High,
				Kind:  types.ZoneSupply,
			})
		}
	}
	return supply, demand
}

func isDemand(b []types.PriceBar, i int) bool {
	return b[i].Low < b[i-1].Low &&
		b[i].Low < b[i+1].Low &&
		b[i+1].Low < b[i+2].Low &&
		b[i-1].Low < b[i-2].Low
}

func isSupply(b []types.PriceBar, i int) bool {
	return b[i].High > b[i-1].High &&
		b[i].High > b[i+1].High &&
		b[i+1].High > b[i+2].High &&
		b[i-1].High > b[i-2].High
}

// Latest returns the most recent zone.
func Latest(zs []types.Zone) (types.Zone, bool) {
	if len(zs) == 0 {
		return types.Zone{}, false
	}
	return zs[len(zs)-1], true
}

// Spread returns the absolute price distance between the latest supply and
// latest demand zone. ok is false unless both lists are non-empty.
func Spread(supply, demand []types.Zone) (dist float64, ok bool) {
	s, okS := Latest(supply)
	d, okD := Latest(demand)
	if !okS || !okD {
		return 0, false
	}
	return math.Abs(s.Price - d.Price), true
}
