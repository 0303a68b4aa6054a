package types

import (
	"fmt"
	"time"
)

var timeframes = map[string]time.Duration{
	"M1":  time.Minute,
	"M3":  3 * time.Minute,
	"M5":  5 * time.Minute,
	"M10": 10 * time.Minute,
	"M15": 15 * time.Minute,
	"M30": 30 * time.Minute,
	"H1":  time.Hour,
	"D1":  24 * time.Hour,
}

// TimeframeDuration returns the bar length of a timeframe code such as "M15".
func TimeframeDuration(tf string) (time.Duration, error) {
	d, ok := timeframes[tf]
	if !ok {
		return 0, fmt.Errorf("unsupported timeframe %q", tf)
	}
	return d, nil
}
