package md

import "time"

// Bar is one daily OHLCV row, oldest rows first in any slice of them.
type Bar struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}
