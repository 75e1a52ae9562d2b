package v1

import (
	"time"

	"github.com/Mohd-Saddam/fx-ohlc-microservice/pkg/interval"
)

// Candle is one OHLC summary over a fixed time span at one granularity.
// Open and Close follow tick timestamps, not arrival order.
type Candle struct {
	Bucket      time.Time            `json:"bucket"`
	Symbol      string               `json:"symbol"`
	Granularity interval.Granularity `json:"granularity"`
	Open        float64              `json:"open"`
	High        float64              `json:"high"`
	Low         float64              `json:"low"`
	Close       float64              `json:"close"`
	TickCount   int64                `json:"tick_count"`
}
