package v1

import (
	"time"

	"github.com/Mohd-Saddam/fx-ohlc-microservice/pkg/errors"
)

// Tick represents a single timestamped price observation for a symbol.
// A tick is immutable once persisted; (Symbol, Time) is its identity.
type Tick struct {
	Time   time.Time `json:"time"`
	Symbol string    `json:"symbol"`
	Price  float64   `json:"price"`
}

// MaxSymbolLength matches the symbol column width.
const MaxSymbolLength = 10

// Validate rejects malformed ticks before they enter the distribution bus.
func (t *Tick) Validate() error {
	if t.Symbol == "" {
		return errors.NewErrorDetails("tick symbol is required", string(errors.TickValidationError), "symbol")
	}
	if len(t.Symbol) > MaxSymbolLength {
		return errors.NewErrorDetails("tick symbol exceeds maximum length", string(errors.TickValidationError), "symbol")
	}
	if t.Time.IsZero() {
		return errors.NewErrorDetails("tick time is required", string(errors.TickValidationError), "time")
	}
	if t.Price <= 0 {
		return errors.NewErrorDetails("tick price must be positive", string(errors.TickValidationError), "price")
	}
	return nil
}

// Filter represents the filter criteria for tick data.
type Filter struct {
	Symbol string
	From   *time.Time
	To     *time.Time
	Limit  int
}
