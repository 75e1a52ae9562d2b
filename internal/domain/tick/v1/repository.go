package v1

import (
	"context"
	"time"
)

//go:generate mockgen -source=repository.go -destination=mock/repository_mock.go -package=mock

// Repository is the interface for the persisted tick log.
type Repository interface {
	// Store persists a tick idempotently keyed by (symbol, time). It
	// returns true when a new row was written, false when an identical
	// tick was already present, and a tick_conflict_error when the key
	// exists with a different price (the first write stays authoritative).
	Store(ctx context.Context, tick *Tick) (bool, error)
	GetByFilter(ctx context.Context, filter Filter) ([]*Tick, error)
	GetLatestBySymbol(ctx context.Context, symbol string) (*Tick, error)

	// UpdatePrice overwrites the price of an already persisted tick. It
	// returns false when no row matches (symbol, time).
	UpdatePrice(ctx context.Context, symbol string, ts time.Time, price float64) (bool, error)
	// Delete removes one tick, reporting whether a row matched.
	Delete(ctx context.Context, symbol string, ts time.Time) (bool, error)
	// DeleteRange removes every tick for symbol in [from, to) and returns
	// how many rows went away.
	DeleteRange(ctx context.Context, symbol string, from, to time.Time) (int64, error)
}
