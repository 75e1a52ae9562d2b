package v1

import "context"

//go:generate mockgen -source=repository.go -destination=mock/repository_mock.go -package=mock

// Repository stores refreshed candles as a durable materialization of the
// in-memory bucket table. Upserts replace the whole row so repeated
// refreshes of the same bucket converge on the latest state.
type Repository interface {
	Upsert(ctx context.Context, candle *Candle) error
	UpsertBatch(ctx context.Context, candles []*Candle) error
}
