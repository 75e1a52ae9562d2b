package candle

import (
	"context"
	"fmt"

	v1 "github.com/Mohd-Saddam/fx-ohlc-microservice/internal/domain/candle/v1"
	"github.com/Mohd-Saddam/fx-ohlc-microservice/pkg/timescale"
)

const upsertQuery = `INSERT INTO candles (bucket, symbol, granularity, open, high, low, close, tick_count)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			  ON CONFLICT (symbol, granularity, bucket) DO UPDATE SET
				  open = EXCLUDED.open,
				  high = EXCLUDED.high,
				  low = EXCLUDED.low,
				  close = EXCLUDED.close,
				  tick_count = EXCLUDED.tick_count`

// Repository is the TimescaleDB-backed candle materialization.
type Repository struct {
	client timescale.Client
}

// NewRepository creates a new candle repository.
func NewRepository(client timescale.Client) *Repository {
	return &Repository{
		client: client,
	}
}

var _ v1.Repository = (*Repository)(nil)

// Upsert writes one candle, replacing any previous state of the same bucket.
func (r *Repository) Upsert(ctx context.Context, candle *v1.Candle) error {
	_, err := r.client.Exec(ctx, upsertQuery,
		candle.Bucket, candle.Symbol, string(candle.Granularity),
		candle.Open, candle.High, candle.Low, candle.Close, candle.TickCount)
	if err != nil {
		return fmt.Errorf("failed to upsert candle: %w", err)
	}
	return nil
}

// UpsertBatch writes a refresh pass worth of candles. Each row is upserted
// individually; a failure aborts the batch, and the engine re-marks the
// snapshotted buckets dirty so a later refresh retries the flush.
func (r *Repository) UpsertBatch(ctx context.Context, candles []*v1.Candle) error {
	for _, candle := range candles {
		if err := r.Upsert(ctx, candle); err != nil {
			return err
		}
	}
	return nil
}
