package tick

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	v1 "github.com/Mohd-Saddam/fx-ohlc-microservice/internal/domain/tick/v1"
	"github.com/Mohd-Saddam/fx-ohlc-microservice/pkg/errors"
	"github.com/Mohd-Saddam/fx-ohlc-microservice/pkg/timescale"
)

const (
	insertQuery = `INSERT INTO ticks (time, symbol, price)
			  VALUES ($1, $2, $3)
			  ON CONFLICT (symbol, time) DO NOTHING`

	selectPriceQuery = `SELECT price FROM ticks WHERE symbol = $1 AND time = $2`

	updatePriceQuery = `UPDATE ticks SET price = $1 WHERE symbol = $2 AND time = $3`

	deleteQuery = `DELETE FROM ticks WHERE symbol = $1 AND time = $2`

	deleteRangeQuery = `DELETE FROM ticks WHERE symbol = $1 AND time >= $2 AND time < $3`
)

// Repository is the TimescaleDB-backed tick log.
type Repository struct {
	client timescale.Client
}

// NewRepository creates a new tick repository.
func NewRepository(client timescale.Client) *Repository {
	return &Repository{
		client: client,
	}
}

var _ v1.Repository = (*Repository)(nil)

// Store persists a tick keyed by (symbol, time). The insert swallows key
// conflicts, so a zero rows-affected tag means the key already exists; the
// persisted price then decides between an idempotent duplicate (no-op) and a
// genuine conflict, where the first write stays authoritative.
func (r *Repository) Store(ctx context.Context, tick *v1.Tick) (bool, error) {
	tag, err := r.client.Exec(ctx, insertQuery, tick.Time, tick.Symbol, tick.Price)
	if err != nil {
		return false, fmt.Errorf("failed to store tick: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}

	var existing float64
	err = r.client.QueryRow(ctx, selectPriceQuery, tick.Symbol, tick.Time).Scan(&existing)
	if err != nil {
		return false, fmt.Errorf("failed to read conflicting tick: %w", err)
	}
	if existing == tick.Price {
		return false, nil
	}
	return false, errors.NewErrorDetailsWithObject(
		fmt.Sprintf("tick already persisted with price %v", existing),
		string(errors.TickConflictError),
		"price",
		tick,
	)
}

// GetByFilter retrieves ticks matching the filter, oldest first. The To
// bound is exclusive so adjacent ranges never overlap.
func (r *Repository) GetByFilter(ctx context.Context, filter v1.Filter) ([]*v1.Tick, error) {
	query := "SELECT time, symbol, price FROM ticks WHERE 1=1"
	args := []interface{}{}
	argIndex := 1

	if filter.Symbol != "" {
		query += fmt.Sprintf(" AND symbol = $%d", argIndex)
		args = append(args, filter.Symbol)
		argIndex++
	}

	if filter.From != nil {
		query += fmt.Sprintf(" AND time >= $%d", argIndex)
		args = append(args, *filter.From)
		argIndex++
	}

	if filter.To != nil {
		query += fmt.Sprintf(" AND time < $%d", argIndex)
		args = append(args, *filter.To)
		argIndex++
	}

	query += " ORDER BY time ASC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIndex)
		args = append(args, filter.Limit)
	}

	rows, err := r.client.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ticks: %w", err)
	}
	defer rows.Close()

	var ticks []*v1.Tick
	for rows.Next() {
		tick := &v1.Tick{}
		if err := rows.Scan(&tick.Time, &tick.Symbol, &tick.Price); err != nil {
			return nil, fmt.Errorf("failed to scan tick: %w", err)
		}
		ticks = append(ticks, tick)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return ticks, nil
}

// UpdatePrice corrects the price of a persisted tick in place.
func (r *Repository) UpdatePrice(ctx context.Context, symbol string, ts time.Time, price float64) (bool, error) {
	tag, err := r.client.Exec(ctx, updatePriceQuery, price, symbol, ts)
	if err != nil {
		return false, fmt.Errorf("failed to update tick: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Delete removes one tick by its (symbol, time) key.
func (r *Repository) Delete(ctx context.Context, symbol string, ts time.Time) (bool, error) {
	tag, err := r.client.Exec(ctx, deleteQuery, symbol, ts)
	if err != nil {
		return false, fmt.Errorf("failed to delete tick: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteRange removes every tick for a symbol in [from, to).
func (r *Repository) DeleteRange(ctx context.Context, symbol string, from, to time.Time) (int64, error) {
	tag, err := r.client.Exec(ctx, deleteRangeQuery, symbol, from, to)
	if err != nil {
		return 0, fmt.Errorf("failed to delete ticks: %w", err)
	}
	return tag.RowsAffected(), nil
}

// GetLatestBySymbol retrieves the most recent tick for a symbol, or nil when
// none has been persisted yet.
func (r *Repository) GetLatestBySymbol(ctx context.Context, symbol string) (*v1.Tick, error) {
	query := `SELECT time, symbol, price
			  FROM ticks
			  WHERE symbol = $1
			  ORDER BY time DESC
			  LIMIT 1`

	tick := &v1.Tick{}
	err := r.client.QueryRow(ctx, query, symbol).Scan(&tick.Time, &tick.Symbol, &tick.Price)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest tick: %w", err)
	}

	return tick, nil
}
