// Package pipeline wires the tick flow end to end: validated ticks go onto
// the distribution bus, the persistence consumer drains them into the tick
// log, and only ticks that produced a new row reach the aggregation engine
// and the live broadcast. Queries and subscriptions enter through here as
// well, so the transports never touch the internals directly.
package pipeline

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/Mohd-Saddam/fx-ohlc-microservice/internal/broadcast"
	"github.com/Mohd-Saddam/fx-ohlc-microservice/internal/bus"
	candlev1 "github.com/Mohd-Saddam/fx-ohlc-microservice/internal/domain/candle/v1"
	tickv1 "github.com/Mohd-Saddam/fx-ohlc-microservice/internal/domain/tick/v1"
	"github.com/Mohd-Saddam/fx-ohlc-microservice/internal/engine"
	"github.com/Mohd-Saddam/fx-ohlc-microservice/pkg/config"
	"github.com/Mohd-Saddam/fx-ohlc-microservice/pkg/errors"
	"github.com/Mohd-Saddam/fx-ohlc-microservice/pkg/interval"
	"github.com/Mohd-Saddam/fx-ohlc-microservice/pkg/logger"
	"github.com/Mohd-Saddam/fx-ohlc-microservice/pkg/metrics"
)

// persistGroup is the bus consumer group feeding the tick log.
const persistGroup = "persistence"

const persistAttemptTimeout = 5 * time.Second

// Pipeline owns the moving parts between a tick source and the outside
// world.
type Pipeline struct {
	cfg config.PipelineConfig

	bus       *bus.Bus
	group     *bus.Group
	engine    *engine.Engine
	broadcast *broadcast.Manager
	tickRepo  tickv1.Repository

	logger  logger.Interface
	metrics *metrics.Metrics
}

// New assembles a pipeline from its parts.
func New(
	cfg config.PipelineConfig,
	b *bus.Bus,
	e *engine.Engine,
	bm *broadcast.Manager,
	tickRepo tickv1.Repository,
	log logger.Interface,
	m *metrics.Metrics,
) *Pipeline {
	// Register the persistence group up front so no tick published before
	// Run starts can miss it.
	return &Pipeline{
		cfg:       cfg,
		bus:       b,
		group:     b.Group(persistGroup),
		engine:    e,
		broadcast: bm,
		tickRepo:  tickRepo,
		logger:    log,
		metrics:   m,
	}
}

// Ingest validates a tick and publishes it to the bus. Publish never
// blocks, so a producer is isolated from any slow consumer downstream.
// A validation failure is returned to the caller and nothing is published.
func (p *Pipeline) Ingest(tick tickv1.Tick) error {
	if err := tick.Validate(); err != nil {
		return err
	}
	p.bus.Publish(tick)
	if p.metrics != nil {
		p.metrics.TicksIngested.Inc()
	}
	return nil
}

// Run drives the pipeline until ctx is done, then shuts down in dependency
// order: the bus closes first, the persistence consumer drains what is
// buffered, and only then do the engine (final flush) and broadcast stop.
func (p *Pipeline) Run(ctx context.Context) {
	inner, cancelInner := context.WithCancel(context.Background())

	var innerWG sync.WaitGroup
	innerWG.Add(2)
	go func() {
		defer innerWG.Done()
		p.engine.Run(inner)
	}()
	go func() {
		defer innerWG.Done()
		p.broadcast.Run(inner)
	}()

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for tick := range p.group.Ticks() {
			p.persist(tick)
		}
	}()

	<-ctx.Done()

	p.bus.Close()
	<-drained
	cancelInner()
	innerWG.Wait()
}

// persist writes one tick with a bounded retry budget. Conflicts and
// validation-class failures are never retried; only after a NEW row lands
// does the tick feed aggregation and broadcast, which keeps replays
// idempotent end to end.
func (p *Pipeline) persist(tick tickv1.Tick) {
	backoff := p.cfg.PersistBackoff

	for attempt := 1; ; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), persistAttemptTimeout)
		inserted, err := p.tickRepo.Store(ctx, &tick)
		cancel()

		if err == nil {
			if !inserted {
				return
			}
			if p.metrics != nil {
				p.metrics.TicksPersisted.Inc()
			}
			p.engine.Apply(tick)
			p.broadcast.OnTick(tick)
			return
		}

		if stderrors.Is(err, errors.NewErrorDetails("", string(errors.TickConflictError), "")) {
			if p.metrics != nil {
				p.metrics.TickConflicts.Inc()
			}
			p.logger.Warn("dropping conflicting tick",
				logger.Field{Key: "symbol", Value: tick.Symbol},
				logger.Field{Key: "time", Value: tick.Time},
				logger.Field{Key: "price", Value: tick.Price},
			)
			return
		}

		if attempt >= p.cfg.PersistMaxAttempts {
			if p.metrics != nil {
				p.metrics.PersistFailed.Inc()
			}
			p.logger.Error(errors.TracerFromError(err),
				logger.Field{Key: "action", Value: "persist_tick"},
				logger.Field{Key: "attempts", Value: attempt},
			)
			return
		}

		if p.metrics != nil {
			p.metrics.PersistRetries.Inc()
		}
		time.Sleep(backoff)
		backoff *= 2
	}
}

// QueryRange serves candles in [start, end) ascending from the engine.
func (p *Pipeline) QueryRange(symbol string, g interval.Granularity, start, end time.Time, limit int) []candlev1.Candle {
	return p.engine.QueryRange(symbol, g, start, end, limit)
}

// Subscribe opens a live subscription for (symbol, topic).
func (p *Pipeline) Subscribe(symbol string, topic broadcast.Topic) *broadcast.Subscription {
	return p.broadcast.Subscribe(symbol, topic)
}

// SubscriptionStats reports live subscription counts per topic.
func (p *Pipeline) SubscriptionStats() map[broadcast.Topic]int {
	return p.broadcast.Stats()
}

// LatestTick returns the most recent persisted tick for a symbol.
func (p *Pipeline) LatestTick(ctx context.Context, symbol string) (*tickv1.Tick, error) {
	return p.tickRepo.GetLatestBySymbol(ctx, symbol)
}

// TickHistory returns persisted ticks matching the filter.
func (p *Pipeline) TickHistory(ctx context.Context, filter tickv1.Filter) ([]*tickv1.Tick, error) {
	return p.tickRepo.GetByFilter(ctx, filter)
}

// Corrections go to the durable log only and bypass the bus. The live
// bucket table is append-only, so aggregates built before a correction keep
// the uncorrected values until the process restarts.

// UpdateTick corrects the price of a persisted tick. It returns false when
// no tick exists at (symbol, ts).
func (p *Pipeline) UpdateTick(ctx context.Context, symbol string, ts time.Time, price float64) (bool, error) {
	if price <= 0 {
		return false, errors.NewErrorDetails("price must be positive", string(errors.TickValidationError), "price")
	}
	return p.tickRepo.UpdatePrice(ctx, symbol, ts, price)
}

// DeleteTick removes one persisted tick, reporting whether it existed.
func (p *Pipeline) DeleteTick(ctx context.Context, symbol string, ts time.Time) (bool, error) {
	return p.tickRepo.Delete(ctx, symbol, ts)
}

// DeleteTickRange removes every persisted tick for symbol in [from, to).
func (p *Pipeline) DeleteTickRange(ctx context.Context, symbol string, from, to time.Time) (int64, error) {
	return p.tickRepo.DeleteRange(ctx, symbol, from, to)
}
