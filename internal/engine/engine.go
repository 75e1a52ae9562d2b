// Package engine maintains the materialized OHLC bucket table. Buckets are
// created lazily on the first tick, updated incrementally, and flushed to
// subscribers and durable storage on a per-granularity refresh cadence.
package engine

import (
	"context"
	"sort"
	"sync"
	"time"

	candlev1 "github.com/Mohd-Saddam/fx-ohlc-microservice/internal/domain/candle/v1"
	tickv1 "github.com/Mohd-Saddam/fx-ohlc-microservice/internal/domain/tick/v1"
	"github.com/Mohd-Saddam/fx-ohlc-microservice/pkg/interval"
	"github.com/Mohd-Saddam/fx-ohlc-microservice/pkg/logger"
	"github.com/Mohd-Saddam/fx-ohlc-microservice/pkg/metrics"
)

// Key identifies one bucket. BucketStart is kept as unix nanoseconds so the
// struct stays a comparable map key.
type Key struct {
	Symbol      string
	Granularity interval.Granularity
	BucketStart int64
}

// bucket is the mutable aggregation state for one key. All mutation happens
// under mu, which gives the single-writer-per-bucket discipline; updates to
// different buckets proceed in parallel.
type bucket struct {
	mu sync.Mutex

	open, high, low, close float64
	tickCount              int64

	// open/close follow the min/max tick timestamp seen so far, not the
	// arrival order, so late ticks within the span still set open.
	minTime time.Time
	maxTime time.Time
}

// apply folds one tick into the bucket.
func (b *bucket) apply(t tickv1.Tick) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.tickCount == 0 {
		b.open, b.high, b.low, b.close = t.Price, t.Price, t.Price, t.Price
		b.minTime, b.maxTime = t.Time, t.Time
		b.tickCount = 1
		return
	}

	if t.Price > b.high {
		b.high = t.Price
	}
	if t.Price < b.low {
		b.low = t.Price
	}
	if t.Time.Before(b.minTime) {
		b.minTime = t.Time
		b.open = t.Price
	}
	if t.Time.After(b.maxTime) {
		b.maxTime = t.Time
		b.close = t.Price
	}
	b.tickCount++
}

// snapshot copies the bucket state into a candle.
func (b *bucket) snapshot(k Key) candlev1.Candle {
	b.mu.Lock()
	defer b.mu.Unlock()

	return candlev1.Candle{
		Bucket:      time.Unix(0, k.BucketStart).UTC(),
		Symbol:      k.Symbol,
		Granularity: k.Granularity,
		Open:        b.open,
		High:        b.high,
		Low:         b.low,
		Close:       b.close,
		TickCount:   b.tickCount,
	}
}

// RefreshCadence sets how often each granularity's dirty buckets are pushed
// out. Faster granularities refresh more often because their buckets close
// sooner.
type RefreshCadence struct {
	Minute    time.Duration
	Hour      time.Duration
	Day       time.Duration
	CustomDay time.Duration
}

func (c RefreshCadence) forGranularity(g interval.Granularity) time.Duration {
	switch g {
	case interval.GranularityMinute:
		return c.Minute
	case interval.GranularityHour:
		return c.Hour
	case interval.GranularityDay:
		return c.Day
	default:
		return c.CustomDay
	}
}

// Engine computes and serves OHLC buckets for every configured interval.
type Engine struct {
	intervals interval.Set
	cadence   RefreshCadence

	mu      sync.RWMutex
	buckets map[Key]*bucket

	dirtyMu sync.Mutex
	dirty   map[interval.Granularity]map[Key]struct{}

	notify  func(candlev1.Candle)
	repo    candlev1.Repository
	logger  logger.Interface
	metrics *metrics.Metrics

	wg sync.WaitGroup
}

// New creates an engine. notify receives coalesced refresh snapshots and
// may be nil, as may repo (no durable materialization) and m.
func New(set interval.Set, cadence RefreshCadence, notify func(candlev1.Candle), repo candlev1.Repository, log logger.Interface, m *metrics.Metrics) *Engine {
	dirty := make(map[interval.Granularity]map[Key]struct{})
	for _, iv := range set.All() {
		dirty[iv.Granularity] = make(map[Key]struct{})
	}
	return &Engine{
		intervals: set,
		cadence:   cadence,
		buckets:   make(map[Key]*bucket),
		dirty:     dirty,
		notify:    notify,
		repo:      repo,
		logger:    log,
		metrics:   m,
	}
}

// Apply folds a persisted tick into every granularity's bucket and marks
// the touched buckets dirty. Multiple ticks landing in the same bucket
// between two refresh passes coalesce into a single notification.
func (e *Engine) Apply(t tickv1.Tick) {
	for _, iv := range e.intervals.All() {
		k := Key{
			Symbol:      t.Symbol,
			Granularity: iv.Granularity,
			BucketStart: iv.BucketStart(t.Time).UnixNano(),
		}
		e.getOrCreate(k).apply(t)
		e.markDirty(k)
	}
}

func (e *Engine) getOrCreate(k Key) *bucket {
	e.mu.RLock()
	b, ok := e.buckets[k]
	e.mu.RUnlock()
	if ok {
		return b
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if b, ok = e.buckets[k]; ok {
		return b
	}
	b = &bucket{}
	e.buckets[k] = b
	return b
}

func (e *Engine) markDirty(k Key) {
	e.dirtyMu.Lock()
	e.dirty[k.Granularity][k] = struct{}{}
	e.dirtyMu.Unlock()
}

// Run starts one refresher per granularity and blocks until ctx is done,
// then performs a final flush so no dirty bucket is lost on shutdown.
func (e *Engine) Run(ctx context.Context) {
	for _, iv := range e.intervals.All() {
		g := iv.Granularity
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			ticker := time.NewTicker(e.cadence.forGranularity(g))
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					e.refresh(g)
					return
				case <-ticker.C:
					e.refresh(g)
				}
			}
		}()
	}
	e.wg.Wait()
}

// refresh snapshots and emits every dirty bucket for one granularity. The
// per-granularity single goroutine keeps emission order stable per topic.
func (e *Engine) refresh(g interval.Granularity) {
	e.dirtyMu.Lock()
	keys := e.dirty[g]
	if len(keys) == 0 {
		e.dirtyMu.Unlock()
		return
	}
	e.dirty[g] = make(map[Key]struct{})
	e.dirtyMu.Unlock()

	start := time.Now()

	snapshots := make([]*candlev1.Candle, 0, len(keys))
	for k := range keys {
		e.mu.RLock()
		b := e.buckets[k]
		e.mu.RUnlock()
		if b == nil {
			continue
		}
		c := b.snapshot(k)
		snapshots = append(snapshots, &c)
	}
	// Oldest buckets first so a subscriber never sees a finalized bucket
	// followed by an older one.
	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].Bucket.Before(snapshots[j].Bucket)
	})

	for _, c := range snapshots {
		if e.notify != nil {
			e.notify(*c)
		}
	}

	if e.repo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := e.repo.UpsertBatch(ctx, snapshots)
		cancel()
		if err != nil {
			// Put the keys back so the next pass flushes the buckets'
			// then-current state; otherwise a failed flush would leave the
			// candles table missing their final state until a new tick
			// happened to dirty them again.
			e.dirtyMu.Lock()
			for k := range keys {
				e.dirty[g][k] = struct{}{}
			}
			e.dirtyMu.Unlock()
			if e.logger != nil {
				e.logger.Error(err, logger.Field{Key: "action", Value: "candle_flush"}, logger.Field{Key: "granularity", Value: string(g)})
			}
		}
	}

	if e.metrics != nil {
		e.metrics.RefreshDuration.Observe(time.Since(start).Seconds())
	}
}

// Snapshot returns the current state of one bucket, if it exists.
func (e *Engine) Snapshot(symbol string, g interval.Granularity, bucketStart time.Time) (candlev1.Candle, bool) {
	k := Key{Symbol: symbol, Granularity: g, BucketStart: bucketStart.UTC().UnixNano()}
	e.mu.RLock()
	b := e.buckets[k]
	e.mu.RUnlock()
	if b == nil {
		return candlev1.Candle{}, false
	}
	return b.snapshot(k), true
}

// QueryRange returns the buckets for one symbol and granularity whose start
// falls in [start, end), ascending by bucket start. limit > 0 caps the
// result to the earliest limit buckets. The same BucketStart function feeds
// both this read path and the live push path, so the two always agree.
func (e *Engine) QueryRange(symbol string, g interval.Granularity, start, end time.Time, limit int) []candlev1.Candle {
	startNanos := start.UTC().UnixNano()
	endNanos := end.UTC().UnixNano()

	e.mu.RLock()
	matched := make([]Key, 0)
	for k := range e.buckets {
		if k.Symbol != symbol || k.Granularity != g {
			continue
		}
		if k.BucketStart >= startNanos && k.BucketStart < endNanos {
			matched = append(matched, k)
		}
	}
	e.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].BucketStart < matched[j].BucketStart
	})
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}

	out := make([]candlev1.Candle, 0, len(matched))
	for _, k := range matched {
		e.mu.RLock()
		b := e.buckets[k]
		e.mu.RUnlock()
		if b == nil {
			continue
		}
		c := b.snapshot(k)
		if c.TickCount > 0 {
			out = append(out, c)
		}
	}
	return out
}
