package engine

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	candlev1 "github.com/Mohd-Saddam/fx-ohlc-microservice/internal/domain/candle/v1"
	tickv1 "github.com/Mohd-Saddam/fx-ohlc-microservice/internal/domain/tick/v1"
	"github.com/Mohd-Saddam/fx-ohlc-microservice/pkg/interval"
)

var testCadence = RefreshCadence{
	Minute:    10 * time.Millisecond,
	Hour:      10 * time.Millisecond,
	Day:       10 * time.Millisecond,
	CustomDay: 10 * time.Millisecond,
}

func newTestEngine(t *testing.T, notify func(candlev1.Candle)) *Engine {
	t.Helper()
	set, err := interval.NewSet(22)
	require.NoError(t, err)
	return New(set, testCadence, notify, nil, nil, nil)
}

func at(hh, mm, ss int) time.Time {
	return time.Date(2025, 12, 4, hh, mm, ss, 0, time.UTC)
}

func tick(ts time.Time, price float64) tickv1.Tick {
	return tickv1.Tick{Time: ts, Symbol: "EURUSD", Price: price}
}

func TestMinuteBucketOHLC(t *testing.T) {
	ticks := []tickv1.Tick{
		tick(at(10, 0, 0), 1.0850),
		tick(at(10, 0, 30), 1.0875),
		tick(at(10, 0, 45), 1.0845),
		tick(at(10, 0, 59), 1.0860),
	}

	testCases := []struct {
		name  string
		order []int
	}{
		{name: "in timestamp order", order: []int{0, 1, 2, 3}},
		{name: "out of timestamp order", order: []int{2, 0, 3, 1}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			e := newTestEngine(t, nil)
			for _, i := range tc.order {
				e.Apply(ticks[i])
			}

			c, ok := e.Snapshot("EURUSD", interval.GranularityMinute, at(10, 0, 0))
			require.True(t, ok)
			assert.Equal(t, 1.0850, c.Open)
			assert.Equal(t, 1.0875, c.High)
			assert.Equal(t, 1.0845, c.Low)
			assert.Equal(t, 1.0860, c.Close)
			assert.Equal(t, int64(4), c.TickCount)
		})
	}
}

func TestSingleTickBucket(t *testing.T) {
	e := newTestEngine(t, nil)
	e.Apply(tick(at(10, 0, 0), 1.1))

	c, ok := e.Snapshot("EURUSD", interval.GranularityMinute, at(10, 0, 0))
	require.True(t, ok)
	assert.Equal(t, 1.1, c.Open)
	assert.Equal(t, 1.1, c.High)
	assert.Equal(t, 1.1, c.Low)
	assert.Equal(t, 1.1, c.Close)
	assert.Equal(t, int64(1), c.TickCount)
}

func TestCustomDayBucketAssignment(t *testing.T) {
	e := newTestEngine(t, nil)
	// 23:00 lands in the custom day that started at 22:00 the same date.
	e.Apply(tick(at(23, 0, 0), 1.2))
	// 21:00 lands in the previous custom day.
	e.Apply(tick(at(21, 0, 0), 1.3))

	c, ok := e.Snapshot("EURUSD", interval.GranularityCustomDay, at(22, 0, 0))
	require.True(t, ok)
	assert.Equal(t, int64(1), c.TickCount)
	assert.Equal(t, 1.2, c.Open)

	prev, ok := e.Snapshot("EURUSD", interval.GranularityCustomDay, time.Date(2025, 12, 3, 22, 0, 0, 0, time.UTC))
	require.True(t, ok)
	assert.Equal(t, int64(1), prev.TickCount)
	assert.Equal(t, 1.3, prev.Open)
}

func TestQueryRange(t *testing.T) {
	e := newTestEngine(t, nil)
	for i := 0; i < 5; i++ {
		e.Apply(tick(at(10, i, 0), 1.0+float64(i)/100))
	}

	got := e.QueryRange("EURUSD", interval.GranularityMinute, at(10, 1, 0), at(10, 4, 0), 0)
	require.Len(t, got, 3)
	assert.Equal(t, at(10, 1, 0), got[0].Bucket)
	assert.Equal(t, at(10, 2, 0), got[1].Bucket)
	assert.Equal(t, at(10, 3, 0), got[2].Bucket)

	// limit truncates to the earliest buckets.
	limited := e.QueryRange("EURUSD", interval.GranularityMinute, at(10, 0, 0), at(11, 0, 0), 2)
	require.Len(t, limited, 2)
	assert.Equal(t, at(10, 0, 0), limited[0].Bucket)
	assert.Equal(t, at(10, 1, 0), limited[1].Bucket)

	// Other symbols and granularities stay out of the result.
	assert.Empty(t, e.QueryRange("GBPUSD", interval.GranularityMinute, at(10, 0, 0), at(11, 0, 0), 0))
}

func TestRefreshCoalescesAndNotifies(t *testing.T) {
	var mu sync.Mutex
	var pushed []candlev1.Candle
	notify := func(c candlev1.Candle) {
		mu.Lock()
		pushed = append(pushed, c)
		mu.Unlock()
	}

	e := newTestEngine(t, notify)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.Run(ctx)
		close(done)
	}()

	// Three ticks into the same minute bucket before the first refresh.
	e.Apply(tick(at(10, 0, 1), 1.10))
	e.Apply(tick(at(10, 0, 2), 1.11))
	e.Apply(tick(at(10, 0, 3), 1.09))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, c := range pushed {
			if c.Granularity == interval.GranularityMinute && c.TickCount == 3 {
				return true
			}
		}
		return false
	}, 2*time.Second, 5*time.Millisecond)

	// The three updates coalesced: no minute notification carries a
	// partial count from a second pass of the same scheduling tick.
	mu.Lock()
	minuteNotifications := 0
	for _, c := range pushed {
		if c.Granularity == interval.GranularityMinute {
			minuteNotifications++
		}
	}
	mu.Unlock()
	assert.LessOrEqual(t, minuteNotifications, 2)

	cancel()
	<-done
}

func TestPushPullConsistency(t *testing.T) {
	var mu sync.Mutex
	var last candlev1.Candle
	e := newTestEngine(t, func(c candlev1.Candle) {
		if c.Granularity != interval.GranularityMinute {
			return
		}
		mu.Lock()
		last = c
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.Run(ctx)
		close(done)
	}()

	for i := 0; i < 5; i++ {
		e.Apply(tick(at(10, 0, i), 1.10+float64(i)/1000))
	}

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return last.TickCount == 5
	}, 2*time.Second, 5*time.Millisecond)
	cancel()
	<-done

	mu.Lock()
	pushedCandle := last
	mu.Unlock()

	queried := e.QueryRange("EURUSD", interval.GranularityMinute, at(10, 0, 0), at(10, 1, 0), 0)
	require.Len(t, queried, 1)
	assert.Equal(t, pushedCandle, queried[0])
}

// flakyCandleRepo fails the first n batch flushes, then records every
// candle it accepts.
type flakyCandleRepo struct {
	mu       sync.Mutex
	failures int
	batches  int
	stored   []candlev1.Candle
}

func (r *flakyCandleRepo) Upsert(_ context.Context, c *candlev1.Candle) error {
	r.stored = append(r.stored, *c)
	return nil
}

func (r *flakyCandleRepo) UpsertBatch(_ context.Context, candles []*candlev1.Candle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.batches++
	if r.failures > 0 {
		r.failures--
		return stderrors.New("storage offline")
	}
	for _, c := range candles {
		r.stored = append(r.stored, *c)
	}
	return nil
}

func (r *flakyCandleRepo) batchCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.batches
}

func (r *flakyCandleRepo) storedCandles() []candlev1.Candle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]candlev1.Candle(nil), r.stored...)
}

func TestFailedFlushRetriesOnNextRefresh(t *testing.T) {
	repo := &flakyCandleRepo{failures: 1}
	set, err := interval.NewSet(22)
	require.NoError(t, err)
	e := New(set, testCadence, nil, repo, nil, nil)

	e.Apply(tick(at(10, 0, 0), 1.1))

	// First pass hits the storage failure; the bucket must stay dirty so
	// the second pass, with no new ticks in between, flushes it.
	e.refresh(interval.GranularityMinute)
	require.Equal(t, 1, repo.batchCount())
	require.Empty(t, repo.storedCandles())

	e.refresh(interval.GranularityMinute)
	assert.Equal(t, 2, repo.batchCount())
	stored := repo.storedCandles()
	require.Len(t, stored, 1)
	assert.Equal(t, at(10, 0, 0), stored[0].Bucket)
	assert.Equal(t, int64(1), stored[0].TickCount)

	// Once flushed, the bucket is clean again.
	e.refresh(interval.GranularityMinute)
	assert.Equal(t, 2, repo.batchCount())
}

func TestConcurrentApplySameBucket(t *testing.T) {
	e := newTestEngine(t, nil)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				e.Apply(tick(at(10, 0, i%60), 1.1))
			}
		}(w)
	}
	wg.Wait()

	c, ok := e.Snapshot("EURUSD", interval.GranularityMinute, at(10, 0, 0))
	require.True(t, ok)
	assert.Equal(t, int64(800), c.TickCount)
}
