package pipeline

import (
	"context"
	stderrors "errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mohd-Saddam/fx-ohlc-microservice/internal/broadcast"
	"github.com/Mohd-Saddam/fx-ohlc-microservice/internal/bus"
	tickv1 "github.com/Mohd-Saddam/fx-ohlc-microservice/internal/domain/tick/v1"
	"github.com/Mohd-Saddam/fx-ohlc-microservice/internal/engine"
	"github.com/Mohd-Saddam/fx-ohlc-microservice/pkg/config"
	"github.com/Mohd-Saddam/fx-ohlc-microservice/pkg/errors"
	"github.com/Mohd-Saddam/fx-ohlc-microservice/pkg/interval"
	"github.com/Mohd-Saddam/fx-ohlc-microservice/pkg/logger"
)

// fakeTickRepo is an in-memory tick log with the same idempotency contract
// as the TimescaleDB repository.
type fakeTickRepo struct {
	mu       sync.Mutex
	rows     map[string]float64
	failures int
	attempts int
}

func newFakeTickRepo() *fakeTickRepo {
	return &fakeTickRepo{rows: make(map[string]float64)}
}

func (r *fakeTickRepo) key(t *tickv1.Tick) string {
	return t.Symbol + "|" + strconv.FormatInt(t.Time.UnixNano(), 10)
}

func (r *fakeTickRepo) Store(_ context.Context, t *tickv1.Tick) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.attempts++
	if r.failures > 0 {
		r.failures--
		return false, stderrors.New("storage offline")
	}

	k := r.key(t)
	if price, ok := r.rows[k]; ok {
		if price == t.Price {
			return false, nil
		}
		return false, errors.NewErrorDetails("tick already persisted with a different price", string(errors.TickConflictError), "price")
	}
	r.rows[k] = t.Price
	return true, nil
}

func (r *fakeTickRepo) GetByFilter(_ context.Context, _ tickv1.Filter) ([]*tickv1.Tick, error) {
	return nil, nil
}

func (r *fakeTickRepo) GetLatestBySymbol(_ context.Context, _ string) (*tickv1.Tick, error) {
	return nil, nil
}

func (r *fakeTickRepo) UpdatePrice(_ context.Context, symbol string, ts time.Time, price float64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := symbol + "|" + strconv.FormatInt(ts.UnixNano(), 10)
	if _, ok := r.rows[k]; !ok {
		return false, nil
	}
	r.rows[k] = price
	return true, nil
}

func (r *fakeTickRepo) Delete(_ context.Context, symbol string, ts time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := symbol + "|" + strconv.FormatInt(ts.UnixNano(), 10)
	if _, ok := r.rows[k]; !ok {
		return false, nil
	}
	delete(r.rows, k)
	return true, nil
}

func (r *fakeTickRepo) DeleteRange(_ context.Context, _ string, _, _ time.Time) (int64, error) {
	return 0, nil
}

func (r *fakeTickRepo) rowCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

func (r *fakeTickRepo) attemptCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attempts
}

func testPipelineConfig() config.PipelineConfig {
	return config.PipelineConfig{
		DayStartHour:       22,
		BusBuffer:          64,
		SubscriberQueue:    16,
		LivenessTimeout:    time.Minute,
		PersistMaxAttempts: 5,
		PersistBackoff:     time.Millisecond,
		MinuteRefresh:      10 * time.Millisecond,
		HourRefresh:        10 * time.Millisecond,
		DayRefresh:         10 * time.Millisecond,
		CustomDayRefresh:   10 * time.Millisecond,
	}
}

func newTestPipeline(t *testing.T, repo tickv1.Repository) *Pipeline {
	t.Helper()

	cfg := testPipelineConfig()
	set, err := interval.NewSet(cfg.DayStartHour)
	require.NoError(t, err)

	log, err := logger.NewLogger()
	require.NoError(t, err)

	bm := broadcast.NewManager(cfg.SubscriberQueue, cfg.LivenessTimeout, log, nil)
	e := engine.New(set, engine.RefreshCadence{
		Minute:    cfg.MinuteRefresh,
		Hour:      cfg.HourRefresh,
		Day:       cfg.DayRefresh,
		CustomDay: cfg.CustomDayRefresh,
	}, bm.OnCandle, nil, log, nil)

	return New(cfg, bus.New(cfg.BusBuffer, nil), e, bm, repo, log, nil)
}

func runPipeline(p *Pipeline) (stop func()) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()
	return func() {
		cancel()
		<-done
	}
}

func eurusd(sec int, price float64) tickv1.Tick {
	return tickv1.Tick{
		Time:   time.Date(2025, 12, 4, 10, 0, sec, 0, time.UTC),
		Symbol: "EURUSD",
		Price:  price,
	}
}

func TestIngestRejectsInvalidTick(t *testing.T) {
	repo := newFakeTickRepo()
	p := newTestPipeline(t, repo)
	stop := runPipeline(p)

	err := p.Ingest(tickv1.Tick{Time: time.Now(), Symbol: "EURUSD", Price: -1})
	assert.ErrorIs(t, err, errors.NewErrorDetails("", string(errors.TickValidationError), ""))

	err = p.Ingest(tickv1.Tick{Symbol: "EURUSD", Price: 1.1})
	assert.Error(t, err)

	stop()
	assert.Zero(t, repo.rowCount())
}

func TestDuplicateTickPersistsOnce(t *testing.T) {
	repo := newFakeTickRepo()
	p := newTestPipeline(t, repo)
	stop := runPipeline(p)

	tick := eurusd(30, 1.0850)
	require.NoError(t, p.Ingest(tick))
	require.NoError(t, p.Ingest(tick))
	require.NoError(t, p.Ingest(tick))

	stop()

	assert.Equal(t, 1, repo.rowCount())

	// Only the first copy reached aggregation.
	candles := p.QueryRange("EURUSD", interval.GranularityMinute,
		time.Date(2025, 12, 4, 10, 0, 0, 0, time.UTC),
		time.Date(2025, 12, 4, 10, 1, 0, 0, time.UTC), 0)
	require.Len(t, candles, 1)
	assert.Equal(t, int64(1), candles[0].TickCount)
}

func TestConflictingTickKeepsFirstWrite(t *testing.T) {
	repo := newFakeTickRepo()
	p := newTestPipeline(t, repo)
	stop := runPipeline(p)

	require.NoError(t, p.Ingest(eurusd(30, 1.0850)))
	require.NoError(t, p.Ingest(eurusd(30, 1.0999)))

	stop()

	assert.Equal(t, 1, repo.rowCount())

	candles := p.QueryRange("EURUSD", interval.GranularityMinute,
		time.Date(2025, 12, 4, 10, 0, 0, 0, time.UTC),
		time.Date(2025, 12, 4, 10, 1, 0, 0, time.UTC), 0)
	require.Len(t, candles, 1)
	assert.Equal(t, int64(1), candles[0].TickCount)
	assert.Equal(t, 1.0850, candles[0].Close)
}

func TestPersistRetriesTransientFailures(t *testing.T) {
	repo := newFakeTickRepo()
	repo.failures = 2
	p := newTestPipeline(t, repo)
	stop := runPipeline(p)

	require.NoError(t, p.Ingest(eurusd(30, 1.0850)))

	stop()

	assert.Equal(t, 1, repo.rowCount())
	assert.Equal(t, 3, repo.attemptCount())
}

func TestPersistGivesUpAfterRetryBudget(t *testing.T) {
	repo := newFakeTickRepo()
	repo.failures = 100
	p := newTestPipeline(t, repo)
	stop := runPipeline(p)

	require.NoError(t, p.Ingest(eurusd(30, 1.0850)))

	stop()

	assert.Zero(t, repo.rowCount())
	assert.Equal(t, testPipelineConfig().PersistMaxAttempts, repo.attemptCount())
}

func TestShutdownDrainsBufferedTicks(t *testing.T) {
	repo := newFakeTickRepo()
	p := newTestPipeline(t, repo)
	stop := runPipeline(p)

	for i := 0; i < 20; i++ {
		require.NoError(t, p.Ingest(eurusd(i, 1.08+float64(i)/1000)))
	}

	// Cancel immediately: everything already published must still land.
	stop()

	assert.Equal(t, 20, repo.rowCount())
}

func TestPersistedTickReachesSubscribers(t *testing.T) {
	repo := newFakeTickRepo()
	p := newTestPipeline(t, repo)
	stop := runPipeline(p)
	defer stop()

	sub := p.Subscribe("EURUSD", broadcast.TopicTicks)
	require.NoError(t, p.Ingest(eurusd(30, 1.0850)))

	select {
	case msg := <-sub.Out():
		require.Equal(t, "tick", msg.Type)
		assert.Equal(t, 1.0850, msg.Tick.Price)
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber missed persisted tick")
	}
}
