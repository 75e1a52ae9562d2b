// Package bus implements the in-process distribution channel between tick
// production and its consumers. Each consumer group owns an independent
// bounded queue; a slow group loses its oldest buffered items instead of
// stalling the publisher or the other groups.
package bus

import (
	"sync"
	"sync/atomic"

	tickv1 "github.com/Mohd-Saddam/fx-ohlc-microservice/internal/domain/tick/v1"
	"github.com/Mohd-Saddam/fx-ohlc-microservice/pkg/metrics"
)

// Group is one consumer group's view of the bus.
type Group struct {
	name    string
	ch      chan tickv1.Tick
	mu      sync.Mutex
	dropped atomic.Uint64
	onDrop  func()
}

// Ticks returns the group's delivery channel. The channel is closed when
// the bus shuts down; buffered items remain readable until drained.
func (g *Group) Ticks() <-chan tickv1.Tick {
	return g.ch
}

// Dropped reports how many items were discarded because the group's queue
// was full.
func (g *Group) Dropped() uint64 {
	return g.dropped.Load()
}

// enqueue never blocks: when the queue is full the oldest buffered item is
// discarded to make room. g.mu serializes competing publishers so the
// evict-then-send pair stays atomic.
func (g *Group) enqueue(t tickv1.Tick) {
	g.mu.Lock()
	defer g.mu.Unlock()

	select {
	case g.ch <- t:
		return
	default:
	}

	select {
	case <-g.ch:
		g.dropped.Add(1)
		if g.onDrop != nil {
			g.onDrop()
		}
	default:
	}
	g.ch <- t
}

// Bus fans published ticks out to every registered consumer group.
type Bus struct {
	mu      sync.RWMutex
	groups  map[string]*Group
	buffer  int
	metrics *metrics.Metrics
	closed  bool
}

// New creates a bus whose groups buffer up to the given capacity each.
func New(buffer int, m *metrics.Metrics) *Bus {
	if buffer <= 0 {
		buffer = 1
	}
	return &Bus{
		groups:  make(map[string]*Group),
		buffer:  buffer,
		metrics: m,
	}
}

// Group registers (or returns) the consumer group with the given name.
func (b *Bus) Group(name string) *Group {
	b.mu.Lock()
	defer b.mu.Unlock()

	if g, ok := b.groups[name]; ok {
		return g
	}
	g := &Group{
		name: name,
		ch:   make(chan tickv1.Tick, b.buffer),
	}
	if b.metrics != nil {
		counter := b.metrics.BusDropped.WithLabelValues(name)
		g.onDrop = func() { counter.Inc() }
	}
	b.groups[name] = g
	return g
}

// Publish enqueues the tick for every group and returns immediately. It is
// a no-op after Close.
func (b *Bus) Publish(t tickv1.Tick) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	for _, g := range b.groups {
		g.enqueue(t)
	}
}

// Close stops accepting publishes and closes every group channel so that
// consumers can drain remaining buffered items and exit. Close is
// idempotent.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for _, g := range b.groups {
		close(g.ch)
	}
}
