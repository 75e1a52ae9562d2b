// Package broadcast owns the registry of live subscriptions and fans fresh
// ticks and refreshed candles out to them. Every subscription has its own
// bounded outbound queue, so one stalled consumer never delays delivery to
// the others; a full queue loses its oldest message and raises a
// slow-consumer warning instead of blocking.
package broadcast

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	candlev1 "github.com/Mohd-Saddam/fx-ohlc-microservice/internal/domain/candle/v1"
	tickv1 "github.com/Mohd-Saddam/fx-ohlc-microservice/internal/domain/tick/v1"
	"github.com/Mohd-Saddam/fx-ohlc-microservice/pkg/logger"
	"github.com/Mohd-Saddam/fx-ohlc-microservice/pkg/metrics"
)

// Message is the closed set of payloads pushed to live subscribers.
// Exactly one of Tick or Candle is set, selected by Type.
type Message struct {
	Type   string           `json:"type"` // "tick" or "candle"
	Tick   *tickv1.Tick     `json:"tick,omitempty"`
	Candle *candlev1.Candle `json:"candle,omitempty"`
}

// Subscription is one live consumer of a (symbol, topic) stream.
type Subscription struct {
	id     uuid.UUID
	symbol string
	topic  Topic

	mu     sync.Mutex
	out    chan Message
	closed bool

	dropped  atomic.Uint64
	slow     atomic.Bool
	lastSeen atomic.Int64 // unix nanos of the latest heartbeat

	manager *Manager
}

// ID returns the subscription's unique id.
func (s *Subscription) ID() uuid.UUID { return s.id }

// Symbol returns the subscribed instrument.
func (s *Subscription) Symbol() string { return s.symbol }

// Topic returns the subscribed topic.
func (s *Subscription) Topic() Topic { return s.topic }

// Out is the subscriber's delivery channel. It is closed when the
// subscription is removed, which signals end-of-stream to the transport.
func (s *Subscription) Out() <-chan Message { return s.out }

// Dropped reports messages discarded because the queue was full.
func (s *Subscription) Dropped() uint64 { return s.dropped.Load() }

// Slow reports whether the subscription has ever overflowed its queue. The
// transport may use this to close a persistently slow connection.
func (s *Subscription) Slow() bool { return s.slow.Load() }

// Touch records a heartbeat, deferring the liveness reaper.
func (s *Subscription) Touch() { s.lastSeen.Store(time.Now().UnixNano()) }

// Close removes the subscription from the registry and closes Out. It is
// idempotent and safe to call concurrently with in-flight pushes.
func (s *Subscription) Close() { s.manager.Unsubscribe(s) }

// push enqueues without blocking. Delivery and closing both run under
// s.mu, so a concurrent Close can never race a send onto a closed channel.
// It reports whether this push tipped the subscription into the slow state
// for the first time.
func (s *Subscription) push(msg Message) (firstSlow bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	select {
	case s.out <- msg:
		return false
	default:
	}

	// Queue full: shed the oldest message for this subscriber only. The
	// next aggregate push carries the whole bucket state, so the gap
	// self-heals.
	select {
	case <-s.out:
		s.dropped.Add(1)
		firstSlow = !s.slow.Swap(true)
	default:
	}
	select {
	case s.out <- msg:
	default:
	}
	return firstSlow
}

func (s *Subscription) detach() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.closed = true
	close(s.out)
	return true
}

type topicKey struct {
	symbol string
	topic  Topic
}

// Manager is the subscription registry and fan-out engine.
type Manager struct {
	mu   sync.RWMutex
	subs map[topicKey]map[uuid.UUID]*Subscription

	queueSize int
	liveness  time.Duration

	logger  logger.Interface
	metrics *metrics.Metrics
}

// NewManager creates a manager whose subscriptions buffer up to queueSize
// messages each and are reaped after liveness without a heartbeat.
func NewManager(queueSize int, liveness time.Duration, log logger.Interface, m *metrics.Metrics) *Manager {
	if queueSize <= 0 {
		queueSize = 1
	}
	return &Manager{
		subs:      make(map[topicKey]map[uuid.UUID]*Subscription),
		queueSize: queueSize,
		liveness:  liveness,
		logger:    log,
		metrics:   m,
	}
}

// Subscribe registers a new live subscription for (symbol, topic).
func (m *Manager) Subscribe(symbol string, topic Topic) *Subscription {
	sub := &Subscription{
		id:      uuid.New(),
		symbol:  symbol,
		topic:   topic,
		out:     make(chan Message, m.queueSize),
		manager: m,
	}
	sub.Touch()

	k := topicKey{symbol: symbol, topic: topic}
	m.mu.Lock()
	if m.subs[k] == nil {
		m.subs[k] = make(map[uuid.UUID]*Subscription)
	}
	m.subs[k][sub.id] = sub
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.LiveSubscriptions.Inc()
	}
	if m.logger != nil {
		m.logger.Info("subscriber connected",
			logger.Field{Key: "subscription_id", Value: sub.id.String()},
			logger.Field{Key: "symbol", Value: symbol},
			logger.Field{Key: "topic", Value: string(topic)},
		)
	}
	return sub
}

// Unsubscribe removes a subscription and releases its queue. Idempotent.
func (m *Manager) Unsubscribe(sub *Subscription) {
	k := topicKey{symbol: sub.symbol, topic: sub.topic}
	m.mu.Lock()
	if group, ok := m.subs[k]; ok {
		delete(group, sub.id)
		if len(group) == 0 {
			delete(m.subs, k)
		}
	}
	m.mu.Unlock()

	if !sub.detach() {
		return
	}
	if m.metrics != nil {
		m.metrics.LiveSubscriptions.Dec()
	}
	if m.logger != nil {
		m.logger.Info("subscriber disconnected",
			logger.Field{Key: "subscription_id", Value: sub.id.String()},
			logger.Field{Key: "topic", Value: string(sub.topic)},
		)
	}
}

// OnTick forwards a persisted tick to every raw-tick subscriber of the
// instrument, in the order persistence accepted them.
func (m *Manager) OnTick(t tickv1.Tick) {
	m.fanOut(topicKey{symbol: t.Symbol, topic: TopicTicks}, Message{Type: "tick", Tick: &t})
}

// OnCandle pushes the whole current state of a refreshed bucket to every
// subscriber of the matching aggregate topic.
func (m *Manager) OnCandle(c candlev1.Candle) {
	k := topicKey{symbol: c.Symbol, topic: TopicForGranularity(c.Granularity)}
	m.fanOut(k, Message{Type: "candle", Candle: &c})
}

func (m *Manager) fanOut(k topicKey, msg Message) {
	m.mu.RLock()
	group := m.subs[k]
	targets := make([]*Subscription, 0, len(group))
	for _, sub := range group {
		targets = append(targets, sub)
	}
	m.mu.RUnlock()

	for _, sub := range targets {
		before := sub.Dropped()
		firstSlow := sub.push(msg)
		if m.metrics == nil {
			continue
		}
		if dropped := sub.Dropped(); dropped > before {
			m.metrics.SubscriberDropped.Add(float64(dropped - before))
		}
		// One warning per subscriber, on the transition; the drop counter
		// carries the ongoing volume.
		if firstSlow {
			m.metrics.SlowConsumers.Inc()
		}
	}
}

// Stats returns the number of live subscriptions per topic.
func (m *Manager) Stats() map[Topic]int {
	out := map[Topic]int{
		TopicTicks:     0,
		TopicMinute:    0,
		TopicHour:      0,
		TopicDay:       0,
		TopicCustomDay: 0,
	}
	m.mu.RLock()
	for k, group := range m.subs {
		out[k.topic] += len(group)
	}
	m.mu.RUnlock()
	return out
}

// Run reaps subscriptions without a recent heartbeat until ctx is done,
// then closes every remaining subscription (end-of-stream).
func (m *Manager) Run(ctx context.Context) {
	tick := m.liveness / 4
	if tick <= 0 {
		tick = time.Second
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.closeAll()
			return
		case <-ticker.C:
			m.reap(time.Now())
		}
	}
}

func (m *Manager) reap(now time.Time) {
	cutoff := now.Add(-m.liveness).UnixNano()

	m.mu.RLock()
	var stale []*Subscription
	for _, group := range m.subs {
		for _, sub := range group {
			if sub.lastSeen.Load() < cutoff {
				stale = append(stale, sub)
			}
		}
	}
	m.mu.RUnlock()

	for _, sub := range stale {
		if m.logger != nil {
			m.logger.Warn("reaping unresponsive subscriber",
				logger.Field{Key: "subscription_id", Value: sub.id.String()},
				logger.Field{Key: "topic", Value: string(sub.topic)},
			)
		}
		m.Unsubscribe(sub)
	}
}

func (m *Manager) closeAll() {
	m.mu.RLock()
	var all []*Subscription
	for _, group := range m.subs {
		for _, sub := range group {
			all = append(all, sub)
		}
	}
	m.mu.RUnlock()

	for _, sub := range all {
		m.Unsubscribe(sub)
	}
}
