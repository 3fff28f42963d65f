package events

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Config controls hub buffering.
//   - BufferSize: size of the internal channel (default 256).
//   - SubscriberBuffer: per-subscriber channel size (default 16).
//   - SinkTimeout: per-sink timeout while delivering (default 10s).
//   - BaseContext: parent context passed to sink calls.
//   - Logger: optional structured logger used for warnings.
type Config struct {
	BufferSize       int
	SubscriberBuffer int
	SinkTimeout      time.Duration
	BaseContext      context.Context
	Logger           *zap.Logger
}

const (
	defaultBufferSize       = 256
	defaultSubscriberBuffer = 16
	defaultSinkTimeout      = 10 * time.Second
)

// Subscription is one live listener on the hub. Receive from C until it
// closes, then call Unsubscribe (or just Unsubscribe to leave early). A
// subscriber that stops draining its channel is detached rather than
// allowed to stall delivery.
type Subscription struct {
	id uint64
	ch chan Event
}

// C is the subscriber's event stream. It closes on detach or hub close.
func (s *Subscription) C() <-chan Event {
	return s.ch
}

// Hub fans published events out to registered sinks and live
// subscribers. Safe for concurrent use; Publish never blocks.
type Hub struct {
	cfg    Config
	sinks  []Sink
	events chan Event
	stopCh chan struct{}
	doneCh chan struct{}
	logger *zap.Logger

	mu     sync.Mutex
	subs   map[uint64]*Subscription
	nextID uint64

	dropped   atomic.Int64
	closed    atomic.Bool
	closeOnce sync.Once
	closeCtx  context.Context
}

// NewHub starts the delivery goroutine over the supplied sinks. The
// returned hub accepts events immediately.
func NewHub(cfg Config, sinks ...Sink) *Hub {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaultBufferSize
	}
	if cfg.SubscriberBuffer <= 0 {
		cfg.SubscriberBuffer = defaultSubscriberBuffer
	}
	if cfg.SinkTimeout <= 0 {
		cfg.SinkTimeout = defaultSinkTimeout
	}
	if cfg.BaseContext == nil {
		cfg.BaseContext = context.Background()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	h := &Hub{
		cfg:    cfg,
		sinks:  append([]Sink(nil), sinks...),
		events: make(chan Event, cfg.BufferSize),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
		logger: cfg.Logger,
		subs:   map[uint64]*Subscription{},
	}
	go h.run()
	return h
}

// Publish enqueues an event for delivery. It never blocks; when the
// buffer is full the event is dropped and counted.
func (h *Hub) Publish(evt Event) {
	if h == nil || h.closed.Load() {
		return
	}
	if err := evt.Validate(); err != nil {
		h.logger.Debug("discarding invalid event", zap.Error(err))
		return
	}
	select {
	case h.events <- evt:
	default:
		n := h.dropped.Add(1)
		h.logger.Warn("event dropped due to backpressure", zap.Int64("total_dropped", n))
	}
}

// Subscribe registers a live listener.
func (h *Hub) Subscribe() *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	sub := &Subscription{
		id: h.nextID,
		ch: make(chan Event, h.cfg.SubscriberBuffer),
	}
	h.subs[sub.id] = sub
	return sub
}

// Unsubscribe detaches a listener and closes its channel. Safe to call
// after the hub already detached it.
func (h *Hub) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.detachLocked(sub.id)
}

func (h *Hub) detachLocked(id uint64) {
	if sub, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(sub.ch)
	}
}

// Close drains queued events, closes sinks and subscriber channels, and
// blocks until the delivery goroutine exits. Safe to call repeatedly.
func (h *Hub) Close(ctx context.Context) error {
	if h == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	h.closeOnce.Do(func() {
		h.closed.Store(true)
		h.closeCtx = ctx
		close(h.stopCh)
	})
	select {
	case <-h.doneCh:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("event hub close wait: %w", ctx.Err())
	}
}

func (h *Hub) run() {
	defer close(h.doneCh)
	for {
		select {
		case evt := <-h.events:
			h.deliver(evt)
		case <-h.stopCh:
			h.drain()
			h.closeSinks()
			h.closeSubscribers()
			return
		}
	}
}

func (h *Hub) drain() {
	for {
		select {
		case evt := <-h.events:
			h.deliver(evt)
		default:
			return
		}
	}
}

func (h *Hub) deliver(evt Event) {
	for _, sink := range h.sinks {
		if sink == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(h.cfg.BaseContext, h.cfg.SinkTimeout)
		if err := sink.Consume(ctx, evt); err != nil {
			h.logger.Warn("event sink consume failed", zap.Error(err))
		}
		cancel()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, sub := range h.subs {
		select {
		case sub.ch <- evt:
		default:
			// Slow subscriber: detach so one dead websocket cannot
			// back up delivery for everyone else.
			h.logger.Warn("detaching slow subscriber", zap.Uint64("id", id))
			h.detachLocked(id)
		}
	}
}

func (h *Hub) closeSinks() {
	ctx := h.closeCtx
	if ctx == nil {
		ctx = context.Background()
	}
	for _, sink := range h.sinks {
		if sink == nil {
			continue
		}
		if err := sink.Close(ctx); err != nil {
			h.logger.Warn("event sink close failed", zap.Error(err))
		}
	}
}

func (h *Hub) closeSubscribers() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id := range h.subs {
		h.detachLocked(id)
	}
}
