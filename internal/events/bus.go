package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Event is one published key with its payload.
type Event struct {
	Key        Key
	Payload    json.RawMessage // nil for signals without a body
	Err        error           // set on lifecycle errors and exceptions
	ReceivedAt time.Time
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v any) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("event %q has no payload", e.Key)
	}
	return json.Unmarshal(e.Payload, v)
}

// Decode returns the payload of e as a T.
func Decode[T any](e Event) (T, error) {
	var v T
	err := e.Decode(&v)
	return v, err
}

// Handler receives events synchronously on the publishing goroutine.
type Handler func(Event)

type subscriber struct {
	id int64
	fn Handler
}

// Bus fans events out to subscribers. Publish invokes the subscribers of a
// key in subscription order; the list is snapshotted first, so subscribing
// or unsubscribing during a publish only affects later publishes.
type Bus struct {
	logger *slog.Logger

	mu     sync.RWMutex
	subs   map[Key][]subscriber
	all    []subscriber
	nextID int64

	statsMu   sync.Mutex
	published map[Key]int64
	delivered int64
}

// BusStats contains bus statistics.
type BusStats struct {
	Published   map[Key]int64
	Delivered   int64
	Subscribers int
}

// NewBus creates an empty bus.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		logger:    logger,
		subs:      make(map[Key][]subscriber),
		published: make(map[Key]int64),
	}
}

// Subscribe registers fn for key. The returned func removes it and is safe
// to call more than once.
func (b *Bus) Subscribe(key Key, fn Handler) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[key] = append(b.subs[key], subscriber{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			b.subs[key] = remove(b.subs[key], id)
			if len(b.subs[key]) == 0 {
				delete(b.subs, key)
			}
		})
	}
}

// SubscribeAll registers fn for every key. Wildcard subscribers run after
// the subscribers of the specific key.
func (b *Bus) SubscribeAll(fn Handler) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.all = append(b.all, subscriber{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			b.all = remove(b.all, id)
		})
	}
}

// Publish delivers e to the current subscribers of e.Key.
func (b *Bus) Publish(e Event) {
	if e.ReceivedAt.IsZero() {
		e.ReceivedAt = time.Now()
	}

	b.mu.RLock()
	keyed := b.subs[e.Key]
	all := b.all
	b.mu.RUnlock()

	// Subscribe/remove never mutate a published slice in place, so the
	// snapshot stays valid without copying.
	for _, s := range keyed {
		s.fn(e)
	}
	for _, s := range all {
		s.fn(e)
	}

	b.statsMu.Lock()
	b.published[e.Key]++
	b.delivered += int64(len(keyed) + len(all))
	b.statsMu.Unlock()

	b.logger.Debug("event published", "key", e.Key, "subscribers", len(keyed)+len(all))
}

// Buffer returns a pull subscription that queues every event for keys (all
// keys when none are given) until Close is called.
func (b *Bus) Buffer(initialCapacity int, keys ...Key) *Subscription {
	s := &Subscription{buf: NewGrowableBuffer[Event](initialCapacity)}
	push := func(e Event) { s.buf.Send(e) }

	if len(keys) == 0 {
		s.cancels = append(s.cancels, b.SubscribeAll(push))
		return s
	}
	for _, k := range keys {
		s.cancels = append(s.cancels, b.Subscribe(k, push))
	}
	return s
}

// Stats returns bus statistics.
func (b *Bus) Stats() BusStats {
	b.mu.RLock()
	n := len(b.all)
	for _, list := range b.subs {
		n += len(list)
	}
	b.mu.RUnlock()

	b.statsMu.Lock()
	defer b.statsMu.Unlock()

	published := make(map[Key]int64, len(b.published))
	for k, v := range b.published {
		published[k] = v
	}
	return BusStats{Published: published, Delivered: b.delivered, Subscribers: n}
}

// remove returns a new slice without id.
func remove(list []subscriber, id int64) []subscriber {
	out := make([]subscriber, 0, len(list))
	for _, s := range list {
		if s.id != id {
			out = append(out, s)
		}
	}
	return out
}

// Subscription is a buffered pull view of the bus.
type Subscription struct {
	buf     *GrowableBuffer[Event]
	cancels []func()
	once    sync.Once
}

// Events exposes the underlying buffer.
func (s *Subscription) Events() *GrowableBuffer[Event] {
	return s.buf
}

// Close unsubscribes and closes the buffer. Buffered events remain readable.
func (s *Subscription) Close() {
	s.once.Do(func() {
		for _, cancel := range s.cancels {
			cancel()
		}
		s.buf.Close()
	})
}
