package event

import (
	"context"
	"sync"
)

// Bus fans output records out to subscribers. Each subscriber owns a
// bounded channel; when a subscriber's buffer is full, Publish blocks
// until it drains. The back-pressure propagates to the task body through
// the engine's output reader — records are never dropped, since they
// feed progress accounting and audit trails.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string]*Subscriber
	buffer int
	closed bool
}

// NewBus creates a bus with the given per-subscriber buffer size.
func NewBus(buffer int) *Bus {
	if buffer < 1 {
		buffer = 1
	}
	return &Bus{
		subs:   make(map[string]*Subscriber),
		buffer: buffer,
	}
}

// Subscribe registers a new subscriber under the given id, replacing any
// prior subscriber with the same id. After Close the returned subscriber
// is already done and receives nothing.
func (b *Bus) Subscribe(subID string) *Subscriber {
	sub := newSubscriber(subID, b.buffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		sub.close()
		return sub
	}
	if old, ok := b.subs[subID]; ok {
		old.close()
	}
	b.subs[subID] = sub
	b.mu.Unlock()

	return sub
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Bus) Unsubscribe(subID string) {
	b.mu.Lock()
	if sub, ok := b.subs[subID]; ok {
		delete(b.subs, subID)
		sub.close()
	}
	b.mu.Unlock()
}

// Publish delivers rec to every subscriber, blocking while any
// subscriber's buffer is full. Returns the context error if ctx is
// cancelled while blocked.
func (b *Bus) Publish(ctx context.Context, rec *Record) error {
	b.mu.RLock()
	targets := make([]*Subscriber, 0, len(b.subs))
	for _, sub := range b.subs {
		targets = append(targets, sub)
	}
	b.mu.RUnlock()

	for _, sub := range targets {
		if err := sub.send(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every subscriber channel. Publish after Close is a no-op
// for the removed subscribers.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for subID, sub := range b.subs {
		delete(b.subs, subID)
		sub.close()
	}
}

// Subscriber receives records from the bus on a bounded channel.
type Subscriber struct {
	id     string
	ch     chan *Record
	done   chan struct{}
	closer sync.Once
}

func newSubscriber(subID string, buffer int) *Subscriber {
	return &Subscriber{
		id:   subID,
		ch:   make(chan *Record, buffer),
		done: make(chan struct{}),
	}
}

// ID returns the subscriber identifier.
func (s *Subscriber) ID() string { return s.id }

// C returns the read-only record channel. The channel itself is never
// closed; consumers select on Done to learn the subscription ended.
func (s *Subscriber) C() <-chan *Record { return s.ch }

// Done is closed when the subscriber is removed or the bus shuts down.
// Records still buffered on C may be consumed after Done closes.
func (s *Subscriber) Done() <-chan struct{} { return s.done }

// send blocks until the record is buffered, the subscriber is closed,
// or ctx is cancelled.
func (s *Subscriber) send(ctx context.Context, rec *Record) error {
	select {
	case s.ch <- rec:
		return nil
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Subscriber) close() {
	s.closer.Do(func() { close(s.done) })
}
