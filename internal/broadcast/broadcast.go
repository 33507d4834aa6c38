// Package broadcast provides an ordered in-process publisher used to fan
// out score results, voting-weight updates, and decision outcomes.
//
// Each subscriber gets its own delivery goroutine and an unbounded pending
// list, so a slow subscriber never blocks the publisher or reorders
// delivery for anyone else. Messages published after Subscribe are
// delivered in publish order; messages pending when a subscriber closes
// are dropped.
package broadcast

import (
	"context"
	"sync"
)

// Broadcaster fans out messages of one type to all current subscribers.
type Broadcaster[T any] struct {
	mu     sync.Mutex
	subs   map[int]*subscriber[T]
	nextID int
	closed bool
}

// New creates an empty broadcaster.
func New[T any]() *Broadcaster[T] {
	return &Broadcaster[T]{subs: make(map[int]*subscriber[T])}
}

// Subscription is one subscriber's handle. Close detaches it and stops
// delivery; the channel from C is closed once pending messages before the
// close have been handed off or dropped.
type Subscription[T any] struct {
	sub    *subscriber[T]
	cancel func()
}

// C returns the receive channel. Delivery preserves publish order.
func (s *Subscription[T]) C() <-chan T {
	return s.sub.out
}

// Close detaches the subscriber. Pending messages are dropped.
func (s *Subscription[T]) Close() {
	s.cancel()
}

type subscriber[T any] struct {
	mu      sync.Mutex
	cond    *sync.Cond
	pending []T
	out     chan T
	quit    chan struct{}
	closed  bool
}

func newSubscriber[T any](buffer int) *subscriber[T] {
	s := &subscriber[T]{
		out:  make(chan T, buffer),
		quit: make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// run drains the pending list into the out channel in order.
func (s *subscriber[T]) run() {
	defer close(s.out)

	for {
		s.mu.Lock()
		for len(s.pending) == 0 && !s.closed {
			s.cond.Wait()
		}
		if s.closed {
			s.mu.Unlock()
			return
		}
		msg := s.pending[0]
		s.pending = s.pending[1:]
		s.mu.Unlock()

		// The send must not outlive the subscriber: a consumer that
		// closes (or stops reading) with a message in flight would
		// otherwise pin this goroutine forever.
		select {
		case s.out <- msg:
		case <-s.quit:
			return
		}
	}
}

func (s *subscriber[T]) enqueue(msg T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.pending = append(s.pending, msg)
	s.cond.Signal()
}

func (s *subscriber[T]) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.pending = nil
	close(s.quit)
	s.cond.Signal()
}

// Subscribe registers a new subscriber with the given channel buffer.
// Only messages published after Subscribe returns are delivered.
func (b *Broadcaster[T]) Subscribe(buffer int) *Subscription[T] {
	if buffer < 0 {
		buffer = 0
	}

	sub := newSubscriber[T](buffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	if b.closed {
		b.mu.Unlock()
		// A subscription on a closed broadcaster delivers nothing. Its
		// run loop never starts, so the channel is closed here.
		sub.close()
		close(sub.out)
		return &Subscription[T]{sub: sub, cancel: func() {}}
	}
	b.subs[id] = sub
	b.mu.Unlock()

	go sub.run()

	return &Subscription[T]{
		sub: sub,
		cancel: func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			sub.close()
		},
	}
}

// Publish hands the message to every current subscriber. The broadcaster
// lock makes the publish order identical for all subscribers.
func (b *Broadcaster[T]) Publish(_ context.Context, msg T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	for _, sub := range b.subs {
		sub.enqueue(msg)
	}
}

// Len returns the current subscriber count.
func (b *Broadcaster[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close detaches all subscribers and refuses further publishes.
func (b *Broadcaster[T]) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := b.subs
	b.subs = make(map[int]*subscriber[T])
	b.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}
}
