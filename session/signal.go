package session

import (
	"context"
	"sync"
)

// Signal is a broadcast "authentication invalidated" event. Subscribers are notified
// synchronously, in subscription order, on every Emit.
type Signal struct {
	mu   sync.Mutex
	next uint64
	subs []subscriber
}

type subscriber struct {
	id uint64
	fn func(context.Context)
}

// Subscribe registers fn and returns a function that removes it. Removing twice is a
// no-op.
func (s *Signal) Subscribe(fn func(context.Context)) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	s.mu.Lock()
	s.next++
	id := s.next
	s.subs = append(s.subs, subscriber{id: id, fn: fn})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, sub := range s.subs {
				if sub.id == id {
					s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Emit notifies every current subscriber. Subscribers added during Emit are not
// notified until the next Emit.
func (s *Signal) Emit(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	subs := make([]subscriber, len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.fn(ctx)
	}
}

// Len returns the number of subscribers.
func (s *Signal) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}
