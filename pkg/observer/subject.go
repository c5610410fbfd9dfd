// Package observer implements a small generic publish/subscribe subject.
// The collector uses it to fan out flush reports and errors to user
// callbacks without coupling endpoint code to the callback wiring.
package observer

import (
	"context"
	"sync"
)

// Observer receives published events of type T.
type Observer[T any] interface {
	Notify(context.Context, T) error
}

// ObserverFunc adapts a plain function into an Observer.
type ObserverFunc[T any] func(context.Context, T) error

// Notify calls the wrapped function. A nil ObserverFunc is a no-op.
func (f ObserverFunc[T]) Notify(ctx context.Context, evt T) error {
	if f == nil {
		return nil
	}
	return f(ctx, evt)
}

// Subject fans published events out to its attached observers.
// A nil *Subject is safe to publish to and attach to.
type Subject[T any] struct {
	mu        sync.RWMutex
	observers []Observer[T]
	onError   func(error)
}

// NewSubject builds a Subject with the given initial observers.
func NewSubject[T any](observers ...Observer[T]) *Subject[T] {
	s := &Subject[T]{}
	s.Attach(observers...)
	return s
}

// Attach registers observers. They see every event published afterwards.
func (s *Subject[T]) Attach(observers ...Observer[T]) {
	if s == nil {
		return
	}
	s.mu.Lock()
	for _, obs := range observers {
		if obs != nil {
			s.observers = append(s.observers, obs)
		}
	}
	s.mu.Unlock()
}

// SetErrorHandler installs fn to receive errors returned by observers.
// Without a handler observer errors are discarded.
func (s *Subject[T]) SetErrorHandler(fn func(error)) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.onError = fn
	s.mu.Unlock()
}

// Publish delivers evt to every attached observer in attach order.
// Observers run outside the lock, so they may attach further observers.
func (s *Subject[T]) Publish(ctx context.Context, evt T) {
	if s == nil {
		return
	}

	s.mu.RLock()
	observers := make([]Observer[T], len(s.observers))
	copy(observers, s.observers)
	onError := s.onError
	s.mu.RUnlock()

	for _, obs := range observers {
		if err := obs.Notify(ctx, evt); err != nil && onError != nil {
			onError(err)
		}
	}
}
