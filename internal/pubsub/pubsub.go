// Package pubsub provides typed publish/subscribe topics with explicit
// unsubscribe handles.
package pubsub

import "sync"

// Unsubscribe removes a subscription. Calling it more than once is safe.
type Unsubscribe func()

// Topic delivers values of one event kind to its subscribers, in
// subscription order. Publish runs handlers on the caller's goroutine;
// handlers may subscribe or unsubscribe while being called.
type Topic[T any] struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers []subscription[T]
}

type subscription[T any] struct {
	id uint64
	fn func(T)
}

// NewTopic creates an empty topic.
func NewTopic[T any]() *Topic[T] {
	return &Topic[T]{}
}

// Subscribe registers fn and returns the handle that removes it.
func (t *Topic[T]) Subscribe(fn func(T)) Unsubscribe {
	if fn == nil {
		return func() {}
	}

	t.mu.Lock()
	t.nextID++
	id := t.nextID
	t.handlers = append(t.handlers, subscription[T]{id: id, fn: fn})
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { t.remove(id) })
	}
}

func (t *Topic[T]) remove(id uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, h := range t.handlers {
		if h.id == id {
			t.handlers = append(t.handlers[:i:i], t.handlers[i+1:]...)
			return
		}
	}
}

// Publish delivers v to every current subscriber.
func (t *Topic[T]) Publish(v T) {
	t.mu.RLock()
	handlers := t.handlers
	t.mu.RUnlock()

	for _, h := range handlers {
		h.fn(v)
	}
}

// Len returns the number of subscribers.
func (t *Topic[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.handlers)
}
