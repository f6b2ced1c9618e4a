package sim

import "sync"

// mailbox runs posted functions in order on one goroutine. Posting never
// blocks, so it is safe from inside calls the core makes while holding
// its own locks.
type mailbox struct {
	mu     sync.Mutex
	items  []func()
	closed bool
	wake   chan struct{}
	done   chan struct{}
}

func newMailbox() *mailbox {
	m := &mailbox{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go m.run()
	return m
}

func (m *mailbox) post(f func()) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.items = append(m.items, f)
	m.mu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// close drops undelivered items. It does not wait for a running item.
func (m *mailbox) close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	m.items = nil
	close(m.done)
}

func (m *mailbox) run() {
	for {
		select {
		case <-m.done:
			return
		case <-m.wake:
		}
		for {
			m.mu.Lock()
			if m.closed || len(m.items) == 0 {
				m.mu.Unlock()
				break
			}
			f := m.items[0]
			m.items = m.items[1:]
			m.mu.Unlock()
			f()
		}
	}
}
