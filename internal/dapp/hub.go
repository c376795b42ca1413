package dapp

import "sync"

// Hub fans snapshots out to observers. Each observer channel holds only the
// latest snapshot, so a slow observer skips intermediate states instead of
// blocking publishers.
type Hub struct {
	mu   sync.Mutex
	subs map[uint64]chan Snapshot
	next uint64
	last *Snapshot
}

func NewHub() *Hub {
	return &Hub{subs: make(map[uint64]chan Snapshot)}
}

// Subscribe returns a channel receiving snapshots, primed with the latest one
// if any, and a cancel function that closes it.
func (h *Hub) Subscribe() (<-chan Snapshot, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.next
	h.next++
	ch := make(chan Snapshot, 1)
	if h.last != nil {
		ch <- *h.last
	}
	h.subs[id] = ch

	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(ch)
		}
	}
}

// Publish replaces every observer's pending snapshot with s.
func (h *Hub) Publish(s Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.last = &s
	for _, ch := range h.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- s:
		default:
		}
	}
}

// Close closes every observer channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subs {
		close(ch)
		delete(h.subs, id)
	}
}
