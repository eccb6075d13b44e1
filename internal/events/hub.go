package events

import "sync"

const (
	clientBuffer = 32
	historySize  = 64
)

// Hub fans events out to subscribers and keeps the most recent ones so a
// client that reconnects mid-run can catch up.
type Hub struct {
	mu      sync.Mutex
	seq     int64
	history []Event
	clients map[chan Event]struct{}
	dropped int64
}

var _ Publisher = (*Hub)(nil)

func NewHub() *Hub {
	return &Hub{clients: make(map[chan Event]struct{})}
}

// Subscribe registers a client and returns the retained events with a
// sequence number above after. Pass 0 for a fresh client.
func (h *Hub) Subscribe(after int64) (chan Event, []Event) {
	ch := make(chan Event, clientBuffer)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[ch] = struct{}{}

	var backlog []Event
	if after > 0 {
		for _, e := range h.history {
			if e.Seq > after {
				backlog = append(backlog, e)
			}
		}
	}
	return ch, backlog
}

func (h *Hub) Unsubscribe(ch chan Event) {
	h.mu.Lock()
	if _, ok := h.clients[ch]; ok {
		delete(h.clients, ch)
		close(ch)
	}
	h.mu.Unlock()
}

func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Dropped counts deliveries skipped because a client was not reading.
func (h *Hub) Dropped() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dropped
}

func (h *Hub) Publish(e Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.seq++
	e.Seq = h.seq
	h.history = append(h.history, e)
	if len(h.history) > historySize {
		h.history = h.history[len(h.history)-historySize:]
	}

	for ch := range h.clients {
		select {
		case ch <- e:
		default:
			h.dropped++
		}
	}
}
