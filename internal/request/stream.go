package request

import (
	"sync"

	"github.com/google/uuid"
)

// StreamEvent is one entry on a viewer's live stream: either a cache change
// tick or a user-facing notification.
type StreamEvent struct {
	Kind         string        `json:"kind"`
	Notification *Notification `json:"notification,omitempty"`
}

const (
	// StreamSync signals the viewer's cached collection changed.
	StreamSync = "sync"
	// StreamNotification carries a notification payload.
	StreamNotification = "notification"
)

// Hub routes stream events to the live connections of each viewer. It is the
// notification surface implementation owned by the composition root.
type Hub struct {
	mu      sync.Mutex
	streams map[uuid.UUID]map[int]chan StreamEvent
	nextID  int
}

// NewHub constructs a Hub.
func NewHub() *Hub {
	return &Hub{streams: make(map[uuid.UUID]map[int]chan StreamEvent)}
}

// Attach opens a stream for a viewer. The returned channel is buffered;
// events are dropped for consumers that fall behind rather than blocking
// the dispatching goroutine. Detach must be called when the consumer leaves.
func (h *Hub) Attach(viewerID uuid.UUID) (<-chan StreamEvent, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := make(chan StreamEvent, 16)
	id := h.nextID
	h.nextID++
	conns, ok := h.streams[viewerID]
	if !ok {
		conns = make(map[int]chan StreamEvent)
		h.streams[viewerID] = conns
	}
	conns[id] = ch
	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if conns, ok := h.streams[viewerID]; ok {
			delete(conns, id)
			if len(conns) == 0 {
				delete(h.streams, viewerID)
			}
		}
	}
}

// Dispatch implements Dispatcher, fanning the notification out to the
// viewer's live connections. Fire-and-forget: no connection, no delivery.
func (h *Hub) Dispatch(viewerID uuid.UUID, n Notification) {
	h.send(viewerID, StreamEvent{Kind: StreamNotification, Notification: &n})
}

// Ping signals the viewer's connections that the cached collection changed.
func (h *Hub) Ping(viewerID uuid.UUID) {
	h.send(viewerID, StreamEvent{Kind: StreamSync})
}

func (h *Hub) send(viewerID uuid.UUID, ev StreamEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.streams[viewerID] {
		select {
		case ch <- ev:
		default:
		}
	}
}

var _ Dispatcher = (*Hub)(nil)
