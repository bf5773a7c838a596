// Package status exposes document lifecycle progress to clients, by poll
// and by server-sent events.
package status

import "sync"

// Hub fans document change signals out to watchers. Signals carry no
// payload; watchers re-read the document on wake. Sends never block, so a
// slow subscriber coalesces bursts instead of stalling publishers.
type Hub struct {
	mu       sync.Mutex
	watchers map[string]map[chan struct{}]struct{}
}

// NewHub constructs an empty hub.
func NewHub() *Hub {
	return &Hub{watchers: make(map[string]map[chan struct{}]struct{})}
}

// Publish wakes every watcher of the document.
func (h *Hub) Publish(documentID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.watchers[documentID] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Watch subscribes to a document. The caller must invoke cancel when done.
func (h *Hub) Watch(documentID string) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	h.mu.Lock()
	set, ok := h.watchers[documentID]
	if !ok {
		set = make(map[chan struct{}]struct{})
		h.watchers[documentID] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if set, ok := h.watchers[documentID]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(h.watchers, documentID)
			}
		}
	}
	return ch, cancel
}

// WatcherCount reports subscribers for one document.
func (h *Hub) WatcherCount(documentID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.watchers[documentID])
}
