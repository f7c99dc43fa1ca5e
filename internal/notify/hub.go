package notify

import (
	"context"
	"sort"
	"sync"

	"hostconfd/pkg/logging"
)

// Handler receives "something relevant may have changed" signals. It must
// return quickly and must not block on the work the signal triggers.
type Handler interface {
	OnNotification()
}

// Publisher fans a notification for one source out to its subscribers.
type Publisher interface {
	Publish(source string) int
	PublishAll() int
}

// Source produces notifications until it is stopped.
type Source interface {
	Name() string
	Start(ctx context.Context, pub Publisher) error
	Stop() error
}

// Hub maps source names to subscribed handlers.
type Hub struct {
	mu   sync.RWMutex
	subs map[string][]Handler
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string][]Handler)}
}

// Subscribe adds handler to source. Subscribing the same handler to the
// same source again has no effect. Handlers are compared by identity, so
// they should be pointers.
func (h *Hub) Subscribe(source string, handler Handler) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, existing := range h.subs[source] {
		if existing == handler {
			return
		}
	}
	h.subs[source] = append(h.subs[source], handler)
	logging.Debug("NotifyHub", "Subscribed handler to %s (%d total)", source, len(h.subs[source]))
}

// Publish delivers one notification to every handler of source and returns
// how many handlers were notified.
func (h *Hub) Publish(source string) int {
	h.mu.RLock()
	handlers := append([]Handler(nil), h.subs[source]...)
	h.mu.RUnlock()

	for _, handler := range handlers {
		handler.OnNotification()
	}
	return len(handlers)
}

// PublishAll notifies every handler once, regardless of how many sources it
// is subscribed to. Used after a notification stream was interrupted and
// events may have been missed.
func (h *Hub) PublishAll() int {
	h.mu.RLock()
	var handlers []Handler
	for _, subs := range h.subs {
		for _, handler := range subs {
			if !containsHandler(handlers, handler) {
				handlers = append(handlers, handler)
			}
		}
	}
	h.mu.RUnlock()

	for _, handler := range handlers {
		handler.OnNotification()
	}
	return len(handlers)
}

// Sources returns the subscribed source names, sorted.
func (h *Hub) Sources() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	sources := make([]string, 0, len(h.subs))
	for source := range h.subs {
		sources = append(sources, source)
	}
	sort.Strings(sources)
	return sources
}

func containsHandler(list []Handler, h Handler) bool {
	for _, x := range list {
		if x == h {
			return true
		}
	}
	return false
}
