// Package hub fans bridge events out to SSE clients.
package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"geobridge/internal/service"
)

const (
	clientBuffer = 64
	keepalive    = 30 * time.Second
)

// subscriber is one open event stream. An empty types set takes every event.
type subscriber struct {
	id    string
	types map[service.EventType]bool
	out   chan []byte
}

func (s *subscriber) wants(t service.EventType) bool {
	return len(s.types) == 0 || s.types[t]
}

// Hub keeps the open event streams and routes events to them
type Hub struct {
	log *slog.Logger

	mu      sync.RWMutex
	streams map[*subscriber]struct{}

	join   chan *subscriber
	leave  chan *subscriber
	events chan service.Event
}

// New creates a hub. A nil logger uses slog.Default.
func New(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		log:     log,
		streams: make(map[*subscriber]struct{}),
		join:    make(chan *subscriber),
		leave:   make(chan *subscriber),
		events:  make(chan service.Event, 256),
	}
}

// Run routes events until ctx is done, then closes every stream
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case s := <-h.join:
			h.mu.Lock()
			h.streams[s] = struct{}{}
			n := len(h.streams)
			h.mu.Unlock()
			h.log.Debug("event stream opened", "stream", s.id, "open", n)

		case s := <-h.leave:
			h.drop(s)
			h.log.Debug("event stream closed", "stream", s.id, "open", h.ClientCount())

		case event := <-h.events:
			h.route(event)

		case <-ctx.Done():
			h.mu.Lock()
			for s := range h.streams {
				delete(h.streams, s)
				close(s.out)
			}
			h.mu.Unlock()
			return
		}
	}
}

func (h *Hub) drop(s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.streams[s]; ok {
		delete(h.streams, s)
		close(s.out)
	}
}

func (h *Hub) route(event service.Event) {
	msg, err := Format(event)
	if err != nil {
		h.log.Warn("failed to encode event", "type", string(event.Type), "err", err.Error())
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.streams {
		if !s.wants(event.Type) {
			continue
		}
		select {
		case s.out <- msg:
		default:
			h.log.Debug("event stream is behind, dropping event", "stream", s.id, "type", string(event.Type))
		}
	}
}

// Format renders event as one SSE message named after its type
func Format(event service.Event) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, data)), nil
}

// Broadcast queues event for every stream. It never blocks; when the
// queue is full the event is dropped.
func (h *Hub) Broadcast(event service.Event) {
	select {
	case h.events <- event:
	default:
		h.log.Warn("event queue full, dropping event", "type", string(event.Type))
	}
}

// Attach forwards every event published on bus until ctx is done
func (h *Hub) Attach(ctx context.Context, bus *service.EventBus) {
	ch := make(chan service.Event, clientBuffer)
	bus.Subscribe(ch)
	go func() {
		defer bus.Unsubscribe(ch)
		for {
			select {
			case event := <-ch:
				h.Broadcast(event)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// ClientCount returns the number of open streams
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.streams)
}

// parseTypes reads ?type=a,b&type=c into a set
func parseTypes(r *http.Request) map[service.EventType]bool {
	var types map[service.EventType]bool
	for _, v := range r.URL.Query()["type"] {
		for _, t := range strings.Split(v, ",") {
			if t = strings.TrimSpace(t); t == "" {
				continue
			}
			if types == nil {
				types = make(map[service.EventType]bool)
			}
			types[service.EventType(t)] = true
		}
	}
	return types
}

// ServeHTTP streams events to the client. The type query parameter
// limits the stream to the listed event types.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	s := &subscriber{
		id:    uuid.NewString(),
		types: parseTypes(r),
		out:   make(chan []byte, clientBuffer),
	}

	select {
	case h.join <- s:
	case <-r.Context().Done():
		return
	}
	defer func() {
		select {
		case h.leave <- s:
		case <-time.After(time.Second):
		}
	}()

	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")

	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	tick := time.NewTicker(keepalive)
	defer tick.Stop()

	for {
		select {
		case msg, ok := <-s.out:
			if !ok {
				return
			}
			if _, err := w.Write(msg); err != nil {
				return
			}
		case <-tick.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
		case <-r.Context().Done():
			return
		}
		flusher.Flush()
	}
}
