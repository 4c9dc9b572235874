package service

import "sync"

// EventType defines the type of event
type EventType string

const (
	EventNodeCreated      EventType = "node_created"
	EventNodeReused       EventType = "node_reused"
	EventNodeDeleted      EventType = "node_deleted"
	EventAssetModified    EventType = "asset_modified"
	EventAssetFinalized   EventType = "asset_finalized"
	EventInputUploaded    EventType = "input_uploaded"
	EventInputDestroyed   EventType = "input_destroyed"
	EventRetrieveFinished EventType = "retrieve_finished"
)

// Event represents an event that occurred in the bridge
type Event struct {
	Type    EventType   `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// NodePayload is the payload of node events
type NodePayload struct {
	Node   int32  `json:"node"`
	Name   string `json:"name,omitempty"`
	Object string `json:"object,omitempty"`
}

// AssetPayload is the payload of asset events
type AssetPayload struct {
	Path  string `json:"path"`
	Items int    `json:"items"`
}

// EventBus allows publishing and subscribing to events
type EventBus struct {
	mu          sync.RWMutex
	subscribers []chan<- Event
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make([]chan<- Event, 0),
	}
}

// Subscribe adds a subscriber to receive events
func (eb *EventBus) Subscribe(ch chan<- Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.subscribers = append(eb.subscribers, ch)
}

// Unsubscribe removes a subscriber. The channel is not closed.
func (eb *EventBus) Unsubscribe(ch chan<- Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	for i, sub := range eb.subscribers {
		if sub == ch {
			eb.subscribers = append(eb.subscribers[:i], eb.subscribers[i+1:]...)
			return
		}
	}
}

// Publish sends an event to all subscribers. A nil bus drops the event.
func (eb *EventBus) Publish(event Event) {
	if eb == nil {
		return
	}
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	for _, ch := range eb.subscribers {
		select {
		case ch <- event:
		default:
			// Subscriber is slow, skip
		}
	}
}
