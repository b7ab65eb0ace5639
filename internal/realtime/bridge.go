package realtime

import (
	"encoding/json"
	"log"
)

// Event is the wire format broadcast to websocket subscribers.
type Event struct {
	Type string `json:"type"` // "put", "evict" or "clear"
	Key  string `json:"key,omitempty"`
}

// EventBridge adapts the hub to the cache store's listener interface, so
// every committed mutation is fanned out to websocket subscribers.
type EventBridge struct {
	hub *Hub
}

func NewEventBridge(hub *Hub) *EventBridge {
	return &EventBridge{hub: hub}
}

func (b *EventBridge) OnPut(key string, value any) {
	b.broadcast(Event{Type: "put", Key: key})
}

func (b *EventBridge) OnEvict(key string) {
	b.broadcast(Event{Type: "evict", Key: key})
}

func (b *EventBridge) OnClear() {
	b.broadcast(Event{Type: "clear"})
}

func (b *EventBridge) broadcast(ev Event) {
	msg, err := json.Marshal(ev)
	if err != nil {
		log.Printf("failed to marshal cache event: %v", err)
		return
	}
	b.hub.Broadcast(msg)
}
