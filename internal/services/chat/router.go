// File: internal/services/chat/router.go
package chat

import (
	"encoding/json"
	"log"
)

// Router fans structured events out to connections. An event is marshaled
// once per call; delivery to each connection is isolated, so one dead socket
// never aborts delivery to the rest. Per-connection ordering is inherited
// from the client's send channel and single write pump.
type Router struct {
	registry *SessionRegistry
}

func NewRouter(registry *SessionRegistry) *Router {
	return &Router{registry: registry}
}

// Broadcast delivers an event to every currently registered connection.
// Failures are dropped per connection; the dead socket will surface its own
// disconnect through the transport soon enough.
func (rt *Router) Broadcast(event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("[Router] Failed to marshal broadcast event: %v", err)
		return
	}

	for _, client := range rt.registry.Snapshot() {
		if !client.trySend(payload) {
			log.Printf("[Router] Dropped broadcast frame for %s (slow or closed connection)", client.addr)
		}
	}
}

// Unicast delivers an event to exactly one connection, with the same
// serialization and isolation rules as Broadcast.
func (rt *Router) Unicast(client *Client, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("[Router] Failed to marshal unicast event: %v", err)
		return
	}
	if !client.trySend(payload) {
		log.Printf("[Router] Dropped unicast frame for %s (slow or closed connection)", client.addr)
	}
}
