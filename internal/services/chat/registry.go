// File: internal/services/chat/registry.go
package chat

import (
	"sort"
	"sync"
)

// SessionRegistry maps live connections to the usernames that own them and
// enforces at most one session per user. Register, Deregister, Members and
// the broadcast snapshot all read-modify the same table, so a single mutex
// guards every operation.
type SessionRegistry struct {
	mu       sync.Mutex
	sessions map[*Client]string
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[*Client]string)}
}

// Register installs a session for username. If the user already has a live
// session, that older connection is removed from the table first and closed
// with the duplicate-login code; close failures are swallowed because the
// table, not the transport, is authoritative. The return value tells the
// caller whether an eviction happened, so it can suppress a duplicate
// "joined" announcement.
func (r *SessionRegistry) Register(client *Client, username string) (evicted bool) {
	var victim *Client

	r.mu.Lock()
	for existing, name := range r.sessions {
		if name == username && existing != client {
			delete(r.sessions, existing)
			victim = existing
			break
		}
	}
	r.sessions[client] = username
	r.mu.Unlock()

	if victim != nil {
		victim.CloseWithCode(CloseDuplicateLogin, "logged in from another connection")
		return true
	}
	return false
}

// Deregister removes the mapping for client and returns the username that
// was removed. ok is false when the mapping was already gone, which happens
// when the client was the victim of an eviction; its disconnect handler must
// then stay silent instead of announcing a departure for a user who is
// resuming on a newer connection.
func (r *SessionRegistry) Deregister(client *Client) (username string, ok bool) {
	r.mu.Lock()
	username, ok = r.sessions[client]
	if ok {
		delete(r.sessions, client)
	}
	r.mu.Unlock()

	if ok {
		client.markClosed()
	}
	return username, ok
}

// Members returns the distinct usernames currently registered, in sorted
// order. The de-duplication stays even though Register enforces uniqueness.
func (r *SessionRegistry) Members() []string {
	r.mu.Lock()
	seen := make(map[string]struct{}, len(r.sessions))
	for _, name := range r.sessions {
		seen[name] = struct{}{}
	}
	r.mu.Unlock()

	members := make([]string, 0, len(seen))
	for name := range seen {
		members = append(members, name)
	}
	sort.Strings(members)
	return members
}

// Snapshot returns a stable copy of the current connection set so broadcast
// fan-out never iterates the live table.
func (r *SessionRegistry) Snapshot() []*Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	clients := make([]*Client, 0, len(r.sessions))
	for client := range r.sessions {
		clients = append(clients, client)
	}
	return clients
}

// Len reports the number of live sessions.
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
