// File: internal/services/chat/registry_test.go
package chat

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

// newTestClient builds a client without a live connection. CloseWithCode
// tolerates the nil conn, so eviction paths stay testable.
func newTestClient(username string) *Client {
	return NewClient(nil, "test", username, 8)
}

func TestRegisterFirstSession(t *testing.T) {
	registry := NewSessionRegistry()
	alice := newTestClient("alice")

	evicted := registry.Register(alice, "alice")

	assert.False(t, evicted)
	assert.Equal(t, []string{"alice"}, registry.Members())
	assert.Equal(t, 1, registry.Len())
}

func TestRegisterEvictsPreviousSession(t *testing.T) {
	registry := NewSessionRegistry()
	first := newTestClient("alice")
	second := newTestClient("alice")

	registry.Register(first, "alice")
	evicted := registry.Register(second, "alice")

	assert.True(t, evicted)
	// Member set is size-stable across the eviction.
	assert.Equal(t, []string{"alice"}, registry.Members())
	assert.Equal(t, 1, registry.Len())

	// The victim was closed: its send channel no longer accepts frames.
	assert.False(t, first.trySend([]byte("x")))
	assert.True(t, second.trySend([]byte("x")))
}

func TestDeregisterReturnsUsername(t *testing.T) {
	registry := NewSessionRegistry()
	alice := newTestClient("alice")
	registry.Register(alice, "alice")

	username, ok := registry.Deregister(alice)

	assert.True(t, ok)
	assert.Equal(t, "alice", username)
	assert.Empty(t, registry.Members())
}

func TestDeregisterEvictedVictimReturnsAbsent(t *testing.T) {
	registry := NewSessionRegistry()
	first := newTestClient("alice")
	second := newTestClient("alice")
	registry.Register(first, "alice")
	registry.Register(second, "alice")

	// The victim's own disconnect fires after the eviction; it must not
	// look like a real departure.
	username, ok := registry.Deregister(first)

	assert.False(t, ok)
	assert.Empty(t, username)
	assert.Equal(t, []string{"alice"}, registry.Members())
}

func TestMembersAreDistinctAndSorted(t *testing.T) {
	registry := NewSessionRegistry()
	registry.Register(newTestClient("carol"), "carol")
	registry.Register(newTestClient("alice"), "alice")
	registry.Register(newTestClient("bob"), "bob")

	assert.Equal(t, []string{"alice", "bob", "carol"}, registry.Members())
}

func TestAtMostOneSessionPerUserUnderConcurrency(t *testing.T) {
	registry := NewSessionRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			registry.Register(newTestClient("alice"), "alice")
		}()
	}
	wg.Wait()

	assert.Equal(t, []string{"alice"}, registry.Members())
	assert.Equal(t, 1, registry.Len())
}

func TestSnapshotIsStableCopy(t *testing.T) {
	registry := NewSessionRegistry()
	for i := 0; i < 5; i++ {
		name := fmt.Sprintf("user%d", i)
		registry.Register(newTestClient(name), name)
	}

	snapshot := registry.Snapshot()
	assert.Len(t, snapshot, 5)

	// Mutating the registry after the snapshot must not affect it.
	for _, c := range snapshot {
		registry.Deregister(c)
	}
	assert.Len(t, snapshot, 5)
	assert.Equal(t, 0, registry.Len())
}
