// File: internal/services/chat/config.go
package chat

import "fmt"

// Config carries the room's tunables.
type Config struct {
	// HistoryLimit is the number of recent messages replayed to a newly
	// connected client.
	HistoryLimit int

	// MaxMessageChars is the rune ceiling for inbound text messages.
	// Longer messages are rejected with a private warning.
	MaxMessageChars int

	// QueueSize bounds the durable write queue. Enqueue fails once the
	// queue is full; the message is still broadcast but lost from history.
	QueueSize int

	// SendBuffer is the per-client outbound channel capacity.
	SendBuffer int
}

// DefaultConfig returns the room defaults used when no overrides are set.
func DefaultConfig() Config {
	return Config{
		HistoryLimit:    50,
		MaxMessageChars: 2000,
		QueueSize:       256,
		SendBuffer:      256,
	}
}

// Validate checks that every tunable is usable.
func (c Config) Validate() error {
	if c.HistoryLimit <= 0 {
		return fmt.Errorf("history limit must be positive, got %d", c.HistoryLimit)
	}
	if c.MaxMessageChars <= 0 {
		return fmt.Errorf("max message chars must be positive, got %d", c.MaxMessageChars)
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("queue size must be positive, got %d", c.QueueSize)
	}
	if c.SendBuffer <= 0 {
		return fmt.Errorf("send buffer must be positive, got %d", c.SendBuffer)
	}
	return nil
}
