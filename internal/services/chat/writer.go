// File: internal/services/chat/writer.go
package chat

import (
	"context"
	"errors"

	"github.com/weichi/go-chatroom/internal/domain"
	"github.com/weichi/go-chatroom/internal/repository/message"
	"github.com/weichi/go-chatroom/internal/services"
)

// ErrQueueFull is returned by Enqueue when the bounded write queue has no
// room. The caller broadcasts anyway and the message is lost from history,
// which is the room's accepted-loss policy under overload.
var ErrQueueFull = errors.New("write queue is full")

// PendingWrite is one durable append waiting for the writer loop.
type PendingWrite struct {
	Nickname  string
	Content   string
	Kind      string
	Filename  string
	Timestamp string
}

// WriteResult reports the outcome of a queued write. ID is zero when the
// insert failed.
type WriteResult struct {
	ID  uint
	Err error
}

type pendingEntry struct {
	write  PendingWrite
	result chan WriteResult
}

// QueuedWriter decouples message persistence from the broadcast path. All
// appends flow through one bounded FIFO channel consumed by a single
// goroutine, so rows are inserted in exactly the order they were enqueued
// and a slow insert only ever stalls the connection that is waiting on its
// own result, never the router or other connections.
type QueuedWriter struct {
	repo   message.MessageRepository
	queue  chan pendingEntry
	logger services.Logger
	done   chan struct{}
}

func NewQueuedWriter(repo message.MessageRepository, size int, logger services.Logger) *QueuedWriter {
	return &QueuedWriter{
		repo:   repo,
		queue:  make(chan pendingEntry, size),
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Enqueue submits a write without blocking. The returned channel receives
// exactly one WriteResult once the single consumer has applied the insert;
// callers that need the assigned id wait on it, callers that do not can
// ignore it.
func (w *QueuedWriter) Enqueue(pw PendingWrite) (<-chan WriteResult, error) {
	entry := pendingEntry{write: pw, result: make(chan WriteResult, 1)}
	select {
	case w.queue <- entry:
		return entry.result, nil
	default:
		w.logger.Warn("write queue full, dropping durable write",
			"nickname", pw.Nickname, "kind", pw.Kind)
		return nil, ErrQueueFull
	}
}

// Run is the writer loop. It consumes pending writes in FIFO order until ctx
// is cancelled, then drains whatever is still queued before exiting. Insert
// failures are logged and swallowed; the loop itself never dies. Exactly one
// Run must be active per writer.
func (w *QueuedWriter) Run(ctx context.Context) {
	defer close(w.done)

	for {
		select {
		case <-ctx.Done():
			w.drain()
			return
		case entry := <-w.queue:
			w.apply(entry)
		}
	}
}

// Done is closed once Run has exited.
func (w *QueuedWriter) Done() <-chan struct{} {
	return w.done
}

// drain applies everything still buffered at shutdown so accepted writes are
// not lost to a restart.
func (w *QueuedWriter) drain() {
	for {
		select {
		case entry := <-w.queue:
			w.apply(entry)
		default:
			return
		}
	}
}

func (w *QueuedWriter) apply(entry pendingEntry) {
	msg := &domain.ChatMessage{
		Nickname:  entry.write.Nickname,
		Content:   entry.write.Content,
		Kind:      entry.write.Kind,
		Filename:  entry.write.Filename,
		Timestamp: entry.write.Timestamp,
	}

	// Background context: the write was already accepted, a shutdown in
	// progress must not abort it halfway.
	created, err := w.repo.Create(context.Background(), msg)
	if err != nil {
		w.logger.Error("durable write failed, message dropped from history",
			"nickname", entry.write.Nickname, "kind", entry.write.Kind, "error", err)
		entry.result <- WriteResult{Err: err}
		return
	}

	entry.result <- WriteResult{ID: created.ID}
}
