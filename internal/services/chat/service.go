// File: internal/services/chat/service.go
package chat

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/weichi/go-chatroom/internal/domain"
	"github.com/weichi/go-chatroom/internal/repository/message"
	"github.com/weichi/go-chatroom/internal/services"
)

// timeLayout is the client-visible timestamp format.
const timeLayout = "2006-01-02 15:04:05"

// RoomService is the connection handler for the single chat room. It owns
// the per-connection lifecycle: register (possibly evicting a stale session
// for the same user), replay history, relay inbound frames through
// classification into persistence and broadcast, and announce departures.
type RoomService struct {
	registry *SessionRegistry
	router   *Router
	writer   *QueuedWriter
	messages message.MessageRepository
	cfg      Config
	logger   services.Logger

	now func() time.Time
}

func NewRoomService(registry *SessionRegistry, router *Router, writer *QueuedWriter,
	messages message.MessageRepository, cfg Config, logger services.Logger) (*RoomService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid room config: %w", err)
	}
	return &RoomService{
		registry: registry,
		router:   router,
		writer:   writer,
		messages: messages,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Registry exposes the session table, mainly for handlers and tests.
func (s *RoomService) Registry() *SessionRegistry {
	return s.registry
}

// HandleClient runs the full session for one authenticated connection and
// returns when the connection is gone. The caller must have started the
// client's write pump.
func (s *RoomService) HandleClient(ctx context.Context, client *Client) {
	username := client.Username()

	evicted := s.registry.Register(client, username)
	if evicted {
		s.logger.Info("evicted stale session", "username", username)
	}

	s.replayHistory(ctx, client)
	s.router.Broadcast(NewMemberListEvent(s.registry.Members()))

	// A user resuming on a new connection never re-joins from the room's
	// perspective, so the announcement is skipped after an eviction.
	if !evicted {
		s.announce(fmt.Sprintf("%s joined the chat room", username))
	}

	client.SetupReadDeadlines()
	for {
		raw, err := client.ReadMessage()
		if err != nil {
			if !isExpectedCloseError(err) {
				s.logger.Warn("read error", "username", username, "error", err)
			}
			break
		}
		s.handleInbound(client, raw)
	}

	s.disconnect(client)
}

// DeleteMessage soft-deletes a message on behalf of requester and, on
// success, tells every connection to drop it. Repository sentinel errors
// (not found, not the author) pass through for the HTTP layer to map.
func (s *RoomService) DeleteMessage(ctx context.Context, id uint, requester string) error {
	if err := s.messages.SoftDelete(ctx, id, requester); err != nil {
		return err
	}
	s.router.Broadcast(NewDeleteEvent(id))
	return nil
}

// replayHistory sends the newest HistoryLimit visible messages to the new
// connection, oldest first, as a private frame.
func (s *RoomService) replayHistory(ctx context.Context, client *Client) {
	rows, err := s.messages.FindRecent(ctx, s.cfg.HistoryLimit)
	if err != nil {
		s.logger.Error("history replay failed", "username", client.Username(), "error", err)
		rows = nil
	}

	// FindRecent returns newest-first; the client renders top-down.
	views := make([]MessageView, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		views = append(views, NewMessageView(rows[i]))
	}
	s.router.Unicast(client, NewHistoryEvent(views))
}

// handleInbound classifies one frame and runs it through persistence and
// broadcast. Media frames without an upload URL carry nothing to relay and
// are dropped silently.
func (s *RoomService) handleInbound(client *Client, raw []byte) {
	in := DecodeInbound(raw)
	timestamp := s.now().Format(timeLayout)
	username := client.Username()

	if in.Kind == domain.KindText {
		if utf8.RuneCountInString(in.Content) > s.cfg.MaxMessageChars {
			warning := fmt.Sprintf("message rejected: longer than %d characters", s.cfg.MaxMessageChars)
			s.router.Unicast(client, NewSystemEvent(warning))
			return
		}
		id := s.persist(PendingWrite{
			Nickname:  username,
			Content:   in.Content,
			Kind:      domain.KindText,
			Timestamp: timestamp,
		})
		s.router.Broadcast(NewChatEvent(username, in.Content, timestamp, id))
		return
	}

	if in.Content == "" {
		return
	}
	id := s.persist(PendingWrite{
		Nickname:  username,
		Content:   in.Content,
		Kind:      in.Kind,
		Filename:  in.Filename,
		Timestamp: timestamp,
	})
	s.router.Broadcast(NewMediaEvent(in.Kind, username, in.Content, in.Filename, timestamp, id))
}

// disconnect tears down the session. A deregister miss means this client
// was evicted earlier; the user is still present on a newer connection, so
// nothing is announced.
func (s *RoomService) disconnect(client *Client) {
	username, ok := s.registry.Deregister(client)
	if !ok {
		return
	}

	s.announce(fmt.Sprintf("%s left the chat room", username))
	s.router.Broadcast(NewMemberListEvent(s.registry.Members()))
	s.logger.Info("session closed", "username", username)
}

// announce records and broadcasts a system notice.
func (s *RoomService) announce(text string) {
	s.persist(PendingWrite{
		Nickname:  domain.SystemAuthor,
		Content:   text,
		Kind:      domain.KindSystem,
		Timestamp: s.now().Format(timeLayout),
	})
	s.router.Broadcast(NewSystemEvent(text))
}

// persist pushes one append through the ordered write queue and waits for
// the assigned id so broadcasts can carry it. Queue overflow and insert
// failures both yield id 0: the message is still seen live but will be
// absent from later history, and that loss is logged, not retried.
func (s *RoomService) persist(pw PendingWrite) uint {
	result, err := s.writer.Enqueue(pw)
	if err != nil {
		return 0
	}
	res := <-result
	if res.Err != nil {
		return 0
	}
	return res.ID
}
