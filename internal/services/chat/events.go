// File: internal/services/chat/events.go
package chat

import (
	"encoding/json"

	"github.com/weichi/go-chatroom/internal/domain"
)

// Event is the closed set of frames the room sends to clients. Every variant
// carries its own "type" discriminator so the router can marshal any event
// exactly once per broadcast.
type Event interface {
	isEvent()
}

// MessageView is the shape of one persisted message inside a history replay.
// Message is populated for text/system rows, ImageData for media rows.
type MessageView struct {
	Nickname  string `json:"nickname"`
	Type      string `json:"type"`
	Time      string `json:"time"`
	ID        uint   `json:"id"`
	IsDeleted bool   `json:"is_deleted"`
	Filename  string `json:"filename,omitempty"`
	Message   string `json:"message,omitempty"`
	ImageData string `json:"imageData,omitempty"`
}

// NewMessageView converts a stored row into its wire representation.
func NewMessageView(m domain.ChatMessage) MessageView {
	view := MessageView{
		Nickname:  m.Nickname,
		Type:      m.Kind,
		Time:      m.Timestamp,
		ID:        m.ID,
		IsDeleted: m.IsDeleted,
	}
	if m.IsMedia() {
		view.ImageData = m.Content
		view.Filename = m.Filename
	} else {
		view.Message = m.Content
	}
	return view
}

type HistoryEvent struct {
	Type     string        `json:"type"`
	Messages []MessageView `json:"messages"`
}

type SystemEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type MemberListEvent struct {
	Type    string   `json:"type"`
	Members []string `json:"members"`
}

type ChatEvent struct {
	Type     string `json:"type"`
	Nickname string `json:"nickname"`
	Message  string `json:"message"`
	Time     string `json:"time"`
	ID       uint   `json:"id"`
}

// MediaEvent covers the image, file and video frames; Type holds the kind.
type MediaEvent struct {
	Type      string `json:"type"`
	Nickname  string `json:"nickname"`
	ImageData string `json:"imageData"`
	Filename  string `json:"filename,omitempty"`
	Time      string `json:"time"`
	ID        uint   `json:"id"`
}

type DeleteEvent struct {
	Type string `json:"type"`
	ID   uint   `json:"id"`
}

func (HistoryEvent) isEvent()    {}
func (SystemEvent) isEvent()     {}
func (MemberListEvent) isEvent() {}
func (ChatEvent) isEvent()       {}
func (MediaEvent) isEvent()      {}
func (DeleteEvent) isEvent()     {}

func NewHistoryEvent(messages []MessageView) HistoryEvent {
	return HistoryEvent{Type: "history", Messages: messages}
}

func NewSystemEvent(message string) SystemEvent {
	return SystemEvent{Type: "system", Message: message}
}

func NewMemberListEvent(members []string) MemberListEvent {
	return MemberListEvent{Type: "member_list_update", Members: members}
}

func NewChatEvent(nickname, message, timestamp string, id uint) ChatEvent {
	return ChatEvent{Type: "chat", Nickname: nickname, Message: message, Time: timestamp, ID: id}
}

func NewMediaEvent(kind, nickname, url, filename, timestamp string, id uint) MediaEvent {
	return MediaEvent{Type: kind, Nickname: nickname, ImageData: url, Filename: filename, Time: timestamp, ID: id}
}

func NewDeleteEvent(id uint) DeleteEvent {
	return DeleteEvent{Type: "delete", ID: id}
}

// Inbound is the classified form of one client frame.
type Inbound struct {
	Kind     string // domain.KindText or one of the media kinds
	Content  string // raw text body, or the upload URL for media
	Filename string
}

// inboundFrame is the structured client payload for media messages. The
// upload URL travels in imageData for all media kinds, including files
// and videos.
type inboundFrame struct {
	Type      string `json:"type"`
	ImageData string `json:"imageData"`
	Filename  string `json:"filename"`
}

// DecodeInbound classifies a raw client frame. Only well-formed JSON objects
// with a media type are treated as media; everything else, including
// malformed JSON and structured payloads of any other shape, degrades to a
// plain text message carrying the raw frame. The fallback is a policy, not
// an error path: no inbound frame is ever dropped for being unparsable.
func DecodeInbound(raw []byte) Inbound {
	var frame inboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return Inbound{Kind: domain.KindText, Content: string(raw)}
	}

	switch frame.Type {
	case domain.KindImage:
		return Inbound{Kind: domain.KindImage, Content: frame.ImageData}
	case domain.KindFile:
		filename := frame.Filename
		if filename == "" {
			filename = "attachment"
		}
		return Inbound{Kind: domain.KindFile, Content: frame.ImageData, Filename: filename}
	case domain.KindVideo:
		filename := frame.Filename
		if filename == "" {
			filename = "video"
		}
		return Inbound{Kind: domain.KindVideo, Content: frame.ImageData, Filename: filename}
	default:
		return Inbound{Kind: domain.KindText, Content: string(raw)}
	}
}
