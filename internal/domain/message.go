// File: internal/domain/message.go
package domain

import "time"

// Message kinds stored in the msg_type column. SystemAuthor marks rows
// written by the room itself (join/leave notices); those rows can never be
// deleted through the API because no requester matches the empty author.
const (
	KindText   = "text"
	KindImage  = "image"
	KindFile   = "file"
	KindVideo  = "video"
	KindSystem = "system"

	SystemAuthor = ""
)

// ChatMessage represents a single persisted chat room message. Content holds
// the text body for text/system rows and the upload URL for media rows.
// Rows are soft-deleted only: IsDeleted hides them from history but the ID
// is never reused.
type ChatMessage struct {
	ID        uint   `gorm:"primarykey"`
	Nickname  string `gorm:"index;not null"`
	Content   string `gorm:"not null"`
	Kind      string `gorm:"column:msg_type;not null"`
	Filename  string
	Timestamp string `gorm:"not null"`
	IsDeleted bool   `gorm:"not null;default:false"`
	CreatedAt time.Time
}

// IsMedia reports whether the message carries an upload URL rather than a
// text body.
func (m *ChatMessage) IsMedia() bool {
	switch m.Kind {
	case KindImage, KindFile, KindVideo:
		return true
	}
	return false
}
