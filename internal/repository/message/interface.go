// File: internal/repository/message/interface.go
package message

import (
	"context"

	"github.com/weichi/go-chatroom/internal/domain"
)

// MessageRepository is the durable store for chat room messages. Ids are
// assigned by the database on Create and are monotonic; soft-deleted rows
// keep their id forever.
type MessageRepository interface {
	Create(ctx context.Context, msg *domain.ChatMessage) (*domain.ChatMessage, error)
	FindRecent(ctx context.Context, limit int) ([]domain.ChatMessage, error)
	FindByID(ctx context.Context, id uint) (*domain.ChatMessage, error)
	SoftDelete(ctx context.Context, id uint, requester string) error
	CountVisible(ctx context.Context) (int64, error)
}
