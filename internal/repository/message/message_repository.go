// File: internal/repository/message/message_repository.go
package message

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"gorm.io/gorm"

	"github.com/weichi/go-chatroom/internal/domain"
)

var (
	ErrMessageNotFound  = errors.New("message not found")
	ErrNotMessageAuthor = errors.New("requester is not the message author")
)

type gormMessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &gormMessageRepository{db: db}
}

// Create inserts a message row and returns it with the assigned id.
func (r *gormMessageRepository) Create(ctx context.Context, msg *domain.ChatMessage) (*domain.ChatMessage, error) {
	if err := r.validateMessageInput(msg); err != nil {
		log.Printf("[MessageRepository] Validation failed: %v", err)
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	if err := r.db.WithContext(ctx).Create(msg).Error; err != nil {
		log.Printf("[MessageRepository] Database error during message creation for %q: %v", msg.Nickname, err)
		return nil, errors.New("database error creating message")
	}

	return msg, nil
}

// FindRecent returns the newest `limit` non-deleted messages, newest first.
// Callers that replay history reverse the slice to oldest-first themselves.
func (r *gormMessageRepository) FindRecent(ctx context.Context, limit int) ([]domain.ChatMessage, error) {
	if limit <= 0 {
		return nil, errors.New("limit must be positive")
	}

	var messages []domain.ChatMessage
	err := r.db.WithContext(ctx).
		Where("is_deleted = ?", false).
		Order("id DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		log.Printf("[MessageRepository] Database error fetching recent messages: %v", err)
		return nil, errors.New("database error fetching messages")
	}

	return messages, nil
}

func (r *gormMessageRepository) FindByID(ctx context.Context, id uint) (*domain.ChatMessage, error) {
	if id == 0 {
		return nil, errors.New("invalid message ID")
	}

	var msg domain.ChatMessage
	err := r.db.WithContext(ctx).First(&msg, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		log.Printf("[MessageRepository] Database error during lookup of message %d: %v", id, err)
		return nil, errors.New("database error fetching message")
	}
	return &msg, nil
}

// SoftDelete hides a message from history without removing the row. Only the
// author may delete their own message; system rows have an empty author and
// therefore never match a requester.
func (r *gormMessageRepository) SoftDelete(ctx context.Context, id uint, requester string) error {
	if id == 0 {
		return errors.New("invalid message ID")
	}
	if strings.TrimSpace(requester) == "" {
		return errors.New("requester is required")
	}

	msg, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if msg.IsDeleted {
		return ErrMessageNotFound
	}
	if msg.Nickname != requester {
		log.Printf("[MessageRepository] Rejected delete of message %d: requester %q is not author %q", id, requester, msg.Nickname)
		return ErrNotMessageAuthor
	}

	result := r.db.WithContext(ctx).
		Model(&domain.ChatMessage{}).
		Where("id = ? AND nickname = ?", id, requester).
		Update("is_deleted", true)
	if result.Error != nil {
		log.Printf("[MessageRepository] Database error soft-deleting message %d: %v", id, result.Error)
		return errors.New("database error deleting message")
	}
	if result.RowsAffected == 0 {
		return ErrMessageNotFound
	}

	log.Printf("[MessageRepository] Message %d soft-deleted by %q", id, requester)
	return nil
}

func (r *gormMessageRepository) CountVisible(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.ChatMessage{}).
		Where("is_deleted = ?", false).
		Count(&count).Error
	if err != nil {
		log.Printf("[MessageRepository] Database error counting messages: %v", err)
		return 0, errors.New("database error counting messages")
	}
	return count, nil
}

func (r *gormMessageRepository) validateMessageInput(msg *domain.ChatMessage) error {
	if msg == nil {
		return errors.New("message cannot be nil")
	}
	switch msg.Kind {
	case domain.KindText, domain.KindImage, domain.KindFile, domain.KindVideo, domain.KindSystem:
	default:
		return fmt.Errorf("unknown message kind %q", msg.Kind)
	}
	if msg.Kind != domain.KindSystem && strings.TrimSpace(msg.Nickname) == "" {
		return errors.New("nickname is required")
	}
	return nil
}
