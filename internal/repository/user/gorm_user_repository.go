// File: internal/repository/user/gorm_user_repository.go
package user

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"gorm.io/gorm"

	"github.com/weichi/go-chatroom/internal/domain"
)

var ErrUserNotFound = errors.New("user not found")

type gormUserRepository struct {
	db *gorm.DB
}

func NewGormUserRepository(db *gorm.DB) UserRepository {
	return &gormUserRepository{db: db}
}

// Create persists a new user after basic input validation.
func (r *gormUserRepository) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	if err := r.validateUserInput(user); err != nil {
		log.Printf("[UserRepository] Validation failed: %v", err)
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		// Secure logging - no sensitive data exposed
		log.Printf("[UserRepository] Database error during user creation: %v", err)
		return nil, errors.New("database error creating user")
	}

	log.Printf("[UserRepository] User created successfully with ID: %d", user.ID)
	return user, nil
}

// Update saves changes to an existing user (used for password changes).
func (r *gormUserRepository) Update(ctx context.Context, user *domain.User) error {
	if user.ID == 0 {
		return errors.New("invalid user ID")
	}
	if err := r.validateUserInput(user); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	if err := r.db.WithContext(ctx).Save(user).Error; err != nil {
		log.Printf("[UserRepository] Database error during user update for ID %d: %v", user.ID, err)
		return errors.New("database error updating user")
	}
	return nil
}

func (r *gormUserRepository) FindByID(ctx context.Context, id uint) (*domain.User, error) {
	if id == 0 {
		return nil, errors.New("invalid user ID")
	}

	var user domain.User
	err := r.db.WithContext(ctx).First(&user, id).Error
	return r.handleFindError(err, &user)
}

func (r *gormUserRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	if strings.TrimSpace(username) == "" {
		return nil, errors.New("username is required")
	}

	var user domain.User
	err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	return r.handleFindError(err, &user)
}

func (r *gormUserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.User{}).
		Where("username = ?", username).
		Count(&count).Error
	if err != nil {
		log.Printf("[UserRepository] Database error checking username existence: %v", err)
		return false, errors.New("database error checking username")
	}
	return count > 0, nil
}

// handleFindError maps gorm's not-found error to the repository sentinel so
// callers never depend on gorm directly.
func (r *gormUserRepository) handleFindError(err error, user *domain.User) (*domain.User, error) {
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		log.Printf("[UserRepository] Database error during lookup: %v", err)
		return nil, errors.New("database error fetching user")
	}
	return user, nil
}

func (r *gormUserRepository) validateUserInput(user *domain.User) error {
	if user == nil {
		return errors.New("user cannot be nil")
	}
	if strings.TrimSpace(user.Username) == "" {
		return errors.New("username is required")
	}
	if user.Password == "" {
		return errors.New("password hash is required")
	}
	return nil
}
