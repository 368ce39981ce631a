// File: internal/services/user_services/auth_service.go
package user_services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/weichi/go-chatroom/internal/domain"
	"github.com/weichi/go-chatroom/internal/repository/user"
	"github.com/weichi/go-chatroom/internal/services"
)

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_]{3,20}$`)

const tokenLifetime = 30 * time.Minute

// AuthService issues and verifies the bearer tokens that admit users to the
// chat room, and handles registration and password changes.
type AuthService struct {
	userRepo     user.UserRepository
	jwtSecretKey string
	logger       services.Logger
}

func NewAuthService(userRepo user.UserRepository, jwtSecretKey string, logger services.Logger) *AuthService {
	return &AuthService{
		userRepo:     userRepo,
		jwtSecretKey: jwtSecretKey,
		logger:       logger,
	}
}

// Register creates a new user with a hashed password.
func (s *AuthService) Register(ctx context.Context, username, password, confirmPassword string) (*domain.User, error) {
	if !usernameRegex.MatchString(username) {
		return nil, errors.New("username must be 3-20 characters, alphanumeric or underscore")
	}
	if password != confirmPassword {
		return nil, errors.New("passwords do not match")
	}
	if err := domain.ValidatePasswordPolicy(password); err != nil {
		return nil, err
	}

	exists, err := s.userRepo.ExistsByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}
	if exists {
		s.logger.Warn("registration failed - username already exists", "username", username)
		return nil, errors.New("username already taken")
	}

	newUser := &domain.User{Username: username}
	if err := newUser.HashPassword(password); err != nil {
		s.logger.Error("password hashing failed", "error", err)
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	created, err := s.userRepo.Create(ctx, newUser)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user registered", "username", username, "user_id", created.ID)
	return created, nil
}

// Login authenticates a user and returns a signed access token.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, error) {
	if username == "" || password == "" {
		return "", errors.New("username and password are required")
	}

	u, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		s.logger.Warn("login failed - user not found", "username", username)
		return "", errors.New("incorrect username or password")
	}

	if err := u.ValidatePassword(password); err != nil {
		s.logger.Warn("login failed - invalid password", "username", username, "user_id", u.ID)
		return "", errors.New("incorrect username or password")
	}

	token, err := s.generateToken(u.Username)
	if err != nil {
		s.logger.Error("token generation failed", "error", err, "user_id", u.ID)
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	s.logger.Info("login successful", "username", username, "user_id", u.ID)
	return token, nil
}

// ChangePassword verifies the old password and stores a new hash.
func (s *AuthService) ChangePassword(ctx context.Context, username, oldPassword, newPassword, confirmNewPassword string) error {
	if newPassword != confirmNewPassword {
		return errors.New("new passwords do not match")
	}
	if err := domain.ValidatePasswordPolicy(newPassword); err != nil {
		return err
	}

	u, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return errors.New("user not found")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(oldPassword)); err != nil {
		s.logger.Warn("password change failed - wrong old password", "username", username)
		return errors.New("old password is incorrect")
	}

	if err := u.HashPassword(newPassword); err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.userRepo.Update(ctx, u); err != nil {
		return err
	}

	s.logger.Info("password changed", "username", username, "user_id", u.ID)
	return nil
}

// VerifyToken validates a bearer token and returns the username it was
// issued to. This is the identity check performed on every WebSocket
// admission and on authenticated HTTP routes.
func (s *AuthService) VerifyToken(tokenString string) (string, error) {
	if tokenString == "" {
		return "", errors.New("empty token")
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecretKey), nil
	})
	if err != nil {
		s.logger.Warn("token validation failed", "error", err)
		return "", fmt.Errorf("invalid token: %w", err)
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		if username, ok := claims["sub"].(string); ok && username != "" {
			return username, nil
		}
		return "", errors.New("invalid token claims")
	}

	return "", errors.New("invalid token")
}

// generateToken creates a signed JWT with the username as subject.
func (s *AuthService) generateToken(username string) (string, error) {
	claims := jwt.MapClaims{
		"sub": username,
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(tokenLifetime).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtSecretKey))
}
