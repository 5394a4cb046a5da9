package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"workit/internal/models"
	"workit/internal/observability"
	"workit/internal/repository"
	"workit/internal/validation"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = bcrypt.DefaultCost

// RegisterInput is the registration form.
type RegisterInput struct {
	Username        string `json:"username"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// LoginInput is the login form.
type LoginInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// UserService covers credentials and account lookups.
type UserService struct {
	userRepo repository.UserRepository
	now      func() time.Time
}

func NewUserService(userRepo repository.UserRepository) *UserService {
	return &UserService{userRepo: userRepo, now: systemNow}
}

// Register creates an account. A password confirmation mismatch fails before
// anything is read or written.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	if in.Password != in.ConfirmPassword {
		return nil, models.NewValidationError("passwords do not match")
	}
	username := strings.TrimSpace(in.Username)
	if err := validation.ValidateUsername(username); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	if _, err := s.userRepo.GetByUsername(ctx, username); err == nil {
		return nil, models.NewConflictError("username already registered")
	} else if !models.IsCode(err, models.CodeNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcryptCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	user := &models.User{
		Username: username,
		Password: string(hash),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login verifies credentials and marks the user online. An unknown username
// and a wrong password fail with different errors.
func (s *UserService) Login(ctx context.Context, in LoginInput) (user *models.User, err error) {
	ctx, span := observability.StartSpan(ctx, "service", "Login", attribute.String("username", in.Username))
	defer func() { observability.EndSpan(span, err) }()

	username := strings.TrimSpace(in.Username)
	if username == "" || in.Password == "" {
		return nil, models.NewValidationError("username and password are required")
	}

	user, err = s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(in.Password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, models.NewUnauthorizedError("wrong password")
		}
		return nil, models.NewInternalError(err)
	}

	now := s.now()
	if err := s.userRepo.SetOnlineStatus(ctx, user.ID, true, now); err != nil {
		return nil, err
	}
	user.IsOnline = true
	user.LastSeen = &now
	return user, nil
}

// SetOnlineStatus updates the online flag and last-seen time.
func (s *UserService) SetOnlineStatus(ctx context.Context, userID uint, online bool) error {
	return s.userRepo.SetOnlineStatus(ctx, userID, online, s.now())
}

func (s *UserService) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

// ListUsers returns everyone except the caller for the network panel.
func (s *UserService) ListUsers(ctx context.Context, exceptUserID uint) ([]models.User, error) {
	return s.userRepo.ListExcept(ctx, exceptUserID)
}
