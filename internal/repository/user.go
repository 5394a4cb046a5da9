package repository

import (
	"context"
	"errors"
	"time"

	"workit/internal/cache"
	"workit/internal/models"

	"gorm.io/gorm"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	SetOnlineStatus(ctx context.Context, id uint, online bool, at time.Time) error
	ListExcept(ctx context.Context, id uint) ([]models.User, error)
	MarkOffline(ctx context.Context, ids []uint) error
}

type userRepository struct {
	db    *gorm.DB
	cache *cache.Store
}

// NewUserRepository returns a new UserRepository implementation. A nil
// cache store disables read-through caching.
func NewUserRepository(db *gorm.DB, store *cache.Store) UserRepository {
	return &userRepository{db: db, cache: store}
}

// GetByID returns a user without its password hash; cached copies never carry it.
func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	user, err := cache.Aside(ctx, r.cache, cache.UserKey(id), cache.UserTTL, func(ctx context.Context) (models.User, error) {
		var u models.User
		if err := r.db.WithContext(ctx).First(&u, id).Error; err != nil {
			return u, notFoundOr(err, "User", id)
		}
		u.Password = ""
		return u, nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundMessage("user not found")
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueViolation(err) {
			return models.NewConflictError("username already registered")
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *userRepository) SetOnlineStatus(ctx context.Context, id uint, online bool, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"is_online": online, "last_seen": at})
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("User", id)
	}
	r.cache.Invalidate(ctx, cache.UserKey(id))
	return nil
}

// ListExcept returns every other user ordered by username for the network panel.
func (r *userRepository) ListExcept(ctx context.Context, id uint) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).
		Where("id <> ?", id).
		Order("username ASC").
		Find(&users).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

// MarkOffline clears the online flag for users whose presence expired.
func (r *userRepository) MarkOffline(ctx context.Context, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id IN ?", ids).
		Update("is_online", false).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, cache.UserKey(id))
	}
	r.cache.Invalidate(ctx, keys...)
	return nil
}
