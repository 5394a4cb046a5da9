package repository

import (
	"context"

	"workit/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostRepository defines the interface for forum post data operations
type PostRepository interface {
	List(ctx context.Context) ([]models.Post, error)
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	LikedPostIDs(ctx context.Context, userID uint, postIDs []uint) ([]uint, error)
	Create(ctx context.Context, post *models.Post) error
	ToggleLike(ctx context.Context, postID, userID uint) (*models.Post, bool, error)
	IncrementShares(ctx context.Context, postID uint) (*models.Post, error)
}

type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

// List returns every post with its author, newest first.
func (r *postRepository) List(ctx context.Context) ([]models.Post, error) {
	posts := []models.Post{}
	err := r.db.WithContext(ctx).
		Preload("User").
		Order("created_at DESC, id DESC").
		Find(&posts).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

func (r *postRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).Preload("User").First(&post, id).Error; err != nil {
		return nil, notFoundOr(err, "Post", id)
	}
	return &post, nil
}

func (r *postRepository) LikedPostIDs(ctx context.Context, userID uint, postIDs []uint) ([]uint, error) {
	if userID == 0 || len(postIDs) == 0 {
		return nil, nil
	}
	var liked []uint
	err := r.db.WithContext(ctx).
		Model(&models.Like{}).
		Where("user_id = ? AND post_id IN ?", userID, postIDs).
		Pluck("post_id", &liked).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return liked, nil
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	post.Likes, post.Comments, post.Shares = 0, 0, 0
	if err := r.db.WithContext(ctx).Create(post).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// ToggleLike removes the user's like when present and adds it otherwise. The
// row change and the counter update commit together; likes never drop below zero.
func (r *postRepository) ToggleLike(ctx context.Context, postID, userID uint) (*models.Post, bool, error) {
	var (
		post  models.Post
		liked bool
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Select("id").First(&models.Post{}, postID).Error; err != nil {
			return err
		}

		res := tx.Where("post_id = ? AND user_id = ?", postID, userID).Delete(&models.Like{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			if err := tx.Model(&models.Post{}).
				Where("id = ?", postID).
				Update("likes", gorm.Expr("CASE WHEN likes > 0 THEN likes - 1 ELSE 0 END")).Error; err != nil {
				return err
			}
		} else {
			liked = true
			ins := tx.Clauses(clause.OnConflict{DoNothing: true}).
				Create(&models.Like{PostID: postID, UserID: userID})
			if ins.Error != nil {
				return ins.Error
			}
			// A concurrent toggle may have inserted the pair first.
			if ins.RowsAffected > 0 {
				if err := tx.Model(&models.Post{}).
					Where("id = ?", postID).
					Update("likes", gorm.Expr("likes + 1")).Error; err != nil {
					return err
				}
			}
		}

		return tx.Preload("User").First(&post, postID).Error
	})
	if err != nil {
		return nil, false, notFoundOr(err, "Post", postID)
	}
	return &post, liked, nil
}

func (r *postRepository) IncrementShares(ctx context.Context, postID uint) (*models.Post, error) {
	var post models.Post
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Post{}).
			Where("id = ?", postID).
			Update("shares", gorm.Expr("shares + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Preload("User").First(&post, postID).Error
	})
	if err != nil {
		return nil, notFoundOr(err, "Post", postID)
	}
	return &post, nil
}
