package repository

import (
	"context"

	"workit/internal/models"

	"gorm.io/gorm"
)

// CommentRepository defines interface for comment operations
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) (*models.Post, error)
	ListByPost(ctx context.Context, postID uint) ([]models.Comment, error)
}

type commentRepository struct {
	db *gorm.DB
}

// NewCommentRepository creates a new CommentRepository
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

// Create inserts the comment and bumps the post's comment counter in one
// transaction, returning the post with its fresh counters.
func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) (*models.Post, error) {
	var post models.Post
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Select("id").First(&models.Post{}, comment.PostID).Error; err != nil {
			return err
		}
		if err := tx.Omit("User").Create(comment).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Post{}).
			Where("id = ?", comment.PostID).
			Update("comments", gorm.Expr("comments + 1")).Error; err != nil {
			return err
		}
		return tx.Preload("User").First(&post, comment.PostID).Error
	})
	if err != nil {
		return nil, notFoundOr(err, "Post", comment.PostID)
	}
	return &post, nil
}

// ListByPost returns a post's comments oldest first with author usernames filled in.
func (r *commentRepository) ListByPost(ctx context.Context, postID uint) ([]models.Comment, error) {
	comments := []models.Comment{}
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("post_id = ?", postID).
		Order("created_at ASC, id ASC").
		Find(&comments).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	for i := range comments {
		comments[i].Username = comments[i].User.Username
	}
	return comments, nil
}
