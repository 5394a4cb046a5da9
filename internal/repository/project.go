package repository

import (
	"context"

	"workit/internal/models"

	"gorm.io/gorm"
)

// ProjectRepository defines persistence operations for a freelancer's projects.
// Every keyed operation is scoped to the owning user.
type ProjectRepository interface {
	ListByUser(ctx context.Context, userID uint) ([]models.Project, error)
	GetForOwner(ctx context.Context, id, userID uint) (*models.Project, error)
	Create(ctx context.Context, project *models.Project) error
	Update(ctx context.Context, project *models.Project) error
	Delete(ctx context.Context, id, userID uint) error
	TogglePaid(ctx context.Context, id, userID uint) (*models.Project, error)
}

type projectRepository struct {
	db *gorm.DB
}

// NewProjectRepository creates a new project repository
func NewProjectRepository(db *gorm.DB) ProjectRepository {
	return &projectRepository{db: db}
}

func (r *projectRepository) ListByUser(ctx context.Context, userID uint) ([]models.Project, error) {
	projects := []models.Project{}
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&projects).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return projects, nil
}

func (r *projectRepository) GetForOwner(ctx context.Context, id, userID uint) (*models.Project, error) {
	var project models.Project
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&project).Error
	if err != nil {
		return nil, notFoundOr(err, "Project", id)
	}
	return &project, nil
}

func (r *projectRepository) Create(ctx context.Context, project *models.Project) error {
	if err := r.db.WithContext(ctx).Create(project).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *projectRepository) Update(ctx context.Context, project *models.Project) error {
	res := r.db.WithContext(ctx).
		Model(&models.Project{}).
		Where("id = ? AND user_id = ?", project.ID, project.UserID).
		Select("client_name", "project_title", "deadline", "rate_type", "features",
			"hourly_rate", "estimated_hours", "total_amount", "is_paid", "updated_at").
		Updates(project)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Project", project.ID)
	}
	return nil
}

func (r *projectRepository) Delete(ctx context.Context, id, userID uint) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&models.Project{})
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Project", id)
	}
	return nil
}

// TogglePaid flips the paid flag in place and returns the updated row.
func (r *projectRepository) TogglePaid(ctx context.Context, id, userID uint) (*models.Project, error) {
	var project models.Project
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Project{}).
			Where("id = ? AND user_id = ?", id, userID).
			Update("is_paid", gorm.Expr("NOT is_paid"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.First(&project, id).Error
	})
	if err != nil {
		return nil, notFoundOr(err, "Project", id)
	}
	return &project, nil
}
