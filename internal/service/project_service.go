package service

import (
	"context"

	"workit/internal/cache"
	"workit/internal/models"
	"workit/internal/repository"
	"workit/internal/validation"
)

// ProjectService implements the project ledger. Totals are always computed
// here from the submitted form; a client-supplied total is never stored.
type ProjectService struct {
	projectRepo repository.ProjectRepository
	cache       *cache.Store
}

func NewProjectService(projectRepo repository.ProjectRepository, store *cache.Store) *ProjectService {
	return &ProjectService{projectRepo: projectRepo, cache: store}
}

func validateProjectForm(form models.ProjectForm) (models.ProjectForm, error) {
	form = form.Normalized()
	if err := validation.Struct(form); err != nil {
		return form, models.NewValidationError(err.Error())
	}
	if form.ClientName == "" || form.ProjectTitle == "" {
		return form, models.NewValidationError("client name and project title are required")
	}
	return form, nil
}

// ListProjects returns the user's projects, newest first.
func (s *ProjectService) ListProjects(ctx context.Context, userID uint) ([]models.Project, error) {
	return s.projectRepo.ListByUser(ctx, userID)
}

func (s *ProjectService) GetProject(ctx context.Context, userID, projectID uint) (*models.Project, error) {
	return s.projectRepo.GetForOwner(ctx, projectID, userID)
}

func (s *ProjectService) CreateProject(ctx context.Context, userID uint, form models.ProjectForm) (*models.Project, error) {
	form, err := validateProjectForm(form)
	if err != nil {
		return nil, err
	}
	project := &models.Project{UserID: userID}
	project.ApplyForm(form)
	if err := s.projectRepo.Create(ctx, project); err != nil {
		return nil, err
	}
	s.invalidateStats(ctx, userID)
	return project, nil
}

func (s *ProjectService) UpdateProject(ctx context.Context, userID, projectID uint, form models.ProjectForm) (*models.Project, error) {
	form, err := validateProjectForm(form)
	if err != nil {
		return nil, err
	}
	project, err := s.projectRepo.GetForOwner(ctx, projectID, userID)
	if err != nil {
		return nil, err
	}
	project.ApplyForm(form)
	if err := s.projectRepo.Update(ctx, project); err != nil {
		return nil, err
	}
	s.invalidateStats(ctx, userID)
	return project, nil
}

func (s *ProjectService) DeleteProject(ctx context.Context, userID, projectID uint) error {
	if err := s.projectRepo.Delete(ctx, projectID, userID); err != nil {
		return err
	}
	s.invalidateStats(ctx, userID)
	return nil
}

func (s *ProjectService) TogglePaid(ctx context.Context, userID, projectID uint) (*models.Project, error) {
	project, err := s.projectRepo.TogglePaid(ctx, projectID, userID)
	if err != nil {
		return nil, err
	}
	s.invalidateStats(ctx, userID)
	return project, nil
}

// DashboardStats summarizes the user's ledger. Results are cached briefly and
// dropped on every project mutation.
func (s *ProjectService) DashboardStats(ctx context.Context, userID uint) (models.DashboardStats, error) {
	return cache.Aside(ctx, s.cache, cache.StatsKey(userID), cache.StatsTTL, func(ctx context.Context) (models.DashboardStats, error) {
		projects, err := s.projectRepo.ListByUser(ctx, userID)
		if err != nil {
			return models.DashboardStats{}, err
		}
		return models.ComputeStats(projects), nil
	})
}

func (s *ProjectService) invalidateStats(ctx context.Context, userID uint) {
	s.cache.Invalidate(ctx, cache.StatsKey(userID))
}
