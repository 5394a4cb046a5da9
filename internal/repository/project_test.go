package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"workit/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectRepository_CRUD(t *testing.T) {
	db := setupTestDB(t)
	repo := NewProjectRepository(db)
	ctx := context.Background()

	owner := createUser(t, db, "owner")
	other := createUser(t, db, "other")

	older := &models.Project{UserID: owner.ID, CreatedAt: time.Now().Add(-time.Hour)}
	older.ApplyForm(models.ProjectForm{
		ClientName:   "Acme",
		ProjectTitle: "Landing page",
		Features: []models.FeatureInput{
			{Name: "Hero", Price: models.NewAmount(1500000)},
			{Name: "Form", Price: models.NewAmount(500000)},
		},
	})
	require.NoError(t, repo.Create(ctx, older))

	newer := &models.Project{UserID: owner.ID, CreatedAt: time.Now()}
	newer.ApplyForm(models.ProjectForm{
		ClientName:     "Globex",
		ProjectTitle:   "API",
		RateType:       models.RateHourly,
		HourlyRate:     models.NewAmount(150000),
		EstimatedHours: models.NewAmount(10),
	})
	require.NoError(t, repo.Create(ctx, newer))

	t.Run("ListNewestFirst", func(t *testing.T) {
		projects, err := repo.ListByUser(ctx, owner.ID)
		require.NoError(t, err)
		require.Len(t, projects, 2)
		assert.Equal(t, newer.ID, projects[0].ID)
		assert.Equal(t, older.ID, projects[1].ID)
		require.Len(t, projects[1].Features, 2)
		assert.True(t, decimal.NewFromInt(2000000).Equal(projects[1].TotalAmount))
	})

	t.Run("ScopedToOwner", func(t *testing.T) {
		_, err := repo.GetForOwner(ctx, older.ID, other.ID)
		assert.True(t, models.IsCode(err, models.CodeNotFound))

		err = repo.Delete(ctx, older.ID, other.ID)
		assert.True(t, models.IsCode(err, models.CodeNotFound))
	})

	t.Run("Update", func(t *testing.T) {
		p, err := repo.GetForOwner(ctx, newer.ID, owner.ID)
		require.NoError(t, err)
		p.ApplyForm(models.ProjectForm{ClientName: "Globex", ProjectTitle: "API v2"})
		require.NoError(t, repo.Update(ctx, p))

		got, err := repo.GetForOwner(ctx, newer.ID, owner.ID)
		require.NoError(t, err)
		assert.Equal(t, "API v2", got.ProjectTitle)
		assert.Equal(t, models.RateFeature, got.RateType)
		assert.True(t, got.TotalAmount.IsZero())
		assert.True(t, got.HourlyRate.IsZero())
	})

	t.Run("TogglePaid", func(t *testing.T) {
		p, err := repo.TogglePaid(ctx, older.ID, owner.ID)
		require.NoError(t, err)
		assert.True(t, p.IsPaid)

		p, err = repo.TogglePaid(ctx, older.ID, owner.ID)
		require.NoError(t, err)
		assert.False(t, p.IsPaid)

		_, err = repo.TogglePaid(ctx, older.ID, other.ID)
		assert.True(t, models.IsCode(err, models.CodeNotFound))
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, older.ID, owner.ID))
		projects, err := repo.ListByUser(ctx, owner.ID)
		require.NoError(t, err)
		assert.Len(t, projects, 1)
	})
}

func TestProjectRepository_Delete_SQL(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewProjectRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "projects" WHERE id = $1 AND user_id = $2`)).
		WithArgs(7, 3).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	assert.NoError(t, repo.Delete(context.Background(), 7, 3))
	assert.NoError(t, mock.ExpectationsWereMet())
}
