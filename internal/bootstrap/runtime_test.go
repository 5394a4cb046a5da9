package bootstrap

import (
	"context"
	"testing"

	"workit/internal/config"
	"workit/internal/database"
	"workit/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(database.PersistentModels()...))
	return db
}

func userCount(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.User{}).Count(&n).Error)
	return n
}

func TestEnsureDemoData(t *testing.T) {
	ctx := context.Background()

	t.Run("DisabledByDefault", func(t *testing.T) {
		db := setupTestDB(t)
		require.NoError(t, EnsureDemoData(ctx, &config.Config{Env: "development"}, db))
		assert.Zero(t, userCount(t, db))
	})

	t.Run("NeverOutsideDevelopment", func(t *testing.T) {
		db := setupTestDB(t)
		require.NoError(t, EnsureDemoData(ctx, &config.Config{Env: "production", SeedDemo: true}, db))
		assert.Zero(t, userCount(t, db))
	})

	t.Run("SeedsOnce", func(t *testing.T) {
		db := setupTestDB(t)
		cfg := &config.Config{Env: "development", SeedDemo: true}

		require.NoError(t, EnsureDemoData(ctx, cfg, db))
		first := userCount(t, db)
		assert.Positive(t, first)

		require.NoError(t, EnsureDemoData(ctx, cfg, db))
		assert.Equal(t, first, userCount(t, db))
	})

	t.Run("NilDependencies", func(t *testing.T) {
		assert.NoError(t, EnsureDemoData(ctx, nil, nil))
	})
}
