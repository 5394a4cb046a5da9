// Package bootstrap wires the runtime dependencies shared by the server and
// the maintenance commands.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"workit/internal/cache"
	"workit/internal/config"
	"workit/internal/database"
	"workit/internal/middleware"
	"workit/internal/models"
	"workit/internal/seed"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// InitRuntime connects to PostgreSQL (applying the schema) and Redis. Redis
// is optional: when it is unreachable the returned client is nil. In
// development with SEED_DEMO set, an empty database gets demo data.
func InitRuntime(ctx context.Context, cfg *config.Config) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	rdb, err := cache.InitRedis(ctx, cfg.RedisURL)
	if err != nil {
		middleware.Logger.Warn("redis unavailable, realtime delivery is local only",
			slog.String("error", err.Error()))
		rdb = nil
	}

	if err := EnsureDemoData(ctx, cfg, db); err != nil {
		return nil, nil, fmt.Errorf("failed to seed demo data: %w", err)
	}

	return db, rdb, nil
}

// EnsureDemoData seeds demo accounts, projects and forum content once.
// It only runs in development with SEED_DEMO enabled and an empty users table.
func EnsureDemoData(ctx context.Context, cfg *config.Config, db *gorm.DB) error {
	if cfg == nil || db == nil {
		return nil
	}
	if !strings.EqualFold(cfg.Env, "development") || !cfg.SeedDemo {
		return nil
	}

	var users int64
	if err := db.WithContext(ctx).Model(&models.User{}).Count(&users).Error; err != nil {
		return err
	}
	if users > 0 {
		middleware.Logger.Info("demo data skipped, users already exist", slog.Int64("users", users))
		return nil
	}

	res, err := seed.Seed(db.WithContext(ctx), seed.DefaultOptions())
	if err != nil {
		return err
	}
	middleware.Logger.Info("demo data seeded",
		slog.Int("users", res.Users),
		slog.Int("projects", res.Projects),
		slog.Int("posts", res.Posts),
		slog.String("password", seed.DefaultPassword))
	return nil
}
