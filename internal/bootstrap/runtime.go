// Package bootstrap wires the process-wide runtime: database, read replica,
// Redis and the built-in catalog.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"foodgram/internal/cache"
	"foodgram/internal/config"
	"foodgram/internal/database"
	"foodgram/internal/middleware"
	"foodgram/internal/seed"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// InitRuntime connects to the database and Redis and, when SEED_CATALOG is
// set, loads the bundled ingredient and tag catalog. The returned Redis
// client is nil when Redis is unreachable.
func InitRuntime(cfg *config.Config) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}
	if _, err := database.ConnectReadReplica(cfg); err != nil {
		middleware.Logger.Warn("read replica unavailable, reads use the primary", slog.String("error", err.Error()))
	}

	cache.InitRedis(cfg.RedisURL)
	rdb := cache.GetClient()

	if err := SeedCatalog(context.Background(), cfg, db); err != nil {
		return nil, nil, err
	}
	return db, rdb, nil
}

// SeedCatalog loads the bundled catalog unless disabled in cfg.
func SeedCatalog(ctx context.Context, cfg *config.Config, db *gorm.DB) error {
	if !cfg.SeedCatalog {
		return nil
	}
	res, err := seed.Catalog(ctx, db, seed.CatalogSources{})
	if err != nil {
		return fmt.Errorf("failed to seed catalog: %w", err)
	}
	if res.Ingredients > 0 || res.Tags > 0 {
		middleware.Logger.Info("catalog seeded",
			slog.Int64("ingredients", res.Ingredients),
			slog.Int64("tags", res.Tags),
		)
	}
	return nil
}
