package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/osrodgon/Hakathon-Grupo-6-Reto-2/internal/app/models"
	database "github.com/osrodgon/Hakathon-Grupo-6-Reto-2/internal/db"
	"github.com/osrodgon/Hakathon-Grupo-6-Reto-2/internal/pkg/config"
)

var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*MongoStore)(nil)
	_ Store = (*PostgresStore)(nil)
)

// New constructs the backend the configuration selects. The returned Store
// is the process-wide singleton; callers inject it, nothing reads it from
// package state.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Store, error) {
	switch cfg.Storage.Backend {
	case config.BackendSQLite:
		return NewSQLiteStore(cfg.Storage.SQLitePath, cfg.POIsPath, cfg.TTLDays, logger)

	case config.BackendMongo:
		return NewMongoStore(ctx, cfg.Storage.Mongo, cfg.POIsPath, cfg.TTLDays, logger)

	case config.BackendPostgres:
		pool, err := database.Init(cfg.Storage.Postgres, logger)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrStorageUnavailable, err)
		}
		if !database.WaitForDB(ctx, pool, logger) {
			pool.Close()
			return nil, fmt.Errorf("%w: postgres unreachable", models.ErrStorageUnavailable)
		}
		if err := database.RunMigrations(cfg.Storage.Postgres.ConnectionURL(), logger); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrating database: %w", err)
		}
		return NewPostgresStore(pool, cfg.POIsPath, cfg.TTLDays, logger), nil

	default:
		return nil, fmt.Errorf("%w: unknown storage backend %q", models.ErrConfiguration, cfg.Storage.Backend)
	}
}
