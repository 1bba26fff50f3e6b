package services

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"shopsquad/internal/config"
	"shopsquad/internal/store"
	"shopsquad/internal/store/firestore"
	"shopsquad/internal/store/memory"
	"shopsquad/internal/store/sqlstore"
)

// BackendDeps are the already-initialized clients a backend may need
type BackendDeps struct {
	Firebase *Firebase
	DB       *gorm.DB
	Redis    *RedisCache
}

// OpenBackend builds the squad store selected by cfg.Backend.
func OpenBackend(ctx context.Context, cfg config.Config, deps BackendDeps, logger *slog.Logger) (store.Backend, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		logger.Warn("using in-memory squad store; data is lost on restart")
		return memory.New(), nil

	case config.BackendFirestore:
		if deps.Firebase == nil {
			return nil, fmt.Errorf("firestore backend requires firebase credentials")
		}
		client, err := deps.Firebase.Firestore(ctx)
		if err != nil {
			return nil, err
		}
		return firestore.New(client, store.CollectionName, logger), nil

	case config.BackendPostgres:
		if deps.DB == nil {
			return nil, fmt.Errorf("postgres backend requires DATABASE_URL")
		}
		var notifier store.Notifier
		if deps.Redis != nil {
			notifier = NewRedisNotifier(deps.Redis.Client(), logger)
		} else {
			logger.Warn("REDIS_URL not set; live updates only reach clients of this process")
		}
		return sqlstore.New(ctx, deps.DB, notifier, logger)
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}
