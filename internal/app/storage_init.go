package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/minicrm/internal/domain"
	"github.com/vladislavdragonenkov/minicrm/internal/health"
	"github.com/vladislavdragonenkov/minicrm/internal/storage/memory"
	"github.com/vladislavdragonenkov/minicrm/internal/storage/postgres"
)

// serverStorage — репозитории сервера и проверка готовности их хранилища.
type serverStorage struct {
	Orders      domain.OrderRepository
	Users       domain.UserRepository
	Idempotency domain.IdempotencyRepository
	Checker     health.Checker
	Close       func() error
}

func initStorage(ctx context.Context, cfg Config, logger *log.Entry) (*serverStorage, error) {
	switch cfg.StorageDriver {
	case "", StorageDriverMemory:
		logger.Info("используется in-memory хранилище")
		return &serverStorage{
			Orders:      memory.NewOrderRepository(),
			Users:       memory.NewUserRepository(),
			Idempotency: memory.NewIdempotencyRepository(),
			Checker:     health.NewFuncChecker("storage", func(context.Context) error { return nil }),
			Close:       func() error { return nil },
		}, nil

	case StorageDriverPostgres:
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if cfg.PostgresAutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("migrate postgres: %w", err)
			}
			logger.Info("postgres schema is up to date")
		}
		logger.Info("используется postgres хранилище")
		return &serverStorage{
			Orders:      postgres.NewOrderRepository(store),
			Users:       postgres.NewUserRepository(store),
			Idempotency: postgres.NewIdempotencyRepository(store),
			Checker:     health.NewPingChecker("storage", store),
			Close:       store.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}
