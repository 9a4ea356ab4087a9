package factory

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/mikey/email-guardian/internal/adapters/storage"
	"github.com/mikey/email-guardian/internal/config"
	"github.com/mikey/email-guardian/internal/core"
)

// StorageFactory creates storage backends based on configuration
type StorageFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewStorageFactory creates a new storage factory
func NewStorageFactory(cfg *config.Config, logger *zap.Logger) *StorageFactory {
	return &StorageFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateStorage creates a storage backend based on the configuration
func (f *StorageFactory) CreateStorage() (core.Storage, error) {
	storageType := f.cfg.GetString("storage.type")

	switch storageType {
	case "memory":
		return storage.NewMemoryStorage(), nil
	case "sqlite":
		sqlitePath := f.cfg.GetString("storage.sqlite_path")
		// Ensure directory exists
		if err := os.MkdirAll(filepath.Dir(sqlitePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
		}
		return storage.NewSQLiteStorage(sqlitePath, f.logger)
	case "mysql":
		mysqlDSN := f.cfg.GetString("storage.mysql_dsn")
		return storage.NewMySQLStorage(mysqlDSN, f.logger)
	case "postgres":
		postgresDSN := f.cfg.GetString("storage.postgres_dsn")
		return storage.NewPostgresStorage(postgresDSN, f.logger)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageType)
	}
}
