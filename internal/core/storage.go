package core

import (
	"fmt"
	"os"

	"nexonsite/internal/infra/persistence/memory"
	"nexonsite/internal/infra/persistence/postgres"
	"nexonsite/internal/infra/persistence/sqlite"
	"nexonsite/pkg/domain"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

type (
	Transaction     = domain.Transaction
	PersistentStore = domain.PersistentStore
)

// StorageConfig selects and addresses the document store backend.
type StorageConfig struct {
	Driver      StorageDriver `yaml:"driver"`
	SQLitePath  string        `yaml:"sqlite_path"`
	PostgresDSN string        `yaml:"postgres_dsn"`
}

// StorageConfigFromEnv reads the storage environment variables:
//
//	NEXONSITE_STORAGE_DRIVER: memory|sqlite|postgres (default sqlite)
//	NEXONSITE_SQLITE_PATH: path to sqlite file (default ./nexonsite.db)
//	NEXONSITE_POSTGRES_DSN: postgres DSN when driver=postgres
func StorageConfigFromEnv() StorageConfig {
	return StorageConfig{
		Driver:      StorageDriver(os.Getenv("NEXONSITE_STORAGE_DRIVER")),
		SQLitePath:  os.Getenv("NEXONSITE_SQLITE_PATH"),
		PostgresDSN: os.Getenv("NEXONSITE_POSTGRES_DSN"),
	}
}

// OpenPersistentStore opens the backend named by cfg.Driver, defaulting to
// sqlite. The returned closer releases the backend.
func OpenPersistentStore(cfg StorageConfig, engine *RulesEngine) (PersistentStore, func() error, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = StorageSQLite
	}
	switch driver {
	case StorageMemory:
		store := memory.NewStore(engine)
		return store, store.Close, nil
	case StorageSQLite:
		store, err := sqlite.NewStore(cfg.SQLitePath, engine)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	case StoragePostgres:
		store, err := postgres.NewStore(cfg.PostgresDSN, engine)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
