package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"cloud.google.com/go/datastore"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	ac "github.com/interviewhub/authcore"
	"github.com/interviewhub/authcore/internal/config"
	"github.com/interviewhub/authcore/stores"
	"github.com/interviewhub/authcore/stores/gae"
	gormstore "github.com/interviewhub/authcore/stores/gorm"
	"github.com/interviewhub/authcore/stores/pgsql"
)

// openStore builds the backend named by cfg.StoreDriver. The returned closer
// releases its connections.
func openStore(ctx context.Context, cfg *config.Config) (ac.Store, func() error, error) {
	noop := func() error { return nil }

	switch cfg.StoreDriver {
	case config.DriverFS:
		if err := os.MkdirAll(cfg.StoragePath, 0o755); err != nil {
			return nil, nil, fmt.Errorf("storage path: %w", err)
		}
		return stores.NewFSStore(cfg.StoragePath), noop, nil

	case config.DriverSQLite:
		path := cfg.DatabaseDSN
		if path == "" {
			path = filepath.Join(cfg.StoragePath, "authcore.db") + "?_busy_timeout=5000"
		}
		db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
			TranslateError: true,
			Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		if err := gormstore.AutoMigrate(db); err != nil {
			return nil, nil, fmt.Errorf("migrate sqlite: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, nil, err
		}
		return gormstore.New(db), sqlDB.Close, nil

	case config.DriverPostgres:
		db, err := pgsql.Open(ctx, cfg.DatabaseDSN)
		if err != nil {
			return nil, nil, err
		}
		if err := pgsql.RunMigrations(ctx, db); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("migrate postgres: %w", err)
		}
		return pgsql.NewStore(db), db.Close, nil

	case config.DriverDatastore:
		client, err := datastore.NewClient(ctx, cfg.DatastoreProject)
		if err != nil {
			return nil, nil, fmt.Errorf("datastore client: %w", err)
		}
		return gae.NewStore(client, cfg.DatastoreNamespace), client.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}

// checkStore makes one round trip so a misconfigured backend fails at
// startup instead of on the first request.
func checkStore(ctx context.Context, store ac.Store) error {
	if _, err := store.FindByID(ctx, "readiness-check"); err != nil {
		return fmt.Errorf("store not ready: %w", err)
	}
	return nil
}
