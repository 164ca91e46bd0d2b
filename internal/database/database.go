package database

import (
	"errors"
	"fmt"

	"estatetoken/internal/logger"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Manager handles database operations
type Manager struct {
	db  *gorm.DB
	cfg *Config
}

// NewManager opens the PostgreSQL connection pool.
func NewManager(cfg *Config) (*Manager, error) {
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  cfg.DSN(),
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
		// Row locks and sequence bumps run inside explicit transactions only.
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return &Manager{db: db, cfg: cfg}, nil
}

// RunMigrations applies pending SQL migrations from the configured directory.
func (m *Manager) RunMigrations() error {
	log := logger.Named("database")
	log.Infow("Running database migrations", "source", m.cfg.SourceURL())

	mig, err := migrate.New(m.cfg.SourceURL(), m.cfg.MigrationURL())
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer func() {
		srcErr, dbErr := mig.Close()
		if srcErr != nil {
			log.Warnw("migrate source close error", "error", srcErr)
		}
		if dbErr != nil {
			log.Warnw("migrate database close error", "error", dbErr)
		}
	}()

	if err := mig.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration failed: %w", err)
	}

	version, dirty, err := mig.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if dirty {
		return fmt.Errorf("schema version %d is dirty; fix it with cmd/migrate force", version)
	}
	log.Infow("Database migrations completed", "version", version)
	return nil
}

// DB returns the underlying GORM database instance
func (m *Manager) DB() *gorm.DB {
	return m.db
}

// Close releases the connection pool.
func (m *Manager) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
