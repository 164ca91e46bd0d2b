// Command migrate applies or rolls back the SQL schema in migrations/.
//
//	migrate up            apply every pending migration
//	migrate down [N]      roll back N migrations (default 1)
//	migrate version       print the current version
//	migrate force V       mark version V clean after a failed run
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	"estatetoken/internal/config"
	"estatetoken/internal/database"
	"estatetoken/internal/logger"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Migration error: %v", err)
	}
}

func run() error {
	dir := flag.String("path", "", "directory holding the *.sql migrations (default MIGRATIONS_PATH)")
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		return errors.New("usage: migrate [-path dir] <up|down [N]|version|force V>")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	dbConfig := database.NewConfig(cfg)
	if *dir != "" {
		dbConfig.MigrationsPath = *dir
	}

	m, err := migrate.New(dbConfig.SourceURL(), dbConfig.MigrationURL())
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil {
			logger.Get().Warnf("migrate source close error: %v", srcErr)
		}
		if dbErr != nil {
			logger.Get().Warnf("migrate database close error: %v", dbErr)
		}
	}()

	log := logger.Named("migrate")

	switch args[0] {
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migration up failed: %w", err)
		}
		log.Info("Schema is up to date")

	case "down":
		steps, err := intArg(args, 1)
		if err != nil {
			return err
		}
		if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migration down failed: %w", err)
		}
		log.Infow("Rolled back", "steps", steps)

	case "version":
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			log.Info("No migrations applied")
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to get version: %w", err)
		}
		log.Infow("Schema version", "version", version, "dirty", dirty)

	case "force":
		if len(args) < 2 {
			return errors.New("force needs a version")
		}
		version, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid version: %w", err)
		}
		if err := m.Force(version); err != nil {
			return fmt.Errorf("force failed: %w", err)
		}
		log.Infow("Forced schema version", "version", version)

	default:
		return fmt.Errorf("unknown command: %s (use up, down, version or force)", args[0])
	}

	return nil
}

// intArg parses args[i] as a positive count, defaulting to 1 when absent.
func intArg(args []string, i int) (int, error) {
	if len(args) <= i {
		return 1, nil
	}
	n, err := strconv.Atoi(args[i])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid step count %q", args[i])
	}
	return n, nil
}
