package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fluentprep/fluentprep/internal/config"
	"github.com/fluentprep/fluentprep/migrations"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	var (
		command     string
		steps       int
		dir         string
		databaseURL string
	)

	flag.StringVar(&command, "command", "up", "Command: up, down, version, force, drop")
	flag.IntVar(&steps, "steps", 0, "Number of migrations to apply (0 = all; for force: target version)")
	flag.StringVar(&dir, "dir", "", "Apply migrations from this directory instead of the embedded set")
	flag.StringVar(&databaseURL, "database", "", "Database URL (default: DATABASE_URL via configuration)")
	flag.Parse()

	// The CLI shares the server's configuration so DATABASE_URL and its
	// default resolve the same way in both binaries
	if databaseURL == "" {
		cfg, err := config.Load()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load configuration")
		}
		databaseURL = cfg.Database.URL
	}

	m, err := newMigrate(dir, databaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create migrate instance")
	}
	defer m.Close()

	if command == "version" {
		reportVersion(m)
		return
	}

	log.Info().
		Str("command", command).
		Int("steps", steps).
		Bool("embedded", dir == "").
		Msg("Applying migrations")

	if err := run(m, command, steps); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info().Msg("Database already up to date")
			return
		}
		log.Fatal().Err(err).Str("command", command).Msg("Migration failed")
	}

	reportVersion(m)
}

// newMigrate builds a migrate instance from the embedded migration set,
// or from a directory when one is given.
func newMigrate(dir, databaseURL string) (*migrate.Migrate, error) {
	if dir != "" {
		absPath, err := filepath.Abs(dir)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve migrations directory: %w", err)
		}
		return migrate.New(fmt.Sprintf("file://%s", absPath), databaseURL)
	}

	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	return migrate.NewWithSourceInstance("iofs", src, databaseURL)
}

func run(m *migrate.Migrate, command string, steps int) error {
	switch command {
	case "up":
		if steps > 0 {
			return m.Steps(steps)
		}
		return m.Up()
	case "down":
		if steps > 0 {
			return m.Steps(-steps)
		}
		return m.Down()
	case "force":
		if steps == 0 {
			return errors.New("force requires -steps with the target version")
		}
		return m.Force(steps)
	case "drop":
		return m.Drop()
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func reportVersion(m *migrate.Migrate) {
	version, dirty, err := m.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			log.Info().Msg("No migrations applied yet")
			return
		}
		log.Fatal().Err(err).Msg("Failed to read migration version")
	}

	log.Info().
		Uint("version", version).
		Bool("dirty", dirty).
		Msg("Schema version")
}
