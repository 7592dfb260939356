package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-booking-engine/internal/db"
	"github.com/hackgods/clinic-booking-engine/internal/logging"
	"github.com/hackgods/clinic-booking-engine/migrations"
)

// Usage: migrate [up|down|version|force <version>]
func main() {
	logger := logging.New(os.Getenv("LOG_LEVEL"), os.Getenv("APP_ENV")).With().Str("component", "migrate").Logger()

	dsn := strings.TrimSpace(os.Getenv("POSTGRES_DSN"))
	if dsn == "" {
		logger.Fatal().Msg("POSTGRES_DSN is required")
	}

	cmd, arg, err := parseArgs(os.Args[1:])
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid arguments")
	}

	if err := run(dsn, cmd, arg, logger); err != nil {
		logger.Fatal().Err(err).Str("command", cmd).Msg("migration failed")
	}
}

func run(dsn, cmd string, arg int, logger zerolog.Logger) error {
	m, err := db.NewMigrator(dsn, migrations.FS)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer func() {
		if err := m.Close(); err != nil {
			logger.Error().Err(err).Msg("close migrator")
		}
	}()

	switch cmd {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	case "force":
		err = m.Force(arg)
	}
	if err != nil {
		return err
	}

	version, dirty, err := m.Version()
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	logger.Info().Str("command", cmd).Uint("version", version).Bool("dirty", dirty).Msg("migrations complete")
	return nil
}

func parseArgs(args []string) (cmd string, version int, err error) {
	if len(args) == 0 {
		return "up", 0, nil
	}
	switch args[0] {
	case "up", "down", "version":
		return args[0], 0, nil
	case "force":
		if len(args) < 2 {
			return "", 0, fmt.Errorf("force requires a version")
		}
		version, err = strconv.Atoi(args[1])
		if err != nil {
			return "", 0, fmt.Errorf("invalid version %q: %w", args[1], err)
		}
		return "force", version, nil
	default:
		return "", 0, fmt.Errorf("unknown command %q", args[0])
	}
}
