// Command migrate applies the document store schema to PostgreSQL.
package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	_ "github.com/lib/pq"
	"github.com/returnflow/backend/internal/infrastructure/config"
	"github.com/returnflow/backend/internal/infrastructure/logger"
	"github.com/returnflow/backend/internal/infrastructure/migration"
	"go.uber.org/zap"
)

const usage = `Usage: migrate [-config file] [-log-level level] <command> [arg]

Commands:
  up                 apply all pending migrations
  down               roll back every migration
  step <n>           apply n migrations, negative n rolls back
  version            print the applied version
  force <version>    mark a version as applied without running it

The connection comes from the [database] section of the config file or the
RMA_DATABASE_HOST, RMA_DATABASE_PORT, RMA_DATABASE_USER,
RMA_DATABASE_PASSWORD, RMA_DATABASE_DBNAME and RMA_DATABASE_SSLMODE variables.
`

var errUsage = errors.New("invalid usage")

// schemaMigrator is the part of migration.Migrator the commands drive.
type schemaMigrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Version() (uint, bool, error)
	Force(version int) error
	Close() error
}

// openFunc connects to the configured database and returns a migrator.
type openFunc func(cfg *config.Config, log *zap.Logger) (schemaMigrator, error)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr, openPostgres))
}

func run(args []string, stdout, stderr io.Writer, open openFunc) int {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }
	configPath := fs.String("config", "", "config file (default ./config.toml)")
	logLevel := fs.String("log-level", "info", "debug, info, warn or error")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	log, err := logger.New(logger.Config{
		Level:      *logLevel,
		Format:     "console",
		Output:     "stderr",
		TimeFormat: logger.DefaultTimeFormat,
	})
	if err != nil {
		fmt.Fprintf(stderr, "logger: %v\n", err)
		return 1
	}
	defer func() { _ = log.Sync() }()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Error("Failed to load configuration", zap.Error(err))
		return 1
	}
	if cfg.Store.Driver != config.StorePostgres {
		log.Warn("Store driver is not postgres, migrating anyway", zap.String("driver", cfg.Store.Driver))
	}

	m, err := open(cfg, log)
	if err != nil {
		log.Error("Failed to open migrator", zap.Error(err))
		return 1
	}
	defer func() { _ = m.Close() }()

	if err := runCommand(m, fs.Args(), stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintf(stderr, "%v\n\n%s", err, usage)
			return 2
		}
		log.Error("Migration failed", zap.String("command", fs.Arg(0)), zap.Error(err))
		return 1
	}
	return 0
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

func openPostgres(cfg *config.Config, log *zap.Logger) (schemaMigrator, error) {
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s:%d: %w", cfg.Database.Host, cfg.Database.Port, err)
	}
	m, err := migration.New(db, log)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return m, nil
}

func runCommand(m schemaMigrator, args []string, out io.Writer) error {
	switch cmd := args[0]; cmd {
	case "up":
		return m.Up()
	case "down":
		return m.Down()
	case "step":
		n, err := intArg(args, "step count")
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: step count must not be zero", errUsage)
		}
		return m.Steps(n)
	case "force":
		v, err := intArg(args, "version")
		if err != nil {
			return err
		}
		return m.Force(v)
	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			return err
		}
		switch {
		case version == 0:
			fmt.Fprintln(out, "no migrations applied")
		case dirty:
			fmt.Fprintf(out, "%d (dirty)\n", version)
		default:
			fmt.Fprintf(out, "%d\n", version)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

func intArg(args []string, name string) (int, error) {
	if len(args) < 2 {
		return 0, fmt.Errorf("%w: %s required", errUsage, name)
	}
	n, err := strconv.Atoi(args[1])
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q is not a number", errUsage, name, args[1])
	}
	return n, nil
}
