package persistence

import (
	"embed"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

// Migration sets, one per service. Each keeps its own version table so both
// services may share a database.
const (
	MigrationsUser = "user"
	MigrationsTask = "task"
)

//go:embed migrations
var migrationsFS embed.FS

// RunMigrations applies the embedded migration set against dsn.
func RunMigrations(dsn, set string, logger *zap.Logger) error {
	if dsn == "" {
		logger.Warn("no postgres DSN available; skipping migrations")
		return nil
	}

	source, err := iofs.New(migrationsFS, "migrations/"+set)
	if err != nil {
		return fmt.Errorf("open migrations %s: %w", set, err)
	}

	databaseURL, err := migrateURL(dsn, set)
	if err != nil {
		return err
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, databaseURL)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations %s: %w", set, err)
	}

	version, dirty, _ := m.Version()
	logger.Info("migrations applied", zap.String("set", set), zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}

// migrateURL rewrites a postgres DSN for the pgx v5 migrate driver.
func migrateURL(dsn, set string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse postgres dsn: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "postgres", "postgresql", "pgx5":
	default:
		return "", fmt.Errorf("unsupported postgres dsn scheme %q", u.Scheme)
	}
	u.Scheme = "pgx5"
	q := u.Query()
	q.Set("x-migrations-table", "schema_migrations_"+set)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
