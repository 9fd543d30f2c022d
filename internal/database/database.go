package database

import (
	"database/sql"
	"embed"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/Niranjjith/Department-portal/internal/config"
)

//go:embed migrations/*.sql
var migrations embed.FS

func InitDB(cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "ping database")
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	slog.Info("database connected", "host", cfg.Host, "name", cfg.Name)
	return db, nil
}

func CloseDB(db *sql.DB) {
	if db != nil {
		db.Close()
		slog.Info("database connection closed")
	}
}

// Migrate applies every pending embedded migration over a dedicated
// connection, which the migrator closes when done.
func Migrate(cfg config.DatabaseConfig) error {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return errors.Wrap(err, "open migration connection")
	}
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		db.Close()
		return errors.Wrap(err, "load migrations")
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		db.Close()
		return errors.Wrap(err, "migration driver")
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		db.Close()
		return errors.Wrap(err, "create migrator")
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return errors.Wrap(err, "apply migrations")
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return errors.Wrap(err, "migration version")
	}
	slog.Info("database migrated", "version", version, "dirty", dirty)
	return nil
}
