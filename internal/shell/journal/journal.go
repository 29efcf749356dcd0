// Package journal persists executed engine actions in SQLite, giving every
// lifecycle run an auditable trail.
package journal

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/conmap/conmap/internal/shell/docker"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var ErrConnectionFailed = errors.New("journal database connection failed")

// =============================================================================
// Journal
// =============================================================================

// Journal records executed actions in a SQLite database.
type Journal struct {
	db *sqlx.DB
}

// Entry is one journaled action.
type Entry struct {
	ID        int64  `db:"id"`
	Client    string `db:"client"`
	Map       string `db:"map_name"`
	Config    string `db:"config_name"`
	Instance  string `db:"instance"`
	Verb      string `db:"verb"`
	Container string `db:"container"`
	Error     string `db:"error"`
	CreatedAt string `db:"created_at"`
}

// New opens (or creates) the journal database at dsn and applies pending
// migrations.
func New(dsn string) (*Journal, error) {
	db, err := sqlx.Open("sqlite3", dsn+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", ErrConnectionFailed)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping journal: %w", ErrConnectionFailed)
	}
	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate journal: %w", err)
	}
	return &Journal{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record stores one executed action. It satisfies the runner's recorder
// contract.
func (j *Journal) Record(ctx context.Context, rec docker.ActionRecord) error {
	_, err := j.db.NamedExecContext(ctx, `
		INSERT INTO actions (client, map_name, config_name, instance, verb, container, error)
		VALUES (:client, :map_name, :config_name, :instance, :verb, :container, :error)`,
		map[string]any{
			"client":      rec.Client,
			"map_name":    rec.Map,
			"config_name": rec.Config,
			"instance":    rec.Instance,
			"verb":        rec.Verb,
			"container":   rec.Container,
			"error":       rec.Error,
		})
	return err
}

// Recent returns the latest entries, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	var entries []Entry
	err := j.db.SelectContext(ctx, &entries, `
		SELECT id, client, map_name, config_name, instance, verb, container, error, created_at
		FROM actions ORDER BY id DESC LIMIT ?`, limit)
	return entries, err
}

// ByContainer returns every entry for one container, oldest first.
func (j *Journal) ByContainer(ctx context.Context, container string) ([]Entry, error) {
	var entries []Entry
	err := j.db.SelectContext(ctx, &entries, `
		SELECT id, client, map_name, config_name, instance, verb, container, error, created_at
		FROM actions WHERE container = ? ORDER BY id ASC`, container)
	return entries, err
}

// ByConfig returns every entry for one configuration on a map, oldest first.
func (j *Journal) ByConfig(ctx context.Context, mapName, config string) ([]Entry, error) {
	var entries []Entry
	err := j.db.SelectContext(ctx, &entries, `
		SELECT id, client, map_name, config_name, instance, verb, container, error, created_at
		FROM actions WHERE map_name = ? AND config_name = ? ORDER BY id ASC`, mapName, config)
	return entries, err
}
