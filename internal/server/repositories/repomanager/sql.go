package repomanager

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/dmitrijs2005/guildkeeper/internal/dbx"
	"github.com/dmitrijs2005/guildkeeper/internal/server/migrations"
	"github.com/dmitrijs2005/guildkeeper/internal/server/repositories/credentials"
)

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// SQLRepositoryManager serves credentials from a database/sql handle and
// owns that handle.
type SQLRepositoryManager struct {
	db           *sql.DB
	dialect      dbx.Dialect
	gooseDialect string
}

// NewPostgresRepositoryManager opens dsn with the pgx stdlib driver.
func NewPostgresRepositoryManager(dsn string) (*SQLRepositoryManager, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return NewSQLRepositoryManager(db, dbx.Postgres), nil
}

// NewSQLiteRepositoryManager opens dsn with the pure-Go sqlite driver.
// SQLite allows a single writer, so the pool is capped at one connection.
func NewSQLiteRepositoryManager(dsn string) (*SQLRepositoryManager, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	return NewSQLRepositoryManager(db, dbx.SQLite), nil
}

func NewSQLRepositoryManager(db *sql.DB, dialect dbx.Dialect) *SQLRepositoryManager {
	gd := "sqlite3"
	if dialect == dbx.Postgres {
		gd = "pgx"
	}
	return &SQLRepositoryManager{db: db, dialect: dialect, gooseDialect: gd}
}

// RunMigrations applies the embedded goose migrations.
func (m *SQLRepositoryManager) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect(m.gooseDialect); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, m.db, "."); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (m *SQLRepositoryManager) Credentials() credentials.Repository {
	return credentials.NewSQLRepository(m.db, m.dialect)
}

// DB exposes the underlying handle for health probes.
func (m *SQLRepositoryManager) DB() *sql.DB { return m.db }

func (m *SQLRepositoryManager) Close() error { return m.db.Close() }
