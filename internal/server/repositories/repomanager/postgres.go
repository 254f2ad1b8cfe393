// This file provides the concrete RepositoryManager for PostgreSQL, wiring
// repository constructors and database migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/drmkeeper/internal/dbx"
	"github.com/dmitrijs2005/drmkeeper/internal/server/migrations"
	"github.com/dmitrijs2005/drmkeeper/internal/server/repositories/contentkeys"
	"github.com/dmitrijs2005/drmkeeper/internal/server/repositories/devices"
	"github.com/dmitrijs2005/drmkeeper/internal/server/repositories/licenses"
	"github.com/dmitrijs2005/drmkeeper/internal/server/repositories/sessions"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// PostgresRepositoryManager vends PostgreSQL-backed repository
// implementations and exposes a schema migration hook.
type PostgresRepositoryManager struct{}

// NewPostgresRepositoryManager constructs a PostgreSQL-backed
// RepositoryManager.
func NewPostgresRepositoryManager() RepositoryManager {
	return &PostgresRepositoryManager{}
}

// ContentKeys returns a contentkeys.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) ContentKeys(db dbx.DBTX) contentkeys.Repository {
	return contentkeys.NewPostgresRepository(db)
}

// Licenses returns a licenses.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Licenses(db dbx.DBTX) licenses.Repository {
	return licenses.NewPostgresRepository(db)
}

// Sessions returns a sessions.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Sessions(db dbx.DBTX) sessions.Repository {
	return sessions.NewPostgresRepository(db)
}

// Devices returns a devices.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Devices(db dbx.DBTX) devices.Repository {
	return devices.NewPostgresRepository(db)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the provided database connection.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, ".")
}
