// Package repomanager wires together the repository constructors behind a
// single vending interface, so services can run any repository against
// either the pooled connection or an open transaction.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/drmkeeper/internal/dbx"
	"github.com/dmitrijs2005/drmkeeper/internal/server/repositories/contentkeys"
	"github.com/dmitrijs2005/drmkeeper/internal/server/repositories/devices"
	"github.com/dmitrijs2005/drmkeeper/internal/server/repositories/licenses"
	"github.com/dmitrijs2005/drmkeeper/internal/server/repositories/sessions"
)

// RepositoryManager vends repository implementations bound to a DBTX and
// exposes a schema migration hook.
type RepositoryManager interface {
	ContentKeys(db dbx.DBTX) contentkeys.Repository
	Licenses(db dbx.DBTX) licenses.Repository
	Sessions(db dbx.DBTX) sessions.Repository
	Devices(db dbx.DBTX) devices.Repository

	RunMigrations(ctx context.Context, db *sql.DB) error
}
