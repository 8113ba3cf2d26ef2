package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/chatrelay/internal/dbx"
	"github.com/dmitrijs2005/chatrelay/internal/server/repositories/groups"
	"github.com/dmitrijs2005/chatrelay/internal/server/repositories/messages"
	"github.com/dmitrijs2005/chatrelay/internal/server/repositories/users"
)

// RepositoryManager vends repository implementations bound to a plain
// connection or a transaction, plus a schema migration hook. Services ask
// for repos per call so the same code path works inside dbx.WithTx.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Messages(db dbx.DBTX) messages.Repository
	Groups(db dbx.DBTX) groups.Repository
}
