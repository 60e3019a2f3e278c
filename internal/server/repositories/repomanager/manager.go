package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/pilosopo/internal/server/repositories/history"
	"github.com/dmitrijs2005/pilosopo/internal/server/repositories/profiles"
	"gorm.io/gorm"
)

// RepositoryManager binds the record-store repositories to a live handle.
// Migrate brings the schema up to date and reports the resulting version.
type RepositoryManager interface {
	Migrate(ctx context.Context, db *sql.DB) (int64, error)
	Profiles(db *gorm.DB) profiles.Repository
	History(db *gorm.DB) history.Repository
}
