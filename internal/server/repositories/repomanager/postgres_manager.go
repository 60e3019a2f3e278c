// Package repomanager wires the GORM repositories of the record store and
// its goose migrations.
package repomanager

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/pilosopo/internal/server/migrations"
	"github.com/dmitrijs2005/pilosopo/internal/server/repositories/history"
	"github.com/dmitrijs2005/pilosopo/internal/server/repositories/profiles"
	"github.com/pressly/goose/v3"
	"gorm.io/gorm"
)

const dialect = "pgx"

type Postgres struct {
	up      func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error
	version func(db *sql.DB) (int64, error)
}

func NewPostgresRepositoryManager() RepositoryManager {
	return &Postgres{up: goose.UpContext, version: goose.GetDBVersion}
}

func (p *Postgres) Profiles(db *gorm.DB) profiles.Repository { return profiles.NewGormRepository(db) }
func (p *Postgres) History(db *gorm.DB) history.Repository   { return history.NewGormRepository(db) }

// Migrate applies the embedded users and history migrations.
func (p *Postgres) Migrate(ctx context.Context, db *sql.DB) (int64, error) {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect(dialect); err != nil {
		return 0, err
	}
	if err := p.up(ctx, db, "."); err != nil {
		return 0, fmt.Errorf("migrate record store: %w", err)
	}
	v, err := p.version(db)
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return v, nil
}
