// Package profiles stores user profiles in the record store (GORM/PostgreSQL)
// and the document store (SurrealDB). Both implementations return errors
// already classified into the common taxonomy.
package profiles

import (
	"context"

	"github.com/dmitrijs2005/pilosopo/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, p *models.UserProfile) error
	Get(ctx context.Context, id string) (*models.UserProfile, error)
	FindByUsername(ctx context.Context, username string) (*models.UserProfile, error)
	// List returns all profiles, newest first.
	List(ctx context.Context) ([]*models.UserProfile, error)
	ListByProvider(ctx context.Context, provider string) ([]*models.UserProfile, error)
	ListByUsernameDesc(ctx context.Context) ([]*models.UserProfile, error)
	// Update merges patch into the profile. The record store reports
	// ErrNotFound for an unknown id; the document store upserts.
	Update(ctx context.Context, id string, patch models.ProfilePatch) error
	Delete(ctx context.Context, id string) error
}

const notFoundMsg = "user not found"
