// Package history persists lookup history in the record store.
package history

import (
	"context"

	"github.com/dmitrijs2005/pilosopo/internal/server/models"
)

type Repository interface {
	// Create stores e, assigning its store id.
	Create(ctx context.Context, e *models.HistoryEntry) error
	// ListByOwner returns the owner's entries, newest first.
	ListByOwner(ctx context.Context, ownerID string) ([]*models.HistoryEntry, error)
}
