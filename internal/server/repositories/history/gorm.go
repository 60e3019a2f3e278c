package history

import (
	"context"

	"github.com/dmitrijs2005/pilosopo/internal/dbx"
	"github.com/dmitrijs2005/pilosopo/internal/server/models"
	"gorm.io/gorm"
)

type GormRepository struct {
	db *gorm.DB
}

func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (r *GormRepository) Create(ctx context.Context, e *models.HistoryEntry) error {
	err := r.db.WithContext(ctx).Create(e).Error
	return dbx.Classify(err, "error saving history", "history entry not found")
}

func (r *GormRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.HistoryEntry, error) {
	var out []*models.HistoryEntry
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at desc").
		Find(&out).Error
	if err != nil {
		return nil, dbx.Classify(err, "error fetching history", "history entry not found")
	}
	return out, nil
}
