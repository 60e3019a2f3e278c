package profiles

import (
	"context"

	"github.com/dmitrijs2005/pilosopo/internal/common"
	"github.com/dmitrijs2005/pilosopo/internal/dbx"
	"github.com/dmitrijs2005/pilosopo/internal/server/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormRepository struct {
	db *gorm.DB
}

func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (r *GormRepository) Create(ctx context.Context, p *models.UserProfile) error {
	err := r.db.WithContext(ctx).Create(p).Error
	return dbx.Classify(err, "error creating user", notFoundMsg)
}

func (r *GormRepository) Get(ctx context.Context, id string) (*models.UserProfile, error) {
	var p models.UserProfile
	if err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, dbx.Classify(err, "error fetching user", notFoundMsg)
	}
	return &p, nil
}

func (r *GormRepository) FindByUsername(ctx context.Context, username string) (*models.UserProfile, error) {
	var p models.UserProfile
	err := r.db.WithContext(ctx).
		Where("username = ?", username).
		Order("created_at desc").
		Take(&p).Error
	if err != nil {
		return nil, dbx.Classify(err, "error fetching user", notFoundMsg)
	}
	return &p, nil
}

func (r *GormRepository) List(ctx context.Context) ([]*models.UserProfile, error) {
	return r.find(ctx, r.db.WithContext(ctx).Order("created_at desc"))
}

func (r *GormRepository) ListByProvider(ctx context.Context, provider string) ([]*models.UserProfile, error) {
	return r.find(ctx, r.db.WithContext(ctx).Where("provider = ?", provider).Order("created_at desc"))
}

func (r *GormRepository) ListByUsernameDesc(ctx context.Context) ([]*models.UserProfile, error) {
	return r.find(ctx, r.db.WithContext(ctx).Order("username desc"))
}

func (r *GormRepository) find(_ context.Context, q *gorm.DB) ([]*models.UserProfile, error) {
	var out []*models.UserProfile
	if err := q.Find(&out).Error; err != nil {
		return nil, dbx.Classify(err, "error listing users", notFoundMsg)
	}
	return out, nil
}

// Update applies patch. Settings are deep-merged into the stored object
// under a row lock.
func (r *GormRepository) Update(ctx context.Context, id string, patch models.ProfilePatch) error {
	if patch.Settings == nil {
		return r.update(r.db.WithContext(ctx), id, patch)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cur models.UserProfile
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("settings").
			Take(&cur, "id = ?", id).Error
		if err != nil {
			return dbx.Classify(err, "error updating user", notFoundMsg)
		}
		patch.Settings = models.MergeSettings(cur.Settings, patch.Settings)
		return r.update(tx, id, patch)
	})
}

func (r *GormRepository) update(db *gorm.DB, id string, patch models.ProfilePatch) error {
	res := db.Model(&models.UserProfile{}).
		Where("id = ?", id).
		Updates(patchColumns(patch))
	if res.Error != nil {
		return dbx.Classify(res.Error, "error updating user", notFoundMsg)
	}
	if res.RowsAffected == 0 {
		return common.NotFound(notFoundMsg)
	}
	return nil
}

func (r *GormRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&models.UserProfile{}, "id = ?", id)
	if res.Error != nil {
		return dbx.Classify(res.Error, "error deleting user", notFoundMsg)
	}
	if res.RowsAffected == 0 {
		return common.NotFound(notFoundMsg)
	}
	return nil
}

// patchColumns maps a patch to column updates; updated_at is always set.
func patchColumns(patch models.ProfilePatch) map[string]any {
	cols := map[string]any{"updated_at": patch.UpdatedAt}
	if patch.Username != nil {
		cols["username"] = *patch.Username
	}
	if patch.ProfileDescription != nil {
		cols["profile_description"] = *patch.ProfileDescription
	}
	if patch.Settings != nil {
		cols["settings"] = patch.Settings
	}
	if patch.PasswordHash != nil {
		cols["password_hash"] = *patch.PasswordHash
	}
	return cols
}
