package profiles

import (
	"context"
	"strings"
	"time"

	"github.com/dmitrijs2005/pilosopo/internal/common"
	"github.com/dmitrijs2005/pilosopo/internal/server/models"
	surrealdb "github.com/surrealdb/surrealdb.go"
)

const surrealTable = "users"

// profileDocument is the document-store shape. Timestamps are unix
// milliseconds; the record key is the profile id and is mirrored in uid.
type profileDocument struct {
	UID                string         `json:"uid"`
	Username           string         `json:"username"`
	Email              string         `json:"email,omitempty"`
	Provider           string         `json:"provider"`
	PasswordHash       string         `json:"password_hash,omitempty"`
	ProfileDescription string         `json:"profile_description,omitempty"`
	Settings           map[string]any `json:"settings,omitempty"`
	CreatedAt          int64          `json:"created_at"`
	UpdatedAt          int64          `json:"updated_at"`
}

func toDocument(p *models.UserProfile) map[string]any {
	doc := map[string]any{
		"uid":        p.ID,
		"username":   p.Username,
		"provider":   p.Provider,
		"created_at": p.CreatedAt.UnixMilli(),
		"updated_at": p.UpdatedAt.UnixMilli(),
	}
	if p.Email != "" {
		doc["email"] = p.Email
	}
	if p.PasswordHash != "" {
		doc["password_hash"] = p.PasswordHash
	}
	if p.ProfileDescription != "" {
		doc["profile_description"] = p.ProfileDescription
	}
	if p.Settings != nil {
		doc["settings"] = map[string]any(p.Settings)
	}
	return doc
}

func (d profileDocument) profile() *models.UserProfile {
	p := &models.UserProfile{
		ID:                 d.UID,
		Username:           d.Username,
		Email:              d.Email,
		Provider:           d.Provider,
		PasswordHash:       d.PasswordHash,
		ProfileDescription: d.ProfileDescription,
	}
	if d.Settings != nil {
		p.Settings = models.JSONMap(d.Settings)
	}
	if d.CreatedAt != 0 {
		p.CreatedAt = time.UnixMilli(d.CreatedAt).UTC()
	}
	if d.UpdatedAt != 0 {
		p.UpdatedAt = time.UnixMilli(d.UpdatedAt).UTC()
	}
	return p
}

type queryFunc func(ctx context.Context, sql string, vars map[string]any) ([]profileDocument, error)

// SurrealRepository keeps profiles in a SurrealDB table, one record per
// profile keyed by its id.
type SurrealRepository struct {
	query queryFunc
}

func NewSurrealRepository(db *surrealdb.DB) *SurrealRepository {
	return &SurrealRepository{query: func(ctx context.Context, sql string, vars map[string]any) ([]profileDocument, error) {
		res, err := surrealdb.Query[[]profileDocument](ctx, db, sql, vars)
		if err != nil {
			return nil, err
		}
		if res == nil || len(*res) == 0 {
			return nil, nil
		}
		return (*res)[0].Result, nil
	}}
}

func (r *SurrealRepository) Create(ctx context.Context, p *models.UserProfile) error {
	_, err := r.query(ctx, "CREATE type::thing($tb, $id) CONTENT $doc",
		map[string]any{"tb": surrealTable, "id": p.ID, "doc": toDocument(p)})
	return classifySurreal(err, "error creating user")
}

func (r *SurrealRepository) Get(ctx context.Context, id string) (*models.UserProfile, error) {
	docs, err := r.query(ctx, "SELECT * FROM type::thing($tb, $id)",
		map[string]any{"tb": surrealTable, "id": id})
	return first(docs, classifySurreal(err, "error fetching user"))
}

func (r *SurrealRepository) FindByUsername(ctx context.Context, username string) (*models.UserProfile, error) {
	docs, err := r.query(ctx, "SELECT * FROM type::table($tb) WHERE username = $username ORDER BY created_at DESC LIMIT 1",
		map[string]any{"tb": surrealTable, "username": username})
	return first(docs, classifySurreal(err, "error fetching user"))
}

func (r *SurrealRepository) List(ctx context.Context) ([]*models.UserProfile, error) {
	return r.list(ctx, "SELECT * FROM type::table($tb) ORDER BY created_at DESC", nil)
}

func (r *SurrealRepository) ListByProvider(ctx context.Context, provider string) ([]*models.UserProfile, error) {
	return r.list(ctx, "SELECT * FROM type::table($tb) WHERE provider = $provider ORDER BY created_at DESC",
		map[string]any{"provider": provider})
}

func (r *SurrealRepository) ListByUsernameDesc(ctx context.Context) ([]*models.UserProfile, error) {
	return r.list(ctx, "SELECT * FROM type::table($tb) ORDER BY username DESC", nil)
}

func (r *SurrealRepository) list(ctx context.Context, sql string, vars map[string]any) ([]*models.UserProfile, error) {
	if vars == nil {
		vars = map[string]any{}
	}
	vars["tb"] = surrealTable
	docs, err := r.query(ctx, sql, vars)
	if err != nil {
		return nil, classifySurreal(err, "error listing users")
	}
	out := make([]*models.UserProfile, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.profile())
	}
	return out, nil
}

// Update upserts: an unknown id creates a record holding only the patch.
// MERGE deep-merges nested objects, so settings keys absent from the patch
// are kept.
func (r *SurrealRepository) Update(ctx context.Context, id string, patch models.ProfilePatch) error {
	data := map[string]any{"uid": id, "updated_at": patch.UpdatedAt.UnixMilli()}
	if patch.Username != nil {
		data["username"] = *patch.Username
	}
	if patch.ProfileDescription != nil {
		data["profile_description"] = *patch.ProfileDescription
	}
	if patch.Settings != nil {
		data["settings"] = map[string]any(patch.Settings)
	}
	if patch.PasswordHash != nil {
		data["password_hash"] = *patch.PasswordHash
	}
	_, err := r.query(ctx, "UPSERT type::thing($tb, $id) MERGE $data",
		map[string]any{"tb": surrealTable, "id": id, "data": data})
	return classifySurreal(err, "error updating user")
}

func (r *SurrealRepository) Delete(ctx context.Context, id string) error {
	docs, err := r.query(ctx, "DELETE type::thing($tb, $id) RETURN BEFORE",
		map[string]any{"tb": surrealTable, "id": id})
	if err != nil {
		return classifySurreal(err, "error deleting user")
	}
	if len(docs) == 0 {
		return common.NotFound(notFoundMsg)
	}
	return nil
}

func first(docs []profileDocument, err error) (*models.UserProfile, error) {
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, common.NotFound(notFoundMsg)
	}
	return docs[0].profile(), nil
}

// classifySurreal maps SurrealDB errors by message, the only signal the
// client exposes. Missing namespaces, databases or tables and permission
// failures indicate misconfiguration.
func classifySurreal(err error, msg string) error {
	if err == nil {
		return nil
	}
	text := strings.ToLower(err.Error())
	for _, marker := range []string{"does not exist", "not allowed", "iam error", "not found"} {
		if strings.Contains(text, marker) {
			return common.UnavailableCause("document store resource not found or inaccessible", err)
		}
	}
	return common.Backend(msg, err)
}
