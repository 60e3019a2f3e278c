package profiles

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/pilosopo/internal/common"
	"github.com/dmitrijs2005/pilosopo/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedQuery struct {
	sql  string
	vars map[string]any
}

func newFakeSurreal(docs []profileDocument, err error) (*SurrealRepository, *[]recordedQuery) {
	var calls []recordedQuery
	repo := &SurrealRepository{query: func(_ context.Context, sql string, vars map[string]any) ([]profileDocument, error) {
		calls = append(calls, recordedQuery{sql: sql, vars: vars})
		return docs, err
	}}
	return repo, &calls
}

func TestSurrealCreate_SendsDocument(t *testing.T) {
	repo, calls := newFakeSurreal(nil, nil)
	created := time.UnixMilli(1700000000000)

	err := repo.Create(context.Background(), &models.UserProfile{
		ID: "local-1", Username: "alice", Provider: models.ProviderLocal, PasswordHash: "h",
		CreatedAt: created, UpdatedAt: created,
	})
	require.NoError(t, err)
	require.Len(t, *calls, 1)

	c := (*calls)[0]
	assert.Contains(t, c.sql, "CREATE type::thing($tb, $id)")
	assert.Equal(t, "local-1", c.vars["id"])
	doc := c.vars["doc"].(map[string]any)
	assert.Equal(t, "alice", doc["username"])
	assert.Equal(t, "h", doc["password_hash"])
	assert.Equal(t, int64(1700000000000), doc["created_at"])
	assert.NotContains(t, doc, "settings")
}

func TestSurrealGet(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		repo, _ := newFakeSurreal([]profileDocument{{UID: "u1", Username: "alice", Provider: "firebase", CreatedAt: 1700000000000}}, nil)
		p, err := repo.Get(context.Background(), "u1")
		require.NoError(t, err)
		assert.Equal(t, "alice", p.Username)
		assert.Equal(t, int64(1700000000000), p.CreatedAt.UnixMilli())
	})

	t.Run("empty result is not found", func(t *testing.T) {
		repo, _ := newFakeSurreal(nil, nil)
		_, err := repo.Get(context.Background(), "u1")
		assert.ErrorIs(t, err, common.ErrNotFound)
	})

	t.Run("missing table is unavailable", func(t *testing.T) {
		repo, _ := newFakeSurreal(nil, errors.New("The table 'users' does not exist"))
		_, err := repo.Get(context.Background(), "u1")
		assert.ErrorIs(t, err, common.ErrServiceUnavailable)
	})

	t.Run("other errors are backend", func(t *testing.T) {
		repo, _ := newFakeSurreal(nil, errors.New("connection reset"))
		_, err := repo.Get(context.Background(), "u1")
		assert.ErrorIs(t, err, common.ErrBackend)
	})
}

func TestSurrealUpdate_MergesPatch(t *testing.T) {
	repo, calls := newFakeSurreal(nil, nil)
	name := "bob"
	hash := "h2"
	at := time.UnixMilli(42)

	require.NoError(t, repo.Update(context.Background(), "u1", models.ProfilePatch{
		Username: &name, Settings: models.JSONMap{"lang": "tl"}, PasswordHash: &hash, UpdatedAt: at,
	}))

	c := (*calls)[0]
	assert.Equal(t, "UPSERT type::thing($tb, $id) MERGE $data", c.sql)
	assert.Equal(t, "u1", c.vars["id"])
	assert.Equal(t, map[string]any{
		"uid":           "u1",
		"updated_at":    int64(42),
		"username":      "bob",
		"settings":      map[string]any{"lang": "tl"},
		"password_hash": "h2",
	}, c.vars["data"])
}

func TestSurrealDelete(t *testing.T) {
	repo, _ := newFakeSurreal([]profileDocument{{UID: "u1"}}, nil)
	require.NoError(t, repo.Delete(context.Background(), "u1"))

	repo, _ = newFakeSurreal(nil, nil)
	assert.ErrorIs(t, repo.Delete(context.Background(), "u1"), common.ErrNotFound)
}

func TestSurrealListByProvider(t *testing.T) {
	repo, calls := newFakeSurreal([]profileDocument{{UID: "a"}, {UID: "b"}}, nil)

	got, err := repo.ListByProvider(context.Background(), "local")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "local", (*calls)[0].vars["provider"])
	assert.Equal(t, surrealTable, (*calls)[0].vars["tb"])
}
