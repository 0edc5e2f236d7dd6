package postgres

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"recipe-ingest/internal/core/entity"
	"recipe-ingest/internal/pkg/common"

	"github.com/stretchr/testify/require"
)

// 需要 RECIPE_INGEST_TEST_DSN 指向可寫入的測試資料庫
func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("RECIPE_INGEST_TEST_DSN")
	if dsn == "" {
		t.Skip("RECIPE_INGEST_TEST_DSN not set")
	}
	s, err := Open(context.Background(), dsn)
	require.NoError(t, err)
	_, err = s.db.Exec(`DELETE FROM entities WHERE collection LIKE 'test_%'`)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStoreCRUD(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	const col = "test_recipe"

	a, err := s.Create(ctx, col, entity.Record{"title": "Tomatensuppe", "servings": 4})
	require.NoError(t, err)
	require.NotEmpty(t, a.ID())
	_, err = s.Create(ctx, col, entity.Record{"title": "Linsensuppe", "servings": 2})
	require.NoError(t, err)

	_, err = s.Create(ctx, col, entity.Record{"id": a.ID(), "title": "again"})
	require.ErrorIs(t, err, common.ErrConflict)

	all, err := s.List(ctx, col, "-title")
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "Tomatensuppe", all[0]["title"])

	found, err := s.Filter(ctx, col, entity.Record{"title": "Linsensuppe"})
	require.NoError(t, err)
	require.Len(t, found, 1)

	updated, err := s.Update(ctx, col, a.ID(), entity.Record{"id": "other", "servings": 6})
	require.NoError(t, err)
	require.Equal(t, a.ID(), updated.ID())
	require.Equal(t, json.Number("6"), updated["servings"])

	require.NoError(t, s.Delete(ctx, col, a.ID()))
	_, err = s.Get(ctx, col, a.ID())
	require.ErrorIs(t, err, common.ErrNotFound)
	require.ErrorIs(t, s.Delete(ctx, col, a.ID()), common.ErrNotFound)
}
