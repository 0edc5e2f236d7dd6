package ingest

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"recipe-ingest/internal/core/checkpoint"
	"recipe-ingest/internal/core/recipe"
	"recipe-ingest/internal/core/source"

	"github.com/stretchr/testify/require"
)

func populatedState(t *testing.T) *State {
	t.Helper()
	r, err := recipe.ValidateJSON(`{
		"id": "r-7",
		"title": "Lasagne",
		"servings": 6,
		"difficulty": "schwer",
		"nutrition": {"kcal": 640},
		"tags": ["Auflauf"],
		"source_url": "https://example.org/lasagne",
		"ingredient_groups": [
			{"group_name": "Ragù", "ingredients": [{"ingredient_name": "Hackfleisch", "amount": 500, "unit": "g"}]},
			{"group_name": "Béchamel", "ingredients": [{"ingredient_name": "Milch", "amount": 0.5, "unit": "l"}]}
		],
		"instructions": ["Ragù kochen", "Schichten", "Backen"]
	}`)
	require.NoError(t, err)

	created := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	return &State{
		SessionID:      "batch-1:0",
		Stage:          StageRecipeReview,
		Text:           "Lasagne\nZutaten: 500 g Hackfleisch, 0,5 l Milch",
		StructuredText: "Lasagne\nRagù\nBéchamel",
		Metadata:       map[string]any{"chars": json.Number("42")},
		Recipe:         r,
		Duplicates: []recipe.DuplicateMatch{
			{RecipeRef: "r-1", Title: "Lasagne", Score: 93, CommonIngredientCount: 2, TotalIngredientCount: 3},
		},
		Source: SourceContext{
			Kind:      source.KindURL,
			SourceURL: "https://example.org/lasagne",
			BatchID:   "batch-1",
		},
		LastError: "upstream returned status 503",
		CreatedAt: created,
		UpdatedAt: created.Add(2 * time.Minute),
	}
}

func TestStateCheckpointRoundTrip(t *testing.T) {
	boltKV, err := checkpoint.OpenBoltKV(filepath.Join(t.TempDir(), "checkpoints.db"))
	require.NoError(t, err)
	t.Cleanup(func() { boltKV.Close() })

	for name, kv := range map[string]checkpoint.KV{"memory": checkpoint.NewMemoryKV(), "bolt": boltKV} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := checkpoint.NewStore(kv, "sessions")
			want := populatedState(t)

			require.NoError(t, store.Save(ctx, checkpointKey(want.SessionID), want))

			var got State
			ok, err := store.Load(ctx, checkpointKey(want.SessionID), &got)
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, *want, got)
			require.True(t, got.Recipe.Ingredients.IsGrouped())
			require.Equal(t, "Béchamel", got.Recipe.Ingredients.Groups()[1].Name)

			require.NoError(t, store.Clear(ctx, checkpointKey(want.SessionID)))
			ok, err = store.Load(ctx, checkpointKey(want.SessionID), &got)
			require.NoError(t, err)
			require.False(t, ok)
		})
	}
}
