package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mealforge/backend/internal/model"
	"github.com/mealforge/backend/internal/testhelpers"
)

// Exercises the store against a real PostgreSQL with a jsonb column, which
// the sqlite-backed tests cannot cover. Skipped when docker is unavailable.
func TestRecipeStore_Postgres(t *testing.T) {
	db := testhelpers.SetupTestDatabase(t)
	store := NewRecipeStore(db)
	ctx := context.Background()
	identity := testIdentity("pg-user")

	t.Run("round trip through jsonb", func(t *testing.T) {
		recipe := testRecipe("pg-1", "Miso Ramen")
		recipe.Steps = []model.Step{
			{ID: 1, Instruction: "Simmer the broth", Duration: 20},
			{ID: 2, Instruction: "Cook the noodles", Duration: 4},
		}
		_, err := store.Upsert(ctx, identity, recipe)
		require.NoError(t, err)

		got := store.List(ctx, identity)
		require.Len(t, got, 1)
		assert.Equal(t, "Miso Ramen", got[0].Title)
		require.Len(t, got[0].Steps, 2)
		assert.Equal(t, "Cook the noodles", got[0].Steps[1].Instruction)
	})

	t.Run("overwrite keeps last write", func(t *testing.T) {
		first := testRecipe("pg-2", "Pad Thai")
		_, err := store.Upsert(ctx, identity, first)
		require.NoError(t, err)

		first.Description = "updated"
		_, err = store.Upsert(ctx, identity, first)
		require.NoError(t, err)

		got := store.List(ctx, identity)
		var found bool
		for _, r := range got {
			if r.ID == first.ID {
				found = true
				assert.Equal(t, "updated", r.Description)
			}
		}
		assert.True(t, found)
	})

	t.Run("legacy migration", func(t *testing.T) {
		fresh := testIdentity("pg-migrator")
		require.NoError(t, store.save(ctx, model.LegacyCollectionID, []model.Recipe{testRecipe("pg-old", "Grandma Stew")}, "seed"))
		require.NoError(t, store.MigrateLegacy(ctx, fresh))

		got := store.List(ctx, fresh)
		require.Len(t, got, 1)
		assert.Equal(t, "Grandma Stew", got[0].Title)

		exists, err := store.exists(ctx, model.LegacyCollectionID)
		require.NoError(t, err)
		assert.False(t, exists)
	})
}
