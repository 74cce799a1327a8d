package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mealforge/backend/internal/model"
	"github.com/mealforge/backend/internal/types"
)

// fakeGenerator satisfies RecipeGenerator with a canned result.
type fakeGenerator struct {
	recipe *model.Recipe
	err    error
	calls  int
}

func (f *fakeGenerator) Generate(ctx context.Context, query string) (*model.Recipe, error) {
	f.calls++
	return f.recipe, f.err
}

// fakeStorage satisfies RecipeStorage in memory with an injectable upsert
// failure.
type fakeStorage struct {
	recipes   []model.Recipe
	upsertErr error
}

func (f *fakeStorage) List(ctx context.Context, identity *types.Identity) []model.Recipe {
	return f.recipes
}

func (f *fakeStorage) Upsert(ctx context.Context, identity *types.Identity, recipe model.Recipe) ([]model.Recipe, error) {
	if f.upsertErr != nil {
		return nil, f.upsertErr
	}
	f.recipes = append(f.recipes, recipe)
	return f.recipes, nil
}

func (f *fakeStorage) Delete(ctx context.Context, identity *types.Identity, recipeID string) ([]model.Recipe, error) {
	return f.recipes, nil
}

func (f *fakeStorage) ToggleFavorite(ctx context.Context, identity *types.Identity, recipeID string) ([]model.Recipe, error) {
	return f.recipes, nil
}

func (f *fakeStorage) Rate(ctx context.Context, identity *types.Identity, recipeID string, rating float64) ([]model.Recipe, error) {
	return f.recipes, nil
}

func (f *fakeStorage) MigrateLegacy(ctx context.Context, identity *types.Identity) error {
	return nil
}

func (f *fakeStorage) ImportMerge(ctx context.Context, identity *types.Identity, serialized []byte) ([]model.Recipe, error) {
	return f.recipes, nil
}

func (f *fakeStorage) Export(ctx context.Context, identity *types.Identity) ([]byte, error) {
	return []byte("[]"), nil
}

func (f *fakeStorage) Clear(ctx context.Context, identity *types.Identity) error {
	return nil
}

func TestPipelineService_RequiresIdentity(t *testing.T) {
	gen := &fakeGenerator{}
	pipeline := NewPipelineService(gen, &fakeStorage{}, nil)

	for _, identity := range []*types.Identity{nil, {ID: ""}} {
		result, err := pipeline.GenerateAndSave(context.Background(), identity, "tacos")
		require.ErrorIs(t, err, types.ErrAuthRequired)
		assert.Equal(t, StateIdle, result.State)
	}
	assert.Zero(t, gen.calls, "generation must not start without an identity")
}

func TestPipelineService_GenerationFailure(t *testing.T) {
	genErr := &types.GenerationError{Kind: types.GenerationBusy, Err: errors.New("overloaded")}
	pipeline := NewPipelineService(&fakeGenerator{err: genErr}, &fakeStorage{}, nil)

	result, err := pipeline.GenerateAndSave(context.Background(), testIdentity("u1"), "tacos")
	require.Error(t, err)
	assert.Equal(t, StateFailed, result.State)
	assert.Nil(t, result.Recipe)

	var ge *types.GenerationError
	assert.True(t, errors.As(err, &ge))
}

func TestPipelineService_PersistsOnSuccess(t *testing.T) {
	recipe := testRecipe("r1", "Beef Tacos")
	store := &fakeStorage{}
	pipeline := NewPipelineService(&fakeGenerator{recipe: &recipe}, store, nil)

	result, err := pipeline.GenerateAndSave(context.Background(), testIdentity("u1"), "tacos")
	require.NoError(t, err)
	assert.Equal(t, StatePersisted, result.State)
	assert.Equal(t, "Beef Tacos", result.Recipe.Title)
	assert.Len(t, result.Recipes, 1)
}

func TestPipelineService_StoreFailureStillReturnsRecipe(t *testing.T) {
	recipe := testRecipe("r1", "Beef Tacos")
	store := &fakeStorage{upsertErr: &types.StorageError{Op: "upsert", Err: errors.New("quota exceeded")}}
	pipeline := NewPipelineService(&fakeGenerator{recipe: &recipe}, store, nil)

	result, err := pipeline.GenerateAndSave(context.Background(), testIdentity("u1"), "tacos")
	require.NoError(t, err, "a persistence failure is not a pipeline error")
	assert.Equal(t, StateFailed, result.State)

	require.NotNil(t, result.Recipe, "display must not depend on storage success")
	assert.Equal(t, "Beef Tacos", result.Recipe.Title)

	var storeErr *types.StorageError
	require.True(t, errors.As(result.PersistErr, &storeErr))
}

// TestPipeline_EndToEnd drives a real generator against a mock upstream and a
// real store: generating "chicken pasta" from a payload with 2 ingredients
// and 4 id-less steps yields steps 1..4 and a single persisted recipe.
func TestPipeline_EndToEnd(t *testing.T) {
	content := `{
		"title": "Chicken Pasta",
		"description": "Weeknight pasta",
		"cookTime": 25,
		"difficulty": "Easy",
		"servings": 2,
		"ingredients": [
			{"name": "chicken breast", "amount": "300g"},
			{"name": "penne", "amount": "200g"}
		],
		"steps": [
			{"instruction": "Boil the pasta", "duration": 10},
			{"instruction": "Fry the chicken", "duration": 8},
			{"instruction": "Make the sauce", "duration": 5},
			{"instruction": "Combine and serve", "duration": 2}
		]
	}`
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chatResponse(content))
	}))
	defer upstream.Close()

	generator := &LLMService{
		apiKey:      "test-api-key",
		apiURL:      upstream.URL,
		client:      upstream.Client(),
		images:      &stubResolver{url: "https://img.example.com/pasta.jpg"},
		sleep:       func(time.Duration) {},
		backoffBase: time.Millisecond,
	}
	store := NewRecipeStore(setupStoreDB(t))
	pipeline := NewPipelineService(generator, store, nil)

	u1 := testIdentity("U1")
	result, err := pipeline.GenerateAndSave(context.Background(), u1, "chicken pasta")
	require.NoError(t, err)
	require.Equal(t, StatePersisted, result.State)

	recipe := result.Recipe
	assert.Len(t, recipe.Ingredients, 2)
	require.Len(t, recipe.Steps, 4)
	for i, step := range recipe.Steps {
		assert.Equal(t, i+1, step.ID)
	}

	assert.Len(t, store.List(context.Background(), u1), 1)
}
