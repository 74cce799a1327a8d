package service

import (
	"context"

	"github.com/mealforge/backend/internal/model"
	"github.com/mealforge/backend/internal/types"
)

// ImageResolver turns a text query into a displayable image URL. It is
// infallible by contract: implementations substitute a fallback rather than
// returning an error.
type ImageResolver interface {
	ResolveImage(ctx context.Context, query string) string
}

// RecipeGenerator produces a validated Recipe from a free-text request.
type RecipeGenerator interface {
	Generate(ctx context.Context, query string) (*model.Recipe, error)
}

// RecipeStorage is the per-identity durable recipe collection.
type RecipeStorage interface {
	List(ctx context.Context, identity *types.Identity) []model.Recipe
	Upsert(ctx context.Context, identity *types.Identity, recipe model.Recipe) ([]model.Recipe, error)
	Delete(ctx context.Context, identity *types.Identity, recipeID string) ([]model.Recipe, error)
	ToggleFavorite(ctx context.Context, identity *types.Identity, recipeID string) ([]model.Recipe, error)
	Rate(ctx context.Context, identity *types.Identity, recipeID string, rating float64) ([]model.Recipe, error)
	MigrateLegacy(ctx context.Context, identity *types.Identity) error
	ImportMerge(ctx context.Context, identity *types.Identity, serialized []byte) ([]model.Recipe, error)
	Export(ctx context.Context, identity *types.Identity) ([]byte, error)
	Clear(ctx context.Context, identity *types.Identity) error
}
