package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mealforge/backend/internal/model"
	"github.com/mealforge/backend/internal/types"
)

// RecipeStore owns the durable, per-identity recipe collections. Every
// mutation is a full read-modify-write of the identity's collection document;
// concurrent writers race at last-write-wins granularity, which the calling
// layer serializes in practice.
type RecipeStore struct {
	db *gorm.DB

	// OnCorrupt is invoked when a collection document cannot be read. The
	// read still degrades to an empty collection; the hook exists so the
	// swallow is observable.
	OnCorrupt func(identityID string, err error)
}

// NewRecipeStore creates a new RecipeStore instance.
func NewRecipeStore(db *gorm.DB) *RecipeStore {
	return &RecipeStore{
		db: db,
		OnCorrupt: func(identityID string, err error) {
			log.Printf("[RecipeStore] unreadable collection for %s, treating as empty: %v", identityID, err)
		},
	}
}

// load reads an identity's collection. Unreadable state is reported through
// OnCorrupt and returned as an empty collection: a read failure must never
// stop the user from generating new recipes.
func (s *RecipeStore) load(ctx context.Context, identityID string) model.RecipeList {
	var col model.RecipeCollection
	err := s.db.WithContext(ctx).First(&col, "identity_id = ?", identityID).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) && s.OnCorrupt != nil {
			s.OnCorrupt(identityID, err)
		}
		return model.RecipeList{}
	}
	return col.Recipes
}

// exists reports whether a collection document is present for the identity,
// without touching its contents.
func (s *RecipeStore) exists(ctx context.Context, identityID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.RecipeCollection{}).
		Where("identity_id = ?", identityID).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *RecipeStore) save(ctx context.Context, identityID string, recipes model.RecipeList, op string) error {
	col := model.RecipeCollection{
		IdentityID: identityID,
		Recipes:    recipes,
		UpdatedAt:  time.Now().UTC(),
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&col).Error
	if err != nil {
		return &types.StorageError{Op: op, Err: err}
	}
	return nil
}

// List returns the identity's collection.
func (s *RecipeStore) List(ctx context.Context, identity *types.Identity) []model.Recipe {
	return s.load(ctx, identity.ID)
}

// Upsert replaces an existing recipe with the same id in place, or appends.
// Returns the new full collection.
func (s *RecipeStore) Upsert(ctx context.Context, identity *types.Identity, recipe model.Recipe) ([]model.Recipe, error) {
	recipes := s.load(ctx, identity.ID)

	replaced := false
	for i := range recipes {
		if recipes[i].ID == recipe.ID {
			recipes[i] = recipe
			replaced = true
			break
		}
	}
	if !replaced {
		recipes = append(recipes, recipe)
	}

	if err := s.save(ctx, identity.ID, recipes, "upsert"); err != nil {
		return nil, err
	}
	return recipes, nil
}

// Delete removes a recipe by id. Absent ids are a no-op, not an error.
func (s *RecipeStore) Delete(ctx context.Context, identity *types.Identity, recipeID string) ([]model.Recipe, error) {
	recipes := s.load(ctx, identity.ID)

	kept := recipes[:0]
	for _, r := range recipes {
		if r.ID != recipeID {
			kept = append(kept, r)
		}
	}
	if len(kept) == len(recipes) {
		return recipes, nil
	}

	if err := s.save(ctx, identity.ID, kept, "delete"); err != nil {
		return nil, err
	}
	return kept, nil
}

// ToggleFavorite flips a recipe's favorite flag. Unknown ids are a no-op.
func (s *RecipeStore) ToggleFavorite(ctx context.Context, identity *types.Identity, recipeID string) ([]model.Recipe, error) {
	recipes := s.load(ctx, identity.ID)

	found := false
	for i := range recipes {
		if recipes[i].ID == recipeID {
			recipes[i].IsFavorite = !recipes[i].IsFavorite
			found = true
			break
		}
	}
	if !found {
		return recipes, nil
	}

	if err := s.save(ctx, identity.ID, recipes, "favorite"); err != nil {
		return nil, err
	}
	return recipes, nil
}

// Rate stores a rating, clamped into [0,5]. Unknown ids are a no-op.
func (s *RecipeStore) Rate(ctx context.Context, identity *types.Identity, recipeID string, rating float64) ([]model.Recipe, error) {
	recipes := s.load(ctx, identity.ID)

	found := false
	for i := range recipes {
		if recipes[i].ID == recipeID {
			recipes[i].Rating = model.ClampRating(rating)
			found = true
			break
		}
	}
	if !found {
		return recipes, nil
	}

	if err := s.save(ctx, identity.ID, recipes, "rate"); err != nil {
		return nil, err
	}
	return recipes, nil
}

// MigrateLegacy is the one-shot move of the pre-identity collection into this
// identity's collection. The legacy document is copied only when the identity
// has no collection yet; either way it is deleted afterwards so it can never
// be migrated twice.
func (s *RecipeStore) MigrateLegacy(ctx context.Context, identity *types.Identity) error {
	legacyExists, err := s.exists(ctx, model.LegacyCollectionID)
	if err != nil {
		return &types.StorageError{Op: "migrate", Err: err}
	}
	if !legacyExists {
		return nil
	}

	identityExists, err := s.exists(ctx, identity.ID)
	if err != nil {
		return &types.StorageError{Op: "migrate", Err: err}
	}

	if !identityExists {
		legacy := s.load(ctx, model.LegacyCollectionID)
		if err := s.save(ctx, identity.ID, legacy, "migrate"); err != nil {
			return err
		}
	}

	err = s.db.WithContext(ctx).
		Delete(&model.RecipeCollection{}, "identity_id = ?", model.LegacyCollectionID).Error
	if err != nil {
		return &types.StorageError{Op: "migrate", Err: err}
	}
	return nil
}

// ImportMerge merges an externally exported recipe list into the identity's
// collection. Incoming recipes whose title matches an existing one
// case-insensitively are skipped; admitted recipes get a fresh id and
// creation timestamp, never the foreign ones.
func (s *RecipeStore) ImportMerge(ctx context.Context, identity *types.Identity, serialized []byte) ([]model.Recipe, error) {
	var incoming []model.Recipe
	if err := json.Unmarshal(serialized, &incoming); err != nil {
		return nil, fmt.Errorf("failed to parse imported recipes: %w", err)
	}

	recipes := s.load(ctx, identity.ID)

	seen := make(map[string]bool, len(recipes))
	for _, r := range recipes {
		seen[strings.ToLower(r.Title)] = true
	}

	added := false
	for _, r := range incoming {
		key := strings.ToLower(r.Title)
		if r.Title == "" || seen[key] {
			continue
		}
		r.ID = model.NewRecipeID()
		r.CreatedAt = time.Now().UTC()
		r.Rating = model.ClampRating(r.Rating)
		recipes = append(recipes, r)
		seen[key] = true
		added = true
	}

	if !added {
		return recipes, nil
	}

	if err := s.save(ctx, identity.ID, recipes, "import"); err != nil {
		return nil, err
	}
	return recipes, nil
}

// Export serializes the identity's collection for transfer to another device.
func (s *RecipeStore) Export(ctx context.Context, identity *types.Identity) ([]byte, error) {
	recipes := s.load(ctx, identity.ID)
	data, err := json.Marshal(recipes)
	if err != nil {
		return nil, &types.StorageError{Op: "export", Err: err}
	}
	return data, nil
}

// Clear deletes all storage associated with the identity. Used on sign-out
// so nothing leaks across identities on a shared device.
func (s *RecipeStore) Clear(ctx context.Context, identity *types.Identity) error {
	err := s.db.WithContext(ctx).
		Delete(&model.RecipeCollection{}, "identity_id = ?", identity.ID).Error
	if err != nil {
		return &types.StorageError{Op: "clear", Err: err}
	}
	return nil
}
