package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mealforge/backend/internal/model"
	"github.com/mealforge/backend/internal/types"
)

// PipelineState is the coordinator's position in one generation request.
type PipelineState string

const (
	StateIdle       PipelineState = "idle"
	StateGenerating PipelineState = "generating"
	StatePersisted  PipelineState = "persisted"
	StateFailed     PipelineState = "failed"
)

const draftTTL = 24 * time.Hour

// PipelineResult is what one generate-and-persist request produced. Recipe is
// set whenever generation succeeded, even if persistence then failed: display
// must not depend on storage success.
type PipelineResult struct {
	State      PipelineState
	Recipe     *model.Recipe
	Recipes    []model.Recipe
	PersistErr error
}

// PipelineService sequences generate → persist and enforces the
// authenticated-identity precondition. It owns no retry or validation logic;
// that lives in the generator and store.
type PipelineService struct {
	generator RecipeGenerator
	store     RecipeStorage
	redis     *redis.Client
}

// NewPipelineService creates a new PipelineService instance. redisClient may
// be nil; draft caching is then skipped.
func NewPipelineService(generator RecipeGenerator, store RecipeStorage, redisClient *redis.Client) *PipelineService {
	return &PipelineService{
		generator: generator,
		store:     store,
		redis:     redisClient,
	}
}

// GenerateAndSave runs the full pipeline for one user request. Without an
// identity it signals the authentication requirement and stays idle. A store
// failure surfaces in PersistErr, distinct from a generation error, while the
// generated recipe is still returned.
func (p *PipelineService) GenerateAndSave(ctx context.Context, identity *types.Identity, query string) (*PipelineResult, error) {
	if identity == nil || identity.ID == "" {
		return &PipelineResult{State: StateIdle}, types.ErrAuthRequired
	}

	recipe, err := p.generator.Generate(ctx, query)
	if err != nil {
		return &PipelineResult{State: StateFailed}, err
	}

	// The draft cache lets the presentation layer recover the last
	// generated recipe even when persistence below fails.
	p.cacheDraft(ctx, identity, recipe)

	recipes, err := p.store.Upsert(ctx, identity, *recipe)
	if err != nil {
		return &PipelineResult{
			State:      StateFailed,
			Recipe:     recipe,
			PersistErr: err,
		}, nil
	}

	return &PipelineResult{
		State:   StatePersisted,
		Recipe:  recipe,
		Recipes: recipes,
	}, nil
}

func draftKey(identityID string) string {
	return fmt.Sprintf("recipe:draft:%s", identityID)
}

func (p *PipelineService) cacheDraft(ctx context.Context, identity *types.Identity, recipe *model.Recipe) {
	if p.redis == nil {
		return
	}
	data, err := json.Marshal(recipe)
	if err != nil {
		log.Printf("[Pipeline] failed to marshal draft: %v", err)
		return
	}
	if err := p.redis.Set(ctx, draftKey(identity.ID), data, draftTTL).Err(); err != nil {
		log.Printf("[Pipeline] failed to cache draft: %v", err)
	}
}

// LastDraft returns the most recently generated recipe for the identity, if
// the draft cache still holds one.
func (p *PipelineService) LastDraft(ctx context.Context, identity *types.Identity) (*model.Recipe, error) {
	if identity == nil || identity.ID == "" {
		return nil, types.ErrAuthRequired
	}
	if p.redis == nil {
		return nil, fmt.Errorf("draft cache not configured")
	}

	data, err := p.redis.Get(ctx, draftKey(identity.ID)).Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to get draft: %w", err)
	}

	var recipe model.Recipe
	if err := json.Unmarshal(data, &recipe); err != nil {
		return nil, fmt.Errorf("failed to unmarshal draft: %w", err)
	}
	return &recipe, nil
}
