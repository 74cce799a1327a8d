package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mealforge/backend/internal/middleware"
	"github.com/mealforge/backend/internal/service"
	"github.com/mealforge/backend/internal/types"
)

// RecipeHandler exposes the acquisition/persistence pipeline over HTTP. It is
// presentation glue only: retry, dedup and validation live in the services.
type RecipeHandler struct {
	pipeline *service.PipelineService
	store    service.RecipeStorage
}

// NewRecipeHandler creates a new RecipeHandler instance.
func NewRecipeHandler(pipeline *service.PipelineService, store service.RecipeStorage) *RecipeHandler {
	return &RecipeHandler{
		pipeline: pipeline,
		store:    store,
	}
}

// RegisterRoutes registers the recipe routes
func (h *RecipeHandler) RegisterRoutes(router *gin.RouterGroup) {
	recipes := router.Group("/recipes")
	recipes.Use(middleware.AuthMiddleware())
	{
		recipes.POST("/generate", h.Generate)
		recipes.GET("", h.List)
		recipes.GET("/draft", h.LastDraft)
		recipes.DELETE("/:id", h.Delete)
		recipes.POST("/:id/favorite", h.ToggleFavorite)
		recipes.POST("/:id/rating", h.Rate)
		recipes.POST("/import", h.Import)
		recipes.GET("/export", h.Export)
		recipes.POST("/migrate", h.Migrate)
		recipes.DELETE("", h.Clear)
	}
}

// Generate handles a free-text generation request and persists the result.
func (h *RecipeHandler) Generate(c *gin.Context) {
	var req struct {
		Query string `json:"query" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	identity := middleware.IdentityFromContext(c)

	result, err := h.pipeline.GenerateAndSave(c.Request.Context(), identity, req.Query)
	if err != nil {
		status, msg := generationStatus(err)
		c.JSON(status, gin.H{"error": msg})
		return
	}

	resp := gin.H{
		"recipe":    result.Recipe,
		"persisted": result.State == service.StatePersisted,
	}
	if result.Recipes != nil {
		resp["recipes"] = result.Recipes
	}
	if result.PersistErr != nil {
		// The recipe is still shown; only saving failed.
		resp["persist_error"] = "Could not save the recipe. It is displayed but not stored."
	}
	c.JSON(http.StatusCreated, resp)
}

// generationStatus maps a pipeline error onto an HTTP status and user text.
func generationStatus(err error) (int, string) {
	if errors.Is(err, types.ErrAuthRequired) {
		return http.StatusUnauthorized, "sign in to generate recipes"
	}

	var genErr *types.GenerationError
	if errors.As(err, &genErr) {
		switch genErr.Kind {
		case types.GenerationRateLimited:
			return http.StatusTooManyRequests, genErr.UserMessage()
		case types.GenerationBusy:
			return http.StatusServiceUnavailable, genErr.UserMessage()
		case types.GenerationNetwork:
			return http.StatusBadGateway, genErr.UserMessage()
		default:
			return http.StatusInternalServerError, genErr.UserMessage()
		}
	}

	var valErr *types.ValidationError
	if errors.As(err, &valErr) {
		return http.StatusBadGateway, "The recipe service returned an incomplete recipe. Please try again."
	}

	return http.StatusInternalServerError, "Failed to generate recipe"
}

// List returns the identity's collection.
func (h *RecipeHandler) List(c *gin.Context) {
	identity := middleware.IdentityFromContext(c)
	recipes := h.store.List(c.Request.Context(), identity)
	c.JSON(http.StatusOK, gin.H{"recipes": recipes})
}

// LastDraft returns the most recently generated recipe, if still cached.
func (h *RecipeHandler) LastDraft(c *gin.Context) {
	identity := middleware.IdentityFromContext(c)
	recipe, err := h.pipeline.LastDraft(c.Request.Context(), identity)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no draft available"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"recipe": recipe})
}

// Delete removes a recipe by id.
func (h *RecipeHandler) Delete(c *gin.Context) {
	identity := middleware.IdentityFromContext(c)
	recipes, err := h.store.Delete(c.Request.Context(), identity, c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete recipe"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"recipes": recipes})
}

// ToggleFavorite flips a recipe's favorite flag.
func (h *RecipeHandler) ToggleFavorite(c *gin.Context) {
	identity := middleware.IdentityFromContext(c)
	recipes, err := h.store.ToggleFavorite(c.Request.Context(), identity, c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update favorite"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"recipes": recipes})
}

// Rate stores a clamped rating for a recipe.
func (h *RecipeHandler) Rate(c *gin.Context) {
	var req struct {
		Rating float64 `json:"rating"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	identity := middleware.IdentityFromContext(c)
	recipes, err := h.store.Rate(c.Request.Context(), identity, c.Param("id"), req.Rating)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to rate recipe"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"recipes": recipes})
}

// Import merges an exported recipe list into the collection.
func (h *RecipeHandler) Import(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	identity := middleware.IdentityFromContext(c)
	recipes, err := h.store.ImportMerge(c.Request.Context(), identity, body)
	if err != nil {
		var storeErr *types.StorageError
		if errors.As(err, &storeErr) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save imported recipes"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid recipe export file"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"recipes": recipes})
}

// Export returns the collection as a portable JSON document.
func (h *RecipeHandler) Export(c *gin.Context) {
	identity := middleware.IdentityFromContext(c)
	data, err := h.store.Export(c.Request.Context(), identity)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to export recipes"})
		return
	}
	c.Header("Content-Disposition", `attachment; filename="recipes.json"`)
	c.Data(http.StatusOK, "application/json", data)
}

// Migrate runs the one-shot legacy collection migration for this identity.
func (h *RecipeHandler) Migrate(c *gin.Context) {
	identity := middleware.IdentityFromContext(c)
	if err := h.store.MigrateLegacy(c.Request.Context(), identity); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to migrate legacy recipes"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"recipes": h.store.List(c.Request.Context(), identity)})
}

// Clear deletes everything stored for the identity (sign-out hygiene).
func (h *RecipeHandler) Clear(c *gin.Context) {
	identity := middleware.IdentityFromContext(c)
	if err := h.store.Clear(c.Request.Context(), identity); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clear recipes"})
		return
	}
	c.Status(http.StatusNoContent)
}
