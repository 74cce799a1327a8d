package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Difficulty is the effort level of a recipe.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

// Defaults applied when the generation service omits optional fields.
const (
	DefaultCookTime   = 30
	DefaultServings   = 4
	DefaultDifficulty = DifficultyMedium
)

// ParseDifficulty normalizes free-form difficulty text, defaulting to Medium.
func ParseDifficulty(s string) Difficulty {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "easy":
		return DifficultyEasy
	case "medium":
		return DifficultyMedium
	case "hard":
		return DifficultyHard
	default:
		return DefaultDifficulty
	}
}

// Ingredient is a single recipe ingredient. Order within a recipe is
// display-relevant and must be preserved.
type Ingredient struct {
	Name   string `json:"name"`
	Amount string `json:"amount"`
}

// Step is one cooking instruction. IDs are reassigned sequentially from 1
// at construction time; upstream ids are ignored.
type Step struct {
	ID          int    `json:"id"`
	Instruction string `json:"instruction"`
	Duration    int    `json:"duration"`
	Image       string `json:"image,omitempty"`
}

// Recipe is a structured, validated description of a dish.
type Recipe struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Image       string       `json:"image"`
	CookTime    int          `json:"cookTime"`
	Difficulty  Difficulty   `json:"difficulty"`
	Servings    int          `json:"servings"`
	Ingredients []Ingredient `json:"ingredients"`
	Steps       []Step       `json:"steps"`
	Rating      float64      `json:"rating"`
	IsFavorite  bool         `json:"isFavorite"`
	CreatedAt   time.Time    `json:"createdAt"`
}

// NewRecipeID returns a fresh recipe id: creation timestamp plus a random
// suffix. Collisions are negligible and tolerated by upsert-replace semantics.
func NewRecipeID() string {
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	return fmt.Sprintf("%d-%s", time.Now().UnixMilli(), suffix)
}

// ClampRating bounds a rating into [0,5]. NaN counts as unrated.
func ClampRating(r float64) float64 {
	if math.IsNaN(r) || r < 0 {
		return 0
	}
	if r > 5 {
		return 5
	}
	return r
}

// RenumberSteps reassigns step ids 1..N in place, preserving order.
func RenumberSteps(steps []Step) {
	for i := range steps {
		steps[i].ID = i + 1
	}
}

// RecipeList is a custom type for storing a recipe collection as JSONB.
type RecipeList []Recipe

// Value implements the driver.Valuer interface
func (l RecipeList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return "[]", nil
	}
	return json.Marshal(l)
}

// Scan implements the sql.Scanner interface
func (l *RecipeList) Scan(value interface{}) error {
	if value == nil {
		*l = RecipeList{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("unsupported recipe list value of type %T", value)
	}

	return json.Unmarshal(bytes, l)
}
