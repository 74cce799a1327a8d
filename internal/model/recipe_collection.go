package model

import "time"

// LegacyCollectionID keys the single unscoped collection written before
// recipes were partitioned per identity. It is consumed at most once by
// migration and never written again.
const LegacyCollectionID = "__legacy__"

// RecipeCollection is the durable set of recipes belonging to one identity.
// One row per identity; every mutation rewrites the whole document.
type RecipeCollection struct {
	IdentityID string     `gorm:"size:255;primaryKey" json:"identity_id"`
	Recipes    RecipeList `gorm:"type:jsonb;not null;default:'[]'" json:"recipes"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func (RecipeCollection) TableName() string {
	return "recipe_collections"
}
