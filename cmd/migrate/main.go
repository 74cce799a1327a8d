package main

import (
	"log"

	"github.com/mealforge/backend/config"
	"github.com/mealforge/backend/internal/database"
)

// Applies the collection schema without starting the API server. Useful in
// deploy pipelines that run migrations as a separate step.
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.New(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	log.Println("Migration completed")
}
