package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/giamma80/Nutrifit-mobile-sub000/internal/adapters/database"
	"github.com/giamma80/Nutrifit-mobile-sub000/internal/domain/entities"
	"github.com/giamma80/Nutrifit-mobile-sub000/internal/infrastructure/clients/postgres"
	"github.com/giamma80/Nutrifit-mobile-sub000/pkg/config"
)

const schema = `
CREATE TABLE IF NOT EXISTS meal_analyses (
    analysis_id          TEXT PRIMARY KEY,
    user_id              TEXT NOT NULL,
    meal_name            TEXT NOT NULL,
    nutrient_profile     JSONB NOT NULL,
    quantity_g           DOUBLE PRECISION NOT NULL,
    metadata             JSONB NOT NULL,
    status               TEXT NOT NULL,
    created_at           TIMESTAMPTZ NOT NULL,
    expires_at           TIMESTAMPTZ NOT NULL,
    converted_to_meal_at TIMESTAMPTZ,
    converted_meal_id    TEXT
);

CREATE INDEX IF NOT EXISTS idx_meal_analyses_user_created
    ON meal_analyses (user_id, created_at DESC);

CREATE INDEX IF NOT EXISTS idx_meal_analyses_expires
    ON meal_analyses (expires_at);
`

// Creates the meal_analyses schema and, with SEED_DEMO_DATA=true,
// inserts a demo analysis so a fresh environment has something to query.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer pgClient.Close()

	ctx := context.Background()
	if _, err := pgClient.DB().ExecContext(ctx, schema); err != nil {
		log.Fatalf("Failed to apply schema: %v", err)
	}
	log.Println("Schema applied")

	if os.Getenv("SEED_DEMO_DATA") != "true" {
		return
	}

	repo := database.NewAnalysisAdapter(pgClient)
	profile := entities.NutrientProfile{
		Calories:   133,
		Protein:    1.6,
		Carbs:      34.2,
		Fat:        0.5,
		Source:     entities.SourceUSDA,
		Confidence: 0.95,
		QuantityG:  150,
	}

	analysis, err := entities.NewMealAnalysis(
		"", "demo-user", "Banana, raw", profile, 150,
		entities.MealAnalysisMetadata{
			Source:     entities.AnalysisSourceUSDASearch,
			Confidence: 0.95,
		},
		entities.AnalysisCompleted,
		24*time.Hour,
	)
	if err != nil {
		log.Fatalf("Failed to build demo analysis: %v", err)
	}
	if err := repo.Save(ctx, analysis); err != nil {
		log.Fatalf("Failed to seed demo analysis: %v", err)
	}
	log.Printf("Seeded demo analysis %s", analysis.AnalysisID)
}
