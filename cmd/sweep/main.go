package main

import (
	"context"
	"log"
	"time"

	"github.com/giamma80/Nutrifit-mobile-sub000/internal/adapters/database"
	"github.com/giamma80/Nutrifit-mobile-sub000/internal/infrastructure/clients/postgres"
	"github.com/giamma80/Nutrifit-mobile-sub000/pkg/config"
)

// One-shot expiry sweep for cron or operator use; the api binary runs
// the same sweep on a timer.
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

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	repo := database.NewAnalysisAdapter(pgClient)
	count, err := repo.DeleteExpired(ctx)
	if err != nil {
		log.Fatalf("Sweep failed: %v", err)
	}
	log.Printf("Deleted %d expired analyses", count)
}
