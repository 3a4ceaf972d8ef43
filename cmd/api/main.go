package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/giamma80/Nutrifit-mobile-sub000/internal/adapters/cache"
	"github.com/giamma80/Nutrifit-mobile-sub000/internal/adapters/database"
	"github.com/giamma80/Nutrifit-mobile-sub000/internal/adapters/events"
	"github.com/giamma80/Nutrifit-mobile-sub000/internal/adapters/recognition"
	"github.com/giamma80/Nutrifit-mobile-sub000/internal/application/services"
	"github.com/giamma80/Nutrifit-mobile-sub000/internal/domain/providers"
	"github.com/giamma80/Nutrifit-mobile-sub000/internal/infrastructure/clients/openai"
	"github.com/giamma80/Nutrifit-mobile-sub000/internal/infrastructure/clients/openfoodfacts"
	"github.com/giamma80/Nutrifit-mobile-sub000/internal/infrastructure/clients/postgres"
	"github.com/giamma80/Nutrifit-mobile-sub000/internal/infrastructure/clients/redis"
	"github.com/giamma80/Nutrifit-mobile-sub000/internal/infrastructure/clients/usda"
	"github.com/giamma80/Nutrifit-mobile-sub000/internal/infrastructure/observability"
	"github.com/giamma80/Nutrifit-mobile-sub000/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Server.Environment, cfg.Server.LogLevel)
	logger := observability.GetLogger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// OpenTelemetry is optional; the pipeline runs fine without it
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to set up OpenTelemetry")
		} else {
			defer func() {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()
				if err := shutdown(shutdownCtx); err != nil {
					logger.Error().Err(err).Msg("error shutting down OpenTelemetry")
				}
			}()
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize metrics")
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize PostgreSQL client")
	}
	defer pgClient.Close()

	// Redis backs both the nutrition cache and the analysis store's
	// expiring index; an in-process cache keeps a single-node deploy
	// working when Redis is absent.
	var cacheProvider providers.CacheProvider
	var eventBus providers.EventBus
	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, using in-process cache")
		cacheProvider = cache.NewMemoryAdapter()
	} else {
		defer redisClient.Close()
		cacheProvider = cache.NewRedisAdapter(redisClient)
		eventBus = events.NewRedisEventBus(redisClient)
		defer eventBus.Close()
	}

	offClient := openfoodfacts.NewClient(&cfg.OpenFoodFacts)
	usdaClient := usda.NewClient(&cfg.USDA)

	var visionProvider providers.VisionCompletionProvider
	visionModelVersion := ""
	if cfg.OpenAI.APIKey != "" {
		openaiClient, err := openai.NewClient(&cfg.OpenAI)
		if err != nil {
			logger.Warn().Err(err).Msg("vision endpoint unavailable, photo path will use the configured simulation tier")
		} else {
			visionProvider = openaiClient
			visionModelVersion = openaiClient.ModelVersion()
		}
	}

	analysisRepo := database.NewCachedAnalysisAdapter(
		database.NewAnalysisAdapter(pgClient),
		cacheProvider,
		metrics,
	)

	enrichmentService := services.NewNutritionEnrichmentService(
		cacheProvider,
		usdaClient,
		metrics,
		cfg.Analysis.CacheTTLDays*24*3600,
		cfg.Analysis.MaxConcurrentUSDA,
	)
	mergeService := services.NewBarcodeMergeService(offClient, usdaClient, metrics)
	recognizer := recognition.NewFoodRecognizer(cfg.Recognition, visionProvider, enrichmentService)

	analysisService := services.NewMealAnalysisService(
		analysisRepo,
		mergeService,
		enrichmentService,
		recognizer,
		metrics,
		time.Duration(cfg.Analysis.TTLHours)*time.Hour,
		cfg.Analysis.MaxConcurrentUSDA,
		visionModelVersion,
	)
	if eventBus != nil {
		analysisService = analysisService.WithEventBus(eventBus)
	}

	// periodic sweep backs up the cache-side TTL expiry
	go runExpirySweeper(ctx, analysisService, time.Duration(cfg.Analysis.SweepIntervalMin)*time.Minute)

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: healthHandler(pgClient),
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
}

// runExpirySweeper deletes expired analyses on a fixed interval
func runExpirySweeper(ctx context.Context, svc *services.MealAnalysisService, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	logger := observability.GetLogger()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			count, err := svc.SweepExpired(ctx)
			if err != nil {
				logger.Error().Err(err).Msg("expiry sweep failed")
				continue
			}
			if count > 0 {
				logger.Info().Int64("deleted", count).Msg("swept expired analyses")
			}
		}
	}
}

func healthHandler(pg *postgres.Client) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		status := "ok"
		code := http.StatusOK
		if err := pg.Ping(r.Context()); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
	})
	return mux
}
