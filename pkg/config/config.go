package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	OpenFoodFacts OpenFoodFactsConfig
	USDA          USDAConfig
	OpenAI        OpenAIConfig
	Recognition   RecognitionConfig
	Analysis      AnalysisConfig
	OTEL          OTELConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host        string
	Port        int
	Environment string
	LogLevel    string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// OpenFoodFactsConfig holds OpenFoodFacts API configuration
type OpenFoodFactsConfig struct {
	BaseURL        string
	TimeoutSeconds int
}

// USDAConfig holds USDA FoodData Central configuration
type USDAConfig struct {
	BaseURL        string
	APIKey         string
	TimeoutSeconds int
}

// OpenAIConfig holds the vision completion endpoint configuration
type OpenAIConfig struct {
	APIKey         string
	Model          string
	TimeoutSeconds int
	RateLimitRPM   int
	RateLimitBurst int
}

// RecognitionConfig selects and tunes the photo recognition adapter
type RecognitionConfig struct {
	// Mode is one of stub, heuristic, model, gpt4v
	Mode string
	// Normalization is one of off, dry_run, enforce
	Normalization    string
	SimulatedLatency int // milliseconds, model mode only
	FailureRate      float64
	FallbackTier     string // heuristic or stub
}

// AnalysisConfig tunes the analysis pipeline
type AnalysisConfig struct {
	TTLHours          int
	CacheTTLDays      int
	MaxConcurrentUSDA int
	SweepIntervalMin  int
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	return &Config{
		Server: ServerConfig{
			Host:        getEnv("SERVER_HOST", "0.0.0.0"),
			Port:        getEnvAsInt("SERVER_PORT", 8080),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "nutrifit"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		OpenFoodFacts: OpenFoodFactsConfig{
			BaseURL:        getEnv("OFF_BASE_URL", "https://world.openfoodfacts.org"),
			TimeoutSeconds: getEnvAsInt("OFF_TIMEOUT_SECONDS", 10),
		},
		USDA: USDAConfig{
			BaseURL:        getEnv("USDA_BASE_URL", "https://api.nal.usda.gov/fdc"),
			APIKey:         getEnv("USDA_API_KEY", "DEMO_KEY"),
			TimeoutSeconds: getEnvAsInt("USDA_TIMEOUT_SECONDS", 10),
		},
		OpenAI: OpenAIConfig{
			APIKey:         getEnv("OPENAI_API_KEY", ""),
			Model:          getEnv("OPENAI_MODEL", "gpt-4o"),
			TimeoutSeconds: getEnvAsInt("OPENAI_TIMEOUT_SECONDS", 25),
			RateLimitRPM:   getEnvAsInt("OPENAI_RATE_LIMIT_RPM", 60),
			RateLimitBurst: getEnvAsInt("OPENAI_RATE_LIMIT_BURST", 5),
		},
		Recognition: RecognitionConfig{
			Mode:             getEnv("RECOGNITION_MODE", "stub"),
			Normalization:    getEnv("RECOGNITION_NORMALIZATION", "off"),
			SimulatedLatency: getEnvAsInt("RECOGNITION_SIMULATED_LATENCY_MS", 150),
			FailureRate:      getEnvAsFloat("RECOGNITION_FAILURE_RATE", 0.1),
			FallbackTier:     getEnv("RECOGNITION_FALLBACK_TIER", "heuristic"),
		},
		Analysis: AnalysisConfig{
			TTLHours:          getEnvAsInt("ANALYSIS_TTL_HOURS", 24),
			CacheTTLDays:      getEnvAsInt("NUTRITION_CACHE_TTL_DAYS", 7),
			MaxConcurrentUSDA: getEnvAsInt("MAX_CONCURRENT_USDA_CALLS", 4),
			SweepIntervalMin:  getEnvAsInt("ANALYSIS_SWEEP_INTERVAL_MIN", 60),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "meal-analysis"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
	}, nil
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}
