package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// DefaultFinMindAPIURL is the production FinMind data endpoint.
const DefaultFinMindAPIURL = "https://api.finmindtrade.com/api/v4/data"

// Config holds the process configuration, loaded from the environment.
type Config struct {
	Port             string
	Environment      string
	APIBaseURL       string
	FinMindToken     string
	FinMindAPIURL    string
	JWTSecret        string
	HTTPTimeout      time.Duration
	FetchConcurrency int
}

// LoadConfig reads the environment (and .env if present) and validates the
// required fields. Missing credentials are a startup error: the service must
// not run with a non-functional quote provider or backend.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := &Config{
		Port:             getEnv("PORT", "8000"),
		Environment:      getEnv("ENVIRONMENT", "development"),
		APIBaseURL:       os.Getenv("API_BASE_URL"),
		FinMindToken:     os.Getenv("FINMIND_TOKEN"),
		FinMindAPIURL:    getEnv("FINMIND_API_URL", DefaultFinMindAPIURL),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		HTTPTimeout:      time.Duration(getEnvInt("HTTP_TIMEOUT_SECONDS", 30)) * time.Second,
		FetchConcurrency: getEnvInt("FETCH_CONCURRENCY", 3),
	}

	if cfg.APIBaseURL == "" {
		return nil, errors.New("API_BASE_URL is required")
	}
	if cfg.FinMindToken == "" {
		return nil, errors.New("FINMIND_TOKEN is required")
	}
	if cfg.FetchConcurrency <= 0 {
		return nil, errors.New("FETCH_CONCURRENCY must be > 0")
	}
	if cfg.HTTPTimeout <= 0 {
		return nil, errors.New("HTTP_TIMEOUT_SECONDS must be > 0")
	}
	return cfg, nil
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt gets an integer environment variable or returns a default value.
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Invalid %s=%q, using default %d", key, value, defaultValue)
		return defaultValue
	}
	return n
}
