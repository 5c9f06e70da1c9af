package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPPort  string
	LogLevel  string
	LogFormat string
	JWTSecret string

	StoreDriver   string
	DatabaseURL   string
	MongoURI      string
	MongoDatabase string
	RedisURL      string
	CacheTTL      time.Duration
	CatalogFile   string
	SeedOnEmpty   bool

	LLMProvider  string
	OllamaURL    string
	OllamaModel  string
	GeminiAPIKey string
	GeminiModel  string

	QuestionTimeout time.Duration
	FeedbackTimeout time.Duration
	FeedbackCeiling time.Duration
	SessionTTL      time.Duration
}

var AppConfig Config

func LoadConfig() {
	err := godotenv.Load() // Load .env file if it exists
	if err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	AppConfig = FromEnv()
}

// FromEnv reads the configuration from the process environment without touching .env files.
func FromEnv() Config {
	return Config{
		HTTPPort:  getEnv("HTTP_PORT", "5001"),
		LogLevel:  getEnv("LOG_LEVEL", "INFO"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
		JWTSecret: getEnv("JWT_SECRET", ""),

		StoreDriver:   getEnv("STORE_DRIVER", "sqlite"),
		DatabaseURL:   getEnv("DATABASE_URL", "interview_coach.db"),
		MongoURI:      getEnv("MONGODB_URI", "mongodb://localhost:27017"),
		MongoDatabase: getEnv("MONGODB_DATABASE", "interview-coach"),
		RedisURL:      getEnv("REDIS_URL", ""),
		CacheTTL:      getEnvAsDuration("CACHE_TTL", 5*time.Minute),
		CatalogFile:   getEnv("CATALOG_FILE", ""),
		SeedOnEmpty:   getEnvAsBool("SEED_ON_EMPTY", false),

		LLMProvider:  getEnv("LLM_PROVIDER", "ollama"),
		OllamaURL:    getEnv("OLLAMA_URL", "http://localhost:11434"),
		OllamaModel:  getEnv("OLLAMA_MODEL", "gemma3:4b"),
		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-1.5-flash-latest"),

		QuestionTimeout: getEnvAsDuration("QUESTION_TIMEOUT", 120*time.Second),
		FeedbackTimeout: getEnvAsDuration("FEEDBACK_TIMEOUT", 60*time.Second),
		FeedbackCeiling: getEnvAsDuration("FEEDBACK_CEILING", 2*time.Minute),
		SessionTTL:      getEnvAsDuration("SESSION_TTL", time.Hour),
	}
}

// Validate reports settings that cannot work together.
func (c Config) Validate() error {
	switch c.StoreDriver {
	case "sqlite", "mongo":
	default:
		return fmt.Errorf("STORE_DRIVER must be sqlite or mongo, got %q", c.StoreDriver)
	}

	switch c.LLMProvider {
	case "ollama", "mock":
	case "gemini":
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY environment variable is required when LLM_PROVIDER=gemini")
		}
	default:
		return fmt.Errorf("LLM_PROVIDER must be ollama, gemini or mock, got %q", c.LLMProvider)
	}

	if c.QuestionTimeout <= 0 || c.FeedbackTimeout <= 0 {
		return fmt.Errorf("QUESTION_TIMEOUT and FEEDBACK_TIMEOUT must be positive")
	}
	if c.FeedbackCeiling <= 0 {
		return fmt.Errorf("FEEDBACK_CEILING must be positive")
	}
	return nil
}

func (c Config) Debug() bool {
	return c.LogLevel == "DEBUG"
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// Durations accept Go syntax ("90s") or a bare number of milliseconds.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(valueStr); err == nil {
		return d
	}
	if ms := getEnvAsInt(key, -1); ms >= 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultValue
}
