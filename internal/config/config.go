package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	// Server
	Port string
	Env  string

	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration
	MigrationsPath    string

	// JWT
	JWTSecret string

	// Pipeline endpoints (aggregation triggers, reward distribution, inventory admin)
	PipelineAPIKey string

	// Settlement
	LockTimeout time.Duration

	// Event bus
	EventHandlerTimeout time.Duration

	// Candle aggregation job
	AggregationEnabled  bool
	AggregationInterval time.Duration
}

var appConfig *Config

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if not already loaded
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	config := &Config{
		// Server
		Port: getEnv("PORT", "8080"),
		Env:  getEnv("ENV", "development"),

		// Database
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "estatetoken"),
		DBPassword: getEnv("DB_PASSWORD", "estatetoken"),
		DBName:     getEnv("DB_NAME", "estatetoken"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		DBMaxOpenConns:    getInt("DB_MAX_OPEN_CONNS", 50),
		DBMaxIdleConns:    getInt("DB_MAX_IDLE_CONNS", 10),
		DBConnMaxLifetime: getDuration("DB_CONN_MAX_LIFETIME", time.Hour),
		MigrationsPath:    getEnv("MIGRATIONS_PATH", "migrations"),

		// JWT
		JWTSecret: getEnv("JWT_SECRET", "fallback-secret-key-for-dev-only"),

		PipelineAPIKey: os.Getenv("PIPELINE_API_KEY"),

		LockTimeout:         getDuration("LOCK_TIMEOUT", 5*time.Second),
		EventHandlerTimeout: getDuration("EVENT_HANDLER_TIMEOUT", 5*time.Second),
		AggregationEnabled:  getBool("AGGREGATION_ENABLED", true),
		AggregationInterval: getDuration("AGGREGATION_INTERVAL", time.Hour),
	}

	appConfig = config
	return config, nil
}

// Get returns the application configuration
func Get() *Config {
	if appConfig == nil {
		var err error
		appConfig, err = Load()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
	}
	return appConfig
}

// Set replaces the process-wide configuration. Tests use it to pin secrets.
func Set(cfg *Config) {
	appConfig = cfg
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDuration parses a duration variable, falling back to the default when
// the value is missing, malformed or not positive.
func getDuration(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		log.Printf("Warning: invalid %s value '%s', falling back to %s\n", key, raw, defaultValue)
		return defaultValue
	}
	return d
}

func getBool(key string, defaultValue bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		log.Printf("Warning: invalid %s value '%s', falling back to %t\n", key, raw, defaultValue)
		return defaultValue
	}
	return b
}

func getInt(key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		log.Printf("Warning: invalid %s value '%s', falling back to %d\n", key, raw, defaultValue)
		return defaultValue
	}
	return n
}
