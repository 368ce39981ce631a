// File: internal/config/config.go
package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort   string
	Environment  string
	JWTSecretKey string
	DatabasePath string

	// Upload settings for the /upload endpoint and /static file server.
	UploadDir      string
	UploadMaxBytes int64

	// Chat room settings.
	HistoryLimit    int
	MaxMessageChars int
	WriteQueueSize  int
}

// Load reads configuration from environment variables or a .env file.
func Load() *Config {
	env := os.Getenv("ENV")
	if strings.ToLower(env) != "production" {
		if err := godotenv.Load(); err != nil {
			log.Println("No .env file found; continuing with environment variables")
		}
	}

	cfg := &Config{
		ServerPort:      getEnv("SERVER_PORT", "8000"),
		Environment:     env,
		JWTSecretKey:    getEnv("JWT_SECRET_KEY", ""),
		DatabasePath:    getEnv("DATABASE_PATH", "Database.db"),
		UploadDir:       getEnv("UPLOAD_DIR", "static/uploads"),
		UploadMaxBytes:  int64(getEnvAsInt("UPLOAD_MAX_BYTES", 25<<20)),
		HistoryLimit:    getEnvAsInt("HISTORY_LIMIT", 50),
		MaxMessageChars: getEnvAsInt("MAX_MESSAGE_CHARS", 2000),
		WriteQueueSize:  getEnvAsInt("WRITE_QUEUE_SIZE", 256),
	}

	// Validation for production environments
	if strings.ToLower(env) == "production" {
		missing := []string{}
		if cfg.JWTSecretKey == "" {
			missing = append(missing, "JWT_SECRET_KEY")
		}
		if len(missing) > 0 {
			log.Fatalf("Missing required production environment variables: %v", missing)
		}
	}

	return cfg
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an env var as an integer, with a fallback.
func getEnvAsInt(key string, defaultValue int) int {
	strValue := getEnv(key, "")
	if strValue == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(strValue)
	if err != nil {
		log.Printf("Warning: could not parse env var %s as integer. Using default value.", key)
		return defaultValue
	}
	return intValue
}
