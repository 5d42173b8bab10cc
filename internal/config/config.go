package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Answering service
	GeminiAPIKey string
	DatabaseURL  string
	HTTPPort     string
	DataFile     string

	// Terminal client
	ServerURL       string
	RequestTimeout  time.Duration
	RevealChunkSize int
	RevealInterval  time.Duration
	IdentityFile    string
	LogFile         string

	LogLevel string
}

var AppConfig Config

// LoadConfig reads .env (when present) and the environment into AppConfig.
// It reports whether a .env file was found.
func LoadConfig() (bool, error) {
	envFound := godotenv.Load() == nil // Load .env file if it exists

	identityFile, err := defaultStatePath("session")
	if err != nil {
		return envFound, err
	}
	logFile, err := defaultStatePath("assistant.log")
	if err != nil {
		return envFound, err
	}

	AppConfig = Config{
		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		DatabaseURL:  getEnv("DATABASE_URL", "assistant.db"),
		HTTPPort:     getEnv("HTTP_PORT", "9100"),
		DataFile:     getEnv("DATA_FILE", "data.md"),

		ServerURL:       getEnv("ASSISTANT_SERVER_URL", "http://127.0.0.1:9100"),
		RequestTimeout:  getEnvAsDuration("ASSISTANT_REQUEST_TIMEOUT", 60*time.Second),
		RevealChunkSize: getEnvAsInt("ASSISTANT_REVEAL_CHUNK", 4),
		RevealInterval:  getEnvAsDuration("ASSISTANT_REVEAL_INTERVAL", 20*time.Millisecond),
		IdentityFile:    getEnv("ASSISTANT_IDENTITY_FILE", identityFile),
		LogFile:         getEnv("ASSISTANT_LOG_FILE", logFile),

		LogLevel: getEnv("LOG_LEVEL", "INFO"),
	}
	return envFound, nil
}

// ValidateServer checks the settings the answering service cannot run without.
func (c Config) ValidateServer() error {
	if c.GeminiAPIKey == "" {
		return errors.New("GEMINI_API_KEY environment variable is required")
	}
	return nil
}

func defaultStatePath(name string) (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "assistant", name), nil
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

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
