package tiktok

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Default configuration values
const (
	// DefaultBaseURL is the TikTok web API root
	DefaultBaseURL = "https://www.tiktok.com/api"

	// DefaultBatchSize is the page size used when paginating the trending
	// feed; the endpoint caps pages at 30 items
	DefaultBatchSize = 30

	// MaxBatchSize is the largest page the trending endpoint will serve
	MaxBatchSize = 30

	// DefaultUserAgent identifies the client on trending requests
	DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
)

type Config struct {
	// API Authentication
	MSToken string

	// API Endpoints
	BaseURL          string
	TrendingEndpoint string

	// Pagination
	BatchSize int

	// Request headers
	UserAgent string

	// General Config
	Logger *logrus.Logger
}

func NewConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	batchSize, _ := strconv.Atoi(getEnvOrDefault("TIKTOK_BATCH_SIZE", strconv.Itoa(DefaultBatchSize)))

	config := &Config{
		MSToken:          os.Getenv("TIKTOK_MS_TOKEN"),
		BaseURL:          getEnvOrDefault("TIKTOK_API_BASE_URL", DefaultBaseURL),
		TrendingEndpoint: "/recommend/item_list/",
		BatchSize:        batchSize,
		UserAgent:        getEnvOrDefault("TIKTOK_USER_AGENT", DefaultUserAgent),

		Logger: logrus.New(),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) Validate() error {
	if c.Logger == nil {
		return fmt.Errorf("logger is required")
	}

	c.Logger.WithFields(logrus.Fields{
		"ms_token_exists": c.MSToken != "",
		"base_url":        c.BaseURL,
		"batch_size":      c.BatchSize,
	}).Debug("Validating TikTok configuration")

	// A missing ms_token degrades scraping reliability but does not make
	// requests impossible, so it is a warning rather than an error.
	if c.MSToken == "" {
		c.Logger.Warn("TIKTOK_MS_TOKEN not set, trending requests may be rejected")
	}

	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.TrendingEndpoint == "" {
		c.TrendingEndpoint = "/recommend/item_list/"
	}

	if c.BatchSize < 1 || c.BatchSize > MaxBatchSize {
		return fmt.Errorf("batch size must be between 1 and %d, got %d", MaxBatchSize, c.BatchSize)
	}

	return nil
}

// Helper function to get environment variable with default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
