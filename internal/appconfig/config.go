// Package appconfig assembles the per-component configurations from the
// environment and validates them together before anything touches the
// network.
package appconfig

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/lisanmuaddib/trendscout/pkg/coordinator"
	"github.com/lisanmuaddib/trendscout/pkg/discord"
	"github.com/lisanmuaddib/trendscout/pkg/profiles"
	"github.com/lisanmuaddib/trendscout/pkg/retry"
	"github.com/lisanmuaddib/trendscout/pkg/tiktok"
	"github.com/sirupsen/logrus"
)

// Config is the full service configuration.
type Config struct {
	TikTok  *tiktok.Config
	Discord *discord.Config
	Filter  profiles.FilterConfig
	Retry   retry.Config

	// Pipeline
	FetchCount int

	// Schedule
	ScheduleEnabled bool
	ScanInterval    time.Duration

	// Run once at startup before the schedule kicks in
	RunOnStart bool

	// Logging
	LogLevel  string
	LogFormat string
}

// Load reads the full configuration from the environment. Validation
// failures abort startup; nothing network-facing is constructed from an
// invalid config.
func Load(logger *logrus.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	tiktokConfig, err := tiktok.NewConfig()
	if err != nil {
		return nil, fmt.Errorf("tiktok config: %w", err)
	}
	tiktokConfig.Logger = logger

	discordConfig, err := discord.NewConfig()
	if err != nil {
		return nil, fmt.Errorf("discord config: %w", err)
	}
	discordConfig.Logger = logger

	minFollowers, err := envInt64("MIN_FOLLOWERS", 0)
	if err != nil {
		return nil, err
	}
	minEngagement, err := envFloat("MIN_ENGAGEMENT_RATE", 0)
	if err != nil {
		return nil, err
	}
	verifiedOnly, err := envBool("VERIFIED_ONLY", false)
	if err != nil {
		return nil, err
	}
	excludePosted, err := envBool("EXCLUDE_POSTED", true)
	if err != nil {
		return nil, err
	}

	maxRetries, err := envInt("MAX_RETRIES", retry.DefaultMaxRetries)
	if err != nil {
		return nil, err
	}
	retryDelayMs, err := envInt("RETRY_DELAY_MS", int(retry.DefaultBaseDelay/time.Millisecond))
	if err != nil {
		return nil, err
	}

	fetchCount, err := envInt("SCRAPE_COUNT", coordinator.DefaultFetchCount)
	if err != nil {
		return nil, err
	}
	scheduleEnabled, err := envBool("SCHEDULE_ENABLED", true)
	if err != nil {
		return nil, err
	}
	runOnStart, err := envBool("RUN_ON_START", false)
	if err != nil {
		return nil, err
	}

	scanInterval := coordinator.DefaultScanInterval
	if raw := os.Getenv("SCAN_INTERVAL"); raw != "" {
		scanInterval, err = time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid SCAN_INTERVAL %q: %w", raw, err)
		}
	}

	config := &Config{
		TikTok:  tiktokConfig,
		Discord: discordConfig,
		Filter: profiles.FilterConfig{
			MinFollowers:      minFollowers,
			MinEngagementRate: minEngagement,
			VerifiedOnly:      verifiedOnly,
			ExcludePosted:     excludePosted,
		},
		Retry: retry.Config{
			MaxRetries: maxRetries,
			BaseDelay:  time.Duration(retryDelayMs) * time.Millisecond,
		},
		FetchCount:      fetchCount,
		ScheduleEnabled: scheduleEnabled,
		ScanInterval:    scanInterval,
		RunOnStart:      runOnStart,
		LogLevel:        os.Getenv("LOG_LEVEL"),
		LogFormat:       os.Getenv("LOG_FORMAT"),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) Validate() error {
	if c.TikTok == nil {
		return fmt.Errorf("tiktok config is required")
	}
	if c.Discord == nil {
		return fmt.Errorf("discord config is required")
	}
	if err := c.Filter.Validate(); err != nil {
		return fmt.Errorf("filter config: %w", err)
	}
	if err := c.Retry.Validate(); err != nil {
		return fmt.Errorf("retry config: %w", err)
	}
	if c.FetchCount < 1 {
		return fmt.Errorf("scrape count must be at least 1, got %d", c.FetchCount)
	}
	if c.ScanInterval <= 0 {
		return fmt.Errorf("scan interval must be positive, got %v", c.ScanInterval)
	}
	return nil
}

func envInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}

func envInt64(key string, defaultValue int64) (int64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}

func envFloat(key string, defaultValue float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}

func envBool(key string, defaultValue bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}
