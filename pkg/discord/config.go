package discord

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// DeliveryMode selects how announcements reach the destination channel.
type DeliveryMode string

const (
	// ModeDirect posts the embed straight into the configured channel
	ModeDirect DeliveryMode = "direct"

	// ModeThread creates a per-profile thread and posts the embed inside it
	ModeThread DeliveryMode = "thread"
)

// Default configuration values
const (
	// DefaultBaseURL is the Discord REST API root
	DefaultBaseURL = "https://discord.com/api/v10"

	// DefaultAutoArchiveMinutes is how long a created thread stays active
	// without messages before Discord archives it
	DefaultAutoArchiveMinutes = 60

	// DefaultPostDelay is the fixed pause between successive announcements,
	// kept well under Discord's per-channel rate limit
	DefaultPostDelay = 2 * time.Second

	// ThreadNameLimit is Discord's maximum thread name length
	ThreadNameLimit = 100
)

type Config struct {
	// API Authentication
	BotToken string

	// Destination
	ChannelID string

	// Delivery
	Mode               DeliveryMode
	AutoArchiveMinutes int
	PostDelay          time.Duration

	// API Endpoints
	BaseURL string

	// General Config
	Logger *logrus.Logger
}

func NewConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	archiveMinutes, _ := strconv.Atoi(getEnvOrDefault("DISCORD_THREAD_ARCHIVE_MINUTES", strconv.Itoa(DefaultAutoArchiveMinutes)))
	postDelayMs, _ := strconv.Atoi(getEnvOrDefault("DISCORD_POST_DELAY_MS", strconv.Itoa(int(DefaultPostDelay/time.Millisecond))))

	config := &Config{
		BotToken:           os.Getenv("DISCORD_BOT_TOKEN"),
		ChannelID:          os.Getenv("DISCORD_CHANNEL_ID"),
		Mode:               DeliveryMode(getEnvOrDefault("DISCORD_DELIVERY_MODE", string(ModeThread))),
		AutoArchiveMinutes: archiveMinutes,
		PostDelay:          time.Duration(postDelayMs) * time.Millisecond,
		BaseURL:            getEnvOrDefault("DISCORD_API_BASE_URL", DefaultBaseURL),

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
		"bot_token_exists": c.BotToken != "",
		"channel_id":       c.ChannelID,
		"delivery_mode":    c.Mode,
	}).Debug("Validating Discord configuration")

	if c.BotToken == "" {
		return fmt.Errorf("discord bot token is required")
	}
	if c.ChannelID == "" {
		return fmt.Errorf("discord channel id is required")
	}

	switch c.Mode {
	case ModeDirect, ModeThread:
	default:
		return fmt.Errorf("invalid delivery mode %q, must be %q or %q", c.Mode, ModeDirect, ModeThread)
	}

	// Discord only accepts specific auto-archive durations.
	switch c.AutoArchiveMinutes {
	case 60, 1440, 4320, 10080:
	default:
		return fmt.Errorf("invalid thread archive duration %d, must be 60, 1440, 4320 or 10080", c.AutoArchiveMinutes)
	}

	if c.PostDelay < 0 {
		return fmt.Errorf("post delay cannot be negative")
	}

	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
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
