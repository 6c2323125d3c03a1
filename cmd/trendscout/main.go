package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/lisanmuaddib/trendscout/internal/appconfig"
	"github.com/lisanmuaddib/trendscout/pkg/coordinator"
	"github.com/lisanmuaddib/trendscout/pkg/discord"
	"github.com/lisanmuaddib/trendscout/pkg/logging"
	"github.com/lisanmuaddib/trendscout/pkg/store"
	"github.com/lisanmuaddib/trendscout/pkg/tiktok"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		// Only log warning since .env is optional
		logrus.WithError(err).Warn("Error loading .env file")
	}

	// Initialize logger
	log := logging.NewLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load and validate configuration before any network client exists
	config, err := appconfig.Load(log)
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}

	// Initialize database and persistent store
	db, err := store.SetupDatabase(log)
	if err != nil {
		log.WithError(err).Fatal("Failed to set up database")
	}
	persistentStore := store.New(db, log)

	// A crash mid-run can leave is_running=true behind; the in-memory guard
	// did not survive the process, so the persisted flag is stale.
	if err := persistentStore.ResetRunState(ctx); err != nil {
		log.WithError(err).Fatal("Failed to reset run state")
	}

	// Initialize TikTok client
	tiktokClient, err := tiktok.NewClient(config.TikTok, config.Retry)
	if err != nil {
		log.WithError(err).Fatal("Failed to create TikTok client")
	}

	// Initialize Discord client and the configured delivery strategy
	discordClient, err := discord.NewClient(config.Discord, config.Retry)
	if err != nil {
		log.WithError(err).Fatal("Failed to create Discord client")
	}

	poster, err := discord.NewPoster(discordClient)
	if err != nil {
		log.WithError(err).Fatal("Failed to create Discord poster")
	}

	// Initialize coordinator
	coord, err := coordinator.New(coordinator.Config{
		Source:     tiktokClient,
		Publisher:  poster,
		Store:      persistentStore,
		Notifier:   coordinator.NewLogNotifier(log),
		Logger:     log,
		FetchCount: config.FetchCount,
		Filter:     config.Filter,
	})
	if err != nil {
		log.WithError(err).Fatal("Failed to create coordinator")
	}

	// Handle graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		log.Info("Received shutdown signal")
		cancel()
	}()

	// SIGUSR1 is the manual "run now" entrypoint; the coordinator's guard
	// makes it safe to send at any time.
	go func() {
		runNow := make(chan os.Signal, 1)
		signal.Notify(runNow, syscall.SIGUSR1)
		for range runNow {
			log.Info("Received manual run trigger")
			go coord.Trigger(ctx)
		}
	}()

	if config.RunOnStart {
		coord.Trigger(ctx)
	}

	if !config.ScheduleEnabled {
		log.Info("Schedule disabled, waiting for manual triggers")
		<-ctx.Done()
		log.Info("Shutdown complete")
		return
	}

	scheduler, err := coordinator.NewScheduler(coord, config.ScanInterval, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to create scheduler")
	}

	log.Info("Starting trending profile monitoring")

	if err := scheduler.Run(ctx); err != nil && err != context.Canceled {
		log.WithError(err).Fatal("Scheduler stopped with error")
	}

	log.Info("Shutdown complete")
}
