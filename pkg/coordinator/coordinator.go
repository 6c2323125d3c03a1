// Package coordinator drives the announcement pipeline: fetch trending
// profiles, filter them, publish announcements, and persist what happened.
// It owns the single-flight guard, the phase state machine, and the
// statistics and ledger updates.
package coordinator

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/lisanmuaddib/trendscout/pkg/profiles"
	"github.com/lisanmuaddib/trendscout/pkg/store"
	"github.com/sirupsen/logrus"
)

// Settings-namespace keys the dashboard may use to override the environment
// thresholds at run time.
const (
	SettingMinFollowers      = "filter.min_followers"
	SettingMinEngagementRate = "filter.min_engagement_rate"
	SettingVerifiedOnly      = "filter.verified_only"
	SettingExcludePosted     = "filter.exclude_posted"
)

// DefaultFetchCount is how many trending profiles a run requests when not
// configured otherwise.
const DefaultFetchCount = 30

// Config wires the coordinator's collaborators.
type Config struct {
	Source     Source
	Publisher  Publisher
	Store      Store
	Notifier   Notifier
	Logger     *logrus.Logger
	FetchCount int
	Filter     profiles.FilterConfig
	OnProgress ProgressFunc
}

// Coordinator sequences one run at a time through the pipeline phases.
type Coordinator struct {
	source     Source
	publisher  Publisher
	store      Store
	notifier   Notifier
	logger     *logrus.Logger
	fetchCount int
	filter     profiles.FilterConfig
	onProgress ProgressFunc

	// running is the single-flight guard; scoped to process lifetime, never
	// persisted.
	running atomic.Bool
}

// New creates a new Coordinator instance
func New(config Config) (*Coordinator, error) {
	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &Coordinator{
		source:     config.Source,
		publisher:  config.Publisher,
		store:      config.Store,
		notifier:   config.Notifier,
		logger:     config.Logger,
		fetchCount: config.FetchCount,
		filter:     config.Filter,
		onProgress: config.OnProgress,
	}, nil
}

func validateConfig(config *Config) error {
	if config.Source == nil {
		return fmt.Errorf("source is required")
	}
	if config.Publisher == nil {
		return fmt.Errorf("publisher is required")
	}
	if config.Store == nil {
		return fmt.Errorf("store is required")
	}
	if config.Logger == nil {
		config.Logger = logrus.New()
	}
	if config.Notifier == nil {
		config.Notifier = NewLogNotifier(config.Logger)
	}
	if config.FetchCount <= 0 {
		config.FetchCount = DefaultFetchCount
	}
	if err := config.Filter.Validate(); err != nil {
		return fmt.Errorf("invalid filter config: %w", err)
	}
	return nil
}

// IsRunning reports whether a run is currently active.
func (c *Coordinator) IsRunning() bool {
	return c.running.Load()
}

// Trigger starts a run if none is active. Both the scheduler tick and the
// manual "run now" entrypoint land here; a trigger received while a run is
// active is dropped, not queued. Returns whether a run was started.
func (c *Coordinator) Trigger(ctx context.Context) bool {
	if !c.running.CompareAndSwap(false, true) {
		c.logger.Warn("Run already in progress, ignoring trigger")
		return false
	}
	// The guard is released on every exit path, including panics in
	// collaborators.
	defer c.running.Store(false)

	c.execute(ctx)
	return true
}

// runSummary accumulates what happened during one run.
type runSummary struct {
	scraped   int
	matched   int
	posted    int
	failed    int
	postedIDs []string
}

func (c *Coordinator) execute(ctx context.Context) {
	runID := uuid.New().String()
	log := c.logger.WithField("run_id", runID)
	started := time.Now()

	log.Info("Starting trend scan run")

	sum := &runSummary{}
	runErr := c.run(ctx, log, sum)
	finished := time.Now()

	record := store.Run{
		ID:         runID,
		StartedAt:  started,
		FinishedAt: finished,
		Status:     store.RunStatusCompleted,
		Scraped:    sum.scraped,
		Matched:    sum.matched,
		Posted:     sum.posted,
		Errors:     sum.failed,
		PostedIDs:  sum.postedIDs,
	}

	if runErr != nil {
		log.WithError(runErr).Error("Run failed")
		record.Status = store.RunStatusFailed
		record.Error = runErr.Error()
		record.Errors = sum.failed + 1

		// Best effort from here on: the run is already failed, so store
		// problems are logged rather than compounding the abort.
		if err := c.setPhase(ctx, log, PhaseError, 100, runErr.Error()); err != nil {
			log.WithError(err).Error("Failed to persist error state")
		}
		if err := c.store.AddStatistics(ctx, store.StatisticsDelta{
			Scraped: int64(sum.scraped),
			Posted:  int64(sum.posted),
			Errors:  int64(sum.failed) + 1,
			LastRun: &finished,
		}); err != nil {
			log.WithError(err).Error("Failed to update statistics")
		}
		c.notify(ctx, log, Notification{
			Title:    "Trend scan failed",
			Message:  runErr.Error(),
			Severity: SeverityError,
		})
	} else {
		if err := c.store.AddStatistics(ctx, store.StatisticsDelta{
			Scraped:     int64(sum.scraped),
			Posted:      int64(sum.posted),
			Errors:      int64(sum.failed),
			LastRun:     &finished,
			LastSuccess: &finished,
		}); err != nil {
			log.WithError(err).Error("Failed to update statistics")
		}
		c.notify(ctx, log, c.summaryNotification(sum))

		log.WithFields(logrus.Fields{
			"scraped":  sum.scraped,
			"matched":  sum.matched,
			"posted":   sum.posted,
			"failed":   sum.failed,
			"duration": finished.Sub(started).String(),
		}).Info("Run complete")
	}

	if err := c.store.RecordRun(ctx, record); err != nil {
		log.WithError(err).Error("Failed to record run history")
	}

	// Always return the persisted state to idle, success or failure.
	lastError := ""
	if runErr != nil {
		lastError = runErr.Error()
	}
	if err := c.setPhase(ctx, log, PhaseIdle, 0, lastError); err != nil {
		log.WithError(err).Error("Failed to reset run state to idle")
	}
}

// run walks the pipeline phases. Any returned error is fatal to the run;
// per-profile publish failures are absorbed here and only counted.
func (c *Coordinator) run(ctx context.Context, log *logrus.Entry, sum *runSummary) error {
	if err := c.setPhase(ctx, log, PhaseInitializing, 5, ""); err != nil {
		return err
	}

	filterCfg, err := c.resolveFilterConfig(ctx, log)
	if err != nil {
		return err
	}

	if err := c.setPhase(ctx, log, PhaseScraping, 15, ""); err != nil {
		return err
	}

	records, err := c.source.FetchTrending(ctx, c.fetchCount)
	if err != nil {
		return fmt.Errorf("fetch trending: %w", err)
	}
	sum.scraped = len(records)

	if err := c.setPhase(ctx, log, PhaseProcessing, 45, ""); err != nil {
		return err
	}

	posted := make(map[string]struct{})
	if filterCfg.ExcludePosted {
		ids, err := c.store.PostedProfileIDs(ctx)
		if err != nil {
			return fmt.Errorf("load ledger: %w", err)
		}
		for _, id := range ids {
			posted[id] = struct{}{}
		}
	}

	matched := profiles.Apply(records, filterCfg, posted)
	sum.matched = len(matched)

	log.WithFields(logrus.Fields{
		"scraped": sum.scraped,
		"matched": sum.matched,
	}).Info("Filtering complete")

	if err := c.setPhase(ctx, log, PhasePosting, 60, ""); err != nil {
		return err
	}

	// Strictly sequential, in the filter's sort order. Parallel posting
	// would scramble the announcement order and complicate rate limiting.
	for i, p := range matched {
		if err := c.publisher.Post(ctx, p); err != nil {
			sum.failed++
			log.WithError(err).WithFields(logrus.Fields{
				"profile_id": p.ID,
				"username":   p.Username,
			}).Error("Failed to announce profile, continuing with next")
			continue
		}

		sum.posted++
		sum.postedIDs = append(sum.postedIDs, p.ID)

		// Ledger entry is written immediately after the publish succeeds so
		// a later crash cannot re-announce this profile.
		if err := c.store.AppendLedgerEntry(ctx, store.LedgerEntry{
			ProfileID:     p.ID,
			Username:      p.Username,
			FollowerCount: p.FollowerCount,
			AvatarURL:     p.AvatarURL,
			PostedAt:      time.Now(),
		}); err != nil {
			return fmt.Errorf("append ledger: %w", err)
		}

		progress := 60 + 35*(i+1)/len(matched)
		if err := c.setPhase(ctx, log, PhasePosting, progress, ""); err != nil {
			return err
		}
	}

	return c.setPhase(ctx, log, PhaseFinalizing, 98, "")
}

// resolveFilterConfig layers any settings-namespace overrides over the
// environment defaults and validates the result before any network call.
func (c *Coordinator) resolveFilterConfig(ctx context.Context, log *logrus.Entry) (profiles.FilterConfig, error) {
	cfg := c.filter

	if raw, ok, err := c.store.GetSetting(ctx, SettingMinFollowers); err != nil {
		return cfg, fmt.Errorf("read settings: %w", err)
	} else if ok {
		if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
			cfg.MinFollowers = v
		} else {
			log.WithField("value", raw).Warn("Ignoring invalid min_followers setting")
		}
	}

	if raw, ok, err := c.store.GetSetting(ctx, SettingMinEngagementRate); err != nil {
		return cfg, fmt.Errorf("read settings: %w", err)
	} else if ok {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			cfg.MinEngagementRate = v
		} else {
			log.WithField("value", raw).Warn("Ignoring invalid min_engagement_rate setting")
		}
	}

	if raw, ok, err := c.store.GetSetting(ctx, SettingVerifiedOnly); err != nil {
		return cfg, fmt.Errorf("read settings: %w", err)
	} else if ok {
		if v, err := strconv.ParseBool(raw); err == nil {
			cfg.VerifiedOnly = v
		} else {
			log.WithField("value", raw).Warn("Ignoring invalid verified_only setting")
		}
	}

	if raw, ok, err := c.store.GetSetting(ctx, SettingExcludePosted); err != nil {
		return cfg, fmt.Errorf("read settings: %w", err)
	} else if ok {
		if v, err := strconv.ParseBool(raw); err == nil {
			cfg.ExcludePosted = v
		} else {
			log.WithField("value", raw).Warn("Ignoring invalid exclude_posted setting")
		}
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid filter config: %w", err)
	}

	return cfg, nil
}

// setPhase persists the transition before the next phase proceeds, then
// notifies the progress observer.
func (c *Coordinator) setPhase(ctx context.Context, log *logrus.Entry, phase Phase, progress int, lastError string) error {
	log.WithFields(logrus.Fields{
		"phase":    phase,
		"progress": progress,
	}).Debug("Phase transition")

	err := c.store.SaveRunState(ctx, store.RunState{
		IsRunning:    phase != PhaseIdle,
		CurrentPhase: string(phase),
		Progress:     progress,
		LastError:    lastError,
	})
	if err != nil {
		return fmt.Errorf("persist phase %s: %w", phase, err)
	}

	if c.onProgress != nil {
		c.onProgress(phase, progress)
	}
	return nil
}

// summaryNotification maps the run outcome onto a severity: success when
// something was posted cleanly, warning when some announcements failed, info
// when there was nothing to announce.
func (c *Coordinator) summaryNotification(sum *runSummary) Notification {
	severity := SeverityInfo
	switch {
	case sum.failed > 0:
		severity = SeverityWarning
	case sum.posted > 0:
		severity = SeveritySuccess
	}

	return Notification{
		Title: "Trend scan complete",
		Message: fmt.Sprintf("Scraped %d profiles, %d matched filters, %d announced, %d failed",
			sum.scraped, sum.matched, sum.posted, sum.failed),
		Severity: severity,
	}
}

func (c *Coordinator) notify(ctx context.Context, log *logrus.Entry, n Notification) {
	if err := c.notifier.Notify(ctx, n); err != nil {
		log.WithError(err).Error("Failed to deliver run notification")
	}
}
