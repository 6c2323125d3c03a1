// Package store persists everything the pipeline needs across runs:
// dashboard settings, run state, the announcement ledger, cumulative
// statistics, and per-run history. Backed by Postgres through GORM.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SetupDatabase initializes the database connection and runs migrations
func SetupDatabase(logger *logrus.Logger) (*gorm.DB, error) {
	logger.Debug("Starting database setup")

	projectRoot, err := findProjectRoot()
	if err != nil {
		return nil, fmt.Errorf("failed to find project root: %w", err)
	}

	// Run migrations
	if err := RunMigrations(logger, projectRoot); err != nil {
		return nil, err
	}

	// Construct DSN
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		os.Getenv("DB_HOST"),
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_NAME"),
		os.Getenv("DB_PORT"),
	)

	logger.Debug("Establishing GORM database connection")

	// Connect to database
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: NewGormLogrusLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Auto-migrate the schema
	if err := db.AutoMigrate(&Setting{}, &RunState{}, &LedgerEntry{}, &Statistics{}, &Run{}); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate database schema: %w", err)
	}

	logger.Info("Database setup completed successfully")
	return db, nil
}

// Store exposes the four persisted namespaces to the run coordinator. The
// coordinator is the sole writer to run state and the ledger while a run is
// active, so no store-level locking is needed beyond what Postgres provides.
type Store struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func New(db *gorm.DB, logger *logrus.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger,
	}
}

// GetSetting reads one key from the settings namespace. The second return
// value reports whether the key exists.
func (s *Store) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var setting Setting
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&setting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read setting %q: %w", key, err)
	}
	return setting.Value, true, nil
}

// SetSetting writes one key of the settings namespace.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	setting := Setting{
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now(),
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&setting).Error
	if err != nil {
		return fmt.Errorf("failed to write setting %q: %w", key, err)
	}
	return nil
}

// SaveRunState upserts the single run-state row.
func (s *Store) SaveRunState(ctx context.Context, state RunState) error {
	state.ID = 1
	state.UpdatedAt = time.Now()

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"is_running", "current_phase", "progress", "last_error", "updated_at"}),
		}).
		Create(&state).Error
	if err != nil {
		return fmt.Errorf("failed to save run state: %w", err)
	}
	return nil
}

// GetRunState reads the persisted run state, returning an idle state when
// none has been written yet.
func (s *Store) GetRunState(ctx context.Context) (RunState, error) {
	var state RunState
	err := s.db.WithContext(ctx).Where("id = ?", 1).First(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return RunState{ID: 1, CurrentPhase: "idle"}, nil
	}
	if err != nil {
		return RunState{}, fmt.Errorf("failed to read run state: %w", err)
	}
	return state, nil
}

// ResetRunState forces the persisted state back to idle. Called at process
// startup: a crash mid-run leaves is_running=true behind even though the
// in-memory guard died with the process.
func (s *Store) ResetRunState(ctx context.Context) error {
	state, err := s.GetRunState(ctx)
	if err != nil {
		return err
	}

	if state.IsRunning {
		s.logger.WithFields(logrus.Fields{
			"phase":    state.CurrentPhase,
			"progress": state.Progress,
		}).Warn("Found stale running state from a previous process, resetting to idle")
	}

	return s.SaveRunState(ctx, RunState{
		IsRunning:    false,
		CurrentPhase: "idle",
		Progress:     0,
		LastError:    state.LastError,
	})
}

// AppendLedgerEntry records an announced profile. Re-announcing an already
// recorded ID is a no-op: the ledger holds at most one entry per profile.
func (s *Store) AppendLedgerEntry(ctx context.Context, entry LedgerEntry) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "profile_id"}},
			DoNothing: true,
		}).
		Create(&entry).Error
	if err != nil {
		return fmt.Errorf("failed to append ledger entry for %s: %w", entry.ProfileID, err)
	}
	return nil
}

// PostedProfileIDs returns every profile ID present in the ledger.
func (s *Store) PostedProfileIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).
		Model(&LedgerEntry{}).
		Pluck("profile_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load posted profile ids: %w", err)
	}
	return ids, nil
}

// ClearLedger removes every ledger entry. This is the only way entries are
// ever deleted.
func (s *Store) ClearLedger(ctx context.Context) error {
	err := s.db.WithContext(ctx).
		Where("1 = 1").
		Delete(&LedgerEntry{}).Error
	if err != nil {
		return fmt.Errorf("failed to clear ledger: %w", err)
	}

	s.logger.Info("Announcement ledger cleared")
	return nil
}

// AddStatistics applies an additive delta to the cumulative counters.
func (s *Store) AddStatistics(ctx context.Context, delta StatisticsDelta) error {
	now := time.Now()

	row := Statistics{
		ID:           1,
		TotalScraped: delta.Scraped,
		TotalPosted:  delta.Posted,
		TotalErrors:  delta.Errors,
		LastRun:      delta.LastRun,
		LastSuccess:  delta.LastSuccess,
		UpdatedAt:    now,
	}

	assignments := map[string]interface{}{
		"total_scraped": gorm.Expr("statistics.total_scraped + ?", delta.Scraped),
		"total_posted":  gorm.Expr("statistics.total_posted + ?", delta.Posted),
		"total_errors":  gorm.Expr("statistics.total_errors + ?", delta.Errors),
		"updated_at":    now,
	}
	if delta.LastRun != nil {
		assignments["last_run"] = *delta.LastRun
	}
	if delta.LastSuccess != nil {
		assignments["last_success"] = *delta.LastSuccess
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.Assignments(assignments),
		}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to update statistics: %w", err)
	}
	return nil
}

// GetStatistics reads the cumulative counters, returning zeroes when no run
// has completed yet.
func (s *Store) GetStatistics(ctx context.Context) (Statistics, error) {
	var stats Statistics
	err := s.db.WithContext(ctx).Where("id = ?", 1).First(&stats).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Statistics{ID: 1}, nil
	}
	if err != nil {
		return Statistics{}, fmt.Errorf("failed to read statistics: %w", err)
	}
	return stats, nil
}

// RecordRun appends one row of run history.
func (s *Store) RecordRun(ctx context.Context, run Run) error {
	if err := s.db.WithContext(ctx).Create(&run).Error; err != nil {
		return fmt.Errorf("failed to record run %s: %w", run.ID, err)
	}
	return nil
}

// RecentRuns returns the latest run-history rows, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	var runs []Run
	err := s.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Find(&runs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load recent runs: %w", err)
	}
	return runs, nil
}
