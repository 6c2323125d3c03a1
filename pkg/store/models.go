package store

import (
	"time"

	"github.com/lib/pq"
)

// Setting is one key of the settings namespace. The dashboard writes these;
// the pipeline only reads them.
type Setting struct {
	Key       string    `gorm:"primaryKey;column:key"`
	Value     string    `gorm:"column:value;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

func (Setting) TableName() string {
	return "settings"
}

// RunState mirrors the coordinator's externally observable state. A single
// row (ID 1) is upserted at every phase transition.
type RunState struct {
	ID           int       `gorm:"primaryKey;column:id"`
	IsRunning    bool      `gorm:"column:is_running;not null"`
	CurrentPhase string    `gorm:"column:current_phase;not null"`
	Progress     int       `gorm:"column:progress;not null"`
	LastError    string    `gorm:"column:last_error"`
	UpdatedAt    time.Time `gorm:"column:updated_at;not null"`
}

func (RunState) TableName() string {
	return "run_state"
}

// LedgerEntry records one announced profile. At most one entry exists per
// profile ID; entries are append-only except for the explicit bulk clear.
type LedgerEntry struct {
	ProfileID     string    `gorm:"primaryKey;column:profile_id"`
	Username      string    `gorm:"column:username;not null"`
	FollowerCount int64     `gorm:"column:follower_count;not null"`
	AvatarURL     string    `gorm:"column:avatar_url"`
	PostedAt      time.Time `gorm:"column:posted_at;not null"`
}

func (LedgerEntry) TableName() string {
	return "announcement_ledger"
}

// Statistics holds the cumulative counters, one row (ID 1) updated
// additively at the end of every run.
type Statistics struct {
	ID           int        `gorm:"primaryKey;column:id"`
	TotalScraped int64      `gorm:"column:total_scraped;not null"`
	TotalPosted  int64      `gorm:"column:total_posted;not null"`
	TotalErrors  int64      `gorm:"column:total_errors;not null"`
	LastRun      *time.Time `gorm:"column:last_run"`
	LastSuccess  *time.Time `gorm:"column:last_success"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;not null"`
}

func (Statistics) TableName() string {
	return "statistics"
}

// StatisticsDelta is an additive update applied to the counters. Nil
// timestamps leave the stored value untouched.
type StatisticsDelta struct {
	Scraped     int64
	Posted      int64
	Errors      int64
	LastRun     *time.Time
	LastSuccess *time.Time
}

// Run is the per-run history row kept for the dashboard.
type Run struct {
	ID         string         `gorm:"primaryKey;column:id"`
	StartedAt  time.Time      `gorm:"column:started_at;not null"`
	FinishedAt time.Time      `gorm:"column:finished_at"`
	Status     string         `gorm:"column:status;not null"`
	Error      string         `gorm:"column:error"`
	Scraped    int            `gorm:"column:scraped;not null"`
	Matched    int            `gorm:"column:matched;not null"`
	Posted     int            `gorm:"column:posted;not null"`
	Errors     int            `gorm:"column:errors;not null"`
	PostedIDs  pq.StringArray `gorm:"column:posted_ids;type:text[]"`
}

func (Run) TableName() string {
	return "runs"
}

// Run statuses.
const (
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)
