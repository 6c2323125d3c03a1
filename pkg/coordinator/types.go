package coordinator

import (
	"context"

	"github.com/lisanmuaddib/trendscout/pkg/profiles"
	"github.com/lisanmuaddib/trendscout/pkg/store"
)

// Phase is one state of the run state machine.
type Phase string

const (
	PhaseIdle         Phase = "idle"
	PhaseInitializing Phase = "initializing"
	PhaseScraping     Phase = "scraping"
	PhaseProcessing   Phase = "processing"
	PhasePosting      Phase = "posting"
	PhaseFinalizing   Phase = "finalizing"
	PhaseError        Phase = "error"
)

// Severity classifies a run notification.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notification is the structured event emitted when a run finishes.
type Notification struct {
	Title    string   `json:"title"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// Source fetches trending profiles from the content platform.
type Source interface {
	FetchTrending(ctx context.Context, count int) ([]profiles.Profile, error)
}

// Publisher announces a single profile to the destination channel. A non-nil
// error means the profile could not be announced after retries; the
// coordinator counts it and moves on.
type Publisher interface {
	Post(ctx context.Context, p profiles.Profile) error
}

// Store is the slice of the persistent store the coordinator writes to. The
// coordinator is the sole writer to run state and the ledger during a run.
type Store interface {
	GetSetting(ctx context.Context, key string) (string, bool, error)
	SaveRunState(ctx context.Context, state store.RunState) error
	PostedProfileIDs(ctx context.Context) ([]string, error)
	AppendLedgerEntry(ctx context.Context, entry store.LedgerEntry) error
	AddStatistics(ctx context.Context, delta store.StatisticsDelta) error
	RecordRun(ctx context.Context, run store.Run) error
}

// Notifier delivers run notifications to whatever surface the operator
// watches.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// ProgressFunc observes phase transitions. Called after the transition has
// been persisted.
type ProgressFunc func(phase Phase, progress int)
