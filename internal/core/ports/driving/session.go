package driving

import (
	"context"

	"github.com/custodia-labs/parley/internal/core/domain"
)

// SessionService is the command surface of a live meeting session.
// Every command returns a typed outcome; none panics.
type SessionService interface {
	// Start begins a fresh session and returns its ID.
	// Fails with domain.ErrAlreadyActive unless the state is Idle or Stopped.
	Start(ctx context.Context) (string, error)

	// Stop ends the running session. It is a no-op returning the current
	// state when no session is running.
	Stop(ctx context.Context) (domain.SessionState, error)

	// TogglePause flips between Active and Paused.
	TogglePause() (domain.SessionState, error)

	// Pause and Resume move to a target state; repeating one is a no-op.
	Pause() (domain.SessionState, error)
	Resume() (domain.SessionState, error)

	// TriggerAction submits a manual suggestion request built from the
	// current context and returns its request ID.
	TriggerAction(ctx context.Context, action domain.ActionType, metadata map[string]string) (string, error)

	// TriggerActionWithContext submits a request against a caller-supplied
	// context instead of the live one.
	TriggerActionWithContext(ctx context.Context, action domain.ActionType, snapshot *domain.ContextSnapshot, metadata map[string]string) (string, error)

	// Snapshot returns an immutable view of the context.
	Snapshot(opts domain.SnapshotOptions) *domain.ContextSnapshot

	// State returns the session state.
	State() domain.SessionState

	// Session returns a copy of the current session, if any.
	Session() (domain.Session, bool)

	// AddKeyPoint appends a key point to the context.
	AddKeyPoint(text string, metadata map[string]string) (domain.KeyPoint, error)

	// ClearContext empties segments and key points.
	ClearContext()

	// SetAutoSuggest enables or disables auto-suggest.
	SetAutoSuggest(enabled bool) error

	// SetAutoSuggestConfig replaces the auto-suggest configuration.
	SetAutoSuggestConfig(cfg domain.AutoSuggestConfig) error

	// AutoSuggestConfig returns the current auto-suggest configuration.
	AutoSuggestConfig() domain.AutoSuggestConfig

	// SetAPIKey stores a provider key and hands it to the provider.
	SetAPIKey(provider domain.ProviderKind, key string) error

	// Diagnostics returns ingestion and request counters.
	Diagnostics() Diagnostics

	// Events returns the observer interface for core events.
	Events() EventSource
}

// Diagnostics summarises engine internals for troubleshooting.
type Diagnostics struct {
	State         domain.SessionState
	SessionID     string
	Sources       map[domain.AudioSource]domain.SourceStats
	STT           domain.ConnectionState
	STTEpoch      int
	ChunksDropped uint64
	LateResults   uint64
	Segments      int
	KeyPoints     int
	LiveRequests  map[domain.Slot]string
	AutoTriggers  int
}
