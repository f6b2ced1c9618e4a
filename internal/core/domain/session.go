package domain

import "time"

// SessionState is the lifecycle state of a meeting session.
type SessionState string

// Session states.
const (
	SessionIdle    SessionState = "idle"
	SessionActive  SessionState = "active"
	SessionPaused  SessionState = "paused"
	SessionStopped SessionState = "stopped"
)

// IsRunning returns true while a session is Active or Paused.
func (s SessionState) IsRunning() bool {
	return s == SessionActive || s == SessionPaused
}

// CanStart returns true if start is legal from this state.
func (s SessionState) CanStart() bool {
	return s == SessionIdle || s == SessionStopped || s == ""
}

// String returns the string representation.
func (s SessionState) String() string {
	return string(s)
}

// Session is one live meeting. It is owned exclusively by the session
// controller; other components only see copies.
type Session struct {
	ID        string
	State     SessionState
	StartedAt time.Time
	EndedAt   time.Time
}

// Ended returns true once the session has been stopped.
func (s Session) Ended() bool {
	return !s.EndedAt.IsZero()
}

// Duration returns how long the session ran, or has been running as of now.
func (s Session) Duration(now time.Time) time.Duration {
	if s.StartedAt.IsZero() {
		return 0
	}
	if s.Ended() {
		return s.EndedAt.Sub(s.StartedAt)
	}
	return now.Sub(s.StartedAt)
}
