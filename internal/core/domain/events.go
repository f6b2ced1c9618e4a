package domain

import "time"

// TranscriptEvent reports a new or revised transcript segment.
type TranscriptEvent struct {
	SessionID string
	Segment   TranscriptSegment
	// Replaced is true when the segment replaced an earlier revision in place.
	Replaced bool
}

// SuggestionEventKind identifies a step in a streamed suggestion.
type SuggestionEventKind string

// Suggestion event kinds.
const (
	SuggestionStarted SuggestionEventKind = "stream-start"
	SuggestionChunk   SuggestionEventKind = "stream-chunk"
	SuggestionResult  SuggestionEventKind = "stream-end"
	SuggestionError   SuggestionEventKind = "error"
)

// SuggestionEvent reports progress of a suggestion request.
// Cancelled requests produce no events.
type SuggestionEvent struct {
	Kind       SuggestionEventKind
	RequestID  string
	ActionType ActionType
	Slot       Slot
	Origin     RequestOrigin
	Data       string
	Result     string
	Err        error
	ErrorKind  ErrorKind
}

// StatusComponent names the part of the engine a status refers to.
type StatusComponent string

// Status components.
const (
	ComponentSession       StatusComponent = "session"
	ComponentCapture       StatusComponent = "capture"
	ComponentTranscription StatusComponent = "transcription"
	ComponentAI            StatusComponent = "ai"
	ComponentAutoSuggest   StatusComponent = "auto-suggest"
)

// StatusEvent reports a non-transcript state change such as connection loss.
type StatusEvent struct {
	Component StatusComponent
	State     string
	Source    AudioSource
	Message   string
	Err       error
	At        time.Time
}

// SessionEventKind identifies a session boundary.
type SessionEventKind string

// Session event kinds.
const (
	SessionEventStarted SessionEventKind = "started"
	SessionEventEnded   SessionEventKind = "ended"
	SessionEventPaused  SessionEventKind = "paused"
	SessionEventResumed SessionEventKind = "resumed"
)

// SessionEvent reports a session lifecycle change.
type SessionEvent struct {
	Kind    SessionEventKind
	Session Session
}

// AudioLevelEvent is a level meter tick for one source, in [0, 1].
type AudioLevelEvent struct {
	Source AudioSource
	Level  float64
	At     time.Time
}
