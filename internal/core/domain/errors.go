package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates an unknown action type, source, or provider.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// Session Errors.

	// ErrAlreadyActive indicates start was requested while a session is running.
	ErrAlreadyActive = errors.New("session already active")

	// ErrInvalidStateTransition indicates a command that does not apply to the
	// current session state. It is reported as a no-op, never as a failure.
	ErrInvalidStateTransition = errors.New("invalid state transition")

	// ErrNoActiveSession indicates a command that needs a running session.
	ErrNoActiveSession = errors.New("no active session")

	// ErrCapturePermission indicates audio capture was refused by the OS.
	// It is the only capture failure that ends a session.
	ErrCapturePermission = errors.New("capture permission denied")

	// Provider Errors.

	// ErrProviderDisconnected indicates the STT or AI link was lost.
	// Transcript and context are preserved and ingestion resumes on reconnect.
	ErrProviderDisconnected = errors.New("provider disconnected")

	// ErrOutOfOrderResult indicates a stale provider message, such as a
	// result for an utterance that is already final.
	ErrOutOfOrderResult = errors.New("out of order result")

	// Suggestion Errors.

	// ErrRequestCancelled indicates a suggestion was superseded or the
	// session stopped. It is never surfaced to the user.
	ErrRequestCancelled = errors.New("request cancelled")

	// ErrRequestFailed indicates the AI backend reported an error.
	ErrRequestFailed = errors.New("request failed")

	// ErrTimeout indicates a request saw no activity within its bound.
	ErrTimeout = errors.New("request timed out")
)

// ErrorKind is the externally visible classification of a core error.
type ErrorKind string

// Error kinds, one per sentinel family.
const (
	KindNone                   ErrorKind = ""
	KindInvalidInput           ErrorKind = "invalid-input"
	KindAlreadyActive          ErrorKind = "already-active"
	KindInvalidStateTransition ErrorKind = "invalid-state-transition"
	KindProviderDisconnected   ErrorKind = "provider-disconnected"
	KindOutOfOrderResult       ErrorKind = "out-of-order-result"
	KindRequestCancelled       ErrorKind = "request-cancelled"
	KindRequestFailed          ErrorKind = "request-failed"
	KindTimeout                ErrorKind = "timeout"
	KindCapturePermission      ErrorKind = "capture-permission"
	KindInternal               ErrorKind = "internal"
)

// KindOf maps an error onto its ErrorKind. Unknown errors are KindInternal.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrAlreadyActive):
		return KindAlreadyActive
	case errors.Is(err, ErrInvalidStateTransition), errors.Is(err, ErrNoActiveSession):
		return KindInvalidStateTransition
	case errors.Is(err, ErrProviderDisconnected):
		return KindProviderDisconnected
	case errors.Is(err, ErrOutOfOrderResult):
		return KindOutOfOrderResult
	case errors.Is(err, ErrRequestCancelled):
		return KindRequestCancelled
	case errors.Is(err, ErrTimeout):
		return KindTimeout
	case errors.Is(err, ErrRequestFailed):
		return KindRequestFailed
	case errors.Is(err, ErrCapturePermission):
		return KindCapturePermission
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrUnsupportedType), errors.Is(err, ErrNotFound):
		return KindInvalidInput
	default:
		return KindInternal
	}
}
