package driven

import (
	"context"

	"github.com/custodia-labs/parley/internal/core/domain"
)

// InvokeRequest is one AI action sent to the backend.
type InvokeRequest struct {
	// RequestID tags every event the backend emits for this request.
	RequestID  string
	ActionType domain.ActionType
	Context    *domain.ContextSnapshot
	Metadata   map[string]string
}

// AISink receives streamed responses from an AIBackend.
type AISink interface {
	StreamStart(requestID string)
	StreamChunk(requestID, data string)
	StreamEnd(requestID, result string)
	Error(requestID string, cause error)
}

// AIBackend runs AI actions and streams their responses.
type AIBackend interface {
	// Invoke starts a request. Events for it arrive on sink.
	Invoke(ctx context.Context, req InvokeRequest, sink AISink) error

	// Cancel abandons a request. Late events for it may still arrive and
	// are discarded by the core.
	Cancel(requestID string)
}
