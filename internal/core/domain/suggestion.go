package domain

import (
	"fmt"
	"strings"
	"time"
)

// ActionType identifies the kind of AI action requested.
type ActionType string

// Action types.
const (
	ActionTalkingPoint   ActionType = "talking-point"
	ActionFollowUpAction ActionType = "follow-up-action"
	ActionCustom         ActionType = "custom"
)

// IsValid returns true if the action type is recognised.
func (a ActionType) IsValid() bool {
	switch a {
	case ActionTalkingPoint, ActionFollowUpAction, ActionCustom:
		return true
	default:
		return false
	}
}

// Slot returns the orchestrator slot this action type occupies.
func (a ActionType) Slot() Slot {
	switch a {
	case ActionTalkingPoint:
		return SlotTalkingPoints
	case ActionFollowUpAction:
		return SlotFollowUpActions
	default:
		return SlotCustom
	}
}

// String returns the string representation.
func (a ActionType) String() string {
	return string(a)
}

// ParseActionType parses an action type name.
func ParseActionType(s string) (ActionType, error) {
	a := ActionType(s)
	if !a.IsValid() {
		return "", fmt.Errorf("%w: action type %q", ErrUnsupportedType, s)
	}
	return a, nil
}

// Slot is a named channel holding at most one live suggestion request.
type Slot string

// Slots.
const (
	SlotTalkingPoints   Slot = "talking-points"
	SlotFollowUpActions Slot = "follow-up-actions"
	SlotCustom          Slot = "custom"
)

// RequestStatus is the lifecycle state of a suggestion request.
type RequestStatus string

// Request statuses.
const (
	RequestPending   RequestStatus = "pending"
	RequestStreaming RequestStatus = "streaming"
	RequestCompleted RequestStatus = "completed"
	RequestFailed    RequestStatus = "failed"
	RequestCancelled RequestStatus = "cancelled"
)

// IsTerminal returns true once the request can no longer change.
func (s RequestStatus) IsTerminal() bool {
	return s == RequestCompleted || s == RequestFailed || s == RequestCancelled
}

// IsLive returns true while the request still occupies its slot.
func (s RequestStatus) IsLive() bool {
	return s == RequestPending || s == RequestStreaming
}

// RequestOrigin records who asked for a suggestion.
type RequestOrigin string

// Request origins.
const (
	OriginManual RequestOrigin = "manual"
	OriginAuto   RequestOrigin = "auto"
	OriginMock   RequestOrigin = "mock"
)

// SuggestionRequest is one AI action and its streamed response.
type SuggestionRequest struct {
	ID         string
	ActionType ActionType
	Slot       Slot
	Origin     RequestOrigin
	// Context is the snapshot taken at submit time. It is shared, not copied.
	Context      *ContextSnapshot
	Metadata     map[string]string
	Status       RequestStatus
	Chunks       []string
	Result       string
	Err          error
	CreatedAt    time.Time
	LastActivity time.Time
	FinishedAt   time.Time
}

// Text returns the final result, or the chunks streamed so far.
func (r *SuggestionRequest) Text() string {
	if r.Result != "" {
		return r.Result
	}
	return strings.Join(r.Chunks, "")
}
