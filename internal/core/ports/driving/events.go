package driving

import (
	"github.com/custodia-labs/parley/internal/core/domain"
	"github.com/custodia-labs/parley/internal/pubsub"
)

// EventSource lets outer layers observe the core. Every subscription
// returns the handle that removes it; events are fire-and-forget.
type EventSource interface {
	OnTranscript(fn func(domain.TranscriptEvent)) pubsub.Unsubscribe
	OnSuggestion(fn func(domain.SuggestionEvent)) pubsub.Unsubscribe
	OnStatus(fn func(domain.StatusEvent)) pubsub.Unsubscribe
	OnKeyPoint(fn func(domain.KeyPoint)) pubsub.Unsubscribe
	OnSession(fn func(domain.SessionEvent)) pubsub.Unsubscribe
	OnAudioLevel(fn func(domain.AudioLevelEvent)) pubsub.Unsubscribe
}
