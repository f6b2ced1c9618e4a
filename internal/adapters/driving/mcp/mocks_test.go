package mcp

import (
	"context"
	"time"

	"github.com/custodia-labs/parley/internal/core/domain"
	"github.com/custodia-labs/parley/internal/core/ports/driving"
	"github.com/custodia-labs/parley/internal/pubsub"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

// mockSessionService is a mock implementation of driving.SessionService.
type mockSessionService struct {
	state       domain.SessionState
	session     domain.Session
	snapshot    *domain.ContextSnapshot
	lastOpts    domain.SnapshotOptions
	autoSuggest domain.AutoSuggestConfig
	diagnostics driving.Diagnostics
	events      driving.EventSource
	err         error

	keyPointText string
	keyPointMeta map[string]string
	triggered    domain.ActionType
	triggerMeta  map[string]string
	cleared      bool
	pauseCalls   []string
}

var _ driving.SessionService = (*mockSessionService)(nil)

func (m *mockSessionService) Start(_ context.Context) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.state = domain.SessionActive
	m.session = domain.Session{ID: "sess-1", State: m.state, StartedAt: t0}
	return m.session.ID, nil
}

func (m *mockSessionService) Stop(_ context.Context) (domain.SessionState, error) {
	if m.err != nil {
		return m.state, m.err
	}
	if m.state.IsRunning() {
		m.state = domain.SessionStopped
	}
	return m.state, nil
}

func (m *mockSessionService) TogglePause() (domain.SessionState, error) {
	m.pauseCalls = append(m.pauseCalls, "toggle")
	return m.state, m.err
}

func (m *mockSessionService) Pause() (domain.SessionState, error) {
	m.pauseCalls = append(m.pauseCalls, "pause")
	if m.err == nil {
		m.state = domain.SessionPaused
	}
	return m.state, m.err
}

func (m *mockSessionService) Resume() (domain.SessionState, error) {
	m.pauseCalls = append(m.pauseCalls, "resume")
	if m.err == nil {
		m.state = domain.SessionActive
	}
	return m.state, m.err
}

func (m *mockSessionService) TriggerAction(_ context.Context, action domain.ActionType, metadata map[string]string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.triggered = action
	m.triggerMeta = metadata
	return "req-1", nil
}

func (m *mockSessionService) TriggerActionWithContext(
	_ context.Context,
	action domain.ActionType,
	_ *domain.ContextSnapshot,
	_ map[string]string,
) (string, error) {
	m.triggered = action
	return "req-mock", m.err
}

func (m *mockSessionService) Snapshot(opts domain.SnapshotOptions) *domain.ContextSnapshot {
	m.lastOpts = opts
	if m.snapshot == nil {
		return &domain.ContextSnapshot{}
	}
	return m.snapshot
}

func (m *mockSessionService) State() domain.SessionState {
	return m.state
}

func (m *mockSessionService) Session() (domain.Session, bool) {
	return m.session, m.session.ID != ""
}

func (m *mockSessionService) AddKeyPoint(text string, metadata map[string]string) (domain.KeyPoint, error) {
	if m.err != nil {
		return domain.KeyPoint{}, m.err
	}
	m.keyPointText = text
	m.keyPointMeta = metadata
	return domain.KeyPoint{ID: "kp-1", Text: text, Metadata: metadata}, nil
}

func (m *mockSessionService) ClearContext() {
	m.cleared = true
}

func (m *mockSessionService) SetAutoSuggest(enabled bool) error {
	m.autoSuggest.Enabled = enabled
	return m.err
}

func (m *mockSessionService) SetAutoSuggestConfig(cfg domain.AutoSuggestConfig) error {
	if m.err != nil {
		return m.err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	m.autoSuggest = cfg
	return nil
}

func (m *mockSessionService) AutoSuggestConfig() domain.AutoSuggestConfig {
	return m.autoSuggest.Clone()
}

func (m *mockSessionService) SetAPIKey(_ domain.ProviderKind, _ string) error {
	return m.err
}

func (m *mockSessionService) Diagnostics() driving.Diagnostics {
	return m.diagnostics
}

func (m *mockSessionService) Events() driving.EventSource {
	if m.events != nil {
		return m.events
	}
	return noEvents{}
}

// noEvents is an EventSource with no subscribers.
type noEvents struct{}

func (noEvents) OnTranscript(func(domain.TranscriptEvent)) pubsub.Unsubscribe { return func() {} }
func (noEvents) OnSuggestion(func(domain.SuggestionEvent)) pubsub.Unsubscribe { return func() {} }
func (noEvents) OnStatus(func(domain.StatusEvent)) pubsub.Unsubscribe         { return func() {} }
func (noEvents) OnKeyPoint(func(domain.KeyPoint)) pubsub.Unsubscribe          { return func() {} }
func (noEvents) OnSession(func(domain.SessionEvent)) pubsub.Unsubscribe       { return func() {} }
func (noEvents) OnAudioLevel(func(domain.AudioLevelEvent)) pubsub.Unsubscribe { return func() {} }

// topicEvents is an EventSource backed by real topics, for tests that publish.
type topicEvents struct {
	transcripts *pubsub.Topic[domain.TranscriptEvent]
	keyPoints   *pubsub.Topic[domain.KeyPoint]
	sessions    *pubsub.Topic[domain.SessionEvent]
}

func newTopicEvents() *topicEvents {
	return &topicEvents{
		transcripts: pubsub.NewTopic[domain.TranscriptEvent](),
		keyPoints:   pubsub.NewTopic[domain.KeyPoint](),
		sessions:    pubsub.NewTopic[domain.SessionEvent](),
	}
}

func (e *topicEvents) OnTranscript(fn func(domain.TranscriptEvent)) pubsub.Unsubscribe {
	return e.transcripts.Subscribe(fn)
}
func (e *topicEvents) OnKeyPoint(fn func(domain.KeyPoint)) pubsub.Unsubscribe {
	return e.keyPoints.Subscribe(fn)
}
func (e *topicEvents) OnSession(fn func(domain.SessionEvent)) pubsub.Unsubscribe {
	return e.sessions.Subscribe(fn)
}
func (e *topicEvents) OnSuggestion(func(domain.SuggestionEvent)) pubsub.Unsubscribe {
	return func() {}
}
func (e *topicEvents) OnStatus(func(domain.StatusEvent)) pubsub.Unsubscribe { return func() {} }
func (e *topicEvents) OnAudioLevel(func(domain.AudioLevelEvent)) pubsub.Unsubscribe {
	return func() {}
}

func testSnapshot() *domain.ContextSnapshot {
	end := t0.Add(time.Second)
	return &domain.ContextSnapshot{
		Segments: []domain.TranscriptSegment{
			{ID: "seg-1", Text: "Hello", IsFinal: true, Start: t0, End: &end, Source: domain.SourceMic},
			{ID: "seg-2", Text: "world", IsFinal: true, Start: end, End: &end, Source: domain.SourceSystem},
			{ID: "seg-3", Text: "test", Start: end, Source: domain.SourceMic},
		},
		KeyPoints: []domain.KeyPoint{
			{ID: "kp-1", Text: "ship Friday", CreatedAt: t0, SourceSegmentIDs: []string{}},
		},
		Session: domain.SessionMeta{SessionID: "sess-1", StartedAt: t0},
		TakenAt: end,
	}
}
