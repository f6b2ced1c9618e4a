package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/parley/internal/core/domain"
	"github.com/custodia-labs/parley/internal/core/ports/driven"
	"github.com/custodia-labs/parley/internal/core/ports/driving"
	"github.com/custodia-labs/parley/internal/logger"
	"github.com/custodia-labs/parley/internal/pubsub"
)

// Ensure SessionController implements the driving ports.
var (
	_ driving.SessionService = (*SessionController)(nil)
	_ driving.EventSource    = (*SessionController)(nil)
)

// ControllerConfig holds the tunables of a SessionController.
type ControllerConfig struct {
	Clock driven.Clock
	// AutoSuggest is the initial auto-suggest configuration. With
	// MinNewSegments and MinInterval at zero an enabled engine fires on
	// every final segment.
	AutoSuggest    domain.AutoSuggestConfig
	RequestTimeout time.Duration
	LevelInterval  time.Duration
	// KeyPointCues are phrases that turn a final segment into a key point.
	// Nil selects the defaults; an empty slice disables extraction.
	KeyPointCues []string
	// Settings persists auto-suggest changes and API keys. Optional.
	Settings driving.SettingsService
}

// ConfigFromSettings builds a controller config from persisted settings.
func ConfigFromSettings(s domain.AppSettings) ControllerConfig {
	return ControllerConfig{
		AutoSuggest:    s.AutoSuggest.Clone(),
		RequestTimeout: s.AI.RequestTimeout,
		LevelInterval:  s.Audio.LevelInterval,
	}
}

// SessionController is the state machine that owns one meeting session at
// a time and mediates every external command.
//
// A single coordination lock serializes commands and provider callbacks.
// Provider callbacks enter through sinks bound to the session generation
// they were created for, so callbacks from a previous session are dropped.
// Events produced while the lock is held are queued and delivered after it
// is released, in production order, by one goroutine at a time. Listeners
// may therefore call back into the controller.
type SessionController struct {
	capture  driven.AudioCaptureProvider
	stt      driven.STTProvider
	ai       driven.AIBackend
	clock    driven.Clock
	settings driving.SettingsService
	log      *logger.Logger

	ids          *sessionIDs
	orchestrator *AIActionOrchestrator
	auto         *AutoSuggestEngine
	extractor    *KeyPointExtractor

	mu            sync.Mutex
	state         domain.SessionState
	session       domain.Session
	hasSession    bool
	gen           uint64
	run           *sessionRun
	store         *ContextStore
	storeUnsubs   []pubsub.Unsubscribe
	levelInterval time.Duration

	outMu      sync.Mutex
	outbox     []func()
	delivering bool

	transcripts *pubsub.Topic[domain.TranscriptEvent]
	suggestions *pubsub.Topic[domain.SuggestionEvent]
	statuses    *pubsub.Topic[domain.StatusEvent]
	keyPoints   *pubsub.Topic[domain.KeyPoint]
	sessions    *pubsub.Topic[domain.SessionEvent]
	levels      *pubsub.Topic[domain.AudioLevelEvent]
}

// sessionRun holds the per-session components.
type sessionRun struct {
	gen   uint64
	mux   *AudioStreamMux
	coord *TranscriptionCoordinator
}

// NewSessionController creates an idle controller.
func NewSessionController(
	capture driven.AudioCaptureProvider,
	stt driven.STTProvider,
	ai driven.AIBackend,
	cfg ControllerConfig,
) (*SessionController, error) {
	if capture == nil || stt == nil || ai == nil {
		return nil, fmt.Errorf("%w: capture, stt and ai collaborators are required", domain.ErrInvalidInput)
	}
	if err := cfg.AutoSuggest.Validate(); err != nil {
		return nil, err
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}

	c := &SessionController{
		capture:       capture,
		stt:           stt,
		ai:            ai,
		clock:         cfg.Clock,
		settings:      cfg.Settings,
		log:           logger.For("session"),
		ids:           newSessionIDs(),
		extractor:     NewKeyPointExtractor(cfg.KeyPointCues),
		state:         domain.SessionIdle,
		levelInterval: cfg.LevelInterval,
		transcripts:   pubsub.NewTopic[domain.TranscriptEvent](),
		suggestions:   pubsub.NewTopic[domain.SuggestionEvent](),
		statuses:      pubsub.NewTopic[domain.StatusEvent](),
		keyPoints:     pubsub.NewTopic[domain.KeyPoint](),
		sessions:      pubsub.NewTopic[domain.SessionEvent](),
		levels:        pubsub.NewTopic[domain.AudioLevelEvent](),
	}

	c.orchestrator = NewAIActionOrchestrator(OrchestratorConfig{
		Backend: ai,
		Sink:    aiSink{c: c},
		Clock:   cfg.Clock,
		Timeout: cfg.RequestTimeout,
		Enter:   c.enter,
		Emit: func(ev domain.SuggestionEvent) {
			c.post(func() { c.suggestions.Publish(ev) })
		},
		OnTerminal: func(req domain.SuggestionRequest) {
			c.log.Debug("request %s %s (%s)", req.ID, req.Status, req.Origin)
		},
	})
	c.auto = NewAutoSuggestEngine(cfg.AutoSuggest, cfg.Clock, func(
		action domain.ActionType,
		snapshot *domain.ContextSnapshot,
		metadata map[string]string,
		origin domain.RequestOrigin,
	) (string, error) {
		return c.orchestrator.Submit(context.Background(), action, snapshot, metadata, origin)
	})
	c.bindStore(NewContextStore(cfg.Clock))
	return c, nil
}

// Events returns the controller's observer interface.
func (c *SessionController) Events() driving.EventSource {
	return c
}

// OnTranscript subscribes to transcript updates.
func (c *SessionController) OnTranscript(fn func(domain.TranscriptEvent)) pubsub.Unsubscribe {
	return c.transcripts.Subscribe(fn)
}

// OnSuggestion subscribes to suggestion progress.
func (c *SessionController) OnSuggestion(fn func(domain.SuggestionEvent)) pubsub.Unsubscribe {
	return c.suggestions.Subscribe(fn)
}

// OnStatus subscribes to status updates.
func (c *SessionController) OnStatus(fn func(domain.StatusEvent)) pubsub.Unsubscribe {
	return c.statuses.Subscribe(fn)
}

// OnKeyPoint subscribes to key point additions.
func (c *SessionController) OnKeyPoint(fn func(domain.KeyPoint)) pubsub.Unsubscribe {
	return c.keyPoints.Subscribe(fn)
}

// OnSession subscribes to session start and end notifications.
func (c *SessionController) OnSession(fn func(domain.SessionEvent)) pubsub.Unsubscribe {
	return c.sessions.Subscribe(fn)
}

// OnAudioLevel subscribes to level meter ticks.
func (c *SessionController) OnAudioLevel(fn func(domain.AudioLevelEvent)) pubsub.Unsubscribe {
	return c.levels.Subscribe(fn)
}

// Start begins a fresh session with an empty context. The STT stream is
// opened and both capture sources are started best effort: a source that
// fails is reported on the status stream. Only when every source is
// refused permission does Start fail, leaving the session stopped.
func (c *SessionController) Start(ctx context.Context) (string, error) {
	defer c.flush()
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.state.CanStart() {
		return "", fmt.Errorf("%w: session %s is %s", domain.ErrAlreadyActive, c.session.ID, c.state)
	}

	c.gen++
	gen := c.gen
	now := c.clock.Now()
	c.session = domain.Session{
		ID:        c.ids.next(now),
		State:     domain.SessionActive,
		StartedAt: now,
	}
	c.hasSession = true

	store := NewContextStore(c.clock)
	store.StartSession(domain.SessionMeta{SessionID: c.session.ID, StartedAt: now})
	c.bindStore(store)

	coord := NewTranscriptionCoordinator(c.stt, store, c.clock, c.postStatus)
	run := &sessionRun{gen: gen, coord: coord}
	run.mux = NewAudioStreamMux(MuxConfig{
		Capture: c.capture,
		Sink:    captureSink{c: c, gen: gen},
		Forward: func(chunk domain.AudioChunk) {
			_ = coord.Submit(chunk)
		},
		OnLevel: func(ev domain.AudioLevelEvent) {
			c.post(func() { c.levels.Publish(ev) })
		},
		Clock:         c.clock,
		LevelInterval: c.levelInterval,
	})
	c.run = run
	c.state = domain.SessionActive
	c.auto.Bind(store)

	if err := coord.Open(ctx, sttSink{c: c, gen: gen}); err != nil {
		c.log.Warn("transcription unavailable: %v", err)
	}

	report := run.mux.StartAll(ctx)
	for _, src := range domain.AllSources {
		if err := report[src]; err != nil {
			c.log.Warn("%s capture: %v", src, err)
			c.postStatus(domain.StatusEvent{
				Component: domain.ComponentCapture,
				State:     "failed",
				Source:    src,
				Message:   err.Error(),
				Err:       err,
				At:        now,
			})
		}
	}
	if report.AllFailed() && permissionDenied(report) {
		err := fmt.Errorf("starting capture: %w", report.Err())
		c.endLocked()
		return "", err
	}

	sess := c.session
	c.post(func() {
		c.sessions.Publish(domain.SessionEvent{Kind: domain.SessionEventStarted, Session: sess})
	})
	c.log.Info("session %s started", sess.ID)
	return sess.ID, nil
}

// Stop ends the running session. Capture is stopped and pending interim
// segments are finalized before the live requests are cancelled and the
// STT stream is closed. Callbacks from the ended session are dropped.
// When no session is running the current state is returned unchanged.
func (c *SessionController) Stop(_ context.Context) (domain.SessionState, error) {
	defer c.flush()
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.state.IsRunning() {
		return c.state, nil
	}
	c.endLocked()
	return c.state, nil
}

// endLocked tears the running session down. Caller must hold the lock.
func (c *SessionController) endLocked() {
	run := c.run
	c.gen++
	c.run = nil
	c.auto.Bind(nil)

	if run != nil {
		if err := run.mux.StopAll().Err(); err != nil {
			c.log.Warn("stopping capture: %v", err)
		}
		if n := run.coord.Flush(); n > 0 {
			c.log.Debug("finalized %d pending segment(s)", n)
		}
	}
	if n := c.orchestrator.CancelAll(); n > 0 {
		c.log.Debug("cancelled %d request(s)", n)
	}
	if run != nil {
		if err := run.coord.Close(); err != nil {
			c.log.Warn("closing transcription: %v", err)
		}
	}

	now := c.clock.Now()
	c.store.EndSession(now)
	c.session.EndedAt = now
	c.session.State = domain.SessionStopped
	c.state = domain.SessionStopped

	sess := c.session
	c.post(func() {
		c.sessions.Publish(domain.SessionEvent{Kind: domain.SessionEventEnded, Session: sess})
	})
	c.log.Info("session %s ended after %s", sess.ID, sess.Duration(now).Round(time.Millisecond))
}

// TogglePause flips between Active and Paused.
func (c *SessionController) TogglePause() (domain.SessionState, error) {
	defer c.flush()
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case domain.SessionActive:
		return c.setPausedLocked(true)
	case domain.SessionPaused:
		return c.setPausedLocked(false)
	default:
		return c.state, fmt.Errorf("%w: cannot toggle pause while %s", domain.ErrInvalidStateTransition, c.state)
	}
}

// Pause moves an active session to Paused. Pausing a paused session is a no-op.
func (c *SessionController) Pause() (domain.SessionState, error) {
	defer c.flush()
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case domain.SessionPaused:
		return c.state, nil
	case domain.SessionActive:
		return c.setPausedLocked(true)
	default:
		return c.state, fmt.Errorf("%w: cannot pause while %s", domain.ErrInvalidStateTransition, c.state)
	}
}

// Resume moves a paused session to Active. Resuming an active session is a no-op.
func (c *SessionController) Resume() (domain.SessionState, error) {
	defer c.flush()
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case domain.SessionActive:
		return c.state, nil
	case domain.SessionPaused:
		return c.setPausedLocked(false)
	default:
		return c.state, fmt.Errorf("%w: cannot resume while %s", domain.ErrInvalidStateTransition, c.state)
	}
}

func (c *SessionController) setPausedLocked(paused bool) (domain.SessionState, error) {
	c.run.mux.SetPaused(paused)
	c.auto.Suppress(paused)

	kind := domain.SessionEventResumed
	c.state = domain.SessionActive
	if paused {
		kind = domain.SessionEventPaused
		c.state = domain.SessionPaused
	}
	c.session.State = c.state

	sess := c.session
	c.post(func() { c.sessions.Publish(domain.SessionEvent{Kind: kind, Session: sess}) })
	c.log.Debug("session %s %s", sess.ID, kind)
	return c.state, nil
}

// TriggerAction submits a manual request against the live context. It
// bypasses auto-suggest gating but shares the slot discipline, so it
// supersedes any live request in the same slot.
func (c *SessionController) TriggerAction(ctx context.Context, action domain.ActionType, metadata map[string]string) (string, error) {
	defer c.flush()
	c.mu.Lock()
	defer c.mu.Unlock()

	if !action.IsValid() {
		return "", fmt.Errorf("%w: action type %q", domain.ErrUnsupportedType, action)
	}
	if !c.state.IsRunning() {
		return "", fmt.Errorf("%w: state is %s", domain.ErrNoActiveSession, c.state)
	}
	snapshot := c.store.Snapshot(domain.SnapshotOptions{})
	return c.orchestrator.Submit(ctx, action, snapshot, metadata, domain.OriginManual)
}

// TriggerActionWithContext submits a request against a caller-supplied
// snapshot. It does not need a running session.
func (c *SessionController) TriggerActionWithContext(
	ctx context.Context,
	action domain.ActionType,
	snapshot *domain.ContextSnapshot,
	metadata map[string]string,
) (string, error) {
	defer c.flush()
	c.mu.Lock()
	defer c.mu.Unlock()

	if !action.IsValid() {
		return "", fmt.Errorf("%w: action type %q", domain.ErrUnsupportedType, action)
	}
	if snapshot == nil {
		return "", fmt.Errorf("%w: snapshot is required", domain.ErrInvalidInput)
	}
	return c.orchestrator.Submit(ctx, action, snapshot, metadata, domain.OriginMock)
}

// Snapshot returns an immutable view of the current or most recent context.
func (c *SessionController) Snapshot(opts domain.SnapshotOptions) *domain.ContextSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Snapshot(opts)
}

// State returns the session state.
func (c *SessionController) State() domain.SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Session returns the current or most recent session.
func (c *SessionController) Session() (domain.Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session, c.hasSession
}

// AddKeyPoint appends a manual key point to the context.
func (c *SessionController) AddKeyPoint(text string, metadata map[string]string) (domain.KeyPoint, error) {
	if strings.TrimSpace(text) == "" {
		return domain.KeyPoint{}, fmt.Errorf("%w: key point text is required", domain.ErrInvalidInput)
	}

	defer c.flush()
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.AddKeyPoint(text, metadata), nil
}

// ClearContext empties segments and key points.
func (c *SessionController) ClearContext() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.Clear()
	c.log.Debug("context cleared")
}

// SetAutoSuggest enables or disables auto-suggest and persists the change.
func (c *SessionController) SetAutoSuggest(enabled bool) error {
	cfg := c.AutoSuggestConfig()
	cfg.Enabled = enabled
	return c.SetAutoSuggestConfig(cfg)
}

// SetAutoSuggestConfig replaces the auto-suggest configuration and
// persists it when a settings service is configured.
func (c *SessionController) SetAutoSuggestConfig(cfg domain.AutoSuggestConfig) error {
	if err := c.applyAutoSuggest(cfg); err != nil {
		return err
	}
	if c.settings == nil {
		return nil
	}
	if err := c.settings.SetAutoSuggest(cfg); err != nil {
		return fmt.Errorf("saving auto-suggest settings: %w", err)
	}
	return nil
}

// AutoSuggestConfig returns the current auto-suggest configuration.
func (c *SessionController) AutoSuggestConfig() domain.AutoSuggestConfig {
	return c.auto.Config()
}

// ApplySettings applies reloaded settings without persisting them.
// The level interval takes effect from the next session.
func (c *SessionController) ApplySettings(s domain.AppSettings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if err := c.applyAutoSuggest(s.AutoSuggest); err != nil {
		return err
	}
	c.orchestrator.SetTimeout(s.AI.RequestTimeout)

	c.mu.Lock()
	c.levelInterval = s.Audio.LevelInterval
	c.mu.Unlock()
	return nil
}

func (c *SessionController) applyAutoSuggest(cfg domain.AutoSuggestConfig) error {
	defer c.flush()
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.auto.Configure(cfg); err != nil {
		return err
	}
	state := "disabled"
	if cfg.Enabled {
		state = "enabled"
	}
	c.postStatus(domain.StatusEvent{
		Component: domain.ComponentAutoSuggest,
		State:     state,
		Message:   fmt.Sprintf("every %d final segment(s), at most once per %s", cfg.MinNewSegments, cfg.MinInterval),
		At:        c.clock.Now(),
	})
	return nil
}

// SetAPIKey stores a provider key and hands it to the provider if it
// accepts keys at runtime.
func (c *SessionController) SetAPIKey(provider domain.ProviderKind, key string) error {
	if !provider.IsValid() {
		return fmt.Errorf("%w: provider %q", domain.ErrUnsupportedType, provider)
	}
	if c.settings != nil {
		if err := c.settings.SetAPIKey(provider, key); err != nil {
			return fmt.Errorf("saving %s api key: %w", provider, err)
		}
	}

	var target any = c.stt
	if provider == domain.ProviderAI {
		target = c.ai
	}
	if cred, ok := target.(driven.Credentialed); ok {
		if err := cred.SetAPIKey(key); err != nil {
			return fmt.Errorf("applying %s api key: %w", provider, err)
		}
	}
	c.log.Debug("%s api key updated", provider)
	return nil
}

// Diagnostics returns ingestion and request counters.
func (c *SessionController) Diagnostics() driving.Diagnostics {
	c.mu.Lock()
	defer c.mu.Unlock()

	d := driving.Diagnostics{
		State:        c.state,
		SessionID:    c.session.ID,
		STT:          domain.ConnectionDisconnected,
		LiveRequests: c.orchestrator.LiveIDs(),
		AutoTriggers: c.auto.Triggers(),
	}
	d.Segments, d.KeyPoints = c.store.Len()
	if c.run != nil {
		d.Sources = c.run.mux.Stats()
		d.STT = c.run.coord.State()
		d.STTEpoch = c.run.coord.Epoch()
		d.ChunksDropped, d.LateResults = c.run.coord.Counters()
	}
	return d
}

// bindStore makes store the current context and routes its changes.
// Caller must hold the lock or own the controller exclusively.
func (c *SessionController) bindStore(store *ContextStore) {
	for _, unsub := range c.storeUnsubs {
		unsub()
	}
	c.store = store
	c.storeUnsubs = []pubsub.Unsubscribe{
		store.OnChange(c.onSegment),
		store.OnKeyPoint(func(kp domain.KeyPoint) {
			c.post(func() { c.keyPoints.Publish(kp) })
		}),
	}
}

// onSegment runs under the coordination lock.
func (c *SessionController) onSegment(change SegmentChange) {
	ev := domain.TranscriptEvent{
		SessionID: c.session.ID,
		Segment:   change.Segment,
		Replaced:  change.Replaced,
	}
	c.post(func() { c.transcripts.Publish(ev) })

	if text, cue, ok := c.extractor.Extract(change); ok {
		c.store.AddKeyPointFrom(text, map[string]string{"cue": cue, "origin": "auto"}, []string{change.Segment.ID})
	}
	c.auto.Observe(change)
}

// postStatus runs under the coordination lock.
func (c *SessionController) postStatus(ev domain.StatusEvent) {
	c.post(func() { c.statuses.Publish(ev) })
}

// enter runs f under the coordination lock and delivers its events.
func (c *SessionController) enter(f func()) {
	c.mu.Lock()
	f()
	c.mu.Unlock()
	c.flush()
}

// enterSession is enter for callbacks bound to a session generation.
func (c *SessionController) enterSession(gen uint64, f func(*sessionRun)) {
	c.mu.Lock()
	run := c.run
	if run == nil || run.gen != gen {
		c.mu.Unlock()
		return
	}
	f(run)
	c.mu.Unlock()
	c.flush()
}

// post queues an event delivery.
func (c *SessionController) post(deliver func()) {
	c.outMu.Lock()
	c.outbox = append(c.outbox, deliver)
	c.outMu.Unlock()
}

// flush delivers queued events. A flush that finds another delivery in
// progress returns at once; the running one drains what was queued.
func (c *SessionController) flush() {
	c.outMu.Lock()
	if c.delivering {
		c.outMu.Unlock()
		return
	}
	c.delivering = true
	for len(c.outbox) > 0 {
		batch := c.outbox
		c.outbox = nil
		c.outMu.Unlock()
		for _, deliver := range batch {
			deliver()
		}
		c.outMu.Lock()
	}
	c.delivering = false
	c.outMu.Unlock()
}

// handleCaptureFailure runs under the coordination lock.
func (c *SessionController) handleCaptureFailure(run *sessionRun, src domain.AudioSource, err error) {
	run.mux.MarkStopped(src)
	c.log.Warn("%s capture failed: %v", src, err)
	c.postStatus(domain.StatusEvent{
		Component: domain.ComponentCapture,
		State:     "failed",
		Source:    src,
		Message:   err.Error(),
		Err:       err,
		At:        c.clock.Now(),
	})
	if errors.Is(err, domain.ErrCapturePermission) && !run.mux.AnyRunning() {
		c.log.Warn("no capture source left, ending session %s", c.session.ID)
		c.endLocked()
	}
}

func permissionDenied(report domain.SourceReport) bool {
	for _, err := range report {
		if err != nil && !errors.Is(err, domain.ErrCapturePermission) {
			return false
		}
	}
	return true
}

// captureSink routes capture callbacks for one session.
type captureSink struct {
	c   *SessionController
	gen uint64
}

func (s captureSink) Chunk(chunk domain.AudioChunk) {
	s.c.enterSession(s.gen, func(run *sessionRun) { run.mux.Accept(chunk) })
}

func (s captureSink) Failed(source domain.AudioSource, err error) {
	s.c.enterSession(s.gen, func(run *sessionRun) { s.c.handleCaptureFailure(run, source, err) })
}

// sttSink routes STT callbacks for one session.
type sttSink struct {
	c   *SessionController
	gen uint64
}

func (s sttSink) Result(result domain.STTResult) {
	s.c.enterSession(s.gen, func(run *sessionRun) { _ = run.coord.HandleResult(result) })
}

func (s sttSink) Status(state domain.ConnectionState) {
	s.c.enterSession(s.gen, func(run *sessionRun) { run.coord.HandleStatus(state) })
}

func (s sttSink) Error(err error) {
	s.c.enterSession(s.gen, func(run *sessionRun) { run.coord.HandleError(err) })
}

// aiSink routes AI callbacks. Requests outlive sessions only until Stop
// cancels them, after which the orchestrator discards their events.
type aiSink struct {
	c *SessionController
}

func (s aiSink) StreamStart(requestID string) {
	s.c.enter(func() { s.c.orchestrator.HandleStreamStart(requestID) })
}

func (s aiSink) StreamChunk(requestID, data string) {
	s.c.enter(func() { s.c.orchestrator.HandleStreamChunk(requestID, data) })
}

func (s aiSink) StreamEnd(requestID, result string) {
	s.c.enter(func() { s.c.orchestrator.HandleStreamEnd(requestID, result) })
}

func (s aiSink) Error(requestID string, cause error) {
	s.c.enter(func() { s.c.orchestrator.HandleError(requestID, cause) })
}

var (
	_ driven.AudioSink = captureSink{}
	_ driven.STTSink   = sttSink{}
	_ driven.AISink    = aiSink{}
)
