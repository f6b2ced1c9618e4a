package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/parley/internal/core/domain"
	"github.com/custodia-labs/parley/internal/core/ports/driven"
	"github.com/custodia-labs/parley/internal/logger"
)

// AIActionOrchestrator runs AI actions with at most one live request per
// slot. A new request for a busy slot cancels the previous one instead of
// queueing behind it. Events for a request that is no longer live are
// discarded, so chunks from a cancelled request never reach listeners.
type AIActionOrchestrator struct {
	backend    driven.AIBackend
	sink       driven.AISink
	clock      driven.Clock
	timeout    time.Duration
	enter      func(func())
	emit       func(domain.SuggestionEvent)
	onTerminal func(domain.SuggestionRequest)
	log        *logger.Logger

	mu   sync.Mutex
	live map[domain.Slot]*liveRequest
	byID map[string]*liveRequest
}

type liveRequest struct {
	req   *domain.SuggestionRequest
	timer driven.Timer
	gen   uint64
}

// OrchestratorConfig wires an AIActionOrchestrator.
type OrchestratorConfig struct {
	Backend driven.AIBackend
	// Sink is passed to the backend on every Invoke.
	Sink  driven.AISink
	Clock driven.Clock
	// Timeout fails a request with no activity for this long. Zero disables it.
	Timeout time.Duration
	// Enter runs timer callbacks serialized with other core entry points.
	// Defaults to calling the function directly.
	Enter func(func())
	// Emit receives suggestion events. Optional.
	Emit func(domain.SuggestionEvent)
	// OnTerminal observes every request as it leaves its slot. Optional.
	OnTerminal func(domain.SuggestionRequest)
}

// NewAIActionOrchestrator creates an orchestrator with empty slots.
func NewAIActionOrchestrator(cfg OrchestratorConfig) *AIActionOrchestrator {
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}
	if cfg.Enter == nil {
		cfg.Enter = func(f func()) { f() }
	}
	if cfg.Emit == nil {
		cfg.Emit = func(domain.SuggestionEvent) {}
	}
	if cfg.OnTerminal == nil {
		cfg.OnTerminal = func(domain.SuggestionRequest) {}
	}
	return &AIActionOrchestrator{
		backend:    cfg.Backend,
		sink:       cfg.Sink,
		clock:      cfg.Clock,
		timeout:    cfg.Timeout,
		enter:      cfg.Enter,
		emit:       cfg.Emit,
		onTerminal: cfg.OnTerminal,
		log:        logger.For("ai"),
		live:       make(map[domain.Slot]*liveRequest),
		byID:       make(map[string]*liveRequest),
	}
}

// SetTimeout changes the inactivity bound for requests submitted later.
func (o *AIActionOrchestrator) SetTimeout(d time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.timeout = d
}

// Submit starts a request in the action's slot, cancelling any live
// request there. The snapshot is referenced, not copied. A backend that
// refuses the request fails it immediately; the request ID is still
// returned alongside the error.
func (o *AIActionOrchestrator) Submit(
	ctx context.Context,
	action domain.ActionType,
	snapshot *domain.ContextSnapshot,
	metadata map[string]string,
	origin domain.RequestOrigin,
) (string, error) {
	if !action.IsValid() {
		return "", fmt.Errorf("%w: action type %q", domain.ErrUnsupportedType, action)
	}

	now := o.clock.Now()
	req := &domain.SuggestionRequest{
		ID:           newID(),
		ActionType:   action,
		Slot:         action.Slot(),
		Origin:       origin,
		Context:      snapshot,
		Metadata:     copyMetadata(metadata),
		Status:       domain.RequestPending,
		CreatedAt:    now,
		LastActivity: now,
	}

	o.mu.Lock()
	var superseded *domain.SuggestionRequest
	if prev, ok := o.live[req.Slot]; ok {
		superseded = o.finishLocked(prev, domain.RequestCancelled, domain.ErrRequestCancelled)
	}
	lr := &liveRequest{req: req}
	o.live[req.Slot] = lr
	o.byID[req.ID] = lr
	o.armLocked(lr)
	sink := o.sink
	o.mu.Unlock()

	if superseded != nil {
		o.backend.Cancel(superseded.ID)
		o.log.Debug("request %s superseded by %s in %s", superseded.ID, req.ID, req.Slot)
		o.onTerminal(*superseded)
	}

	err := o.backend.Invoke(ctx, driven.InvokeRequest{
		RequestID:  req.ID,
		ActionType: action,
		Context:    snapshot,
		Metadata:   copyMetadata(metadata),
	}, sink)
	if err != nil {
		err = fmt.Errorf("%w: %w", domain.ErrRequestFailed, err)
		o.fail(req.ID, err)
		return req.ID, err
	}
	return req.ID, nil
}

// HandleStreamStart moves a pending request to streaming.
func (o *AIActionOrchestrator) HandleStreamStart(requestID string) bool {
	o.mu.Lock()
	lr, ok := o.byID[requestID]
	if !ok {
		o.mu.Unlock()
		return false
	}
	started := o.startLocked(lr)
	ev := o.eventLocked(lr.req, domain.SuggestionStarted)
	o.mu.Unlock()

	if started {
		o.emit(ev)
	}
	return true
}

// HandleStreamChunk appends a chunk to a live request. Chunks for any
// other request ID are discarded.
func (o *AIActionOrchestrator) HandleStreamChunk(requestID, data string) bool {
	o.mu.Lock()
	lr, ok := o.byID[requestID]
	if !ok {
		o.mu.Unlock()
		o.log.Debug("discarding chunk for %s", requestID)
		return false
	}
	started := o.startLocked(lr)
	startEv := o.eventLocked(lr.req, domain.SuggestionStarted)
	lr.req.Chunks = append(lr.req.Chunks, data)
	ev := o.eventLocked(lr.req, domain.SuggestionChunk)
	ev.Data = data
	o.mu.Unlock()

	if started {
		o.emit(startEv)
	}
	o.emit(ev)
	return true
}

// HandleStreamEnd completes a live request with its result.
func (o *AIActionOrchestrator) HandleStreamEnd(requestID, result string) bool {
	o.mu.Lock()
	lr, ok := o.byID[requestID]
	if !ok {
		o.mu.Unlock()
		return false
	}
	lr.req.Result = result
	if result == "" {
		lr.req.Result = lr.req.Text()
	}
	done := o.finishLocked(lr, domain.RequestCompleted, nil)
	ev := o.eventLocked(done, domain.SuggestionResult)
	ev.Result = done.Result
	o.mu.Unlock()

	o.emit(ev)
	o.onTerminal(*done)
	return true
}

// HandleError fails a live request. Other slots are unaffected.
func (o *AIActionOrchestrator) HandleError(requestID string, cause error) bool {
	if cause == nil {
		cause = domain.ErrRequestFailed
	}
	return o.fail(requestID, fmt.Errorf("%w: %w", domain.ErrRequestFailed, cause))
}

// CancelAll cancels every live request without emitting events.
func (o *AIActionOrchestrator) CancelAll() int {
	o.mu.Lock()
	cancelled := make([]*domain.SuggestionRequest, 0, len(o.live))
	for _, lr := range o.live {
		cancelled = append(cancelled, o.finishLocked(lr, domain.RequestCancelled, domain.ErrRequestCancelled))
	}
	o.mu.Unlock()

	for _, req := range cancelled {
		o.backend.Cancel(req.ID)
		o.onTerminal(*req)
	}
	return len(cancelled)
}

// Live returns a copy of the live request in a slot.
func (o *AIActionOrchestrator) Live(slot domain.Slot) (domain.SuggestionRequest, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	lr, ok := o.live[slot]
	if !ok {
		return domain.SuggestionRequest{}, false
	}
	return cloneRequest(lr.req), true
}

// LiveIDs returns the live request ID per slot.
func (o *AIActionOrchestrator) LiveIDs() map[domain.Slot]string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make(map[domain.Slot]string, len(o.live))
	for slot, lr := range o.live {
		out[slot] = lr.req.ID
	}
	return out
}

func (o *AIActionOrchestrator) fail(requestID string, err error) bool {
	o.mu.Lock()
	lr, ok := o.byID[requestID]
	if !ok {
		o.mu.Unlock()
		return false
	}
	done := o.finishLocked(lr, domain.RequestFailed, err)
	ev := o.eventLocked(done, domain.SuggestionError)
	ev.Err = err
	ev.ErrorKind = domain.KindOf(err)
	o.mu.Unlock()

	o.log.Warn("request %s (%s) failed: %v", done.ID, done.ActionType, err)
	o.emit(ev)
	o.onTerminal(*done)
	return true
}

// handleTimeout fails a request whose timer generation is still current.
func (o *AIActionOrchestrator) handleTimeout(requestID string, gen uint64) {
	o.mu.Lock()
	lr, ok := o.byID[requestID]
	if !ok || lr.gen != gen {
		o.mu.Unlock()
		return
	}
	o.mu.Unlock()

	if o.fail(requestID, fmt.Errorf("%w: %w", domain.ErrRequestFailed, domain.ErrTimeout)) {
		o.backend.Cancel(requestID)
	}
}

// startLocked marks a request streaming. Returns true on the transition.
func (o *AIActionOrchestrator) startLocked(lr *liveRequest) bool {
	lr.req.LastActivity = o.clock.Now()
	o.armLocked(lr)
	if lr.req.Status != domain.RequestPending {
		return false
	}
	lr.req.Status = domain.RequestStreaming
	return true
}

// armLocked (re)starts the inactivity timer.
func (o *AIActionOrchestrator) armLocked(lr *liveRequest) {
	if lr.timer != nil {
		lr.timer.Stop()
		lr.timer = nil
	}
	if o.timeout <= 0 {
		return
	}
	lr.gen++
	gen, id := lr.gen, lr.req.ID
	lr.timer = o.clock.AfterFunc(o.timeout, func() {
		o.enter(func() { o.handleTimeout(id, gen) })
	})
}

// finishLocked moves a request to a terminal status and frees its slot.
func (o *AIActionOrchestrator) finishLocked(lr *liveRequest, status domain.RequestStatus, err error) *domain.SuggestionRequest {
	if lr.timer != nil {
		lr.timer.Stop()
		lr.timer = nil
	}
	lr.gen++
	lr.req.Status = status
	lr.req.Err = err
	lr.req.FinishedAt = o.clock.Now()
	delete(o.byID, lr.req.ID)
	if cur, ok := o.live[lr.req.Slot]; ok && cur == lr {
		delete(o.live, lr.req.Slot)
	}
	done := cloneRequest(lr.req)
	return &done
}

func (o *AIActionOrchestrator) eventLocked(req *domain.SuggestionRequest, kind domain.SuggestionEventKind) domain.SuggestionEvent {
	return domain.SuggestionEvent{
		Kind:       kind,
		RequestID:  req.ID,
		ActionType: req.ActionType,
		Slot:       req.Slot,
		Origin:     req.Origin,
	}
}

func cloneRequest(req *domain.SuggestionRequest) domain.SuggestionRequest {
	out := *req
	out.Chunks = append([]string(nil), req.Chunks...)
	out.Metadata = copyMetadata(req.Metadata)
	return out
}

func copyMetadata(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
