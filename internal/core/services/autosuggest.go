package services

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/parley/internal/core/domain"
	"github.com/custodia-labs/parley/internal/core/ports/driven"
	"github.com/custodia-labs/parley/internal/logger"
)

// SubmitFunc hands a suggestion request to the orchestrator.
type SubmitFunc func(action domain.ActionType, snapshot *domain.ContextSnapshot, metadata map[string]string, origin domain.RequestOrigin) (string, error)

// AutoSuggestEngine decides when a suggestion fires without user action.
// It is evaluated synchronously on every context change: a trigger needs
// at least MinNewSegments final segments since the last trigger and at
// least MinInterval since the last trigger. The interval is enforced by a
// single-token limiter read at the injected clock's time, so evaluation
// never depends on wall-clock waits.
type AutoSuggestEngine struct {
	clock  driven.Clock
	submit SubmitFunc
	log    *logger.Logger

	mu         sync.Mutex
	cfg        domain.AutoSuggestConfig
	limiter    *rate.Limiter
	reader     ContextReader
	suppressed bool
	state      triggerState
}

// triggerState is the debounce and rate-limit state.
type triggerState struct {
	lastTrigger          time.Time
	segmentsSinceTrigger int
	triggers             int
}

// NewAutoSuggestEngine creates an engine that submits through submit.
func NewAutoSuggestEngine(cfg domain.AutoSuggestConfig, clock driven.Clock, submit SubmitFunc) *AutoSuggestEngine {
	if clock == nil {
		clock = SystemClock{}
	}
	e := &AutoSuggestEngine{
		clock:  clock,
		submit: submit,
		log:    logger.For("auto-suggest"),
		cfg:    cfg.Clone(),
	}
	e.limiter = e.newLimiter()
	return e
}

// Bind points the engine at the context it reads snapshots from and
// resets the trigger counters.
func (e *AutoSuggestEngine) Bind(reader ContextReader) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reader = reader
	e.state = triggerState{}
	e.suppressed = false
	e.limiter = e.newLimiter()
}

// Suppress stops triggers from firing, for example while paused.
// Final segments still count toward the next trigger.
func (e *AutoSuggestEngine) Suppress(suppressed bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.suppressed = suppressed
}

// Configure replaces the configuration. The time of the last trigger is
// kept, so shortening the interval never allows an early second trigger.
func (e *AutoSuggestEngine) Configure(cfg domain.AutoSuggestConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg = cfg.Clone()
	e.limiter = e.newLimiter()
	return nil
}

// Config returns a copy of the configuration.
func (e *AutoSuggestEngine) Config() domain.AutoSuggestConfig {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg.Clone()
}

// Triggers returns how many times the engine has fired.
func (e *AutoSuggestEngine) Triggers() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.triggers
}

// Pending returns the final segments counted since the last trigger.
func (e *AutoSuggestEngine) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.segmentsSinceTrigger
}

// Observe evaluates one context change. Only final segments count.
// Returns true if the engine fired.
func (e *AutoSuggestEngine) Observe(change SegmentChange) bool {
	if !change.Final() {
		return false
	}

	e.mu.Lock()
	e.state.segmentsSinceTrigger++
	if !e.cfg.Enabled || e.suppressed || e.reader == nil {
		e.mu.Unlock()
		return false
	}
	if e.state.segmentsSinceTrigger < e.cfg.MinNewSegments {
		e.mu.Unlock()
		return false
	}
	now := e.clock.Now()
	if !e.limiter.AllowN(now, 1) {
		e.mu.Unlock()
		return false
	}
	e.state.lastTrigger = now
	e.state.segmentsSinceTrigger = 0
	e.state.triggers++
	actions := append([]domain.ActionType(nil), e.cfg.Actions...)
	metadata := e.cfg.Clone().Options
	reader := e.reader
	e.mu.Unlock()

	snapshot := reader.Snapshot(domain.SnapshotOptions{})
	for _, action := range actions {
		if _, err := e.submit(action, snapshot, metadata, domain.OriginAuto); err != nil {
			e.log.Warn("%s: %v", action, err)
		}
	}
	e.log.Debug("fired %d action(s) at %s", len(actions), now.Format(time.RFC3339Nano))
	return true
}

// newLimiter builds the interval gate, charged with the last trigger so
// the next token is only available MinInterval after it. Caller must hold
// the lock or own the engine exclusively.
func (e *AutoSuggestEngine) newLimiter() *rate.Limiter {
	if e.cfg.MinInterval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	lim := rate.NewLimiter(rate.Every(e.cfg.MinInterval), 1)
	if !e.state.lastTrigger.IsZero() {
		lim.AllowN(e.state.lastTrigger, 1)
	}
	return lim
}
