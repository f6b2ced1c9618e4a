package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/custodia-labs/parley/internal/core/domain"
	"github.com/custodia-labs/parley/internal/core/ports/driven"
	"github.com/custodia-labs/parley/internal/logger"
)

// TranscriptionCoordinator feeds audio to the STT provider and reconciles
// its results into transcript segments. Revisions of one utterance share a
// segment: an interim replaces the previous interim in place, and the
// final replaces the last interim at the same position. Once final, an
// utterance accepts no further results.
//
// Provider keys are namespaced by connection epoch, so keys reused by the
// provider after a reconnect never collide with keys from before it.
type TranscriptionCoordinator struct {
	stt      driven.STTProvider
	store    *ContextStore
	clock    driven.Clock
	onStatus func(domain.StatusEvent)
	log      *logger.Logger

	mu         sync.Mutex
	state      domain.ConnectionState
	epoch      int
	utterances map[string]*utterance
	pending    []string
	dropped    uint64
	late       uint64
	submitErrs uint64
}

type utterance struct {
	segmentID string
	source    domain.AudioSource
	text      string
	final     bool
	start     time.Time
}

// NewTranscriptionCoordinator creates a coordinator writing into store.
// onStatus receives connection changes and provider errors; it may be nil.
func NewTranscriptionCoordinator(
	stt driven.STTProvider,
	store *ContextStore,
	clock driven.Clock,
	onStatus func(domain.StatusEvent),
) *TranscriptionCoordinator {
	if clock == nil {
		clock = SystemClock{}
	}
	if onStatus == nil {
		onStatus = func(domain.StatusEvent) {}
	}
	return &TranscriptionCoordinator{
		stt:        stt,
		store:      store,
		clock:      clock,
		onStatus:   onStatus,
		log:        logger.For("transcription"),
		state:      domain.ConnectionDisconnected,
		utterances: make(map[string]*utterance),
	}
}

// Open starts the provider stream. On failure the coordinator stays in
// connection-lost and the error wraps domain.ErrProviderDisconnected.
func (t *TranscriptionCoordinator) Open(ctx context.Context, sink driven.STTSink) error {
	if err := t.stt.Open(ctx, sink); err != nil {
		t.mu.Lock()
		t.state = domain.ConnectionLost
		t.mu.Unlock()
		err = fmt.Errorf("%w: %w", domain.ErrProviderDisconnected, err)
		t.status(domain.ConnectionLost, err)
		return err
	}

	t.mu.Lock()
	t.state = domain.ConnectionConnected
	t.mu.Unlock()
	t.status(domain.ConnectionConnected, nil)
	return nil
}

// Close ends the provider stream.
func (t *TranscriptionCoordinator) Close() error {
	t.mu.Lock()
	t.state = domain.ConnectionDisconnected
	t.mu.Unlock()
	return t.stt.Close()
}

// Submit sends a chunk to the provider. Chunks are dropped while the link
// is down.
func (t *TranscriptionCoordinator) Submit(chunk domain.AudioChunk) error {
	t.mu.Lock()
	if t.state != domain.ConnectionConnected {
		t.dropped++
		t.mu.Unlock()
		return domain.ErrProviderDisconnected
	}
	t.mu.Unlock()

	if err := t.stt.Submit(chunk); err != nil {
		t.mu.Lock()
		t.submitErrs++
		t.mu.Unlock()
		t.log.Warn("submit %s chunk %d: %v", chunk.Source, chunk.Sequence, err)
		return err
	}
	return nil
}

// HandleResult reconciles one provider result into the context store.
// Results for an utterance that is already final, or results arriving
// while the link is down, are logged and dropped with
// domain.ErrOutOfOrderResult.
func (t *TranscriptionCoordinator) HandleResult(r domain.STTResult) error {
	t.mu.Lock()
	if t.state != domain.ConnectionConnected {
		t.late++
		t.mu.Unlock()
		t.log.Warn("result for %q while %s", r.UtteranceKey, t.State())
		return domain.ErrOutOfOrderResult
	}

	key := t.namespaced(r.UtteranceKey)
	u, ok := t.utterances[key]
	if ok && u.final {
		t.late++
		t.mu.Unlock()
		t.log.Warn("result for final utterance %q dropped", key)
		return fmt.Errorf("%w: utterance %s is final", domain.ErrOutOfOrderResult, key)
	}
	if !ok {
		u = &utterance{segmentID: newID(), source: r.Source, start: r.Timestamp}
		t.utterances[key] = u
		if !r.IsFinal {
			t.pending = append(t.pending, key)
		}
	}
	u.text = r.Text

	seg := domain.TranscriptSegment{
		ID:           u.segmentID,
		UtteranceKey: key,
		Text:         r.Text,
		IsFinal:      r.IsFinal,
		Start:        u.start,
		Source:       u.source,
	}
	if r.IsFinal {
		end := r.Timestamp
		seg.End = &end
		u.final = true
		t.dropPending(key)
	}
	t.mu.Unlock()

	if _, err := t.store.AddSegment(seg); err != nil {
		t.log.Warn("segment %s rejected: %v", seg.ID, err)
		return err
	}
	return nil
}

// HandleStatus tracks the provider link. A disconnect finalizes pending
// interim segments and keeps everything already final; a reconnect opens
// a fresh utterance-key namespace and drops the finalized bookkeeping of
// the old one.
func (t *TranscriptionCoordinator) HandleStatus(state domain.ConnectionState) {
	t.mu.Lock()
	prev := t.state
	switch state {
	case domain.ConnectionConnected:
		if prev == domain.ConnectionConnected {
			t.mu.Unlock()
			return
		}
		t.epoch++
		t.state = domain.ConnectionConnected
		t.pruneLocked()
		t.mu.Unlock()
		t.log.Info("reconnected, epoch %d", t.Epoch())
		t.status(domain.ConnectionConnected, nil)
	default:
		if prev != domain.ConnectionConnected {
			t.mu.Unlock()
			return
		}
		t.state = domain.ConnectionLost
		t.mu.Unlock()
		t.log.Warn("connection lost")
		t.Flush()
		t.status(domain.ConnectionLost, domain.ErrProviderDisconnected)
	}
}

// HandleError reports a provider error without changing the link state.
func (t *TranscriptionCoordinator) HandleError(err error) {
	t.log.Warn("provider error: %v", err)
	t.onStatus(domain.StatusEvent{
		Component: domain.ComponentTranscription,
		State:     "error",
		Message:   err.Error(),
		Err:       err,
		At:        t.clock.Now(),
	})
}

// Flush finalizes every pending interim segment with its latest text,
// best effort. It returns the number of segments finalized.
func (t *TranscriptionCoordinator) Flush() int {
	now := t.clock.Now()

	t.mu.Lock()
	keys := t.pending
	t.pending = nil
	segs := make([]domain.TranscriptSegment, 0, len(keys))
	for _, key := range keys {
		u := t.utterances[key]
		if u == nil || u.final {
			continue
		}
		u.final = true
		end := now
		segs = append(segs, domain.TranscriptSegment{
			ID:           u.segmentID,
			UtteranceKey: key,
			Text:         u.text,
			IsFinal:      true,
			Start:        u.start,
			End:          &end,
			Source:       u.source,
		})
	}
	t.mu.Unlock()

	n := 0
	for _, seg := range segs {
		if _, err := t.store.AddSegment(seg); err != nil {
			if !errors.Is(err, domain.ErrOutOfOrderResult) {
				t.log.Warn("flush %s: %v", seg.ID, err)
			}
			continue
		}
		n++
	}
	return n
}

// State returns the provider link state.
func (t *TranscriptionCoordinator) State() domain.ConnectionState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Epoch returns the current key namespace.
func (t *TranscriptionCoordinator) Epoch() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.epoch
}

// Counters returns dropped chunks and late results.
func (t *TranscriptionCoordinator) Counters() (droppedChunks, lateResults uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dropped + t.submitErrs, t.late
}

// namespaced must be called with the lock held.
func (t *TranscriptionCoordinator) namespaced(key string) string {
	return strconv.Itoa(t.epoch) + ":" + key
}

// pruneLocked forgets final utterances from earlier epochs. Their keys
// can no longer match a result. Must be called with the lock held.
func (t *TranscriptionCoordinator) pruneLocked() {
	for key, u := range t.utterances {
		if u.final {
			delete(t.utterances, key)
		}
	}
}

// dropPending must be called with the lock held.
func (t *TranscriptionCoordinator) dropPending(key string) {
	for i, k := range t.pending {
		if k == key {
			t.pending = append(t.pending[:i], t.pending[i+1:]...)
			return
		}
	}
}

func (t *TranscriptionCoordinator) status(state domain.ConnectionState, err error) {
	ev := domain.StatusEvent{
		Component: domain.ComponentTranscription,
		State:     string(state),
		Err:       err,
		At:        t.clock.Now(),
	}
	if err != nil {
		ev.Message = err.Error()
	}
	t.onStatus(ev)
}
