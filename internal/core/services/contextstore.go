package services

import (
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/parley/internal/core/domain"
	"github.com/custodia-labs/parley/internal/core/ports/driven"
	"github.com/custodia-labs/parley/internal/pubsub"
)

// SegmentChange is the notification emitted for every accepted segment.
type SegmentChange struct {
	Segment domain.TranscriptSegment
	// Replaced is true when an earlier revision was replaced in place.
	Replaced bool
}

// Final reports whether the changed segment is final.
func (c SegmentChange) Final() bool {
	return c.Segment.IsFinal
}

// ContextReader is the read-only view of a ContextStore.
type ContextReader interface {
	Snapshot(opts domain.SnapshotOptions) *domain.ContextSnapshot
}

// ContextStore is the append/replace-only store of transcript segments and
// key points. Every write is atomic relative to reads and to Clear.
// Notifications are published after the write has been applied and the
// store's lock released, so handlers may read or write the store.
type ContextStore struct {
	clock driven.Clock

	mu        sync.RWMutex
	segments  []domain.TranscriptSegment
	index     map[string]int
	keyPoints []domain.KeyPoint
	meta      domain.SessionMeta
	inSession bool

	changes *pubsub.Topic[SegmentChange]
	added   *pubsub.Topic[domain.KeyPoint]
}

// Ensure ContextStore implements the reader interface.
var _ ContextReader = (*ContextStore)(nil)

// NewContextStore creates an empty store.
func NewContextStore(clock driven.Clock) *ContextStore {
	if clock == nil {
		clock = SystemClock{}
	}
	return &ContextStore{
		clock:   clock,
		index:   make(map[string]int),
		changes: pubsub.NewTopic[SegmentChange](),
		added:   pubsub.NewTopic[domain.KeyPoint](),
	}
}

// OnChange subscribes to segment changes.
func (s *ContextStore) OnChange(fn func(SegmentChange)) pubsub.Unsubscribe {
	return s.changes.Subscribe(fn)
}

// OnKeyPoint subscribes to key point additions.
func (s *ContextStore) OnKeyPoint(fn func(domain.KeyPoint)) pubsub.Unsubscribe {
	return s.added.Subscribe(fn)
}

// AddSegment stores a segment. A segment whose ID is already present
// replaces the earlier revision at the same position; otherwise it is
// appended. Final segments are immutable: replacing one fails with
// domain.ErrOutOfOrderResult. A final segment's start time is clamped
// between its final neighbours so final segments stay ordered by start.
func (s *ContextStore) AddSegment(seg domain.TranscriptSegment) (SegmentChange, error) {
	if seg.ID == "" {
		return SegmentChange{}, fmt.Errorf("%w: segment id is required", domain.ErrInvalidInput)
	}
	seg = seg.Clone()

	s.mu.Lock()
	pos, exists := s.index[seg.ID]
	if exists && s.segments[pos].IsFinal {
		s.mu.Unlock()
		return SegmentChange{}, fmt.Errorf("%w: segment %s is final", domain.ErrOutOfOrderResult, seg.ID)
	}
	if !exists {
		pos = len(s.segments)
	}
	if seg.IsFinal {
		s.clampFinal(&seg, pos)
	}
	if exists {
		s.segments[pos] = seg
	} else {
		s.index[seg.ID] = pos
		s.segments = append(s.segments, seg)
	}
	s.mu.Unlock()

	change := SegmentChange{Segment: seg.Clone(), Replaced: exists}
	s.changes.Publish(change)
	return change, nil
}

// clampFinal keeps seg.Start within the start times of the nearest final
// segments before and after pos. Caller must hold the write lock.
func (s *ContextStore) clampFinal(seg *domain.TranscriptSegment, pos int) {
	for i := pos - 1; i >= 0; i-- {
		if prev := s.segments[i]; prev.IsFinal {
			if seg.Start.Before(prev.Start) {
				seg.Start = prev.Start
			}
			break
		}
	}
	for i := pos + 1; i < len(s.segments); i++ {
		if next := s.segments[i]; next.IsFinal {
			if seg.Start.After(next.Start) {
				seg.Start = next.Start
			}
			break
		}
	}
	if seg.End != nil && seg.End.Before(seg.Start) {
		end := seg.Start
		seg.End = &end
	}
}

// AddKeyPoint appends a key point with a fresh ID. Duplicate texts are
// kept: each key point may represent a distinct mention.
func (s *ContextStore) AddKeyPoint(text string, metadata map[string]string) domain.KeyPoint {
	return s.AddKeyPointFrom(text, metadata, nil)
}

// AddKeyPointFrom appends a key point derived from the given segments.
func (s *ContextStore) AddKeyPointFrom(text string, metadata map[string]string, segmentIDs []string) domain.KeyPoint {
	kp := domain.KeyPoint{
		ID:               newID(),
		Text:             text,
		Metadata:         metadata,
		CreatedAt:        s.clock.Now(),
		SourceSegmentIDs: segmentIDs,
	}.Clone()
	if kp.SourceSegmentIDs == nil {
		kp.SourceSegmentIDs = []string{}
	}

	s.mu.Lock()
	s.keyPoints = append(s.keyPoints, kp)
	s.mu.Unlock()

	out := kp.Clone()
	s.added.Publish(out.Clone())
	return out
}

// Segment returns a copy of the segment with the given ID.
func (s *ContextStore) Segment(id string) (domain.TranscriptSegment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pos, ok := s.index[id]
	if !ok {
		return domain.TranscriptSegment{}, false
	}
	return s.segments[pos].Clone(), true
}

// Len returns the number of segments and key points.
func (s *ContextStore) Len() (segments, keyPoints int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.segments), len(s.keyPoints)
}

// Snapshot returns a copy-on-read view. Later writes never affect it.
// Filters apply in order: FinalOnly, time window, then LastN.
func (s *ContextStore) Snapshot(opts domain.SnapshotOptions) *domain.ContextSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	segments := make([]domain.TranscriptSegment, 0, len(s.segments))
	for _, seg := range s.segments {
		if opts.FinalOnly && !seg.IsFinal {
			continue
		}
		if !opts.Since.IsZero() && seg.Start.Before(opts.Since) {
			continue
		}
		if !opts.Until.IsZero() && seg.Start.After(opts.Until) {
			continue
		}
		segments = append(segments, seg.Clone())
	}
	if opts.LastN > 0 && len(segments) > opts.LastN {
		segments = segments[len(segments)-opts.LastN:]
	}

	keyPoints := make([]domain.KeyPoint, len(s.keyPoints))
	for i, kp := range s.keyPoints {
		keyPoints[i] = kp.Clone()
	}

	return &domain.ContextSnapshot{
		Segments:  segments,
		KeyPoints: keyPoints,
		Session:   s.meta,
		TakenAt:   s.clock.Now(),
	}
}

// Clear empties segments and key points in one step.
func (s *ContextStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.segments = nil
	s.index = make(map[string]int)
	s.keyPoints = nil
}

// StartSession records the session the context belongs to.
// It is a no-op while a session is already open.
func (s *ContextStore) StartSession(meta domain.SessionMeta) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inSession {
		return
	}
	s.inSession = true
	s.meta = meta
	s.meta.EndedAt = time.Time{}
}

// EndSession stamps the session end. It is a no-op when no session is open.
func (s *ContextStore) EndSession(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.inSession {
		return
	}
	s.inSession = false
	s.meta.EndedAt = at
}
