package domain

import "time"

// KeyPoint is a noteworthy item in the meeting context. Key points are
// append-only and never mutated after creation.
type KeyPoint struct {
	ID               string
	Text             string
	Metadata         map[string]string
	CreatedAt        time.Time
	SourceSegmentIDs []string
}

// Clone returns a deep copy of the key point.
func (k KeyPoint) Clone() KeyPoint {
	if k.Metadata != nil {
		meta := make(map[string]string, len(k.Metadata))
		for key, v := range k.Metadata {
			meta[key] = v
		}
		k.Metadata = meta
	}
	if k.SourceSegmentIDs != nil {
		ids := make([]string, len(k.SourceSegmentIDs))
		copy(ids, k.SourceSegmentIDs)
		k.SourceSegmentIDs = ids
	}
	return k
}

// SessionMeta describes the session a snapshot was taken in.
type SessionMeta struct {
	SessionID string
	StartedAt time.Time
	EndedAt   time.Time
}

// SnapshotOptions restricts what a snapshot contains.
// Zero values mean no restriction.
type SnapshotOptions struct {
	// LastN keeps only the last N segments.
	LastN int
	// Since drops segments that started before this time.
	Since time.Time
	// Until drops segments that started after this time.
	Until time.Time
	// FinalOnly drops interim segments.
	FinalOnly bool
}

// ContextSnapshot is an immutable point-in-time view of the context store.
// It never reflects mutations made after it was taken.
type ContextSnapshot struct {
	Segments  []TranscriptSegment
	KeyPoints []KeyPoint
	Session   SessionMeta
	TakenAt   time.Time
}

// FinalSegments returns the final segments in transcript order.
func (c *ContextSnapshot) FinalSegments() []TranscriptSegment {
	if c == nil {
		return nil
	}
	out := make([]TranscriptSegment, 0, len(c.Segments))
	for _, seg := range c.Segments {
		if seg.IsFinal {
			out = append(out, seg)
		}
	}
	return out
}

// Text joins final segment text with single spaces.
func (c *ContextSnapshot) Text() string {
	var n int
	finals := c.FinalSegments()
	for _, seg := range finals {
		n += len(seg.Text) + 1
	}
	buf := make([]byte, 0, n)
	for i, seg := range finals {
		if i > 0 {
			buf = append(buf, ' ')
		}
		buf = append(buf, seg.Text...)
	}
	return string(buf)
}
