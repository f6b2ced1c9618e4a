package mcp

import (
	"time"

	"github.com/custodia-labs/parley/internal/core/domain"
)

// SnapshotOutput is the JSON shape of a context snapshot.
// Times are RFC 3339 strings.
type SnapshotOutput struct {
	SessionID string           `json:"session_id,omitempty"`
	StartedAt string           `json:"started_at,omitempty"`
	EndedAt   string           `json:"ended_at,omitempty"`
	TakenAt   string           `json:"taken_at"`
	Text      string           `json:"text"`
	Segments  []SegmentOutput  `json:"segments"`
	KeyPoints []KeyPointOutput `json:"key_points"`
}

// SegmentOutput represents a single transcript segment.
type SegmentOutput struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	IsFinal bool   `json:"is_final"`
	Source  string `json:"source"`
	Start   string `json:"start"`
	End     string `json:"end,omitempty"`
}

// KeyPointOutput represents a single key point.
type KeyPointOutput struct {
	ID               string            `json:"id"`
	Text             string            `json:"text"`
	Metadata         map[string]string `json:"metadata,omitempty"`
	CreatedAt        string            `json:"created_at"`
	SourceSegmentIDs []string          `json:"source_segment_ids,omitempty"`
}

// NewSnapshotOutput converts a snapshot to its JSON shape.
func NewSnapshotOutput(snap *domain.ContextSnapshot) SnapshotOutput {
	out := SnapshotOutput{
		Segments:  []SegmentOutput{},
		KeyPoints: []KeyPointOutput{},
	}
	if snap == nil {
		return out
	}

	out.SessionID = snap.Session.SessionID
	out.StartedAt = formatTime(snap.Session.StartedAt)
	out.EndedAt = formatTime(snap.Session.EndedAt)
	out.TakenAt = formatTime(snap.TakenAt)
	out.Text = snap.Text()

	for _, seg := range snap.Segments {
		out.Segments = append(out.Segments, newSegmentOutput(seg))
	}
	for _, kp := range snap.KeyPoints {
		out.KeyPoints = append(out.KeyPoints, KeyPointOutput{
			ID:               kp.ID,
			Text:             kp.Text,
			Metadata:         kp.Metadata,
			CreatedAt:        formatTime(kp.CreatedAt),
			SourceSegmentIDs: kp.SourceSegmentIDs,
		})
	}
	return out
}

func newSegmentOutput(seg domain.TranscriptSegment) SegmentOutput {
	out := SegmentOutput{
		ID:      seg.ID,
		Text:    seg.Text,
		IsFinal: seg.IsFinal,
		Source:  seg.Source.String(),
		Start:   formatTime(seg.Start),
	}
	if seg.End != nil {
		out.End = formatTime(*seg.End)
	}
	return out
}

// formatTime renders t as RFC 3339 with milliseconds; the zero time is empty.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}
