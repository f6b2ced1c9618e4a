package domain

import "time"

// TranscriptSegment is one span of transcript text. Interim segments are
// replaced in place by later revisions of the same utterance; final
// segments are immutable.
type TranscriptSegment struct {
	ID           string
	UtteranceKey string
	Text         string
	IsFinal      bool
	Start        time.Time
	// End is nil while the segment is interim.
	End    *time.Time
	Source AudioSource
}

// Clone returns a deep copy of the segment.
func (s TranscriptSegment) Clone() TranscriptSegment {
	if s.End != nil {
		end := *s.End
		s.End = &end
	}
	return s
}

// STTResult is one recognition result reported by the STT provider.
type STTResult struct {
	UtteranceKey string
	Text         string
	IsFinal      bool
	Timestamp    time.Time
	Source       AudioSource
}

// ConnectionState is the link state of a provider.
type ConnectionState string

// Connection states.
const (
	ConnectionConnected    ConnectionState = "connected"
	ConnectionLost         ConnectionState = "connection-lost"
	ConnectionDisconnected ConnectionState = "disconnected"
)
