package domain

import (
	"fmt"
	"time"
)

// AudioSource identifies an audio channel.
type AudioSource string

// Audio sources.
const (
	SourceMic    AudioSource = "mic"
	SourceSystem AudioSource = "system"
)

// AllSources lists every audio source in fan-out order.
var AllSources = []AudioSource{SourceMic, SourceSystem}

// IsValid returns true if the source is recognised.
func (s AudioSource) IsValid() bool {
	return s == SourceMic || s == SourceSystem
}

// String returns the string representation.
func (s AudioSource) String() string {
	return string(s)
}

// ParseAudioSource parses a source name such as "mic" or "system".
func ParseAudioSource(s string) (AudioSource, error) {
	src := AudioSource(s)
	if !src.IsValid() {
		return "", fmt.Errorf("%w: audio source %q", ErrUnsupportedType, s)
	}
	return src, nil
}

// AudioChunk is a slice of captured audio. Sequence is monotonic per source.
type AudioChunk struct {
	Source     AudioSource
	Sequence   uint64
	Payload    []byte
	CapturedAt time.Time
}

// SourceReport is the per-source outcome of a fan-out start or stop.
type SourceReport map[AudioSource]error

// Err returns the first failure in fan-out order, or nil.
func (r SourceReport) Err() error {
	for _, src := range AllSources {
		if err := r[src]; err != nil {
			return fmt.Errorf("%s: %w", src, err)
		}
	}
	return nil
}

// AllFailed returns true if every reported source failed.
func (r SourceReport) AllFailed() bool {
	if len(r) == 0 {
		return false
	}
	for _, err := range r {
		if err == nil {
			return false
		}
	}
	return true
}

// SourceStats holds ingestion counters for one audio source.
type SourceStats struct {
	Running         bool
	Forwarded       uint64
	DroppedStopped  uint64
	DroppedPaused   uint64
	DroppedOutOfSeq uint64
	LastSequence    uint64
	LastLevel       float64
	LastChunkAt     time.Time
}
