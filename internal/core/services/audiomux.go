package services

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/custodia-labs/parley/internal/core/domain"
	"github.com/custodia-labs/parley/internal/core/ports/driven"
	"github.com/custodia-labs/parley/internal/logger"
)

// AudioStreamMux merges mic and system chunks into one ingestion stream.
// Order is preserved per source; nothing is promised between sources.
// Chunks for a stopped source, chunks while paused, and chunks that do not
// advance their source's sequence number within the current run are
// dropped and counted. Counters accumulate across restarts.
type AudioStreamMux struct {
	capture       driven.AudioCaptureProvider
	sink          driven.AudioSink
	forward       func(domain.AudioChunk)
	onLevel       func(domain.AudioLevelEvent)
	clock         driven.Clock
	levelInterval time.Duration
	log           *logger.Logger

	mu      sync.Mutex
	paused  bool
	sources map[domain.AudioSource]*sourceState
}

type sourceState struct {
	stats       domain.SourceStats
	lastLevelAt time.Time
	// sequenced is set once a chunk was forwarded in the current run.
	// Providers may restart numbering on every start.
	sequenced bool
}

// MuxConfig wires an AudioStreamMux.
type MuxConfig struct {
	Capture driven.AudioCaptureProvider
	// Sink is handed to the capture provider when a source starts.
	Sink driven.AudioSink
	// Forward receives every accepted chunk.
	Forward func(domain.AudioChunk)
	// OnLevel receives level meter ticks. Optional.
	OnLevel       func(domain.AudioLevelEvent)
	Clock         driven.Clock
	LevelInterval time.Duration
}

// NewAudioStreamMux creates a mux with both sources stopped.
func NewAudioStreamMux(cfg MuxConfig) *AudioStreamMux {
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}
	m := &AudioStreamMux{
		capture:       cfg.Capture,
		sink:          cfg.Sink,
		forward:       cfg.Forward,
		onLevel:       cfg.OnLevel,
		clock:         cfg.Clock,
		levelInterval: cfg.LevelInterval,
		log:           logger.For("audio"),
		sources:       make(map[domain.AudioSource]*sourceState, len(domain.AllSources)),
	}
	for _, src := range domain.AllSources {
		m.sources[src] = &sourceState{}
	}
	return m
}

// StartMic starts microphone capture.
func (m *AudioStreamMux) StartMic(ctx context.Context) error {
	return m.Start(ctx, domain.SourceMic)
}

// StopMic stops microphone capture.
func (m *AudioStreamMux) StopMic() error {
	return m.Stop(domain.SourceMic)
}

// StartSystem starts system audio capture.
func (m *AudioStreamMux) StartSystem(ctx context.Context) error {
	return m.Start(ctx, domain.SourceSystem)
}

// StopSystem stops system audio capture.
func (m *AudioStreamMux) StopSystem() error {
	return m.Stop(domain.SourceSystem)
}

// Start begins capture for one source. Starting a running source is a no-op.
func (m *AudioStreamMux) Start(ctx context.Context, src domain.AudioSource) error {
	if !src.IsValid() {
		return fmt.Errorf("%w: audio source %q", domain.ErrUnsupportedType, src)
	}

	m.mu.Lock()
	running := m.sources[src].stats.Running
	m.mu.Unlock()
	if running {
		return nil
	}

	if err := m.capture.Start(ctx, src, m.sink); err != nil {
		return fmt.Errorf("starting %s capture: %w", src, err)
	}

	m.mu.Lock()
	st := m.sources[src]
	st.stats.Running = true
	st.sequenced = false
	m.mu.Unlock()
	m.log.Debug("%s capture started", src)
	return nil
}

// Stop ends capture for one source. The source is marked stopped even if
// the provider reports an error, so later chunks are dropped.
func (m *AudioStreamMux) Stop(src domain.AudioSource) error {
	if !src.IsValid() {
		return fmt.Errorf("%w: audio source %q", domain.ErrUnsupportedType, src)
	}

	m.mu.Lock()
	st := m.sources[src]
	running := st.stats.Running
	st.stats.Running = false
	m.mu.Unlock()
	if !running {
		return nil
	}

	if err := m.capture.Stop(src); err != nil {
		return fmt.Errorf("stopping %s capture: %w", src, err)
	}
	m.log.Debug("%s capture stopped", src)
	return nil
}

// StartAll starts every source. A failing source does not prevent the
// others from starting; each outcome is reported.
func (m *AudioStreamMux) StartAll(ctx context.Context) domain.SourceReport {
	report := make(domain.SourceReport, len(domain.AllSources))
	for _, src := range domain.AllSources {
		report[src] = m.Start(ctx, src)
	}
	return report
}

// StopAll stops every source, best effort.
func (m *AudioStreamMux) StopAll() domain.SourceReport {
	report := make(domain.SourceReport, len(domain.AllSources))
	for _, src := range domain.AllSources {
		report[src] = m.Stop(src)
	}
	return report
}

// MarkStopped records that capture for a source ended on the provider side.
func (m *AudioStreamMux) MarkStopped(src domain.AudioSource) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok := m.sources[src]; ok {
		st.stats.Running = false
	}
}

// SetPaused toggles dropping of chunks for all sources.
func (m *AudioStreamMux) SetPaused(paused bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused = paused
}

// AnyRunning returns true if at least one source is capturing.
func (m *AudioStreamMux) AnyRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, st := range m.sources {
		if st.stats.Running {
			return true
		}
	}
	return false
}

// Accept forwards a chunk, unmodified, if its source is running and the
// mux is not paused. Returns whether the chunk was forwarded.
func (m *AudioStreamMux) Accept(chunk domain.AudioChunk) bool {
	m.mu.Lock()
	st, ok := m.sources[chunk.Source]
	if !ok {
		m.mu.Unlock()
		m.log.Warn("dropping chunk from unknown source %q", chunk.Source)
		return false
	}

	switch {
	case !st.stats.Running:
		st.stats.DroppedStopped++
		m.mu.Unlock()
		return false
	case m.paused:
		st.stats.DroppedPaused++
		m.mu.Unlock()
		return false
	case st.sequenced && chunk.Sequence <= st.stats.LastSequence:
		st.stats.DroppedOutOfSeq++
		m.mu.Unlock()
		m.log.Debug("dropping %s chunk %d after %d", chunk.Source, chunk.Sequence, st.stats.LastSequence)
		return false
	}

	now := m.clock.Now()
	level := pcmLevel(chunk.Payload)
	st.stats.Forwarded++
	st.sequenced = true
	st.stats.LastSequence = chunk.Sequence
	st.stats.LastLevel = level
	st.stats.LastChunkAt = now

	tick := m.onLevel != nil && (st.lastLevelAt.IsZero() || now.Sub(st.lastLevelAt) >= m.levelInterval)
	if tick {
		st.lastLevelAt = now
	}
	m.mu.Unlock()

	if m.forward != nil {
		m.forward(chunk)
	}
	if tick {
		m.onLevel(domain.AudioLevelEvent{Source: chunk.Source, Level: level, At: now})
	}
	return true
}

// Stats returns a copy of the per-source counters.
func (m *AudioStreamMux) Stats() map[domain.AudioSource]domain.SourceStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[domain.AudioSource]domain.SourceStats, len(m.sources))
	for src, st := range m.sources {
		out[src] = st.stats
	}
	return out
}

// pcmLevel returns the RMS of 16-bit little-endian PCM, scaled to [0, 1].
func pcmLevel(payload []byte) float64 {
	n := len(payload) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		v := float64(int16(binary.LittleEndian.Uint16(payload[2*i:]))) / 32768
		sum += v * v
	}
	return math.Min(1, math.Sqrt(sum/float64(n)))
}
