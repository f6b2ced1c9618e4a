package services

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/parley/internal/core/domain"
	"github.com/custodia-labs/parley/internal/core/ports/driven"
)

// --- Mock implementations of the driven ports ---
//
// The mocks never call a sink from inside a port call. Tests play the
// collaborator by calling the captured sink afterwards, which is exactly
// what an asynchronous provider does.

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

// mockCapture implements driven.AudioCaptureProvider.
type mockCapture struct {
	mu       sync.Mutex
	sinks    map[domain.AudioSource]driven.AudioSink
	startErr map[domain.AudioSource]error
	stopErr  error
	starts   map[domain.AudioSource]int
	stops    map[domain.AudioSource]int
}

var _ driven.AudioCaptureProvider = (*mockCapture)(nil)

func newMockCapture() *mockCapture {
	return &mockCapture{
		sinks:    make(map[domain.AudioSource]driven.AudioSink),
		startErr: make(map[domain.AudioSource]error),
		starts:   make(map[domain.AudioSource]int),
		stops:    make(map[domain.AudioSource]int),
	}
}

func (m *mockCapture) Start(_ context.Context, src domain.AudioSource, sink driven.AudioSink) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.startErr[src]; err != nil {
		return err
	}
	m.starts[src]++
	m.sinks[src] = sink
	return nil
}

func (m *mockCapture) Stop(src domain.AudioSource) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stops[src]++
	return m.stopErr
}

func (m *mockCapture) sink(src domain.AudioSource) driven.AudioSink {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sinks[src]
}

func (m *mockCapture) startCount(src domain.AudioSource) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.starts[src]
}

func (m *mockCapture) stopCount(src domain.AudioSource) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stops[src]
}

// mockSTT implements driven.STTProvider and driven.Credentialed.
type mockSTT struct {
	mu        sync.Mutex
	sink      driven.STTSink
	openErr   error
	submitErr error
	submitted []domain.AudioChunk
	opens     int
	closes    int
	apiKey    string
}

var (
	_ driven.STTProvider  = (*mockSTT)(nil)
	_ driven.Credentialed = (*mockSTT)(nil)
)

func (m *mockSTT) Open(_ context.Context, sink driven.STTSink) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opens++
	if m.openErr != nil {
		return m.openErr
	}
	m.sink = sink
	return nil
}

func (m *mockSTT) Submit(chunk domain.AudioChunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.submitErr != nil {
		return m.submitErr
	}
	m.submitted = append(m.submitted, chunk)
	return nil
}

func (m *mockSTT) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closes++
	return nil
}

func (m *mockSTT) SetAPIKey(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.apiKey = key
	return nil
}

func (m *mockSTT) currentSink() driven.STTSink {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sink
}

func (m *mockSTT) submittedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.submitted)
}

// mockAI implements driven.AIBackend.
type mockAI struct {
	mu        sync.Mutex
	sink      driven.AISink
	invokeErr error
	invoked   []driven.InvokeRequest
	cancelled []string
}

var _ driven.AIBackend = (*mockAI)(nil)

func (m *mockAI) Invoke(_ context.Context, req driven.InvokeRequest, sink driven.AISink) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invoked = append(m.invoked, req)
	m.sink = sink
	return m.invokeErr
}

func (m *mockAI) Cancel(requestID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelled = append(m.cancelled, requestID)
}

func (m *mockAI) currentSink() driven.AISink {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sink
}

func (m *mockAI) invocations() []driven.InvokeRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]driven.InvokeRequest(nil), m.invoked...)
}

func (m *mockAI) cancelledIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.cancelled...)
}

// eventLog collects emitted events.
type eventLog[T any] struct {
	mu     sync.Mutex
	events []T
}

func (l *eventLog[T]) add(ev T) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog[T]) all() []T {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]T(nil), l.events...)
}

func (l *eventLog[T]) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

func finalSeg(id, text string, start time.Time) domain.TranscriptSegment {
	end := start.Add(time.Second)
	return domain.TranscriptSegment{ID: id, UtteranceKey: id, Text: text, IsFinal: true, Start: start, End: &end, Source: domain.SourceMic}
}

func interimSeg(id, text string, start time.Time) domain.TranscriptSegment {
	return domain.TranscriptSegment{ID: id, UtteranceKey: id, Text: text, Start: start, Source: domain.SourceMic}
}
