package sim

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/parley/internal/core/domain"
	"github.com/custodia-labs/parley/internal/core/ports/driven"
)

// Ensure STT implements the interfaces.
var (
	_ driven.STTProvider  = (*STT)(nil)
	_ driven.Credentialed = (*STT)(nil)
)

// STT replays scripted utterances. Every submitted chunk advances the
// current utterance of the chunk's source by one revision; the last
// revision is final. Utterance keys restart from utt-1 on every
// connection, the way real providers reuse keys after a reconnect.
type STT struct {
	mu        sync.Mutex
	queues    map[domain.AudioSource][]*scriptedUtterance
	sink      driven.STTSink
	box       *mailbox
	open      bool
	connected bool
	keySeq    int
	finals    int
	submits   int
	apiKey    string

	disconnectAfter int
	reconnectAfter  time.Duration
}

type scriptedUtterance struct {
	revisions []string
	next      int
	key       string
}

// NewSTT creates an STT simulator for the given utterances.
func NewSTT(utterances []Utterance) *STT {
	s := &STT{queues: make(map[domain.AudioSource][]*scriptedUtterance)}
	for _, u := range utterances {
		src := domain.AudioSource(u.Source)
		s.queues[src] = append(s.queues[src], &scriptedUtterance{
			revisions: append([]string(nil), u.Revisions...),
		})
	}
	return s
}

// DisconnectAfter drops the link once n final results were emitted and
// reconnects after the given delay. A zero delay stays disconnected until
// Reconnect is called.
func (s *STT) DisconnectAfter(n int, reconnectAfter time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disconnectAfter = n
	s.reconnectAfter = reconnectAfter
}

// SetAPIKey records the key. The simulator accepts any key.
func (s *STT) SetAPIKey(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apiKey = key
	return nil
}

// APIKey returns the last key set.
func (s *STT) APIKey() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apiKey
}

// Open starts a recognition stream.
func (s *STT) Open(ctx context.Context, sink driven.STTSink) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open {
		return fmt.Errorf("stream already open")
	}
	s.sink = sink
	s.box = newMailbox()
	s.open = true
	s.connected = true
	s.keySeq = 0
	return nil
}

// Submit emits the next scripted revision for the chunk's source.
func (s *STT) Submit(chunk domain.AudioChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open || !s.connected {
		return domain.ErrProviderDisconnected
	}
	s.submits++

	queue := s.queues[chunk.Source]
	if len(queue) == 0 {
		return nil
	}
	u := queue[0]
	if u.key == "" {
		s.keySeq++
		u.key = fmt.Sprintf("utt-%d", s.keySeq)
	}
	text := u.revisions[u.next]
	u.next++
	final := u.next == len(u.revisions)
	result := domain.STTResult{
		UtteranceKey: u.key,
		Text:         text,
		IsFinal:      final,
		Timestamp:    chunk.CapturedAt,
		Source:       chunk.Source,
	}

	sink := s.sink
	s.box.post(func() { sink.Result(result) })

	if final {
		s.queues[chunk.Source] = queue[1:]
		s.finals++
		if s.disconnectAfter > 0 && s.finals == s.disconnectAfter {
			s.disconnectLocked()
		}
	}
	return nil
}

// Disconnect drops the link.
func (s *STT) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disconnectLocked()
}

func (s *STT) disconnectLocked() {
	if !s.open || !s.connected {
		return
	}
	s.connected = false
	// The core finalizes in-flight interims on disconnect; their remaining
	// revisions are lost with the link.
	for src, queue := range s.queues {
		if len(queue) > 0 && queue[0].next > 0 {
			s.queues[src] = queue[1:]
		}
	}
	sink := s.sink
	s.box.post(func() { sink.Status(domain.ConnectionDisconnected) })
	if s.reconnectAfter > 0 {
		time.AfterFunc(s.reconnectAfter, s.Reconnect)
	}
}

// Reconnect restores the link with a fresh key sequence.
func (s *STT) Reconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open || s.connected {
		return
	}
	s.connected = true
	s.keySeq = 0
	sink := s.sink
	s.box.post(func() { sink.Status(domain.ConnectionConnected) })
}

// Fail reports a provider error without dropping the link.
func (s *STT) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return
	}
	sink := s.sink
	s.box.post(func() { sink.Error(err) })
}

// Close ends the stream and drops undelivered results.
func (s *STT) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return nil
	}
	s.open = false
	s.connected = false
	s.box.close()
	return nil
}

// Done reports whether every scripted utterance reached its final revision.
func (s *STT) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, queue := range s.queues {
		if len(queue) > 0 {
			return false
		}
	}
	return true
}

// Finals returns the number of final results emitted.
func (s *STT) Finals() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finals
}
