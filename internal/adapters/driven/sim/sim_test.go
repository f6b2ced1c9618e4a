package sim

import (
	"sync"

	"github.com/custodia-labs/parley/internal/core/domain"
	"github.com/custodia-labs/parley/internal/core/ports/driven"
)

// recordingSink implements every sink port and records what it receives.
type recordingSink struct {
	mu       sync.Mutex
	chunks   []domain.AudioChunk
	failures map[domain.AudioSource]error
	results  []domain.STTResult
	statuses []domain.ConnectionState
	errs     []error
	ai       []string
}

var (
	_ driven.AudioSink = (*recordingSink)(nil)
	_ driven.STTSink   = (*recordingSink)(nil)
	_ driven.AISink    = aiSink{}
)

func newRecordingSink() *recordingSink {
	return &recordingSink{failures: make(map[domain.AudioSource]error)}
}

func (r *recordingSink) Chunk(c domain.AudioChunk) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chunks = append(r.chunks, c)
}

func (r *recordingSink) Failed(src domain.AudioSource, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[src] = err
}

func (r *recordingSink) Result(res domain.STTResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
}

func (r *recordingSink) Status(s domain.ConnectionState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, s)
}

func (r *recordingSink) Error(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

// aiSink adapts recordingSink to driven.AISink, whose Error method takes a
// request ID and so cannot share a method set with driven.STTSink.
type aiSink struct{ *recordingSink }

func (a aiSink) Error(_ string, err error) { a.recordingSink.Error(err) }

func (r *recordingSink) StreamStart(id string) { r.recordAI("start:" + id) }

func (r *recordingSink) StreamChunk(id, data string) { r.recordAI("chunk:" + id + ":" + data) }

func (r *recordingSink) StreamEnd(id, result string) { r.recordAI("end:" + id + ":" + result) }

func (r *recordingSink) recordAI(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ai = append(r.ai, s)
}

func (r *recordingSink) chunkCount(src domain.AudioSource) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.chunks {
		if c.Source == src {
			n++
		}
	}
	return n
}

func (r *recordingSink) snapshot() (results []domain.STTResult, statuses []domain.ConnectionState, ai []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.STTResult(nil), r.results...),
		append([]domain.ConnectionState(nil), r.statuses...),
		append([]string(nil), r.ai...)
}
