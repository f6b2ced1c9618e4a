package sim

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/custodia-labs/parley/internal/core/domain"
	"github.com/custodia-labs/parley/internal/core/ports/driven"
)

// Ensure Capture implements the interface.
var _ driven.AudioCaptureProvider = (*Capture)(nil)

// Capture emits synthetic 16-bit PCM chunks for each running source on
// its own goroutine, with sequence numbers increasing from 1 per start.
type Capture struct {
	interval   time.Duration
	chunkBytes int

	mu         sync.Mutex
	running    map[domain.AudioSource]*captureRun
	startErrs  map[domain.AudioSource]error
	starts     map[domain.AudioSource]int
	tonePhases map[domain.AudioSource]float64
}

type captureRun struct {
	stop chan struct{}
	sink driven.AudioSink
}

// NewCapture creates a capture simulator. chunkBytes defaults to 640
// (20ms of 16kHz mono).
func NewCapture(interval time.Duration, chunkBytes int) *Capture {
	if interval <= 0 {
		interval = 20 * time.Millisecond
	}
	if chunkBytes <= 0 {
		chunkBytes = 640
	}
	return &Capture{
		interval:   interval,
		chunkBytes: chunkBytes,
		running:    make(map[domain.AudioSource]*captureRun),
		startErrs:  make(map[domain.AudioSource]error),
		starts:     make(map[domain.AudioSource]int),
		tonePhases: map[domain.AudioSource]float64{domain.SourceMic: 0, domain.SourceSystem: math.Pi / 2},
	}
}

// FailStart makes the next starts of a source fail with err until cleared
// with a nil error.
func (c *Capture) FailStart(src domain.AudioSource, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		delete(c.startErrs, src)
		return
	}
	c.startErrs[src] = err
}

// Start begins emitting chunks for a source.
func (c *Capture) Start(_ context.Context, src domain.AudioSource, sink driven.AudioSink) error {
	if !src.IsValid() {
		return fmt.Errorf("%w: audio source %q", domain.ErrUnsupportedType, src)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.startErrs[src]; err != nil {
		return err
	}
	if _, ok := c.running[src]; ok {
		return nil
	}

	run := &captureRun{stop: make(chan struct{}), sink: sink}
	c.running[src] = run
	c.starts[src]++
	go c.emit(src, run)
	return nil
}

// Stop ends emission for a source without waiting for the goroutine.
func (c *Capture) Stop(src domain.AudioSource) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if run, ok := c.running[src]; ok {
		close(run.stop)
		delete(c.running, src)
	}
	return nil
}

// Revoke simulates the OS withdrawing access to a source mid-session.
func (c *Capture) Revoke(src domain.AudioSource) {
	c.mu.Lock()
	run, ok := c.running[src]
	if ok {
		close(run.stop)
		delete(c.running, src)
	}
	c.mu.Unlock()

	if ok {
		go run.sink.Failed(src, fmt.Errorf("%w: %s access revoked", domain.ErrCapturePermission, src))
	}
}

// Running reports whether a source is emitting.
func (c *Capture) Running(src domain.AudioSource) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.running[src]
	return ok
}

// Starts returns how many times a source has been started.
func (c *Capture) Starts(src domain.AudioSource) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.starts[src]
}

func (c *Capture) emit(src domain.AudioSource, run *captureRun) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.mu.Lock()
	phase := c.tonePhases[src]
	c.mu.Unlock()

	var seq uint64
	for {
		select {
		case <-run.stop:
			return
		case now := <-ticker.C:
			seq++
			run.sink.Chunk(domain.AudioChunk{
				Source:     src,
				Sequence:   seq,
				Payload:    tone(c.chunkBytes, seq, phase),
				CapturedAt: now,
			})
		}
	}
}

// tone renders a 440Hz sine at 16kHz whose amplitude swells with seq.
func tone(n int, seq uint64, phase float64) []byte {
	buf := make([]byte, n-n%2)
	amp := 0.2 + 0.6*math.Abs(math.Sin(float64(seq)/10))
	for i := 0; i < len(buf)/2; i++ {
		t := float64(int(seq)*len(buf)/2+i) / 16000
		v := amp * math.Sin(2*math.Pi*440*t+phase)
		binary.LittleEndian.PutUint16(buf[2*i:], uint16(int16(v*math.MaxInt16)))
	}
	return buf
}
