package driven

import (
	"context"

	"github.com/custodia-labs/parley/internal/core/domain"
)

// AudioSink receives captured audio from an AudioCaptureProvider.
type AudioSink interface {
	// Chunk delivers one captured chunk.
	Chunk(chunk domain.AudioChunk)

	// Failed reports that capture for a source stopped unexpectedly.
	// Wrap domain.ErrCapturePermission when the OS revoked access.
	Failed(source domain.AudioSource, err error)
}

// AudioCaptureProvider captures audio from the microphone and from the
// system output. Each source is started and stopped independently.
type AudioCaptureProvider interface {
	// Start begins capture for one source, delivering chunks to sink.
	// Starting a running source is a no-op.
	Start(ctx context.Context, source domain.AudioSource, sink AudioSink) error

	// Stop ends capture for one source. Stopping a stopped source is a no-op.
	// Like STTProvider.Close it must not wait for in-flight sink calls.
	Stop(source domain.AudioSource) error
}
