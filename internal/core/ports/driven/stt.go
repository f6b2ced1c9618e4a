package driven

import (
	"context"

	"github.com/custodia-labs/parley/internal/core/domain"
)

// STTSink receives recognition output from an STTProvider.
type STTSink interface {
	// Result delivers an interim or final recognition result.
	Result(result domain.STTResult)

	// Status reports link changes (connected, disconnected).
	Status(state domain.ConnectionState)

	// Error reports a provider failure that did not drop the link.
	Error(err error)
}

// STTProvider streams audio to a speech-to-text service.
// Mic and system audio are independent channels at this boundary.
type STTProvider interface {
	// Open starts a recognition stream reporting to sink.
	Open(ctx context.Context, sink STTSink) error

	// Submit sends one chunk. It must not block on the network.
	Submit(chunk domain.AudioChunk) error

	// Close ends the stream. It must not wait for in-flight sink calls;
	// calls racing with Close are dropped by the core.
	Close() error
}

// Credentialed is implemented by providers that accept an API key at runtime.
type Credentialed interface {
	SetAPIKey(key string) error
}
