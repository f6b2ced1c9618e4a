// Package domain defines the core business entities for Parley.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Session: A single live meeting, from start to stop
//   - AudioChunk: A tagged slice of captured audio
//   - TranscriptSegment: One interim or final span of transcript text
//   - KeyPoint: A noteworthy item extracted from, or added to, the context
//   - ContextSnapshot: An immutable point-in-time view of the context
//   - SuggestionRequest: One AI action and its streamed response
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
