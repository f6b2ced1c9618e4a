// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Collaborators
//
//   - AudioCaptureProvider: Captures mic and system audio, per source
//   - STTProvider: Streams audio chunks to a speech-to-text service
//   - AIBackend: Runs AI actions and streams their responses
//   - Clock: Time source and timers, replaceable in tests
//   - ConfigStore: Application configuration
//   - PromptStore: Prompt templates per AI action
//   - Credentialed: Optional, for providers that accept an API key
//
// # Event Delivery
//
// Collaborators report events through the sink passed to them. Sinks must
// be called asynchronously: an implementation must never call its sink
// from inside a method the core invoked on it. Sinks are bound to one
// session; events sent to a sink after its session stopped are dropped.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or service package
package driven
