// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// The session engine is built leaf-first:
//
//   - AudioStreamMux: gates and forwards tagged audio chunks
//   - TranscriptionCoordinator: reconciles STT results into segments
//   - ContextStore: ordered segments and key points, with snapshots
//   - AutoSuggestEngine: decides when suggestions fire on their own
//   - AIActionOrchestrator: one live request per slot, streamed
//   - SessionController: the lifecycle state machine over all of them
//
// Services never block on the network; every suspension point is a call
// to a driven port.
package services
