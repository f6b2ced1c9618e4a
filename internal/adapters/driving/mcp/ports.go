package mcp

import (
	"github.com/custodia-labs/parley/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Session runs the live meeting session.
	Session driving.SessionService
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p == nil || p.Session == nil {
		return ErrMissingSessionService
	}
	return nil
}
