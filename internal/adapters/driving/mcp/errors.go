// Package mcp provides an MCP (Model Context Protocol) server adapter for Parley.
// It lets AI assistants drive a live session and read its context.
package mcp

import (
	"errors"
	"fmt"

	"github.com/custodia-labs/parley/internal/core/domain"
)

// ErrMissingSessionService is returned when the session service is not provided.
var ErrMissingSessionService = errors.New("mcp: session service is required")

// toolError tags a core error with its kind so clients can branch on it.
func toolError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", domain.KindOf(err), err)
}
