package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/parley/internal/core/domain"
)

const (
	// URIScheme is the custom URI scheme for Parley resources.
	uriScheme = "parley://"

	snapshotURI      = uriScheme + "snapshot"
	transcriptURI    = uriScheme + "transcript"
	segmentURIPrefix = uriScheme + "segments/"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         snapshotURI,
		Name:        "snapshot",
		Description: "Transcript segments and key points of the current or last session",
		MIMEType:    "application/json",
	}, s.handleSnapshotResource)

	s.server.AddResource(&mcp.Resource{
		URI:         transcriptURI,
		Name:        "transcript",
		Description: "Final transcript text of the current or last session",
		MIMEType:    "text/plain",
	}, s.handleTranscriptResource)

	// Template for a single segment.
	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: segmentURIPrefix + "{segmentId}",
		Name:        "segment",
		Description: "A single transcript segment",
		MIMEType:    "application/json",
	}, s.handleSegmentResource)
}

// handleSnapshotResource returns the full context snapshot.
func (s *Server) handleSnapshotResource(
	_ context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	snap := s.ports.Session.Snapshot(domain.SnapshotOptions{})

	data, err := json.MarshalIndent(NewSnapshotOutput(snap), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling snapshot: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// handleTranscriptResource returns the final transcript as plain text.
func (s *Server) handleTranscriptResource(
	_ context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	snap := s.ports.Session.Snapshot(domain.SnapshotOptions{FinalOnly: true})

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "text/plain",
			Text:     snap.Text(),
		}},
	}, nil
}

// handleSegmentResource returns one segment by ID.
func (s *Server) handleSegmentResource(
	_ context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	// Extract segmentId from URI: parley://segments/{segmentId}
	segID := extractSegmentID(req.Params.URI)
	if segID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	snap := s.ports.Session.Snapshot(domain.SnapshotOptions{})
	for _, seg := range snap.Segments {
		if seg.ID != segID {
			continue
		}
		data, err := json.MarshalIndent(newSegmentOutput(seg), "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshalling segment: %w", err)
		}
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(data),
			}},
		}, nil
	}
	return nil, mcp.ResourceNotFoundError(req.Params.URI)
}

// extractSegmentID extracts the segment ID from a URI like parley://segments/{segmentId}.
func extractSegmentID(uri string) string {
	if !strings.HasPrefix(uri, segmentURIPrefix) {
		return ""
	}

	return strings.TrimPrefix(uri, segmentURIPrefix)
}
