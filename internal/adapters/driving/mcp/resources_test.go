package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/parley/internal/core/domain"
)

func readRequest(uri string) *mcp.ReadResourceRequest {
	return &mcp.ReadResourceRequest{Params: &mcp.ReadResourceParams{URI: uri}}
}

func TestExtractSegmentID(t *testing.T) {
	tests := []struct {
		name     string
		uri      string
		expected string
	}{
		{
			name:     "valid segment URI",
			uri:      "parley://segments/seg-456",
			expected: "seg-456",
		},
		{
			name:     "invalid prefix",
			uri:      "file://segments/seg-456",
			expected: "",
		},
		{
			name:     "missing ID",
			uri:      "parley://segments/",
			expected: "",
		},
		{
			name:     "empty URI",
			uri:      "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := extractSegmentID(tt.uri)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestServer_handleSnapshotResource(t *testing.T) {
	session := &mockSessionService{snapshot: testSnapshot()}
	server := newTestServer(t, session)

	result, err := server.handleSnapshotResource(context.Background(), readRequest("parley://snapshot"))

	require.NoError(t, err)
	require.Len(t, result.Contents, 1)
	assert.Equal(t, "application/json", result.Contents[0].MIMEType)

	var out SnapshotOutput
	require.NoError(t, json.Unmarshal([]byte(result.Contents[0].Text), &out))
	assert.Equal(t, "sess-1", out.SessionID)
	assert.Len(t, out.Segments, 3)
	assert.Len(t, out.KeyPoints, 1)
}

func TestServer_handleTranscriptResource(t *testing.T) {
	session := &mockSessionService{snapshot: testSnapshot()}
	server := newTestServer(t, session)

	result, err := server.handleTranscriptResource(context.Background(), readRequest("parley://transcript"))

	require.NoError(t, err)
	assert.Equal(t, "Hello world", result.Contents[0].Text)
	assert.True(t, session.lastOpts.FinalOnly)
}

func TestServer_handleSegmentResource(t *testing.T) {
	session := &mockSessionService{snapshot: testSnapshot()}
	server := newTestServer(t, session)

	t.Run("found", func(t *testing.T) {
		result, err := server.handleSegmentResource(context.Background(), readRequest("parley://segments/seg-2"))

		require.NoError(t, err)
		var seg SegmentOutput
		require.NoError(t, json.Unmarshal([]byte(result.Contents[0].Text), &seg))
		assert.Equal(t, "world", seg.Text)
		assert.Equal(t, "system", seg.Source)
	})

	t.Run("unknown segment", func(t *testing.T) {
		_, err := server.handleSegmentResource(context.Background(), readRequest("parley://segments/nope"))
		assert.Error(t, err)
	})

	t.Run("malformed URI", func(t *testing.T) {
		_, err := server.handleSegmentResource(context.Background(), readRequest("parley://other"))
		assert.Error(t, err)
	})
}

func TestNewSnapshotOutput_Nil(t *testing.T) {
	out := NewSnapshotOutput(nil)

	assert.NotNil(t, out.Segments)
	assert.NotNil(t, out.KeyPoints)

	data, err := json.Marshal(NewSnapshotOutput(&domain.ContextSnapshot{}))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"segments":[]`)
}
