package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/parley/internal/core/domain"
)

func TestNewServer(t *testing.T) {
	t.Run("nil session service returns error", func(t *testing.T) {
		ports := &Ports{}
		server, err := NewServer(ports)
		require.Error(t, err)
		assert.Nil(t, server)
		assert.ErrorIs(t, err, ErrMissingSessionService)
	})

	t.Run("nil ports returns error", func(t *testing.T) {
		server, err := NewServer(nil)
		assert.ErrorIs(t, err, ErrMissingSessionService)
		assert.Nil(t, server)
	})

	t.Run("valid ports creates server", func(t *testing.T) {
		ports := &Ports{
			Session: &mockSessionService{},
		}
		server, err := NewServer(ports)
		require.NoError(t, err)
		assert.NotNil(t, server)
	})
}

func TestPorts_Validate(t *testing.T) {
	t.Run("nil session service returns error", func(t *testing.T) {
		ports := &Ports{}
		err := ports.Validate()
		assert.ErrorIs(t, err, ErrMissingSessionService)
	})

	t.Run("session only is valid", func(t *testing.T) {
		ports := &Ports{
			Session: &mockSessionService{},
		}
		err := ports.Validate()
		assert.NoError(t, err)
	})
}

func TestServer_watchNotifiesResources(t *testing.T) {
	events := newTopicEvents()
	server := newTestServer(t, &mockSessionService{events: events})

	var notified []string
	server.notify = func(_ context.Context, uri string) { notified = append(notified, uri) }
	stop := server.watch(context.Background())

	events.transcripts.Publish(domain.TranscriptEvent{Segment: domain.TranscriptSegment{ID: "seg-1"}})
	assert.Equal(t, []string{snapshotURI, "parley://segments/seg-1"}, notified)

	notified = nil
	events.transcripts.Publish(domain.TranscriptEvent{Segment: domain.TranscriptSegment{ID: "seg-1", IsFinal: true}})
	assert.Equal(t, []string{snapshotURI, "parley://segments/seg-1", transcriptURI}, notified)

	notified = nil
	events.keyPoints.Publish(domain.KeyPoint{ID: "kp-1"})
	events.sessions.Publish(domain.SessionEvent{Kind: domain.SessionEventPaused})
	assert.Equal(t, []string{snapshotURI}, notified)

	notified = nil
	events.sessions.Publish(domain.SessionEvent{Kind: domain.SessionEventStarted})
	assert.Equal(t, []string{snapshotURI, transcriptURI}, notified)

	stop()
	notified = nil
	events.transcripts.Publish(domain.TranscriptEvent{Segment: domain.TranscriptSegment{ID: "seg-2"}})
	events.keyPoints.Publish(domain.KeyPoint{ID: "kp-2"})
	assert.Empty(t, notified)
}

func TestServer_handleSubscribe(t *testing.T) {
	server := newTestServer(t, &mockSessionService{})

	tests := []struct {
		uri     string
		wantErr bool
	}{
		{snapshotURI, false},
		{transcriptURI, false},
		{"parley://segments/seg-1", false},
		{"parley://segments/", true},
		{"parley://unknown", true},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			err := server.handleSubscribe(context.Background(), &mcp.SubscribeRequest{
				Params: &mcp.SubscribeParams{URI: tt.uri},
			})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestServer_endSession(t *testing.T) {
	t.Run("running session is stopped", func(t *testing.T) {
		session := &mockSessionService{state: domain.SessionPaused}
		server := newTestServer(t, session)

		server.endSession()
		assert.Equal(t, domain.SessionStopped, session.state)
	})

	t.Run("idle session is left alone", func(t *testing.T) {
		session := &mockSessionService{state: domain.SessionIdle, err: errors.New("should not be called")}
		server := newTestServer(t, session)

		server.endSession()
		assert.Equal(t, domain.SessionIdle, session.state)
	})
}
