package mcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/parley/internal/core/domain"
	"github.com/custodia-labs/parley/internal/logger"
)

// Version is the MCP server version.
const Version = "0.1.0"

const instructions = `Parley follows a live meeting. Start a session with session_start,
read the transcript through the parley://snapshot and parley://transcript
resources (subscribe to be told when they change), and ask for suggestions
with trigger_action. Results stream to the session, not to the tool call.`

// Server is the MCP server for Parley.
type Server struct {
	ports  *Ports
	server *mcp.Server
	log    *logger.Logger

	// notify reports a changed resource URI to subscribed clients.
	notify func(ctx context.Context, uri string)
}

// NewServer creates a new MCP server with the given ports.
func NewServer(ports *Ports) (*Server, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("validating ports: %w", err)
	}

	impl := &mcp.Implementation{
		Name:    "parley",
		Version: Version,
	}

	s := &Server{
		ports: ports,
		log:   logger.For("mcp"),
	}
	s.server = mcp.NewServer(impl, &mcp.ServerOptions{
		Instructions:       instructions,
		SubscribeHandler:   s.handleSubscribe,
		UnsubscribeHandler: func(context.Context, *mcp.UnsubscribeRequest) error { return nil },
	})
	s.notify = func(ctx context.Context, uri string) {
		if err := s.server.ResourceUpdated(ctx, &mcp.ResourceUpdatedNotificationParams{URI: uri}); err != nil {
			s.log.Debug("resource update %s: %v", uri, err)
		}
	}

	s.registerTools()
	s.registerResources()

	return s, nil
}

// Run starts the MCP server over stdio.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) Run(ctx context.Context) error {
	defer s.watch(ctx)()
	defer s.endSession()
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// RunHTTP starts the MCP server over HTTP on the specified address.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) RunHTTP(ctx context.Context, addr string) error {
	defer s.watch(ctx)()
	defer s.endSession()

	handler := mcp.NewStreamableHTTPHandler(func(_ *http.Request) *mcp.Server {
		return s.server
	}, nil)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown when context is cancelled
	go func() {
		<-ctx.Done()
		httpServer.Shutdown(context.Background()) //nolint:errcheck
	}()

	err := httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// handleSubscribe accepts subscriptions to the fixed resources and to
// segment URIs.
func (s *Server) handleSubscribe(_ context.Context, req *mcp.SubscribeRequest) error {
	switch uri := req.Params.URI; {
	case uri == snapshotURI, uri == transcriptURI:
		return nil
	case extractSegmentID(uri) != "":
		return nil
	default:
		return mcp.ResourceNotFoundError(uri)
	}
}

// watch turns core events into resource update notifications until the
// returned function is called.
func (s *Server) watch(ctx context.Context) func() {
	events := s.ports.Session.Events()
	unsubs := []func(){
		events.OnTranscript(func(ev domain.TranscriptEvent) {
			s.notify(ctx, snapshotURI)
			s.notify(ctx, segmentURIPrefix+ev.Segment.ID)
			if ev.Segment.IsFinal {
				s.notify(ctx, transcriptURI)
			}
		}),
		events.OnKeyPoint(func(domain.KeyPoint) {
			s.notify(ctx, snapshotURI)
		}),
		events.OnSession(func(ev domain.SessionEvent) {
			if ev.Kind == domain.SessionEventStarted {
				s.notify(ctx, snapshotURI)
				s.notify(ctx, transcriptURI)
			}
		}),
	}
	return func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}
}

// endSession stops a session left running when the client goes away, so
// capture does not outlive the server.
func (s *Server) endSession() {
	if !s.ports.Session.State().IsRunning() {
		return
	}
	if _, err := s.ports.Session.Stop(context.Background()); err != nil {
		s.log.Warn("stopping session on shutdown: %v", err)
	}
}
