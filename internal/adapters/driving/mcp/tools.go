package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/parley/internal/core/domain"
)

// EmptyInput is the input schema for tools without arguments.
type EmptyInput struct{}

// StateOutput is the output schema for tools that report the session state.
type StateOutput struct {
	State     string `json:"state"`
	SessionID string `json:"session_id,omitempty"`
}

// StatusOutput is the output schema for the get_state tool.
type StatusOutput struct {
	State         string            `json:"state"`
	SessionID     string            `json:"session_id,omitempty"`
	STT           string            `json:"stt"`
	Segments      int               `json:"segments"`
	KeyPoints     int               `json:"key_points"`
	ChunksDropped uint64            `json:"chunks_dropped"`
	LateResults   uint64            `json:"late_results"`
	AutoTriggers  int               `json:"auto_triggers"`
	LiveRequests  map[string]string `json:"live_requests,omitempty"`
	AutoSuggest   AutoSuggestOutput `json:"auto_suggest"`
}

// PauseInput is the input schema for the session_pause tool.
type PauseInput struct {
	Mode string `json:"mode,omitempty" jsonschema:"toggle (default), pause or resume"`
}

// SnapshotInput is the input schema for the get_snapshot tool.
type SnapshotInput struct {
	LastN     int  `json:"last_n,omitempty" jsonschema:"keep only the last N segments (default all)"`
	FinalOnly bool `json:"final_only,omitempty" jsonschema:"drop interim segments"`
}

// KeyPointInput is the input schema for the add_key_point tool.
type KeyPointInput struct {
	Text     string            `json:"text" jsonschema:"the key point to remember"`
	Metadata map[string]string `json:"metadata,omitempty" jsonschema:"optional labels"`
}

// KeyPointResult is the output schema for the add_key_point tool.
type KeyPointResult struct {
	ID string `json:"id"`
}

// ClearOutput is the output schema for the clear_context tool.
type ClearOutput struct {
	Cleared bool `json:"cleared"`
}

// TriggerInput is the input schema for the trigger_action tool.
type TriggerInput struct {
	Action   string            `json:"action" jsonschema:"talking-point, follow-up-action or custom"`
	Metadata map[string]string `json:"metadata,omitempty" jsonschema:"request metadata, such as a custom prompt"`
}

// TriggerOutput is the output schema for the trigger_action tool.
type TriggerOutput struct {
	RequestID string `json:"request_id"`
	Slot      string `json:"slot"`
}

// AutoSuggestInput is the input schema for the set_auto_suggest tool.
// Unset fields keep their current value.
type AutoSuggestInput struct {
	Enabled        bool     `json:"enabled" jsonschema:"turn auto-suggest on or off"`
	MinIntervalMS  *int64   `json:"min_interval_ms,omitempty" jsonschema:"minimum milliseconds between triggers"`
	MinNewSegments *int     `json:"min_new_segments,omitempty" jsonschema:"final segments needed per trigger"`
	Actions        []string `json:"actions,omitempty" jsonschema:"action types submitted on each trigger"`
}

// AutoSuggestOutput describes the auto-suggest configuration.
type AutoSuggestOutput struct {
	Enabled        bool     `json:"enabled"`
	MinIntervalMS  int64    `json:"min_interval_ms"`
	MinNewSegments int      `json:"min_new_segments"`
	Actions        []string `json:"actions"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "session_start",
		Description: "Start a new meeting session with an empty context",
	}, s.handleStart)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "session_stop",
		Description: "Stop the running session, finalizing pending transcript",
	}, s.handleStop)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "session_pause",
		Description: "Pause or resume audio ingestion for the running session",
	}, s.handlePause)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_state",
		Description: "Report the session state and ingestion counters",
	}, s.handleGetState)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_snapshot",
		Description: "Read the transcript and key points of the current or last session",
	}, s.handleGetSnapshot)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "add_key_point",
		Description: "Add a key point to the meeting context",
	}, s.handleAddKeyPoint)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "clear_context",
		Description: "Remove all transcript segments and key points",
	}, s.handleClearContext)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "trigger_action",
		Description: "Ask the AI backend for a suggestion based on the live context",
	}, s.handleTriggerAction)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "set_auto_suggest",
		Description: "Configure automatic suggestions",
	}, s.handleSetAutoSuggest)
}

func (s *Server) handleStart(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ EmptyInput,
) (*mcp.CallToolResult, StateOutput, error) {
	id, err := s.ports.Session.Start(ctx)
	if err != nil {
		return nil, StateOutput{}, toolError(err)
	}
	return nil, StateOutput{State: s.ports.Session.State().String(), SessionID: id}, nil
}

func (s *Server) handleStop(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ EmptyInput,
) (*mcp.CallToolResult, StateOutput, error) {
	state, err := s.ports.Session.Stop(ctx)
	if err != nil {
		return nil, StateOutput{}, toolError(err)
	}
	out := StateOutput{State: state.String()}
	if sess, ok := s.ports.Session.Session(); ok {
		out.SessionID = sess.ID
	}
	return nil, out, nil
}

func (s *Server) handlePause(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input PauseInput,
) (*mcp.CallToolResult, StateOutput, error) {
	var (
		state domain.SessionState
		err   error
	)
	switch input.Mode {
	case "", "toggle":
		state, err = s.ports.Session.TogglePause()
	case "pause":
		state, err = s.ports.Session.Pause()
	case "resume":
		state, err = s.ports.Session.Resume()
	default:
		return nil, StateOutput{}, toolError(fmt.Errorf("%w: pause mode %q", domain.ErrInvalidInput, input.Mode))
	}
	if err != nil {
		return nil, StateOutput{}, toolError(err)
	}
	return nil, StateOutput{State: state.String()}, nil
}

func (s *Server) handleGetState(
	_ context.Context,
	_ *mcp.CallToolRequest,
	_ EmptyInput,
) (*mcp.CallToolResult, StatusOutput, error) {
	d := s.ports.Session.Diagnostics()
	out := StatusOutput{
		State:         d.State.String(),
		SessionID:     d.SessionID,
		STT:           string(d.STT),
		Segments:      d.Segments,
		KeyPoints:     d.KeyPoints,
		ChunksDropped: d.ChunksDropped,
		LateResults:   d.LateResults,
		AutoTriggers:  d.AutoTriggers,
		AutoSuggest:   newAutoSuggestOutput(s.ports.Session.AutoSuggestConfig()),
	}
	if len(d.LiveRequests) > 0 {
		out.LiveRequests = make(map[string]string, len(d.LiveRequests))
		for slot, id := range d.LiveRequests {
			out.LiveRequests[string(slot)] = id
		}
	}
	return nil, out, nil
}

func (s *Server) handleGetSnapshot(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input SnapshotInput,
) (*mcp.CallToolResult, SnapshotOutput, error) {
	if input.LastN < 0 {
		return nil, SnapshotOutput{}, toolError(fmt.Errorf("%w: last_n must not be negative", domain.ErrInvalidInput))
	}
	snap := s.ports.Session.Snapshot(domain.SnapshotOptions{
		LastN:     input.LastN,
		FinalOnly: input.FinalOnly,
	})
	return nil, NewSnapshotOutput(snap), nil
}

func (s *Server) handleAddKeyPoint(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input KeyPointInput,
) (*mcp.CallToolResult, KeyPointResult, error) {
	meta := input.Metadata
	if meta == nil {
		meta = map[string]string{}
	}
	if _, ok := meta["origin"]; !ok {
		meta["origin"] = "mcp"
	}
	kp, err := s.ports.Session.AddKeyPoint(input.Text, meta)
	if err != nil {
		return nil, KeyPointResult{}, toolError(err)
	}
	return nil, KeyPointResult{ID: kp.ID}, nil
}

func (s *Server) handleClearContext(
	_ context.Context,
	_ *mcp.CallToolRequest,
	_ EmptyInput,
) (*mcp.CallToolResult, ClearOutput, error) {
	s.ports.Session.ClearContext()
	return nil, ClearOutput{Cleared: true}, nil
}

func (s *Server) handleTriggerAction(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input TriggerInput,
) (*mcp.CallToolResult, TriggerOutput, error) {
	action, err := domain.ParseActionType(input.Action)
	if err != nil {
		return nil, TriggerOutput{}, toolError(err)
	}
	id, err := s.ports.Session.TriggerAction(ctx, action, input.Metadata)
	if err != nil {
		return nil, TriggerOutput{}, toolError(err)
	}
	return nil, TriggerOutput{RequestID: id, Slot: string(action.Slot())}, nil
}

func (s *Server) handleSetAutoSuggest(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input AutoSuggestInput,
) (*mcp.CallToolResult, AutoSuggestOutput, error) {
	cfg := s.ports.Session.AutoSuggestConfig()
	cfg.Enabled = input.Enabled
	if input.MinIntervalMS != nil {
		cfg.MinInterval = time.Duration(*input.MinIntervalMS) * time.Millisecond
	}
	if input.MinNewSegments != nil {
		cfg.MinNewSegments = *input.MinNewSegments
	}
	if len(input.Actions) > 0 {
		cfg.Actions = make([]domain.ActionType, 0, len(input.Actions))
		for _, name := range input.Actions {
			action, err := domain.ParseActionType(name)
			if err != nil {
				return nil, AutoSuggestOutput{}, toolError(err)
			}
			cfg.Actions = append(cfg.Actions, action)
		}
	}

	if err := s.ports.Session.SetAutoSuggestConfig(cfg); err != nil {
		return nil, AutoSuggestOutput{}, toolError(err)
	}
	return nil, newAutoSuggestOutput(s.ports.Session.AutoSuggestConfig()), nil
}

func newAutoSuggestOutput(cfg domain.AutoSuggestConfig) AutoSuggestOutput {
	actions := make([]string, len(cfg.Actions))
	for i, a := range cfg.Actions {
		actions[i] = a.String()
	}
	return AutoSuggestOutput{
		Enabled:        cfg.Enabled,
		MinIntervalMS:  cfg.MinInterval.Milliseconds(),
		MinNewSegments: cfg.MinNewSegments,
		Actions:        actions,
	}
}
