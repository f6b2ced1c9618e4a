package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/parley/internal/adapters/driven/sim"
	"github.com/custodia-labs/parley/internal/adapters/driving/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  `Commands for the Model Context Protocol (MCP) server integration.`,
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server so an AI assistant can drive a
meeting session: start and stop it, read the live transcript and key
points, and request suggestions.

By default, the server communicates over stdio using JSON-RPC and can be
used with Claude Desktop and other MCP-compatible AI assistants.

Use --port to start an HTTP server instead, which enables:
  - Testing with MCP Inspector web UI
  - Remote access via HTTP

Audio, speech-to-text and AI are simulated. Pass --scenario to replay a
scripted meeting each time a session starts.

Examples:
  # Stdio mode (default, for Claude Desktop)
  parley mcp serve

  # HTTP mode with a scripted meeting
  parley mcp serve --port 8080 --scenario standup.toml

Claude Desktop configuration (claude_desktop_config.json):
  {
    "mcpServers": {
      "parley": {
        "command": "/path/to/parley",
        "args": ["mcp", "serve"]
      }
    }
  }`,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntP("port", "p", 0, "HTTP port (0 = use stdio)")
	mcpServeCmd.Flags().String("scenario", "", "TOML scenario replayed by the simulated providers")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	port, err := cmd.Flags().GetInt("port")
	if err != nil {
		return fmt.Errorf("getting port flag: %w", err)
	}
	path, err := cmd.Flags().GetString("scenario")
	if err != nil {
		return fmt.Errorf("getting scenario flag: %w", err)
	}
	if newSession == nil {
		return errors.New("session factory not configured")
	}

	scn := &sim.Scenario{}
	if path != "" {
		if scn, err = sim.LoadScenario(path); err != nil {
			return err
		}
	}

	capture, stt, ai := scn.Providers()
	if promptStore != nil {
		ai.SetPromptStore(promptStore)
	}
	session, err := newSession(Providers{Capture: capture, STT: stt, AI: ai}, nil)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	ports := &mcp.Ports{
		Session: session,
	}

	server, err := mcp.NewServer(ports)
	if err != nil {
		return err
	}

	if port > 0 {
		addr := fmt.Sprintf(":%d", port)
		fmt.Fprintf(cmd.OutOrStdout(), "MCP server listening on http://localhost%s\n", addr)
		return server.RunHTTP(cmd.Context(), addr)
	}

	return server.Run(cmd.Context())
}
