package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aretw0/agentflow/internal/logging"
	"github.com/aretw0/agentflow/internal/presentation/graph"
	"github.com/aretw0/agentflow/pkg/dispatch"
	"github.com/aretw0/agentflow/pkg/fsm"
	"github.com/aretw0/agentflow/pkg/runner"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const machineURI = "agentflow://machine"

// Engine is what the MCP server drives. *agentflow.Engine satisfies it.
type Engine interface {
	Dispatch(ctx context.Context, line string) dispatch.Outcome
	Dispatcher() *dispatch.Dispatcher
	Machine() *fsm.Machine
}

// DispatchArgs are the arguments of the dispatch tool.
type DispatchArgs struct {
	Line string `json:"line"`
}

// DispatchResponse reports one dispatched line.
type DispatchResponse struct {
	Command      string   `json:"command" jsonschema_description:"The command token"`
	Status       string   `json:"status" jsonschema_description:"ok, cancelled, failed, unknown, unavailable or exit"`
	Output       string   `json:"output,omitempty" jsonschema_description:"Handler output"`
	Error        string   `json:"error,omitempty" jsonschema_description:"Failure message"`
	From         string   `json:"from" jsonschema_description:"State before the command"`
	To           string   `json:"to" jsonschema_description:"State after the command"`
	Transitioned bool     `json:"transitioned"`
	Available    []string `json:"available" jsonschema_description:"Commands available after the command"`
}

// Server exposes an engine as an MCP server.
type Server struct {
	engine    Engine
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// NewServer creates the server and registers its tools and resources.
func NewServer(engine Engine, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{
		engine: engine,
		logger: logger,
		mcpServer: server.NewMCPServer("agentflow-mcp", version,
			server.WithToolCapabilities(false),
			server.WithResourceCapabilities(false, false),
			server.WithRecovery(),
		),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("dispatch",
		mcp.WithDescription("Run one command line (e.g. 'load_agent reviewer') against the current state."),
		mcp.WithString("line", mcp.Required(), mcp.Description("The command line to dispatch")),
		mcp.WithOutputSchema[DispatchResponse](),
	), mcp.NewStructuredToolHandler(s.handleDispatch))

	s.mcpServer.AddTool(mcp.NewTool("available_commands",
		mcp.WithDescription("List the commands usable in the current state."),
	), s.handleAvailable)

	s.mcpServer.AddTool(mcp.NewTool("state_machine",
		mcp.WithDescription("Describe the state machine."),
		mcp.WithString("format",
			mcp.Description("table, mermaid or json (default table)"),
			mcp.Enum("table", "mermaid", "json"),
		),
	), s.handleStateMachine)
}

func (s *Server) handleDispatch(ctx context.Context, request mcp.CallToolRequest, args DispatchArgs) (DispatchResponse, error) {
	clean, err := runner.SanitizeInput(args.Line)
	if err != nil {
		s.logger.Warn("MCP dispatch: input rejected", "err", err, "size", len(args.Line))
		return DispatchResponse{}, fmt.Errorf("input rejected: %w", err)
	}

	out := s.engine.Dispatch(ctx, clean)
	resp := DispatchResponse{
		Command:      out.Command,
		Status:       out.Status(),
		Output:       out.Output,
		From:         out.From,
		To:           out.To,
		Transitioned: out.Transitioned,
		Available:    s.engine.Machine().AvailableCommands(),
	}
	if out.Err != nil {
		resp.Error = out.Err.Error()
	}
	return resp, nil
}

func (s *Server) handleAvailable(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(s.engine.Dispatcher().Help()), nil
}

func (s *Server) handleStateMachine(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	m := s.engine.Machine()
	switch format := request.GetString("format", "table"); format {
	case "table":
		return mcp.NewToolResultText(graph.Table(m)), nil
	case "mermaid":
		return mcp.NewToolResultText(graph.Mermaid(m, &graph.Overlay{Current: m.CurrentName()})), nil
	case "json":
		data, err := json.Marshal(fsm.DefinitionOf(m))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("encode failed: %v", err)), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown format %q", format)), nil
	}
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(machineURI, "State Machine Definition",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		data, err := json.Marshal(fsm.DefinitionOf(s.engine.Machine()))
		if err != nil {
			return nil, fmt.Errorf("failed to encode machine: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      machineURI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})
}
