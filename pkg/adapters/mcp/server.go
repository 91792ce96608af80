package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/playbook"
	"github.com/aretw0/playbook/internal/help"
	"github.com/aretw0/playbook/pkg/domain"
	"github.com/aretw0/playbook/pkg/ports"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Server wraps the protocol engine and exposes it as an MCP Server.
type Server struct {
	engine    ports.ProtocolEngine
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP Server instance.
func NewServer(engine ports.ProtocolEngine) *Server {
	s := &Server{
		engine: engine,
		mcpServer: server.NewMCPServer("playbook-mcp", strings.TrimSpace(playbook.Version),
			server.WithToolCapabilities(true),
			server.WithRecovery(),
		),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer exposes the underlying server, mostly for in-process clients.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		slog.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		slog.Info("Shutdown signal received, stopping MCP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("protocol_detect",
		mcp.WithDescription("Detect which protocols should be triggered based on input"),
		mcp.WithString("input", mcp.Required(), mcp.Description("User input or command")),
		mcp.WithObject("context", mcp.Description("Current context (optional)"), mcp.AdditionalProperties(true)),
	), s.handleDetect)

	s.mcpServer.AddTool(mcp.NewTool("protocol_start",
		mcp.WithDescription("Start executing a specific protocol"),
		mcp.WithString("protocolId", mcp.Required(), mcp.Description("ID of the protocol to start")),
		mcp.WithObject("context", mcp.Description("Context for the protocol"), mcp.AdditionalProperties(true)),
	), s.handleStart)

	s.mcpServer.AddTool(mcp.NewTool("protocol_next",
		mcp.WithDescription("Get the next action for an active protocol"),
		mcp.WithString("activeProtocolId", mcp.Required(), mcp.Description("ID of the active protocol")),
	), s.handleNext)

	s.mcpServer.AddTool(mcp.NewTool("protocol_complete_step",
		mcp.WithDescription("Mark a protocol step as completed"),
		mcp.WithString("activeProtocolId", mcp.Required(), mcp.Description("ID of the active protocol")),
		mcp.WithString("stepId", mcp.Required(), mcp.Description("ID of the completed step")),
		mcp.WithObject("result", mcp.Description("Result of the step execution (optional)"), mcp.AdditionalProperties(true)),
	), s.handleCompleteStep)

	s.mcpServer.AddTool(mcp.NewTool("protocol_status",
		mcp.WithDescription("Get the status and progress of an active protocol"),
		mcp.WithString("activeProtocolId", mcp.Required(), mcp.Description("ID of the active protocol")),
	), s.handleStatus)

	s.mcpServer.AddTool(mcp.NewTool("protocol_list",
		mcp.WithDescription("List all available protocols"),
		mcp.WithString("category", mcp.Description("Filter by category (optional)")),
	), s.handleList)

	s.mcpServer.AddTool(mcp.NewTool("protocol_active",
		mcp.WithDescription("List all currently active protocols"),
	), s.handleActive)

	s.mcpServer.AddTool(mcp.NewTool("protocol_finish",
		mcp.WithDescription("Archive an active protocol into the execution history"),
		mcp.WithString("activeProtocolId", mcp.Required(), mcp.Description("ID of the active protocol")),
		mcp.WithBoolean("success", mcp.Description("Whether the protocol achieved its goal (default true)")),
	), s.handleFinish)

	s.mcpServer.AddTool(mcp.NewTool("protocol_stats",
		mcp.WithDescription("Get execution statistics across active protocols and history"),
	), s.handleStats)

	s.mcpServer.AddTool(mcp.NewTool("protocol_cleanup",
		mcp.WithDescription("Remove active protocols older than the given age"),
		mcp.WithNumber("maxAgeHours", mcp.Description("Maximum age in hours (default 24)")),
	), s.handleCleanup)

	s.mcpServer.AddTool(mcp.NewTool("protocol_help",
		mcp.WithDescription("Get help on using the protocol engine"),
		mcp.WithString("topic", mcp.Description("Help topic (optional)"), mcp.Enum(help.Topics()...)),
	), s.handleHelp)
}

func (s *Server) handleDetect(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := request.RequireString("input")
	if err != nil {
		return toolError(err), nil
	}
	matches := s.engine.Detect(ctx, input, contextArg(request, "context"))
	return jsonResult(matches)
}

func (s *Server) handleStart(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	protocolID, err := request.RequireString("protocolId")
	if err != nil {
		return toolError(err), nil
	}
	exec, err := s.engine.Start(ctx, protocolID, contextArg(request, "context"))
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(domain.StartedView(exec))
}

func (s *Server) handleNext(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	activeID, err := request.RequireString("activeProtocolId")
	if err != nil {
		return toolError(err), nil
	}
	action, err := s.engine.Next(ctx, activeID)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(action)
}

// handleCompleteStep answers with the refreshed progress display.
func (s *Server) handleCompleteStep(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	activeID, err := request.RequireString("activeProtocolId")
	if err != nil {
		return toolError(err), nil
	}
	stepID, err := request.RequireString("stepId")
	if err != nil {
		return toolError(err), nil
	}
	result := request.GetArguments()["result"]
	if err := s.engine.CompleteStep(ctx, activeID, stepID, result); err != nil {
		return toolError(err), nil
	}
	display, err := s.engine.DisplayProgress(ctx, activeID)
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(display), nil
}

func (s *Server) handleStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	activeID, err := request.RequireString("activeProtocolId")
	if err != nil {
		return toolError(err), nil
	}
	display, err := s.engine.DisplayProgress(ctx, activeID)
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(display), nil
}

func (s *Server) handleList(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.engine.ListProtocols(ctx, request.GetString("category", "")))
}

func (s *Server) handleActive(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.engine.ListActive(ctx))
}

func (s *Server) handleFinish(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	activeID, err := request.RequireString("activeProtocolId")
	if err != nil {
		return toolError(err), nil
	}
	success := request.GetBool("success", true)
	if err := s.engine.Finish(ctx, activeID, success); err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Protocol %s archived (success: %t)", activeID, success)), nil
}

func (s *Server) handleStats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.engine.Statistics(ctx)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(stats)
}

func (s *Server) handleCleanup(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	hours := request.GetFloat("maxAgeHours", 0)
	maxAge := time.Duration(hours * float64(time.Hour))
	removed, err := s.engine.Cleanup(ctx, maxAge)
	if err != nil {
		return toolError(err), nil
	}
	if removed == nil {
		removed = []string{}
	}
	return jsonResult(map[string]any{"removed": removed})
}

func (s *Server) handleHelp(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(help.Topic(request.GetString("topic", ""))), nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource("playbook://protocols", "Protocol Catalog",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		data, err := json.Marshal(s.engine.ListProtocols(ctx, ""))
		if err != nil {
			return nil, fmt.Errorf("failed to encode catalog: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "playbook://protocols",
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})
}

// contextArg converts an object argument into a domain context.
func contextArg(request mcp.CallToolRequest, key string) domain.Context {
	raw, ok := request.GetArguments()[key].(map[string]any)
	if !ok {
		return domain.Context{}
	}
	return domain.ContextFrom(raw)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

func toolError(err error) *mcp.CallToolResult {
	return mcp.NewToolResultError("Error: " + err.Error())
}
