package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog/log"

	"workflow-docs-rag/internal/agent"
)

const (
	serverName    = "workflow-docs-rag"
	serverVersion = "0.1.0"
)

// NewServer exposes every tool in the registry over MCP.
func NewServer(registry *agent.Registry) *server.MCPServer {
	s := server.NewMCPServer(serverName, serverVersion, server.WithToolCapabilities(true))
	for _, t := range registry.Tools() {
		s.AddTool(toMCPTool(t), handler(registry, t))
	}
	return s
}

func toMCPTool(t agent.Tool) mcp.Tool {
	opts := []mcp.ToolOption{mcp.WithDescription(t.Description)}
	for _, p := range t.Params {
		popts := []mcp.PropertyOption{mcp.Description(p.Description)}
		if p.Required {
			popts = append(popts, mcp.Required())
		}
		opts = append(opts, mcp.WithString(p.Name, popts...))
	}
	return mcp.NewTool(t.Name, opts...)
}

// handler never returns a protocol error; failures are reported as tool results.
func handler(registry *agent.Registry, t agent.Tool) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := make(map[string]string, len(t.Params))
		for _, p := range t.Params {
			if p.Required {
				v, err := request.RequireString(p.Name)
				if err != nil {
					return mcp.NewToolResultError(err.Error()), nil
				}
				args[p.Name] = v
				continue
			}
			if v := request.GetString(p.Name, ""); v != "" {
				args[p.Name] = v
			}
		}

		out, err := registry.Call(ctx, t, args)
		if err != nil {
			log.Warn().Err(err).Str("tool", t.Name).Msg("Rejected MCP tool call")
			return mcp.NewToolResultError(fmt.Sprintf("invalid call to %s: %v", t.Name, err)), nil
		}
		return mcp.NewToolResultText(out), nil
	}
}
