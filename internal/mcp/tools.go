package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ehrgate/ehrgate/internal/dispatch"
)

// registerTools adds one tool per operation definition.
func (s *MCPServer) registerTools(srv *server.MCPServer) {
	for _, def := range dispatch.Definitions() {
		srv.AddTool(NewTool(def), s.toolHandler(def))
	}
}

// NewTool converts an operation definition into an MCP tool.
func NewTool(def dispatch.Definition) mcp.Tool {
	opts := []mcp.ToolOption{mcp.WithDescription(def.Description)}
	if def.ReadOnly {
		opts = append(opts, mcp.WithToolAnnotation(readOnlyAnnotation()))
	} else {
		opts = append(opts, mcp.WithToolAnnotation(mutatingAnnotation()))
	}

	for _, p := range def.Params {
		props := []mcp.PropertyOption{mcp.Description(p.Description)}
		if p.Required {
			props = append(props, mcp.Required())
		}
		switch p.Type {
		case dispatch.TypeNumber, dispatch.TypeInteger:
			opts = append(opts, mcp.WithNumber(p.Name, props...))
		case dispatch.TypeArray:
			props = append(props, mcp.WithStringItems())
			opts = append(opts, mcp.WithArray(p.Name, props...))
		default:
			opts = append(opts, mcp.WithString(p.Name, props...))
		}
	}
	return mcp.NewTool(def.Name, opts...)
}

func (s *MCPServer) toolHandler(def dispatch.Definition) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result, err := s.dispatcher.Dispatch(ctx, def.Op, dispatch.Args(request.GetArguments()))
		return Result(def.Name, result, err)
	}
}
