package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ehrgate/ehrgate/internal/dispatch"
)

const operationsURI = "ehrgate://operations"

// registerResources adds read-only reference data clients can load into
// their context.
func (s *MCPServer) registerResources(srv *server.MCPServer) {
	srv.AddResource(
		mcp.NewResource(
			operationsURI,
			"Gateway Operations",
			mcp.WithResourceDescription(
				"Every operation the gateway exposes, with its parameters, "+
					"whether it needs an access token, and the scope it requires.",
			),
			mcp.WithMIMEType("application/json"),
		),
		s.handleOperationsResource,
	)
}

func (s *MCPServer) handleOperationsResource(
	ctx context.Context,
	request mcp.ReadResourceRequest,
) ([]mcp.ResourceContents, error) {
	b, err := json.MarshalIndent(dispatch.Definitions(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal operations: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      operationsURI,
			MIMEType: "application/json",
			Text:     string(b),
		},
	}, nil
}
