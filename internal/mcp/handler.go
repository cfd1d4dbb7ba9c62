package mcp

import (
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ehrgate/ehrgate/internal/dispatch"
)

// Result renders the outcome of a call to tool: indented JSON text on
// success, the error document as an error result on failure.
func Result(tool string, result interface{}, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		return toolError(tool, err)
	}
	return successJSON(result)
}

// successJSON marshals data to indented JSON and returns it as a tool result.
func successJSON(data interface{}) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}
	return mcp.NewToolResultText(string(b)), nil
}

// toolError returns the error document as a tool-level error. The session
// stays open so the client can correct the call.
func toolError(tool string, err error) (*mcp.CallToolResult, error) {
	b, merr := json.MarshalIndent(dispatch.NewErrorDocument(tool, err), "", "  ")
	if merr != nil {
		return nil, fmt.Errorf("failed to marshal error: %w", merr)
	}
	return mcp.NewToolResultError(string(b)), nil
}
