package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/intake/internal/errors"
)

// decode binds MCP request arguments into a typed struct. Malformed
// arguments are reported as INVALID_REQUEST.
func decode[T any](req mcp.CallToolRequest) (T, error) {
	var result T
	if req.Params.Arguments == nil {
		return result, nil
	}
	if err := req.BindArguments(&result); err != nil {
		return result, errors.NewInvalidRequest("invalid arguments: " + err.Error())
	}
	return result, nil
}
