package metatools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dynmcp/dynmcp/internal/mcp"
)

// getLastErrorParams is the input for get_last_error.
type getLastErrorParams struct {
	ToolName string `json:"tool_name,omitempty"`
}

// GetLastError implements get_last_error (spec.md §4.8): queries the
// ExecutionLog for the most recent FAILURE, optionally filtered by
// tool_name, and formats a block containing the traceback, timestamp,
// arguments, and tool identity.
type GetLastError struct{ d *Deps }

func NewGetLastError(d *Deps) *GetLastError { return &GetLastError{d: d} }

func (t *GetLastError) Name() string { return "get_last_error" }

func (t *GetLastError) Description() string {
	return "Return a formatted rendering of the most recent failed tool call, optionally filtered by tool_name."
}

func (t *GetLastError) InputSchema() json.RawMessage {
	return staticInputSchema(`{
  "type": "object",
  "properties": {
    "tool_name": {"type": "string"}
  }
}`)
}

func (t *GetLastError) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p getLastErrorParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
		}
	}

	entry, err := t.d.Audit.LastFailure(ctx, p.ToolName)
	if err != nil {
		return nil, fmt.Errorf("loading last failure: %w", err)
	}
	if entry == nil {
		return mcp.JSONResult(map[string]any{"message": "no failures recorded"})
	}

	formatted := fmt.Sprintf(
		"tool: %s\npersona: %s\ntimestamp: %s\narguments: %s\ntraceback:\n%s",
		entry.ToolName, entry.Persona, entry.Timestamp.Format(time.RFC3339), entry.Arguments, entry.ErrorTraceback,
	)

	return &mcp.ToolsCallResult{Content: []mcp.ContentBlock{mcp.TextContent(formatted)}}, nil
}
