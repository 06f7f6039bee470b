package metatools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dynmcp/dynmcp/internal/mcp"
)

// --- reconnect_db ---

// reconnectDBParams is the input for reconnect_db.
type reconnectDBParams struct {
	URL string `json:"url"`
}

// ReconnectDB implements reconnect_db (spec.md §4.8, §5): closes any
// existing data session and opens a new one, making the new state
// observable to every subsequent dispatched call.
type ReconnectDB struct{ d *Deps }

func NewReconnectDB(d *Deps) *ReconnectDB { return &ReconnectDB{d: d} }

func (t *ReconnectDB) Name() string { return "reconnect_db" }

func (t *ReconnectDB) Description() string {
	return "Close the current data session (if any) and reconnect to the given connection URL."
}

func (t *ReconnectDB) InputSchema() json.RawMessage {
	return staticInputSchema(`{
  "type": "object",
  "properties": {
    "url": {"type": "string", "description": "sqlite:, mysql://, or postgres:// connection URL"}
  },
  "required": ["url"]
}`)
}

func (t *ReconnectDB) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p reconnectDBParams
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	if p.URL == "" {
		return mcp.ErrorResult("url is required"), nil
	}

	if err := t.d.Pool.Reconnect(ctx, p.URL); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("reconnect failed: %v", err)), nil
	}

	return mcp.JSONResult(map[string]any{
		"online":  t.d.Pool.Online(),
		"message": "data session reconnected",
	})
}

// --- test_db_connection ---

// TestDBConnection implements test_db_connection (spec.md §4.8): pings the
// current data session without changing its configuration.
type TestDBConnection struct{ d *Deps }

func NewTestDBConnection(d *Deps) *TestDBConnection { return &TestDBConnection{d: d} }

func (t *TestDBConnection) Name() string { return "test_db_connection" }

func (t *TestDBConnection) Description() string {
	return "Ping the current data session and report whether it is reachable."
}

func (t *TestDBConnection) InputSchema() json.RawMessage {
	return staticInputSchema(`{"type": "object", "properties": {}}`)
}

func (t *TestDBConnection) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	err := t.d.Pool.Ping(ctx)
	online := err == nil
	result := map[string]any{"online": online}
	if err != nil {
		result["error"] = err.Error()
	}
	return mcp.JSONResult(result)
}
