package metatools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/dynmcp/dynmcp/internal/datasession"
	"github.com/dynmcp/dynmcp/internal/dbdriver"
	"github.com/dynmcp/dynmcp/internal/mcp"
)

// --- general_merge_tool ---

// generalMergeToolParams is the input for general_merge_tool.
type generalMergeToolParams struct {
	Table      string         `json:"table"`
	KeyColumns []string       `json:"key_columns"`
	Values     map[string]any `json:"values"`
}

// GeneralMergeTool implements general_merge_tool (spec.md §4.8): emits a
// dialect-specific upsert (SQLite REPLACE, Postgres ON CONFLICT DO UPDATE,
// or MySQL ON DUPLICATE KEY UPDATE) against the data store, chosen by
// inspecting the data-session's dialect. No MERGE statement is emitted for
// any dialect.
type GeneralMergeTool struct{ d *Deps }

func NewGeneralMergeTool(d *Deps) *GeneralMergeTool { return &GeneralMergeTool{d: d} }

func (t *GeneralMergeTool) Name() string { return "general_merge_tool" }

func (t *GeneralMergeTool) Description() string {
	return "Upsert a row into a data-store table, keyed by key_columns. Emits dialect-specific SQL: a REPLACE for SQLite, an INSERT ... ON CONFLICT DO UPDATE for Postgres, or an INSERT ... ON DUPLICATE KEY UPDATE for MySQL."
}

func (t *GeneralMergeTool) InputSchema() json.RawMessage {
	return staticInputSchema(`{
  "type": "object",
  "properties": {
    "table": {"type": "string"},
    "key_columns": {"type": "array", "items": {"type": "string"}},
    "values": {"type": "object", "description": "Column name to value, including the key columns"}
  },
  "required": ["table", "key_columns", "values"]
}`)
}

func (t *GeneralMergeTool) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p generalMergeToolParams
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	if p.Table == "" || len(p.KeyColumns) == 0 || len(p.Values) == 0 {
		return mcp.ErrorResult("table, key_columns, and values are required"), nil
	}

	db, dialect, online := t.d.Pool.DB()
	if !online {
		return mcp.ErrorResult(fmt.Sprintf("DataBackendUnavailable: %v", datasession.ErrBackendUnavailable)), nil
	}

	columns := make([]string, 0, len(p.Values))
	for col := range p.Values {
		columns = append(columns, col)
	}
	sort.Strings(columns)

	query, args := buildMergeSQL(dialect, p.Table, p.KeyColumns, columns, p.Values)

	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("executing merge: %w", err)
	}

	return mcp.JSONResult(map[string]any{
		"table":   p.Table,
		"dialect": dialect,
		"sql":     query,
		"message": "merge applied",
	})
}

// buildMergeSQL renders dialect-specific upsert SQL for one row, in column
// order, binding every value positionally.
func buildMergeSQL(dialect dbdriver.Dialect, table string, keyColumns, columns []string, values map[string]any) (string, []any) {
	args := make([]any, 0, len(columns))
	placeholders := make([]string, len(columns))
	for i, col := range columns {
		placeholders[i] = "?"
		args = append(args, values[col])
	}

	switch dialect {
	case dbdriver.DialectSQLite:
		return fmt.Sprintf("REPLACE INTO %s (%s) VALUES (%s)",
			table, strings.Join(columns, ", "), strings.Join(placeholders, ", ")), args

	case dbdriver.DialectPostgres:
		updates := make([]string, 0, len(columns))
		for _, col := range columns {
			if !contains(keyColumns, col) {
				updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
			}
		}
		return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
			table, strings.Join(columns, ", "), strings.Join(placeholders, ", "),
			strings.Join(keyColumns, ", "), strings.Join(updates, ", ")), args

	default: // dbdriver.DialectMySQL
		updates := make([]string, 0, len(columns))
		for _, col := range columns {
			if !contains(keyColumns, col) {
				updates = append(updates, fmt.Sprintf("%s = VALUES(%s)", col, col))
			}
		}
		return fmt.Sprintf(
			"INSERT INTO %s (%s) VALUES (%s) ON DUPLICATE KEY UPDATE %s",
			table, strings.Join(columns, ", "), strings.Join(placeholders, ", "),
			strings.Join(updates, ", ")), args
	}
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// --- execute_ddl_tool ---

// executeDDLToolParams is the input for execute_ddl_tool.
type executeDDLToolParams struct {
	Statement string `json:"statement"`
	Confirm   string `json:"confirm"`
}

// ExecuteDDLTool implements execute_ddl_tool (spec.md §4.8): requires an
// explicit textual confirmation token before running the validator's DDL
// mode and executing the statement against the data store.
type ExecuteDDLTool struct{ d *Deps }

func NewExecuteDDLTool(d *Deps) *ExecuteDDLTool { return &ExecuteDDLTool{d: d} }

func (t *ExecuteDDLTool) Name() string { return "execute_ddl_tool" }

func (t *ExecuteDDLTool) Description() string {
	return "Execute a single CREATE/ALTER/DROP/TRUNCATE statement against the data store. Requires confirm=\"YES\"."
}

func (t *ExecuteDDLTool) InputSchema() json.RawMessage {
	return staticInputSchema(`{
  "type": "object",
  "properties": {
    "statement": {"type": "string"},
    "confirm": {"type": "string", "description": "Must be the literal string YES"}
  },
  "required": ["statement", "confirm"]
}`)
}

func (t *ExecuteDDLTool) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p executeDDLToolParams
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	if p.Confirm != "YES" {
		return mcp.ErrorResult("confirm must be the literal string \"YES\""), nil
	}

	if err := t.d.Validator.ValidateDDL(p.Statement); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("rejected: %v", err)), nil
	}

	db, _, online := t.d.Pool.DB()
	if !online {
		return mcp.ErrorResult(fmt.Sprintf("DataBackendUnavailable: %v", datasession.ErrBackendUnavailable)), nil
	}

	if _, err := db.ExecContext(ctx, p.Statement); err != nil {
		return nil, fmt.Errorf("executing DDL: %w", err)
	}

	return mcp.JSONResult(map[string]any{"message": "DDL applied"})
}
