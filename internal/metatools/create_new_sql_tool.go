package metatools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dynmcp/dynmcp/internal/artifact"
	"github.com/dynmcp/dynmcp/internal/mcp"
	"github.com/dynmcp/dynmcp/internal/registry"
)

// createNewSQLToolParams is the input for create_new_sql_tool.
type createNewSQLToolParams struct {
	ToolName    string                   `json:"tool_name"`
	Description string                   `json:"description"`
	SQLQuery    string                   `json:"sql_query"`
	Parameters  map[string]parameterSpec `json:"parameters,omitempty"`
	Persona     string                   `json:"persona,omitempty"`
	Group       string                   `json:"group,omitempty"`
}

// CreateNewSQLTool implements create_new_sql_tool (spec.md §4.8).
type CreateNewSQLTool struct{ d *Deps }

func NewCreateNewSQLTool(d *Deps) *CreateNewSQLTool { return &CreateNewSQLTool{d: d} }

func (t *CreateNewSQLTool) Name() string { return "create_new_sql_tool" }

func (t *CreateNewSQLTool) Description() string {
	return "Create a new persistent SQL tool (kind=select). The body may use :name placeholders and template conditionals; it is checked for read-only, single-statement shape before being stored."
}

func (t *CreateNewSQLTool) InputSchema() json.RawMessage {
	return staticInputSchema(`{
  "type": "object",
  "properties": {
    "tool_name": {"type": "string", "description": "Unique dispatched name for the new tool"},
    "description": {"type": "string"},
    "sql_query": {"type": "string", "description": "SELECT template body; may reference :name placeholders and macros"},
    "parameters": {
      "type": "object",
      "description": "Map from parameter name to {type, description, required}",
      "additionalProperties": {
        "type": "object",
        "properties": {
          "type": {"type": "string"},
          "description": {"type": "string"},
          "required": {"type": "boolean"}
        }
      }
    },
    "persona": {"type": "string", "description": "Defaults to 'default'"},
    "group": {"type": "string"}
  },
  "required": ["tool_name", "description", "sql_query"]
}`)
}

func (t *CreateNewSQLTool) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p createNewSQLToolParams
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	if p.ToolName == "" || p.SQLQuery == "" {
		return mcp.ErrorResult("tool_name and sql_query are required"), nil
	}
	persona := p.Persona
	if persona == "" {
		persona = defaultPersona
	}

	// Relaxed pre-check: the body may still contain unresolved template
	// directives, so only the non-directive lines are checked for the
	// read-only, single-statement shape. The full check runs again at
	// every dispatch against the rendered text (internal/sqlexec).
	if err := t.d.Validator.ValidateSQL(stripTemplateDirectives(p.SQLQuery)); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("rejected: %v", err)), nil
	}

	digest, err := t.d.Artifacts.Put(ctx, p.SQLQuery, artifact.KindSelect)
	if err != nil {
		return nil, fmt.Errorf("storing artifact: %w", err)
	}

	schema, err := synthesizeInputSchema(p.Parameters)
	if err != nil {
		return nil, err
	}

	rec := registry.ToolRecord{
		Name:           p.ToolName,
		Persona:        persona,
		Description:    p.Description,
		InputSchema:    schema,
		ArtifactDigest: digest,
		IsAutoCreated:  true,
		Group:          p.Group,
	}
	if err := t.d.Registry.UpsertTool(ctx, rec); err != nil {
		return nil, fmt.Errorf("registering tool: %w", err)
	}

	return mcp.JSONResult(map[string]any{
		"tool_name": p.ToolName,
		"persona":   persona,
		"digest":    digest,
		"message":   fmt.Sprintf("created SQL tool %q", p.ToolName),
	})
}

// stripTemplateDirectives removes lines whose first non-whitespace
// character is '#' (velty's directive marker: #if, #foreach, #macro, #end,
// ...), leaving only the literal SQL text behind for a pre-render read-only
// check.
func stripTemplateDirectives(body string) string {
	lines := strings.Split(body, "\n")
	var kept []string
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}
