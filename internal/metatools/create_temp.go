package metatools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dynmcp/dynmcp/internal/artifact"
	"github.com/dynmcp/dynmcp/internal/mcp"
	"github.com/dynmcp/dynmcp/internal/registry"
)

// CreateTempTool implements create_temp_tool: same input shape as
// create_new_sql_tool, but the resulting ToolRecord lives only in the
// in-process TempRegistry — no row is ever written to the persistent store
// (spec.md §4.8).
type CreateTempTool struct{ d *Deps }

func NewCreateTempTool(d *Deps) *CreateTempTool { return &CreateTempTool{d: d} }

func (t *CreateTempTool) Name() string { return "create_temp_tool" }

func (t *CreateTempTool) Description() string {
	return "Create a process-local, non-persistent SQL tool. Rows are never written to the registry database and are lost when the server restarts; dispatch of a temp tool also caps row output at a small fixed limit."
}

func (t *CreateTempTool) InputSchema() json.RawMessage {
	return staticInputSchema(`{
  "type": "object",
  "properties": {
    "tool_name": {"type": "string"},
    "description": {"type": "string"},
    "sql_query": {"type": "string"},
    "parameters": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "properties": {
          "type": {"type": "string"},
          "description": {"type": "string"},
          "required": {"type": "boolean"}
        }
      }
    },
    "persona": {"type": "string"},
    "group": {"type": "string"}
  },
  "required": ["tool_name", "sql_query"]
}`)
}

func (t *CreateTempTool) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
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

	t.d.Temp.PutTool(registry.ToolRecord{
		Name: p.ToolName, Persona: persona, Description: p.Description,
		InputSchema: schema, ArtifactDigest: digest, Group: p.Group,
	})

	return mcp.JSONResult(map[string]any{
		"tool_name": p.ToolName,
		"persona":   persona,
		"message":   fmt.Sprintf("created temporary tool %q", p.ToolName),
	})
}

// CreateTempResource implements create_temp_resource: same input shape as
// create_new_resource, stored only in the TempRegistry.
type CreateTempResource struct{ d *Deps }

func NewCreateTempResource(d *Deps) *CreateTempResource { return &CreateTempResource{d: d} }

func (t *CreateTempResource) Name() string { return "create_temp_resource" }

func (t *CreateTempResource) Description() string {
	return "Create a process-local, non-persistent static resource. Lost when the server restarts."
}

func (t *CreateTempResource) InputSchema() json.RawMessage {
	return staticInputSchema(`{
  "type": "object",
  "properties": {
    "uri": {"type": "string"},
    "name": {"type": "string"},
    "description": {"type": "string"},
    "mime_type": {"type": "string"},
    "body": {"type": "string"},
    "persona": {"type": "string"},
    "group": {"type": "string"}
  },
  "required": ["uri", "body"]
}`)
}

func (t *CreateTempResource) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p createNewResourceParams
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	if p.URI == "" || p.Body == "" {
		return mcp.ErrorResult("uri and body are required"), nil
	}
	persona := p.Persona
	if persona == "" {
		persona = defaultPersona
	}

	t.d.Temp.PutResource(registry.ResourceRecord{
		URI: p.URI, Persona: persona, Name: p.Name, Description: p.Description,
		MimeType: p.MimeType, IsDynamic: false, StaticBody: p.Body, Group: p.Group,
	})

	return mcp.JSONResult(map[string]any{
		"uri":     p.URI,
		"persona": persona,
		"message": fmt.Sprintf("created temporary resource %q", p.URI),
	})
}
