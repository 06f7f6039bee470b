package metatools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dynmcp/dynmcp/internal/mcp"
	"github.com/dynmcp/dynmcp/internal/registry"
)

// createNewResourceParams is the input for create_new_resource.
type createNewResourceParams struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mime_type,omitempty"`
	Body        string `json:"body"`
	Persona     string `json:"persona,omitempty"`
	Group       string `json:"group,omitempty"`
}

// CreateNewResource implements create_new_resource. Resources created
// through this path are always static — the dynamic (script-backed) form
// is reserved for spec-load (spec.md §4.8).
type CreateNewResource struct{ d *Deps }

func NewCreateNewResource(d *Deps) *CreateNewResource { return &CreateNewResource{d: d} }

func (t *CreateNewResource) Name() string { return "create_new_resource" }

func (t *CreateNewResource) Description() string {
	return "Create a new persistent, static resource body addressed by URI."
}

func (t *CreateNewResource) InputSchema() json.RawMessage {
	return staticInputSchema(`{
  "type": "object",
  "properties": {
    "uri": {"type": "string"},
    "name": {"type": "string"},
    "description": {"type": "string"},
    "mime_type": {"type": "string"},
    "body": {"type": "string", "description": "Static resource content, returned verbatim on resources/read"},
    "persona": {"type": "string"},
    "group": {"type": "string"}
  },
  "required": ["uri", "body"]
}`)
}

func (t *CreateNewResource) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
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

	rec := registry.ResourceRecord{
		URI:         p.URI,
		Persona:     persona,
		Name:        p.Name,
		Description: p.Description,
		MimeType:    p.MimeType,
		IsDynamic:   false,
		StaticBody:  p.Body,
		Group:       p.Group,
	}
	if err := t.d.Registry.UpsertResource(ctx, rec); err != nil {
		return nil, fmt.Errorf("registering resource: %w", err)
	}

	return mcp.JSONResult(map[string]any{
		"uri":     p.URI,
		"persona": persona,
		"message": fmt.Sprintf("created resource %q", p.URI),
	})
}
