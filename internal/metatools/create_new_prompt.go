package metatools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dynmcp/dynmcp/internal/mcp"
	"github.com/dynmcp/dynmcp/internal/registry"
)

// createNewPromptParams is the input for create_new_prompt.
type createNewPromptParams struct {
	Name        string                     `json:"name"`
	Description string                     `json:"description"`
	Template    string                     `json:"template"`
	Arguments   []registry.PromptArgument  `json:"arguments,omitempty"`
	Persona     string                     `json:"persona,omitempty"`
	Group       string                     `json:"group,omitempty"`
}

// CreateNewPrompt implements create_new_prompt (spec.md §4.8, analogous to
// create_new_sql_tool).
type CreateNewPrompt struct{ d *Deps }

func NewCreateNewPrompt(d *Deps) *CreateNewPrompt { return &CreateNewPrompt{d: d} }

func (t *CreateNewPrompt) Name() string { return "create_new_prompt" }

func (t *CreateNewPrompt) Description() string {
	return "Create a new persistent prompt template with named placeholder arguments."
}

func (t *CreateNewPrompt) InputSchema() json.RawMessage {
	return staticInputSchema(`{
  "type": "object",
  "properties": {
    "name": {"type": "string"},
    "description": {"type": "string"},
    "template": {"type": "string", "description": "Template body; {argument_name} placeholders are substituted at get time"},
    "arguments": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "name": {"type": "string"},
          "description": {"type": "string"},
          "required": {"type": "boolean"}
        },
        "required": ["name"]
      }
    },
    "persona": {"type": "string"},
    "group": {"type": "string"}
  },
  "required": ["name", "template"]
}`)
}

func (t *CreateNewPrompt) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p createNewPromptParams
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	if p.Name == "" || p.Template == "" {
		return mcp.ErrorResult("name and template are required"), nil
	}
	persona := p.Persona
	if persona == "" {
		persona = defaultPersona
	}

	rec := registry.PromptRecord{
		Name:            p.Name,
		Persona:         persona,
		Description:     p.Description,
		Template:        p.Template,
		ArgumentsSchema: p.Arguments,
		Group:           p.Group,
	}
	if err := t.d.Registry.UpsertPrompt(ctx, rec); err != nil {
		return nil, fmt.Errorf("registering prompt: %w", err)
	}

	return mcp.JSONResult(map[string]any{
		"name":    p.Name,
		"persona": persona,
		"message": fmt.Sprintf("created prompt %q", p.Name),
	})
}
