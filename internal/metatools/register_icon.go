package metatools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dynmcp/dynmcp/internal/mcp"
	"github.com/dynmcp/dynmcp/internal/registry"
)

// registerIconParams is the input for register_icon.
type registerIconParams struct {
	Name       string `json:"name"`
	Format     string `json:"format"`
	BodyBase64 string `json:"body_base64"`
}

// RegisterIcon implements register_icon (spec.md §4.2 "typed CRUD
// operations per record kind"): stores a named icon blob that get_icon
// returns by name. No other meta-tool reads or references icons.
type RegisterIcon struct{ d *Deps }

func NewRegisterIcon(d *Deps) *RegisterIcon { return &RegisterIcon{d: d} }

func (t *RegisterIcon) Name() string { return "register_icon" }

func (t *RegisterIcon) Description() string {
	return "Register a named icon (svg or png, base64-encoded), retrievable by name through get_icon."
}

func (t *RegisterIcon) InputSchema() json.RawMessage {
	return staticInputSchema(`{
  "type": "object",
  "properties": {
    "name": {"type": "string"},
    "format": {"type": "string", "enum": ["svg", "png"]},
    "body_base64": {"type": "string"}
  },
  "required": ["name", "format", "body_base64"]
}`)
}

func (t *RegisterIcon) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p registerIconParams
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	if p.Name == "" || p.BodyBase64 == "" {
		return mcp.ErrorResult("name and body_base64 are required"), nil
	}
	if p.Format != "svg" && p.Format != "png" {
		return mcp.ErrorResult("format must be 'svg' or 'png'"), nil
	}

	rec := registry.IconRecord{Name: p.Name, Format: p.Format, BodyBase64: p.BodyBase64}
	if err := t.d.Registry.UpsertIcon(ctx, rec); err != nil {
		return nil, fmt.Errorf("registering icon: %w", err)
	}

	return mcp.JSONResult(map[string]any{
		"name":    p.Name,
		"message": fmt.Sprintf("registered icon %q", p.Name),
	})
}

// --- get_icon ---

// getIconParams is the input for get_icon.
type getIconParams struct {
	Name string `json:"name"`
}

// GetIcon implements get_icon: a read-only lookup of a registered icon,
// the counterpart read path to RegisterIcon's write.
type GetIcon struct{ d *Deps }

func NewGetIcon(d *Deps) *GetIcon { return &GetIcon{d: d} }

func (t *GetIcon) Name() string { return "get_icon" }

func (t *GetIcon) Description() string {
	return "Look up a registered icon by name, returning its format and base64 body."
}

func (t *GetIcon) InputSchema() json.RawMessage {
	return staticInputSchema(`{
  "type": "object",
  "properties": {
    "name": {"type": "string"}
  },
  "required": ["name"]
}`)
}

func (t *GetIcon) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p getIconParams
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}

	icon, err := t.d.Registry.GetIcon(ctx, p.Name)
	if err != nil {
		if err == registry.ErrNotFound {
			return mcp.ErrorResult(fmt.Sprintf("icon %q not found", p.Name)), nil
		}
		return nil, fmt.Errorf("loading icon: %w", err)
	}

	return mcp.JSONResult(icon)
}
