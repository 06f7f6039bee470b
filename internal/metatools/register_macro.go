package metatools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dynmcp/dynmcp/internal/mcp"
	"github.com/dynmcp/dynmcp/internal/registry"
)

// ErrMalformedMacro is returned when a macro body doesn't open and close
// with the expected velty macro-block tokens.
var ErrMalformedMacro = errors.New("metatools: malformed macro body")

// macroOpenToken/macroCloseToken bracket a velty macro definition block,
// mirroring the Velocity-derived "#macro(name) ... #end" directive pair
// internal/template.Engine expects a macro prelude to be built from.
const (
	macroOpenToken  = "#macro"
	macroCloseToken = "#end"
)

// registerMacroParams is the input for register_macro.
type registerMacroParams struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Template    string `json:"template"`
}

// RegisterMacro implements register_macro (spec.md §4.8).
type RegisterMacro struct{ d *Deps }

func NewRegisterMacro(d *Deps) *RegisterMacro { return &RegisterMacro{d: d} }

func (t *RegisterMacro) Name() string { return "register_macro" }

func (t *RegisterMacro) Description() string {
	return "Register a reusable template-engine macro. The body must open with a macro-definition block and close with the matching end token."
}

func (t *RegisterMacro) InputSchema() json.RawMessage {
	return staticInputSchema(`{
  "type": "object",
  "properties": {
    "name": {"type": "string"},
    "description": {"type": "string"},
    "template": {"type": "string", "description": "Must begin with #macro(...) and end with #end"}
  },
  "required": ["name", "template"]
}`)
}

func (t *RegisterMacro) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p registerMacroParams
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	if p.Name == "" || p.Template == "" {
		return mcp.ErrorResult("name and template are required"), nil
	}

	trimmed := strings.TrimSpace(p.Template)
	if !strings.HasPrefix(trimmed, macroOpenToken) || !strings.HasSuffix(trimmed, macroCloseToken) {
		return mcp.ErrorResult(fmt.Sprintf("%v: body must begin with %q and end with %q", ErrMalformedMacro, macroOpenToken, macroCloseToken)), nil
	}

	rec := registry.MacroRecord{
		Name: p.Name, Description: p.Description, Template: p.Template, IsActive: true,
	}
	if err := t.d.Registry.UpsertMacro(ctx, rec); err != nil {
		return nil, fmt.Errorf("registering macro: %w", err)
	}

	return mcp.JSONResult(map[string]any{
		"name":    p.Name,
		"message": fmt.Sprintf("registered macro %q", p.Name),
	})
}
