package metatools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dynmcp/dynmcp/internal/mcp"
	"github.com/dynmcp/dynmcp/internal/registry"
)

// --- system_update_manual ---

// updateManualParams is the input for system_update_manual.
type updateManualParams struct {
	ToolName   string                  `json:"tool_name"`
	Persona    string                  `json:"persona,omitempty"`
	Mode       string                  `json:"mode"` // "merge" or "replace"
	Manual     registry.Manual         `json:"manual"`
}

// SystemUpdateManual implements system_update_manual (spec.md §4.8): updates
// a ToolRecord's manual field in merge or replace mode. Merging arrays
// appends; every example's verified flag is reset to false on any change,
// since the new manual hasn't been replayed through system_verify_tool yet.
type SystemUpdateManual struct{ d *Deps }

func NewSystemUpdateManual(d *Deps) *SystemUpdateManual { return &SystemUpdateManual{d: d} }

func (t *SystemUpdateManual) Name() string { return "system_update_manual" }

func (t *SystemUpdateManual) Description() string {
	return "Update a tool's manual (usage guide, examples, pitfalls, error codes) in merge or replace mode."
}

func (t *SystemUpdateManual) InputSchema() json.RawMessage {
	return staticInputSchema(`{
  "type": "object",
  "properties": {
    "tool_name": {"type": "string"},
    "persona": {"type": "string"},
    "mode": {"type": "string", "enum": ["merge", "replace"]},
    "manual": {
      "type": "object",
      "properties": {
        "usage_guide": {"type": "string"},
        "examples": {"type": "array"},
        "pitfalls": {"type": "array", "items": {"type": "string"}},
        "error_codes": {"type": "array", "items": {"type": "string"}}
      }
    }
  },
  "required": ["tool_name", "mode", "manual"]
}`)
}

func (t *SystemUpdateManual) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p updateManualParams
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	persona := p.Persona
	if persona == "" {
		persona = defaultPersona
	}
	if p.Mode != "merge" && p.Mode != "replace" {
		return mcp.ErrorResult("mode must be 'merge' or 'replace'"), nil
	}

	rec, err := t.d.Registry.GetTool(ctx, p.ToolName, persona)
	if err != nil {
		if err == registry.ErrNotFound {
			return mcp.ErrorResult(fmt.Sprintf("tool %q/%q not found", persona, p.ToolName)), nil
		}
		return nil, fmt.Errorf("loading tool: %w", err)
	}

	incoming := p.Manual
	for i := range incoming.Examples {
		incoming.Examples[i].Verified = false
	}
	incoming.Verified = false

	merged := incoming
	if p.Mode == "merge" && rec.Manual != nil {
		merged = *rec.Manual
		merged.Verified = false
		for i := range merged.Examples {
			merged.Examples[i].Verified = false
		}
		if incoming.UsageGuide != "" {
			merged.UsageGuide = incoming.UsageGuide
		}
		merged.Examples = append(merged.Examples, incoming.Examples...)
		merged.Pitfalls = append(merged.Pitfalls, incoming.Pitfalls...)
		merged.ErrorCodes = append(merged.ErrorCodes, incoming.ErrorCodes...)
	}

	rec.Manual = &merged
	if err := t.d.Registry.UpsertTool(ctx, *rec); err != nil {
		return nil, fmt.Errorf("saving manual: %w", err)
	}

	return mcp.JSONResult(map[string]any{
		"tool_name": p.ToolName,
		"mode":      p.Mode,
		"manual":    merged,
	})
}

// --- system_inspect_tool ---

// inspectToolParams is the input for system_inspect_tool.
type inspectToolParams struct {
	ToolName string `json:"tool_name"`
	Persona  string `json:"persona,omitempty"`
}

// SystemInspectTool implements system_inspect_tool: a read-only lookup of a
// ToolRecord plus its manual.
type SystemInspectTool struct{ d *Deps }

func NewSystemInspectTool(d *Deps) *SystemInspectTool { return &SystemInspectTool{d: d} }

func (t *SystemInspectTool) Name() string { return "system_inspect_tool" }

func (t *SystemInspectTool) Description() string {
	return "Return a tool's full record shape, including its manual, without side effects."
}

func (t *SystemInspectTool) InputSchema() json.RawMessage {
	return staticInputSchema(`{
  "type": "object",
  "properties": {
    "tool_name": {"type": "string"},
    "persona": {"type": "string"}
  },
  "required": ["tool_name"]
}`)
}

func (t *SystemInspectTool) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p inspectToolParams
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	persona := p.Persona
	if persona == "" {
		persona = defaultPersona
	}

	rec, err := t.d.Registry.GetTool(ctx, p.ToolName, persona)
	if err != nil {
		if err == registry.ErrNotFound {
			return mcp.ErrorResult(fmt.Sprintf("tool %q/%q not found", persona, p.ToolName)), nil
		}
		return nil, fmt.Errorf("loading tool: %w", err)
	}

	return mcp.JSONResult(rec)
}

// --- system_verify_tool ---

// verifyToolParams is the input for system_verify_tool.
type verifyToolParams struct {
	ToolName string `json:"tool_name"`
	Persona  string `json:"persona,omitempty"`
}

// SystemVerifyTool implements system_verify_tool: replays every example in
// a tool's manual through the Dispatcher and updates each example's
// verified flag against the observed result, following the teacher's
// janitor self-check philosophy redirected at tool manuals.
type SystemVerifyTool struct{ d *Deps }

func NewSystemVerifyTool(d *Deps) *SystemVerifyTool { return &SystemVerifyTool{d: d} }

func (t *SystemVerifyTool) Name() string { return "system_verify_tool" }

func (t *SystemVerifyTool) Description() string {
	return "Replay every worked example in a tool's manual against the live Dispatcher and update the manual's verified flags."
}

func (t *SystemVerifyTool) InputSchema() json.RawMessage {
	return staticInputSchema(`{
  "type": "object",
  "properties": {
    "tool_name": {"type": "string"},
    "persona": {"type": "string"}
  },
  "required": ["tool_name"]
}`)
}

func (t *SystemVerifyTool) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p verifyToolParams
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	persona := p.Persona
	if persona == "" {
		persona = defaultPersona
	}

	rec, err := t.d.Registry.GetTool(ctx, p.ToolName, persona)
	if err != nil {
		if err == registry.ErrNotFound {
			return mcp.ErrorResult(fmt.Sprintf("tool %q/%q not found", persona, p.ToolName)), nil
		}
		return nil, fmt.Errorf("loading tool: %w", err)
	}
	if rec.Manual == nil || len(rec.Manual.Examples) == 0 {
		return mcp.ErrorResult("tool has no manual examples to verify"), nil
	}

	allPassed := true
	for i, ex := range rec.Manual.Examples {
		var args map[string]any
		if len(ex.Input) > 0 {
			if err := json.Unmarshal(ex.Input, &args); err != nil {
				rec.Manual.Examples[i].Verified = false
				allPassed = false
				continue
			}
		}
		result, callErr := t.d.Dispatcher.CallTool(ctx, p.ToolName, persona, args)
		passed := callErr == nil && fmt.Sprintf("%v", result) == ex.ExpectedSummary
		rec.Manual.Examples[i].Verified = passed
		if !passed {
			allPassed = false
		}
	}
	rec.Manual.Verified = allPassed
	if allPassed {
		rec.Manual.State = registry.ToolStateVerified
	}

	if err := t.d.Registry.UpsertTool(ctx, *rec); err != nil {
		return nil, fmt.Errorf("saving verification results: %w", err)
	}

	return mcp.JSONResult(map[string]any{
		"tool_name":  p.ToolName,
		"all_passed": allPassed,
		"manual":     rec.Manual,
	})
}
