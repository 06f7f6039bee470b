// Package metatools implements the small, well-known set of privileged
// built-in tools (C8) that mutate the Registry: the self-modifying surface
// described in spec.md §4.8. Each tool follows the teacher's
// internal/tools/* shape — one struct per tool implementing
// internal/mcp.Tool (Name/Description/InputSchema/Execute) — but writes
// through internal/registry and internal/artifact instead of an external
// graph API.
package metatools

import (
	"encoding/json"
	"fmt"

	"github.com/dynmcp/dynmcp/internal/artifact"
	"github.com/dynmcp/dynmcp/internal/audit"
	"github.com/dynmcp/dynmcp/internal/chain"
	"github.com/dynmcp/dynmcp/internal/datasession"
	"github.com/dynmcp/dynmcp/internal/dispatcher"
	"github.com/dynmcp/dynmcp/internal/mcp"
	"github.com/dynmcp/dynmcp/internal/registry"
	"github.com/dynmcp/dynmcp/internal/validator"
)

// defaultPersona is the persona meta-tools write their rows under, unless
// the spec names a different one (spec.md §4.8 "persona = 'default'").
const defaultPersona = "default"

// Deps bundles the collaborators every meta-tool needs. A single Deps value
// is shared by every registered tool, mirroring how the teacher's
// internal/tools packages all close over one *emergent.ClientFactory.
type Deps struct {
	Registry     *registry.Registry
	Temp         *registry.TempRegistry
	Artifacts    *artifact.Store
	Validator    *validator.Validator
	Pool         *datasession.Pool
	Audit        *audit.Audit
	Dispatcher   *dispatcher.Dispatcher
	DashboardDir string
}

// RegisterAll registers every meta-tool into reg.
func RegisterAll(reg *mcp.Registry, d *Deps) {
	reg.Register(NewCreateNewSQLTool(d))
	reg.Register(NewCreateNewPrompt(d))
	reg.Register(NewCreateNewResource(d))
	reg.Register(NewCreateTempTool(d))
	reg.Register(NewCreateTempResource(d))
	reg.Register(NewRegisterMacro(d))
	reg.Register(NewCreateDashboard(d))
	reg.Register(NewSystemUpdateManual(d))
	reg.Register(NewSystemInspectTool(d))
	reg.Register(NewSystemVerifyTool(d))
	reg.Register(NewGetLastError(d))
	reg.Register(NewReconnectDB(d))
	reg.Register(NewTestDBConnection(d))
	reg.Register(NewExecuteWorkflow(d))
	reg.Register(NewGeneralMergeTool(d))
	reg.Register(NewExecuteDDLTool(d))
	reg.Register(NewRegisterIcon(d))
	reg.Register(NewGetIcon(d))
}

// parameterSpec is one entry of the "parameters" input map every
// create_new_* tool accepts (spec.md §4.8 "parameters (map from name to
// {type, description, required})").
type parameterSpec struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required,omitempty"`
}

// synthesizeInputSchema builds a JSON Schema object from a parameter map, in
// the shape a client expects back from tools/list (spec.md §4.8
// "input_schema synthesized from parameters").
func synthesizeInputSchema(parameters map[string]parameterSpec) (json.RawMessage, error) {
	properties := make(map[string]any, len(parameters))
	var required []string
	for name, p := range parameters {
		prop := map[string]any{"type": p.Type}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		properties[name] = prop
		if p.Required {
			required = append(required, name)
		}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	b, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("metatools: marshaling synthesized schema: %w", err)
	}
	return b, nil
}

// staticInputSchema is the fixed input schema for meta-tools themselves
// (not to be confused with synthesizeInputSchema, which builds a schema for
// a *created* dispatched tool).
func staticInputSchema(schema string) json.RawMessage {
	return json.RawMessage(schema)
}
