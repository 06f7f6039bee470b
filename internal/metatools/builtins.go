package metatools

import (
	"context"
	"fmt"

	"github.com/dynmcp/dynmcp/internal/mcp"
)

// RegisterBuiltins adds the server's static, DB-independent prompts and
// resources to reg: these are always present regardless of persona, unlike
// the dynamic catalog the Dispatcher serves out of the registry database
// (spec.md §4.1 "merges the static set with the persona-scoped dynamic
// listing").
func RegisterBuiltins(reg *mcp.Registry, d *Deps) {
	reg.RegisterPrompt(newCreateToolWizard())
	reg.RegisterResource(newCatalogStats(d))
}

// --- create_tool_wizard prompt ---

// createToolWizard is a static, persona-independent prompt that walks a
// client through the fields create_new_sql_tool expects, the Go expression
// of a built-in prompt template (no registry round-trip, unlike the
// database-backed prompts create_new_prompt writes).
type createToolWizard struct{}

func newCreateToolWizard() *createToolWizard { return &createToolWizard{} }

func (p *createToolWizard) Definition() mcp.PromptDefinition {
	return mcp.PromptDefinition{
		Name:        "create_tool_wizard",
		Description: "Walk through the fields needed to register a new SQL tool via create_new_sql_tool.",
		Arguments: []mcp.PromptArgument{
			{Name: "goal", Description: "What the new tool should accomplish", Required: true},
		},
	}
}

func (p *createToolWizard) Get(arguments map[string]string) (*mcp.PromptsGetResult, error) {
	goal := arguments["goal"]
	if goal == "" {
		goal = "(unspecified)"
	}
	text := fmt.Sprintf(
		"Design a SQL tool for the following goal: %s\n\n"+
			"Call create_new_sql_tool with:\n"+
			"- tool_name: a short snake_case identifier\n"+
			"- description: one sentence a caller would read before invoking it\n"+
			"- sql_query: the parameterized query body, a single read-only SELECT\n"+
			"- parameters: a map from each template placeholder to its type and description",
		goal,
	)
	return &mcp.PromptsGetResult{
		Description: "Guided creation of a new SQL tool",
		Messages: []mcp.PromptMessage{
			{Role: "user", Content: mcp.TextContent(text)},
		},
	}, nil
}

// --- dynmcp://catalog/stats resource ---

// catalogStats is a static resource reporting the size of the default
// persona's dynamic catalog, useful as a quick health check without
// listing every tool/resource/prompt individually.
type catalogStats struct{ d *Deps }

func newCatalogStats(d *Deps) *catalogStats { return &catalogStats{d: d} }

func (r *catalogStats) Definition() mcp.ResourceDefinition {
	return mcp.ResourceDefinition{
		URI:         "dynmcp://catalog/stats",
		Name:        "Catalog stats",
		Description: "Counts of registered tools, resources, and prompts for the default persona.",
		MimeType:    "application/json",
	}
}

func (r *catalogStats) Read() (*mcp.ResourcesReadResult, error) {
	ctx := context.Background()
	tools, err := r.d.Registry.ListTools(ctx, defaultPersona)
	if err != nil {
		return nil, fmt.Errorf("listing tools: %w", err)
	}
	resources, err := r.d.Registry.ListResources(ctx, defaultPersona)
	if err != nil {
		return nil, fmt.Errorf("listing resources: %w", err)
	}
	prompts, err := r.d.Registry.ListPrompts(ctx, defaultPersona)
	if err != nil {
		return nil, fmt.Errorf("listing prompts: %w", err)
	}

	body := fmt.Sprintf(`{"tools": %d, "resources": %d, "prompts": %d}`, len(tools), len(resources), len(prompts))
	return &mcp.ResourcesReadResult{
		Contents: []mcp.ResourceContent{
			{URI: "dynmcp://catalog/stats", MimeType: "application/json", Text: body},
		},
	}, nil
}
