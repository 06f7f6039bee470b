package seed

import "github.com/dynmcp/dynmcp/internal/registry"

// Builtin is the starter catalog applied to an empty registry at startup,
// following internal/tools/patterns's standing-library-of-seeds convention:
// a flat literal table of ready-made entries rather than a file fetched
// from elsewhere. Every tool body here is written in the artifact dialect
// the dispatcher already knows how to run (a rendered SELECT for "select",
// a single-Tool-class Go source file for "script"), so a fresh server has a
// small working catalog before any create_new_* call ever runs.
var Builtin = &Spec{
	Tools: []ToolSpec{
		{
			Name:        "list_tables",
			Persona:     defaultPersona,
			Description: "List the tables known to the connected data store's own catalog.",
			Group:       "introspection",
			Kind:        "select",
			Body:        "SELECT name, type FROM sqlite_master WHERE type = 'table' ORDER BY name",
			InputSchema: `{"type":"object","properties":{}}`,
		},
		{
			Name:        "describe_table",
			Persona:     defaultPersona,
			Description: "List the columns of a single table by name.",
			Group:       "introspection",
			Kind:        "select",
			Body:        "SELECT name, type, \"notnull\", pk FROM pragma_table_info(:table_name)",
			InputSchema: `{"type":"object","properties":{"table_name":{"type":"string"}},"required":["table_name"]}`,
		},
		{
			Name:        "echo",
			Persona:     defaultPersona,
			Description: "Return the message argument unchanged, by way of an interpreted script artifact.",
			Group:       "diagnostics",
			Kind:        "script",
			Body: `package main

type EchoTool struct{}

func (t *EchoTool) Run(arguments map[string]interface{}) (interface{}, error) {
	message, _ := arguments["message"].(string)
	return map[string]interface{}{"message": message}, nil
}
`,
			InputSchema: `{"type":"object","properties":{"message":{"type":"string"}},"required":["message"]}`,
		},
	},
	Resources: []ResourceSpec{
		{
			URI:         "catalog://welcome",
			Persona:     defaultPersona,
			Name:        "Welcome",
			Description: "A short orientation note shown to a fresh catalog.",
			Group:       "introspection",
			MimeType:    "text/plain",
			Body:        "This catalog was auto-seeded. Use create_new_sql_tool, create_new_resource, or create_new_prompt to add to it.",
		},
	},
	Prompts: []PromptSpec{
		{
			Name:        "summarize_rows",
			Persona:     defaultPersona,
			Description: "Ask for a short natural-language summary of a result set.",
			Group:       "introspection",
			Template:    "Summarize the following rows in two or three sentences, focusing on outliers:\n\n{rows}",
			Arguments: []registry.PromptArgument{
				{Name: "rows", Description: "Rendered row data to summarize", Required: true},
			},
		},
	},
	Macros: []MacroSpec{
		{
			Name:        "recent_window",
			Description: "Expands to a WHERE clause fragment bounding a timestamp column to the last N days.",
			Template:    "#macro(recent_window $column $days)${column} >= datetime('now', '-' || ${days} || ' days')#end",
		},
	},
}
