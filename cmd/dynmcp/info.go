package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// newInfoCmd builds the "dynmcp info" subcommand, adapted from the
// teacher's flag-driven printGeneralInfo/printOpenCodeConfig family into a
// cobra subcommand with the same per-client flag shape.
func newInfoCmd() *cobra.Command {
	var opencode, claude, cursor bool

	cmd := &cobra.Command{
		Use:   "info",
		Short: "Print configuration and client setup information",
		RunE: func(cmd *cobra.Command, args []string) error {
			switch {
			case opencode:
				printOpenCodeConfig()
			case claude:
				printClaudeConfig()
			case cursor:
				printCursorConfig()
			default:
				printGeneralInfo()
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&opencode, "opencode", false, "show OpenCode MCP client configuration")
	cmd.Flags().BoolVar(&claude, "claude", false, "show Claude Desktop MCP client configuration")
	cmd.Flags().BoolVar(&cursor, "cursor", false, "show Cursor MCP client configuration")
	return cmd
}

func printGeneralInfo() {
	fmt.Fprintf(os.Stdout, `dynmcp %s — Dynamic Dispatch, Validation, and Execution Engine

dynmcp is a Model Context Protocol (MCP) server whose entire tool,
resource, prompt, and macro catalog lives in a database instead of
compiled-in code. New tools are created at runtime by a small set of
privileged meta-tools, validated structurally before they are ever
dispatched, and every call is written to an execution log.

TRANSPORT MODES

  stdio (default)
    Communicates over stdin/stdout using JSON-RPC 2.0. Used when launched
    as a subprocess by an MCP client.

  sse
    Runs as a standalone HTTP server (MCP Streamable HTTP transport,
    spec 2025-03-26).

    Endpoint:      POST /mcp
    Health check:  GET /health
    Default port:  21452

META-TOOLS (18)

  Creation:       create_new_sql_tool, create_new_prompt,
                  create_new_resource, create_temp_tool,
                  create_temp_resource, register_macro, create_dashboard
  Icons:          register_icon, get_icon
  Introspection:  system_update_manual, system_inspect_tool,
                  system_verify_tool, get_last_error
  Data session:   reconnect_db, test_db_connection, general_merge_tool,
                  execute_ddl_tool
  Orchestration:  execute_workflow

EVERYTHING ELSE IS DYNAMIC

  Every tool, resource, and prompt beyond the 18 meta-tools above is a
  database row, created at runtime by the meta-tools. tools/list,
  resources/list, and prompts/list merge the static meta-tool set with
  whatever has been created for the caller's persona.

GETTING STARTED

  1. Point dynmcp at a metadata store and, optionally, a data store:
     DYNMCP_METADATA_URL, DYNMCP_DATA_URL (sqlite:, mysql://, postgres://)

  2. Create a tool:        create_new_sql_tool or create_new_prompt
  3. Inspect it:           system_inspect_tool
  4. Verify its manual:    system_verify_tool
  5. Chain several calls:  execute_workflow

CLIENT CONFIGURATION

  To see configuration for a specific MCP client, run:

    dynmcp info --opencode    OpenCode (.opencode.json)
    dynmcp info --claude      Claude Desktop (claude_desktop_config.json)
    dynmcp info --cursor      Cursor (.cursor/mcp.json)
`, Version)
}

func printOpenCodeConfig() {
	printStdioConfig("OpenCode", ".opencode.json or opencode.json", `{
  "mcpServers": {
    "dynmcp": {
      "command": "dynmcp",
      "env": {
        "DYNMCP_METADATA_URL": "sqlite:///var/lib/dynmcp/catalog.db"
      }
    }
  }
}`)

	printHTTPConfig("OpenCode", ".opencode.json or opencode.json", `{
  "mcpServers": {
    "dynmcp": {
      "type": "streamable-http",
      "url": "http://your-dynmcp-server:21452/mcp"
    }
  }
}`)
}

func printClaudeConfig() {
	printStdioConfig("Claude Desktop", "claude_desktop_config.json", `{
  "mcpServers": {
    "dynmcp": {
      "command": "dynmcp",
      "env": {
        "DYNMCP_METADATA_URL": "sqlite:///var/lib/dynmcp/catalog.db"
      }
    }
  }
}`)

	printHTTPConfig("Claude Desktop", "claude_desktop_config.json", `{
  "mcpServers": {
    "dynmcp": {
      "type": "streamable-http",
      "url": "http://your-dynmcp-server:21452/mcp"
    }
  }
}`)
}

func printCursorConfig() {
	printStdioConfig("Cursor", ".cursor/mcp.json", `{
  "mcpServers": {
    "dynmcp": {
      "command": "dynmcp",
      "env": {
        "DYNMCP_METADATA_URL": "sqlite:///var/lib/dynmcp/catalog.db"
      }
    }
  }
}`)

	printHTTPConfig("Cursor", ".cursor/mcp.json", `{
  "mcpServers": {
    "dynmcp": {
      "type": "streamable-http",
      "url": "http://your-dynmcp-server:21452/mcp"
    }
  }
}`)
}

func printStdioConfig(client, file, cfg string) {
	fmt.Fprintf(os.Stdout, `%s — stdio mode
%s

Add to %s:

%s

dynmcp runs as a subprocess — no server needed.

`, client, strings.Repeat("─", len(client)+14), file, cfg)
}

func printHTTPConfig(client, file, cfg string) {
	fmt.Fprintf(os.Stdout, `%s — sse mode (remote server)
%s

Add to %s:

%s

`, client, strings.Repeat("─", len(client)+26), file, cfg)
}
