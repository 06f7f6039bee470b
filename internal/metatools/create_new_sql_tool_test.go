package metatools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dynmcp/dynmcp/internal/registry"
)

func TestCreateNewSQLToolRegistersPersistentTool(t *testing.T) {
	d := newTestDeps(t)
	tool := NewCreateNewSQLTool(d)

	params, err := json.Marshal(map[string]any{
		"tool_name":   "get_widget",
		"description": "fetch a widget",
		"sql_query":   "SELECT name FROM widgets WHERE id = :id",
		"parameters": map[string]any{
			"id": map[string]any{"type": "integer", "required": true},
		},
	})
	require.NoError(t, err)

	result, err := tool.Execute(context.Background(), params)
	require.NoError(t, err)
	require.False(t, result.IsError)

	rec, err := d.Registry.GetTool(context.Background(), "get_widget", "default")
	require.NoError(t, err)
	require.Equal(t, "fetch a widget", rec.Description)
	require.True(t, rec.IsAutoCreated)
}

func TestCreateNewSQLToolRejectsMissingFields(t *testing.T) {
	d := newTestDeps(t)
	tool := NewCreateNewSQLTool(d)

	params, _ := json.Marshal(map[string]any{"tool_name": "x"})
	result, err := tool.Execute(context.Background(), params)
	require.NoError(t, err)
	require.True(t, result.IsError)
}

func TestCreateNewSQLToolRejectsWriteStatement(t *testing.T) {
	d := newTestDeps(t)
	tool := NewCreateNewSQLTool(d)

	params, _ := json.Marshal(map[string]any{
		"tool_name": "evil", "description": "x",
		"sql_query": "DELETE FROM widgets",
	})
	result, err := tool.Execute(context.Background(), params)
	require.NoError(t, err)
	require.True(t, result.IsError)
	require.Contains(t, result.Content[0].Text, "rejected")

	_, err = d.Registry.GetTool(context.Background(), "evil", "default")
	require.ErrorIs(t, err, registry.ErrNotFound)
}

func TestCreateNewSQLToolTolerateTemplateDirectivesInPreCheck(t *testing.T) {
	d := newTestDeps(t)
	tool := NewCreateNewSQLTool(d)

	params, _ := json.Marshal(map[string]any{
		"tool_name": "conditional_widget", "description": "x",
		"sql_query": "SELECT name FROM widgets\n#if($includeId)\n WHERE id = :id\n#end",
	})
	result, err := tool.Execute(context.Background(), params)
	require.NoError(t, err)
	require.False(t, result.IsError)
}

func TestCreateNewSQLToolDefaultsPersona(t *testing.T) {
	d := newTestDeps(t)
	tool := NewCreateNewSQLTool(d)

	params, _ := json.Marshal(map[string]any{
		"tool_name": "no_persona", "description": "x", "sql_query": "SELECT 1",
	})
	result, err := tool.Execute(context.Background(), params)
	require.NoError(t, err)
	require.False(t, result.IsError)

	_, err = d.Registry.GetTool(context.Background(), "no_persona", "default")
	require.NoError(t, err)
}
