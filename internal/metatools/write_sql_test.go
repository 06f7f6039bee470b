package metatools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dynmcp/dynmcp/internal/dbdriver"
)

func TestBuildMergeSQLPostgresUsesOnConflict(t *testing.T) {
	query, args := buildMergeSQL(dbdriver.DialectPostgres, "widgets", []string{"id"}, []string{"id", "name"}, map[string]any{"id": 1, "name": "x"})
	require.Equal(t, "INSERT INTO widgets (id, name) VALUES (?, ?) ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name", query)
	require.Equal(t, []any{1, "x"}, args)
}

func TestBuildMergeSQLMySQLUsesOnDuplicateKeyUpdate(t *testing.T) {
	query, args := buildMergeSQL(dbdriver.DialectMySQL, "widgets", []string{"id"}, []string{"id", "name"}, map[string]any{"id": 1, "name": "x"})
	require.Equal(t, "INSERT INTO widgets (id, name) VALUES (?, ?) ON DUPLICATE KEY UPDATE name = VALUES(name)", query)
	require.Equal(t, []any{1, "x"}, args)
	require.NotContains(t, query, "MERGE INTO")
}

func TestGeneralMergeToolAppliesSQLiteReplace(t *testing.T) {
	d := newTestDeps(t)
	tool := NewGeneralMergeTool(d)

	params, _ := json.Marshal(map[string]any{
		"table":       "widgets",
		"key_columns": []string{"id"},
		"values":      map[string]any{"id": 1, "name": "replaced"},
	})
	result, err := tool.Execute(context.Background(), params)
	require.NoError(t, err)
	require.False(t, result.IsError)

	db, _, ok := d.Pool.DB()
	require.True(t, ok)
	var name string
	require.NoError(t, db.QueryRow("SELECT name FROM widgets WHERE id = 1").Scan(&name))
	require.Equal(t, "replaced", name)
}

func TestGeneralMergeToolRejectsMissingFields(t *testing.T) {
	d := newTestDeps(t)
	tool := NewGeneralMergeTool(d)

	params, _ := json.Marshal(map[string]any{"table": "widgets"})
	result, err := tool.Execute(context.Background(), params)
	require.NoError(t, err)
	require.True(t, result.IsError)
}

func TestGeneralMergeToolReturnsOfflineWhenBackendDown(t *testing.T) {
	d := newTestDeps(t)
	require.NoError(t, d.Pool.Close())
	tool := NewGeneralMergeTool(d)

	params, _ := json.Marshal(map[string]any{
		"table": "widgets", "key_columns": []string{"id"},
		"values": map[string]any{"id": 1, "name": "x"},
	})
	result, err := tool.Execute(context.Background(), params)
	require.NoError(t, err)
	require.True(t, result.IsError)
	require.Contains(t, result.Content[0].Text, "DataBackendUnavailable")
}

func TestExecuteDDLToolRequiresExplicitConfirmation(t *testing.T) {
	d := newTestDeps(t)
	tool := NewExecuteDDLTool(d)

	params, _ := json.Marshal(map[string]any{
		"statement": "CREATE TABLE gadgets (id INTEGER PRIMARY KEY)",
		"confirm":   "no thanks",
	})
	result, err := tool.Execute(context.Background(), params)
	require.NoError(t, err)
	require.True(t, result.IsError)
}

func TestExecuteDDLToolAppliesCreateTable(t *testing.T) {
	d := newTestDeps(t)
	tool := NewExecuteDDLTool(d)

	params, _ := json.Marshal(map[string]any{
		"statement": "CREATE TABLE gadgets (id INTEGER PRIMARY KEY)",
		"confirm":   "YES",
	})
	result, err := tool.Execute(context.Background(), params)
	require.NoError(t, err)
	require.False(t, result.IsError)

	db, _, ok := d.Pool.DB()
	require.True(t, ok)
	_, err = db.Exec("INSERT INTO gadgets (id) VALUES (1)")
	require.NoError(t, err)
}

func TestExecuteDDLToolRejectsNonDDLStatement(t *testing.T) {
	d := newTestDeps(t)
	tool := NewExecuteDDLTool(d)

	params, _ := json.Marshal(map[string]any{
		"statement": "SELECT * FROM widgets",
		"confirm":   "YES",
	})
	result, err := tool.Execute(context.Background(), params)
	require.NoError(t, err)
	require.True(t, result.IsError)
}
