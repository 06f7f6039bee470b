package metatools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dynmcp/dynmcp/internal/artifact"
	"github.com/dynmcp/dynmcp/internal/registry"
)

func TestExecuteWorkflowRunsStepsSequentially(t *testing.T) {
	d := newTestDeps(t)
	seedTool(t, d, "list_widgets", "SELECT id, name FROM widgets")
	tool := NewExecuteWorkflow(d)

	params, _ := json.Marshal(map[string]any{
		"steps": []map[string]any{
			{"id": "first", "tool": "list_widgets"},
		},
	})
	result, err := tool.Execute(context.Background(), params)
	require.NoError(t, err)
	require.False(t, result.IsError)
	require.Contains(t, result.Content[0].Text, "first")
}

func TestExecuteWorkflowRejectsForwardReferenceBeforeRunning(t *testing.T) {
	d := newTestDeps(t)
	seedTool(t, d, "list_widgets", "SELECT id, name FROM widgets")
	tool := NewExecuteWorkflow(d)

	params, _ := json.Marshal(map[string]any{
		"steps": []map[string]any{
			{"id": "first", "tool": "list_widgets", "args": map[string]any{"x": "${second}"}},
			{"id": "second", "tool": "list_widgets"},
		},
	})
	result, err := tool.Execute(context.Background(), params)
	require.NoError(t, err)
	require.True(t, result.IsError)
	require.Contains(t, result.Content[0].Text, "workflow rejected")
}

func TestExecuteWorkflowRejectsEmptySteps(t *testing.T) {
	d := newTestDeps(t)
	tool := NewExecuteWorkflow(d)

	params, _ := json.Marshal(map[string]any{"steps": []map[string]any{}})
	result, err := tool.Execute(context.Background(), params)
	require.NoError(t, err)
	require.True(t, result.IsError)
}

func TestExecuteWorkflowHaltsAtFirstFailure(t *testing.T) {
	d := newTestDeps(t)
	digest, err := d.Artifacts.Put(context.Background(), "SELECT name FROM widgets WHERE id = :id", artifact.KindSelect)
	require.NoError(t, err)
	require.NoError(t, d.Registry.UpsertTool(context.Background(), registry.ToolRecord{
		Name: "get_widget", Persona: "default", ArtifactDigest: digest,
	}))
	tool := NewExecuteWorkflow(d)

	params, _ := json.Marshal(map[string]any{
		"steps": []map[string]any{
			{"id": "broken", "tool": "get_widget"},
			{"id": "unreached", "tool": "get_widget", "args": map[string]any{"id": 1}},
		},
	})
	result, err := tool.Execute(context.Background(), params)
	require.NoError(t, err)
	require.False(t, result.IsError)
	require.Contains(t, result.Content[0].Text, `"Failed": true`)
}
