package metatools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dynmcp/dynmcp/internal/artifact"
	"github.com/dynmcp/dynmcp/internal/registry"
)

func seedTool(t *testing.T, d *Deps, name, body string) {
	t.Helper()
	digest, err := d.Artifacts.Put(context.Background(), body, artifact.KindSelect)
	require.NoError(t, err)
	require.NoError(t, d.Registry.UpsertTool(context.Background(), registry.ToolRecord{
		Name: name, Persona: "default", ArtifactDigest: digest,
	}))
}

func TestSystemUpdateManualReplaceMode(t *testing.T) {
	d := newTestDeps(t)
	seedTool(t, d, "get_widget", "SELECT 1")
	tool := NewSystemUpdateManual(d)

	params, _ := json.Marshal(map[string]any{
		"tool_name": "get_widget",
		"mode":      "replace",
		"manual": map[string]any{
			"usage_guide": "call with an id",
			"pitfalls":    []string{"id must exist"},
		},
	})
	result, err := tool.Execute(context.Background(), params)
	require.NoError(t, err)
	require.False(t, result.IsError)

	rec, err := d.Registry.GetTool(context.Background(), "get_widget", "default")
	require.NoError(t, err)
	require.Equal(t, "call with an id", rec.Manual.UsageGuide)
	require.Equal(t, []string{"id must exist"}, rec.Manual.Pitfalls)
}

func TestSystemUpdateManualMergeModeAppends(t *testing.T) {
	d := newTestDeps(t)
	seedTool(t, d, "get_widget", "SELECT 1")
	tool := NewSystemUpdateManual(d)

	first, _ := json.Marshal(map[string]any{
		"tool_name": "get_widget", "mode": "replace",
		"manual": map[string]any{"pitfalls": []string{"one"}},
	})
	_, err := tool.Execute(context.Background(), first)
	require.NoError(t, err)

	second, _ := json.Marshal(map[string]any{
		"tool_name": "get_widget", "mode": "merge",
		"manual": map[string]any{"pitfalls": []string{"two"}},
	})
	result, err := tool.Execute(context.Background(), second)
	require.NoError(t, err)
	require.False(t, result.IsError)

	rec, err := d.Registry.GetTool(context.Background(), "get_widget", "default")
	require.NoError(t, err)
	require.Equal(t, []string{"one", "two"}, rec.Manual.Pitfalls)
}

func TestSystemUpdateManualRejectsUnknownTool(t *testing.T) {
	d := newTestDeps(t)
	tool := NewSystemUpdateManual(d)

	params, _ := json.Marshal(map[string]any{
		"tool_name": "missing", "mode": "replace", "manual": map[string]any{},
	})
	result, err := tool.Execute(context.Background(), params)
	require.NoError(t, err)
	require.True(t, result.IsError)
}

func TestSystemUpdateManualRejectsInvalidMode(t *testing.T) {
	d := newTestDeps(t)
	seedTool(t, d, "get_widget", "SELECT 1")
	tool := NewSystemUpdateManual(d)

	params, _ := json.Marshal(map[string]any{
		"tool_name": "get_widget", "mode": "destroy", "manual": map[string]any{},
	})
	result, err := tool.Execute(context.Background(), params)
	require.NoError(t, err)
	require.True(t, result.IsError)
}

func TestSystemInspectToolReturnsRecord(t *testing.T) {
	d := newTestDeps(t)
	seedTool(t, d, "get_widget", "SELECT 1")
	tool := NewSystemInspectTool(d)

	params, _ := json.Marshal(map[string]any{"tool_name": "get_widget"})
	result, err := tool.Execute(context.Background(), params)
	require.NoError(t, err)
	require.False(t, result.IsError)
	require.Contains(t, result.Content[0].Text, "get_widget")
}

func TestSystemInspectToolUnknownReturnsError(t *testing.T) {
	d := newTestDeps(t)
	tool := NewSystemInspectTool(d)

	params, _ := json.Marshal(map[string]any{"tool_name": "missing"})
	result, err := tool.Execute(context.Background(), params)
	require.NoError(t, err)
	require.True(t, result.IsError)
}

func TestSystemVerifyToolMarksPassingExamplesVerified(t *testing.T) {
	d := newTestDeps(t)
	digest, err := d.Artifacts.Put(context.Background(), "SELECT name FROM widgets WHERE id = :id", artifact.KindSelect)
	require.NoError(t, err)
	require.NoError(t, d.Registry.UpsertTool(context.Background(), registry.ToolRecord{
		Name: "get_widget", Persona: "default", ArtifactDigest: digest,
		Manual: &registry.Manual{
			Examples: []registry.ManualExample{
				{Input: json.RawMessage(`{"id":1}`), ExpectedSummary: "[map[name:first]]"},
			},
		},
	}))

	tool := NewSystemVerifyTool(d)
	params, _ := json.Marshal(map[string]any{"tool_name": "get_widget"})
	result, err := tool.Execute(context.Background(), params)
	require.NoError(t, err)
	require.False(t, result.IsError)

	rec, err := d.Registry.GetTool(context.Background(), "get_widget", "default")
	require.NoError(t, err)
	require.True(t, rec.Manual.Verified)
	require.True(t, rec.Manual.Examples[0].Verified)
	require.Equal(t, registry.ToolStateVerified, rec.Manual.State)
}

func TestSystemVerifyToolMarksFailingExamplesUnverified(t *testing.T) {
	d := newTestDeps(t)
	digest, err := d.Artifacts.Put(context.Background(), "SELECT name FROM widgets WHERE id = :id", artifact.KindSelect)
	require.NoError(t, err)
	require.NoError(t, d.Registry.UpsertTool(context.Background(), registry.ToolRecord{
		Name: "get_widget", Persona: "default", ArtifactDigest: digest,
		Manual: &registry.Manual{
			Examples: []registry.ManualExample{
				{Input: json.RawMessage(`{"id":1}`), ExpectedSummary: "not the real output"},
			},
		},
	}))

	tool := NewSystemVerifyTool(d)
	params, _ := json.Marshal(map[string]any{"tool_name": "get_widget"})
	result, err := tool.Execute(context.Background(), params)
	require.NoError(t, err)
	require.False(t, result.IsError)

	rec, err := d.Registry.GetTool(context.Background(), "get_widget", "default")
	require.NoError(t, err)
	require.False(t, rec.Manual.Verified)
	require.False(t, rec.Manual.Examples[0].Verified)
}

func TestSystemVerifyToolRejectsToolWithNoExamples(t *testing.T) {
	d := newTestDeps(t)
	seedTool(t, d, "get_widget", "SELECT 1")
	tool := NewSystemVerifyTool(d)

	params, _ := json.Marshal(map[string]any{"tool_name": "get_widget"})
	result, err := tool.Execute(context.Background(), params)
	require.NoError(t, err)
	require.True(t, result.IsError)
}
