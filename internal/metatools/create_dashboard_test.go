package metatools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dynmcp/dynmcp/internal/artifact"
)

func TestCreateDashboardRegistersUIArtifact(t *testing.T) {
	d := newTestDeps(t)
	tool := NewCreateDashboard(d)

	params, _ := json.Marshal(map[string]any{
		"tool_name": "widget_chart", "html": "<html><body>chart</body></html>",
	})
	result, err := tool.Execute(context.Background(), params)
	require.NoError(t, err)
	require.False(t, result.IsError)

	rec, err := d.Registry.GetTool(context.Background(), "widget_chart", "default")
	require.NoError(t, err)
	require.True(t, rec.IsAutoCreated)

	art, err := d.Artifacts.Get(context.Background(), rec.ArtifactDigest)
	require.NoError(t, err)
	require.Equal(t, artifact.KindUI, art.Kind)
	require.Contains(t, art.Body, "chart")
}

func TestCreateDashboardRejectsMissingHTML(t *testing.T) {
	d := newTestDeps(t)
	tool := NewCreateDashboard(d)

	params, _ := json.Marshal(map[string]any{"tool_name": "x"})
	result, err := tool.Execute(context.Background(), params)
	require.NoError(t, err)
	require.True(t, result.IsError)
}
