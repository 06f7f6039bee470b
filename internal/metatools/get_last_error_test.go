package metatools

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dynmcp/dynmcp/internal/audit"
)

func TestGetLastErrorNoFailuresRecorded(t *testing.T) {
	d := newTestDeps(t)
	tool := NewGetLastError(d)

	result, err := tool.Execute(context.Background(), json.RawMessage(`{}`))
	require.NoError(t, err)
	require.Contains(t, result.Content[0].Text, "no failures recorded")
}

func TestGetLastErrorFormatsMostRecentFailure(t *testing.T) {
	d := newTestDeps(t)
	require.NoError(t, d.Audit.Record(context.Background(), time.Now(), "get_widget", "default",
		map[string]any{"id": 1}, audit.StatusFailure, "", "boom: missing argument"))

	tool := NewGetLastError(d)
	params, _ := json.Marshal(map[string]any{"tool_name": "get_widget"})
	result, err := tool.Execute(context.Background(), params)
	require.NoError(t, err)
	require.Contains(t, result.Content[0].Text, "get_widget")
	require.Contains(t, result.Content[0].Text, "boom: missing argument")
}

func TestGetLastErrorAcceptsEmptyParams(t *testing.T) {
	d := newTestDeps(t)
	tool := NewGetLastError(d)

	result, err := tool.Execute(context.Background(), json.RawMessage(``))
	require.NoError(t, err)
	require.Contains(t, result.Content[0].Text, "no failures recorded")
}
